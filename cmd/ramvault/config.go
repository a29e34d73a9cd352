package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/ramvault/internal/appconfig"
	"pkt.systems/ramvault/schema"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the ramvault config file",
	}
	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigSetCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var output string
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			path, err := appconfig.WriteDefault(output, overwrite)
			if err != nil {
				return err
			}
			logger.Info("config written", "path", path)
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "config file path")
	cmd.Flags().BoolVar(&overwrite, "force", false, "overwrite an existing config")
	return cmd
}

func newConfigSetCmd() *cobra.Command {
	var cfgPath string
	var drive string
	var sizeMB int64
	var volatile bool
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update the session config while the disk is down",
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := buildService(cmd.Context(), cfgPath)
			if err != nil {
				return err
			}
			status, err := service.Status(cmd.Context(), schema.StatusRequest{})
			if err != nil {
				return err
			}
			config := status.Snapshot.Config
			if cmd.Flags().Changed("drive") {
				config.DriveLetter = schema.DriveLetter(drive)
			}
			if cmd.Flags().Changed("size-mb") {
				config.SizeBytes = sizeMB << 20
			}
			if cmd.Flags().Changed("volatile") {
				config.Persistence = !volatile
			}
			resp, err := service.SetConfig(cmd.Context(), schema.SetConfigRequest{Config: config})
			if err != nil {
				return err
			}
			renderSnapshot(cmd.OutOrStdout(), resp.Snapshot)
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVarP(&drive, "drive", "d", "", "drive letter to mount at")
	cmd.Flags().Int64VarP(&sizeMB, "size-mb", "s", 0, "disk size in MB")
	cmd.Flags().BoolVar(&volatile, "volatile", false, "skip backup save/restore for this disk")
	return cmd
}
