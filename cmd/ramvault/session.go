package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"pkt.systems/ramvault/schema"
)

func newUpCmd() *cobra.Command {
	var cfgPath string
	var drive string
	var sizeMB int64
	var volatile bool
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Create, format, and mount the RAM disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := buildService(cmd.Context(), cfgPath)
			if err != nil {
				return err
			}
			status, err := service.Status(cmd.Context(), schema.StatusRequest{})
			if err != nil {
				return err
			}

			req := schema.CreateRequest{}
			if cmd.Flags().Changed("drive") || cmd.Flags().Changed("size-mb") || cmd.Flags().Changed("volatile") {
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
				req.Config = &config
			}

			resp, err := service.Create(cmd.Context(), req)
			if err != nil {
				renderSnapshot(cmd.OutOrStdout(), resp.Snapshot)
				return err
			}
			renderSnapshot(cmd.OutOrStdout(), resp.Snapshot)
			if resp.Restored {
				fmt.Fprintln(cmd.OutOrStdout(), "backup restored")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVarP(&drive, "drive", "d", "", "drive letter to mount at")
	cmd.Flags().Int64VarP(&sizeMB, "size-mb", "s", 0, "disk size in MB")
	cmd.Flags().BoolVar(&volatile, "volatile", false, "skip backup save/restore for this disk")
	return cmd
}

func newDownCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Save the RAM disk contents and unmount it",
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := buildService(cmd.Context(), cfgPath)
			if err != nil {
				return err
			}
			resp, err := service.Stop(cmd.Context(), schema.StopRequest{})
			if err != nil {
				renderSnapshot(cmd.OutOrStdout(), resp.Snapshot)
				return err
			}
			renderSnapshot(cmd.OutOrStdout(), resp.Snapshot)
			if resp.Saved {
				fmt.Fprintln(cmd.OutOrStdout(), "backup saved")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	return cmd
}

func newStatusCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the session state and config",
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := buildService(cmd.Context(), cfgPath)
			if err != nil {
				return err
			}
			resp, err := service.Status(cmd.Context(), schema.StatusRequest{})
			if err != nil {
				return err
			}
			renderSnapshot(cmd.OutOrStdout(), resp.Snapshot)
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	return cmd
}

func newDetectCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Probe the host for the RAM disk backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := buildService(cmd.Context(), cfgPath)
			if err != nil {
				return err
			}
			resp, err := service.Detect(cmd.Context(), schema.DetectRequest{})
			if err != nil {
				return err
			}
			renderSnapshot(cmd.OutOrStdout(), resp.Snapshot)
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	return cmd
}

func newInstallCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the missing RAM disk backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := buildService(cmd.Context(), cfgPath)
			if err != nil {
				return err
			}
			resp, err := service.InstallBackend(cmd.Context(), schema.InstallRequest{})
			if err != nil {
				renderSnapshot(cmd.OutOrStdout(), resp.Snapshot)
				return err
			}
			renderSnapshot(cmd.OutOrStdout(), resp.Snapshot)
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	return cmd
}

func renderSnapshot(w io.Writer, snap schema.SessionSnapshot) {
	if snap.State == "" {
		return
	}
	fmt.Fprintf(w, "state:   %s\n", snap.State)
	fmt.Fprintf(w, "status:  %s\n", snap.Status)
	fmt.Fprintf(w, "backend: %s (available: %t)\n", snap.Backend.Kind, snap.Backend.Available)
	fmt.Fprintf(w, "config:  %s: %d MB persistence=%t\n",
		snap.Config.DriveLetter, snap.Config.SizeBytes>>20, snap.Config.Persistence)
	if snap.InstallOffered {
		fmt.Fprintln(w, "backend missing; run: ramvault install")
	}
}
