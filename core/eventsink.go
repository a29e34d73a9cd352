package core

import "pkt.systems/ramvault/schema"

// EventSink receives session events from the core service.
type EventSink interface {
	OnSessionEvent(event schema.SessionEvent)
}
