/*
Package events provides an in-memory event broker for sentryd's internal
pub/sub messaging.

The events package implements a lightweight event bus broadcasting
backup and lifecycle events to interested subscribers. It supports
non-blocking, buffered delivery, decoupling publishers from whatever
consumes their events (metrics, audit logs, a future webhook sink).

# Architecture

	┌──────────────────── EVENT BROKER ────────────────────────┐
	│  Publisher → Event Channel (buffer: 100)                  │
	│       ↓                                                    │
	│  Broadcast Loop                                            │
	│       ↓                                                    │
	│  Subscriber Channels (buffer: 50 each)                    │
	└────────────────────────────────────────────────────────┘

# Event Types

All of the types below are defined. In this repository only
backend.crashed is published, by cmd/sentryd's backend crash callback;
pkg/backup and pkg/lifecycle hold no broker and publish none of the
others.

Backup Events:
  - backup.created: a backup's primary artifact and its auxiliary
    integrity objects were committed.
  - backup.failed: a backup creation aborted (no object published).
  - backup.restored: a restore extracted successfully.
  - restore.failed: a restore aborted pre- or mid-extraction.

Lifecycle Events:
  - lifecycle.changed: an AppState transition was committed.
  - backend.crashed: the backend process exited unexpectedly.
  - lifecycle.factory_reset: a factory reset completed.

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	go func() {
		for event := range sub {
			switch event.Type {
			case events.EventBackupFailed:
				alertOnBackupFailure(event)
			case events.EventBackendCrashed:
				alertOnCrash(event)
			}
		}
	}()

	broker.Publish(&events.Event{
		Type:    events.EventBackupCreated,
		Message: "backup 1732900000-demo created",
		Metadata: map[string]string{
			"backup_id":    "1732900000-demo.tar.zst",
			"is_encrypted": "true",
		},
	})

# Design Patterns

Non-blocking publish: Publish never waits for subscribers; a full
subscriber buffer drops that event for that subscriber rather than
blocking the publisher. This trades guaranteed delivery for throughput,
which is acceptable here since events feed metrics and audit logging,
not control-flow decisions (those always go through direct method calls
on pkg/backup and pkg/lifecycle, never through this broker).

# Limitations

In-memory only, no persistence, no replay, no delivery guarantee. A
subscriber that needs a durable record (the audit log) must consume and
persist promptly; the broker does not buffer on its behalf beyond the
fixed per-subscriber channel depth.
*/
package events
