package models

import "time"

// ChangeKind indicates what happened to a path under the source root.
type ChangeKind string

const (
	ChangeCreated  ChangeKind = "created"
	ChangeModified ChangeKind = "modified"
	ChangeDeleted  ChangeKind = "deleted"
	ChangeManual   ChangeKind = "manual" // Initial build or explicit request, no path
)

// BuildEvent is a notification that the source tree changed and a rebuild is due.
// Events are ephemeral: they are consumed by the next build and never persisted.
type BuildEvent struct {
	ID        string     `json:"id"`
	Path      string     `json:"path"`
	Kind      ChangeKind `json:"kind"`
	Timestamp time.Time  `json:"timestamp"`
}
