// Package audit records activation lifecycle events. Services emit through a
// Publisher; a background Worker drains events to a Sink so request latency
// never depends on the audit transport.
package audit

import "time"

// Action names one auditable activation or document operation.
type Action string

const (
	ActionStepSaved           Action = "activation.step_saved"
	ActionActivationCompleted Action = "activation.completed"
	ActionDocumentUploaded    Action = "document.uploaded"
	ActionDocumentReplaced    Action = "document.replaced"
	ActionDocumentDeleted     Action = "document.deleted"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so sinks can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	UserID    string    `json:"userId"`
	EntityID  string    `json:"entityId,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	RequestID string    `json:"requestId,omitempty"`
	Device    string    `json:"device,omitempty"`
}
