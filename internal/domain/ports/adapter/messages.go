package adapter

import "time"

// MessageKind selects which configured template to render.
type MessageKind string

const (
	MessageSuccess MessageKind = "success"
	MessageError   MessageKind = "error"
)

// MessageData carries the placeholder values for a template.
type MessageData struct {
	Code             string
	Name             string
	Email            string
	Phone            string
	PurchaseLocation string
	Date             time.Time
}

// MessageRenderer resolves the public message shown to the end user.
type MessageRenderer interface {
	Render(kind MessageKind, data MessageData) string
}
