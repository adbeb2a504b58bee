// Package notify abstracts the notification transport. The pipeline decides
// when to notify and with what content; the transport owns delivery mechanics.
package notify

import "context"

type Type string

const (
	TypeEmail Type = "email"
	TypeSlack Type = "slack"
	TypePush  Type = "push"
)

// Notification is one outbound message.
type Notification struct {
	Type      Type
	Recipient string
	Subject   string
	Body      string
}

type Transport interface {
	Send(ctx context.Context, n Notification) error
}
