package domain

import "time"

// NotificationType discriminates delivery channels. Email is the only one.
type NotificationType string

const NotificationEmail NotificationType = "e"

// NotificationMessage is the rendered payload handed to delivery.
type NotificationMessage struct {
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	BodyHTML  string `json:"body_html"`
	Recipient string `json:"recipient"`
}

// Notification is one outbound roll-up message for one search. SentAt is
// stamped exactly once by the delivery step; created → sent is the whole
// state machine.
type Notification struct {
	ID        int64
	SearchID  int64
	UserID    int64
	Type      NotificationType
	Message   NotificationMessage
	CreatedAt time.Time
	SentAt    *time.Time
}
