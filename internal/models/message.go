package models

import "time"

// Message mirrors a row in the messages table. The backend assigns ID
// and CreatedAt on insert; the only mutation after that is the unread
// to read transition, performed by the receiver's client.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	Read       bool      `json:"read"`
}

// InvolvedWith reports whether the message belongs to the conversation
// between the two given users, in either direction.
func (m Message) InvolvedWith(a, b string) bool {
	return (m.SenderID == a && m.ReceiverID == b) ||
		(m.SenderID == b && m.ReceiverID == a)
}
