package models

// Conversation summarizes the chat history with one partner: the most
// recent message exchanged and how many of the partner's messages are
// still unread.
type Conversation struct {
	PartnerID   string  `json:"partner_id"`
	PartnerName string  `json:"partner_name"`
	LastMessage Message `json:"last_message"`
	UnreadCount int     `json:"unread_count"`
}
