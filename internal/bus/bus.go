package bus

// Notification is a text message queued for delivery to a chat.
type Notification struct {
	ChatID int64
	Text   string
}
