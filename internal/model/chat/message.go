package chat

import "time"

// Sender identifies who authored a transcript message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Valid reports whether s is one of the known senders.
func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderBot
}

// Message is one rendered turn of the conversation as exchanged with the backend.
type Message struct {
	Sender Sender `json:"sender"`
	Text   string `json:"text"`
}

// StoredMessage is a message persisted by the backend together with its receipt time.
type StoredMessage struct {
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}
