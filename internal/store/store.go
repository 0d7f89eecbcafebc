// Package store persists what the development backend remembers: emotion
// history, the character's memories and saved conversations.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zhouzirui/moodchat/internal/model/chat"
)

var ErrNotFound = errors.New("not found")

// Store is implemented by the in-memory and SQLite backends.
type Store interface {
	RecordEmotion(ctx context.Context, rec chat.EmotionRecord) (chat.EmotionRecord, error)
	// LatestEmotion returns ErrNotFound when nothing was recorded yet.
	LatestEmotion(ctx context.Context) (chat.EmotionRecord, error)

	AddMemory(ctx context.Context, entry chat.MemoryEntry) (chat.MemoryEntry, error)
	// Memories returns active entries, most important first. limit <= 0 means all.
	Memories(ctx context.Context, limit int) ([]chat.MemoryEntry, error)

	SaveConversation(ctx context.Context, conv chat.SavedConversation) (chat.SavedConversation, error)
	// Conversations returns saved conversations, newest first.
	Conversations(ctx context.Context) ([]chat.SavedConversation, error)

	Close() error
}

// Open returns the backend named by driver: "memory" or "sqlite".
func Open(driver, dsn string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		return NewSQLite(dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
