package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/moodchat/internal/model/chat"
)

// Memory keeps everything in process, suitable for local runs and tests.
type Memory struct {
	mu            sync.RWMutex
	emotions      []chat.EmotionRecord
	memories      []chat.MemoryEntry
	conversations []chat.SavedConversation
}

func NewMemory() *Memory {
	return &Memory{
		emotions:      make([]chat.EmotionRecord, 0, 16),
		memories:      make([]chat.MemoryEntry, 0, 16),
		conversations: make([]chat.SavedConversation, 0, 4),
	}
}

func (m *Memory) RecordEmotion(_ context.Context, rec chat.EmotionRecord) (chat.EmotionRecord, error) {
	rec.ID = uuid.NewString()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	m.emotions = append(m.emotions, rec)
	m.mu.Unlock()
	return rec, nil
}

func (m *Memory) LatestEmotion(_ context.Context) (chat.EmotionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.emotions) == 0 {
		return chat.EmotionRecord{}, ErrNotFound
	}
	return m.emotions[len(m.emotions)-1], nil
}

func (m *Memory) AddMemory(_ context.Context, entry chat.MemoryEntry) (chat.MemoryEntry, error) {
	entry.ID = uuid.NewString()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	m.memories = append(m.memories, entry)
	m.mu.Unlock()
	return entry, nil
}

func (m *Memory) Memories(_ context.Context, limit int) ([]chat.MemoryEntry, error) {
	m.mu.RLock()
	active := make([]chat.MemoryEntry, 0, len(m.memories))
	for _, entry := range m.memories {
		if entry.Active {
			active = append(active, entry)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(active, func(i, j int) bool {
		return active[i].ImportanceScore > active[j].ImportanceScore
	})
	if limit > 0 && len(active) > limit {
		active = active[:limit]
	}
	return active, nil
}

func (m *Memory) SaveConversation(_ context.Context, conv chat.SavedConversation) (chat.SavedConversation, error) {
	conv.ID = uuid.NewString()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}
	conv.Messages = append([]chat.StoredMessage(nil), conv.Messages...)
	conv.Topics = append([]string(nil), conv.Topics...)

	m.mu.Lock()
	m.conversations = append(m.conversations, conv)
	m.mu.Unlock()
	return conv, nil
}

func (m *Memory) Conversations(_ context.Context) ([]chat.SavedConversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]chat.SavedConversation, 0, len(m.conversations))
	for i := len(m.conversations) - 1; i >= 0; i-- {
		out = append(out, m.conversations[i])
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
