package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/moodchat/internal/model/chat"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := NewSQLite(filepath.Join(t.TempDir(), "data", "moodchat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": sqlite,
	}
}

func TestLatestEmotion(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.LatestEmotion(ctx)
			assert.ErrorIs(t, err, ErrNotFound)

			base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
			_, err = s.RecordEmotion(ctx, chat.EmotionRecord{Emotion: "calm", Intensity: 0.4, CreatedAt: base})
			require.NoError(t, err)
			_, err = s.RecordEmotion(ctx, chat.EmotionRecord{Emotion: "excited", Intensity: 0.9, Trigger: "User message: hi...", CreatedAt: base.Add(time.Second)})
			require.NoError(t, err)

			latest, err := s.LatestEmotion(ctx)
			require.NoError(t, err)
			assert.Equal(t, "excited", latest.Emotion)
			assert.InDelta(t, 0.9, latest.Intensity, 1e-9)
			assert.Equal(t, "User message: hi...", latest.Trigger)
			assert.True(t, latest.CreatedAt.Equal(base.Add(time.Second)))
			assert.NotEmpty(t, latest.ID)
		})
	}
}

func TestMemoriesOrderedByImportance(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, entry := range []chat.MemoryEntry{
				{UserMessage: "a", AgentResponse: "ra", ImportanceScore: 0.5, Active: true},
				{UserMessage: "b", AgentResponse: "rb", ImportanceScore: 0.9, Active: true},
				{UserMessage: "c", AgentResponse: "rc", ImportanceScore: 1.0, Active: false},
				{UserMessage: "d", AgentResponse: "rd", ImportanceScore: 0.7, Active: true},
			} {
				_, err := s.AddMemory(ctx, entry)
				require.NoError(t, err)
			}

			all, err := s.Memories(ctx, 0)
			require.NoError(t, err)
			var order []string
			for _, m := range all {
				order = append(order, m.UserMessage)
			}
			assert.Equal(t, []string{"b", "d", "a"}, order)

			top, err := s.Memories(ctx, 1)
			require.NoError(t, err)
			require.Len(t, top, 1)
			assert.Equal(t, "b", top[0].UserMessage)
			assert.True(t, top[0].Active)
		})
	}
}

func TestConversationsNewestFirst(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

			first, err := s.SaveConversation(ctx, chat.SavedConversation{
				Title:        "first",
				QualityScore: 0.5,
				Topics:       []string{"general"},
				Messages:     []chat.StoredMessage{{Sender: chat.SenderUser, Text: "hello", Timestamp: base}},
				CreatedAt:    base,
			})
			require.NoError(t, err)
			assert.NotEmpty(t, first.ID)

			_, err = s.SaveConversation(ctx, chat.SavedConversation{
				Title:            "second",
				Description:      "later one",
				ConversationType: "casual",
				QualityScore:     0.8,
				Messages:         []chat.StoredMessage{{Sender: chat.SenderBot, Text: "hi", Timestamp: base}},
				CreatedAt:        base.Add(time.Minute),
			})
			require.NoError(t, err)

			list, err := s.Conversations(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "second", list[0].Title)
			assert.Equal(t, "casual", list[0].ConversationType)
			assert.Equal(t, "first", list[1].Title)
			assert.Equal(t, []string{"general"}, list[1].Topics)
			require.Len(t, list[1].Messages, 1)
			assert.Equal(t, "hello", list[1].Messages[0].Text)
		})
	}
}

func TestOpen(t *testing.T) {
	s, err := Open("", "")
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open("SQLite", filepath.Join(t.TempDir(), "x.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, s)
	require.NoError(t, s.Close())

	_, err = Open("postgres", "")
	assert.Error(t, err)
}
