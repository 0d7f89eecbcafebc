package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/zhouzirui/moodchat/internal/model/chat"
)

// SQLite persists to a single database file through the pure-Go driver.
type SQLite struct {
	db   *sql.DB
	path string
}

// NewSQLite opens (and if needed creates) the database at path.
func NewSQLite(path string) (*SQLite, error) {
	if path == "" {
		path = "moodchat.db"
	}
	if !strings.HasPrefix(path, ":") && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer at a time keeps SQLITE_BUSY away
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, path: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) initialize() error {
	emotionTable := `
	CREATE TABLE IF NOT EXISTS emotional_states (
		id TEXT PRIMARY KEY,
		emotion TEXT NOT NULL,
		intensity REAL NOT NULL,
		trigger TEXT,
		conversation_context TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_emotion_created ON emotional_states(created_at);
	`

	memoryTable := `
	CREATE TABLE IF NOT EXISTS memory_stream (
		id TEXT PRIMARY KEY,
		user_message TEXT NOT NULL,
		agent_response TEXT NOT NULL,
		conversation_topic TEXT,
		emotional_context TEXT,
		importance_score REAL NOT NULL DEFAULT 0.5,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);
	`

	conversationTable := `
	CREATE TABLE IF NOT EXISTS saved_conversations (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		conversation_type TEXT,
		topics TEXT,
		quality_score REAL NOT NULL,
		usage_count INTEGER NOT NULL DEFAULT 0,
		conversation_data TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	`

	for _, table := range []string{emotionTable, memoryTable, conversationTable} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

func (s *SQLite) RecordEmotion(ctx context.Context, rec chat.EmotionRecord) (chat.EmotionRecord, error) {
	rec.ID = uuid.NewString()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO emotional_states (id, emotion, intensity, trigger, conversation_context, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Emotion, rec.Intensity, rec.Trigger, rec.Context, formatTime(rec.CreatedAt))
	if err != nil {
		return chat.EmotionRecord{}, fmt.Errorf("insert emotion: %w", err)
	}
	return rec, nil
}

func (s *SQLite) LatestEmotion(ctx context.Context) (chat.EmotionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, emotion, intensity, trigger, conversation_context, created_at
		 FROM emotional_states ORDER BY created_at DESC, rowid DESC LIMIT 1`)

	var rec chat.EmotionRecord
	var trigger, convCtx sql.NullString
	var created string
	if err := row.Scan(&rec.ID, &rec.Emotion, &rec.Intensity, &trigger, &convCtx, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return chat.EmotionRecord{}, ErrNotFound
		}
		return chat.EmotionRecord{}, fmt.Errorf("query latest emotion: %w", err)
	}
	rec.Trigger = trigger.String
	rec.Context = convCtx.String
	rec.CreatedAt = parseTime(created)
	return rec, nil
}

func (s *SQLite) AddMemory(ctx context.Context, entry chat.MemoryEntry) (chat.MemoryEntry, error) {
	entry.ID = uuid.NewString()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memory_stream (id, user_message, agent_response, conversation_topic, emotional_context, importance_score, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.UserMessage, entry.AgentResponse, entry.ConversationTopic,
		entry.EmotionalContext, entry.ImportanceScore, entry.Active, formatTime(entry.CreatedAt))
	if err != nil {
		return chat.MemoryEntry{}, fmt.Errorf("insert memory: %w", err)
	}
	return entry, nil
}

func (s *SQLite) Memories(ctx context.Context, limit int) ([]chat.MemoryEntry, error) {
	query := `SELECT id, user_message, agent_response, conversation_topic, emotional_context, importance_score, is_active, created_at
		FROM memory_stream WHERE is_active = 1 ORDER BY importance_score DESC, rowid ASC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	var out []chat.MemoryEntry
	for rows.Next() {
		var entry chat.MemoryEntry
		var topic, emotional sql.NullString
		var created string
		if err := rows.Scan(&entry.ID, &entry.UserMessage, &entry.AgentResponse, &topic, &emotional,
			&entry.ImportanceScore, &entry.Active, &created); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		entry.ConversationTopic = topic.String
		entry.EmotionalContext = emotional.String
		entry.CreatedAt = parseTime(created)
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *SQLite) SaveConversation(ctx context.Context, conv chat.SavedConversation) (chat.SavedConversation, error) {
	conv.ID = uuid.NewString()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}

	topics, err := json.Marshal(conv.Topics)
	if err != nil {
		return chat.SavedConversation{}, fmt.Errorf("encode topics: %w", err)
	}
	messages, err := json.Marshal(conv.Messages)
	if err != nil {
		return chat.SavedConversation{}, fmt.Errorf("encode conversation: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO saved_conversations (id, title, description, conversation_type, topics, quality_score, usage_count, conversation_data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		conv.ID, conv.Title, conv.Description, conv.ConversationType, string(topics),
		conv.QualityScore, conv.UsageCount, string(messages), formatTime(conv.CreatedAt))
	if err != nil {
		return chat.SavedConversation{}, fmt.Errorf("insert conversation: %w", err)
	}
	return conv, nil
}

func (s *SQLite) Conversations(ctx context.Context) ([]chat.SavedConversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, description, conversation_type, topics, quality_score, usage_count, conversation_data, created_at
		 FROM saved_conversations ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	out := []chat.SavedConversation{}
	for rows.Next() {
		var conv chat.SavedConversation
		var description, convType, topics sql.NullString
		var messages, created string
		if err := rows.Scan(&conv.ID, &conv.Title, &description, &convType, &topics,
			&conv.QualityScore, &conv.UsageCount, &messages, &created); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conv.Description = description.String
		conv.ConversationType = convType.String
		if topics.Valid && topics.String != "" {
			if err := json.Unmarshal([]byte(topics.String), &conv.Topics); err != nil {
				return nil, fmt.Errorf("decode topics of %s: %w", conv.ID, err)
			}
		}
		if err := json.Unmarshal([]byte(messages), &conv.Messages); err != nil {
			return nil, fmt.Errorf("decode conversation %s: %w", conv.ID, err)
		}
		conv.CreatedAt = parseTime(created)
		out = append(out, conv)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// timeLayout is fixed width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
