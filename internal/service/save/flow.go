// Package save captures the rendered conversation and walks it through the
// analyze, annotate and save steps.
package save

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/moodchat/internal/client"
	"github.com/zhouzirui/moodchat/internal/model/chat"
	"github.com/zhouzirui/moodchat/internal/service/transcript"
)

const (
	FallbackDescription = "Conversation analysis failed"
	FallbackQuality     = 0.5
	fallbackTitleLayout = "2006-01-02 15:04:05"
)

var (
	ErrNothingToSave     = errors.New("conversation is empty")
	ErrTitleRequired     = errors.New("title is required")
	ErrQualityOutOfRange = errors.New("quality score must be between 0 and 1")
	ErrNoDraft           = errors.New("no save in progress")
)

// Backend is the part of the HTTP client the flow needs.
type Backend interface {
	AnalyzeConversation(ctx context.Context, messages []chat.Message) (*chat.Analysis, error)
	SaveConversation(ctx context.Context, req client.SaveRequest) (string, error)
}

// Draft is the annotated conversation awaiting confirmation.
type Draft struct {
	Messages     []chat.Message
	Title        string
	Description  string
	QualityScore float64
	// Analysis is nil when the fallback metadata was used.
	Analysis *chat.Analysis
}

// Fallback reports whether the metadata was substituted locally.
func (d Draft) Fallback() bool { return d.Analysis == nil }

// Validate checks the user-editable fields.
func (d Draft) Validate() error {
	if len(d.Messages) == 0 {
		return ErrNothingToSave
	}
	if strings.TrimSpace(d.Title) == "" {
		return ErrTitleRequired
	}
	if math.IsNaN(d.QualityScore) || d.QualityScore < 0 || d.QualityScore > 1 {
		return ErrQualityOutOfRange
	}
	return nil
}

type Option func(*Flow)

// WithClock overrides the time source used for the fallback title.
func WithClock(now func() time.Time) Option {
	return func(f *Flow) { f.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(f *Flow) {
		if l != nil {
			f.logger = l
		}
	}
}

// Flow owns at most one draft at a time.
type Flow struct {
	transcript *transcript.Transcript
	backend    Backend
	logger     *zap.Logger
	now        func() time.Time

	mu    sync.Mutex
	draft *Draft
}

func NewFlow(t *transcript.Transcript, backend Backend, opts ...Option) *Flow {
	f := &Flow{
		transcript: t,
		backend:    backend,
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Capture returns the rendered messages in transcript order. Pending
// placeholders and messages without text are skipped; text is trimmed.
func Capture(t *transcript.Transcript) []chat.Message {
	var messages []chat.Message
	for _, v := range t.Views() {
		if v.Pending {
			continue
		}
		text := strings.TrimSpace(v.Text)
		if text == "" {
			continue
		}
		messages = append(messages, chat.Message{Sender: v.Sender, Text: text})
	}
	return messages
}

// Capture reads the transcript the flow is bound to.
func (f *Flow) Capture() []chat.Message {
	return Capture(f.transcript)
}

// Open captures the conversation and asks the backend for metadata. When the
// analysis fails a local fallback is used, so Open only errors on an empty
// conversation.
func (f *Flow) Open(ctx context.Context) (Draft, error) {
	messages := f.Capture()
	if len(messages) == 0 {
		return Draft{}, ErrNothingToSave
	}

	draft := Draft{Messages: messages}
	analysis, err := f.backend.AnalyzeConversation(ctx, messages)
	if err != nil {
		f.logger.Warn("[save] analysis failed, using fallback", zap.Error(err))
		draft.Title = "Conversation " + f.now().Format(fallbackTitleLayout)
		draft.Description = FallbackDescription
		draft.QualityScore = FallbackQuality
	} else {
		draft.Title = analysis.Title
		draft.Description = analysis.Description
		draft.QualityScore = analysis.QualityScore
		draft.Analysis = analysis
	}

	f.mu.Lock()
	f.draft = &draft
	f.mu.Unlock()

	f.logger.Debug("[save] draft opened",
		zap.Int("messages", len(messages)),
		zap.Bool("fallback", draft.Fallback()))
	return draft, nil
}

// Draft returns the open draft, if any.
func (f *Flow) Draft() (Draft, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.draft == nil {
		return Draft{}, false
	}
	return *f.draft, true
}

// Confirm validates d and saves it. Validation errors are returned before
// any network call. On success the draft is closed; when the server refuses
// the draft stays open with d's edits.
func (f *Flow) Confirm(ctx context.Context, d Draft) (string, error) {
	f.mu.Lock()
	open := f.draft != nil
	f.mu.Unlock()
	if !open {
		return "", ErrNoDraft
	}
	if err := d.Validate(); err != nil {
		return "", err
	}

	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)

	id, err := f.backend.SaveConversation(ctx, client.SaveRequest{
		Conversation: d.Messages,
		Title:        d.Title,
		Description:  d.Description,
		QualityScore: d.QualityScore,
	})
	if err != nil {
		f.mu.Lock()
		if f.draft != nil {
			f.draft = &d
		}
		f.mu.Unlock()
		return "", fmt.Errorf("save conversation: %w", err)
	}

	f.Cancel()
	f.logger.Info("[save] conversation saved", zap.String("id", id), zap.String("title", d.Title))
	return id, nil
}

// Cancel discards the open draft.
func (f *Flow) Cancel() {
	f.mu.Lock()
	f.draft = nil
	f.mu.Unlock()
}
