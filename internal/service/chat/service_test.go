package chat_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	modelchat "github.com/zhouzirui/moodchat/internal/model/chat"
	"github.com/zhouzirui/moodchat/internal/model/persona"
	"github.com/zhouzirui/moodchat/internal/service/ai"
	chat "github.com/zhouzirui/moodchat/internal/service/chat"
	"github.com/zhouzirui/moodchat/internal/store"
)

type stubReplier struct {
	reply ai.Reply
	err   error
	got   ai.Request
}

func (s *stubReplier) Name() string { return "stub" }

func (s *stubReplier) Reply(_ context.Context, req ai.Request) (ai.Reply, error) {
	s.got = req
	return s.reply, s.err
}

type recordingHub struct {
	mu   sync.Mutex
	recs []modelchat.EmotionRecord
}

func (h *recordingHub) Broadcast(rec modelchat.EmotionRecord) {
	h.mu.Lock()
	h.recs = append(h.recs, rec)
	h.mu.Unlock()
}

var fixed = time.Date(2024, 5, 6, 7, 8, 0, 0, time.UTC)

func newService(t *testing.T, r ai.Replier, opts ...chat.Option) (*chat.Service, store.Store) {
	t.Helper()
	st := store.NewMemory()
	p, _ := persona.NewMemoryStore(persona.Seed()).FindByID("charlotte")
	opts = append([]chat.Option{chat.WithClock(func() time.Time { return fixed })}, opts...)
	return chat.NewService(st, r, p, opts...), st
}

func TestSendRecordsEmotionAndMemory(t *testing.T) {
	replier := &stubReplier{reply: ai.Reply{Text: "hi there", Emotion: "happy", Intensity: 0.8}}
	hub := &recordingHub{}
	svc, st := newService(t, replier, chat.WithBroadcaster(hub))
	ctx := context.Background()

	reply, err := svc.Send(ctx, "  hello  ", " be kind ")
	if err != nil {
		t.Fatalf("Send err: %v", err)
	}
	if reply.Text != "hi there" {
		t.Fatalf("unexpected reply %q", reply.Text)
	}
	if replier.got.Message != "hello" || replier.got.Prompt != "be kind" {
		t.Fatalf("unexpected request %+v", replier.got)
	}

	latest, err := st.LatestEmotion(ctx)
	if err != nil {
		t.Fatalf("LatestEmotion err: %v", err)
	}
	if latest.Emotion != "happy" || latest.Intensity != 0.8 {
		t.Fatalf("unexpected emotion record %+v", latest)
	}
	if latest.Trigger != "User message: hello..." || latest.Context != "Response to: hello..." {
		t.Fatalf("unexpected trigger/context %q / %q", latest.Trigger, latest.Context)
	}

	memories, _ := st.Memories(ctx, 0)
	if len(memories) != 1 || memories[0].ConversationTopic != "general" || memories[0].EmotionalContext != "happy" {
		t.Fatalf("unexpected memories %+v", memories)
	}

	if len(hub.recs) != 1 || hub.recs[0].Emotion != "happy" {
		t.Fatalf("expected one broadcast, got %+v", hub.recs)
	}
}

func TestSendTruncatesTrigger(t *testing.T) {
	svc, st := newService(t, &stubReplier{reply: ai.Reply{Text: "ok", Emotion: "calm", Intensity: 0.5}})
	long := strings.Repeat("é", 150)

	if _, err := svc.Send(context.Background(), long, ""); err != nil {
		t.Fatalf("Send err: %v", err)
	}
	latest, _ := st.LatestEmotion(context.Background())
	if latest.Trigger != "User message: "+strings.Repeat("é", 100)+"..." {
		t.Fatalf("unexpected trigger %q", latest.Trigger)
	}
}

func TestSendRequiresMessage(t *testing.T) {
	svc, _ := newService(t, &stubReplier{})
	if _, err := svc.Send(context.Background(), "   ", ""); !errors.Is(err, chat.ErrMessageRequired) {
		t.Fatalf("expected ErrMessageRequired, got %v", err)
	}
}

func TestSendPropagatesReplierError(t *testing.T) {
	svc, st := newService(t, &stubReplier{err: errors.New("quota exceeded")})
	if _, err := svc.Send(context.Background(), "hi", ""); err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("expected replier error, got %v", err)
	}
	if _, err := st.LatestEmotion(context.Background()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("no emotion should be recorded on failure, got %v", err)
	}
}

func TestSendPassesMemoriesToReplier(t *testing.T) {
	replier := &stubReplier{reply: ai.Reply{Text: "ok", Emotion: "calm", Intensity: 0.5}}
	svc, _ := newService(t, replier)
	ctx := context.Background()

	if _, err := svc.PopulateInitialData(ctx); err != nil {
		t.Fatalf("PopulateInitialData err: %v", err)
	}
	if _, err := svc.Send(ctx, "hi", ""); err != nil {
		t.Fatalf("Send err: %v", err)
	}
	if len(replier.got.Memories) != 3 || replier.got.Memories[0].ImportanceScore != 0.9 {
		t.Fatalf("unexpected memories passed: %+v", replier.got.Memories)
	}
}

func TestCurrentEmotionDefaultsToInitialState(t *testing.T) {
	svc, _ := newService(t, &stubReplier{})
	rec := svc.CurrentEmotion(context.Background())
	if rec.Emotion != "happy" || rec.Intensity != 0.7 || !rec.CreatedAt.Equal(fixed) {
		t.Fatalf("unexpected default emotion %+v", rec)
	}
}

type brokenStore struct{ store.Store }

func (brokenStore) LatestEmotion(context.Context) (modelchat.EmotionRecord, error) {
	return modelchat.EmotionRecord{}, errors.New("disk on fire")
}

func TestCurrentEmotionFallsBackToNeutralOnError(t *testing.T) {
	p, _ := persona.NewMemoryStore(persona.Seed()).FindByID("charlotte")
	svc := chat.NewService(brokenStore{store.NewMemory()}, &stubReplier{}, p)

	rec := svc.CurrentEmotion(context.Background())
	if rec.Emotion != "neutral" || rec.Intensity != 0.5 {
		t.Fatalf("unexpected fallback emotion %+v", rec)
	}
}

func TestSaveAppliesDefaults(t *testing.T) {
	svc, _ := newService(t, &stubReplier{})

	saved, err := svc.Save(context.Background(), chat.SaveInput{
		Messages: []modelchat.Message{
			{Text: "Tell me about your AI research"},
			{Sender: modelchat.SenderBot, Text: "Happily!"},
		},
	})
	if err != nil {
		t.Fatalf("Save err: %v", err)
	}
	if saved.ID == "" {
		t.Fatalf("expected an id")
	}
	if saved.Title != "Conversation 2024-05-06 07:08" {
		t.Fatalf("unexpected title %q", saved.Title)
	}
	if saved.Description != "Conversation about AI, research" {
		t.Fatalf("unexpected description %q", saved.Description)
	}
	if saved.QualityScore != chat.DefaultSaveQuality {
		t.Fatalf("unexpected quality %v", saved.QualityScore)
	}
	if saved.ConversationType != "academic" {
		t.Fatalf("unexpected type %q", saved.ConversationType)
	}
	if saved.Messages[0].Sender != modelchat.SenderUser {
		t.Fatalf("missing sender should default to user, got %q", saved.Messages[0].Sender)
	}
}

func TestSaveKeepsExplicitValues(t *testing.T) {
	svc, _ := newService(t, &stubReplier{})
	q := 0.3

	saved, err := svc.Save(context.Background(), chat.SaveInput{
		Messages:     []modelchat.Message{{Sender: modelchat.SenderUser, Text: "hi"}},
		Title:        "Greeting",
		Description:  "Just hello",
		QualityScore: &q,
	})
	if err != nil {
		t.Fatalf("Save err: %v", err)
	}
	if saved.Title != "Greeting" || saved.Description != "Just hello" || saved.QualityScore != 0.3 {
		t.Fatalf("explicit values not kept: %+v", saved)
	}

	list, err := svc.Conversations(context.Background())
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one saved conversation, got %d (%v)", len(list), err)
	}
}

func TestSaveAndAnalyzeRequireMessages(t *testing.T) {
	svc, _ := newService(t, &stubReplier{})
	if _, err := svc.Save(context.Background(), chat.SaveInput{}); !errors.Is(err, chat.ErrNoConversation) {
		t.Fatalf("expected ErrNoConversation, got %v", err)
	}
	if _, err := svc.Analyze(nil); !errors.Is(err, chat.ErrNoConversation) {
		t.Fatalf("expected ErrNoConversation, got %v", err)
	}
}

func TestPopulateInitialData(t *testing.T) {
	svc, st := newService(t, &stubReplier{})
	n, err := svc.PopulateInitialData(context.Background())
	if err != nil {
		t.Fatalf("PopulateInitialData err: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 memories, got %d", n)
	}
	memories, _ := st.Memories(context.Background(), 0)
	if len(memories) != 3 || memories[0].ConversationTopic != "academic_research" {
		t.Fatalf("unexpected memories %+v", memories)
	}
}
