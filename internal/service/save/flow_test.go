package save

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/moodchat/internal/client"
	"github.com/zhouzirui/moodchat/internal/model/chat"
	"github.com/zhouzirui/moodchat/internal/service/transcript"
)

type fakeBackend struct {
	analysis   *chat.Analysis
	analyzeErr error
	saveErr    error

	analyzed [][]chat.Message
	saved    []client.SaveRequest
}

func (f *fakeBackend) AnalyzeConversation(_ context.Context, messages []chat.Message) (*chat.Analysis, error) {
	f.analyzed = append(f.analyzed, messages)
	if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	return f.analysis, nil
}

func (f *fakeBackend) SaveConversation(_ context.Context, req client.SaveRequest) (string, error) {
	f.saved = append(f.saved, req)
	if f.saveErr != nil {
		return "", f.saveErr
	}
	return "conv-1", nil
}

func seeded(t *testing.T, mode transcript.Mode) (*transcript.Transcript, *transcript.Renderer) {
	t.Helper()
	tr := transcript.New()
	r := transcript.NewRenderer(tr, transcript.Options{Mode: mode, Interval: 0})

	r.Render(context.Background(), "  hello  ", chat.SenderUser)
	reply := r.Render(context.Background(), "hi there", chat.SenderBot)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, reply.Wait(ctx))
	return tr, r
}

func TestCaptureSkipsPlaceholdersAndBlankText(t *testing.T) {
	tr, r := seeded(t, transcript.ModeStyled)
	r.RenderPending()
	r.Render(context.Background(), "   ", chat.SenderUser)

	want := []chat.Message{
		{Sender: chat.SenderUser, Text: "hello"},
		{Sender: chat.SenderBot, Text: "hi there"},
	}
	if diff := cmp.Diff(want, Capture(tr)); diff != "" {
		t.Fatalf("capture mismatch (-want +got):\n%s", diff)
	}
}

func TestCaptureReadsEditedText(t *testing.T) {
	tr, r := seeded(t, transcript.ModeEditable)
	node := r.Render(context.Background(), "draft", chat.SenderUser)
	require.NoError(t, node.SetText("curated answer"))

	got := Capture(tr)
	require.Len(t, got, 3)
	assert.Equal(t, "curated answer", got[2].Text)
}

func TestOpenUsesAnalysis(t *testing.T) {
	tr, _ := seeded(t, transcript.ModeStyled)
	backend := &fakeBackend{analysis: &chat.Analysis{Title: "Greeting", Description: "short hello", QualityScore: 0.6}}
	flow := NewFlow(tr, backend)

	draft, err := flow.Open(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Greeting", draft.Title)
	assert.Equal(t, "short hello", draft.Description)
	assert.InDelta(t, 0.6, draft.QualityScore, 1e-9)
	assert.False(t, draft.Fallback())
	require.Len(t, backend.analyzed, 1)
	assert.Len(t, backend.analyzed[0], 2)

	open, ok := flow.Draft()
	require.True(t, ok)
	assert.Equal(t, draft.Title, open.Title)
}

func TestOpenFallsBackWhenAnalysisFails(t *testing.T) {
	tr, _ := seeded(t, transcript.ModeStyled)
	backend := &fakeBackend{analyzeErr: errors.New("boom")}
	fixed := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	flow := NewFlow(tr, backend, WithClock(func() time.Time { return fixed }))

	draft, err := flow.Open(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Conversation 2025-03-04 05:06:07", draft.Title)
	assert.Equal(t, FallbackDescription, draft.Description)
	assert.InDelta(t, FallbackQuality, draft.QualityScore, 1e-9)
	assert.True(t, draft.Fallback())
}

func TestOpenEmptyConversation(t *testing.T) {
	backend := &fakeBackend{}
	flow := NewFlow(transcript.New(), backend)

	_, err := flow.Open(context.Background())
	assert.ErrorIs(t, err, ErrNothingToSave)
	assert.Empty(t, backend.analyzed)
	_, ok := flow.Draft()
	assert.False(t, ok)
}

func TestConfirmValidatesBeforeSaving(t *testing.T) {
	tr, _ := seeded(t, transcript.ModeStyled)
	backend := &fakeBackend{analysis: &chat.Analysis{Title: "T", QualityScore: 0.5}}
	flow := NewFlow(tr, backend)

	draft, err := flow.Open(context.Background())
	require.NoError(t, err)

	bad := draft
	bad.QualityScore = 1.5
	_, err = flow.Confirm(context.Background(), bad)
	assert.ErrorIs(t, err, ErrQualityOutOfRange)

	bad = draft
	bad.Title = "   "
	_, err = flow.Confirm(context.Background(), bad)
	assert.ErrorIs(t, err, ErrTitleRequired)

	assert.Empty(t, backend.saved)
	_, ok := flow.Draft()
	assert.True(t, ok)
}

func TestConfirmSavesAndClosesDraft(t *testing.T) {
	tr, _ := seeded(t, transcript.ModeStyled)
	backend := &fakeBackend{analysis: &chat.Analysis{Title: "T", QualityScore: 0.5}}
	flow := NewFlow(tr, backend)

	draft, err := flow.Open(context.Background())
	require.NoError(t, err)
	draft.Title = "  Edited title "
	draft.QualityScore = 0.9

	id, err := flow.Confirm(context.Background(), draft)
	require.NoError(t, err)
	assert.Equal(t, "conv-1", id)

	require.Len(t, backend.saved, 1)
	assert.Equal(t, "Edited title", backend.saved[0].Title)
	assert.InDelta(t, 0.9, backend.saved[0].QualityScore, 1e-9)
	assert.Len(t, backend.saved[0].Conversation, 2)

	_, ok := flow.Draft()
	assert.False(t, ok)
}

func TestConfirmRejectedKeepsDraftOpen(t *testing.T) {
	tr, _ := seeded(t, transcript.ModeStyled)
	backend := &fakeBackend{
		analysis: &chat.Analysis{Title: "T", QualityScore: 0.5},
		saveErr:  client.ErrRejected,
	}
	flow := NewFlow(tr, backend)

	draft, err := flow.Open(context.Background())
	require.NoError(t, err)
	draft.Description = "my notes"

	_, err = flow.Confirm(context.Background(), draft)
	assert.ErrorIs(t, err, client.ErrRejected)

	open, ok := flow.Draft()
	require.True(t, ok)
	assert.Equal(t, "my notes", open.Description)
}

func TestConfirmWithoutDraft(t *testing.T) {
	backend := &fakeBackend{}
	flow := NewFlow(transcript.New(), backend)

	_, err := flow.Confirm(context.Background(), Draft{Title: "x", Messages: []chat.Message{{Sender: chat.SenderUser, Text: "x"}}})
	assert.ErrorIs(t, err, ErrNoDraft)
	assert.Empty(t, backend.saved)
}

func TestCancelDiscardsDraft(t *testing.T) {
	tr, _ := seeded(t, transcript.ModeStyled)
	flow := NewFlow(tr, &fakeBackend{analysis: &chat.Analysis{Title: "T"}})

	_, err := flow.Open(context.Background())
	require.NoError(t, err)
	flow.Cancel()

	_, ok := flow.Draft()
	assert.False(t, ok)
}
