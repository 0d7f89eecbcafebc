package conversation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/zhouzirui/moodchat/internal/model/chat"
)

func msgs(pairs ...string) []chat.Message {
	out := make([]chat.Message, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, chat.Message{Sender: chat.Sender(pairs[i]), Text: pairs[i+1]})
	}
	return out
}

func TestTitleFromFirstLongUserMessage(t *testing.T) {
	a := New()
	got := a.Title(msgs(
		"user", "hi there",
		"bot", "Hello! What would you like to talk about today?",
		"user", "TELL me about your RESEARCH on machine consciousness please",
	))
	assert.Equal(t, "Tell me about your research", got)
}

func TestTitleTruncatesLongWords(t *testing.T) {
	long := strings.Repeat("a", 60)
	got := New().Title(msgs("user", long))
	assert.Len(t, []rune(got), 50)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestTitleFallsBackToTimestamp(t *testing.T) {
	fixed := time.Date(2025, 6, 7, 8, 9, 0, 0, time.UTC)
	a := New().WithClock(func() time.Time { return fixed })
	assert.Equal(t, "Conversation 2025-06-07 08:09", a.Title(msgs("user", "short", "bot", "a much longer bot reply")))
}

func TestAnalyzeResearchConversation(t *testing.T) {
	conv := msgs(
		"user", "I'm interested in your research on AI and consciousness.",
		"bot", "I'm excited to discuss my research! I study how systems develop understanding.",
		"user", "What methodology do you use for analysis?",
		"bot", "I combine theoretical analysis with practical experiment design and careful review of the literature.",
	)

	got := New().Analyze(conv)

	assert.Equal(t, "I'm interested in your research", got.Title)
	assert.Equal(t, "academic", got.ConversationType)
	assert.Equal(t, []string{"AI", "research"}, got.Topics)
	assert.Equal(t, "Conversation with 2 user messages and 2 responses about AI, research", got.Description)
	// base 0.5 + 4 messages + >200 chars + balanced + several topics
	assert.InDelta(t, 1.0, got.QualityScore, 1e-9)
	assert.Equal(t, TonePositive, got.EmotionalTone)
	assert.Equal(t, DepthModerate, got.ConversationDepth)
}

func TestAnalyzeSmallTalk(t *testing.T) {
	got := New().Analyze(msgs("user", "hello", "bot", "hi, nice to see you"))

	assert.Equal(t, "casual", got.ConversationType)
	assert.Equal(t, []string{TopicGeneral}, got.Topics)
	assert.InDelta(t, 0.6, got.QualityScore, 1e-9)
	assert.Equal(t, ToneNeutral, got.EmotionalTone)
	assert.Equal(t, DepthShallow, got.ConversationDepth)
}

func TestClassifyWithoutHitsIsGeneral(t *testing.T) {
	assert.Equal(t, TypeGeneral, Classify("zzz"))
}

func TestShortKeywordsMatchWholeWords(t *testing.T) {
	assert.Equal(t, []string{TopicGeneral}, Topics("she said it again"))
	assert.Equal(t, []string{"AI"}, Topics("is AI safe?"))
}

func TestToneNegative(t *testing.T) {
	assert.Equal(t, ToneNegative, tone("this is terrible and I feel sad"))
}
