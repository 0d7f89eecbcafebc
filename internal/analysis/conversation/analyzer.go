// Package conversation derives save metadata from a finished conversation
// using keyword heuristics.
package conversation

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/zhouzirui/moodchat/internal/model/chat"
)

const (
	TypeGeneral  = "general"
	TopicGeneral = "general"

	ToneNeutral  = "neutral"
	TonePositive = "positive"
	ToneNegative = "negative"

	DepthShallow  = "shallow"
	DepthModerate = "moderate"
	DepthDeep     = "deep"

	titleLayout = "2006-01-02 15:04"
)

type keywordGroup struct {
	name     string
	keywords []string
}

// 顺序决定得分相同时的优先级。
var typeKeywords = []keywordGroup{
	{"academic", []string{"research", "study", "paper", "analysis", "methodology", "academic"}},
	{"technical", []string{"code", "programming", "algorithm", "system", "implementation"}},
	{"emotional", []string{"feel", "emotion", "sad", "happy", "excited", "worried"}},
	{"casual", []string{"hello", "how are you", "nice", "good", "thanks", "thank you"}},
	{"philosophical", []string{"think", "believe", "philosophy", "meaning", "purpose", "existence"}},
}

var topicKeywords = []keywordGroup{
	{"AI", []string{"ai", "artificial intelligence", "machine learning", "neural network"}},
	{"research", []string{"research", "study", "experiment", "analysis", "methodology"}},
	{"technology", []string{"technology", "tech", "software", "computer", "digital"}},
	{"philosophy", []string{"philosophy", "ethics", "morality", "meaning", "purpose"}},
	{"personal", []string{"personal", "life", "experience", "feelings", "emotions"}},
	{"academic", []string{"academic", "university", "education", "learning", "knowledge"}},
}

var complexTopics = map[string]bool{"AI": true, "research": true, "philosophy": true, "academic": true}

var positiveWords = []string{"happy", "excited", "great", "wonderful", "amazing", "love", "enjoy"}
var negativeWords = []string{"sad", "angry", "frustrated", "worried", "hate", "terrible", "awful", "bad"}

// Analyzer is stateless apart from its clock.
type Analyzer struct {
	now func() time.Time
}

func New() *Analyzer {
	return &Analyzer{now: time.Now}
}

// WithClock returns a copy using now for generated titles.
func (a *Analyzer) WithClock(now func() time.Time) *Analyzer {
	return &Analyzer{now: now}
}

// Analyze returns the suggested metadata for messages.
func (a *Analyzer) Analyze(messages []chat.Message) chat.Analysis {
	text := joinedText(messages)
	topics := Topics(text)

	return chat.Analysis{
		Title:             a.Title(messages),
		Description:       description(messages, topics),
		QualityScore:      quality(messages, topics),
		ConversationType:  Classify(text),
		Topics:            topics,
		EmotionalTone:     tone(text),
		ConversationDepth: depth(messages, topics),
	}
}

// FallbackTitle is used when no message is suitable as a title.
func (a *Analyzer) FallbackTitle() string {
	return "Conversation " + a.now().Format(titleLayout)
}

// Title is built from the first user message longer than ten characters:
// its first five words, capitalized, at most fifty characters.
func (a *Analyzer) Title(messages []chat.Message) string {
	for _, msg := range messages {
		if msg.Sender != chat.SenderUser || utf8.RuneCountInString(msg.Text) <= 10 {
			continue
		}
		words := strings.Fields(msg.Text)
		if len(words) > 5 {
			words = words[:5]
		}
		title := capitalize(strings.Join(words, " "))
		if r := []rune(title); len(r) > 50 {
			title = string(r[:47]) + "..."
		}
		return title
	}
	return a.FallbackTitle()
}

// Classify picks the conversation type with the most keyword hits.
func Classify(text string) string {
	text = strings.ToLower(text)
	best, bestScore := TypeGeneral, 0
	for _, group := range typeKeywords {
		score := 0
		for _, kw := range group.keywords {
			if containsKeyword(text, kw) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = group.name, score
		}
	}
	return best
}

// Topics lists every topic with at least one keyword hit, or "general".
func Topics(text string) []string {
	text = strings.ToLower(text)
	var topics []string
	for _, group := range topicKeywords {
		for _, kw := range group.keywords {
			if containsKeyword(text, kw) {
				topics = append(topics, group.name)
				break
			}
		}
	}
	if len(topics) == 0 {
		return []string{TopicGeneral}
	}
	return topics
}

func description(messages []chat.Message, topics []string) string {
	if len(messages) == 0 {
		return "No conversation content available"
	}
	users, bots := countSenders(messages)
	desc := fmt.Sprintf("Conversation with %d user messages and %d responses", users, bots)
	if len(topics) > 3 {
		topics = topics[:3]
	}
	if len(topics) > 0 {
		desc += " about " + strings.Join(topics, ", ")
	}
	return desc
}

func quality(messages []chat.Message, topics []string) float64 {
	if len(messages) == 0 {
		return 0
	}

	score := 0.5
	if len(messages) >= 4 {
		score += 0.2
	}
	if totalLength(messages) > 200 {
		score += 0.1
	}
	if users, bots := countSenders(messages); users > 0 && bots > 0 {
		score += 0.1
	}
	if len(topics) > 1 {
		score += 0.1
	}
	return math.Round(math.Min(1, score)*100) / 100
}

func tone(text string) string {
	text = strings.ToLower(text)
	positive, negative := 0, 0
	for _, w := range positiveWords {
		if strings.Contains(text, w) {
			positive++
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(text, w) {
			negative++
		}
	}
	switch {
	case positive > negative:
		return TonePositive
	case negative > positive:
		return ToneNegative
	default:
		return ToneNeutral
	}
}

func depth(messages []chat.Message, topics []string) string {
	if len(messages) == 0 {
		return DepthShallow
	}

	avg := float64(totalLength(messages)) / float64(len(messages))
	complex := false
	for _, t := range topics {
		if complexTopics[t] {
			complex = true
			break
		}
	}
	long := 0
	for _, msg := range messages {
		if utf8.RuneCountInString(msg.Text) > 100 {
			long++
		}
	}

	switch {
	case avg > 80 && complex && float64(long) > float64(len(messages))/2:
		return DepthDeep
	case avg > 50 || complex:
		return DepthModerate
	default:
		return DepthShallow
	}
}

func joinedText(messages []chat.Message) string {
	parts := make([]string, 0, len(messages))
	for _, msg := range messages {
		parts = append(parts, msg.Text)
	}
	return strings.Join(parts, " ")
}

func totalLength(messages []chat.Message) int {
	n := 0
	for _, msg := range messages {
		n += utf8.RuneCountInString(msg.Text)
	}
	return n
}

func countSenders(messages []chat.Message) (users, bots int) {
	for _, msg := range messages {
		switch msg.Sender {
		case chat.SenderUser:
			users++
		case chat.SenderBot:
			bots++
		}
	}
	return users, bots
}

// containsKeyword matches phrases anywhere, but keywords of two letters or
// fewer only as whole words ("ai" must not match "said").
func containsKeyword(text, kw string) bool {
	if utf8.RuneCountInString(kw) > 2 {
		return strings.Contains(text, kw)
	}
	for _, word := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if word == kw {
			return true
		}
	}
	return false
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	r := []rune(strings.ToLower(s))
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
