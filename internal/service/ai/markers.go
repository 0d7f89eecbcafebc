package ai

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	fallbackEmotion   = "neutral"
	fallbackIntensity = 0.5
)

// emotionInstruction is appended to the system prompt of marker-based models.
const emotionInstruction = `IMPORTANT: At the end of your response, include your current emotional state in this exact format:
[EMOTION: emotion_name]
[INTENSITY: 0.0-1.0] The higher the intensity, the more intense the emotion.

For example:
[EMOTION: happy]
[INTENSITY: 0.8]

Valid emotions: ` + validEmotionList

const validEmotionList = "happy, excited, content, calm, focused, thoughtful, concerned, worried, sad, frustrated, angry, surprised, curious, enthusiastic, empathetic, neutral"

var (
	emotionMarker   = regexp.MustCompile(`(?i)\[EMOTION:\s*(\w+)\]`)
	intensityMarker = regexp.MustCompile(`(?i)\[INTENSITY:\s*([0-9]*\.?[0-9]+)\]`)
	blankLines      = regexp.MustCompile(`\n\s*\n`)
)

var validEmotions = func() map[string]struct{} {
	out := make(map[string]struct{})
	for _, name := range strings.Split(validEmotionList, ",") {
		out[strings.TrimSpace(name)] = struct{}{}
	}
	return out
}()

// ParseMarkers extracts the emotion markers from raw model output and returns
// the cleaned reply. A missing or unknown emotion becomes "neutral" and the
// intensity is clamped to [0,1].
func ParseMarkers(raw string) Reply {
	reply := Reply{Emotion: fallbackEmotion, Intensity: fallbackIntensity}

	if m := emotionMarker.FindStringSubmatch(raw); m != nil {
		reply.Emotion = strings.ToLower(m[1])
	}
	if m := intensityMarker.FindStringSubmatch(raw); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			reply.Intensity = v
		}
	}

	reply.Emotion, reply.Intensity = normalizeEmotion(reply.Emotion, reply.Intensity)
	reply.Text = StripMarkers(raw)
	return reply
}

func hasEmotionMarker(raw string) bool {
	return emotionMarker.MatchString(raw)
}

// StripMarkers removes emotion markers and collapses runs of blank lines.
func StripMarkers(raw string) string {
	out := emotionMarker.ReplaceAllString(raw, "")
	out = intensityMarker.ReplaceAllString(out, "")
	out = blankLines.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

func normalizeEmotion(name string, intensity float64) (string, float64) {
	name = strings.ToLower(strings.TrimSpace(name))
	if _, ok := validEmotions[name]; !ok {
		name = fallbackEmotion
	}
	return name, clamp01(intensity)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
