package emotion

import (
	"math"
	"strings"

	vocab "github.com/zhouzirui/moodchat/internal/model/emotion"
)

// Decision 给出情绪识别结果以及推荐情绪强度。
type Decision struct {
	Emotion   vocab.Label
	Intensity float64
	Score     int
}

// bucketOrder 固定遍历顺序，得分相同时靠前的标签胜出。
var bucketOrder = []vocab.Label{
	vocab.Excited, vocab.Happy, vocab.Content, vocab.Empathetic, vocab.Curious,
	vocab.Focused, vocab.Surprised, vocab.Concerned, vocab.Sad, vocab.Frustrated, vocab.Angry,
}

var keywordBuckets = map[vocab.Label][]string{
	vocab.Happy: {
		"happy", "glad", "great", "thanks", "thank you", "love", "lovely", "nice", "haha", "lol",
		"awesome", "wonderful", "delighted", "pleased", "joy",
	},
	vocab.Excited: {
		"excited", "can't wait", "cant wait", "amazing", "incredible", "thrilled", "wow", "hype",
		"breakthrough", "fantastic", "unbelievable", "superb",
	},
	vocab.Content: {
		"relaxed", "peaceful", "cozy", "satisfied", "content", "comfortable", "at ease",
	},
	vocab.Empathetic: {
		"i understand", "i'm here", "i am here", "for you", "it's okay", "that sounds hard",
		"i'm sorry", "i am sorry", "take care", "you're not alone",
	},
	vocab.Curious: {
		"why", "how does", "what if", "wonder", "curious", "tell me more", "interesting", "explore",
	},
	vocab.Focused: {
		"research", "analysis", "method", "methodology", "study", "data", "experiment", "focus",
		"important", "serious", "critical", "precisely",
	},
	vocab.Surprised: {
		"surprised", "no way", "really?", "unexpected", "shocking", "didn't expect", "whoa",
	},
	vocab.Concerned: {
		"worried", "anxious", "afraid", "scared", "nervous", "concerned", "uncertain", "risk",
	},
	vocab.Sad: {
		"sad", "unhappy", "cry", "depressed", "lonely", "miss", "tragedy", "hurt", "sorrow", "upset", "lost",
	},
	vocab.Frustrated: {
		"frustrated", "stuck", "annoying", "annoyed", "doesn't work", "tired of", "ugh", "again?",
	},
	vocab.Angry: {
		"angry", "furious", "rage", "mad", "pissed", "outrage", "hate",
	},
}

var punctuationBoost = map[vocab.Label]int{
	vocab.Happy:   2,
	vocab.Excited: 3,
	vocab.Curious: 1,
}

// Analyze 根据用户话语与回复推断角色当前的情绪。
func Analyze(userUtterance, replyUtterance string) Decision {
	userScore := scoreText(userUtterance)
	replyScore := scoreText(replyUtterance)

	final := replyScore
	// 若回复缺少明显情感，则根据用户情绪进行映射，从而提供安抚或共情。
	if final.Score == 0 && userScore.Score > 0 {
		final = coerceEmotionFromUser(userScore)
	}

	if final.Score == 0 {
		return Decision{Emotion: vocab.Calm, Intensity: vocab.DefaultIntensity, Score: 0}
	}

	intensity := 0.4 + float64(final.Score)/20 // 基础为0.4，强度随得分提升
	switch final.Emotion {
	case vocab.Excited:
		intensity += 0.1
	case vocab.Focused, vocab.Empathetic:
		intensity = math.Min(0.8, intensity)
	}
	intensity = math.Max(0.1, math.Min(1, intensity))
	intensity = math.Round(intensity*100) / 100

	return Decision{Emotion: final.Emotion, Intensity: intensity, Score: final.Score}
}

func scoreText(text string) Decision {
	normalized := strings.TrimSpace(strings.ToLower(text))
	if normalized == "" {
		return Decision{Emotion: vocab.Calm}
	}

	scores := make(map[vocab.Label]int)
	for label, keywords := range keywordBuckets {
		for _, word := range keywords {
			if strings.Contains(normalized, word) {
				scores[label] += 3
			}
		}
	}

	if exclamations := strings.Count(text, "!"); exclamations > 0 {
		scores[vocab.Excited] += exclamations * punctuationBoost[vocab.Excited]
		if exclamations == 1 {
			scores[vocab.Happy] += punctuationBoost[vocab.Happy]
		}
	}
	if strings.Contains(text, "?") {
		scores[vocab.Curious] += punctuationBoost[vocab.Curious]
	}

	best := vocab.Calm
	bestScore := 0
	for _, label := range bucketOrder {
		if s := scores[label]; s > bestScore {
			bestScore = s
			best = label
		}
	}
	return Decision{Emotion: best, Score: bestScore}
}

func coerceEmotionFromUser(user Decision) Decision {
	switch user.Emotion {
	case vocab.Sad, vocab.Concerned, vocab.Frustrated:
		return Decision{Emotion: vocab.Empathetic, Score: user.Score}
	case vocab.Angry:
		return Decision{Emotion: vocab.Concerned, Score: user.Score}
	case vocab.Surprised:
		return Decision{Emotion: vocab.Curious, Score: user.Score}
	default:
		return user
	}
}
