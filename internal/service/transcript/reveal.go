package transcript

import (
	"context"
	"iter"
	"time"
)

const (
	sentencePauseFactor = 8
	clausePauseFactor   = 4
)

// NextDelay returns the pause that follows appending r.
func NextDelay(r rune, base time.Duration) time.Duration {
	switch r {
	case '.', '!', '?':
		return base * sentencePauseFactor
	case ',', ';', ':':
		return base * clausePauseFactor
	default:
		return base
	}
}

// Steps lazily yields each code point of text together with the delay to wait
// before appending it. The sequence is finite and restarts from the beginning
// every time it is ranged over.
func Steps(text string, base time.Duration) iter.Seq2[string, time.Duration] {
	return func(yield func(string, time.Duration) bool) {
		delay := base
		for _, r := range text {
			if !yield(string(r), delay) {
				return
			}
			delay = NextDelay(r, base)
		}
	}
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
