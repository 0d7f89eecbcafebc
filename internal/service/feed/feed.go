// Package feed keeps the emotion indicator in step with the backend: the
// initial load, optional polling and the optional websocket push stream.
package feed

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/moodchat/internal/model/emotion"
)

// Source reports the backend's current emotion.
type Source interface {
	CurrentEmotion(ctx context.Context) (emotion.State, error)
}

// Sink receives every state the feed observes.
type Sink interface {
	ApplyState(emotion.State)
}

// LoadInitial applies the backend's current emotion, or emotion.InitialState
// when it cannot be fetched.
func LoadInitial(ctx context.Context, src Source, sink Sink, logger *zap.Logger) emotion.State {
	if logger == nil {
		logger = zap.NewNop()
	}

	state, err := src.CurrentEmotion(ctx)
	if err != nil {
		logger.Warn("[feed] initial emotion unavailable, using fallback", zap.Error(err))
		state = emotion.InitialState
	}
	sink.ApplyState(state)
	return state
}

// Poller re-fetches the current emotion on a fixed interval.
type Poller struct {
	src      Source
	sink     Sink
	interval time.Duration
	logger   *zap.Logger
}

func NewPoller(src Source, sink Sink, interval time.Duration, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{src: src, sink: sink, interval: interval, logger: logger}
}

// Run polls until ctx is done. A non-positive interval disables polling.
// Failed polls are logged and leave the display unchanged.
func (p *Poller) Run(ctx context.Context) error {
	if p.interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var last emotion.State
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			state, err := p.src.CurrentEmotion(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				p.logger.Debug("[feed] poll failed", zap.Error(err))
				continue
			}
			if state == last {
				continue
			}
			last = state
			p.sink.ApplyState(state)
		}
	}
}
