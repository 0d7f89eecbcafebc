package feed

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/moodchat/internal/client"
	"github.com/zhouzirui/moodchat/internal/model/emotion"
)

var ErrNoURL = errors.New("push stream url is empty")

const (
	defaultRetry = 3 * time.Second
	pongWait     = 60 * time.Second
)

// Subscriber applies emotion updates pushed over a websocket. It redials
// after a dropped connection until its context is done.
type Subscriber struct {
	url    string
	sink   Sink
	dialer *websocket.Dialer
	retry  time.Duration
	logger *zap.Logger
}

type SubscriberOption func(*Subscriber)

// WithRetry sets the pause between reconnect attempts.
func WithRetry(d time.Duration) SubscriberOption {
	return func(s *Subscriber) {
		if d > 0 {
			s.retry = d
		}
	}
}

func WithSubscriberLogger(l *zap.Logger) SubscriberOption {
	return func(s *Subscriber) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewSubscriber(url string, sink Sink, opts ...SubscriberOption) *Subscriber {
	s := &Subscriber{
		url:    url,
		sink:   sink,
		dialer: websocket.DefaultDialer,
		retry:  defaultRetry,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run returns nil once ctx is done.
func (s *Subscriber) Run(ctx context.Context) error {
	if s.url == "" {
		return ErrNoURL
	}
	for {
		err := s.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		s.logger.Debug("[feed] push stream dropped", zap.String("url", s.url), zap.Error(err))

		timer := time.NewTimer(s.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (s *Subscriber) session(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	s.logger.Info("[feed] push stream connected", zap.String("url", s.url))

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	for {
		var msg client.EmotionResponse
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		if msg.Emotion == "" {
			s.logger.Debug("[feed] ignoring update without emotion")
			continue
		}
		s.sink.ApplyState(emotion.State{Identifier: msg.Emotion, Intensity: msg.Intensity})
	}
}
