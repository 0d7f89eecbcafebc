// Package turn sequences a user turn from submit to the rendered reply.
package turn

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/zhouzirui/moodchat/internal/client"
	"github.com/zhouzirui/moodchat/internal/model/chat"
	"github.com/zhouzirui/moodchat/internal/model/emotion"
	"github.com/zhouzirui/moodchat/internal/service/transcript"
)

const (
	// DefaultTimeout bounds one turn when Options.Timeout is not positive.
	DefaultTimeout = 60 * time.Second
	// GenericFailure is shown when the backend could not be reached or its
	// reply could not be read.
	GenericFailure = "Failed to send message"
	errorPrefix    = "Error: "
)

var (
	// ErrEmptyInput is returned when the trimmed message is empty. Nothing is rendered.
	ErrEmptyInput = errors.New("message is empty")
	// ErrTurnInFlight is returned under OverlapReject while a turn is pending.
	ErrTurnInFlight = errors.New("another turn is still in flight")
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("controller is closed")
)

// Input is the editable buffer a turn is read from.
type Input interface {
	Message() string
	Prompt() string
	// Clear empties the message buffer. The prompt is kept.
	Clear()
}

// Sender dispatches one turn to the backend.
type Sender interface {
	Send(ctx context.Context, message, prompt string) (*client.SendResponse, error)
}

// Display receives the emotion that came with a reply.
type Display interface {
	Apply(identifier string, intensity float64)
}

type Options struct {
	Timeout time.Duration
	Overlap OverlapPolicy
	Logger  *zap.Logger
}

// Controller owns turn bookkeeping. It is safe for concurrent use.
type Controller struct {
	renderer *transcript.Renderer
	sender   Sender
	display  Display
	timeout  time.Duration
	overlap  OverlapPolicy
	logger   *zap.Logger

	inflight *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	turns  map[string]*Turn
	tail   <-chan struct{}
	seq    uint64
	closed bool
}

// New creates a controller. display may be nil.
func New(renderer *transcript.Renderer, sender Sender, display Display, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	overlap := opts.Overlap
	if overlap == "" {
		overlap = OverlapAllow
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		renderer: renderer,
		sender:   sender,
		display:  display,
		timeout:  timeout,
		overlap:  overlap,
		logger:   logger,
		inflight: semaphore.NewWeighted(1),
		ctx:      ctx,
		cancel:   cancel,
		turns:    make(map[string]*Turn),
	}
}

// Overlap returns the configured overlap policy.
func (c *Controller) Overlap() OverlapPolicy { return c.overlap }

// State reports StateIdle when no turn is active, otherwise the state of
// the most recently submitted active turn.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	var latest *Turn
	for _, t := range c.turns {
		if latest == nil || t.seq > latest.seq {
			latest = t
		}
	}
	if latest == nil {
		return StateIdle
	}
	return latest.State()
}

// Active returns the number of turns not yet finished.
func (c *Controller) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}

// Submit reads in, echoes the message and dispatches it in the background.
// An empty message returns ErrEmptyInput and leaves everything untouched.
// The turn is also cancelled when ctx is.
func (c *Controller) Submit(ctx context.Context, in Input) (*Turn, error) {
	message := strings.TrimSpace(in.Message())
	prompt := strings.TrimSpace(in.Prompt())
	if message == "" {
		return nil, ErrEmptyInput
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.overlap == OverlapReject && !c.inflight.TryAcquire(1) {
		c.mu.Unlock()
		c.logger.Debug("[turn] rejected overlapping submit")
		return nil, ErrTurnInFlight
	}

	t := newTurn(c.ctx, message, prompt)
	c.seq++
	t.seq = c.seq
	t.release = c.overlap == OverlapReject
	if c.overlap == OverlapQueue {
		t.after = c.tail
		c.tail = t.done
	}
	c.turns[t.id] = t
	c.wg.Add(1)
	c.mu.Unlock()

	t.stopParent = context.AfterFunc(ctx, t.Cancel)
	t.setState(StateValidating)

	t.echo = c.renderer.Render(t.ctx, message, chat.SenderUser)
	in.Clear()
	t.setState(StateEchoed)

	t.pending = c.renderer.RenderPending()
	t.setState(StatePending)

	c.logger.Debug("[turn] submitted",
		zap.String("turn", t.id),
		zap.Int("chars", len([]rune(message))),
		zap.Bool("with_prompt", prompt != ""))

	go c.run(t)
	return t, nil
}

// Close cancels every active turn and waits for their goroutines to stop.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

func (c *Controller) run(t *Turn) {
	defer c.finish(t)

	if t.after != nil {
		select {
		case <-t.after:
		case <-t.ctx.Done():
			c.abandon(t)
			return
		}
	}

	reqCtx, cancel := context.WithTimeout(t.ctx, c.timeout)
	c.logger.Debug("[turn] dispatch", zap.String("turn", t.id))
	resp, err := c.sender.Send(reqCtx, t.message, t.prompt)
	cancel()

	if t.ctx.Err() != nil {
		c.abandon(t)
		return
	}

	switch {
	case err != nil:
		c.logger.Warn("[turn] send failed", zap.String("turn", t.id), zap.Error(err))
		c.fail(t, GenericFailure)
	case resp == nil:
		c.fail(t, GenericFailure)
	case resp.Error != "":
		c.logger.Info("[turn] server reported error", zap.String("turn", t.id), zap.String("error", resp.Error))
		c.fail(t, resp.Error)
	default:
		c.resolve(t, resp)
	}
}

func (c *Controller) resolve(t *Turn, resp *client.SendResponse) {
	c.renderer.RemovePending(t.pending)

	shown := replyEmotion(resp)
	reply := c.renderer.Render(t.ctx, resp.Reply, chat.SenderBot)
	if c.display != nil {
		c.display.Apply(shown.Identifier, shown.Intensity)
	}

	t.mu.Lock()
	t.reply = reply
	t.outcome = Outcome{Reply: resp.Reply, Emotion: shown}
	t.mu.Unlock()
	t.setState(StateResolved)

	<-reply.Done()
	c.logger.Debug("[turn] resolved",
		zap.String("turn", t.id),
		zap.String("emotion", shown.Identifier),
		zap.Float64("intensity", shown.Intensity))
}

func (c *Controller) fail(t *Turn, reason string) {
	c.renderer.RemovePending(t.pending)

	text := errorPrefix + reason
	reply := c.renderer.Render(t.ctx, text, chat.SenderBot)

	t.mu.Lock()
	t.reply = reply
	t.outcome = Outcome{Failed: true, Error: text}
	t.mu.Unlock()
	t.setState(StateFailed)

	<-reply.Done()
}

// abandon drops a cancelled turn without rendering anything further.
func (c *Controller) abandon(t *Turn) {
	c.renderer.RemovePending(t.pending)

	t.mu.Lock()
	t.outcome = Outcome{Failed: true, Cancelled: true}
	t.mu.Unlock()
	t.setState(StateFailed)

	c.logger.Debug("[turn] cancelled", zap.String("turn", t.id))
}

func (c *Controller) finish(t *Turn) {
	if t.stopParent != nil {
		t.stopParent()
	}
	t.cancel()

	c.mu.Lock()
	delete(c.turns, t.id)
	c.mu.Unlock()
	if t.release {
		c.inflight.Release(1)
	}

	close(t.done)
	c.wg.Done()
}

// replyEmotion picks what the indicator shows for a reply. The reply's
// emotion is used only when it is recognised and comes with an intensity.
// Otherwise the default label is shown so the display always changes when a
// reply arrives.
func replyEmotion(resp *client.SendResponse) emotion.State {
	if resp.Intensity == nil {
		return emotion.State{Identifier: string(emotion.Default), Intensity: emotion.DefaultIntensity}
	}
	identifier := string(emotion.Default)
	if resp.Emotion != "" && emotion.Known(resp.Emotion) {
		identifier = resp.Emotion
	}
	return emotion.State{Identifier: identifier, Intensity: *resp.Intensity}
}
