package turn

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/zhouzirui/moodchat/internal/model/emotion"
	"github.com/zhouzirui/moodchat/internal/service/transcript"
)

// Outcome summarizes how a turn ended.
type Outcome struct {
	Reply     string
	Emotion   emotion.State
	Failed    bool
	Cancelled bool
	// Error is the text rendered into the transcript for a failed turn.
	Error string
}

// Turn is the handle of one submitted message.
type Turn struct {
	id      string
	seq     uint64
	message string
	prompt  string

	ctx        context.Context
	cancel     context.CancelFunc
	stopParent func() bool

	after   <-chan struct{}
	release bool
	done    chan struct{}
	state   atomic.Int32

	echo    *transcript.Node
	pending *transcript.Node

	mu      sync.Mutex
	reply   *transcript.Node
	outcome Outcome
}

func newTurn(parent context.Context, message, prompt string) *Turn {
	ctx, cancel := context.WithCancel(parent)
	return &Turn{
		id:      uuid.NewString(),
		message: message,
		prompt:  prompt,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

func (t *Turn) ID() string      { return t.id }
func (t *Turn) Message() string { return t.message }
func (t *Turn) Prompt() string  { return t.prompt }

func (t *Turn) State() State { return State(t.state.Load()) }

func (t *Turn) setState(s State) { t.state.Store(int32(s)) }

// Done is closed when the turn has finished, including the reply reveal.
func (t *Turn) Done() <-chan struct{} { return t.done }

// Wait blocks until the turn finishes or ctx expires.
func (t *Turn) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel aborts the network call, discards a late response and stops the
// reply reveal. Text revealed so far stays in the transcript.
func (t *Turn) Cancel() { t.cancel() }

// Echo returns the user message node.
func (t *Turn) Echo() *transcript.Node { return t.echo }

// Pending returns the placeholder node shown while the reply is awaited.
func (t *Turn) Pending() *transcript.Node { return t.pending }

// Reply returns the bot node, or nil before the turn resolved or failed.
func (t *Turn) Reply() *transcript.Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reply
}

// Outcome is meaningful once Done is closed.
func (t *Turn) Outcome() Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outcome
}
