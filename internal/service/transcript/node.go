package transcript

import (
	"context"
	"errors"
	"sync"

	"github.com/zhouzirui/moodchat/internal/model/chat"
)

// ErrNotEditable is returned when rewriting a node outside editable mode.
var ErrNotEditable = errors.New("message is not editable")

// Node is the handle of one rendered message or pending placeholder.
// Text and removal state are guarded by the owning transcript's lock.
type Node struct {
	id       string
	owner    *Transcript
	sender   chat.Sender
	pending  bool
	editable bool

	text    string
	removed bool

	done     chan struct{}
	doneOnce sync.Once

	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

// ID returns the node identifier.
func (n *Node) ID() string { return n.id }

// Sender returns the author of the message.
func (n *Node) Sender() chat.Sender { return n.sender }

// Pending reports whether n is a reply-in-flight placeholder.
func (n *Node) Pending() bool { return n.pending }

// Text returns the text rendered so far.
func (n *Node) Text() string {
	n.owner.mu.RLock()
	defer n.owner.mu.RUnlock()
	return n.text
}

// Removed reports whether n has left the transcript.
func (n *Node) Removed() bool {
	n.owner.mu.RLock()
	defer n.owner.mu.RUnlock()
	return n.removed
}

// Done is closed once the node's content is final: immediately for user
// messages and placeholders, after the reveal finishes or stops for bot replies.
func (n *Node) Done() <-chan struct{} { return n.done }

// Wait blocks until Done or ctx expires.
func (n *Node) Wait(ctx context.Context) error {
	select {
	case <-n.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel stops an in-flight reveal, leaving the text revealed so far.
func (n *Node) Cancel() { n.stop() }

// SetText replaces the node text. Only editable nodes accept edits; an
// in-flight reveal is stopped first so it cannot overwrite the edit.
func (n *Node) SetText(text string) error {
	if !n.editable {
		return ErrNotEditable
	}
	n.stop()
	if !n.owner.setText(n, text) {
		return errors.New("message was removed")
	}
	return nil
}

func (n *Node) viewLocked() View {
	revealing := false
	select {
	case <-n.done:
	default:
		revealing = true
	}
	return View{
		ID:        n.id,
		Sender:    n.sender,
		Text:      n.text,
		Pending:   n.pending,
		Editable:  n.editable,
		Revealing: revealing,
	}
}

func (n *Node) setCancel(cancel context.CancelFunc) {
	n.cancelMu.Lock()
	n.cancel = cancel
	n.cancelMu.Unlock()
}

func (n *Node) stop() {
	n.cancelMu.Lock()
	cancel := n.cancel
	n.cancelMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (n *Node) finish() {
	n.doneOnce.Do(func() { close(n.done) })
}
