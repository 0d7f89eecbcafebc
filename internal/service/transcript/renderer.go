package transcript

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/moodchat/internal/model/chat"
)

// DefaultInterval is the base delay between revealed characters.
const DefaultInterval = 25 * time.Millisecond

// Options configures a Renderer.
type Options struct {
	Mode     Mode
	Interval time.Duration
	Logger   *zap.Logger
}

// Renderer appends messages to a transcript, revealing bot replies gradually.
type Renderer struct {
	transcript *Transcript
	mode       Mode
	interval   time.Duration
	logger     *zap.Logger
}

// NewRenderer binds a renderer to t. A negative interval is treated as zero.
func NewRenderer(t *Transcript, opts Options) *Renderer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := opts.Interval
	if interval < 0 {
		interval = 0
	}
	return &Renderer{
		transcript: t,
		mode:       opts.Mode,
		interval:   interval,
		logger:     logger,
	}
}

// Mode returns the rendering mode chosen at construction.
func (r *Renderer) Mode() Mode { return r.mode }

// Transcript returns the container this renderer writes to.
func (r *Renderer) Transcript() *Transcript { return r.transcript }

// Render appends text for sender and returns its handle. User messages are
// complete on return; bot messages start empty and are revealed one code
// point at a time until done or until ctx is cancelled.
func (r *Renderer) Render(ctx context.Context, text string, sender chat.Sender) *Node {
	editable := r.mode == ModeEditable
	node := r.transcript.newNode(sender, false, editable)

	if sender != chat.SenderBot {
		node.text = text
		node.finish()
		r.transcript.append(node)
		return node
	}

	revealCtx, cancel := context.WithCancel(ctx)
	node.setCancel(cancel)
	r.transcript.append(node)

	go r.reveal(revealCtx, cancel, node, text)
	return node
}

// RenderPending appends a text-less placeholder for a reply in flight.
func (r *Renderer) RenderPending() *Node {
	node := r.transcript.newNode(chat.SenderBot, true, false)
	node.finish()
	r.transcript.append(node)
	return node
}

// RemovePending removes a placeholder. Nil handles, handles from another
// transcript and handles that were already removed are ignored.
func (r *Renderer) RemovePending(node *Node) {
	if node == nil || node.owner != r.transcript || !node.pending {
		return
	}
	r.transcript.remove(node)
}

func (r *Renderer) reveal(ctx context.Context, cancel context.CancelFunc, node *Node, text string) {
	defer node.finish()
	defer cancel()

	for ch, delay := range Steps(text, r.interval) {
		if !sleep(ctx, delay) {
			r.logger.Debug("[reveal] stopped", zap.String("node", node.id), zap.Error(ctx.Err()))
			return
		}
		if !r.transcript.appendText(node, ch) {
			return
		}
	}
}
