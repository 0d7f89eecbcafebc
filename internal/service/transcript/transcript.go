package transcript

import (
	"sync"

	"github.com/google/uuid"

	"github.com/zhouzirui/moodchat/internal/model/chat"
)

// EventKind describes a change to the transcript.
type EventKind int

const (
	EventAppended EventKind = iota
	EventUpdated
	EventRemoved
	EventScrolled
	EventCleared
)

// Event is delivered to listeners after the transcript changed.
type Event struct {
	Kind   EventKind
	NodeID string
}

// Listener observes transcript changes. It is called without any transcript
// lock held and must not block for long.
type Listener func(Event)

// View is a read-only snapshot of one node.
type View struct {
	ID        string
	Sender    chat.Sender
	Text      string
	Pending   bool
	Editable  bool
	Revealing bool
}

// Transcript is the ordered container of rendered nodes shared by the
// renderer, the turn controller and the save flow.
type Transcript struct {
	mu        sync.RWMutex
	nodes     []*Node
	listeners []Listener
	scrolls   int
}

// New returns an empty transcript.
func New() *Transcript {
	return &Transcript{}
}

// Subscribe registers l for every subsequent change.
func (t *Transcript) Subscribe(l Listener) {
	if l == nil {
		return
	}
	t.mu.Lock()
	t.listeners = append(t.listeners, l)
	t.mu.Unlock()
}

// Views returns a snapshot of all nodes in transcript order.
func (t *Transcript) Views() []View {
	t.mu.RLock()
	defer t.mu.RUnlock()

	views := make([]View, 0, len(t.nodes))
	for _, n := range t.nodes {
		views = append(views, n.viewLocked())
	}
	return views
}

// Node returns the handle with the given id while it is in the transcript.
func (t *Transcript) Node(id string) (*Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, n := range t.nodes {
		if n.id == id {
			return n, true
		}
	}
	return nil, false
}

// Len returns the number of nodes, pending placeholders included.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nodes)
}

// Scrolls returns how many scroll-to-bottom requests were issued.
func (t *Transcript) Scrolls() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.scrolls
}

// Clear stops every running reveal and removes all nodes.
func (t *Transcript) Clear() {
	t.mu.Lock()
	nodes := t.nodes
	t.nodes = nil
	for _, n := range nodes {
		n.removed = true
	}
	t.mu.Unlock()

	for _, n := range nodes {
		n.stop()
	}
	t.notify(Event{Kind: EventCleared})
}

func (t *Transcript) newNode(sender chat.Sender, pending, editable bool) *Node {
	return &Node{
		id:       uuid.NewString(),
		owner:    t,
		sender:   sender,
		pending:  pending,
		editable: editable,
		done:     make(chan struct{}),
	}
}

func (t *Transcript) append(n *Node) {
	t.mu.Lock()
	t.nodes = append(t.nodes, n)
	t.scrolls++
	t.mu.Unlock()

	t.notify(Event{Kind: EventAppended, NodeID: n.id})
	t.notify(Event{Kind: EventScrolled, NodeID: n.id})
}

// appendText extends n and reports false once n is no longer in the transcript.
func (t *Transcript) appendText(n *Node, s string) bool {
	t.mu.Lock()
	if n.removed {
		t.mu.Unlock()
		return false
	}
	n.text += s
	t.scrolls++
	t.mu.Unlock()

	t.notify(Event{Kind: EventUpdated, NodeID: n.id})
	t.notify(Event{Kind: EventScrolled, NodeID: n.id})
	return true
}

func (t *Transcript) setText(n *Node, s string) bool {
	t.mu.Lock()
	if n.removed {
		t.mu.Unlock()
		return false
	}
	n.text = s
	t.mu.Unlock()

	t.notify(Event{Kind: EventUpdated, NodeID: n.id})
	return true
}

// remove deletes n and reports whether it was still present.
func (t *Transcript) remove(n *Node) bool {
	t.mu.Lock()
	if n.removed {
		t.mu.Unlock()
		return false
	}
	idx := -1
	for i, candidate := range t.nodes {
		if candidate == n {
			idx = i
			break
		}
	}
	if idx == -1 {
		t.mu.Unlock()
		return false
	}
	t.nodes = append(t.nodes[:idx], t.nodes[idx+1:]...)
	n.removed = true
	t.mu.Unlock()

	n.stop()
	t.notify(Event{Kind: EventRemoved, NodeID: n.id})
	return true
}

func (t *Transcript) notify(ev Event) {
	t.mu.RLock()
	listeners := append([]Listener(nil), t.listeners...)
	t.mu.RUnlock()

	for _, l := range listeners {
		l(ev)
	}
}
