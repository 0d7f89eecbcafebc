package tui

import (
	"math"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/zhouzirui/moodchat/internal/service/display"
)

const (
	minBarCells = 10
	maxBarCells = 40
)

// Indicator is the terminal emotion indicator. It implements display.Surface;
// Show may be called from any goroutine.
type Indicator struct {
	mu     sync.RWMutex
	view   display.View
	shown  bool
	notify func()
}

func NewIndicator() *Indicator {
	return &Indicator{}
}

// Show stores v and wakes the UI.
func (i *Indicator) Show(v display.View) {
	i.mu.Lock()
	i.view = v
	i.shown = true
	notify := i.notify
	i.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// Current returns the fields drawn last and whether anything was drawn.
func (i *Indicator) Current() (display.View, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.view, i.shown
}

func (i *Indicator) setNotify(fn func()) {
	i.mu.Lock()
	i.notify = fn
	i.mu.Unlock()
}

// barCells converts a bar width in percent to filled cells out of total.
// The width itself is unbounded; only the drawing is clipped.
func barCells(width float64, total int) int {
	if math.IsNaN(width) || width <= 0 {
		return 0
	}
	filled := int(math.Round(width / 100 * float64(total)))
	return min(filled, total)
}

func renderIndicator(s Styles, v display.View, shown bool, width int) string {
	if !shown {
		return s.Indicator.Render(s.Muted.Render("waiting for emotion…"))
	}

	cells := min(max(width/3, minBarCells), maxBarCells)
	filled := barCells(v.BarWidth, cells)
	bar := s.BarFull.Render(strings.Repeat("█", filled)) +
		s.BarEmpty.Render(strings.Repeat("░", cells-filled))

	line := lipgloss.JoinHorizontal(lipgloss.Center,
		s.Readout.Render(v.Label), "  ",
		bar, " ",
		s.Muted.Render(v.BarCSS()), "  ",
		s.Readout.Render(v.Readout), "  ",
		s.Muted.Render(v.Artwork),
	)
	return s.Indicator.Render(line)
}
