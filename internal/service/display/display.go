package display

import (
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/zhouzirui/moodchat/internal/model/emotion"
)

// View holds the four visible fields of the emotion indicator.
type View struct {
	Identifier string
	Glyph      string
	Label      string
	BarWidth   float64
	Readout    string
	Artwork    string
}

// BarCSS formats the bar width as a percentage, e.g. "80%".
func (v View) BarCSS() string {
	return strconv.FormatFloat(v.BarWidth, 'f', -1, 64) + "%"
}

// Surface draws the indicator. Show receives all fields at once.
type Surface interface {
	Show(View)
}

// SurfaceFunc adapts a function to Surface.
type SurfaceFunc func(View)

// Show calls f(v).
func (f SurfaceFunc) Show(v View) { f(v) }

// Updater owns the current emotion state and pushes it to the surface.
type Updater struct {
	// drawMu orders state writes and surface draws together.
	drawMu  sync.Mutex
	mu      sync.RWMutex
	surface Surface
	state   emotion.State
	view    View
	applied int
	logger  *zap.Logger
}

// NewUpdater creates an updater. surface may be nil until Attach is called.
func NewUpdater(surface Surface, logger *zap.Logger) *Updater {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Updater{surface: surface, logger: logger}
}

// Attach sets the surface and redraws the current view on it.
func (u *Updater) Attach(surface Surface) {
	u.drawMu.Lock()
	defer u.drawMu.Unlock()

	u.mu.Lock()
	u.surface = surface
	view := u.view
	drawn := u.applied > 0
	u.mu.Unlock()

	if surface != nil && drawn {
		surface.Show(view)
	}
}

// Apply replaces the current state and redraws. Without a surface the state
// is still recorded but nothing is drawn. Concurrent calls reach the surface
// in the order their state was recorded, so the surface always ends on the
// same view as State. Show must not call back into the Updater.
func (u *Updater) Apply(identifier string, intensity float64) {
	entry := emotion.Resolve(identifier)
	view := View{
		Identifier: string(entry.Label),
		Glyph:      entry.Glyph,
		Label:      string(entry.Label) + " " + entry.Glyph,
		BarWidth:   intensity * 100,
		Readout:    strconv.FormatFloat(intensity, 'f', 1, 64),
		Artwork:    entry.Artwork,
	}

	u.drawMu.Lock()
	defer u.drawMu.Unlock()

	u.mu.Lock()
	u.state = emotion.State{Identifier: string(entry.Label), Intensity: intensity}
	u.view = view
	u.applied++
	surface := u.surface
	u.mu.Unlock()

	u.logger.Debug("[display] apply",
		zap.String("requested", identifier),
		zap.String("shown", view.Identifier),
		zap.Float64("intensity", intensity))

	if surface == nil {
		return
	}
	surface.Show(view)
}

// ApplyState is Apply for a State value.
func (u *Updater) ApplyState(s emotion.State) {
	u.Apply(s.Identifier, s.Intensity)
}

// State returns the state shown last.
func (u *Updater) State() emotion.State {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.state
}

// View returns the fields drawn last and whether anything was drawn yet.
func (u *Updater) View() (View, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.view, u.applied > 0
}
