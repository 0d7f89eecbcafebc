package emotion

import (
	"sort"
	"strings"
)

// Label is a canonical emotion identifier understood by the indicator.
type Label string

const (
	Happy      Label = "happy"
	Excited    Label = "excited"
	Content    Label = "content"
	Calm       Label = "calm"
	Focused    Label = "focused"
	Concerned  Label = "concerned"
	Sad        Label = "sad"
	Frustrated Label = "frustrated"
	Angry      Label = "angry"
	Surprised  Label = "surprised"
	Curious    Label = "curious"
	Empathetic Label = "empathetic"
)

// Default is shown whenever an identifier cannot be resolved.
const Default = Calm

// Entry is what the indicator needs to draw one emotion.
type Entry struct {
	Label   Label
	Glyph   string
	Artwork string
}

var entries = map[Label]Entry{
	Happy:      {Label: Happy, Glyph: "😊", Artwork: artwork(Happy)},
	Excited:    {Label: Excited, Glyph: "🤩", Artwork: artwork(Excited)},
	Content:    {Label: Content, Glyph: "😌", Artwork: artwork(Content)},
	Calm:       {Label: Calm, Glyph: "😐", Artwork: artwork(Calm)},
	Focused:    {Label: Focused, Glyph: "🤔", Artwork: artwork(Focused)},
	Concerned:  {Label: Concerned, Glyph: "😟", Artwork: artwork(Concerned)},
	Sad:        {Label: Sad, Glyph: "😢", Artwork: artwork(Sad)},
	Frustrated: {Label: Frustrated, Glyph: "😤", Artwork: artwork(Frustrated)},
	Angry:      {Label: Angry, Glyph: "😠", Artwork: artwork(Angry)},
	Surprised:  {Label: Surprised, Glyph: "😲", Artwork: artwork(Surprised)},
	Curious:    {Label: Curious, Glyph: "🤨", Artwork: artwork(Curious)},
	Empathetic: {Label: Empathetic, Glyph: "🥰", Artwork: artwork(Empathetic)},
}

// deprecated maps retired identifiers onto the current vocabulary.
// Every key maps to exactly one canonical label.
var deprecated = map[string]Label{
	"neutral":      Calm,
	"thoughtful":   Focused,
	"worried":      Concerned,
	"enthusiastic": Excited,
	"joyful":       Happy,
	"anxious":      Concerned,
	"upset":        Sad,
	"annoyed":      Frustrated,
	"tender":       Empathetic,
	"comfort":      Empathetic,
	"magnetic":     Focused,
}

func artwork(label Label) string {
	return "emotions/" + string(label) + ".png"
}

func normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Canonicalize translates raw through the compatibility table and reports
// whether the result is part of the current vocabulary. Both the
// deprecated-name step and the final lookup ignore case and surrounding space.
func Canonicalize(raw string) (Label, bool) {
	name := normalize(raw)
	if label, ok := deprecated[name]; ok {
		return label, true
	}
	if _, ok := entries[Label(name)]; ok {
		return Label(name), true
	}
	return Default, false
}

// Known reports whether raw resolves to a canonical label.
func Known(raw string) bool {
	_, ok := Canonicalize(raw)
	return ok
}

// Resolve returns the display entry for raw, falling back to Default.
func Resolve(raw string) Entry {
	label, _ := Canonicalize(raw)
	return entries[label]
}

// Labels returns the canonical vocabulary in alphabetical order.
func Labels() []Label {
	labels := make([]Label, 0, len(entries))
	for label := range entries {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })
	return labels
}

// DeprecatedNames returns a copy of the compatibility table.
func DeprecatedNames() map[string]Label {
	out := make(map[string]Label, len(deprecated))
	for name, label := range deprecated {
		out[name] = label
	}
	return out
}
