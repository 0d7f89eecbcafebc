package transcript

import (
	"strconv"
	"strings"
)

// Mode selects how message nodes are presented.
type Mode int

const (
	// ModeStyled renders read-only chat bubbles.
	ModeStyled Mode = iota
	// ModeEditable renders plain text the operator can rewrite before saving.
	ModeEditable
)

func (m Mode) String() string {
	switch m {
	case ModeEditable:
		return "editable"
	default:
		return "styled"
	}
}

// ModeFromDevFlag maps the dev flag ("true", "1", true-ish values) to a mode.
func ModeFromDevFlag(raw string) Mode {
	enabled, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil || !enabled {
		return ModeStyled
	}
	return ModeEditable
}
