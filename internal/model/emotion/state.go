package emotion

// State is the emotion currently shown by the indicator. It is replaced
// wholesale on every update.
type State struct {
	Identifier string  `json:"emotion"`
	Intensity  float64 `json:"intensity"`
}

// DefaultIntensity is used when a reply carries no intensity.
const DefaultIntensity = 0.5

// InitialState is shown when the backend cannot report the current emotion.
var InitialState = State{Identifier: string(Happy), Intensity: 0.7}
