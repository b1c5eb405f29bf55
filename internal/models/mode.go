package models

// Mode is one entry of the closed set of conversation modes a visitor can pick from. Value is what the
// backend receives as the request option; Label and Color are presentation only.
type Mode struct {
	Value string `yaml:"value"`
	Label string `yaml:"label"`
	Color string `yaml:"color"`
}

// DisplayLabel returns the label shown in the mode selector, falling back to the value.
func (m Mode) DisplayLabel() string {
	if m.Label != "" {
		return m.Label
	}
	return m.Value
}

// DefaultModes are used when the configuration does not declare any mode.
func DefaultModes() []Mode {
	return []Mode{
		{Value: "Financial Analysis", Label: "Financial Analysis", Color: "#4CAF50"},
		{Value: "General Query", Label: "General Query", Color: "#2196F3"},
	}
}
