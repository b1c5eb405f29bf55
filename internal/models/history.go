package models

// HistoryEntry is a summary of a past conversation shown in the side panel. Entries are display only.
type HistoryEntry struct {
	Title string `yaml:"title"`
	Date  string `yaml:"date"`
}

// DefaultHistory is the side panel content used when the configuration leaves it empty.
func DefaultHistory() []HistoryEntry {
	return []HistoryEntry{
		{Title: "Previous Chat 1"},
		{Title: "Market Analysis Discussion"},
		{Title: "Portfolio Review"},
		{Title: "Investment Strategy"},
	}
}

// DefaultSuggestions are the canned prompts offered in the side panel when none are configured.
func DefaultSuggestions() []string {
	return []string{
		"Summarize today's market movements",
		"Explain the P/E ratio of a stock",
		"How should I diversify my portfolio?",
	}
}
