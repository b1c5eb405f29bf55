package models

// Prompt is the body sent to the chat backend for a single visitor submission.
type Prompt struct {
	Message string `json:"message"`
	Option  string `json:"option"`
}

// Reply is the body the chat backend answers with. A missing or empty Response is not an error; the
// screen substitutes its apology text instead.
type Reply struct {
	Response string `json:"response"`
}
