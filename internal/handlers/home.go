package handlers

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/MegaGrindStone/chatscreen/internal/models"
	"github.com/MegaGrindStone/chatscreen/internal/screen"
)

type message struct {
	ID        int
	Role      string
	Content   template.HTML
	Timestamp time.Time
}

type modeSelectorData struct {
	Modes    []models.Mode
	Selected models.Mode
}

type chatboxData struct {
	Messages []message
	// PendingID is the ID of the user message still waiting for its reply, zero when idle.
	PendingID int
}

type homePageData struct {
	Title       string
	Chatbox     chatboxData
	Draft       string
	Modes       modeSelectorData
	History     []models.HistoryEntry
	Suggestions []string
}

// HandleHome renders the full chat screen of the caller's session.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sc, _ := m.screenFor(w, r)
	snap := sc.Snapshot()

	box, err := m.chatbox(snap)
	if err != nil {
		m.logger.Error("Failed to render messages", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data := homePageData{
		Title:       m.title,
		Chatbox:     box,
		Draft:       snap.Draft,
		Modes:       modeSelectorData{Modes: sc.Modes(), Selected: snap.Mode},
		History:     sc.History(),
		Suggestions: sc.Suggestions(),
	}

	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		m.logger.Error("Failed to execute home template", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (m Main) chatbox(snap screen.Snapshot) (chatboxData, error) {
	msgs := snap.Messages

	box := chatboxData{Messages: make([]message, len(msgs))}
	for i, msg := range msgs {
		vm, err := m.viewMessage(msg)
		if err != nil {
			return chatboxData{}, err
		}
		box.Messages[i] = vm
	}

	// A reload while waiting shows the loading placeholder again
	if snap.State == screen.StateSending && len(msgs) > 0 && msgs[len(msgs)-1].IsUser() {
		box.PendingID = msgs[len(msgs)-1].ID
	}
	return box, nil
}

func (m Main) viewMessage(msg models.Message) (message, error) {
	content := template.HTML(template.HTMLEscapeString(msg.Text))
	if !msg.IsUser() {
		var err error
		content, err = m.renderer.Render(msg.Text)
		if err != nil {
			return message{}, fmt.Errorf("failed to render message %d: %w", msg.ID, err)
		}
	}
	return message{
		ID:        msg.ID,
		Role:      string(msg.Role),
		Content:   content,
		Timestamp: msg.CreatedAt,
	}, nil
}
