package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/MegaGrindStone/chatscreen/internal/screen"
	"github.com/tmaxmax/go-sse"
)

// HandleChats submits the "message" form field of the caller's session. It answers with the user
// message and a loading placeholder that fetches the assistant reply from HandleReply once it is in
// the page. A blank message, or a submission while the previous one is still pending, is a no-op
// answered with 204 No Content.
func (m Main) HandleChats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sc, id := m.screenFor(w, r)

	userMsg, _, err := sc.Send(r.FormValue("message"))
	if err != nil {
		m.logger.Debug("Ignoring submission",
			slog.String("session", id),
			slog.String(errLoggerKey, err.Error()))
		w.WriteHeader(http.StatusNoContent)
		return
	}

	vm, err := m.viewMessage(userMsg)
	if err != nil {
		m.logger.Error("Failed to render user message", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := m.templates.ExecuteTemplate(w, "user_message", vm); err != nil {
		m.logger.Error("Failed to execute user_message template", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := m.templates.ExecuteTemplate(w, "loading_message", userMsg.ID); err != nil {
		m.logger.Error("Failed to execute loading_message template", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleReply answers the loading placeholder of the user message named by the "id" query parameter
// with the assistant reply, waiting while the exchange is pending. A message without a reply, such as
// one cleared by a new chat, gets an empty body so the placeholder is removed.
func (m Main) HandleReply(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userMsgID, err := strconv.Atoi(r.URL.Query().Get("id"))
	if err != nil || userMsgID <= 0 {
		m.logger.Error("Invalid message id", slog.String("id", r.URL.Query().Get("id")))
		http.Error(w, "Invalid message id", http.StatusBadRequest)
		return
	}

	sc, session := m.screenFor(w, r)

	aiMsg, err := sc.Reply(r.Context(), userMsgID)
	if err != nil {
		m.logger.Debug("Reply not served",
			slog.String("session", session),
			slog.Int("id", userMsgID),
			slog.String(errLoggerKey, err.Error()))
		if errors.Is(err, screen.ErrNoReply) {
			w.WriteHeader(http.StatusOK)
		}
		return
	}

	vm, err := m.viewMessage(aiMsg)
	if err != nil {
		m.logger.Error("Failed to render reply", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := m.templates.ExecuteTemplate(w, "ai_message", vm); err != nil {
		m.logger.Error("Failed to execute ai_message template", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleNewChat resets the caller's conversation to the greeting and answers with the new chatbox.
func (m Main) HandleNewChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sc, session := m.screenFor(w, r)
	sc.NewChat()

	box, err := m.chatbox(sc.Snapshot())
	if err != nil {
		m.logger.Error("Failed to render messages", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var sb strings.Builder
	if err := m.templates.ExecuteTemplate(&sb, "chatbox", box); err != nil {
		m.logger.Error("Failed to execute chatbox template", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Other tabs of the same session show the fresh chat too
	msg := sse.Message{Type: sse.Type(chatResetEvent)}
	msg.AppendData(sb.String())
	if err := m.sseSrv.Publish(&msg, sessionTopic(session)); err != nil {
		m.logger.Error("Failed to publish chat reset",
			slog.String("session", session),
			slog.String(errLoggerKey, err.Error()))
	}

	_, _ = io.WriteString(w, sb.String())
}

// HandleModes selects the mode named by the "mode" form field and answers with the mode selector.
func (m Main) HandleModes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sc, _ := m.screenFor(w, r)

	if err := sc.SelectMode(r.FormValue("mode")); err != nil {
		m.logger.Error("Failed to select mode", slog.String(errLoggerKey, err.Error()))
		status := http.StatusInternalServerError
		if errors.Is(err, screen.ErrUnknownMode) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	data := modeSelectorData{Modes: sc.Modes(), Selected: sc.Mode()}
	if err := m.templates.ExecuteTemplate(w, "mode_selector", data); err != nil {
		m.logger.Error("Failed to execute mode_selector template", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleDraft stores the "message" form field as the caller's unsent input.
func (m Main) HandleDraft(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut && r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sc, _ := m.screenFor(w, r)
	sc.SetDraft(r.FormValue("message"))

	w.WriteHeader(http.StatusNoContent)
}
