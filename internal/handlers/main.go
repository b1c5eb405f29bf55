package handlers

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	chatscreen "github.com/MegaGrindStone/chatscreen"
	"github.com/MegaGrindStone/chatscreen/internal/screen"
	"github.com/google/uuid"
	"github.com/tmaxmax/go-sse"
)

// Main serves the chat screen. It owns the HTML templates, the SSE server used to push assistant
// replies, and the store of per-visitor screens.
type Main struct {
	sseSrv    *sse.Server
	templates *template.Template
	renderer  Renderer

	store *screen.Store
	title string

	logger *slog.Logger
}

const (
	sessionCookieName = "chatscreen_session"
	chatResetEvent    = "chatReset"
	errLoggerKey      = "err"

	// DefaultTitle is shown in the header when no title is configured.
	DefaultTitle = "QJ AI Assistant"
)

// NewMain creates a Main serving the screens held by store. It parses the templates from the embedded
// filesystem and configures the SSE server so every browser subscribes to its own session topic.
func NewMain(store *screen.Store, renderer Renderer, title string, logger *slog.Logger) (Main, error) {
	// We parse templates from three distinct directories to separate layout, pages, and partial views
	tmpl, err := template.ParseFS(
		chatscreen.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, err
	}

	if title == "" {
		title = DefaultTitle
	}

	return Main{
		sseSrv: &sse.Server{
			OnSession: func(s *sse.Session) (sse.Subscription, bool) {
				topics := []string{sse.DefaultTopic}

				// Chat resets are only published to the tabs of the session that made them
				if id, ok := sessionID(s.Req); ok {
					topics = append(topics, sessionTopic(id))
				}

				return sse.Subscription{
					Client:      s,
					LastEventID: s.LastEventID,
					Topics:      topics,
				}, true
			},
		},
		templates: tmpl,
		renderer:  renderer,
		store:     store,
		title:     title,
		logger:    logger.With(slog.String("module", "handlers")),
	}, nil
}

// Routes registers the chat screen handlers on mux.
func (m Main) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/", m.HandleHome)
	mux.HandleFunc("/chats", m.HandleChats)
	mux.HandleFunc("/chats/new", m.HandleNewChat)
	mux.HandleFunc("/chats/reply", m.HandleReply)
	mux.HandleFunc("/modes", m.HandleModes)
	mux.HandleFunc("/draft", m.HandleDraft)
	mux.HandleFunc("/sse", m.HandleSSE)
}

// HandleSSE streams reply events of the caller's session.
func (m Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	m.sseSrv.ServeHTTP(w, r)
}

func sessionTopic(id string) string {
	return fmt.Sprintf("session-%s", id)
}

func sessionID(r *http.Request) (string, bool) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil {
		return "", false
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return "", false
	}
	return c.Value, true
}

// screenFor returns the caller's screen, issuing a session cookie on the first visit.
func (m Main) screenFor(w http.ResponseWriter, r *http.Request) (*screen.Screen, string) {
	id, ok := sessionID(r)
	if !ok {
		id = uuid.New().String()
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookieName,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	sc := m.store.GetOrCreate(id)
	if !ok {
		m.logger.Debug("New session", slog.String("session", id), slog.Int("sessions", m.store.Len()))
	}
	return sc, id
}

// Shutdown gracefully terminates the SSE server. It broadcasts a close message to all connected
// clients and waits up to 5 seconds for connections to terminate.
func (m Main) Shutdown(ctx context.Context) error {
	e := &sse.Message{Type: sse.Type("closeChat")}
	// An event without data is never dispatched by the browser.
	e.AppendData("bye")

	// We ignore the error here since we're shutting down anyway
	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}
