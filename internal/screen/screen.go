package screen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MegaGrindStone/chatscreen/internal/models"
)

// Responder answers a single visitor prompt. Implementations forward the prompt to a chat backend and
// return the text of its reply. An empty reply with a nil error means the backend answered without a
// usable response.
type Responder interface {
	Respond(ctx context.Context, prompt models.Prompt) (string, error)
}

// State is the position of a Screen in its send cycle.
type State int

const (
	// StateIdle accepts a new submission.
	StateIdle State = iota
	// StateSending waits for the backend to settle the last submission.
	StateSending
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const (
	// DefaultGreeting seeds every new conversation.
	DefaultGreeting = "Hello! I'm your AI Financial Assistant. I can help you with financial analysis, " +
		"market insights, and general queries. How can I assist you today?"

	// ApologyText is appended when the backend answers without a response field.
	ApologyText = "I apologize, but I couldn't process your request at the moment. Please try again."

	// ErrorText is appended when the backend could not be reached or its answer could not be read.
	ErrorText = "I'm experiencing some technical difficulties. Please check your connection and try again."

	errLoggerKey = "err"
)

var (
	// ErrEmptyDraft is returned by Send when the draft is empty after trimming.
	ErrEmptyDraft = errors.New("draft is empty")
	// ErrBusy is returned by Send while a previous submission is still pending.
	ErrBusy = errors.New("a reply is still pending")
	// ErrUnknownMode is returned by SelectMode for a value outside the configured modes.
	ErrUnknownMode = errors.New("unknown mode")
	// ErrAbandoned is reported by Pending.Wait when NewChat was called before the reply arrived.
	ErrAbandoned = errors.New("exchange abandoned by a new chat")
	// ErrNoReply is returned by Reply for a message that has no answer and none pending.
	ErrNoReply = errors.New("no reply for message")
)

// Options configures the Screens created by a Store.
type Options struct {
	Greeting    string
	Modes       []models.Mode
	DefaultMode string
	History     []models.HistoryEntry
	Suggestions []string

	// RequestTimeout bounds a single backend call. Zero leaves the call to the transport's defaults.
	RequestTimeout time.Duration

	Logger *slog.Logger
	Now    func() time.Time
}

// Screen holds the state of one visitor's chat screen: the append-only message sequence, the draft,
// the send state and the selected mode. All methods are safe for concurrent use.
type Screen struct {
	responder   Responder
	greeting    string
	modes       []models.Mode
	history     []models.HistoryEntry
	suggestions []string
	timeout     time.Duration
	logger      *slog.Logger
	now         func() time.Time

	mu       sync.Mutex
	messages []models.Message
	draft    string
	state    State
	mode     models.Mode
	// epoch is bumped by NewChat so replies to earlier exchanges are dropped.
	epoch uint64
	// pending answers the user message pendingID while the screen is sending.
	pending   *Pending
	pendingID int
}

// Pending is the handle of an exchange started by Send. It settles exactly once.
type Pending struct {
	done chan struct{}
	msg  models.Message
	err  error
}

func (o Options) withDefaults() (Options, error) {
	if o.Greeting == "" {
		o.Greeting = DefaultGreeting
	}
	if len(o.Modes) == 0 {
		o.Modes = models.DefaultModes()
	}
	for i, m := range o.Modes {
		if m.Value == "" {
			return Options{}, fmt.Errorf("mode at index %d has no value", i)
		}
	}
	if o.DefaultMode == "" {
		o.DefaultMode = o.Modes[0].Value
	}
	if !slices.ContainsFunc(o.Modes, func(m models.Mode) bool { return m.Value == o.DefaultMode }) {
		return Options{}, fmt.Errorf("default mode %q: %w", o.DefaultMode, ErrUnknownMode)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o, nil
}

// New creates a Screen that forwards submissions to responder. The screen starts idle, with the
// greeting as its only message and the default mode selected.
func New(responder Responder, opts Options) (*Screen, error) {
	if responder == nil {
		return nil, errors.New("responder is required")
	}
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	return newScreen(responder, opts), nil
}

func newScreen(responder Responder, opts Options) *Screen {
	s := &Screen{
		responder:   responder,
		greeting:    opts.Greeting,
		modes:       opts.Modes,
		history:     opts.History,
		suggestions: opts.Suggestions,
		timeout:     opts.RequestTimeout,
		logger:      opts.Logger.With(slog.String("module", "screen")),
		now:         opts.Now,
	}
	idx := slices.IndexFunc(opts.Modes, func(m models.Mode) bool { return m.Value == opts.DefaultMode })
	s.mode = opts.Modes[idx]
	s.resetLocked()
	return s
}

func (s *Screen) resetLocked() {
	s.messages = nil
	s.draft = ""
	s.state = StateIdle
	s.pending = nil
	s.pendingID = 0
	s.appendLocked(models.RoleAssistant, s.greeting)
}

func (s *Screen) appendLocked(role models.Role, text string) models.Message {
	msg := models.Message{
		ID:        len(s.messages) + 1,
		Role:      role,
		Text:      text,
		CreatedAt: s.now(),
	}
	s.messages = append(s.messages, msg)
	return msg
}

// Messages returns a copy of the current message sequence in display order.
func (s *Screen) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
}

// Snapshot is a consistent view of a Screen at one instant.
type Snapshot struct {
	Messages []models.Message
	State    State
	Draft    string
	Mode     models.Mode
}

// Snapshot returns the messages, state, draft and mode as they were at a single point in time.
func (s *Screen) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Messages: slices.Clone(s.messages),
		State:    s.state,
		Draft:    s.draft,
		Mode:     s.mode,
	}
}

// State reports whether the screen is idle or waiting for a reply.
func (s *Screen) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Draft returns the unsent input text.
func (s *Screen) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// SetDraft replaces the unsent input text.
func (s *Screen) SetDraft(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = text
}

// Modes returns the selectable modes.
func (s *Screen) Modes() []models.Mode {
	return slices.Clone(s.modes)
}

// Mode returns the selected mode.
func (s *Screen) Mode() models.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SelectMode changes the option sent with subsequent submissions. Messages already appended are not
// touched.
func (s *Screen) SelectMode(value string) error {
	idx := slices.IndexFunc(s.modes, func(m models.Mode) bool { return m.Value == value })
	if idx == -1 {
		return fmt.Errorf("%q: %w", value, ErrUnknownMode)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = s.modes[idx]
	return nil
}

// History returns the static list of past conversation summaries.
func (s *Screen) History() []models.HistoryEntry {
	return slices.Clone(s.history)
}

// Suggestions returns the canned prompts shown in the side panel.
func (s *Screen) Suggestions() []string {
	return slices.Clone(s.suggestions)
}

// NewChat resets the sequence to the greeting alone and clears the draft. A reply still pending is
// abandoned: it will not be appended and its Pending reports ErrAbandoned.
func (s *Screen) NewChat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.resetLocked()
}

// Reply returns the assistant message answering the user message userMsgID. While that exchange is
// pending it blocks until the reply is appended or ctx is done. ErrNoReply is returned for any other
// message, including one whose exchange was abandoned by NewChat.
func (s *Screen) Reply(ctx context.Context, userMsgID int) (models.Message, error) {
	s.mu.Lock()
	// IDs are positions, so the answer to message N is at index N.
	if userMsgID > 0 && userMsgID < len(s.messages) &&
		s.messages[userMsgID-1].IsUser() && !s.messages[userMsgID].IsUser() {
		msg := s.messages[userMsgID]
		s.mu.Unlock()
		return msg, nil
	}
	p := s.pending
	if p == nil || s.pendingID != userMsgID {
		s.mu.Unlock()
		return models.Message{}, ErrNoReply
	}
	s.mu.Unlock()

	msg, err := p.Wait(ctx)
	if errors.Is(err, ErrAbandoned) {
		return models.Message{}, ErrNoReply
	}
	return msg, err
}

// Send submits draft to the backend. It appends the trimmed draft as a user message, clears the draft
// and moves the screen to StateSending before returning; the backend call continues in the background
// and its outcome is appended as exactly one assistant message. Send is a no-op returning ErrEmptyDraft
// or ErrBusy when the draft is blank or a previous submission has not settled.
func (s *Screen) Send(draft string) (models.Message, *Pending, error) {
	text := strings.TrimSpace(draft)
	if text == "" {
		return models.Message{}, nil, ErrEmptyDraft
	}

	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return models.Message{}, nil, ErrBusy
	}
	p := &Pending{done: make(chan struct{})}
	userMsg := s.appendLocked(models.RoleUser, text)
	s.draft = ""
	s.state = StateSending
	s.pending = p
	s.pendingID = userMsg.ID
	epoch := s.epoch
	prompt := models.Prompt{Message: text, Option: s.mode.Value}
	s.mu.Unlock()

	go s.exchange(p, epoch, prompt)

	return userMsg, p, nil
}

func (s *Screen) exchange(p *Pending, epoch uint64, prompt models.Prompt) {
	defer close(p.done)

	text, err := s.respond(prompt)
	switch {
	case err != nil:
		s.logger.Error("Backend could not respond",
			slog.String("option", prompt.Option),
			slog.String(errLoggerKey, err.Error()))
		text = ErrorText
	case text == "":
		s.logger.Warn("Backend reply has no response", slog.String("option", prompt.Option))
		text = ApologyText
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		s.logger.Debug("Dropping reply of an abandoned exchange")
		p.err = ErrAbandoned
		return
	}
	p.msg = s.appendLocked(models.RoleAssistant, text)
	s.state = StateIdle
	s.pending = nil
	s.pendingID = 0
}

func (s *Screen) respond(prompt models.Prompt) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("responder panicked: %v", r)
		}
	}()

	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	return s.responder.Respond(ctx, prompt)
}

// Wait blocks until the exchange settles or ctx is done, and returns the appended assistant message.
// Cancelling ctx only stops the wait; the backend call keeps running.
func (p *Pending) Wait(ctx context.Context) (models.Message, error) {
	select {
	case <-p.done:
		return p.msg, p.err
	case <-ctx.Done():
		return models.Message{}, ctx.Err()
	}
}
