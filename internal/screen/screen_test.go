package screen_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/MegaGrindStone/chatscreen/internal/models"
	"github.com/MegaGrindStone/chatscreen/internal/screen"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type mockResponder struct {
	mu      sync.Mutex
	prompts []models.Prompt

	reply string
	err   error
	panic bool
	// release, when set, blocks Respond until it is closed.
	release chan struct{}
}

func (m *mockResponder) Respond(_ context.Context, prompt models.Prompt) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.release != nil {
		<-m.release
	}
	if m.panic {
		panic("boom")
	}
	return m.reply, m.err
}

func (m *mockResponder) lastPrompt() models.Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prompts[len(m.prompts)-1]
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newScreen(t *testing.T, r screen.Responder) *screen.Screen {
	t.Helper()

	s, err := screen.New(r, screen.Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return s
}

func wait(t *testing.T, p *screen.Pending) (models.Message, error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.Wait(ctx)
}

func TestNewStartsWithGreeting(t *testing.T) {
	s := newScreen(t, &mockResponder{})

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, 1, msgs[0].ID)
	require.Equal(t, models.RoleAssistant, msgs[0].Role)
	require.Equal(t, screen.DefaultGreeting, msgs[0].Text)
	require.Equal(t, screen.StateIdle, s.State())
	require.Equal(t, "Financial Analysis", s.Mode().Value)
}

func TestNewRejectsBadOptions(t *testing.T) {
	_, err := screen.New(nil, screen.Options{})
	require.Error(t, err)

	_, err = screen.New(&mockResponder{}, screen.Options{DefaultMode: "Astrology"})
	require.ErrorIs(t, err, screen.ErrUnknownMode)

	_, err = screen.New(&mockResponder{}, screen.Options{Modes: []models.Mode{{Label: "No value"}}})
	require.Error(t, err)
}

func TestSend(t *testing.T) {
	tests := []struct {
		name     string
		resp     *mockResponder
		wantText string
	}{
		{
			name:     "Backend reply",
			resp:     &mockResponder{reply: "X"},
			wantText: "X",
		},
		{
			name:     "Missing response field",
			resp:     &mockResponder{},
			wantText: screen.ApologyText,
		},
		{
			name:     "Backend failure",
			resp:     &mockResponder{err: errors.New("connection refused")},
			wantText: screen.ErrorText,
		},
		{
			name:     "Responder panic",
			resp:     &mockResponder{panic: true},
			wantText: screen.ErrorText,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newScreen(t, tt.resp)

			userMsg, p, err := s.Send("  What is EBITDA?\n")
			require.NoError(t, err)
			require.Equal(t, "What is EBITDA?", userMsg.Text)
			require.Equal(t, models.RoleUser, userMsg.Role)
			require.Equal(t, 2, userMsg.ID)

			aiMsg, err := wait(t, p)
			require.NoError(t, err)
			require.Equal(t, models.RoleAssistant, aiMsg.Role)
			require.Equal(t, tt.wantText, aiMsg.Text)
			require.Equal(t, 3, aiMsg.ID)

			msgs := s.Messages()
			require.Len(t, msgs, 3)
			require.Equal(t, userMsg, msgs[1])
			require.Equal(t, aiMsg, msgs[2])
			require.Equal(t, screen.StateIdle, s.State())
			require.Equal(t, "What is EBITDA?", tt.resp.lastPrompt().Message)
		})
	}
}

func TestSendBlankDraftIsNoop(t *testing.T) {
	resp := &mockResponder{reply: "X"}
	s := newScreen(t, resp)

	for _, draft := range []string{"", "   ", "\n\t"} {
		_, p, err := s.Send(draft)
		require.ErrorIs(t, err, screen.ErrEmptyDraft)
		require.Nil(t, p)
	}
	require.Len(t, s.Messages(), 1)
	require.Empty(t, resp.prompts)
}

func TestSendWhileSendingIsNoop(t *testing.T) {
	resp := &mockResponder{reply: "first", release: make(chan struct{})}
	s := newScreen(t, resp)

	_, p, err := s.Send("one")
	require.NoError(t, err)
	require.Equal(t, screen.StateSending, s.State())

	_, p2, err := s.Send("two")
	require.ErrorIs(t, err, screen.ErrBusy)
	require.Nil(t, p2)
	require.Len(t, s.Messages(), 2)

	close(resp.release)
	_, err = wait(t, p)
	require.NoError(t, err)

	msgs := s.Messages()
	require.Len(t, msgs, 3)
	require.Equal(t, "first", msgs[2].Text)
	require.Equal(t, screen.StateIdle, s.State())
}

func TestSendClearsDraft(t *testing.T) {
	s := newScreen(t, &mockResponder{reply: "ok"})

	s.SetDraft("half typed")
	require.Equal(t, "half typed", s.Draft())

	_, p, err := s.Send(s.Draft())
	require.NoError(t, err)
	require.Empty(t, s.Draft())

	_, err = wait(t, p)
	require.NoError(t, err)
}

func TestSelectMode(t *testing.T) {
	resp := &mockResponder{reply: "ok"}
	s := newScreen(t, resp)

	_, p, err := s.Send("first")
	require.NoError(t, err)
	_, err = wait(t, p)
	require.NoError(t, err)
	require.Equal(t, "Financial Analysis", resp.lastPrompt().Option)
	before := s.Messages()

	require.NoError(t, s.SelectMode("General Query"))
	require.Equal(t, before, s.Messages())

	_, p, err = s.Send("second")
	require.NoError(t, err)
	_, err = wait(t, p)
	require.NoError(t, err)
	require.Equal(t, "General Query", resp.lastPrompt().Option)
	require.Equal(t, before, s.Messages()[:len(before)])

	err = s.SelectMode("Astrology")
	require.ErrorIs(t, err, screen.ErrUnknownMode)
	require.Equal(t, "General Query", s.Mode().Value)
}

func TestNewChat(t *testing.T) {
	s := newScreen(t, &mockResponder{reply: "ok"})

	for _, text := range []string{"a", "b", "c"} {
		_, p, err := s.Send(text)
		require.NoError(t, err)
		_, err = wait(t, p)
		require.NoError(t, err)
	}
	require.Len(t, s.Messages(), 7)
	require.NoError(t, s.SelectMode("General Query"))
	s.SetDraft("pending words")

	s.NewChat()

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, screen.DefaultGreeting, msgs[0].Text)
	require.Equal(t, 1, msgs[0].ID)
	require.Empty(t, s.Draft())
	require.Equal(t, "General Query", s.Mode().Value)
}

func TestNewChatAbandonsPendingReply(t *testing.T) {
	resp := &mockResponder{reply: "late", release: make(chan struct{})}
	s := newScreen(t, resp)

	_, p, err := s.Send("question")
	require.NoError(t, err)

	s.NewChat()
	require.Equal(t, screen.StateIdle, s.State())

	close(resp.release)
	_, err = wait(t, p)
	require.ErrorIs(t, err, screen.ErrAbandoned)

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, screen.DefaultGreeting, msgs[0].Text)
	require.Equal(t, screen.StateIdle, s.State())
}

func TestPendingWaitHonoursContext(t *testing.T) {
	resp := &mockResponder{reply: "slow", release: make(chan struct{})}
	s := newScreen(t, resp)

	_, p, err := s.Send("question")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Wait(ctx)
	require.ErrorIs(t, err, context.Canceled)

	close(resp.release)
	_, err = wait(t, p)
	require.NoError(t, err)
	require.Len(t, s.Messages(), 3)
}

func TestStore(t *testing.T) {
	store, err := screen.NewStore(&mockResponder{}, screen.Options{
		History: []models.HistoryEntry{{Title: "Portfolio Review", Date: "2024-05-01"}},
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	_, ok := store.Get("a")
	require.False(t, ok)

	a := store.GetOrCreate("a")
	require.Same(t, a, store.GetOrCreate("a"))
	b := store.GetOrCreate("b")
	require.NotSame(t, a, b)
	require.Equal(t, 2, store.Len())

	got, ok := store.Get("a")
	require.True(t, ok)
	require.Same(t, a, got)
	require.Equal(t, "Portfolio Review", got.History()[0].Title)

	_, err = screen.NewStore(nil, screen.Options{})
	require.Error(t, err)
}

func TestReply(t *testing.T) {
	resp := &mockResponder{reply: "Rates are flat.", release: make(chan struct{})}
	s := newScreen(t, resp)

	userMsg, _, err := s.Send("What about rates?")
	require.NoError(t, err)

	got := make(chan models.Message, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		msg, err := s.Reply(ctx, userMsg.ID)
		if err == nil {
			got <- msg
		}
		close(got)
	}()

	close(resp.release)
	msg, ok := <-got
	require.True(t, ok, "Reply should wait for the pending exchange")
	require.Equal(t, "Rates are flat.", msg.Text)
	require.Equal(t, userMsg.ID+1, msg.ID)

	// Settled replies are served from the message list.
	msg, err = s.Reply(context.Background(), userMsg.ID)
	require.NoError(t, err)
	require.Equal(t, "Rates are flat.", msg.Text)

	for _, id := range []int{0, 1, 3, 42} {
		_, err = s.Reply(context.Background(), id)
		require.ErrorIs(t, err, screen.ErrNoReply, "id=%d", id)
	}
}

func TestReplyAfterInstantFailure(t *testing.T) {
	s := newScreen(t, &mockResponder{err: errors.New("connection refused")})

	userMsg, p, err := s.Send("Hello")
	require.NoError(t, err)
	_, err = wait(t, p)
	require.NoError(t, err)

	msg, err := s.Reply(context.Background(), userMsg.ID)
	require.NoError(t, err)
	require.Equal(t, screen.ErrorText, msg.Text)
}

func TestReplyAbandonedByNewChat(t *testing.T) {
	resp := &mockResponder{reply: "late", release: make(chan struct{})}
	s := newScreen(t, resp)

	userMsg, p, err := s.Send("question")
	require.NoError(t, err)

	errs := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := s.Reply(ctx, userMsg.ID)
		errs <- err
	}()

	s.NewChat()
	close(resp.release)

	_, err = wait(t, p)
	require.ErrorIs(t, err, screen.ErrAbandoned)
	require.ErrorIs(t, <-errs, screen.ErrNoReply)
}
