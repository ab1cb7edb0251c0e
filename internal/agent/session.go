package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/samsaffron/term-agent/internal/llm"
)

// ErrBusy is returned when a turn is already in flight.
var ErrBusy = errors.New("a turn is already in progress")

const summaryHeader = "[Summary of previous conversation]"

const summaryInstruction = "Summarize the conversation so far so it can replace the full history. " +
	"Keep every fact, decision, file path, command and open task needed to continue the work. " +
	"Reply with the summary only."

// PendingWakeup is a timer wakeup that fired while a turn was running.
type PendingWakeup struct {
	FiredAt time.Time
}

// Confirmer asks the user whether to summarize an over-budget conversation.
type Confirmer func(status BudgetStatus) bool

// Hooks lets the front end observe work that happens outside a Submit call.
type Hooks struct {
	// OnWakeup is called with the injected message before a wakeup turn runs.
	OnWakeup func(text string)
	// OnError reports failures of turns started by wakeups.
	OnError func(err error)
	// OnSummary is called with the summary text after a successful summarization.
	OnSummary func(text string)
}

// Options configures a Session.
type Options struct {
	Budget    Budget
	Store     llm.Persister
	Confirm   Confirmer
	Hooks     Hooks
	BaseCtx   context.Context
	SessionID string
}

// Session owns the conversation and admits exactly one turn at a time.
// Wakeups that arrive mid-turn are queued and drained FIFO before the guard is
// released.
type Session struct {
	id      string
	conv    *Conversation
	engine  *llm.Engine
	budget  Budget
	store   llm.Persister
	confirm Confirmer
	hooks   Hooks
	baseCtx context.Context

	mu      sync.Mutex
	busy    bool
	pending []PendingWakeup
}

func NewSession(engine *llm.Engine, conv *Conversation, opts Options) *Session {
	if conv == nil {
		conv = NewConversation(nil)
	}
	id := opts.SessionID
	if id == "" {
		id = uuid.NewString()
	}
	ctx := opts.BaseCtx
	if ctx == nil {
		ctx = context.Background()
	}
	s := &Session{
		id:      id,
		conv:    conv,
		engine:  engine,
		budget:  opts.Budget,
		store:   opts.Store,
		confirm: opts.Confirm,
		hooks:   opts.Hooks,
		baseCtx: ctx,
	}
	if s.store != nil {
		engine.SetPersister(s.store)
	}
	return s
}

// ID identifies the session in logs.
func (s *Session) ID() string {
	return s.id
}

// Conversation returns the session's message log.
func (s *Session) Conversation() *Conversation {
	return s.conv
}

// Busy reports whether a turn is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Pending returns the number of queued wakeups.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Status reports the current budget usage.
func (s *Session) Status() BudgetStatus {
	return s.budget.Check(s.engine.SystemPrompt(), s.conv.Messages())
}

// Submit admits a user turn. It offers summarization when the conversation is
// over budget, runs the turn and then drains queued wakeups.
func (s *Session) Submit(ctx context.Context, text string) error {
	if !s.acquire() {
		return ErrBusy
	}
	defer s.drainAndRelease(ctx)

	if status := s.Status(); status.Exceeded() && s.confirm != nil {
		slog.Debug("conversation over budget", "session", s.id, "tokens", status.Tokens, "messages", status.Messages)
		if s.confirm(status) {
			if err := s.summarize(ctx); err != nil {
				s.reportError(fmt.Errorf("summarization failed, continuing with full history: %w", err))
			}
		}
	}

	s.conv.Append(llm.UserText(text))
	return s.runTurn(ctx)
}

// Wakeup is called when a timer fires. If a turn is running the wakeup is
// queued, otherwise a wakeup turn runs immediately on the caller's goroutine.
func (s *Session) Wakeup(firedAt time.Time) {
	s.mu.Lock()
	if s.busy {
		s.pending = append(s.pending, PendingWakeup{FiredAt: firedAt})
		s.mu.Unlock()
		slog.Debug("deferring timer wakeup", "session", s.id, "fired_at", firedAt)
		return
	}
	s.busy = true
	s.mu.Unlock()

	ctx := s.baseCtx
	defer s.drainAndRelease(ctx)
	s.runWakeup(ctx, WakeupMessage(firedAt))
}

// Summarize condenses the conversation on demand.
func (s *Session) Summarize(ctx context.Context) error {
	if !s.acquire() {
		return ErrBusy
	}
	defer s.drainAndRelease(ctx)
	return s.summarize(ctx)
}

// Clear empties the conversation and persists the empty log.
func (s *Session) Clear(ctx context.Context) error {
	if !s.acquire() {
		return ErrBusy
	}
	defer s.drainAndRelease(ctx)
	s.conv.Clear()
	s.Flush(ctx)
	return nil
}

// Flush saves the current conversation. It does not take the guard so it can
// run from a signal handler while a turn is in flight.
func (s *Session) Flush(ctx context.Context) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(ctx, s.conv.Messages()); err != nil {
		slog.Warn("failed to persist conversation", "session", s.id, "error", err)
	}
}

// WakeupMessage is injected when a timer fires while the session is idle.
func WakeupMessage(firedAt time.Time) string {
	return fmt.Sprintf("[SYSTEM: Timer wakeup at %s. The time you set has elapsed.]", firedAt.Format(time.RFC3339))
}

// DeferredWakeupMessage is injected for a wakeup that fired during a turn.
func DeferredWakeupMessage(firedAt time.Time) string {
	return fmt.Sprintf("[SYSTEM: Deferred timer wakeup from %s. The timer fired while you were busy.]", firedAt.Format(time.RFC3339))
}

func (s *Session) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false
	}
	s.busy = true
	return true
}

// drainAndRelease runs one turn per queued wakeup, oldest first. The emptiness
// check and the release share the lock so a wakeup cannot slip in between.
func (s *Session) drainAndRelease(ctx context.Context) {
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.busy = false
			s.mu.Unlock()
			return
		}
		next := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()

		slog.Debug("draining deferred wakeup", "session", s.id, "fired_at", next.FiredAt)
		s.runWakeup(ctx, DeferredWakeupMessage(next.FiredAt))
	}
}

func (s *Session) runWakeup(ctx context.Context, text string) {
	if s.hooks.OnWakeup != nil {
		s.hooks.OnWakeup(text)
	}
	s.conv.Append(llm.UserText(text))
	if err := s.runTurn(ctx); err != nil {
		s.reportError(err)
	}
}

// runTurn saves what it can before letting a panic escape.
func (s *Session) runTurn(ctx context.Context) error {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("turn panicked, flushing conversation", "session", s.id, "panic", r)
			s.Flush(context.WithoutCancel(ctx))
			panic(r)
		}
	}()
	return s.engine.RunTurn(ctx, s.conv)
}

func (s *Session) reportError(err error) {
	slog.Warn("turn failed", "session", s.id, "error", err)
	if s.hooks.OnError != nil {
		s.hooks.OnError(err)
	}
}

// summarize replaces the conversation with a single summary message. On any
// failure the conversation is left untouched.
func (s *Session) summarize(ctx context.Context) error {
	msgs := s.conv.Messages()
	if len(msgs) == 0 {
		return errors.New("nothing to summarize")
	}

	req := s.engine.Request(append(msgs, llm.UserText(summaryInstruction)), false)
	resp, err := s.engine.Client().Complete(ctx, req)
	if err != nil {
		return err
	}
	summary := strings.TrimSpace(resp.Text())
	if summary == "" {
		return errors.New("model returned an empty summary")
	}

	s.conv.Replace([]llm.Message{llm.AssistantText(summaryHeader + "\n\n" + summary)})
	s.Flush(ctx)
	slog.Debug("conversation summarized", "session", s.id, "before", len(msgs))
	if s.hooks.OnSummary != nil {
		s.hooks.OnSummary(summary)
	}
	return nil
}
