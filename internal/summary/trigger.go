package summary

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/edgard/concisely/internal/database"
	"github.com/edgard/concisely/internal/openrouter"
)

// Result reasons for a trigger evaluation that did not produce a summary.
// A successful generation leaves Reason empty.
const (
	ReasonAlreadyGenerating  = "already_generating"
	ReasonFirstRun           = "first_run"
	ReasonIntervalNotReached = "interval_not_reached"
	ReasonNoMessages         = "no_messages"
	ReasonError              = "error"
)

// Sender delivers a finished summary to its chat.
type Sender interface {
	SendSummary(ctx context.Context, chatID int64, summary, model string) error
}

// Result records the outcome of one trigger evaluation, in the shape the
// wide log expects.
type Result struct {
	Attempted         bool     `json:"attempted"`
	Sent              bool     `json:"sent"`
	Reason            string   `json:"reason,omitempty"`
	Error             string   `json:"error,omitempty"`
	LastSummaryID     *int64   `json:"last_summary_id,omitempty"`
	NewLastSummaryID  *int64   `json:"new_last_summary_id,omitempty"`
	MessagesSinceLast int64    `json:"messages_since_last,omitempty"`
	Interval          int64    `json:"interval,omitempty"`
	MessagesCount     int      `json:"messages_count,omitempty"`
	Model             string   `json:"model,omitempty"`
	SummaryChars      int      `json:"summary_chars,omitempty"`
	Cost              *float64 `json:"cost,omitempty"`
	DurationMS        float64  `json:"duration_ms,omitempty"`
}

// chatState holds the per-chat concurrency primitives. The mutex serializes
// watermark reads and interval checks; the generating flag marks an in-flight
// generation and doubles as the lock-free fast path.
type chatState struct {
	mu         sync.Mutex
	generating atomic.Bool
}

// Engine is the summarization trigger. It owns per-chat watermark state and
// guarantees at most one generation in flight per chat.
type Engine struct {
	log         *slog.Logger
	store       database.Store
	model       openrouter.Client
	sender      Sender
	intervalFor func(chatID int64) (int64, bool)

	mu     sync.Mutex
	states map[int64]*chatState
}

// NewEngine creates a trigger engine. intervalFor resolves the per-chat
// message-count threshold; chats it does not know are never summarized.
func NewEngine(log *slog.Logger, store database.Store, model openrouter.Client, sender Sender, intervalFor func(chatID int64) (int64, bool)) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		log:         log.With("component", "summary_engine"),
		store:       store,
		model:       model,
		sender:      sender,
		intervalFor: intervalFor,
		states:      make(map[int64]*chatState),
	}
}

func (e *Engine) state(chatID int64) *chatState {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.states[chatID]
	if !ok {
		st = &chatState{}
		e.states[chatID] = st
	}
	return st
}

// OnMessage evaluates whether the given message should trigger a summary for
// its chat and, if so, runs the full generation flow inline. It never returns
// an error: failures are folded into the Result so ingestion is unaffected.
func (e *Engine) OnMessage(ctx context.Context, chatID, messageID int64) *Result {
	res := &Result{}

	st := e.state(chatID)

	// Fast path: skip the lock entirely while a generation is in flight,
	// so message bursts during a slow model call don't pile up on it.
	if st.generating.Load() {
		res.Reason = ReasonAlreadyGenerating
		return res
	}

	st.mu.Lock()
	if st.generating.Load() {
		st.mu.Unlock()
		res.Reason = ReasonAlreadyGenerating
		return res
	}

	watermark, found, err := e.store.GetLastSummaryMessageID(ctx, chatID)
	if err != nil {
		st.mu.Unlock()
		e.fail(ctx, res, chatID, fmt.Errorf("failed to read watermark: %w", err))
		return res
	}

	if !found {
		// First message ever seen for this chat: set the starting point,
		// generate nothing.
		if err := e.store.SetLastSummaryMessageID(ctx, chatID, messageID); err != nil {
			st.mu.Unlock()
			e.fail(ctx, res, chatID, fmt.Errorf("failed to initialize watermark: %w", err))
			return res
		}
		st.mu.Unlock()
		res.Reason = ReasonFirstRun
		res.NewLastSummaryID = &messageID
		return res
	}

	res.LastSummaryID = &watermark

	interval, monitored := e.intervalFor(chatID)
	if !monitored {
		st.mu.Unlock()
		res.Reason = ReasonIntervalNotReached
		return res
	}

	pending := messageID - watermark
	if pending < interval {
		st.mu.Unlock()
		res.Reason = ReasonIntervalNotReached
		res.MessagesSinceLast = pending
		res.Interval = interval
		return res
	}

	st.generating.Store(true)
	st.mu.Unlock()

	defer st.generating.Store(false)

	res.Attempted = true
	start := time.Now()
	defer func() {
		res.DurationMS = float64(time.Since(start).Microseconds()) / 1000.0
	}()

	e.log.InfoContext(ctx, "Generating summary",
		"chat_id", chatID, "from_message_id", watermark, "to_message_id", messageID)

	if err := e.generate(ctx, res, chatID, watermark, messageID, start); err != nil {
		e.fail(ctx, res, chatID, err)
	}
	return res
}

// generate runs fetch, render, model call, send, and persistence for the
// window (fromID, toID]. The watermark advances only after the send attempt.
func (e *Engine) generate(ctx context.Context, res *Result, chatID, fromID, toID int64, start time.Time) error {
	messages, err := e.store.GetMessagesBetween(ctx, chatID, fromID, toID)
	if err != nil {
		return fmt.Errorf("failed to fetch message window: %w", err)
	}
	res.MessagesCount = len(messages)

	if len(messages) == 0 {
		// Leave the watermark alone so the next qualifying message
		// retries against the same window start.
		e.log.WarnContext(ctx, "No messages in summarization window", "chat_id", chatID)
		res.Reason = ReasonNoMessages
		return nil
	}

	prompt := RenderPrompt(messages)

	result, err := e.model.Summarize(ctx, prompt)
	if err != nil {
		return err
	}
	res.Model = result.Model
	res.SummaryChars = len(result.Text)
	res.Cost = result.Cost

	if err := e.sender.SendSummary(ctx, chatID, result.Text, result.Model); err != nil {
		return fmt.Errorf("failed to send summary: %w", err)
	}

	if err := e.store.SetLastSummaryMessageID(ctx, chatID, toID); err != nil {
		return fmt.Errorf("failed to advance watermark: %w", err)
	}
	res.NewLastSummaryID = &toID
	res.Sent = true

	summary := &database.Summary{
		ChatID:        chatID,
		FromMessageID: fromID,
		ToMessageID:   toID,
		Model:         result.Model,
		Text:          result.Text,
		InputTokens:   result.InputTokens,
		OutputTokens:  result.OutputTokens,
		Cost:          result.Cost,
		DurationMS:    float64(time.Since(start).Microseconds()) / 1000.0,
	}
	if err := e.store.SaveSummary(ctx, summary); err != nil {
		// The summary was already delivered and the watermark advanced;
		// losing the audit row is not worth surfacing as a failure.
		e.log.WarnContext(ctx, "Failed to persist summary record", "chat_id", chatID, "error", err)
	}

	e.log.InfoContext(ctx, "Summary sent",
		"chat_id", chatID, "model", result.Model, "new_last_summary_message_id", toID)
	return nil
}

func (e *Engine) fail(ctx context.Context, res *Result, chatID int64, err error) {
	res.Reason = ReasonError
	res.Error = err.Error()
	e.log.ErrorContext(ctx, "Summary generation failed", "chat_id", chatID, "error", err)
}
