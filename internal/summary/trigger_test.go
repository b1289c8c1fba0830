package summary_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/edgard/concisely/internal/database"
	"github.com/edgard/concisely/internal/openrouter"
	"github.com/edgard/concisely/internal/summary"
)

type fakeStore struct {
	database.Store

	mu         sync.Mutex
	watermarks map[int64]int64
	window     []*database.Message
	summaries  []*database.Summary

	watermarkErr   error
	windowErr      error
	saveSummaryErr error

	windowCalls []struct{ from, to int64 }
}

func newFakeStore() *fakeStore {
	return &fakeStore{watermarks: map[int64]int64{}}
}

func (s *fakeStore) GetLastSummaryMessageID(_ context.Context, chatID int64) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watermarkErr != nil {
		return 0, false, s.watermarkErr
	}
	id, ok := s.watermarks[chatID]
	return id, ok, nil
}

func (s *fakeStore) SetLastSummaryMessageID(_ context.Context, chatID, messageID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watermarks[chatID] = messageID
	return nil
}

func (s *fakeStore) GetMessagesBetween(_ context.Context, _ int64, fromID, toID int64) ([]*database.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windowCalls = append(s.windowCalls, struct{ from, to int64 }{fromID, toID})
	if s.windowErr != nil {
		return nil, s.windowErr
	}
	return s.window, nil
}

func (s *fakeStore) SaveSummary(_ context.Context, summary *database.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveSummaryErr != nil {
		return s.saveSummaryErr
	}
	s.summaries = append(s.summaries, summary)
	return nil
}

func (s *fakeStore) watermark(chatID int64) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.watermarks[chatID]
	return id, ok
}

type fakeModel struct {
	mu      sync.Mutex
	calls   int
	err     error
	result  *openrouter.SummaryResult
	started chan struct{}
	release chan struct{}
}

func (m *fakeModel) Summarize(_ context.Context, _ string) (*openrouter.SummaryResult, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.started != nil {
		m.started <- struct{}{}
	}
	if m.release != nil {
		<-m.release
	}
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &openrouter.SummaryResult{Text: "digest", Model: "openai/gpt-5-mini"}, nil
}

func (m *fakeModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type fakeSender struct {
	mu    sync.Mutex
	err   error
	sent  []string
	chats []int64
}

func (s *fakeSender) SendSummary(_ context.Context, chatID int64, text, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, text)
	s.chats = append(s.chats, chatID)
	return nil
}

func fixedInterval(interval int64) func(int64) (int64, bool) {
	return func(int64) (int64, bool) { return interval, true }
}

const testChatID = int64(-100500)

func TestEngineFirstRun(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	model := &fakeModel{}
	engine := summary.NewEngine(nil, store, model, &fakeSender{}, fixedInterval(7))

	res := engine.OnMessage(context.Background(), testChatID, 42)

	if res.Reason != summary.ReasonFirstRun {
		t.Fatalf("Reason = %q, want %q", res.Reason, summary.ReasonFirstRun)
	}
	if wm, ok := store.watermark(testChatID); !ok || wm != 42 {
		t.Errorf("watermark = %d (found=%v), want 42", wm, ok)
	}
	if model.callCount() != 0 {
		t.Errorf("model calls = %d, want 0 on first run", model.callCount())
	}
}

func TestEngineIntervalNotReached(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.watermarks[testChatID] = 100
	model := &fakeModel{}
	engine := summary.NewEngine(nil, store, model, &fakeSender{}, fixedInterval(7))

	for id := int64(101); id <= 106; id++ {
		res := engine.OnMessage(context.Background(), testChatID, id)
		if res.Reason != summary.ReasonIntervalNotReached {
			t.Fatalf("message %d: Reason = %q, want %q", id, res.Reason, summary.ReasonIntervalNotReached)
		}
		if res.MessagesSinceLast != id-100 {
			t.Errorf("message %d: MessagesSinceLast = %d, want %d", id, res.MessagesSinceLast, id-100)
		}
	}

	if wm, _ := store.watermark(testChatID); wm != 100 {
		t.Errorf("watermark = %d, want unchanged 100", wm)
	}
	if model.callCount() != 0 {
		t.Errorf("model calls = %d, want 0", model.callCount())
	}
}

func TestEngineGeneratesAtInterval(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.watermarks[testChatID] = 100
	store.window = []*database.Message{
		msg(101, "Alice", "hello"),
		msg(107, "Bob", "bye"),
	}
	model := &fakeModel{}
	sender := &fakeSender{}
	engine := summary.NewEngine(nil, store, model, sender, fixedInterval(7))

	res := engine.OnMessage(context.Background(), testChatID, 107)

	if res.Reason != "" {
		t.Fatalf("Reason = %q, want success (error %q)", res.Reason, res.Error)
	}
	if !res.Attempted || !res.Sent {
		t.Errorf("Attempted=%v Sent=%v, want both true", res.Attempted, res.Sent)
	}
	if len(store.windowCalls) != 1 || store.windowCalls[0].from != 100 || store.windowCalls[0].to != 107 {
		t.Errorf("window fetch = %+v, want one call for (100, 107]", store.windowCalls)
	}
	if wm, _ := store.watermark(testChatID); wm != 107 {
		t.Errorf("watermark = %d, want 107", wm)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "digest" {
		t.Errorf("sent = %v, want one digest", sender.sent)
	}
	if len(store.summaries) != 1 {
		t.Fatalf("summaries saved = %d, want 1", len(store.summaries))
	}
	saved := store.summaries[0]
	if saved.FromMessageID != 100 || saved.ToMessageID != 107 || saved.Model != "openai/gpt-5-mini" {
		t.Errorf("saved summary = %+v, want range (100, 107] and the model name", saved)
	}
	if res.MessagesCount != 2 {
		t.Errorf("MessagesCount = %d, want 2", res.MessagesCount)
	}
}

func TestEngineEmptyWindow(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.watermarks[testChatID] = 100
	model := &fakeModel{}
	engine := summary.NewEngine(nil, store, model, &fakeSender{}, fixedInterval(7))

	res := engine.OnMessage(context.Background(), testChatID, 107)

	if res.Reason != summary.ReasonNoMessages {
		t.Fatalf("Reason = %q, want %q", res.Reason, summary.ReasonNoMessages)
	}
	if wm, _ := store.watermark(testChatID); wm != 100 {
		t.Errorf("watermark = %d, want unchanged 100 on empty window", wm)
	}
	if model.callCount() != 0 {
		t.Errorf("model calls = %d, want 0", model.callCount())
	}
}

func TestEngineModelError(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.watermarks[testChatID] = 100
	store.window = []*database.Message{msg(101, "Alice", "hello")}
	model := &fakeModel{err: errors.New("model unavailable")}
	sender := &fakeSender{}
	engine := summary.NewEngine(nil, store, model, sender, fixedInterval(7))

	res := engine.OnMessage(context.Background(), testChatID, 107)

	if res.Reason != summary.ReasonError {
		t.Fatalf("Reason = %q, want %q", res.Reason, summary.ReasonError)
	}
	if res.Error == "" {
		t.Error("Error is empty, want the underlying message")
	}
	if wm, _ := store.watermark(testChatID); wm != 100 {
		t.Errorf("watermark = %d, want unchanged 100 after model failure", wm)
	}
	if len(sender.sent) != 0 {
		t.Errorf("sent = %v, want nothing", sender.sent)
	}

	// The flag must be clear again: the next qualifying message retries
	// against the same window start.
	model.err = nil
	res = engine.OnMessage(context.Background(), testChatID, 108)
	if res.Reason != "" {
		t.Fatalf("retry Reason = %q, want success", res.Reason)
	}
	if len(store.windowCalls) != 2 || store.windowCalls[1].from != 100 {
		t.Errorf("retry window fetch = %+v, want second call from 100", store.windowCalls)
	}
}

func TestEngineSendError(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.watermarks[testChatID] = 100
	store.window = []*database.Message{msg(101, "Alice", "hello")}
	engine := summary.NewEngine(nil, store, &fakeModel{}, &fakeSender{err: errors.New("telegram down")}, fixedInterval(7))

	res := engine.OnMessage(context.Background(), testChatID, 107)

	if res.Reason != summary.ReasonError {
		t.Fatalf("Reason = %q, want %q", res.Reason, summary.ReasonError)
	}
	if wm, _ := store.watermark(testChatID); wm != 100 {
		t.Errorf("watermark = %d, want unchanged 100 when send fails", wm)
	}
	if len(store.summaries) != 0 {
		t.Errorf("summaries saved = %d, want 0", len(store.summaries))
	}
}

func TestEngineSummaryRecordFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.watermarks[testChatID] = 100
	store.window = []*database.Message{msg(101, "Alice", "hello")}
	store.saveSummaryErr = errors.New("disk full")
	engine := summary.NewEngine(nil, store, &fakeModel{}, &fakeSender{}, fixedInterval(7))

	res := engine.OnMessage(context.Background(), testChatID, 107)

	if res.Reason != "" || !res.Sent {
		t.Fatalf("Reason=%q Sent=%v, want delivered summary despite audit failure", res.Reason, res.Sent)
	}
	if wm, _ := store.watermark(testChatID); wm != 107 {
		t.Errorf("watermark = %d, want 107", wm)
	}
}

func TestEngineSingleFlight(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.watermarks[testChatID] = 100
	store.window = []*database.Message{msg(101, "Alice", "hello")}
	model := &fakeModel{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	engine := summary.NewEngine(nil, store, model, &fakeSender{}, fixedInterval(7))

	done := make(chan *summary.Result, 1)
	go func() {
		done <- engine.OnMessage(context.Background(), testChatID, 107)
	}()

	<-model.started

	// Messages arriving mid-generation must short-circuit without a second
	// model call or any state change.
	for _, id := range []int64{108, 109} {
		res := engine.OnMessage(context.Background(), testChatID, id)
		if res.Reason != summary.ReasonAlreadyGenerating {
			t.Errorf("message %d: Reason = %q, want %q", id, res.Reason, summary.ReasonAlreadyGenerating)
		}
	}

	close(model.release)
	res := <-done

	if res.Reason != "" {
		t.Fatalf("generation Reason = %q, want success", res.Reason)
	}
	if model.callCount() != 1 {
		t.Errorf("model calls = %d, want exactly 1", model.callCount())
	}
	if wm, _ := store.watermark(testChatID); wm != 107 {
		t.Errorf("watermark = %d, want 107", wm)
	}
}

func TestEngineUnmonitoredChat(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.watermarks[testChatID] = 100
	model := &fakeModel{}
	engine := summary.NewEngine(nil, store, model, &fakeSender{}, func(int64) (int64, bool) { return 0, false })

	res := engine.OnMessage(context.Background(), testChatID, 9999)

	if res.Reason != summary.ReasonIntervalNotReached {
		t.Fatalf("Reason = %q, want %q", res.Reason, summary.ReasonIntervalNotReached)
	}
	if model.callCount() != 0 {
		t.Errorf("model calls = %d, want 0", model.callCount())
	}
}

func TestEngineWatermarkReadError(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.watermarkErr = errors.New("db locked")
	engine := summary.NewEngine(nil, store, &fakeModel{}, &fakeSender{}, fixedInterval(7))

	res := engine.OnMessage(context.Background(), testChatID, 107)
	if res.Reason != summary.ReasonError {
		t.Fatalf("Reason = %q, want %q", res.Reason, summary.ReasonError)
	}
}
