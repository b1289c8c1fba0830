package database_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/edgard/concisely/internal/database"

	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T) database.Store {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB() error: %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })

	return database.NewStore(db, nil)
}

const chatID = int64(-100500)

func saveMsg(t *testing.T, store database.Store, id int64, text string, att *database.Attachment) {
	t.Helper()
	err := store.SaveMessage(context.Background(), &database.Message{
		ChatID:     chatID,
		MessageID:  id,
		SenderName: "Alice",
		Text:       text,
		Raw:        "{}",
		Attachment: att,
	})
	if err != nil {
		t.Fatalf("SaveMessage(%d) error: %v", id, err)
	}
}

func TestMessageWindow(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []int64{101, 103, 102, 105, 104} {
		saveMsg(t, store, id, "m", nil)
	}

	messages, err := store.GetMessagesBetween(ctx, chatID, 101, 104)
	if err != nil {
		t.Fatalf("GetMessagesBetween() error: %v", err)
	}

	// Window is (from, to]: 101 excluded, 104 included, ascending order.
	want := []int64{102, 103, 104}
	if len(messages) != len(want) {
		t.Fatalf("window has %d messages, want %d", len(messages), len(want))
	}
	for i, id := range want {
		if messages[i].MessageID != id {
			t.Errorf("messages[%d].MessageID = %d, want %d", i, messages[i].MessageID, id)
		}
	}
}

func TestDuplicateMessageRejected(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	saveMsg(t, store, 101, "first", nil)

	err := store.SaveMessage(context.Background(), &database.Message{
		ChatID:     chatID,
		MessageID:  101,
		SenderName: "Bob",
		Raw:        "{}",
	})
	if err == nil {
		t.Error("saving a duplicate (chat_id, message_id) should fail")
	}
}

func TestAttachmentRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	cost := 0.0004
	saveMsg(t, store, 101, "", &database.Attachment{
		Type:         database.AttachmentSticker,
		FileID:       "s-1",
		FileUniqueID: "u-1",
		Emoji:        "😀",
		Description:  "a frog",
		DescribeCost: &cost,
	})
	saveMsg(t, store, 102, "plain", nil)

	messages, err := store.GetMessagesBetween(context.Background(), chatID, 100, 102)
	if err != nil {
		t.Fatalf("GetMessagesBetween() error: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(messages))
	}

	att := messages[0].Attachment
	if att == nil {
		t.Fatal("first message lost its attachment")
	}
	if att.Type != database.AttachmentSticker || att.Description != "a frog" || att.Emoji != "😀" {
		t.Errorf("attachment = %+v, want sticker fields restored", att)
	}
	if att.DescribeCost == nil || *att.DescribeCost != cost {
		t.Errorf("DescribeCost = %v, want %v", att.DescribeCost, cost)
	}
	if messages[1].Attachment != nil {
		t.Errorf("second message attachment = %+v, want nil", messages[1].Attachment)
	}
}

func TestRecentMessagesAscending(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	for id := int64(101); id <= 110; id++ {
		saveMsg(t, store, id, "m", nil)
	}

	messages, err := store.GetRecentMessages(context.Background(), chatID, 3)
	if err != nil {
		t.Fatalf("GetRecentMessages() error: %v", err)
	}
	want := []int64{108, 109, 110}
	if len(messages) != len(want) {
		t.Fatalf("got %d messages, want %d", len(messages), len(want))
	}
	for i, id := range want {
		if messages[i].MessageID != id {
			t.Errorf("messages[%d].MessageID = %d, want %d", i, messages[i].MessageID, id)
		}
	}
}

func TestWatermark(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if _, found, err := store.GetLastSummaryMessageID(ctx, chatID); err != nil || found {
		t.Fatalf("fresh chat: found=%v err=%v, want no watermark", found, err)
	}

	if err := store.SetLastSummaryMessageID(ctx, chatID, 100); err != nil {
		t.Fatalf("SetLastSummaryMessageID() error: %v", err)
	}
	if err := store.SetLastSummaryMessageID(ctx, chatID, 107); err != nil {
		t.Fatalf("SetLastSummaryMessageID() upsert error: %v", err)
	}

	id, found, err := store.GetLastSummaryMessageID(ctx, chatID)
	if err != nil || !found || id != 107 {
		t.Errorf("watermark = %d (found=%v, err=%v), want 107", id, found, err)
	}
}

func TestStickerCache(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if _, found, err := store.GetStickerDescription(ctx, "u-1"); err != nil || found {
		t.Fatalf("cold cache: found=%v err=%v", found, err)
	}

	if err := store.SaveStickerDescription(ctx, "u-1", "a frog"); err != nil {
		t.Fatalf("SaveStickerDescription() error: %v", err)
	}
	// Idempotent: the second write is a no-op and keeps the original text.
	if err := store.SaveStickerDescription(ctx, "u-1", "something else"); err != nil {
		t.Fatalf("SaveStickerDescription() repeat error: %v", err)
	}

	text, found, err := store.GetStickerDescription(ctx, "u-1")
	if err != nil || !found || text != "a frog" {
		t.Errorf("cached description = %q (found=%v, err=%v), want original text", text, found, err)
	}
}

func TestSaveSummary(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	inTok, outTok := int64(1200), int64(300)
	err := store.SaveSummary(context.Background(), &database.Summary{
		ChatID:        chatID,
		FromMessageID: 100,
		ToMessageID:   107,
		Model:         "openai/gpt-5-mini",
		Text:          "digest",
		InputTokens:   &inTok,
		OutputTokens:  &outTok,
		DurationMS:    1234.5,
	})
	if err != nil {
		t.Fatalf("SaveSummary() error: %v", err)
	}
}
