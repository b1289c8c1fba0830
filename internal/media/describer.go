// Package media implements the attachment description pipeline: it turns a
// media attachment into a short model-generated textual description before
// the message is persisted.
//
// Description is strictly best-effort. Any failure along the way (download,
// transcode, model call, cache write) is logged as a warning and the message
// proceeds without a description; the pipeline must never fail ingestion.
package media

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/edgard/concisely/internal/database"
	"github.com/edgard/concisely/internal/gemini"
)

// Cache provides the sticker description cache. Cacheable media (stickers)
// are looked up here before any remote model call.
type Cache interface {
	GetStickerDescription(ctx context.Context, fileUniqueID string) (string, bool, error)
	SaveStickerDescription(ctx context.Context, fileUniqueID, text string) error
}

// Fetcher downloads raw media bytes for a Telegram file reference.
type Fetcher interface {
	Download(ctx context.Context, fileID string) (data []byte, mimeType string, err error)
}

// Describer runs the attachment description pipeline.
type Describer struct {
	log    *slog.Logger
	vision gemini.Client
	cache  Cache
	fetch  Fetcher

	// transcode converts OGG voice audio to MP3; swappable in tests.
	transcode func(ctx context.Context, audio []byte) ([]byte, error)
}

// NewDescriber creates a Describer using ffmpeg for voice transcoding.
func NewDescriber(log *slog.Logger, vision gemini.Client, cache Cache, fetch Fetcher) *Describer {
	if log == nil {
		log = slog.Default()
	}
	return &Describer{
		log:       log.With("component", "describer"),
		vision:    vision,
		cache:     cache,
		fetch:     fetch,
		transcode: ConvertOGGToMP3,
	}
}

// Describe populates att.Description (and DescribeCost, when known) for
// describable attachment types. It reports whether a description was
// produced. Errors never propagate: the caller persists the message either
// way.
func (d *Describer) Describe(ctx context.Context, att *database.Attachment) bool {
	if att == nil {
		return false
	}

	var err error
	switch att.Type {
	case database.AttachmentPhoto:
		err = d.describeSimple(ctx, att, d.vision.DescribeImage)
	case database.AttachmentVideoNote:
		err = d.describeSimple(ctx, att, d.vision.DescribeVideoNote)
	case database.AttachmentSticker:
		err = d.describeSticker(ctx, att)
	case database.AttachmentVoice:
		err = d.describeVoice(ctx, att)
	default:
		// All other types render as structural placeholders in the
		// prompt; no model call.
		return false
	}

	if err != nil {
		d.log.WarnContext(ctx, "Attachment description failed, continuing without it",
			"type", att.Type, "file_id", att.FileID, "error", err)
		return false
	}
	return att.Description != ""
}

func (d *Describer) describeSimple(
	ctx context.Context,
	att *database.Attachment,
	describe func(ctx context.Context, data []byte, mimeType string) (*gemini.DescribeResult, error),
) error {
	if att.FileID == "" {
		return fmt.Errorf("attachment has no file reference")
	}

	data, mimeType, err := d.fetch.Download(ctx, att.FileID)
	if err != nil {
		return fmt.Errorf("media download failed: %w", err)
	}

	result, err := describe(ctx, data, mimeType)
	if err != nil {
		return err
	}

	att.Description = result.Text
	att.DescribeCost = result.Cost
	return nil
}

func (d *Describer) describeSticker(ctx context.Context, att *database.Attachment) error {
	if att.FileUniqueID == "" {
		return fmt.Errorf("sticker has no file_unique_id")
	}

	cached, found, err := d.cache.GetStickerDescription(ctx, att.FileUniqueID)
	if err != nil {
		return fmt.Errorf("sticker cache lookup failed: %w", err)
	}
	if found {
		d.log.DebugContext(ctx, "Sticker description cache hit", "file_unique_id", att.FileUniqueID)
		att.Description = cached
		return nil
	}

	fileID := att.FileID
	if att.Animated {
		// Animated and video stickers can't be sent to the vision model;
		// only their still thumbnail can.
		if att.ThumbnailFileID == "" {
			d.log.WarnContext(ctx, "Animated sticker has no thumbnail, skipping description",
				"file_unique_id", att.FileUniqueID)
			return nil
		}
		fileID = att.ThumbnailFileID
	}
	if fileID == "" {
		return fmt.Errorf("sticker has no file reference")
	}

	data, mimeType, err := d.fetch.Download(ctx, fileID)
	if err != nil {
		return fmt.Errorf("sticker download failed: %w", err)
	}

	result, err := d.vision.DescribeSticker(ctx, data, mimeType)
	if err != nil {
		return err
	}

	att.Description = result.Text
	att.DescribeCost = result.Cost

	// Cache for future messages carrying the same sticker. The write is
	// idempotent, so losing a race with a concurrent describe is harmless.
	if err := d.cache.SaveStickerDescription(ctx, att.FileUniqueID, result.Text); err != nil {
		d.log.WarnContext(ctx, "Failed to cache sticker description",
			"file_unique_id", att.FileUniqueID, "error", err)
	}
	return nil
}

func (d *Describer) describeVoice(ctx context.Context, att *database.Attachment) error {
	if att.FileID == "" {
		return fmt.Errorf("voice message has no file reference")
	}

	data, _, err := d.fetch.Download(ctx, att.FileID)
	if err != nil {
		return fmt.Errorf("voice download failed: %w", err)
	}

	mp3Data, err := d.transcode(ctx, data)
	if err != nil {
		return fmt.Errorf("voice transcode failed: %w", err)
	}

	result, err := d.vision.TranscribeVoice(ctx, mp3Data)
	if err != nil {
		return err
	}

	att.Description = result.Text
	att.DescribeCost = result.Cost
	return nil
}
