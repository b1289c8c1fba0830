package handlers

import (
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/edgard/concisely/internal/database"
)

// ExtractAttachment maps a Telegram message to its attachment descriptor, or
// nil for plain text and unmapped content types.
func ExtractAttachment(msg *models.Message) *database.Attachment {
	switch {
	case len(msg.Photo) > 0:
		best := bestPhoto(msg.Photo)
		return &database.Attachment{
			Type:         database.AttachmentPhoto,
			FileID:       best.FileID,
			FileUniqueID: best.FileUniqueID,
		}

	case msg.Sticker != nil:
		att := &database.Attachment{
			Type:         database.AttachmentSticker,
			FileID:       msg.Sticker.FileID,
			FileUniqueID: msg.Sticker.FileUniqueID,
			Animated:     msg.Sticker.IsAnimated || msg.Sticker.IsVideo,
			Emoji:        msg.Sticker.Emoji,
		}
		if msg.Sticker.Thumbnail != nil {
			att.ThumbnailFileID = msg.Sticker.Thumbnail.FileID
		}
		return att

	case msg.Voice != nil:
		return &database.Attachment{
			Type:         database.AttachmentVoice,
			FileID:       msg.Voice.FileID,
			FileUniqueID: msg.Voice.FileUniqueID,
		}

	case msg.VideoNote != nil:
		return &database.Attachment{
			Type:         database.AttachmentVideoNote,
			FileID:       msg.VideoNote.FileID,
			FileUniqueID: msg.VideoNote.FileUniqueID,
		}

	case msg.Video != nil:
		return &database.Attachment{
			Type:         database.AttachmentVideo,
			FileID:       msg.Video.FileID,
			FileUniqueID: msg.Video.FileUniqueID,
		}

	case msg.Animation != nil:
		return &database.Attachment{
			Type:         database.AttachmentAnimation,
			FileID:       msg.Animation.FileID,
			FileUniqueID: msg.Animation.FileUniqueID,
		}

	case msg.Document != nil:
		return &database.Attachment{
			Type:         database.AttachmentDocument,
			FileID:       msg.Document.FileID,
			FileUniqueID: msg.Document.FileUniqueID,
			FileName:     msg.Document.FileName,
		}

	case msg.Poll != nil:
		att := &database.Attachment{
			Type:     database.AttachmentPoll,
			Question: msg.Poll.Question,
		}
		for _, opt := range msg.Poll.Options {
			att.Options = append(att.Options, opt.Text)
		}
		return att

	case msg.Location != nil:
		return &database.Attachment{Type: database.AttachmentLocation}

	case len(msg.NewChatMembers) > 0:
		names := make([]string, 0, len(msg.NewChatMembers))
		for _, member := range msg.NewChatMembers {
			names = append(names, fullName(&member))
		}
		return &database.Attachment{
			Type:  database.AttachmentNewMembers,
			Names: strings.Join(names, ", "),
		}
	}

	return nil
}

// bestPhoto picks the largest size variant of a photo.
func bestPhoto(sizes []models.PhotoSize) models.PhotoSize {
	best := sizes[0]
	for _, size := range sizes[1:] {
		if size.Width*size.Height > best.Width*best.Height {
			best = size
		}
	}
	return best
}

// SenderName resolves the display name for a message sender. Messages
// without a user (channel posts, service messages) get a fixed label.
func SenderName(msg *models.Message) string {
	if msg.From != nil {
		if name := fullName(msg.From); name != "" {
			return name
		}
	}
	return "Service"
}

// ForwardSenderName resolves the original-sender display name of a forwarded
// message, or "" when the message is not a forward.
func ForwardSenderName(msg *models.Message) string {
	origin := msg.ForwardOrigin
	if origin == nil {
		return ""
	}
	switch origin.Type {
	case models.MessageOriginTypeUser:
		if origin.MessageOriginUser != nil {
			return fullName(&origin.MessageOriginUser.SenderUser)
		}
	case models.MessageOriginTypeHiddenUser:
		if origin.MessageOriginHiddenUser != nil {
			return origin.MessageOriginHiddenUser.SenderUserName
		}
	case models.MessageOriginTypeChat:
		if origin.MessageOriginChat != nil {
			return origin.MessageOriginChat.SenderChat.Title
		}
	case models.MessageOriginTypeChannel:
		if origin.MessageOriginChannel != nil {
			return origin.MessageOriginChannel.Chat.Title
		}
	}
	return ""
}

// MessageText returns the text of a message, falling back to the media
// caption.
func MessageText(msg *models.Message) string {
	if msg.Text != "" {
		return msg.Text
	}
	return msg.Caption
}

func fullName(u *models.User) string {
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	return strings.TrimSpace(name)
}
