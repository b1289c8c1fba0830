// Package summary contains the summarization core: the prompt assembler that
// renders a message window into model input, and the trigger engine that
// decides when a chat gets summarized.
package summary

import (
	"fmt"
	"strings"

	"github.com/edgard/concisely/internal/database"
)

// SummarizationPrompt is the fixed instruction block prepended to every
// rendered message window.
const SummarizationPrompt = `Ты — бот-саммаризатор сообщений в Telegram.

Сообщения поступают в формате:
` + "```" + `
### ID Name
  text
` + "```" + `

Перескажи самые интересные / смешные моменты.

Требования:
0. Язык ответа — русский
1. Длина — приблизительно до 1200 символов
2. Пиши только сам пересказ! Без фразы "Вот основные моменты", без заголовка "Пересказ", без рассуждений о чате в целом.
3. Для форматирования используй html (не markdown).
4. Используй только теги, поддерживаемые Telegram:
   - <b>текст</b> (жирный)
   - <i>текст</i> (курсив)
   - <a href="URL">текст</a> (ссылки)
5. Вместо списков (<ul>) используй символы-буллеты (• или -) и обычный перенос строки (\n).
6. Обязательно закрывай все теги.`

// RenderPrompt assembles the full model prompt for a message window: the
// instruction block followed by every message rendered inside a <messages>
// envelope. Rendering is deterministic, identical input always produces an
// identical prompt.
func RenderPrompt(messages []*database.Message) string {
	return SummarizationPrompt + "\n\n" + RenderMessages(messages)
}

// RenderMessages renders the <messages> envelope without the instruction
// block.
func RenderMessages(messages []*database.Message) string {
	var sb strings.Builder
	sb.WriteString("<messages>\n")
	for i, msg := range messages {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(RenderMessage(msg))
	}
	sb.WriteString("\n</messages>")
	return sb.String()
}

// RenderMessage renders one message: a header line with the message id,
// sender name, and optional reply/forward labels, then the attachment block
// if any, then the indented text.
func RenderMessage(msg *database.Message) string {
	var labels []string
	if msg.ReplyToMessageID.Valid {
		labels = append(labels, fmt.Sprintf("reply to %d", msg.ReplyToMessageID.Int64))
	}
	if msg.ForwardSenderName.Valid && msg.ForwardSenderName.String != "" {
		labels = append(labels, "forward from "+msg.ForwardSenderName.String)
	}

	header := fmt.Sprintf("### %d %s", msg.MessageID, msg.SenderName)
	if len(labels) > 0 {
		header += " [" + strings.Join(labels, ", ") + "]"
	}

	parts := []string{header}
	if block := renderAttachmentBlock(msg.Attachment); block != "" {
		parts = append(parts, block)
	}
	if msg.Text != "" {
		parts = append(parts, indent(msg.Text))
	}
	return strings.Join(parts, "\n")
}

// renderAttachmentBlock maps an attachment to its prompt markup. Described
// media render as paired tags around the indented description; media without
// a description render as a self-closing placeholder. Structural types
// (document, poll, new_members) render their payload inline.
func renderAttachmentBlock(att *database.Attachment) string {
	if att == nil {
		return ""
	}

	switch att.Type {
	case database.AttachmentPhoto:
		return describedOrPlaceholder("photo", att.Description)
	case database.AttachmentVoice:
		return describedOrPlaceholder("voice", att.Description)
	case database.AttachmentVideoNote:
		return describedOrPlaceholder("video_note", att.Description)
	case database.AttachmentVideo:
		return "<video />"
	case database.AttachmentAnimation:
		return "<gif />"
	case database.AttachmentSticker:
		if att.Description != "" {
			return "<sticker>\n" + indent(att.Description) + "\n</sticker>"
		}
		if att.Emoji != "" {
			return "<sticker>" + att.Emoji + "</sticker>"
		}
		return "<sticker />"
	case database.AttachmentDocument:
		name := att.FileName
		if name == "" {
			name = "файл"
		}
		return "<document>" + name + "</document>"
	case database.AttachmentPoll:
		if len(att.Options) == 0 {
			return "<poll>" + att.Question + "</poll>"
		}
		var sb strings.Builder
		sb.WriteString("<poll>")
		sb.WriteString(att.Question)
		for _, opt := range att.Options {
			sb.WriteString("\n  - ")
			sb.WriteString(opt)
		}
		sb.WriteString("\n</poll>")
		return sb.String()
	case database.AttachmentLocation:
		return "<location />"
	case database.AttachmentNewMembers:
		return "<new_members>" + att.Names + "</new_members>"
	default:
		return ""
	}
}

func describedOrPlaceholder(tag, description string) string {
	if description != "" {
		return "<" + tag + ">\n" + indent(description) + "\n</" + tag + ">"
	}
	return "<" + tag + " />"
}

func indent(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = "  " + line
	}
	return strings.Join(lines, "\n")
}
