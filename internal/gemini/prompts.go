package gemini

// DescribeImageInstruction asks the vision model for a short description of
// a photo.
const DescribeImageInstruction = `Что изображено на картинке? Кратко`

// DescribeStickerInstruction asks the vision model for a very short sticker
// description, with a special format for stickers that are screenshots of
// chat messages.
const DescribeStickerInstruction = `Очень кратко опиши стикер. Если стикер представляет собой скриншот сообщения, ответь в формате "Имя:\nтекст сообщения"`

// DescribeVideoNoteInstruction asks the model to describe what happens and
// what is said in a round video message.
const DescribeVideoNoteInstruction = `Что происходит / какие слова говорятся в видеосообщении?`

// TranscribeVoiceInstruction asks the audio model for a bare transcription
// of a voice message.
const TranscribeVoiceInstruction = `Расшифруй это голосовое сообщение. Выведи только текст.`
