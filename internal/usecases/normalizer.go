package usecases

import "gartenconnect/internal/entities"

const maxQuoteDepth = 2

// Normalize builds the typed view of an unwrapped event. A nil or structural
// content (reactions, protocol messages) becomes a text message with an empty body.
func Normalize(evt entities.InboundEvent, content *entities.Content) entities.NormalizedMessage {
	msg := normalizeContent(content, 0)
	msg.ChatID = evt.ChatID
	msg.SenderID = evt.SenderID
	msg.Timestamp = evt.Timestamp
	return msg
}

func normalizeContent(content *entities.Content, depth int) entities.NormalizedMessage {
	msg := entities.NormalizedMessage{Kind: entities.MessageText}
	if content == nil {
		return msg
	}

	switch {
	case content.Image != nil:
		msg.Kind = entities.MessageImage
		msg.PendingMedia = content.Image
	case content.Conversation != nil:
		msg.Body = *content.Conversation
	case content.ExtendedText != nil:
		msg.Body = *content.ExtendedText
	}

	if content.Quoted != nil && depth < maxQuoteDepth {
		if inner := Unwrap(content.Quoted); inner != nil {
			quoted := normalizeContent(inner, depth+1)
			msg.Quoted = &quoted
		}
	}
	return msg
}
