package entities

import "time"

// EnvelopeKind tags a layer of an inbound message
type EnvelopeKind int

const (
	EnvelopePlain EnvelopeKind = iota
	EnvelopeEphemeral
	EnvelopeViewOnce
)

// Envelope is either plain content or a wrapper around another envelope
type Envelope struct {
	Kind    EnvelopeKind
	Inner   *Envelope // set for wrapper kinds
	Content *Content  // set for EnvelopePlain
}

// Content is the substantive part of a message once wrappers are removed
type Content struct {
	Conversation *string
	ExtendedText *string
	Image        *ImageAttachment
	Mentions     []string  // JIDs mentioned in the message context
	Quoted       *Envelope // quoted message, if this is a reply
}

// ImageAttachment references encrypted media still held by the transport
type ImageAttachment struct {
	Mimetype string
	Caption  string
	Ref      any // transport-specific handle used for download
}

// InboundEvent is one message delivered by the transport. Never mutated after receipt.
type InboundEvent struct {
	ID        string
	ChatID    string
	SenderID  string
	PushName  string
	Timestamp time.Time
	Envelope  *Envelope
}

type MessageKind string

const (
	MessageText  MessageKind = "text"
	MessageImage MessageKind = "image"
)

// NormalizedMessage is the typed view of an inbound event used by the pipeline
type NormalizedMessage struct {
	Kind         MessageKind
	ChatID       string
	SenderID     string
	Timestamp    time.Time
	Body         string
	MediaURL     string
	PendingMedia *ImageAttachment // image waiting to be ingested
	Quoted       *NormalizedMessage
}

// SelfIdentity is the bot's own address on the transport
type SelfIdentity struct {
	LongID  string // includes the device suffix, e.g. 12345:7@s.whatsapp.net
	ShortID string // 12345@s.whatsapp.net
	LID     string // 98765@lid, empty until the server assigned one
}
