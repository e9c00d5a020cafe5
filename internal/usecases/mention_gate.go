package usecases

import (
	"strings"

	"gartenconnect/internal/entities"

	"github.com/rs/zerolog"
)

const (
	groupServerSuffix = "@g.us"
	userServer        = "s.whatsapp.net"
)

// IdentitySource reports the bot's own address; ok is false until the session is paired
type IdentitySource interface {
	Self() (entities.SelfIdentity, bool)
}

// MentionGate keeps the bot quiet in groups unless it is mentioned
type MentionGate struct {
	identity IdentitySource
	log      zerolog.Logger
}

func NewMentionGate(identity IdentitySource, log zerolog.Logger) *MentionGate {
	return &MentionGate{identity: identity, log: log}
}

// IsGroupChat reports whether chatID addresses a multi-party chat
func IsGroupChat(chatID string) bool {
	return strings.HasSuffix(chatID, groupServerSuffix)
}

// ShortAddress reduces a device JID like 12345:7@s.whatsapp.net to 12345@s.whatsapp.net
func ShortAddress(jid string) string {
	user := jid
	if i := strings.IndexByte(user, '@'); i >= 0 {
		user = user[:i]
	}
	if i := strings.IndexByte(user, ':'); i >= 0 {
		user = user[:i]
	}
	// agent suffix, e.g. 12345.0:7
	if i := strings.IndexByte(user, '.'); i >= 0 {
		user = user[:i]
	}
	if user == "" {
		return ""
	}
	return user + "@" + userServer
}

// Allow decides whether an event in chatID carrying mentions should be answered.
// Groups on LID addressing mention the bot by its @lid id.
func (g *MentionGate) Allow(chatID string, mentions []string) bool {
	if !IsGroupChat(chatID) {
		return true
	}

	self, ok := g.identity.Self()
	if !ok || self.LongID == "" {
		g.log.Trace().Str("chat", chatID).Msg("group message dropped: own identity unknown")
		return false
	}
	short := self.ShortID
	if short == "" {
		short = ShortAddress(self.LongID)
	}

	for _, m := range mentions {
		if m == self.LongID || m == short || (self.LID != "" && m == self.LID) {
			return true
		}
	}
	g.log.Trace().Str("chat", chatID).Msg("group message dropped: bot not mentioned")
	return false
}
