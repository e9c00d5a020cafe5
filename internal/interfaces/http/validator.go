package http

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Input validation constants
const (
	MinPhoneDigits   = 8
	MaxMessageLength = 10000

	chatDomain = "@s.whatsapp.net"
)

// Messages returned to REST callers
const (
	errMissingFields = "Faltan campos obligatorios: phone y message"
	errInvalidPhone  = "Número de teléfono inválido"
	errInvalidChat   = "Identificador de chat inválido"
	errMessageLength = "El mensaje es demasiado largo"
	errSendFailed    = "Error al enviar el mensaje"
)

var (
	nonDigits  = regexp.MustCompile(`[^0-9]`)
	chatIDExpr = regexp.MustCompile(`^[0-9A-Za-z._:-]+@(s\.whatsapp\.net|g\.us|lid)$`)
)

// PhoneValidationError rejects a phone that does not leave enough digits
type PhoneValidationError struct {
	Input  string
	Digits int
}

func (e *PhoneValidationError) Error() string {
	return errInvalidPhone
}

// NormalizePhone strips every non-digit and appends the chat domain.
// Feeding it an identifier it produced returns the same identifier.
func NormalizePhone(phone string) (string, error) {
	digits := nonDigits.ReplaceAllString(strings.TrimSuffix(phone, chatDomain), "")
	if len(digits) < MinPhoneDigits {
		return "", &PhoneValidationError{Input: phone, Digits: len(digits)}
	}
	return digits + chatDomain, nil
}

// ValidChatID checks a full chat identifier (direct, group or lid)
func ValidChatID(s string) bool {
	return s != "" && len(s) <= 128 && chatIDExpr.MatchString(s)
}

// SanitizeString removes null bytes and control characters
func SanitizeString(s string) string {
	// Remove null bytes
	s = strings.ReplaceAll(s, "\x00", "")

	// Keep only valid UTF-8
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for _, r := range s {
			if r != utf8.RuneError {
				v = append(v, r)
			}
		}
		s = string(v)
	}
	return s
}

// ValidateLength checks if string is within bounds
func ValidateLength(s string, min, max int) bool {
	l := utf8.RuneCountInString(s)
	return l >= min && l <= max
}
