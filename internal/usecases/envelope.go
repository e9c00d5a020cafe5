package usecases

import "gartenconnect/internal/entities"

// MaxEnvelopeDepth is how many wrapper layers are stripped. Ephemeral around
// view-once is the deepest nesting seen in practice.
const MaxEnvelopeDepth = 2

// Unwrap strips ephemeral and view-once wrappers and returns the content
// underneath. Nil means there is nothing substantive to read.
func Unwrap(env *entities.Envelope) *entities.Content {
	for depth := 0; env != nil && depth < MaxEnvelopeDepth; depth++ {
		if env.Kind == entities.EnvelopePlain {
			break
		}
		env = env.Inner
	}
	if env == nil || env.Kind != entities.EnvelopePlain {
		return nil
	}
	return env.Content
}
