package infrastructure

import (
	"sync"
)

// chatSession tracks the work queued for one chat
type chatSession struct {
	mu      sync.Mutex
	waiters int
}

// ChatLocks serializes event processing per chat while letting different
// chats run concurrently. Idle entries are removed.
type ChatLocks struct {
	sessions map[string]*chatSession
	mu       sync.Mutex
}

func NewChatLocks() *ChatLocks {
	return &ChatLocks{
		sessions: make(map[string]*chatSession),
	}
}

// Lock blocks until chatID is free and returns the matching unlock
func (cl *ChatLocks) Lock(chatID string) func() {
	cl.mu.Lock()
	session, exists := cl.sessions[chatID]
	if !exists {
		session = &chatSession{}
		cl.sessions[chatID] = session
	}
	session.waiters++
	cl.mu.Unlock()

	session.mu.Lock()

	return func() {
		session.mu.Unlock()

		cl.mu.Lock()
		session.waiters--
		if session.waiters == 0 {
			delete(cl.sessions, chatID)
		}
		cl.mu.Unlock()
	}
}

// Active returns how many chats currently hold or wait for a lock
func (cl *ChatLocks) Active() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.sessions)
}
