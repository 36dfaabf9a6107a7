package services

import (
	"log/slog"
	"sync"

	"github.com/examroom/examroom/backend/models"
)

const (
	AuthEventSignedIn  = "SIGNED_IN"
	AuthEventSignedOut = "SIGNED_OUT"
)

// AuthStateCallback receives an auth event name and the session it concerns
type AuthStateCallback func(event string, session *models.Session)

// AuthEvents fans auth state changes out to subscribers
type AuthEvents struct {
	mu          sync.RWMutex
	nextID      int
	subscribers map[int]AuthStateCallback
}

func NewAuthEvents() *AuthEvents {
	return &AuthEvents{subscribers: make(map[int]AuthStateCallback)}
}

// OnAuthStateChange registers cb and returns a func that unregisters it
func (e *AuthEvents) OnAuthStateChange(cb AuthStateCallback) func() {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.subscribers[id] = cb
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.subscribers, id)
			e.mu.Unlock()
		})
	}
}

// Emit calls every subscriber synchronously. A panicking subscriber does not stop the others.
func (e *AuthEvents) Emit(event string, session *models.Session) {
	e.mu.RLock()
	callbacks := make([]AuthStateCallback, 0, len(e.subscribers))
	for _, cb := range e.subscribers {
		callbacks = append(callbacks, cb)
	}
	e.mu.RUnlock()

	for _, cb := range callbacks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("Auth state subscriber panicked", "event", event, "panic", r)
				}
			}()
			cb(event, session)
		}()
	}
}
