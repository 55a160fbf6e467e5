package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/verity-secure/evidence-services/constants"
	"github.com/verity-secure/evidence-services/models/service"
)

// Store is the slice of the Redis client the manager needs. Defined
// here so tests can substitute an in-memory implementation.
type Store interface {
	SessionSave(session *service.Session, window time.Duration) error
	SessionGet(sessionID string) (*service.Session, error)
}

// Manager mints and tracks trip sessions. Ids are uuid-based, so
// collisions between independent clients are negligible. (An earlier
// scheme derived trip ids from a small random integer, which is not
// safe for multi-client deployments.)
//
// Sessions live in Redis with the operator's session-window TTL.
// Clients that minted a trip id while disconnected are still served:
// any well-formed id is accepted and lazily registered on first use.
type Manager struct {
	store  Store
	window time.Duration
}

func NewManager(store Store, window time.Duration) *Manager {
	return &Manager{
		store:  store,
		window: window,
	}
}

// StartSession mints a new Active session and saves it.
func (m *Manager) StartSession() (*service.Session, error) {
	id := fmt.Sprintf("%s%s", constants.SessionIDPrefix, uuid.New().String())
	session := service.NewSession(id)
	err := m.store.SessionSave(session, m.window)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Resolve returns the session for a token. Unknown but well-formed
// tokens come from disconnected clients; they are registered as new
// Active sessions. Malformed tokens resolve to nil.
func (m *Manager) Resolve(token string) (*service.Session, error) {
	if !service.LooksLikeSessionID(token) {
		return nil, nil
	}
	session, err := m.store.SessionGet(token)
	if err != nil {
		return nil, err
	}
	if session != nil {
		return session, nil
	}
	session = service.NewSession(token)
	err = m.store.SessionSave(session, m.window)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Close transitions a session to Closed. Closing an unknown session
// is an error; closing a closed session is a no-op.
func (m *Manager) Close(token string) (*service.Session, error) {
	session, err := m.store.SessionGet(token)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("No such session: %s", token)
	}
	if session.Status != constants.SessionClosed {
		session.Status = constants.SessionClosed
		err = m.store.SessionSave(session, m.window)
		if err != nil {
			return nil, err
		}
	}
	return session, nil
}
