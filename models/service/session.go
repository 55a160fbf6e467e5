package service

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/verity-secure/evidence-services/constants"
)

// Session is one chain-of-custody window (a "trip"). It is created
// when an operator starts a trip and closed when the trip ends.
// Everything except Status is immutable after creation.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Status    string    `json:"status"`
}

func NewSession(id string) *Session {
	return &Session{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		Status:    constants.SessionActive,
	}
}

func SessionFromJson(jsonData string) (*Session, error) {
	session := &Session{}
	err := json.Unmarshal([]byte(jsonData), session)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Session) ToJson() (string, error) {
	bytes, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func (s *Session) IsActive() bool {
	return s.Status == constants.SessionActive
}

// LooksLikeSessionID says whether a token has the shape of a session
// id we could have minted. Tokens minted by disconnected clients are
// acceptable as long as they carry the trip_ prefix and a non-empty
// suffix. See the session manager for why we accept foreign ids.
func LooksLikeSessionID(token string) bool {
	if !strings.HasPrefix(token, constants.SessionIDPrefix) {
		return false
	}
	return len(token) > len(constants.SessionIDPrefix)
}
