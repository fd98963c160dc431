package session

import (
	"errors"
	"time"
)

// Profile keys holding the session.
const (
	KeyName      = "session.name"
	KeyEmail     = "session.email"
	KeyCreatedAt = "session.created_at"
)

// ErrNameRequired is returned when a session is created without a name.
var ErrNameRequired = errors.New("session name is required")

// Session is the local user identity captured at onboarding.
type Session struct {
	Name      string     `json:"name"`
	Email     string     `json:"email,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// OnboardingComplete reports whether a session has been created.
func (s Session) OnboardingComplete() bool {
	return s.Name != ""
}

func fromKeys(keys map[string]string) Session {
	s := Session{
		Name:  keys[KeyName],
		Email: keys[KeyEmail],
	}
	if raw := keys[KeyCreatedAt]; raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			s.CreatedAt = &t
		}
	}
	return s
}
