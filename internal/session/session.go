// Package session keeps the authenticated identity in a signed cookie.
package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/sessions"

	"github.com/vbonduro/marketlabel/internal/domain"
)

const (
	cookieName = "marketlabel_session"

	keyUserID       = "user_id"
	keyCompany      = "company"
	keyAckedBatches = "acked_batches"
)

type Manager struct {
	store *sessions.CookieStore
}

func NewManager(secret []byte, secure bool, maxAge time.Duration) *Manager {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	store.MaxAge(store.Options.MaxAge)
	return &Manager{store: store}
}

// Load returns the session carried by r. ok is false when the request is not
// authenticated or the cookie cannot be decoded.
func (m *Manager) Load(r *http.Request) (domain.Session, bool) {
	s, err := m.store.Get(r, cookieName)
	if err != nil {
		return domain.Session{}, false
	}
	userID, _ := s.Values[keyUserID].(string)
	if userID == "" {
		return domain.Session{}, false
	}
	company, _ := s.Values[keyCompany].(string)
	acked, _ := s.Values[keyAckedBatches].(int)
	return domain.Session{UserID: userID, Company: company, AckedBatches: acked}, true
}

func (m *Manager) Save(w http.ResponseWriter, r *http.Request, sess domain.Session) error {
	s, _ := m.store.Get(r, cookieName)
	s.Values[keyUserID] = sess.UserID
	s.Values[keyCompany] = sess.Company
	s.Values[keyAckedBatches] = sess.AckedBatches
	if err := s.Save(r, w); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Clear ends the session by expiring the cookie.
func (m *Manager) Clear(w http.ResponseWriter, r *http.Request) error {
	s, _ := m.store.Get(r, cookieName)
	s.Values = make(map[any]any)
	s.Options.MaxAge = -1
	if err := s.Save(r, w); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Flash queues a one-time message for the next page render.
func (m *Manager) Flash(w http.ResponseWriter, r *http.Request, msg string) error {
	s, _ := m.store.Get(r, cookieName)
	s.AddFlash(msg)
	if err := s.Save(r, w); err != nil {
		return fmt.Errorf("failed to save flash: %w", err)
	}
	return nil
}

// Flashes pops the queued messages. The cookie is rewritten only when there
// were messages to remove.
func (m *Manager) Flashes(w http.ResponseWriter, r *http.Request) []string {
	s, err := m.store.Get(r, cookieName)
	if err != nil {
		return nil
	}
	raw := s.Flashes()
	if len(raw) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(raw))
	for _, f := range raw {
		if msg, ok := f.(string); ok {
			msgs = append(msgs, msg)
		}
	}
	_ = s.Save(r, w)
	return msgs
}
