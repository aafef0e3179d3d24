package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/marketlabel/internal/domain"
)

var secret = []byte("0123456789abcdef0123456789abcdef")

// roundTrip copies the cookies set on rec onto a fresh request.
func roundTrip(t *testing.T, rec *httptest.ResponseRecorder) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "/label", nil)
	for _, c := range rec.Result().Cookies() {
		r.AddCookie(c)
	}
	return r
}

func TestSaveAndLoad(t *testing.T) {
	m := NewManager(secret, false, time.Hour)

	rec := httptest.NewRecorder()
	want := domain.Session{UserID: "a@x.com", Company: "Acme", AckedBatches: 2}
	require.NoError(t, m.Save(rec, httptest.NewRequest(http.MethodPost, "/login", nil), want))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].HttpOnly)

	got, ok := m.Load(roundTrip(t, rec))
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestLoadWithoutCookie(t *testing.T) {
	m := NewManager(secret, false, time.Hour)

	_, ok := m.Load(httptest.NewRequest(http.MethodGet, "/label", nil))
	assert.False(t, ok)
}

func TestLoadRejectsForeignSignature(t *testing.T) {
	rec := httptest.NewRecorder()
	other := NewManager([]byte("another-secret-another-secret-xx"), false, time.Hour)
	require.NoError(t, other.Save(rec, httptest.NewRequest(http.MethodPost, "/login", nil), domain.Session{UserID: "a@x.com"}))

	m := NewManager(secret, false, time.Hour)
	_, ok := m.Load(roundTrip(t, rec))
	assert.False(t, ok)
}

func TestClear(t *testing.T) {
	m := NewManager(secret, false, time.Hour)

	login := httptest.NewRecorder()
	require.NoError(t, m.Save(login, httptest.NewRequest(http.MethodPost, "/login", nil), domain.Session{UserID: "a@x.com"}))

	logout := httptest.NewRecorder()
	require.NoError(t, m.Clear(logout, roundTrip(t, login)))

	cookies := logout.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Less(t, cookies[0].MaxAge, 0)

	_, ok := m.Load(roundTrip(t, logout))
	assert.False(t, ok)
}

func TestFlashes(t *testing.T) {
	m := NewManager(secret, false, time.Hour)

	rec := httptest.NewRecorder()
	require.NoError(t, m.Flash(rec, httptest.NewRequest(http.MethodPost, "/label", nil), "Label submitted!"))

	next := httptest.NewRecorder()
	assert.Equal(t, []string{"Label submitted!"}, m.Flashes(next, roundTrip(t, rec)))

	after := httptest.NewRecorder()
	assert.Empty(t, m.Flashes(after, roundTrip(t, next)))
}
