package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fenilmodi00/tibia-lookup-backend/shared"
)

// characterJSON renders a TibiaData v4 character body for name
func characterJSON(name string) string {
	return fmt.Sprintf(`{
  "character": {
    "character": {
      "name": %q,
      "former_names": ["Old %s"],
      "sex": "male",
      "title": "Elite Knight",
      "unlocked_titles": 12,
      "vocation": "Elite Knight",
      "level": 312,
      "achievement_points": 845,
      "world": "Antica",
      "former_worlds": ["Secura"],
      "residence": "Thais",
      "married_to": "Galadriel",
      "houses": [{"name": "Upper Swamp Lane 12", "town": "Venore", "paid": "2026-11-01", "houseid": 10212}],
      "guild": {"name": "Red Rose", "rank": "Leader"},
      "last_login": "2026-10-16T18:04:11Z",
      "account_status": "Premium Account",
      "comment": "",
      "traded": false
    },
    "deaths": [
      {"time": "2026-10-15T20:11:02Z", "level": 311, "killers": [{"name": "a dragon lord", "player": false, "traded": false, "summon": ""}], "assists": [], "reason": "Killed at Level 311 by a dragon lord."},
      {"time": "2026-10-01T09:00:00Z", "level": 305, "killers": [{"name": "Bubble", "player": true, "traded": false, "summon": ""}], "assists": [], "reason": "Killed at Level 305 by Bubble."}
    ],
    "account_information": {"position": "", "created": "2009-03-20T10:00:00Z", "loyalty_title": "Warden of Tibia"},
    "achievements": [{"name": "Allow Cookies?", "grade": 1, "secret": false}],
    "other_characters": [
      {"name": %q, "world": "Antica", "status": "online", "deleted": false, "main": true, "traded": false},
      {"name": "Frodo Baggins", "world": "Secura", "status": "offline", "deleted": false, "main": false, "traded": false}
    ]
  },
  "information": {"api": {"version": 4}, "timestamp": "2026-10-17T10:00:00Z"}
}`, name, name, name)
}

// minimalCharacterJSON has only the required fields and no optional sections
func minimalCharacterJSON(name string) string {
	return fmt.Sprintf(`{"character": {"character": {
  "name": %q, "sex": "female", "title": "None", "unlocked_titles": 0,
  "vocation": "None", "level": 8, "achievement_points": 0,
  "world": "Antica", "residence": "Rookgaard", "account_status": "Free Account"
}}}`, name)
}

// upstream is an httptest TibiaData stand-in that counts calls
type upstream struct {
	server *httptest.Server
	calls  atomic.Int64

	mutex   sync.Mutex
	handler http.HandlerFunc
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{}
	u.handler = echoCharacter
	u.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.calls.Add(1)
		u.mutex.Lock()
		handler := u.handler
		u.mutex.Unlock()
		handler(w, r)
	}))
	t.Cleanup(u.server.Close)
	return u
}

func (u *upstream) setHandler(handler http.HandlerFunc) {
	u.mutex.Lock()
	defer u.mutex.Unlock()
	u.handler = handler
}

func (u *upstream) Calls() int64 {
	return u.calls.Load()
}

func (u *upstream) client() *TibiaDataClient {
	return NewTibiaDataClient(u.server.URL, u.server.Client(), nil, shared.NewLookupMetrics())
}

// echoCharacter answers with a character named after the requested path
func echoCharacter(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/v4/character/")
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, characterJSON(name))
}

func statusHandler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		fmt.Fprint(w, `{"information": {"status": {"http_code": 0}}}`)
	}
}

func bodyHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}
}

// memStore is an in-memory shared.KeyValueStore
type memStore struct {
	mutex   sync.Mutex
	values  map[string][]byte
	failPut bool
}

func newMemStore() *memStore {
	return &memStore{values: make(map[string][]byte)}
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	value, ok := m.values[key]
	return value, ok, nil
}

func (m *memStore) Put(_ context.Context, key string, value []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.failPut {
		return fmt.Errorf("store unavailable")
	}
	m.values[key] = append([]byte(nil), value...)
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.values, key)
	return nil
}

// fakeClock is a settable time source
type fakeClock struct {
	mutex sync.Mutex
	now   time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.now = c.now.Add(d)
}

type connectivityStub struct {
	online atomic.Bool
}

func newConnectivityStub(online bool) *connectivityStub {
	stub := &connectivityStub{}
	stub.online.Store(online)
	return stub
}

func (c *connectivityStub) IsOnline() bool {
	return c.online.Load()
}
