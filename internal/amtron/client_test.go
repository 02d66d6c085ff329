package amtron

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeDevice struct {
	password string
	token    string
	session  string

	mu               sync.Mutex
	logins           int
	dashboards       int
	rejectLogin      bool
	pendingSetup     bool
	expireDashboards int // serve logged_in:false for this many dashboard requests
}

func (d *fakeDevice) loginCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.logins
}

func (d *fakeDevice) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/json/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			json.NewEncoder(w).Encode(map[string]string{"token": d.token})
			return
		}

		d.mu.Lock()
		d.logins++
		reject := d.rejectLogin
		pending := d.pendingSetup
		d.mu.Unlock()

		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		h := sha256.New()
		h.Write([]byte(d.password))
		h.Write([]byte(d.token))
		wantHash := hex.EncodeToString(h.Sum(nil))

		json.NewEncoder(w).Encode(map[string]any{
			"logged_in":         req.Password == wantHash && !reject,
			"change_default_pw": pending,
			"set_master_rfid":   false,
			"session":           map[string]string{"id": d.session},
		})
	})

	mux.HandleFunc("/json/dashboard.json", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		d.dashboards++
		expired := d.expireDashboards > 0
		if expired {
			d.expireDashboards--
		}
		d.mu.Unlock()

		if r.Header.Get("Authorization") != d.session || expired {
			w.Write([]byte(`{"logged_in": false}`))
			return
		}
		w.Write([]byte(dashboardFixture))
	})

	return mux
}

func newTestClient(t *testing.T, device *fakeDevice) (*Client, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(device.handler())
	t.Cleanup(ts.Close)
	host := strings.TrimPrefix(ts.URL, "http://")
	return NewClient(testLogger(), host, "operator", device.password, 5*time.Second), ts
}

func TestClient_LoginAndFetch(t *testing.T) {
	device := &fakeDevice{password: "secret", token: "token123", session: "sess-1"}
	client, _ := newTestClient(t, device)

	body, err := client.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if !strings.Contains(string(body), "system_status") {
		t.Fatalf("expected dashboard payload, got %q", body)
	}
	if device.loginCount() != 1 {
		t.Fatalf("expected 1 login, got %d", device.loginCount())
	}
}

func TestClient_SessionReusedAcrossFetches(t *testing.T) {
	device := &fakeDevice{password: "secret", token: "token123", session: "sess-1"}
	client, _ := newTestClient(t, device)

	for i := 0; i < 3; i++ {
		if _, err := client.Fetch(context.Background()); err != nil {
			t.Fatalf("fetch %d failed: %v", i, err)
		}
	}
	if device.loginCount() != 1 {
		t.Fatalf("expected a single login across fetches, got %d", device.loginCount())
	}
}

func TestClient_ReloginOnExpiredSession(t *testing.T) {
	device := &fakeDevice{password: "secret", token: "token123", session: "sess-1"}
	client, _ := newTestClient(t, device)

	if _, err := client.Fetch(context.Background()); err != nil {
		t.Fatalf("initial fetch failed: %v", err)
	}

	device.mu.Lock()
	device.expireDashboards = 1
	device.mu.Unlock()

	if _, err := client.Fetch(context.Background()); err != nil {
		t.Fatalf("fetch after expiry failed: %v", err)
	}
	if device.loginCount() != 2 {
		t.Fatalf("expected re-login after session expiry, got %d logins", device.loginCount())
	}
}

func TestClient_AuthFailureWrongPassword(t *testing.T) {
	device := &fakeDevice{password: "secret", token: "token123", session: "sess-1"}
	ts := httptest.NewServer(device.handler())
	t.Cleanup(ts.Close)
	host := strings.TrimPrefix(ts.URL, "http://")
	client := NewClient(testLogger(), host, "operator", "wrong", 5*time.Second)

	_, err := client.Fetch(context.Background())
	assertFetchKind(t, err, FetchAuthFailure)
}

func TestClient_AuthFailurePendingSetup(t *testing.T) {
	device := &fakeDevice{password: "secret", token: "token123", session: "sess-1", pendingSetup: true}
	client, _ := newTestClient(t, device)

	_, err := client.Fetch(context.Background())
	assertFetchKind(t, err, FetchAuthFailure)
}

func TestClient_ConnectionRefused(t *testing.T) {
	device := &fakeDevice{password: "secret", token: "token123", session: "sess-1"}
	ts := httptest.NewServer(device.handler())
	host := strings.TrimPrefix(ts.URL, "http://")
	ts.Close()

	client := NewClient(testLogger(), host, "operator", "secret", time.Second)
	_, err := client.Fetch(context.Background())
	assertFetchKind(t, err, FetchConnectionRefused)
}

func TestClient_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	t.Cleanup(ts.Close)
	host := strings.TrimPrefix(ts.URL, "http://")

	client := NewClient(testLogger(), host, "operator", "secret", 50*time.Millisecond)
	_, err := client.Fetch(context.Background())
	assertFetchKind(t, err, FetchTimeout)
}

func assertFetchKind(t *testing.T, err error, kind FetchErrorKind) {
	t.Helper()
	var ferr *FetchError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if ferr.Kind != kind {
		t.Fatalf("expected kind %q, got %q (%v)", kind, ferr.Kind, err)
	}
}
