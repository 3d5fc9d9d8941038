package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"recvault/internal/auth"
	"recvault/internal/config"
	"recvault/internal/database"
	"recvault/internal/metrics"
	"recvault/internal/registry"
	"recvault/internal/testutil"
)

// testServer bundles a fully wired Server with the handles tests need.
type testServer struct {
	srv      *Server
	store    *database.SQLiteStore
	sessions *auth.SessionManager
	root     string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := testutil.NewTestStore(t)
	clock := testutil.FixedClock()
	root := t.TempDir()

	sessions, err := auth.NewSessionManager("test-secret", time.Hour, clock)
	if err != nil {
		t.Fatalf("NewSessionManager() unexpected error: %v", err)
	}

	discord := auth.NewDiscordClient(config.DiscordConfig{
		ClientID: "cid", ClientSecret: "cs", RedirectURI: "http://localhost/auth/callback",
	})

	logger := registry.NewNopLogger()
	query := registry.NewQueryService(store)
	deleter := registry.NewDeletionService(store, nil, nil, logger, nil)

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)

	srv := NewServer(
		config.ServerConfig{Addr: "127.0.0.1:0"},
		store, query, deleter, sessions, discord, clock, logger, m, reg,
	)

	return &testServer{srv: srv, store: store, sessions: sessions, root: root}
}

// do performs a request against the server, optionally authenticated as userID.
func (ts *testServer) do(t *testing.T, method, target, userID string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, nil)
	if userID != "" {
		token, err := ts.sessions.Issue(auth.Identity{UserID: userID, DisplayName: "Tester"})
		if err != nil {
			t.Fatalf("Issue() unexpected error: %v", err)
		}
		req.AddCookie(ts.sessions.Cookie(token))
	}

	w := httptest.NewRecorder()
	ts.srv.ServeHTTP(w, req)
	return w
}

// indexChunk writes a chunk file under the test root and registers it.
func (ts *testServer) indexChunk(t *testing.T, userID, date, filename string, content []byte) string {
	t.Helper()

	path := filepath.Join(ts.root, "Tester_"+userID, "chunks", date, filename)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	scanner := registry.NewScanner(ts.root)
	rec := registry.NewReconciler(
		scanner, ts.store, registry.NewNopLogger(),
		testutil.FixedClock(), registry.UUIDGenerator{},
		time.Second, nil,
	)
	if err := rec.RunPass(); err != nil {
		t.Fatalf("RunPass() unexpected error: %v", err)
	}
	return path
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
	return body
}

func TestServer_Auth(t *testing.T) {
	t.Run("unauthenticated API request gets 401", func(t *testing.T) {
		ts := newTestServer(t)
		w := ts.do(t, http.MethodGet, "/api/chunks/111", "")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})

	t.Run("mismatched path identity gets 403", func(t *testing.T) {
		ts := newTestServer(t)
		for _, target := range []string{
			"/api/chunks/222",
			"/audio/222/chunks/2024-01-01/chunk_001.wav",
			"/audio/222/recordings/session.mp3",
		} {
			w := ts.do(t, http.MethodGet, target, "111")
			if w.Code != http.StatusForbidden {
				t.Errorf("GET %s status = %d, want 403", target, w.Code)
			}
		}

		w := ts.do(t, http.MethodDelete, "/api/chunks/222/2024-01-01/chunk_001.wav", "111")
		if w.Code != http.StatusForbidden {
			t.Errorf("DELETE status = %d, want 403", w.Code)
		}
	})

	t.Run("expired session gets 401", func(t *testing.T) {
		ts := newTestServer(t)
		clock := testutil.FixedClock()
		expired, err := auth.NewSessionManager("test-secret", time.Hour, clock)
		if err != nil {
			t.Fatalf("NewSessionManager() unexpected error: %v", err)
		}
		token, err := expired.Issue(auth.Identity{UserID: "111"})
		if err != nil {
			t.Fatalf("Issue() unexpected error: %v", err)
		}

		// The server clock sits two hours past the token's one hour TTL.
		req := httptest.NewRequest(http.MethodGet, "/api/chunks/111", nil)
		req.AddCookie(expired.Cookie(token))

		ts.sessions, err = auth.NewSessionManager("test-secret", time.Hour,
			testutil.NewStubClock(clock.Now().Add(2*time.Hour)))
		if err != nil {
			t.Fatalf("NewSessionManager() unexpected error: %v", err)
		}
		ts.srv.sessions = ts.sessions

		w := httptest.NewRecorder()
		ts.srv.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
	})

	t.Run("health needs no session", func(t *testing.T) {
		ts := newTestServer(t)
		w := ts.do(t, http.MethodGet, "/health", "")
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
	})
}

func TestServer_ListChunks(t *testing.T) {
	t.Run("groups by date with dates newest first", func(t *testing.T) {
		ts := newTestServer(t)
		ts.indexChunk(t, "111", "2024-01-01", "chunk_001.wav", []byte("a"))
		ts.indexChunk(t, "111", "2024-01-01", "chunk_002.wav", []byte("b"))
		ts.indexChunk(t, "111", "2024-01-02", "chunk_001.wav", []byte("c"))

		w := ts.do(t, http.MethodGet, "/api/chunks/111", "111")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
		}

		body := decodeBody(t, w)
		dates, _ := body["dates"].([]any)
		if len(dates) != 2 || dates[0] != "2024-01-02" || dates[1] != "2024-01-01" {
			t.Errorf("dates = %v, want [2024-01-02 2024-01-01]", dates)
		}

		perDate, _ := body["chunks_per_date"].(map[string]any)
		first, _ := perDate["2024-01-01"].([]any)
		if len(first) != 2 || first[0] != "chunk_001.wav" || first[1] != "chunk_002.wav" {
			t.Errorf("chunks_per_date[2024-01-01] = %v, want ascending filenames", first)
		}
	})

	t.Run("empty index returns empty collections", func(t *testing.T) {
		ts := newTestServer(t)
		w := ts.do(t, http.MethodGet, "/api/chunks/111", "111")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		body := decodeBody(t, w)
		if dates, _ := body["dates"].([]any); len(dates) != 0 {
			t.Errorf("dates = %v, want empty", dates)
		}
	})
}

func TestServer_DeleteChunk(t *testing.T) {
	t.Run("deletes and reports the identity", func(t *testing.T) {
		ts := newTestServer(t)
		path := ts.indexChunk(t, "111", "2024-01-01", "chunk_001.wav", []byte("audio"))

		w := ts.do(t, http.MethodDelete, "/api/chunks/111/2024-01-01/chunk_001.wav", "111")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
		}
		body := decodeBody(t, w)
		if body["ok"] != true || body["deleted"] != "2024-01-01/chunk_001.wav" {
			t.Errorf("body = %v, want ok with deleted identity", body)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("file still exists after delete: %s", path)
		}
	})

	t.Run("second delete gets 404", func(t *testing.T) {
		ts := newTestServer(t)
		ts.indexChunk(t, "111", "2024-01-01", "chunk_001.wav", []byte("audio"))

		target := "/api/chunks/111/2024-01-01/chunk_001.wav"
		if w := ts.do(t, http.MethodDelete, target, "111"); w.Code != http.StatusOK {
			t.Fatalf("first delete status = %d, want 200", w.Code)
		}
		if w := ts.do(t, http.MethodDelete, target, "111"); w.Code != http.StatusNotFound {
			t.Errorf("second delete status = %d, want 404", w.Code)
		}
	})

	t.Run("unknown chunk gets 404", func(t *testing.T) {
		ts := newTestServer(t)
		w := ts.do(t, http.MethodDelete, "/api/chunks/111/2024-01-01/chunk_404.wav", "111")
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", w.Code)
		}
	})

	t.Run("traversal attempt in filename gets 400", func(t *testing.T) {
		ts := newTestServer(t)
		w := ts.do(t, http.MethodDelete, "/api/chunks/111/2024-01-01/chunk..wav", "111")
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})
}

func TestServer_Callback(t *testing.T) {
	t.Run("exchanges the code and establishes a session", func(t *testing.T) {
		ts := newTestServer(t)

		stub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/oauth2/token":
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"access_token":"tok"}`))
			case "/users/@me":
				if r.Header.Get("Authorization") != "Bearer tok" {
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"id":"111","username":"Alice","avatar":"abc"}`))
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}))
		defer stub.Close()

		ts.srv.discord = auth.NewDiscordClientForTest(config.DiscordConfig{
			ClientID: "cid", ClientSecret: "cs", RedirectURI: "http://localhost/auth/callback",
		}, stub.URL)

		w := ts.do(t, http.MethodGet, "/auth/callback?code=xyz", "")
		if w.Code != http.StatusTemporaryRedirect {
			t.Fatalf("status = %d, want 307", w.Code)
		}

		var session *http.Cookie
		for _, c := range w.Result().Cookies() {
			if c.Name == auth.CookieName {
				session = c
			}
		}
		if session == nil || session.Value == "" {
			t.Fatal("no session cookie set")
		}

		id, err := ts.sessions.Parse(session.Value)
		if err != nil {
			t.Fatalf("Parse() unexpected error: %v", err)
		}
		if id.UserID != "111" || id.DisplayName != "Alice" {
			t.Errorf("identity = %+v, want user 111 Alice", id)
		}

		user, err := ts.store.GetUser("111")
		if err != nil || user == nil {
			t.Fatalf("GetUser() = %v, %v, want a row", user, err)
		}
		if user.DisplayName != "Alice" {
			t.Errorf("DisplayName = %q, want Alice", user.DisplayName)
		}
	})

	t.Run("missing code redirects without a session", func(t *testing.T) {
		ts := newTestServer(t)
		w := ts.do(t, http.MethodGet, "/auth/callback", "")
		if w.Code != http.StatusTemporaryRedirect {
			t.Fatalf("status = %d, want 307", w.Code)
		}
		for _, c := range w.Result().Cookies() {
			if c.Name == auth.CookieName {
				t.Error("session cookie set without a code")
			}
		}
	})
}
