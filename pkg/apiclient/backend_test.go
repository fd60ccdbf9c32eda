package apiclient

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/bytedance/sonic"
)

type seenRequest struct {
	Path  string
	Token string
}

// fakeBackend mimics the auth endpoints and a few resources of the real backend.
type fakeBackend struct {
	*httptest.Server

	mu           sync.Mutex
	validToken   string
	seen         []seenRequest
	lastHeader   http.Header
	refreshCalls atomic.Int32

	refreshGate   chan struct{} // when set the refresh handler waits for it to be closed
	refreshStatus int           // when set the refresh endpoint fails with it
	rotate        bool          // refresh also returns a new refresh token
}

func newFakeBackend(t *testing.T) *fakeBackend {
	b := &fakeBackend{validToken: "access-current"}
	b.Server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.Close)
	return b
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, _ := json.Marshal(v)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func (b *fakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/auth/login/":
		var req loginRequest
		decodeBody(r, &req)
		if req.Password != "secret" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "No active account found with the given credentials"})
			return
		}
		b.mu.Lock()
		b.validToken = "access-1"
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{
			"access":  "access-1",
			"refresh": "refresh-1",
			"user":    map[string]any{"id": 7, "username": req.Username, "first_name": "Awa", "last_name": "Diop", "role": "admin"},
		})
		return

	case "/auth/token/refresh/":
		b.refreshCalls.Add(1)
		b.mu.Lock()
		gate, status, rotate := b.refreshGate, b.refreshStatus, b.rotate
		b.mu.Unlock()
		if gate != nil {
			<-gate
		}
		if status != 0 {
			writeJSON(w, status, map[string]any{"detail": "Token is invalid or expired", "code": "token_not_valid"})
			return
		}
		var req refreshRequest
		decodeBody(r, &req)
		if req.Refresh != "refresh-1" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Token is invalid or expired"})
			return
		}
		b.mu.Lock()
		b.validToken = "access-2"
		b.mu.Unlock()
		resp := map[string]any{"access": "access-2"}
		if rotate {
			resp["refresh"] = "refresh-2"
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	b.mu.Lock()
	b.seen = append(b.seen, seenRequest{Path: r.URL.Path, Token: token})
	b.lastHeader = r.Header.Clone()
	valid := b.validToken
	b.mu.Unlock()

	if r.URL.Path == "/public/" {
		writeJSON(w, http.StatusOK, map[string]any{"authorization": r.Header.Get("Authorization"), "query": r.URL.RawQuery})
		return
	}
	if token != valid || r.URL.Path == "/always401/" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Given token not valid for any token type"})
		return
	}

	switch {
	case r.URL.Path == "/missing/":
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not found."})
	case r.URL.Path == "/boom/":
		w.WriteHeader(http.StatusInternalServerError)
	case r.URL.Path == "/validation/":
		writeJSON(w, http.StatusBadRequest, map[string]any{"email": []string{"Saisissez une adresse e-mail valide."}})
	case r.URL.Path == "/slow/":
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	case r.URL.Path == "/documents/1/download/":
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="releve.pdf"`)
		_, _ = w.Write([]byte("%PDF-1.4"))
	case r.URL.Path == "/echo/":
		body := map[string]any{}
		decodeBody(r, &body)
		body["method"] = r.Method
		writeJSON(w, http.StatusOK, body)
	case r.URL.Path == "/etudiants/42/":
		writeJSON(w, http.StatusOK, map[string]any{"id": 42, "matricule": "ETU-0042", "nom": "Ndiaye"})
	case r.Method == http.MethodDelete:
		w.WriteHeader(http.StatusNoContent)
	default:
		writeJSON(w, http.StatusOK, []map[string]any{{"id": 1, "path": r.URL.Path}})
	}
}

func (b *fakeBackend) configure(fn func(b *fakeBackend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

func decodeBody(r *http.Request, v any) {
	data, _ := io.ReadAll(r.Body)
	_ = json.Unmarshal(data, v)
}

func (b *fakeBackend) tokensFor(path string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var tokens []string
	for _, s := range b.seen {
		if s.Path == path {
			tokens = append(tokens, s.Token)
		}
	}
	return tokens
}

func (b *fakeBackend) header() http.Header {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastHeader
}
