package mockserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, mutate func(*Config)) *Server {
	cfg := NewConfig()
	if mutate != nil {
		mutate(cfg)
	}
	s, err := NewServer(cfg)
	require.NoError(t, err)
	return s
}

func call(s *Server, method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

type tokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

func login(t *testing.T, s *Server) tokenPair {
	w := call(s, http.MethodPost, "/auth/login/", "", `{"username":"admin","password":"admin"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var p tokenPair
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	require.NotEmpty(t, p.Access)
	require.NotEmpty(t, p.Refresh)
	return p
}

func TestNewServerConfig(t *testing.T) {
	_, err := NewServer(&Config{JWTKey: "k", AccessTTL: time.Minute, RefreshTTL: time.Hour})
	assert.Error(t, err)

	_, err = NewServer(&Config{JWTKey: "long-enough"})
	assert.Error(t, err)

	s, err := NewServer(nil)
	require.NoError(t, err)
	assert.Len(t, s.cfg.Accounts, 2)
	assert.NotNil(t, s.cfg.Sessions)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	w := call(s, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestLogin(t *testing.T) {
	s := newTestServer(t, nil)

	w := call(s, http.MethodPost, "/auth/login/", "", `{"username":"admin","password":"admin"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	user := body["user"].(map[string]any)
	assert.Equal(t, "admin", user["username"])
	assert.NotContains(t, user, "password")

	w = call(s, http.MethodGet, "/auth/me/", body["access"].(string), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Admin", decode(t, w)["first_name"])

	w = call(s, http.MethodPost, "/auth/login/", "", `{"username":"admin","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, decode(t, w)["detail"], "No active account")

	w = call(s, http.MethodPost, "/auth/login/", "", `{"username":"admin"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []any{"This field is required."}, decode(t, w)["password"])
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t, nil)

	w := call(s, http.MethodGet, "/etudiants/", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	tokens := login(t, s)
	// a refresh token is not an access token
	w = call(s, http.MethodGet, "/etudiants/", tokens.Refresh, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "token_not_valid", decode(t, w)["code"])

	w = call(s, http.MethodGet, "/etudiants/", tokens.Access, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRefresh(t *testing.T) {
	s := newTestServer(t, nil)
	tokens := login(t, s)

	w := call(s, http.MethodPost, "/auth/token/refresh/", "", `{"refresh":"`+tokens.Refresh+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.NotContains(t, body, "refresh")
	access := body["access"].(string)
	assert.Equal(t, http.StatusOK, call(s, http.MethodGet, "/salles/", access, "").Code)

	w = call(s, http.MethodPost, "/auth/token/refresh/", "", `{"refresh":"`+tokens.Access+`"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = call(s, http.MethodPost, "/auth/token/refresh/", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRefreshRotation(t *testing.T) {
	s := newTestServer(t, func(c *Config) { c.RotateRefresh = true })
	tokens := login(t, s)

	w := call(s, http.MethodPost, "/auth/token/refresh/", "", `{"refresh":"`+tokens.Refresh+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var rotated tokenPair
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rotated))
	assert.NotEqual(t, tokens.Refresh, rotated.Refresh)

	// the old session is gone with its refresh token
	w = call(s, http.MethodPost, "/auth/token/refresh/", "", `{"refresh":"`+tokens.Refresh+`"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, http.StatusUnauthorized, call(s, http.MethodGet, "/salles/", tokens.Access, "").Code)
	assert.Equal(t, http.StatusOK, call(s, http.MethodGet, "/salles/", rotated.Access, "").Code)
}

func TestLogoutRevokesSession(t *testing.T) {
	s := newTestServer(t, nil)
	tokens := login(t, s)

	w := call(s, http.MethodPost, "/auth/logout/", "", `{"refresh":"`+tokens.Refresh+`"}`)
	assert.Equal(t, http.StatusResetContent, w.Code)

	assert.Equal(t, http.StatusUnauthorized, call(s, http.MethodGet, "/salles/", tokens.Access, "").Code)
	w = call(s, http.MethodPost, "/auth/token/refresh/", "", `{"refresh":"`+tokens.Refresh+`"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestExpireAccessTokens(t *testing.T) {
	s := newTestServer(t, nil)
	tokens := login(t, s)

	assert.Equal(t, 1, s.ExpireAccessTokens())
	w := call(s, http.MethodGet, "/salles/", tokens.Access, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "token is invalid or expired", decode(t, w)["detail"])

	w = call(s, http.MethodPost, "/auth/token/refresh/", "", `{"refresh":"`+tokens.Refresh+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	access := decode(t, w)["access"].(string)
	assert.Equal(t, http.StatusOK, call(s, http.MethodGet, "/salles/", access, "").Code)

	w = call(s, http.MethodPost, "/_mock/expire-tokens/", "", "")
	assert.Equal(t, float64(1), decode(t, w)["expired"])
	assert.Equal(t, http.StatusUnauthorized, call(s, http.MethodGet, "/salles/", access, "").Code)
}

func TestPagination(t *testing.T) {
	s := newTestServer(t, func(c *Config) { c.PageSize = 1 })
	token := login(t, s).Access

	w := call(s, http.MethodGet, "/departements/", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	page := decode(t, w)
	assert.Equal(t, float64(2), page["count"])
	assert.Equal(t, "http://example.com/departements/?page=2", page["next"])
	assert.Nil(t, page["previous"])
	assert.Len(t, page["results"], 1)

	page = decode(t, call(s, http.MethodGet, "/departements/?page=2", token, ""))
	assert.Nil(t, page["next"])
	assert.Equal(t, "http://example.com/departements/?page=1", page["previous"])
	assert.Equal(t, "MATH", page["results"].([]any)[0].(map[string]any)["code"])

	assert.Equal(t, http.StatusNotFound, call(s, http.MethodGet, "/departements/?page=3", token, "").Code)
	assert.Equal(t, http.StatusNotFound, call(s, http.MethodGet, "/departements/?page=x", token, "").Code)

	page = decode(t, call(s, http.MethodGet, "/departements/?page_size=10", token, ""))
	assert.Len(t, page["results"], 2)
}

func TestListFilters(t *testing.T) {
	s := newTestServer(t, func(c *Config) { c.PageSize = 0 })
	token := login(t, s).Access

	var items []map[string]any
	w := call(s, http.MethodGet, "/etudiants/?niveau=L2", token, "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, float64(42), items[0]["id"])

	w = call(s, http.MethodGet, "/etudiants/?search=ousm", token, "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "Ba", items[0]["nom"])

	w = call(s, http.MethodGet, "/cours/?filiere=1", token, "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	assert.Len(t, items, 1)
}

func TestCollectionCRUD(t *testing.T) {
	s := newTestServer(t, nil)
	token := login(t, s).Access

	w := call(s, http.MethodPost, "/salles/", token, `{"nom":"Labo"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []any{"This field is required."}, decode(t, w)["code"])

	w = call(s, http.MethodPost, "/salles/", token, `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(s, http.MethodPost, "/salles/", token, `{"id":99,"code":"C001","nom":"Labo","capacite":20}`)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode(t, w)
	assert.Equal(t, float64(3), created["id"])

	w = call(s, http.MethodPatch, "/salles/3/", token, `{"capacite":24}`)
	require.Equal(t, http.StatusOK, w.Code)
	patched := decode(t, w)
	assert.Equal(t, float64(24), patched["capacite"])
	assert.Equal(t, "Labo", patched["nom"])

	w = call(s, http.MethodPut, "/salles/3/", token, `{"code":"C002"}`)
	require.Equal(t, http.StatusOK, w.Code)
	replaced := decode(t, w)
	assert.Equal(t, "C002", replaced["code"])
	assert.NotContains(t, replaced, "nom")

	assert.Equal(t, http.StatusBadRequest, call(s, http.MethodPut, "/salles/3/", token, `{"nom":"x"}`).Code)
	assert.Equal(t, http.StatusNotFound, call(s, http.MethodPatch, "/salles/77/", token, `{}`).Code)

	assert.Equal(t, http.StatusNoContent, call(s, http.MethodDelete, "/salles/3/", token, "").Code)
	assert.Equal(t, http.StatusNotFound, call(s, http.MethodGet, "/salles/3/", token, "").Code)
	assert.Equal(t, http.StatusNotFound, call(s, http.MethodDelete, "/salles/3/", token, "").Code)
	assert.Equal(t, http.StatusNotFound, call(s, http.MethodGet, "/salles/abc/", token, "").Code)
}

func TestDocumentsAndTemplates(t *testing.T) {
	s := newTestServer(t, nil)
	token := login(t, s).Access

	w := call(s, http.MethodGet, "/documents/1/download/", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="releve-s3.pdf"`, w.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF-1.4"))
	assert.Equal(t, http.StatusNotFound, call(s, http.MethodGet, "/documents/9/download/", token, "").Code)

	w = call(s, http.MethodPost, "/templates/1/generate/", token, `{"etudiant":42}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Nous certifions que Ndiaye Fatou est inscrit(e).", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "template-1-ETU-0042.txt")

	w = call(s, http.MethodPost, "/templates/1/generate/", token, `{"etudiant":7}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = call(s, http.MethodPost, "/templates/1/generate/", token, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRun(t *testing.T) {
	s := newTestServer(t, func(c *Config) { c.Addr = "127.0.0.1:0" })
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	assert.NoError(t, s.Run(ctx))

	s = newTestServer(t, func(c *Config) { c.Addr = "no-port" })
	assert.Error(t, s.Run(context.Background()))
}
