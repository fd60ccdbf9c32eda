package univ

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	json "github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moweilong/univadmin/pkg/apiclient"
	"github.com/moweilong/univadmin/pkg/cache"
	"github.com/moweilong/univadmin/pkg/credstore"
	"github.com/moweilong/univadmin/pkg/errorsx"
)

type recorded struct {
	Method string
	Path   string
	Query  string
	Body   string
}

type recorder struct {
	mu   sync.Mutex
	reqs []recorded
}

func (r *recorder) add(req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, recorded{Method: req.Method, Path: req.URL.Path, Query: req.URL.RawQuery, Body: string(body)})
}

func (r *recorder) all() []recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recorded(nil), r.reqs...)
}

func reply(w http.ResponseWriter, status int, v any) {
	data, _ := json.Marshal(v)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func newTestService(t *testing.T, opts ...Option) (*Service, *recorder) {
	rec := &recorder{}
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		switch {
		case r.URL.Path == "/etudiants/" && r.Method == http.MethodGet && r.URL.Query().Get("page") == "":
			next := srv.URL + "/etudiants/?page=2"
			reply(w, http.StatusOK, map[string]any{"count": 3, "next": next, "previous": nil,
				"results": []map[string]any{{"id": 1, "nom": "Ba"}, {"id": 2, "nom": "Sy"}}})
		case r.URL.Path == "/etudiants/" && r.Method == http.MethodGet:
			reply(w, http.StatusOK, map[string]any{"count": 3, "next": nil,
				"results": []map[string]any{{"id": 3, "nom": "Ka"}}})
		case r.URL.Path == "/departements/" && r.Method == http.MethodGet:
			reply(w, http.StatusOK, []map[string]any{{"id": 1, "code": "INFO", "nom": "Informatique"}})
		case r.URL.Path == "/documents/5/download/":
			w.Header().Set("Content-Disposition", `attachment; filename="attestation.pdf"`)
			_, _ = w.Write([]byte("%PDF"))
		case r.URL.Path == "/templates/2/generate/":
			_, _ = w.Write([]byte("%PDF-generated"))
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch:
			body := map[string]any{}
			_ = json.Unmarshal([]byte(rec.all()[len(rec.all())-1].Body), &body)
			body["id"] = 9
			reply(w, http.StatusOK, body)
		case r.URL.Path == "/etudiants/404/":
			reply(w, http.StatusNotFound, map[string]any{"detail": "Not found."})
		default:
			reply(w, http.StatusOK, map[string]any{"id": 42, "nom": "Ndiaye", "matricule": "ETU-0042"})
		}
	}))
	t.Cleanup(srv.Close)

	store := credstore.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), credstore.KeyAccessToken, "token"))
	client, err := apiclient.New(srv.URL, credstore.NewCredentials(store))
	require.NoError(t, err)
	return NewService(client, opts...), rec
}

func TestListFollowsPagination(t *testing.T) {
	s, rec := newTestService(t)

	students, err := s.Students.List(context.Background(), url.Values{"filiere": {"3"}})
	require.NoError(t, err)
	require.Len(t, students, 3)
	assert.Equal(t, "Ka", students[2].Nom)

	reqs := rec.all()
	require.Len(t, reqs, 2)
	assert.Equal(t, "filiere=3", reqs[0].Query)
	assert.Equal(t, "page=2", reqs[1].Query)
}

func TestListRefusesNextLinkOnAnotherOrigin(t *testing.T) {
	var leaked sync.Map
	foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		leaked.Store(r.URL.Path, r.Header.Get("Authorization"))
		reply(w, http.StatusOK, map[string]any{"count": 0, "results": []any{}})
	}))
	defer foreign.Close()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, map[string]any{"count": 2, "next": foreign.URL + "/etudiants/?page=2",
			"results": []map[string]any{{"id": 1, "nom": "Ba"}}})
	}))
	defer backend.Close()

	store := credstore.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), credstore.KeyAccessToken, "token"))
	client, err := apiclient.New(backend.URL, credstore.NewCredentials(store))
	require.NoError(t, err)

	_, err = NewService(client).Students.List(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, errorsx.ReasonValidation, errorsx.Normalize(err).Reason)

	leaked.Range(func(path, auth any) bool {
		t.Errorf("foreign origin received %v with %q", path, auth)
		return true
	})
}

func TestListPlainArrayAndPage(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	deps, err := s.Departments.List(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []Department{{ID: 1, Code: "INFO", Nom: "Informatique"}}, deps)

	page, err := s.Students.Page(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Count)
	assert.Len(t, page.Results, 2)
	require.NotNil(t, page.Next)
}

func TestReferenceDataCache(t *testing.T) {
	c, err := cache.NewMemoryCache("univ")
	require.NoError(t, err)
	defer c.Close()
	s, rec := newTestService(t, WithCache(c, time.Minute))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err = s.Departments.List(ctx, nil)
		require.NoError(t, err)
	}
	assert.Len(t, rec.all(), 1)

	// filtered lists are never cached
	_, err = s.Departments.List(ctx, url.Values{"code": {"INFO"}})
	require.NoError(t, err)
	assert.Len(t, rec.all(), 2)

	// a write drops the cached list
	_, err = s.Departments.Create(ctx, &Department{Code: "MATH", Nom: "Mathématiques"})
	require.NoError(t, err)
	_, err = s.Departments.List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, rec.all(), 4)

	// students are not reference data
	_, _ = s.Students.List(ctx, nil)
	_, _ = s.Students.List(ctx, nil)
	assert.Len(t, rec.all(), 8)
}

func TestCRUD(t *testing.T) {
	s, rec := newTestService(t)
	ctx := context.Background()

	st, err := s.Students.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "ETU-0042", st.Matricule)

	created, err := s.Students.Create(ctx, &Student{Matricule: "ETU-1", Nom: "Diop", Prenom: "Awa", Email: "awa@univ.example"})
	require.NoError(t, err)
	assert.Equal(t, 9, created.ID)
	assert.Equal(t, "Diop", created.Nom)

	_, err = s.Students.Update(ctx, 9, created)
	require.NoError(t, err)
	patched, err := s.Students.Patch(ctx, 9, map[string]any{"niveau": "L3"})
	require.NoError(t, err)
	assert.Equal(t, "L3", patched.Niveau)
	require.NoError(t, s.Students.Delete(ctx, 9))

	var got []string
	for _, r := range rec.all() {
		got = append(got, r.Method+" "+r.Path)
	}
	assert.Equal(t, []string{
		"GET /etudiants/42/",
		"POST /etudiants/",
		"PUT /etudiants/9/",
		"PATCH /etudiants/9/",
		"DELETE /etudiants/9/",
	}, got)

	_, err = s.Students.Get(ctx, 404)
	assert.True(t, errorsx.IsNotFound(err))
}

func TestCreateValidatesBeforeSending(t *testing.T) {
	s, rec := newTestService(t)

	_, err := s.Students.Create(context.Background(), &Student{Matricule: "ETU-1", Nom: "Diop", Email: "not-an-email"})
	require.Error(t, err)
	e := errorsx.Normalize(err)
	assert.Equal(t, http.StatusBadRequest, e.Status)
	assert.Equal(t, errorsx.ReasonValidation, e.Reason)
	assert.Equal(t, "invalid student", e.Message)
	assert.Equal(t, []string{"This field is required."}, e.Errors["prenom"])
	assert.Equal(t, []string{"Enter a valid email address."}, e.Errors["email"])
	assert.Empty(t, rec.all())

	err = Validate(&Attendance{Etudiant: 1, Cours: 2, Date: "2026-10-01", Statut: "malade"})
	assert.Equal(t, []string{"Must be one of: present absent retard excuse."}, errorsx.Normalize(err).Errors["statut"])
	assert.NoError(t, Validate(&Message{Objet: "Rentrée", Contenu: "Bienvenue", Destinataires: []int{1}}))
}

func TestDocumentsAndTemplates(t *testing.T) {
	s, rec := newTestService(t)
	ctx := context.Background()

	resp, err := s.Documents.Download(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(resp.Body))
	assert.Equal(t, "attestation.pdf", resp.Filename())

	resp, err = s.Templates.Generate(ctx, 2, 42)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-generated", string(resp.Body))

	reqs := rec.all()
	require.Len(t, reqs, 2)
	assert.JSONEq(t, `{"etudiant":42}`, reqs[1].Body)
}

func TestLookupAndHandles(t *testing.T) {
	s, rec := newTestService(t)
	ctx := context.Background()

	assert.Len(t, s.Names(), 13)
	for _, name := range []string{"students", "etudiants", "livres", "emplois-du-temps", "salles", "rooms"} {
		_, ok := s.Lookup(name)
		assert.True(t, ok, name)
	}
	_, ok := s.Lookup("unknown")
	assert.False(t, ok)

	h, _ := s.Lookup("etudiants")
	items, err := h.ListAny(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, items, 3)

	item, err := h.GetAny(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "Ndiaye", item.(*Student).Nom)

	_, err = h.CreateJSON(ctx, []byte(`{"matricule":"E1","nom":"Fall","prenom":"Ali","email":"ali@univ.example"}`))
	require.NoError(t, err)
	_, err = h.UpdateJSON(ctx, 9, []byte(`{"matricule":"E1","nom":"Fall","prenom":"Ali","email":"ali@univ.example"}`))
	require.NoError(t, err)

	n := len(rec.all())
	_, err = h.CreateJSON(ctx, []byte(`{not json`))
	assert.Equal(t, http.StatusBadRequest, errorsx.Code(err))
	_, err = h.CreateJSON(ctx, nil)
	assert.Equal(t, http.StatusBadRequest, errorsx.Code(err))
	assert.Len(t, rec.all(), n)
}
