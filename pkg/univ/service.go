package univ

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/moweilong/univadmin/pkg/apiclient"
	"github.com/moweilong/univadmin/pkg/cache"
)

// DefaultCacheTTL is how long reference data lists stay cached.
const DefaultCacheTTL = 10 * time.Minute

// DocumentResource adds the binary download to /documents/.
type DocumentResource struct {
	*Resource[Document]
}

// Download fetches the file of a document.
func (r *DocumentResource) Download(ctx context.Context, id int) (*apiclient.Response, error) {
	return r.client.Do(ctx, http.MethodGet, fmt.Sprintf("%s%d/download/", r.path, id), nil,
		apiclient.WithResponseType(apiclient.ResponseTypeBinary))
}

// TemplateResource adds document generation to /templates/.
type TemplateResource struct {
	*Resource[Template]
}

type generateRequest struct {
	Etudiant int `json:"etudiant"`
}

// Generate renders the template for a student and returns the produced file.
func (r *TemplateResource) Generate(ctx context.Context, id, studentID int) (*apiclient.Response, error) {
	return r.client.Do(ctx, http.MethodPost, fmt.Sprintf("%s%d/generate/", r.path, id),
		&generateRequest{Etudiant: studentID}, apiclient.WithResponseType(apiclient.ResponseTypeBinary))
}

// Service groups the resources of the backend.
type Service struct {
	Students    *Resource[Student]
	Teachers    *Resource[Teacher]
	Departments *Resource[Department]
	Programs    *Resource[Program]
	Courses     *Resource[Course]
	Schedules   *Resource[Schedule]
	Books       *Resource[Book]
	Loans       *Resource[Loan]
	Attendance  *Resource[Attendance]
	Documents   *DocumentResource
	Templates   *TemplateResource
	Messages    *Resource[Message]
	Rooms       *Resource[Room]

	handles map[string]Handle
}

// Option set the service options.
type Option func(*options)

type options struct {
	cache cache.Cache
	ttl   time.Duration
}

// WithCache caches the reference data lists (departments, programs, rooms).
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(o *options) {
		o.cache = c
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// NewService creates the resource clients on top of client.
func NewService(client Doer, opts ...Option) *Service {
	o := &options{ttl: DefaultCacheTTL}
	for _, opt := range opts {
		opt(o)
	}

	s := &Service{
		Students:    NewResource[Student](client, "students", "/etudiants/"),
		Teachers:    NewResource[Teacher](client, "teachers", "/enseignants/"),
		Departments: NewResource[Department](client, "departments", "/departements/"),
		Programs:    NewResource[Program](client, "programs", "/filieres/"),
		Courses:     NewResource[Course](client, "courses", "/cours/"),
		Schedules:   NewResource[Schedule](client, "schedules", "/emplois-du-temps/"),
		Books:       NewResource[Book](client, "books", "/bibliotheque/livres/"),
		Loans:       NewResource[Loan](client, "loans", "/bibliotheque/emprunts/"),
		Attendance:  NewResource[Attendance](client, "attendance", "/presences/"),
		Documents:   &DocumentResource{NewResource[Document](client, "documents", "/documents/")},
		Templates:   &TemplateResource{NewResource[Template](client, "templates", "/templates/")},
		Messages:    NewResource[Message](client, "messages", "/messages/"),
		Rooms:       NewResource[Room](client, "rooms", "/salles/"),
	}
	if o.cache != nil {
		s.Departments.WithCache(o.cache, o.ttl)
		s.Programs.WithCache(o.cache, o.ttl)
		s.Rooms.WithCache(o.cache, o.ttl)
	}

	s.handles = make(map[string]Handle)
	for _, h := range []Handle{
		s.Students, s.Teachers, s.Departments, s.Programs, s.Courses, s.Schedules, s.Books,
		s.Loans, s.Attendance, s.Documents, s.Templates, s.Messages, s.Rooms,
	} {
		s.handles[h.Name()] = h
	}
	return s
}

// Lookup finds a resource by its name ("students") or its backend path segment ("etudiants").
func (s *Service) Lookup(name string) (Handle, bool) {
	if h, ok := s.handles[name]; ok {
		return h, true
	}
	for _, h := range s.handles {
		if h.Path() == "/"+name+"/" || h.Path() == "/bibliotheque/"+name+"/" {
			return h, true
		}
	}
	return nil, false
}

// Names returns the resource names, sorted.
func (s *Service) Names() []string {
	names := make([]string, 0, len(s.handles))
	for name := range s.handles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
