// Package univ wraps the REST resources of the university backend in typed clients.
//
// The wrappers only build paths and payloads, authentication and token refresh are handled
// by the apiclient they are given.
package univ

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	json "github.com/bytedance/sonic"

	"github.com/moweilong/univadmin/pkg/apiclient"
	"github.com/moweilong/univadmin/pkg/cache"
	"github.com/moweilong/univadmin/pkg/errorsx"
)

// maxPages stops List from following a pagination loop forever.
const maxPages = 1000

// Doer sends a request, *apiclient.Client implements it.
type Doer interface {
	Do(ctx context.Context, method, path string, body any, opts ...apiclient.RequestOption) (*apiclient.Response, error)
}

// Page is the paginated list envelope of the backend.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// Resource is the CRUD client of one collection.
type Resource[T any] struct {
	client Doer
	name   string
	path   string // with leading and trailing slash

	cache cache.Cache // nil when the collection is not cached
	ttl   time.Duration
}

// NewResource creates a resource client for the collection at path, e.g. "/etudiants/".
func NewResource[T any](client Doer, name, path string) *Resource[T] {
	return &Resource[T]{client: client, name: name, path: path}
}

// WithCache caches the unfiltered list of the collection for ttl.
func (r *Resource[T]) WithCache(c cache.Cache, ttl time.Duration) *Resource[T] {
	r.cache, r.ttl = c, ttl
	return r
}

// Name returns the resource name used on the command line.
func (r *Resource[T]) Name() string { return r.name }

// Path returns the collection path.
func (r *Resource[T]) Path() string { return r.path }

func (r *Resource[T]) itemPath(id int) string {
	return fmt.Sprintf("%s%d/", r.path, id)
}

// List returns every item matching query, following pagination links.
func (r *Resource[T]) List(ctx context.Context, query url.Values) ([]T, error) {
	cacheable := r.cache != nil && len(query) == 0
	if cacheable {
		var items []T
		if err := r.cache.Get(ctx, r.path, &items); err == nil {
			return items, nil
		}
	}

	var (
		items []T
		next  = r.path
		opts  []apiclient.RequestOption
	)
	if len(query) > 0 {
		opts = append(opts, apiclient.WithQuery(query))
	}
	for pages := 0; next != ""; pages++ {
		if pages == maxPages {
			return nil, errorsx.New(http.StatusInternalServerError, errorsx.ReasonServer,
				"%s: more than %d pages", r.name, maxPages)
		}
		resp, err := r.client.Do(ctx, http.MethodGet, next, nil, opts...)
		if err != nil {
			return nil, err
		}
		page, err := decodeList[T](resp)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Results...)

		next = ""
		if page.Next != nil {
			// the next link already carries the query
			next, opts = *page.Next, nil
		}
	}

	if cacheable {
		_ = r.cache.Set(ctx, r.path, items, r.ttl)
	}
	return items, nil
}

// Page returns one page of the collection as the backend sent it.
func (r *Resource[T]) Page(ctx context.Context, query url.Values) (*Page[T], error) {
	resp, err := r.client.Do(ctx, http.MethodGet, r.path, nil, apiclient.WithQuery(query))
	if err != nil {
		return nil, err
	}
	return decodeList[T](resp)
}

// Get returns the item with the given id.
func (r *Resource[T]) Get(ctx context.Context, id int) (*T, error) {
	return r.send(ctx, http.MethodGet, r.itemPath(id), nil)
}

// Create validates item and creates it.
func (r *Resource[T]) Create(ctx context.Context, item *T) (*T, error) {
	if err := Validate(item); err != nil {
		return nil, err
	}
	defer r.invalidate(ctx)
	return r.send(ctx, http.MethodPost, r.path, item)
}

// Update validates item and replaces the item with the given id.
func (r *Resource[T]) Update(ctx context.Context, id int, item *T) (*T, error) {
	if err := Validate(item); err != nil {
		return nil, err
	}
	defer r.invalidate(ctx)
	return r.send(ctx, http.MethodPut, r.itemPath(id), item)
}

// Patch updates the given fields only.
func (r *Resource[T]) Patch(ctx context.Context, id int, fields map[string]any) (*T, error) {
	defer r.invalidate(ctx)
	return r.send(ctx, http.MethodPatch, r.itemPath(id), fields)
}

// Delete removes the item with the given id.
func (r *Resource[T]) Delete(ctx context.Context, id int) error {
	defer r.invalidate(ctx)
	_, err := r.client.Do(ctx, http.MethodDelete, r.itemPath(id), nil)
	return err
}

func (r *Resource[T]) send(ctx context.Context, method, path string, body any) (*T, error) {
	resp, err := r.client.Do(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	out := new(T)
	if err = resp.Decode(out); err != nil {
		return nil, decodeError(resp, err)
	}
	return out, nil
}

func (r *Resource[T]) invalidate(ctx context.Context) {
	if r.cache != nil {
		_ = r.cache.Del(ctx, r.path)
	}
}

// decodeList accepts both a bare JSON array and a Page envelope.
func decodeList[T any](resp *apiclient.Response) (*Page[T], error) {
	body := bytes.TrimSpace(resp.Body)
	page := &Page[T]{}
	if len(body) == 0 {
		return page, nil
	}

	if body[0] == '[' {
		if err := json.Unmarshal(body, &page.Results); err != nil {
			return nil, decodeError(resp, err)
		}
		page.Count = len(page.Results)
		return page, nil
	}
	if err := json.Unmarshal(body, page); err != nil {
		return nil, decodeError(resp, err)
	}
	return page, nil
}

func decodeError(resp *apiclient.Response, err error) error {
	return errorsx.FromResponse(http.StatusInternalServerError, resp.Header, resp.Body,
		fmt.Errorf("decode response: %w", err))
}

// ----------------------------------------------------------------------------

// Handle is the untyped view of a Resource used by the command line.
type Handle interface {
	Name() string
	Path() string
	ListAny(ctx context.Context, query url.Values) ([]any, error)
	GetAny(ctx context.Context, id int) (any, error)
	CreateJSON(ctx context.Context, data []byte) (any, error)
	UpdateJSON(ctx context.Context, id int, data []byte) (any, error)
	Delete(ctx context.Context, id int) error
}

var errEmptyPayload = errors.New("empty payload")

// ListAny implements Handle.
func (r *Resource[T]) ListAny(ctx context.Context, query url.Values) ([]any, error) {
	items, err := r.List(ctx, query)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(items))
	for i := range items {
		out[i] = &items[i]
	}
	return out, nil
}

// GetAny implements Handle.
func (r *Resource[T]) GetAny(ctx context.Context, id int) (any, error) {
	return r.Get(ctx, id)
}

// CreateJSON decodes data into the resource type and creates it.
func (r *Resource[T]) CreateJSON(ctx context.Context, data []byte) (any, error) {
	item, err := r.decodePayload(data)
	if err != nil {
		return nil, err
	}
	return r.Create(ctx, item)
}

// UpdateJSON decodes data into the resource type and replaces the item with the given id.
func (r *Resource[T]) UpdateJSON(ctx context.Context, id int, data []byte) (any, error) {
	item, err := r.decodePayload(data)
	if err != nil {
		return nil, err
	}
	return r.Update(ctx, id, item)
}

func (r *Resource[T]) decodePayload(data []byte) (*T, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errorsx.New(http.StatusBadRequest, errorsx.ReasonValidation, "%s: %v", r.name, errEmptyPayload)
	}
	item := new(T)
	if err := json.Unmarshal(data, item); err != nil {
		return nil, errorsx.New(http.StatusBadRequest, errorsx.ReasonValidation, "%s: invalid json: %v", r.name, err)
	}
	return item, nil
}
