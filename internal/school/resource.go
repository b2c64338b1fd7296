// SchoolHub - School Management API Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/schoolhub

package school

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/schoolhub/internal/apierror"
	"github.com/tomtom215/schoolhub/internal/cache"
	"github.com/tomtom215/schoolhub/internal/client"
	"github.com/tomtom215/schoolhub/internal/models"
	"github.com/tomtom215/schoolhub/internal/validation"
)

// Doer sends API requests. *client.Client implements it.
type Doer interface {
	DoJSON(ctx context.Context, req client.Request, out any) error
}

// Resource is a REST collection of T created and replaced with In.
//
// Reads go through the shared cache. Lists provide a tag for every item
// plus the collection tag; single reads provide the item tag. Create
// invalidates the collection; Update and Delete invalidate the item and
// the collection.
type Resource[T models.Entity, In any] struct {
	tag   string
	path  string
	api   Doer
	cache *cache.Cache
}

// NewResource returns a Resource rooted at path (with trailing slash) whose
// cache tags use tag as type.
func NewResource[T models.Entity, In any](api Doer, c *cache.Cache, tag, path string) *Resource[T, In] {
	return &Resource[T, In]{tag: tag, path: path, api: api, cache: c}
}

// Tag returns the cache tag type of the resource.
func (r *Resource[T, In]) Tag() string { return r.tag }

// Path returns the collection path.
func (r *Resource[T, In]) Path() string { return r.path }

func (r *Resource[T, In]) itemPath(id string) string {
	return r.path + url.PathEscape(id) + "/"
}

func (r *Resource[T, In]) listKey(q url.Values) string {
	if len(q) == 0 {
		return cache.GenerateKey(r.tag+":list", nil)
	}
	return cache.GenerateKey(r.tag+":list", q)
}

func (r *Resource[T, In]) itemKey(id string) string {
	return r.tag + ":item:" + id
}

func (r *Resource[T, In]) fetchList(q url.Values) cache.FetchFunc {
	return func(ctx context.Context) (any, []cache.Tag, error) {
		var raw json.RawMessage
		req := client.Request{Method: http.MethodGet, Path: r.path, Query: q}
		if err := r.api.DoJSON(ctx, req, &raw); err != nil {
			return nil, nil, err
		}
		items, err := decodeList[T](raw)
		if err != nil {
			return nil, nil, apierror.Decode(http.MethodGet, r.path, http.StatusOK, err)
		}
		tags := make([]cache.Tag, 0, len(items)+1)
		for _, item := range items {
			tags = append(tags, cache.ItemTag(r.tag, item.EntityID()))
		}
		tags = append(tags, cache.ListTag(r.tag))
		return items, tags, nil
	}
}

func (r *Resource[T, In]) fetchItem(id string) cache.FetchFunc {
	return func(ctx context.Context) (any, []cache.Tag, error) {
		var item T
		if err := r.api.DoJSON(ctx, client.Request{Method: http.MethodGet, Path: r.itemPath(id)}, &item); err != nil {
			return nil, nil, err
		}
		return item, []cache.Tag{cache.ItemTag(r.tag, id)}, nil
	}
}

// List returns the collection filtered by q. On a failed refetch the last
// good list is returned together with the error.
func (r *Resource[T, In]) List(ctx context.Context, q url.Values) ([]T, error) {
	res := r.cache.Query(ctx, r.listKey(q), r.fetchList(q))
	items, _ := res.Data.([]T)
	return items, res.Err
}

// Get returns one entity.
func (r *Resource[T, In]) Get(ctx context.Context, id string) (T, error) {
	res := r.cache.Query(ctx, r.itemKey(id), r.fetchItem(id))
	item, _ := res.Data.(T)
	return item, res.Err
}

// Create validates in, posts it and invalidates the collection.
func (r *Resource[T, In]) Create(ctx context.Context, in In) (T, error) {
	var out T
	if err := validate(in); err != nil {
		return out, err
	}
	if err := r.api.DoJSON(ctx, client.Request{Method: http.MethodPost, Path: r.path, Body: in}, &out); err != nil {
		return out, err
	}
	r.cache.Invalidate(cache.ListTag(r.tag))
	return out, nil
}

// Update validates in, replaces entity id and invalidates it and the
// collection.
func (r *Resource[T, In]) Update(ctx context.Context, id string, in In) (T, error) {
	var out T
	if err := validate(in); err != nil {
		return out, err
	}
	if err := r.api.DoJSON(ctx, client.Request{Method: http.MethodPut, Path: r.itemPath(id), Body: in}, &out); err != nil {
		return out, err
	}
	r.invalidateItem(id)
	return out, nil
}

// Delete removes entity id and invalidates it and the collection.
func (r *Resource[T, In]) Delete(ctx context.Context, id string) error {
	if err := r.api.DoJSON(ctx, client.Request{Method: http.MethodDelete, Path: r.itemPath(id)}, nil); err != nil {
		return err
	}
	r.invalidateItem(id)
	return nil
}

// action posts body to an item sub-route, such as review or resolve, and
// treats it as an update of the item.
func (r *Resource[T, In]) action(ctx context.Context, id, name string, body any) (T, error) {
	var out T
	if err := validate(body); err != nil {
		return out, err
	}
	req := client.Request{Method: http.MethodPost, Path: r.itemPath(id) + name + "/", Body: body}
	if err := r.api.DoJSON(ctx, req, &out); err != nil {
		return out, err
	}
	r.invalidateItem(id)
	return out, nil
}

func (r *Resource[T, In]) invalidateItem(id string) {
	r.cache.Invalidate(cache.ItemTag(r.tag, id), cache.ListTag(r.tag))
}

// WatchList subscribes to the collection filtered by q. Close the view when
// done so the entry can be collected.
func (r *Resource[T, In]) WatchList(q url.Values) *View[[]T] {
	return &View[[]T]{sub: r.cache.Subscribe(r.listKey(q), r.fetchList(q))}
}

// Watch subscribes to one entity.
func (r *Resource[T, In]) Watch(id string) *View[T] {
	return &View[T]{sub: r.cache.Subscribe(r.itemKey(id), r.fetchItem(id))}
}

// Snapshot is a typed cache read.
type Snapshot[V any] struct {
	Data V
	// HasData is false until a fetch has succeeded.
	HasData   bool
	Err       error
	Stale     bool
	FetchedAt time.Time
}

func snapshotOf[V any](res cache.Result) Snapshot[V] {
	data, _ := res.Data.(V)
	return Snapshot[V]{
		Data:      data,
		HasData:   res.HasData(),
		Err:       res.Err,
		Stale:     res.Stale,
		FetchedAt: res.FetchedAt,
	}
}

// View is a live subscription to cached data.
type View[V any] struct {
	sub *cache.Subscription
}

// Read returns the current data, fetching when missing or stale.
func (v *View[V]) Read(ctx context.Context) Snapshot[V] {
	return snapshotOf[V](v.sub.Read(ctx))
}

// Refetch forces a fetch.
func (v *View[V]) Refetch(ctx context.Context) Snapshot[V] {
	return snapshotOf[V](v.sub.Refetch(ctx))
}

// Changes signals that Read may return something new.
func (v *View[V]) Changes() <-chan struct{} {
	return v.sub.Changes()
}

// Close ends the subscription.
func (v *View[V]) Close() {
	v.sub.Unsubscribe()
}

type page[T any] struct {
	Results []T `json:"results"`
}

// decodeList accepts a bare array or a paginated {"results": [...]} object.
func decodeList[T any](raw json.RawMessage) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []T{}, nil
	}
	if trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode list: %w", err)
		}
		return items, nil
	}
	var p page[T]
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}
	if p.Results == nil {
		p.Results = []T{}
	}
	return p.Results, nil
}

func validate(v any) error {
	if verr := validation.ValidateStruct(v); verr != nil {
		return apierror.Validation(verr.Fields())
	}
	return nil
}
