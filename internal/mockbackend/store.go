// SchoolHub - School Management API Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/schoolhub

package mockbackend

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"sync"

	"github.com/goccy/go-json"
)

func errUnknownCollection(name string) error {
	return fmt.Errorf("unknown collection %q", name)
}

// collection is a schemaless table of JSON objects keyed by integer id.
type collection struct {
	mu     sync.Mutex
	items  map[int64]map[string]any
	nextID int64
}

func newCollection() *collection {
	return &collection{items: make(map[int64]map[string]any), nextID: 1}
}

// toObject converts any JSON-encodable value to a generic object.
func toObject(v any) (map[string]any, error) {
	if obj, ok := v.(map[string]any); ok {
		return obj, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode item: %w", err)
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("item is not an object: %w", err)
	}
	return obj, nil
}

func idOf(obj map[string]any) (int64, bool) {
	switch v := obj["id"].(type) {
	case float64:
		return int64(v), v > 0
	case int64:
		return v, v > 0
	case int:
		return int64(v), v > 0
	case json.Number:
		n, err := v.Int64()
		return n, err == nil && n > 0
	}
	return 0, false
}

func copyObject(obj map[string]any) map[string]any {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		out[k] = v
	}
	return out
}

// insert stores obj, assigning an id when it has none, and returns a copy.
func (c *collection) insert(obj map[string]any) map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()

	obj = copyObject(obj)
	id, ok := idOf(obj)
	if !ok {
		id = c.nextID
	}
	if id >= c.nextID {
		c.nextID = id + 1
	}
	obj["id"] = id
	c.items[id] = obj
	return copyObject(obj)
}

func (c *collection) get(id int64) (map[string]any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	obj, ok := c.items[id]
	if !ok {
		return nil, false
	}
	return copyObject(obj), true
}

// update merges fields into item id. The id itself never changes.
func (c *collection) update(id int64, fields map[string]any) (map[string]any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	obj, ok := c.items[id]
	if !ok {
		return nil, false
	}
	for k, v := range fields {
		if k == "id" {
			continue
		}
		obj[k] = v
	}
	return copyObject(obj), true
}

// updateAll applies fn to every item.
func (c *collection) updateAll(fn func(obj map[string]any)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, obj := range c.items {
		fn(obj)
	}
}

func (c *collection) remove(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[id]; !ok {
		return false
	}
	delete(c.items, id)
	return true
}

// list returns items matching every filter, ordered by id. A filter
// matches when the item's field formats to the same string.
func (c *collection) list(filters url.Values) []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]map[string]any, 0, len(c.items))
	for _, obj := range c.items {
		if matches(obj, filters) {
			out = append(out, copyObject(obj))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := idOf(out[i])
		b, _ := idOf(out[j])
		return a < b
	})
	return out
}

// Query parameters that never filter.
var reservedParams = map[string]bool{"page": true, "page_size": true, "ordering": true, "search": true}

func matches(obj map[string]any, filters url.Values) bool {
	for field, want := range filters {
		if reservedParams[field] || len(want) == 0 {
			continue
		}
		if formatValue(obj[field]) != want[0] {
			return false
		}
	}
	return true
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
