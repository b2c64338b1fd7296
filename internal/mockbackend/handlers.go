// SchoolHub - School Management API Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/schoolhub

package mockbackend

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/schoolhub/internal/models"
)

type pageBody struct {
	Count    int              `json:"count"`
	Next     *string          `json:"next"`
	Previous *string          `json:"previous"`
	Results  []map[string]any `json:"results"`
}

func (s *Server) handleList(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, _ := s.collection(name)
		items := c.list(r.URL.Query())
		if s.opts.Paginate {
			writeJSON(w, http.StatusOK, pageBody{Count: len(items), Results: items})
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func (s *Server) handleCreate(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var obj map[string]any
		if err := decodeBody(w, r, &obj); err != nil {
			writeDetail(w, http.StatusBadRequest, "Malformed request body.")
			return
		}
		if len(obj) == 0 {
			writeFieldErrors(w, map[string][]string{"non_field_errors": {"No data provided."}})
			return
		}
		delete(obj, "id")
		c, _ := s.collection(name)
		writeJSON(w, http.StatusCreated, c.insert(defaultsFor(name, obj)))
	}
}

func (s *Server) handleGet(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		c, _ := s.collection(name)
		obj, found := c.get(id)
		if !found {
			writeDetail(w, http.StatusNotFound, "Not found.")
			return
		}
		writeJSON(w, http.StatusOK, obj)
	}
}

func (s *Server) handleUpdate(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var fields map[string]any
		if err := decodeBody(w, r, &fields); err != nil {
			writeDetail(w, http.StatusBadRequest, "Malformed request body.")
			return
		}
		c, _ := s.collection(name)
		obj, found := c.update(id, fields)
		if !found {
			writeDetail(w, http.StatusNotFound, "Not found.")
			return
		}
		writeJSON(w, http.StatusOK, obj)
	}
}

func (s *Server) handleDelete(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		c, _ := s.collection(name)
		if !c.remove(id) {
			writeDetail(w, http.StatusNotFound, "Not found.")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleAction merges the posted body into the item, which is how the
// review and resolve sub-routes behave.
func (s *Server) handleAction(name string) http.HandlerFunc {
	return s.handleUpdate(name)
}

// handleActivate toggles a payment gateway. At most one gateway is active.
func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		IsActive bool `json:"is_active"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		writeDetail(w, http.StatusBadRequest, "Malformed request body.")
		return
	}

	c, _ := s.collection("payment-gateways")
	if _, found := c.get(id); !found {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return
	}
	if body.IsActive {
		c.updateAll(func(obj map[string]any) { obj["is_active"] = false })
	}
	obj, _ := c.update(id, map[string]any{"is_active": body.IsActive})
	writeJSON(w, http.StatusOK, obj)
}

func (s *Server) handleAttendanceBulk(w http.ResponseWriter, r *http.Request) {
	var batch models.AttendanceBatch
	if err := decodeBody(w, r, &batch); err != nil {
		writeDetail(w, http.StatusBadRequest, "Malformed request body.")
		return
	}
	if len(batch.Marks) == 0 {
		writeFieldErrors(w, map[string][]string{"marks": {"This list may not be empty."}})
		return
	}

	c, _ := s.collection("attendance")
	out := make([]map[string]any, 0, len(batch.Marks))
	for _, m := range batch.Marks {
		out = append(out, c.insert(map[string]any{
			"student_id": m.StudentID,
			"class_id":   batch.ClassID,
			"date":       batch.Date,
			"status":     m.Status,
			"remark":     m.Remark,
		}))
	}
	writeJSON(w, http.StatusCreated, out)
}

// defaultsFor fills server-assigned fields of new items.
func defaultsFor(name string, obj map[string]any) map[string]any {
	switch name {
	case "complaints":
		if _, ok := obj["status"]; !ok {
			obj["status"] = "open"
		}
	case "applications":
		obj["status"] = "pending"
	}
	return obj
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return 0, false
	}
	return id, true
}
