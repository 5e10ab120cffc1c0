// Package response writes the JSON envelope every market endpoint answers with:
// {"success": true, "data": ..., "meta": ...} or an apierror body.
package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"grandexchange-api/pkg/apierror"
	"grandexchange-api/pkg/paginate"
)

// Response represents a standard API response.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// Meta describes the page of a paginated view such as a collection box.
type Meta struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"total_pages"`
	HasPrevious bool  `json:"has_previous"`
	HasNext     bool  `json:"has_next"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	write(w, statusCode, Response{Success: true, Data: data})
}

// Page sends one page of a paginated list. Entries keep their global index so
// a client can claim them without recomputing offsets.
func Page[T any](w http.ResponseWriter, page paginate.Page[T]) {
	entries := page.Entries
	if entries == nil {
		entries = []paginate.Entry[T]{}
	}
	write(w, http.StatusOK, Response{
		Success: true,
		Data:    entries,
		Meta: &Meta{
			Page:        page.PageIndex,
			Limit:       page.PageSize,
			Total:       int64(page.TotalItems),
			TotalPages:  page.TotalPages,
			HasPrevious: page.HasPrevious(),
			HasNext:     page.HasNext(),
		},
	})
}

// Error sends an error response. Errors that are not an *apierror.Error
// become a 500 without leaking their message. A rate limited error also sets
// Retry-After in whole seconds.
func Error(w http.ResponseWriter, err error) {
	var apiErr *apierror.Error
	if !errors.As(err, &apiErr) {
		apiErr = apierror.InternalError("an unexpected error occurred")
	}
	if apiErr.RetryAfter > 0 {
		secs := int64((apiErr.RetryAfter + 999_999_999) / 1_000_000_000)
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.StatusCode)
	w.Write(apiErr.ToJSON())
}

// Created sends a 201 Created response with the created resource.
func Created(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusCreated, data)
}

// OK sends a 200 OK response.
func OK(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusOK, data)
}

func write(w http.ResponseWriter, statusCode int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}
