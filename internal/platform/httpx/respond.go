// Package httpx writes JSON and RFC 7807 problem responses and decodes
// request bodies.
package httpx

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/playbookhq/playbooks/internal/shared"
)

const (
	maxBodyBytes      = 1 << 20
	problemTypePrefix = "urn:playbooks:problem:"
)

// ProblemDetail is an RFC 7807 problem document.
type ProblemDetail struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// JSON writes data with status.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem writes an untyped problem document.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	write(w, ProblemDetail{Title: title, Status: status, Detail: detail})
}

func write(w http.ResponseWriter, p ProblemDetail) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// DecodeJSON decodes a body of at most 1 MiB into target, rejecting unknown
// fields. Failures wrap shared.ErrValidation.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("decode body: %v: %w", err, shared.ErrValidation)
	}
	return nil
}
