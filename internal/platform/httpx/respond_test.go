package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playbookhq/playbooks/internal/shared"
)

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		err    error
		status int
		typ    string
		detail string
	}{
		{fmt.Errorf("runs: get r1: %w", shared.ErrNotFound), http.StatusNotFound, "urn:playbooks:problem:not-found", "runs: get r1: not found"},
		{fmt.Errorf("bad capability: %w", shared.ErrValidation), http.StatusBadRequest, "urn:playbooks:problem:invalid-request", "bad capability: validation failed"},
		{shared.ErrForbidden, http.StatusForbidden, "urn:playbooks:problem:forbidden", "forbidden"},
		{shared.ErrUnauthenticated, http.StatusUnauthorized, "urn:playbooks:problem:unauthenticated", "actor missing"},
		{errors.New("boom"), http.StatusInternalServerError, "", ""},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, tc.err)
		assert.Equal(t, tc.status, rr.Code, tc.err.Error())
		assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))

		var p ProblemDetail
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
		assert.Equal(t, tc.status, p.Status)
		assert.Equal(t, tc.typ, p.Type)
		assert.Equal(t, tc.detail, p.Detail)
		assert.Equal(t, http.StatusText(tc.status), p.Title)
	}
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var body struct {
		Value string `json:"value"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"value":"all","extra":1}`))
	err := DecodeJSON(req, &body)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrValidation)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"value":"all"}`))
	require.NoError(t, DecodeJSON(req, &body))
	assert.Equal(t, "all", body.Value)
}
