package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"indicator-project/tracking-service/logging"
	"indicator-project/tracking-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrincipalFrom(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)

	_, err := principalFrom(r)
	assert.True(t, models.IsKind(err, models.KindForbidden), "identity header is mandatory")

	r.Header.Set("X-User-ID", "u1")
	actor, err := principalFrom(r)
	require.NoError(t, err)
	assert.Equal(t, "u1", actor.ID)
	assert.Equal(t, models.RoleUser, actor.Role, "role defaults to user")

	r.Header.Set("Role", "admin")
	r.Header.Set("Position", models.PositionDirector)
	r.Header.Set("Department", "dep-1")
	actor, err = principalFrom(r)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, actor.Role)
	assert.Equal(t, models.PositionDirector, actor.Position)
	assert.Equal(t, "dep-1", actor.DepartmentID)
}

func TestWriteErrorStatusMapping(t *testing.T) {
	logging.Logger.SetOutput(io.Discard)

	cases := []struct {
		err  error
		want int
	}{
		{models.NotFoundf("missing"), http.StatusNotFound},
		{models.InvalidInputf("bad"), http.StatusBadRequest},
		{models.InvalidStatef("stuck"), http.StatusConflict},
		{models.Forbiddenf("nope"), http.StatusForbidden},
		{models.Conflictf("stale"), http.StatusConflict},
		{fmt.Errorf("disk exploded"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		writeError(w, tc.err)
		assert.Equal(t, tc.want, w.Code)

		var body map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		if tc.want == http.StatusInternalServerError {
			assert.Equal(t, "internal server error", body["error"], "infrastructure details stay opaque")
		} else {
			assert.Equal(t, tc.err.Error(), body["error"])
		}
	}
}
