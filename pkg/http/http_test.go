package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "slotbook/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", apperrors.NotFound("Slot"), http.StatusNotFound, apperrors.CodeNotFound},
		{"slot conflict", apperrors.SlotConflict("2030-01-01T10:00:00Z", 2), http.StatusConflict, apperrors.CodeSlotConflict},
		{"validation", apperrors.Validation("bad", nil), http.StatusUnprocessableEntity, apperrors.CodeValidation},
		{"unauthorized", apperrors.Unauthorized("no"), http.StatusUnauthorized, apperrors.CodeUnauthorized},
		{"plain error", errors.New("secret dsn leaked"), http.StatusInternalServerError, apperrors.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			require.NoError(t, WriteError(rec, tt.err))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			resp := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.NotContains(t, resp.Error, "secret")
		})
	}
}

func TestWriteError_SlotConflictDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteError(rec, apperrors.SlotConflict("2030-01-01T10:00:00Z", 2)))

	resp := decodeError(t, rec)
	assert.Equal(t, "2030-01-01T10:00:00Z", resp.Details["slot"])
	assert.Equal(t, float64(2), resp.Details["attempts"])
}

func TestExtractPage(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantPage int
		wantSize int
		wantErr  bool
	}{
		{"defaults", "", 0, 20, false},
		{"explicit", "?page=3&size=50", 3, 50, false},
		{"out of range passes through", "?page=-1&size=500", -1, 500, false},
		{"bad page", "?page=x", 0, 0, true},
		{"bad size", "?size=1.5", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/slots"+tt.query, nil)
			page, size, err := ExtractPage(r)
			if tt.wantErr {
				assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantSize, size)
		})
	}
}
