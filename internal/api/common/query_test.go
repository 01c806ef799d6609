package common

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPageParam(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		query    string
		want     int
		wantErr  bool
		errMatch string
	}{
		{name: "absent defaults to 1", query: "", want: 1},
		{name: "explicit page", query: "?page=4", want: 4},
		{name: "surrounding spaces", query: "?page=%202%20", want: 2},
		{name: "zero", query: "?page=0", wantErr: true, errMatch: "at least 1"},
		{name: "negative", query: "?page=-3", wantErr: true, errMatch: "at least 1"},
		{name: "not a number", query: "?page=two", wantErr: true, errMatch: "integer"},
		{name: "decimal", query: "?page=1.5", wantErr: true, errMatch: "integer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest("GET", "/v1/catalog"+tt.query, nil)

			page, err := GetPageParam(req)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMatch)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, page)
		})
	}
}

func TestGetRequiredQueryParam(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		query   string
		want    string
		wantErr bool
	}{
		{name: "present", query: "?q=frieren", want: "frieren"},
		{name: "trimmed", query: "?q=%20spy%20family%20", want: "spy family"},
		{name: "missing", query: "", wantErr: true},
		{name: "blank", query: "?q=%20%20", wantErr: true},
		{name: "too long", query: "?q=" + strings.Repeat("a", maxQueryLength+1), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest("GET", "/v1/catalog/search"+tt.query, nil)

			got, err := GetRequiredQueryParam(req, "q")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteErrorResponse(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	WriteErrorResponse(rr, "boom", 418)

	assert.Equal(t, 418, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"boom"}`, rr.Body.String())
}
