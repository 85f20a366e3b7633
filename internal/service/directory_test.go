package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDirectoryClient_ResolveByField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/lookup", r.URL.Path)
		assert.Equal(t, "employee_code", r.URL.Query().Get("field"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		switch r.URL.Query().Get("value") {
		case "001":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"found":true,"user":{"id":7,"name":"Jane"}}`))
		case "002":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"found":false}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewDirectoryClient(srv.URL, "secret", zap.NewNop())
	ctx := context.Background()

	user, err := client.ResolveByField(ctx, "employee_code", "001")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, int64(7), user.ID)
	assert.Equal(t, "Jane", user.Name)

	user, err = client.ResolveByField(ctx, "employee_code", "002")
	require.NoError(t, err)
	assert.Nil(t, user)

	user, err = client.ResolveByField(ctx, "employee_code", "999")
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestDirectoryClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewDirectoryClient(srv.URL, "", zap.NewNop())

	_, err := client.ResolveByField(context.Background(), "employee_code", "001")
	assert.Error(t, err)
}
