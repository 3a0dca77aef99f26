package testutil

import (
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/schoolone/portal/internal/api"
	"github.com/schoolone/portal/internal/mockapi"
	"github.com/schoolone/portal/internal/model"
)

// Test account registered on every backend from NewBackend.
const (
	Email    = "kid@school.test"
	Password = "pw"
	Name     = "Kid"
)

// Backend is a mock school backend served over httptest.
type Backend struct {
	*mockapi.Server
	Config model.APIConfig
}

// NewBackend starts a mock backend with the test account and no
// notifications. It is shut down when the test completes.
func NewBackend(t *testing.T) *Backend {
	t.Helper()

	srv := mockapi.New("test-secret", zerolog.Nop())
	srv.AddUser(Email, Password, Name, "student")

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &Backend{
		Server: srv,
		Config: model.APIConfig{BaseURL: ts.URL + "/api/v1", TimeoutSec: 5, MaxRetries: 2},
	}
}

// Client returns an API client pointed at the backend.
func (b *Backend) Client() *api.Client {
	return api.NewClient(b.Config, zerolog.Nop())
}
