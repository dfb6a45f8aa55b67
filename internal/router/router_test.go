package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/credittasks/backend/internal/account"
	"github.com/credittasks/backend/internal/auth"
	"github.com/credittasks/backend/internal/execution"
	"github.com/credittasks/backend/internal/store"
	"github.com/credittasks/backend/internal/store/memstore"
	"github.com/credittasks/backend/internal/tasks"
)

type fixedRandom struct{}

func (fixedRandom) Cost() int            { return 12 }
func (fixedRandom) DurationSeconds() int { return 10 }
func (fixedRandom) Seed() uint64         { return 7 }

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	s := memstore.New()
	retrier := store.NewRetrier(nil)
	authSvc := auth.NewService(s, auth.Config{Secret: []byte("0123456789abcdef0123456789abcdef"), BcryptCost: bcrypt.MinCost})
	engine := execution.NewEngine(s, nil,
		execution.WithRandomizer(fixedRandom{}),
		execution.WithSleep(func(context.Context, time.Duration) error { return nil }),
	)
	h := New(Handlers{
		Auth:    auth.NewHandler(authSvc, nil),
		Account: account.NewHandler(account.NewService(s, retrier), nil),
		Tasks:   tasks.NewHandler(tasks.NewService(s, engine), nil),
	}, authSvc)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestRouter_EndToEnd(t *testing.T) {
	srv := newServer(t)

	code, body := call(t, srv, http.MethodPost, "/auth/register", "", `{"email":"a@example.com","username":"alice","password":"password1"}`)
	require.Equal(t, http.StatusCreated, code)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	code, body = call(t, srv, http.MethodGet, "/me", token, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(500), body["credits"])

	code, body = call(t, srv, http.MethodPost, "/tasks", token, `{"name":""}`)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "Task", body["name"])
	id, _ := body["id"].(string)

	code, body = call(t, srv, http.MethodPost, "/tasks/"+id+"/execute", token, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(12), body["charged_cost"])
	assert.Contains(t, []any{"Succeeded", "Failed"}, body["status"])

	code, body = call(t, srv, http.MethodPost, "/tasks/"+id+"/execute", token, "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body["message"], "Task is already")

	code, body = call(t, srv, http.MethodGet, "/me", token, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(488), body["credits"])
}

func TestRouter_RequiresToken(t *testing.T) {
	srv := newServer(t)

	for _, path := range []string{"/me", "/me/ledger", "/tasks"} {
		code, _ := call(t, srv, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusUnauthorized, code, path)
	}
	code, _ := call(t, srv, http.MethodGet, "/tasks", "garbage", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body := call(t, srv, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}
