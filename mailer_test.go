package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	auth "github.com/netowork/go-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPMailer_Send(t *testing.T) {
	var (
		gotToken string
		gotBody  map[string]any
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		gotToken = r.Header.Get("Api-Token")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	mailer := auth.NewHTTPMailer(server.URL, "api-token", "no-reply@example.com", time.Second)
	require.NoError(t, mailer.Send(context.Background(), "user@example.com", "Hello", "<p>hi</p>"))

	assert.Equal(t, "api-token", gotToken)
	assert.Equal(t, "Hello", gotBody["subject"])
	assert.Equal(t, "<p>hi</p>", gotBody["html"])
	assert.Equal(t, map[string]any{"email": "no-reply@example.com"}, gotBody["from"])
	assert.Equal(t, []any{map[string]any{"email": "user@example.com"}}, gotBody["to"])
}

func TestHTTPMailer_Failures(t *testing.T) {
	t.Run("non 2xx", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "quota exceeded", http.StatusTooManyRequests)
		}))
		defer server.Close()

		err := auth.NewHTTPMailer(server.URL, "token", "from@example.com", 0).
			Send(context.Background(), "user@example.com", "s", "b")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status=429")
		assert.Contains(t, err.Error(), "quota exceeded")
	})

	t.Run("not configured", func(t *testing.T) {
		err := auth.NewHTTPMailer("", "token", "from@example.com", 0).
			Send(context.Background(), "user@example.com", "s", "b")
		assert.Error(t, err)
	})

	t.Run("canceled context", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := auth.NewHTTPMailer(server.URL, "token", "from@example.com", 0).
			Send(ctx, "user@example.com", "s", "b")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestNewHTTPMailer_DefaultTimeout(t *testing.T) {
	mailer := auth.NewHTTPMailer("http://localhost", "token", "from@example.com", 0)
	assert.Equal(t, 10*time.Second, mailer.HTTPClient.Timeout)
}

func TestLogMailer(t *testing.T) {
	assert.NoError(t, auth.LogMailer{}.Send(context.Background(), "user@example.com", "s", "b"))
}
