package dataverse

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"client-portal/pkg/config"
)

// newTestDataverse поднимает фейковый Dataverse: /token выдаёт тестовый
// токен, остальное обслуживает handler.
func newTestDataverse(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"test-token","expires_in":3600}`)
	})
	if handler != nil {
		mux.Handle("/", handler)
	}

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := &config.DataverseConfig{
		BaseURL:      srv.URL,
		TokenURL:     srv.URL + "/token",
		ClientID:     "test-client",
		ClientSecret: "test-secret",
	}
	client := New(cfg, zap.NewNop())
	// Без keep-alive: транспорт Go сам повторяет идемпотентный GET, если
	// переиспользованное соединение оборвалось, и счётчик обращений на
	// сервере перестаёт совпадать с числом попыток fetchData.
	client.httpClient.Transport = &http.Transport{DisableKeepAlives: true}
	return client
}

func TestFetchDataRetriesTransportFaults(t *testing.T) {
	var attempts int32

	mux := http.NewServeMux()
	mux.HandleFunc("/cr07a_clientes", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			// Обрываем соединение, имитируя сбой сети
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"value":[]}`)
	})

	client := newTestDataverse(t, mux)

	raw, err := client.fetchData(context.Background(), "/cr07a_clientes")
	require.NoError(t, err)
	assert.JSONEq(t, `{"value":[]}`, string(raw))
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestFetchDataGivesUpAfterMaxAttempts(t *testing.T) {
	var attempts int32

	mux := http.NewServeMux()
	mux.HandleFunc("/cr07a_clientes", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		hj, ok := w.(http.Hijacker)
		require.True(t, ok)
		conn, _, err := hj.Hijack()
		require.NoError(t, err)
		conn.Close()
	})

	client := newTestDataverse(t, mux)

	_, err := client.fetchData(context.Background(), "/cr07a_clientes")
	require.Error(t, err)
	assert.Equal(t, int32(maxAttempts), atomic.LoadInt32(&attempts))
}

func TestFetchDataDoesNotRetryHTTPErrors(t *testing.T) {
	var attempts int32

	mux := http.NewServeMux()
	mux.HandleFunc("/cr07a_clientes", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	client := newTestDataverse(t, mux)

	_, err := client.fetchData(context.Background(), "/cr07a_clientes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "вернул статус")
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts), "ответ сервера не повторяется")
}

func TestGetClientIDByEmailFound(t *testing.T) {
	clientID := uuid.New()

	mux := http.NewServeMux()
	mux.HandleFunc("/cr07a_clientes", func(w http.ResponseWriter, r *http.Request) {
		filter := r.URL.Query().Get("$filter")
		assert.Equal(t, "cr07a_correoelectronico eq 'o''brien@example.com'", filter,
			"одинарная кавычка в email должна удваиваться")

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"value":[{"cr07a_clienteid":"%s"}]}`, clientID)
	})

	client := newTestDataverse(t, mux)

	got, err := client.GetClientIDByEmail(context.Background(), "o'brien@example.com")
	require.NoError(t, err)
	assert.Equal(t, clientID, got)
}

func TestGetClientIDByEmailNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/cr07a_clientes", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"value":[]}`)
	})

	client := newTestDataverse(t, mux)

	got, err := client.GetClientIDByEmail(context.Background(), "missing@example.com")
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, got)
}

func TestGetClientIDByEmailBlank(t *testing.T) {
	client := newTestDataverse(t, nil)

	got, err := client.GetClientIDByEmail(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, got)
}
