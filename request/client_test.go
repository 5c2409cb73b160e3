package request

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientDo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, `{"ok": true}`)
	}))
	defer server.Close()

	req, err := ReadMessage("GET " + server.URL + "/get\nAccept: application/json")
	require.NoError(t, err)

	resp, err := New().Do(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "HTTP/1.1", resp.Version)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, `{"ok": true}`, resp.String())
	assert.Greater(t, resp.Duration, time.Duration(0))

	decoded, err := resp.JSON()
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"ok": true}, decoded)
}

func TestClientDoSendsBody(t *testing.T) {
	var received string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received = string(body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	req, err := ReadMessage("POST " + server.URL + "/post\nContent-Type: application/json\n\n" + `{"name": "fan"}`)
	require.NoError(t, err)

	resp, err := New().Do(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, `{"name": "fan"}`, received)
}

func TestClientTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	req, err := ReadMessage("GET " + server.URL + "/slow")
	require.NoError(t, err)

	client := New(WithTimeout(20 * time.Millisecond))
	_, err = client.Do(context.Background(), req)
	require.Error(t, err)

	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, Timeout, cerr.Kind)
}

func TestClientConnectionRefused(t *testing.T) {
	// Grab a port that is certainly closed
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	req, err := ReadMessage("GET " + url + "/gone")
	require.NoError(t, err)

	_, err = New().Do(context.Background(), req)
	require.Error(t, err)

	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, ConnectionRefused, cerr.Kind)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, Protocol, classify(io.ErrUnexpectedEOF).Kind)
	assert.Equal(t, ConnectionRefused, classify(fmt.Errorf("dial: %w", syscall.ECONNREFUSED)).Kind)
	assert.Equal(t, DNSFailure, classify(&net.DNSError{Err: "no such host", Name: "nowhere.invalid"}).Kind)
	assert.Equal(t, DNSFailure, classify(&net.DNSError{Err: "timeout", Name: "nowhere.invalid", IsTimeout: true}).Kind)
}
