package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
)

// TelegramCall is one recorded Bot API invocation.
type TelegramCall struct {
	Method string
	Params url.Values
}

// MockTelegramServer is an httptest server that answers Bot API calls with
// canned results and records every invocation.
type MockTelegramServer struct {
	*httptest.Server

	mu      sync.Mutex
	calls   []TelegramCall
	results map[string]string
}

// NewMockTelegramServer starts a mock Bot API. Point telegram.Client.BaseURL
// at its URL. Methods without a configured result answer {"ok":true,"result":true}.
func NewMockTelegramServer(t *testing.T) *MockTelegramServer {
	t.Helper()
	m := &MockTelegramServer{results: make(map[string]string)}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Path shape: /bot<token>/<method>
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")
		method := parts[len(parts)-1]
		body, _ := io.ReadAll(r.Body)
		params, _ := url.ParseQuery(string(body))

		m.mu.Lock()
		m.calls = append(m.calls, TelegramCall{Method: method, Params: params})
		result, ok := m.results[method]
		m.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if !ok {
			result = "true"
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":` + result + `}`))
	}))
	t.Cleanup(m.Close)
	return m
}

// SetResult configures the raw JSON result payload for a method.
func (m *MockTelegramServer) SetResult(method, rawJSON string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[method] = rawJSON
}

// Calls returns the invocations recorded so far.
func (m *MockTelegramServer) Calls() []TelegramCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TelegramCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallsTo returns the invocations of one method.
func (m *MockTelegramServer) CallsTo(method string) []TelegramCall {
	var out []TelegramCall
	for _, c := range m.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}
