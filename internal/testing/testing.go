// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/voxup/internal/models"
)

// NopLogger returns a logger that discards output.
func NopLogger() *log.Logger {
	return log.New(io.Discard)
}

// TransportCall records one invocation of [MockTransport.Upload].
type TransportCall struct {
	Key  string
	At   time.Time
	Req  models.UploadRequest
	Live int // concurrent calls in flight when this one started, including itself
}

// MockTransport is a scriptable test double for the item transport.
//
// Result decides each attempt's outcome; nil means success. Delay holds each call open,
// which lets tests observe concurrency.
type MockTransport struct {
	Result func(key string, attempt int) (bool, error)
	Delay  time.Duration

	mu       sync.Mutex
	calls    []TransportCall
	attempts map[string]int
	live     int
	maxLive  int
}

// Upload implements the transport contract.
func (m *MockTransport) Upload(ctx context.Context, req models.UploadRequest) (bool, error) {
	m.mu.Lock()
	if m.attempts == nil {
		m.attempts = make(map[string]int)
	}
	m.attempts[req.Key]++
	attempt := m.attempts[req.Key]
	m.live++
	if m.live > m.maxLive {
		m.maxLive = m.live
	}
	m.calls = append(m.calls, TransportCall{Key: req.Key, At: time.Now(), Req: req, Live: m.live})
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.live--
		m.mu.Unlock()
	}()

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}

	if m.Result == nil {
		return true, nil
	}
	return m.Result(req.Key, attempt)
}

// Calls returns a copy of the recorded calls in start order.
func (m *MockTransport) Calls() []TransportCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TransportCall(nil), m.calls...)
}

// CallsFor returns the calls made for key.
func (m *MockTransport) CallsFor(key string) []TransportCall {
	var out []TransportCall
	for _, c := range m.Calls() {
		if c.Key == key {
			out = append(out, c)
		}
	}
	return out
}

// MaxConcurrent returns the highest number of simultaneous calls observed.
func (m *MockTransport) MaxConcurrent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxLive
}

// MockOracle returns a fixed stored set and counts calls.
type MockOracle struct {
	Stored []string

	mu    sync.Mutex
	calls int
	last  []string
}

// CheckRemoteStatus implements the oracle contract.
func (m *MockOracle) CheckRemoteStatus(_ context.Context, _ string, hashes []string) map[string]struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.last = append([]string(nil), hashes...)

	asked := make(map[string]struct{}, len(hashes))
	for _, h := range hashes {
		asked[h] = struct{}{}
	}

	out := make(map[string]struct{})
	for _, h := range m.Stored {
		if _, ok := asked[h]; ok {
			out[h] = struct{}{}
		}
	}
	return out
}

// Calls returns how many checks were made and the hashes of the last one.
func (m *MockOracle) Calls() (int, []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls, m.last
}

// MemoryLedger is an in-memory completion ledger. FailWrites makes Record return an error.
type MemoryLedger struct {
	FailWrites bool

	mu   sync.Mutex
	keys map[string]string
}

// Has reports whether key was recorded.
func (m *MemoryLedger) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.keys[key]
	return ok
}

// Keys returns the recorded keys in no particular order.
func (m *MemoryLedger) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.keys))
	for k := range m.keys {
		keys = append(keys, k)
	}
	return keys
}

// Record stores key unless FailWrites is set.
func (m *MemoryLedger) Record(key, hash string, _ models.CompletionSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return errors.New("disk full")
	}
	if m.keys == nil {
		m.keys = make(map[string]string)
	}
	m.keys[key] = hash
	return nil
}

// MapResolver resolves items from a map.
type MapResolver map[string]models.Item

// Item returns the item for key.
func (m MapResolver) Item(key string) (models.Item, bool) {
	item, ok := m[key]
	return item, ok
}

// Items builds a resolver where every key hashes to "hash-<key>".
func Items(keys ...string) MapResolver {
	r := make(MapResolver, len(keys))
	for _, k := range keys {
		r[k] = models.Item{Key: k, Name: k + ".opus", Hash: "hash-" + k}
	}
	return r
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

func MustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}
