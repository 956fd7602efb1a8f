// Package testutil provides shared test helpers: a temporary record store,
// an inbox directory and deterministic fakes for the model provider.
package testutil

import (
	"context"
	"errors"
	"hash/fnv"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/neuralos/internal/ai"
	"github.com/starford/neuralos/internal/storage"
	"github.com/starford/neuralos/internal/store"
)

// Dim is the vector size produced by Embedder.
const Dim = 32

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "neuralos-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestInbox creates a temporary inbox directory with a storage.Provider.
func TestInbox(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	fs, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, fs
}

// Clock returns a strictly increasing UTC clock starting at start.
func Clock(start time.Time) func() time.Time {
	var mu sync.Mutex
	cur := start.UTC()
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		cur = cur.Add(time.Millisecond)
		return cur
	}
}

// Embedder is a deterministic bag-of-words embedder that counts its calls.
// Texts sharing words get similar vectors.
type Embedder struct {
	mu     sync.Mutex
	calls  int
	inputs []string
	Err    error
	// Hook, if set, runs before each successful result. Tests use it to
	// hold an embedding in flight.
	Hook func(text string)
}

var _ ai.Embedder = (*Embedder)(nil)

func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.inputs = append(e.inputs, text)
	err, hook := e.Err, e.Hook
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if hook != nil {
		hook(text)
	}
	return Vector(text), nil
}

// SetErr makes subsequent calls fail with err (nil to recover).
func (e *Embedder) SetErr(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Err = err
}

// Calls returns the number of Embed calls.
func (e *Embedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Inputs returns the texts passed to Embed.
func (e *Embedder) Inputs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.inputs...)
}

// Gate holds Embed calls whose text contains match until Release.
type Gate struct {
	match   string
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

// NewGate returns a gate for texts containing match.
func NewGate(match string) *Gate {
	return &Gate{match: match, entered: make(chan struct{}), release: make(chan struct{})}
}

// Hook is an Embedder.Hook that blocks matching texts.
func (g *Gate) Hook(text string) {
	if !strings.Contains(text, g.match) {
		return
	}
	g.once.Do(func() { close(g.entered) })
	<-g.release
}

// Entered is closed once a matching call is being held.
func (g *Gate) Entered() <-chan struct{} { return g.entered }

// Release lets held calls return.
func (g *Gate) Release() { close(g.release) }

// Vector returns the embedding Embedder produces for text.
func Vector(text string) []float32 {
	v := make([]float32, Dim)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%Dim]++
	}
	return v
}

// Completer records chat requests and returns a fixed answer.
type Completer struct {
	mu       sync.Mutex
	calls    int
	messages [][]ai.Message
	Answer   string
	Err      error
}

var _ ai.Completer = (*Completer)(nil)

func (c *Completer) Complete(_ context.Context, messages []ai.Message) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.messages = append(c.messages, messages)
	if c.Err != nil {
		return "", c.Err
	}
	if c.Answer == "" {
		return "insight", nil
	}
	return c.Answer, nil
}

// Calls returns the number of Complete calls.
func (c *Completer) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Last returns the messages of the latest call.
func (c *Completer) Last() []ai.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) == 0 {
		return nil
	}
	return c.messages[len(c.messages)-1]
}

// ErrUnavailable simulates an upstream outage.
var ErrUnavailable = errors.New("upstream unavailable")
