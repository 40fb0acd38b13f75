package persist

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livetemplate/syntaxstudio/internal/storage"
)

// recordingStore logs every write that reaches the backend.
type recordingStore struct {
	*storage.Memory
	mu      sync.Mutex
	writes  []string
	failSet error
	failGet error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{Memory: storage.NewMemory()}
}

func (r *recordingStore) Get(ctx context.Context, key string) (string, bool, error) {
	if r.failGet != nil {
		return "", false, r.failGet
	}
	return r.Memory.Get(ctx, key)
}

func (r *recordingStore) Set(ctx context.Context, key, value string) error {
	r.mu.Lock()
	r.writes = append(r.writes, key+"="+value)
	fail := r.failSet
	r.mu.Unlock()
	if fail != nil {
		return fail
	}
	return r.Memory.Set(ctx, key, value)
}

func (r *recordingStore) Writes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.writes...)
}

func TestNewCellUsesLiteralDefault(t *testing.T) {
	c, err := NewCell(context.Background(), storage.NewMemory(), "html", Value(""))
	require.NoError(t, err)

	assert.Equal(t, "", c.Get())
	assert.Equal(t, "syntax-studio-html", c.Key())
}

func TestNewCellCallsProducerOnlyWhenAbsent(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	calls := 0
	produce := Func(func() string {
		calls++
		return "<h1>start</h1>"
	})

	c, err := NewCell(ctx, store, "html", produce)
	require.NoError(t, err)
	assert.Equal(t, "<h1>start</h1>", c.Get())
	assert.Equal(t, 1, calls)

	require.NoError(t, store.Set(ctx, "syntax-studio-css", `"body{}"`))
	c2, err := NewCell(ctx, store, "css", Func(func() string {
		calls++
		return "unused"
	}))
	require.NoError(t, err)
	assert.Equal(t, "body{}", c2.Get())
	assert.Equal(t, 1, calls, "producer must not run when the store has a value")
}

func TestCellRoundTripAcrossReload(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()

	c, err := NewCell(ctx, store, "js", Value(""))
	require.NoError(t, err)
	require.NoError(t, <-c.Set("console.log(1)"))

	raw, found, err := store.Get(ctx, "syntax-studio-js")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, `"console.log(1)"`, raw, "values are stored JSON-encoded")

	reloaded, err := NewCell(ctx, store, "js", Value(""))
	require.NoError(t, err)
	assert.Equal(t, "console.log(1)", reloaded.Get())
}

func TestCellSetUpdatesMemorySynchronously(t *testing.T) {
	store := newRecordingStore()
	c, err := NewCell(context.Background(), store, "html", Value(""))
	require.NoError(t, err)

	done := c.Set("<p>hi</p>")
	assert.Equal(t, "<p>hi</p>", c.Get(), "value must be visible before the write completes")
	require.NoError(t, <-done)

	_, open := <-done
	assert.False(t, open, "completion channel is closed after the result")
}

func TestCellWritesOncePerChangeInOrder(t *testing.T) {
	store := newRecordingStore()
	c, err := NewCell(context.Background(), store, "css", Value(""))
	require.NoError(t, err)

	var results []<-chan error
	for _, v := range []string{"a", "ab", "abc", "abc", "ab"} {
		results = append(results, c.Set(v))
	}
	for _, r := range results {
		require.NoError(t, <-r)
	}

	assert.Equal(t, []string{
		`syntax-studio-css="a"`,
		`syntax-studio-css="ab"`,
		`syntax-studio-css="abc"`,
		`syntax-studio-css="ab"`,
	}, store.Writes(), "repeating the current value is not a change")

	v, _, err := store.Memory.Get(context.Background(), "syntax-studio-css")
	require.NoError(t, err)
	assert.Equal(t, `"ab"`, v, "last Set wins in the store")
}

func TestCellWait(t *testing.T) {
	store := newRecordingStore()
	c, err := NewCell(context.Background(), store, "html", Value(""))
	require.NoError(t, err)

	c.Wait()
	c.Set("1")
	c.Set("2")
	c.Wait()

	assert.Len(t, store.Writes(), 2)
}

func TestCellWriteFailureIsReportedNotRetried(t *testing.T) {
	store := newRecordingStore()
	store.failSet = errors.New("quota exceeded")

	c, err := NewCell(context.Background(), store, "html", Value(""))
	require.NoError(t, err)

	err = <-c.Set("<p>big</p>")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.failSet)
	assert.Equal(t, "<p>big</p>", c.Get(), "in-memory value stays authoritative")
	assert.Len(t, store.Writes(), 1)
}

func TestNewCellCorruptValueFailsLoudly(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	require.NoError(t, store.Set(ctx, "syntax-studio-html", "{not json"))

	_, err := NewCell(ctx, store, "html", Value(""))
	require.Error(t, err)

	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, "syntax-studio-html", decodeErr.Key)
	assert.Equal(t, "{not json", decodeErr.Raw)
}

func TestNewCellCorruptValueFallback(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	require.NoError(t, store.Set(ctx, "syntax-studio-html", "{not json"))

	c, err := NewCell(ctx, store, "html", Value("fallback"), WithFallbackOnCorrupt())
	require.NoError(t, err)
	assert.Equal(t, "fallback", c.Get())
}

func TestCellRepairsCorruptSlotWithDefault(t *testing.T) {
	ctx := context.Background()
	store := newRecordingStore()
	require.NoError(t, store.Memory.Set(ctx, "syntax-studio-html", "{not json"))

	c, err := NewCell(ctx, store, "html", Value(""), WithFallbackOnCorrupt())
	require.NoError(t, err)

	require.NoError(t, <-c.Set(""))
	assert.Equal(t, []string{`syntax-studio-html=""`}, store.Writes())

	require.NoError(t, <-c.Set(""))
	assert.Len(t, store.Writes(), 1, "repaired slot behaves like any other")
}

func TestNewCellReadErrorFails(t *testing.T) {
	store := newRecordingStore()
	store.failGet = errors.New("connection refused")

	_, err := NewCell(context.Background(), store, "html", Value(""), WithFallbackOnCorrupt())
	require.Error(t, err)
	assert.ErrorIs(t, err, store.failGet)
}

func TestCellPrefix(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()

	c, err := NewCell(ctx, store, "html", Value(""), WithPrefix("test-"))
	require.NoError(t, err)
	require.NoError(t, <-c.Set("x"))

	_, found, err := store.Get(ctx, "test-html")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestCellStructuredValue(t *testing.T) {
	type layout struct {
		Open  bool   `json:"open"`
		Theme string `json:"theme"`
	}
	ctx := context.Background()
	store := storage.NewMemory()

	c, err := NewCell(ctx, store, "layout", Value(layout{Open: true, Theme: "material"}))
	require.NoError(t, err)
	require.NoError(t, <-c.Set(layout{Open: false, Theme: "dracula"}))

	reloaded, err := NewCell(ctx, store, "layout", Value(layout{}))
	require.NoError(t, err)
	assert.Equal(t, layout{Open: false, Theme: "dracula"}, reloaded.Get())
}
