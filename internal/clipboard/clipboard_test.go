package clipboard

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	ctx := context.Background()

	assert.Equal(t, "", r.Last())
	require.NoError(t, r.Copy(ctx, "a"))
	require.NoError(t, r.Copy(ctx, "b"))

	assert.Equal(t, []string{"a", "b"}, r.Copies())
	assert.Equal(t, "b", r.Last())
}

func TestRecorderFailure(t *testing.T) {
	r := &Recorder{Err: errors.New("denied")}

	err := r.Copy(context.Background(), "a")
	assert.EqualError(t, err, "denied")
	assert.Empty(t, r.Copies())
}

func TestSystemHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := System{}.Copy(ctx, "text")
	// Either the utility finished first or the context won; both are valid
	// outcomes on a cancelled context, but it must never hang.
	if err != nil && !errors.Is(err, context.Canceled) {
		t.Logf("system clipboard unavailable: %v", err)
	}
}

var _ Clipboard = System{}
var _ Clipboard = (*Recorder)(nil)
