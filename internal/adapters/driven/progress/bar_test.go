package progress

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBar_Disabled(t *testing.T) {
	var buf bytes.Buffer
	b := New(&buf, false)

	b.Start(10)
	b.Add(3)
	b.Describe("chunking")
	b.Finish()

	assert.Empty(t, buf.String())
	assert.Nil(t, b.bar)
}

func TestBar_Enabled(t *testing.T) {
	var buf bytes.Buffer
	b := New(&buf, true)

	b.Start(4)
	b.Add(2)
	b.Describe("embedding")
	b.Add(2)
	b.Finish()

	assert.NotEmpty(t, buf.String())
	assert.Nil(t, b.bar)
}

func TestBar_CallsAfterFinish(t *testing.T) {
	var buf bytes.Buffer
	b := New(&buf, true)

	b.Start(-1)
	b.Add(1)
	b.Finish()

	assert.NotPanics(t, func() {
		b.Add(1)
		b.Describe("late")
		b.Finish()
	})
}

func TestIsTerminal(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()

	assert.False(t, IsTerminal(f))
}

func TestBar_SetEnabled(t *testing.T) {
	var buf bytes.Buffer
	b := New(&buf, false)

	b.SetEnabled(true)
	b.Start(2)
	require.NotNil(t, b.bar)
	// a bar that completes is cleared, so stop halfway to see output
	b.Add(1)
	assert.NotEmpty(t, buf.String())
	b.Finish()
	assert.Nil(t, b.bar)

	b.SetEnabled(false)
	b.Start(2)
	assert.Nil(t, b.bar)
}
