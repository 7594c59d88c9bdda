package subprocess

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputCursorBytes(t *testing.T) {
	c := newInputCursor(BytesInput("hello"))
	require.NotNil(t, c)

	chunk, eof, err := c.next()
	require.NoError(t, err)
	assert.False(t, eof)
	assert.Equal(t, "hello", string(chunk))

	_, eof, err = c.next()
	require.NoError(t, err)
	assert.True(t, eof)
}

func TestInputCursorReader(t *testing.T) {
	data := bytes.Repeat([]byte("x"), inputChunkSize+10)
	c := newInputCursor(ReaderInput{R: bytes.NewReader(data)})
	require.NotNil(t, c)

	var got []byte
	for {
		chunk, eof, err := c.next()
		require.NoError(t, err)
		if eof {
			break
		}
		got = append(got, chunk...)
	}
	assert.Equal(t, data, got)
}

func TestInputCursorReaderError(t *testing.T) {
	boom := errors.New("boom")
	c := newInputCursor(ReaderInput{R: errReader{err: boom}})
	_, _, err := c.next()
	assert.ErrorIs(t, err, boom)
}

func TestInputCursorNil(t *testing.T) {
	assert.Nil(t, newInputCursor(nil))
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

var _ io.Reader = errReader{}
