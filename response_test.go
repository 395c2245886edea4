package gemini_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	gemini "github.com/knowfox/comet"
)

// feed sends chunks on an unbuffered channel and closes it.
func feed(chunks ...string) <-chan []byte {
	ch := make(chan []byte)
	go func() {
		defer close(ch)
		for _, c := range chunks {
			ch <- []byte(c)
		}
	}()
	return ch
}

func readBody(t *testing.T, res *gemini.Response) string {
	t.Helper()
	b, err := io.ReadAll(res.Reader())
	require.NoError(t, err)
	return string(b)
}

func TestFrameSuccess(t *testing.T) {
	res, err := gemini.Frame(context.Background(), feed("20 text/gemini\r\n# Hello\r\n\r\nSome text\r\n"))
	require.NoError(t, err)
	require.Equal(t, gemini.StatusSuccess, res.StatusCode)
	require.Equal(t, "text/gemini", res.Meta)
	require.Equal(t, "# Hello\r\n\r\nSome text\r\n", readBody(t, res))
}

func TestFrameNoBody(t *testing.T) {
	res, err := gemini.Frame(context.Background(), feed("51 Not found\r\n"))
	require.NoError(t, err)
	require.Equal(t, gemini.StatusNotFound, res.StatusCode)
	require.Equal(t, "Not found", res.Meta)
	require.Equal(t, "", readBody(t, res))
}

func TestFrameEmptyMeta(t *testing.T) {
	res, err := gemini.Frame(context.Background(), feed("20 \r\nbody"))
	require.NoError(t, err)
	require.Equal(t, "", res.Meta)
	require.Equal(t, "body", readBody(t, res))
}

func TestFrameChunkBoundaries(t *testing.T) {
	const input = "20 text/gemini; charset=utf-8\r\nline one\r\nline two\r\n"
	for i := 0; i <= len(input); i++ {
		for j := i; j <= len(input); j++ {
			res, err := gemini.Frame(context.Background(), feed(input[:i], input[i:j], input[j:]))
			require.NoError(t, err, "split at %d, %d", i, j)
			require.Equal(t, gemini.StatusSuccess, res.StatusCode)
			require.Equal(t, "text/gemini; charset=utf-8", res.Meta)
			require.Equal(t, "line one\r\nline two\r\n", readBody(t, res))
		}
	}
}

func TestFrameByteByByte(t *testing.T) {
	const input = "31 gemini://example.com/moved\r\n"
	chunks := make([]string, len(input))
	for i := range input {
		chunks[i] = input[i : i+1]
	}
	res, err := gemini.Frame(context.Background(), feed(chunks...))
	require.NoError(t, err)
	require.Equal(t, gemini.StatusPermanentRedirect, res.StatusCode)
	require.Equal(t, "gemini://example.com/moved", res.Meta)
}

func TestFrameInvalid(t *testing.T) {
	tests := map[string][]string{
		"empty stream":     nil,
		"no terminator":    {"20 text/gemini"},
		"lone CR":          {"20 text/gemini\rbody"},
		"lone LF":          {"20 text/gemini\nbody"},
		"no space":         {"20\r\n"},
		"not a number":     {"2x text/gemini\r\n"},
		"unknown status":   {"21 text/gemini\r\n"},
		"status too large": {"99 whatever\r\n"},
	}
	for name, chunks := range tests {
		_, err := gemini.Frame(context.Background(), feed(chunks...))
		require.ErrorIs(t, err, gemini.ErrInvalidResponse, name)
	}
}

func TestFrameHeaderTooLong(t *testing.T) {
	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'a'
	}
	_, err := gemini.Frame(context.Background(), feed("20 "+string(long)+"\r\n"))
	require.ErrorIs(t, err, gemini.ErrInvalidResponse)

	// 1024 bytes of meta is the maximum.
	meta := string(long[:1024])
	res, err := gemini.Frame(context.Background(), feed("20 "+meta+"\r\n"))
	require.NoError(t, err)
	require.Equal(t, meta, res.Meta)
}

func TestFrameCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	chunks := make(chan []byte)
	done := make(chan error, 1)
	go func() {
		_, err := gemini.Frame(ctx, chunks)
		done <- err
	}()
	chunks <- []byte("20 text/")
	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Frame did not return after cancellation")
	}
}

func TestFrameBodyStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	chunks := make(chan []byte)
	go func() { chunks <- []byte("20 text/gemini\r\n") }()
	res, err := gemini.Frame(ctx, chunks)
	require.NoError(t, err)
	cancel()
	select {
	case _, ok := <-res.Body:
		require.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("body not closed after cancellation")
	}
}

func TestNilResponse(t *testing.T) {
	var res *gemini.Response
	require.NoError(t, res.Close())
	require.NoError(t, res.Err())
}
