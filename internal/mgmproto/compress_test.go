package mgmproto

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompressedWriterRoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	out, closeOut := CompressedWriter(rec, "gzip, zstd")
	io.WriteString(out, "line one\nline two\n")
	closeOut()

	require.Equal(t, "zstd", rec.Header().Get("Content-Encoding"))

	reader, closeReader, err := DecompressReader(rec.Body, rec.Header().Get("Content-Encoding"))
	require.NoError(t, err)
	defer closeReader()

	body, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Equal(t, "line one\nline two\n", string(body))
}

func TestCompressedWriterNoopWithoutAcceptEncoding(t *testing.T) {
	rec := httptest.NewRecorder()
	out, closeOut := CompressedWriter(rec, "gzip")
	io.WriteString(out, "plain\n")
	closeOut()

	require.Empty(t, rec.Header().Get("Content-Encoding"))
	require.Equal(t, "plain\n", rec.Body.String())
}

func TestDecompressReaderPassthroughWithoutEncoding(t *testing.T) {
	reader, closeReader, err := DecompressReader(strings.NewReader("raw\n"), "")
	require.NoError(t, err)
	defer closeReader()
	body, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Equal(t, "raw\n", string(body))
}
