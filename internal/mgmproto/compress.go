package mgmproto

import (
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// dumpmdCompression is the Content-Encoding token dumpmd streams negotiate
// (§4.9): compression is optional and only applied when the requester
// advertises support for it.
const dumpmdCompression = "zstd"

// CompressedWriter wraps w in a zstd encoder when acceptEncoding names zstd,
// setting the Content-Encoding response header to match, for a dumpmd
// handler streaming potentially many thousands of records. The returned
// close func must be called once the caller is done writing (a no-op when
// no compression was applied).
func CompressedWriter(w http.ResponseWriter, acceptEncoding string) (io.Writer, func()) {
	if !strings.Contains(acceptEncoding, dumpmdCompression) {
		return w, func() {}
	}
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return w, func() {}
	}
	w.Header().Set("Content-Encoding", dumpmdCompression)
	return enc, func() { _ = enc.Close() }
}

// DecompressReader wraps body in a zstd decoder when contentEncoding names
// zstd, the counterpart a dumpmd caller uses to read a CompressedWriter
// reply back. The returned close func releases the decoder's background
// goroutines and must be called once the caller is done reading.
func DecompressReader(body io.Reader, contentEncoding string) (io.Reader, func(), error) {
	if !strings.Contains(contentEncoding, dumpmdCompression) {
		return body, func() {}, nil
	}
	dec, err := zstd.NewReader(body)
	if err != nil {
		return nil, func() {}, err
	}
	return dec, dec.Close, nil
}
