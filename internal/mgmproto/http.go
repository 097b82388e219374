package mgmproto

import (
	"context"
	"io"
	"net/http"
	"time"
)

// HTTPTransport carries an opaque query over plain HTTP, the same way a
// real xrootd client passes "path?opaque" over its TCP protocol: the
// query string already is the wire format here, so an HTTP GET against
// "<BaseURL>/opaque?<opaque>" only needs the one endpoint on every node.
type HTTPTransport struct {
	BaseURL string
	Client  *http.Client
}

// Query implements Transport.
func (t HTTPTransport) Query(ctx context.Context, opaque string) (int, []byte, error) {
	client := t.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.BaseURL+"/opaque?"+opaque, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept-Encoding", dumpmdCompression)
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	reader, closeReader, err := DecompressReader(resp.Body, resp.Header.Get("Content-Encoding"))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	defer closeReader()

	body, err := io.ReadAll(reader)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}
