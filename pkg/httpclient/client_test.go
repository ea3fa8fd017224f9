package httpclient

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Redirects(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/1":
			http.Redirect(w, r, "/2", http.StatusFound)
		case "/2":
			http.Redirect(w, r, "/3", http.StatusFound)
		case "/3":
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer ts.Close()

	client, err := New(Config{MaxRedirects: 1})
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/1", nil)
	_, err = client.Do(context.Background(), req)
	assert.Error(t, err, "expected redirect limit error")

	client, err = New(Config{MaxRedirects: 5})
	require.NoError(t, err)
	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/1", nil)
	resp, err := client.Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/3", resp.Request.URL.Path, "final URL should follow redirects")

	noRedir, _ := New(Config{MaxRedirects: -1})
	req2, _ := http.NewRequest(http.MethodGet, ts.URL+"/1", nil)
	resp2, err := noRedir.Do(context.Background(), req2)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusFound, resp2.StatusCode)
}

func TestClient_Cookies(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/set":
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc"})
			w.WriteHeader(http.StatusOK)
		case "/check":
			c, err := r.Cookie("session")
			if err != nil || c.Value != "abc" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer ts.Close()

	client, err := New(Config{UseCookieJar: true, MaxRedirects: 5})
	require.NoError(t, err)

	req1, _ := http.NewRequest(http.MethodGet, ts.URL+"/set", nil)
	resp1, err := client.Do(context.Background(), req1)
	require.NoError(t, err)
	resp1.Body.Close()

	req2, _ := http.NewRequest(http.MethodGet, ts.URL+"/check", nil)
	resp2, err := client.Do(context.Background(), req2)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode, "cookies not persisted?")
}

func TestClient_Context(t *testing.T) {
	client, _ := New(Config{})

	req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
	//nolint:staticcheck // nil context is the case under test
	_, err := client.Do(nil, req)
	assert.EqualError(t, err, "httpclient: context cannot be nil")

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	req2, _ := http.NewRequest(http.MethodGet, ts.URL, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = client.Do(ctx, req2)
	assert.Error(t, err, "expected cancellation error")
}

func TestConnectTimeout(t *testing.T) {
	_, ok := ConnectTimeout(context.Background())
	assert.False(t, ok)

	ctx := WithConnectTimeout(context.Background(), 6*time.Second)
	d, ok := ConnectTimeout(ctx)
	assert.True(t, ok)
	assert.Equal(t, 6*time.Second, d)
}

func TestDialer_AppliesContextTimeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	dial := Dialer(nil)

	conn, err := dial(WithConnectTimeout(context.Background(), time.Second), "tcp", ln.Addr().String())
	require.NoError(t, err)
	conn.Close()

	_, err = dial(WithConnectTimeout(context.Background(), time.Nanosecond), "tcp", ln.Addr().String())
	assert.Error(t, err, "an already expired connect budget must fail the dial")
}

func TestDecodeBody(t *testing.T) {
	const payload = "<html>Сырники</html>"

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	_, _ = gw.Write([]byte(payload))
	require.NoError(t, gw.Close())

	var br bytes.Buffer
	bw := brotli.NewWriter(&br)
	_, _ = bw.Write([]byte(payload))
	require.NoError(t, bw.Close())

	tests := []struct {
		name     string
		encoding string
		body     []byte
	}{
		{"identity", "", []byte(payload)},
		{"gzip", "gzip", gz.Bytes()},
		{"brotli", "br", br.Bytes()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{
				Header: http.Header{},
				Body:   io.NopCloser(bytes.NewReader(tt.body)),
			}
			if tt.encoding != "" {
				resp.Header.Set("Content-Encoding", tt.encoding)
			}
			r, err := DecodeBody(resp)
			require.NoError(t, err)
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, payload, string(got))
		})
	}

	_, err := DecodeBody(&http.Response{
		Header: http.Header{"Content-Encoding": {"zstd"}},
		Body:   io.NopCloser(bytes.NewReader(nil)),
	})
	assert.Error(t, err)
}

func TestReadAll_IdleTimeout(t *testing.T) {
	pr, pw := io.Pipe()
	go func() {
		_, _ = pw.Write([]byte("abc"))
		// then stall until cancelled
	}()

	body, err := ReadAll(pr, 20*time.Millisecond, func() {
		_ = pw.CloseWithError(context.Canceled)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReadTimeout)
	assert.Equal(t, "abc", string(body))
}

func TestReadAll_NoTimeout(t *testing.T) {
	body, err := ReadAll(bytes.NewReader([]byte("done")), time.Second, func() {})
	require.NoError(t, err)
	assert.Equal(t, "done", string(body))
}
