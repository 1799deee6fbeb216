package httpx

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// jobListBody stands in for a typical admin API payload.
const jobListBody = `{"jobs":[{"id":"a1","type":"link_page","status":"pending"}]}`

func compressedGet(t *testing.T, cfg CompressionConfig, acceptEncoding string, handler http.Handler) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	if acceptEncoding != "" {
		req.Header.Set("Accept-Encoding", acceptEncoding)
	}
	rec := httptest.NewRecorder()
	Compression(cfg)(handler).ServeHTTP(rec, req)

	resp := rec.Result()
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func jsonHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	})
}

func gunzip(t *testing.T, r io.Reader) string {
	t.Helper()

	gr, err := gzip.NewReader(r)
	require.NoError(t, err)
	defer gr.Close()

	body, err := io.ReadAll(gr)
	require.NoError(t, err)
	return string(body)
}

func TestCompressionRoundTrip(t *testing.T) {
	big := strings.Repeat(jobListBody, 200)
	resp := compressedGet(t, CompressionConfig{Level: 6}, "gzip, deflate", jsonHandler(big))

	assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
	assert.Equal(t, "Accept-Encoding", resp.Header.Get("Vary"))
	assert.Empty(t, resp.Header.Get("Content-Length"))
	assert.Equal(t, big, gunzip(t, resp.Body))
}

func TestCompressionSkippedWithoutAcceptEncoding(t *testing.T) {
	for _, accept := range []string{"", "deflate", "br, deflate"} {
		t.Run("accept="+accept, func(t *testing.T) {
			resp := compressedGet(t, CompressionConfig{Level: 6}, accept, jsonHandler(jobListBody))

			assert.Empty(t, resp.Header.Get("Content-Encoding"))
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, jobListBody, string(body))
		})
	}
}

func TestCompressionQValues(t *testing.T) {
	tests := []struct {
		accept     string
		expectGzip bool
	}{
		{"gzip;q=1", true},
		{"gzip;q=0.5", true},
		{"gzip; q=0.5", true},
		{"gzip;q=0", false},
		{"gzip;q=0.0", false},
		{"deflate, gzip", true},
		{"identity;q=0, gzip", true},
	}

	for _, tt := range tests {
		t.Run(tt.accept, func(t *testing.T) {
			resp := compressedGet(t, CompressionConfig{Level: 6}, tt.accept, jsonHandler(jobListBody))
			if tt.expectGzip {
				assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
			} else {
				assert.Empty(t, resp.Header.Get("Content-Encoding"))
			}
		})
	}
}

func TestCompressionBodylessStatuses(t *testing.T) {
	for _, status := range []int{http.StatusNoContent, http.StatusNotModified} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			})
			resp := compressedGet(t, CompressionConfig{Level: 6}, "gzip", handler)

			assert.Equal(t, status, resp.StatusCode)
			assert.Empty(t, resp.Header.Get("Content-Encoding"))
		})
	}
}

func TestCompressionErrorResponsesStillCompress(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not_found","message":"job not found"}`))
	})
	resp := compressedGet(t, CompressionConfig{Level: 6}, "gzip", handler)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
	assert.Contains(t, gunzip(t, resp.Body), "not_found")
}

func TestCompressionContentTypeFilter(t *testing.T) {
	tests := []struct {
		contentType string
		expectGzip  bool
	}{
		{"application/json", true},
		{"application/json; charset=utf-8", true},
		{"text/plain", true},
		{"text/html", true},
		{"image/png", false},
		{"application/octet-stream", false},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("payload"))
			})
			resp := compressedGet(t, CompressionConfig{Level: 6}, "gzip", handler)
			if tt.expectGzip {
				assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
			} else {
				assert.Empty(t, resp.Header.Get("Content-Encoding"))
			}
		})
	}
}

func TestCompressionHeadRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodHead, "/api/jobs", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	Compression(CompressionConfig{Level: 6})(jsonHandler("")).ServeHTTP(rec, req)

	assert.Empty(t, rec.Result().Header.Get("Content-Encoding"))
}

func TestCompressionPreEncodedResponse(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Encoding", "br")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pre-encoded"))
	})
	resp := compressedGet(t, CompressionConfig{Level: 6}, "gzip", handler)

	assert.Equal(t, "br", resp.Header.Get("Content-Encoding"))
}

func TestCompressionMinSizeSmallResponse(t *testing.T) {
	// Responses under the threshold still arrive intact: the holdback is
	// flushed through the gzip stream when the handler returns.
	resp := compressedGet(t, CompressionConfig{Level: 6, MinSize: 1 << 20}, "gzip", jsonHandler(jobListBody))

	assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
	assert.Equal(t, jobListBody, gunzip(t, resp.Body))
}

func TestCompressionMinSizeLargeResponse(t *testing.T) {
	big := strings.Repeat(jobListBody, 100)
	resp := compressedGet(t, CompressionConfig{Level: 6, MinSize: 128}, "gzip", jsonHandler(big))

	assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
	assert.Equal(t, big, gunzip(t, resp.Body))
}

func TestCompressionInvalidLevelFallsBack(t *testing.T) {
	// Out-of-range levels use the default level rather than failing.
	resp := compressedGet(t, CompressionConfig{Level: 42}, "gzip", jsonHandler(jobListBody))

	assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
	assert.Equal(t, jobListBody, gunzip(t, resp.Body))
}
