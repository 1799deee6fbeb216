package httpx

import (
	"compress/gzip"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

// Logging returns a middleware that logs one line per request.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &respWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Flush forwards streaming flushes so Logging does not break SSE or long polls.
func (w *respWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Recover returns a middleware that turns handler panics into 500s instead
// of tearing down the connection.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// CompressionConfig configures the gzip middleware.
type CompressionConfig struct {
	// Level is the gzip level, 1-9. Values outside the range fall back to
	// the package default.
	Level int
	// MinSize buffers responses and only compresses once they exceed this
	// many bytes. Zero compresses everything eligible.
	MinSize int
	Logger  *slog.Logger

	pool *sync.Pool
}

// compressibleTypes is the set of media types worth gzipping. The admin API
// only ever serves JSON and plain text, but HTML is kept for error pages
// written by the stdlib.
var compressibleTypes = map[string]bool{
	"application/json": true,
	"text/plain":       true,
	"text/html":        true,
}

// Compression returns a middleware that gzips eligible responses. A response
// is eligible when the client advertises gzip, the method is not HEAD, the
// status carries a body, content is a compressible type, and no encoding was
// already applied.
func Compression(cfg CompressionConfig) func(http.Handler) http.Handler {
	level := cfg.Level
	if level < gzip.BestSpeed || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	cfg.pool = &sync.Pool{
		New: func() any {
			w, err := gzip.NewWriterLevel(nil, level)
			if err != nil {
				return gzip.NewWriter(nil)
			}
			return w
		},
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodHead || !acceptsGzip(r.Header.Get("Accept-Encoding")) {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Add("Vary", "Accept-Encoding")
			gzw := &gzipResponseWriter{
				ResponseWriter: w,
				config:         &cfg,
				minSize:        cfg.MinSize,
			}
			next.ServeHTTP(gzw, r)
			gzw.finish(r)
		})
	}
}

// acceptsGzip reports whether the Accept-Encoding header allows gzip. An
// explicit q=0 opts out.
func acceptsGzip(acceptEncoding string) bool {
	for _, part := range strings.Split(acceptEncoding, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		encoding, params, _ := strings.Cut(part, ";")
		if strings.TrimSpace(encoding) != "gzip" {
			continue
		}
		params = strings.ReplaceAll(params, " ", "")
		if params == "q=0" || strings.HasPrefix(params, "q=0.0") || strings.HasPrefix(params, "q=0,") || strings.HasPrefix(params, "q=0;") {
			return false
		}
		return true
	}
	return false
}

func isCompressible(contentType string) bool {
	mediaType, _, _ := strings.Cut(contentType, ";")
	return compressibleTypes[strings.TrimSpace(strings.ToLower(mediaType))]
}

// gzipResponseWriter defers the compress-or-not decision until the first
// WriteHeader, when status and content type are known.
type gzipResponseWriter struct {
	http.ResponseWriter
	config        *CompressionConfig
	gzipWriter    *gzip.Writer
	headerWritten bool
	minSize       int
	buffered      []byte
	thresholdMet  bool
}

func (w *gzipResponseWriter) WriteHeader(statusCode int) {
	if w.headerWritten {
		return
	}
	w.headerWritten = true

	bodyless := statusCode < 200 || statusCode == http.StatusNoContent || statusCode == http.StatusNotModified
	if bodyless || w.Header().Get("Content-Encoding") != "" {
		w.ResponseWriter.WriteHeader(statusCode)
		return
	}

	// An empty content type means the handler is relying on detection in
	// Write, which only ever produces compressible text for this API.
	if ct := w.Header().Get("Content-Type"); ct != "" && !isCompressible(ct) {
		w.ResponseWriter.WriteHeader(statusCode)
		return
	}

	gz, _ := w.config.pool.Get().(*gzip.Writer)
	gz.Reset(w.ResponseWriter)
	w.gzipWriter = gz
	w.Header().Set("Content-Encoding", "gzip")
	w.Header().Del("Content-Length")
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	if !w.headerWritten {
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", http.DetectContentType(b))
		}
		w.WriteHeader(http.StatusOK)
	}
	if w.gzipWriter == nil {
		return w.ResponseWriter.Write(b)
	}

	// Below the size threshold, hold bytes back. finish flushes the
	// holdback if the response never grows past it.
	if w.minSize > 0 && !w.thresholdMet {
		w.buffered = append(w.buffered, b...)
		if len(w.buffered) < w.minSize {
			return len(b), nil
		}
		w.thresholdMet = true
		_, err := w.gzipWriter.Write(w.buffered)
		w.buffered = nil
		return len(b), err
	}

	return w.gzipWriter.Write(b)
}

// finish drains any held-back bytes, closes the gzip stream, and returns the
// writer to the pool.
func (w *gzipResponseWriter) finish(r *http.Request) {
	if w.gzipWriter == nil {
		return
	}
	if len(w.buffered) > 0 {
		if _, err := w.gzipWriter.Write(w.buffered); err != nil {
			w.config.Logger.ErrorContext(r.Context(), "writing buffered response failed", "error", err)
		}
		w.buffered = nil
	}
	if err := w.gzipWriter.Close(); err != nil {
		w.config.Logger.ErrorContext(r.Context(), "closing gzip writer failed", "error", err)
	}
	w.config.pool.Put(w.gzipWriter)
	w.gzipWriter = nil
}

// Flush flushes both the gzip stream and the underlying writer.
func (w *gzipResponseWriter) Flush() {
	if w.gzipWriter != nil {
		if len(w.buffered) > 0 {
			if _, err := w.gzipWriter.Write(w.buffered); err == nil {
				w.buffered = nil
				w.thresholdMet = true
			}
		}
		_ = w.gzipWriter.Flush()
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
