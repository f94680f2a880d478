// Response compression middleware for API endpoints.
//
// Compresses text and JSON responses using zstd, brotli, or gzip at fast
// levels. Responses that already carry a Content-Encoding, have no body, or
// hold an incompressible media type are passed through untouched.
package server

import (
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// encodings lists supported codings by server preference.
var encodings = []string{"zstd", "br", "gzip"}

// compressMiddleware returns a handler that compresses responses based on
// the client's Accept-Encoding header.
func compressMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Accept-Encoding")
		enc := negotiateEncoding(parseAcceptEncoding(r.Header.Get("Accept-Encoding")))
		if enc == "" || r.Method == http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		cw := &compressWriter{ResponseWriter: w, encoding: enc}
		defer cw.close()
		next.ServeHTTP(cw, r)
	})
}

// parseAcceptEncoding returns the set of codings the client accepts. Codings
// with q=0 are excluded.
func parseAcceptEncoding(header string) map[string]bool {
	accepted := make(map[string]bool)
	for part := range strings.SplitSeq(header, ",") {
		name, params, _ := strings.Cut(part, ";")
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if q, ok := strings.CutPrefix(strings.TrimSpace(params), "q="); ok {
			if v, err := strconv.ParseFloat(q, 64); err == nil && v == 0 {
				continue
			}
		}
		accepted[name] = true
	}
	return accepted
}

// negotiateEncoding picks the best encoding the client accepts.
func negotiateEncoding(accepted map[string]bool) string {
	for _, enc := range encodings {
		if accepted[enc] {
			return enc
		}
	}
	return ""
}

// compressible reports whether a response of the given Content-Type is worth
// compressing.
func compressible(contentType string) bool {
	if contentType == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch {
	case strings.HasPrefix(mt, "text/"),
		mt == "application/json",
		mt == "application/javascript",
		mt == "application/xml",
		strings.HasSuffix(mt, "+json"):
		return true
	}
	return false
}

// compressWriter wraps http.ResponseWriter to compress the response body.
// The decision is taken on the first WriteHeader or Write.
type compressWriter struct {
	http.ResponseWriter
	encoding string
	writer   io.WriteCloser // nil when passing through
	decided  bool
}

func (cw *compressWriter) WriteHeader(code int) {
	cw.decide(code)
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *compressWriter) Write(b []byte) (int, error) {
	if !cw.decided {
		cw.decide(http.StatusOK)
	}
	if cw.writer == nil {
		return cw.ResponseWriter.Write(b)
	}
	return cw.writer.Write(b)
}

func (cw *compressWriter) decide(code int) {
	if cw.decided {
		return
	}
	cw.decided = true
	h := cw.Header()
	if code < http.StatusOK || code == http.StatusNoContent || code == http.StatusNotModified ||
		h.Get("Content-Encoding") != "" || !compressible(h.Get("Content-Type")) {
		return
	}
	h.Del("Content-Length")
	h.Set("Content-Encoding", cw.encoding)
	switch cw.encoding {
	case "zstd":
		enc, _ := zstd.NewWriter(cw.ResponseWriter, zstd.WithEncoderLevel(zstd.SpeedFastest))
		cw.writer = enc
	case "br":
		cw.writer = brotli.NewWriterLevel(cw.ResponseWriter, 1)
	case "gzip":
		gz, _ := gzip.NewWriterLevel(cw.ResponseWriter, gzip.BestSpeed)
		cw.writer = gz
	}
}

func (cw *compressWriter) close() {
	if cw.writer != nil {
		_ = cw.writer.Close()
	}
}

// Flush emits buffered compressed bytes, then flushes the connection.
func (cw *compressWriter) Flush() {
	if f, ok := cw.writer.(interface{ Flush() error }); ok {
		_ = f.Flush()
	}
	if f, ok := cw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying ResponseWriter for http.ResponseController.
func (cw *compressWriter) Unwrap() http.ResponseWriter {
	return cw.ResponseWriter
}
