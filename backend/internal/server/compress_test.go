package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

func TestParseAcceptEncoding(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"identity", ""},
		{"gzip", "gzip"},
		{"gzip, br", "br"},
		{"gzip, br, zstd", "zstd"},
		{"GZIP;q=0.5", "gzip"},
		{"zstd;q=0, gzip", "gzip"},
		{"br;q=0.0", ""},
		{" , ,deflate", ""},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			if got := negotiateEncoding(parseAcceptEncoding(tt.header)); got != tt.want {
				t.Errorf("negotiate(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}

func TestCompressible(t *testing.T) {
	for ct, want := range map[string]bool{
		"":                                true,
		"application/json":                true,
		"application/json; charset=utf-8": true,
		"text/plain; charset=utf-8":       true,
		"application/problem+json":        true,
		"image/png":                       false,
		"application/octet-stream":        false,
		"not a type;;":                    false,
	} {
		if got := compressible(ct); got != want {
			t.Errorf("compressible(%q) = %v, want %v", ct, got, want)
		}
	}
}

func TestCompressMiddleware(t *testing.T) {
	body := `{"stdout":"` + strings.Repeat("hello ", 200) + `"}`
	jsonHandler := compressMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))

	decoders := map[string]func(io.Reader) (io.Reader, error){
		"gzip": func(r io.Reader) (io.Reader, error) { return gzip.NewReader(r) },
		"zstd": func(r io.Reader) (io.Reader, error) { return zstd.NewReader(r) },
		"br":   func(r io.Reader) (io.Reader, error) { return brotli.NewReader(r), nil },
	}
	for enc, newReader := range decoders {
		t.Run(enc, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			req.Header.Set("Accept-Encoding", enc)
			w := httptest.NewRecorder()
			jsonHandler.ServeHTTP(w, req)
			if got := w.Header().Get("Content-Encoding"); got != enc {
				t.Fatalf("Content-Encoding = %q, want %q", got, enc)
			}
			if w.Body.Len() >= len(body) {
				t.Errorf("compressed size %d >= %d", w.Body.Len(), len(body))
			}
			r, err := newReader(w.Body)
			if err != nil {
				t.Fatal(err)
			}
			got, err := io.ReadAll(r)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != body {
				t.Errorf("round trip mismatch: got %d bytes", len(got))
			}
		})
	}

	t.Run("NoAcceptEncoding", func(t *testing.T) {
		w := httptest.NewRecorder()
		jsonHandler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
		if w.Header().Get("Content-Encoding") != "" || w.Body.String() != body {
			t.Errorf("expected identity response")
		}
		if w.Header().Get("Vary") != "Accept-Encoding" {
			t.Errorf("Vary = %q", w.Header().Get("Vary"))
		}
	})

	t.Run("Incompressible", func(t *testing.T) {
		h := compressMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
		}))
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header.Set("Accept-Encoding", "gzip")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Header().Get("Content-Encoding") != "" || w.Body.Len() != 4 {
			t.Errorf("png was compressed")
		}
	})

	t.Run("NoContent", func(t *testing.T) {
		h := compressMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header.Set("Accept-Encoding", "gzip")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusNoContent || w.Header().Get("Content-Encoding") != "" || w.Body.Len() != 0 {
			t.Errorf("status=%d encoding=%q len=%d", w.Code, w.Header().Get("Content-Encoding"), w.Body.Len())
		}
	})
}
