// Generic HTTP handler wrappers that decode requests, validate, call a typed
// handler function, and encode JSON responses or structured errors.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/fuxialexander/codesherpa/backend/internal/server/dto"
)

// handle wraps a typed handler function into an http.HandlerFunc. It reads the
// JSON body, validates, calls fn, and writes the JSON response or structured
// error. Rejected payloads are counted per request kind.
func handle[In any, PtrIn interface {
	*In
	dto.Validatable
}, Out any](s *Server, fn func(context.Context, PtrIn) (*Out, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in := PtrIn(new(In))
		err := readAndDecodeBody(w, r, in, s.cfg.MaxBodyBytes)
		if err == nil {
			err = in.Validate()
		}
		if err != nil {
			var ve *dto.ValidationError
			if errors.As(err, &ve) {
				s.metrics.RecordValidationFailure(ve.Kind)
			}
			writeError(w, err)
			return
		}
		out, err := fn(r.Context(), in)
		writeJSONResponse(w, out, err)
	}
}

// readAndDecodeBody reads at most maxBytes of the request body and decodes
// JSON into input. It skips decoding for dto.EmptyReq. An empty body decodes
// as {} so that required fields are reported as missing. Errors produced by
// the request type's own decoding (validation errors) are returned as is.
func readAndDecodeBody(w http.ResponseWriter, r *http.Request, input any, maxBytes int64) error {
	if _, isEmpty := input.(*dto.EmptyReq); isEmpty {
		return nil
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBytes))
	if err2 := r.Body.Close(); err == nil {
		err = err2
	}
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return dto.PayloadTooLarge(mbe.Limit)
		}
		return dto.BadRequest("failed to read request body").Wrap(err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}
	d := json.NewDecoder(bytes.NewReader(body))
	if err := d.Decode(input); err != nil {
		var ews dto.ErrorWithStatus
		if errors.As(err, &ews) {
			return err
		}
		slog.Warn("failed to decode request body", "err", err)
		return dto.BadRequest("invalid request body").Wrap(err)
	}
	if _, err := d.Token(); !errors.Is(err, io.EOF) {
		return dto.BadRequest("unexpected data after request body")
	}
	return nil
}
