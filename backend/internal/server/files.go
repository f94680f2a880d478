// Workspace upload, listing and download endpoints.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/fuxialexander/codesherpa/backend/internal/server/dto"
	v1 "github.com/fuxialexander/codesherpa/backend/internal/server/dto/v1"
	"github.com/fuxialexander/codesherpa/backend/internal/workspace"
)

// multipartOverhead is the slack allowed on top of MaxUploadBytes for
// multipart boundaries and part headers.
const multipartOverhead = 64 << 10

func fileURL(name string) string {
	return "/api/v1/files/" + url.PathEscape(name)
}

func (s *Server) listFiles(_ context.Context, _ *dto.EmptyReq) (*[]v1.FileInfo, error) {
	files, err := s.ws.List()
	if err != nil {
		return nil, dto.InternalError("failed to list workspace").Wrap(err)
	}
	out := make([]v1.FileInfo, len(files))
	for i, f := range files {
		out[i] = v1.FileInfo{Name: f.Name, Size: f.Size, ModTimeMs: f.ModTime.UnixMilli(), URL: fileURL(f.Name)}
	}
	return &out, nil
}

// handleUpload stores the multipart part named "file" in the workspace.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, dto.BadRequest("expected multipart/form-data").Wrap(err))
		return
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			writeError(w, dto.BadRequest("file is required"))
			return
		}
		if err != nil {
			writeError(w, uploadError(err, limit))
			return
		}
		if part.FormName() != "file" {
			_ = part.Close()
			continue
		}
		fi, err := s.ws.Save(part.FileName(), part, limit)
		_ = part.Close()
		if err != nil {
			writeError(w, uploadError(err, limit))
			return
		}
		s.metrics.RecordUpload(fi.Size)
		writeJSONResponse(w, &v1.UploadResp{Name: fi.Name, Size: fi.Size, URL: fileURL(fi.Name)}, nil)
		return
	}
}

func uploadError(err error, limit int64) error {
	var mbe *http.MaxBytesError
	switch {
	case errors.Is(err, workspace.ErrTooLarge), errors.As(err, &mbe):
		return dto.PayloadTooLarge(limit)
	case errors.Is(err, workspace.ErrInvalidName):
		return dto.BadRequest(err.Error())
	default:
		return dto.InternalError("failed to store upload").Wrap(err)
	}
}

// handleGetFile serves a workspace file as is.
func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	p, err := s.ws.Path(name)
	switch {
	case errors.Is(err, workspace.ErrInvalidName):
		writeError(w, dto.BadRequest(err.Error()))
		return
	case errors.Is(err, os.ErrNotExist):
		writeError(w, dto.NotFound("file "+name))
		return
	case err != nil:
		writeError(w, dto.InternalError("failed to open file").Wrap(err))
		return
	}
	f, err := os.Open(p) //nolint:gosec // p is resolved inside the workspace by Path.
	if err != nil {
		writeError(w, dto.InternalError("failed to open file").Wrap(err))
		return
	}
	defer func() { _ = f.Close() }()
	st, err := f.Stat()
	if err != nil {
		writeError(w, dto.InternalError("failed to stat file").Wrap(err))
		return
	}
	http.ServeContent(w, r, name, st.ModTime(), f)
}
