package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/dgallion1/docground/internal/document"
	"github.com/dgallion1/docground/internal/parser"
	"github.com/dgallion1/docground/internal/pipeline"
)

// upload is a parsed extraction form: the document and its template.
type upload struct {
	filename string
	data     []byte
	template document.Template
}

// readUpload parses the multipart form shared by /api/extract and
// /api/jobs. On failure it has already written the error response.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*upload, bool) {
	// Extra 1MB for form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, ErrKindBadRequest, "invalid multipart form: "+err.Error())
		return nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrKindBadRequest, "file is required: "+err.Error())
		return nil, false
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrKindInternal, "failed to read file")
		return nil, false
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, ErrKindTooLarge,
			fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes))
		return nil, false
	}

	raw, err := templateField(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrKindBadTemplate, err.Error())
		return nil, false
	}
	tpl, err := document.ParseTemplate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrKindBadTemplate, err.Error())
		return nil, false
	}
	return &upload{filename: filename, data: data, template: tpl}, true
}

// templateField returns the template JSON from a form value or a file part.
func templateField(r *http.Request) ([]byte, error) {
	if v := r.FormValue("template"); v != "" {
		return []byte(v), nil
	}
	f, _, err := r.FormFile("template")
	if err != nil {
		return nil, eris.New("template is required")
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, 1<<20))
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	up, ok := s.readUpload(w, r)
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	if !ok {
		return
	}

	resp, err := s.processor.Process(r.Context(), pipeline.Request{
		RequestID: pipeline.NewRequestID(),
		Filename:  up.filename,
		Data:      up.data,
		Template:  up.template,
	})
	if err != nil {
		s.writeProcessError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeProcessError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, document.ErrInvalidTemplate):
		writeError(w, http.StatusBadRequest, ErrKindBadTemplate, err.Error())
	case errors.Is(err, parser.ErrUnsupported):
		writeError(w, http.StatusUnsupportedMediaType, ErrKindUnsupported, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, ErrKindUnavailable, "request cancelled")
	default:
		s.log.Error("extraction failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, ErrKindInternal, "extraction failed")
	}
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
