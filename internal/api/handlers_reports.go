package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dgallion1/docground/internal/report"
)

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		writeError(w, http.StatusServiceUnavailable, ErrKindUnavailable, "reports disabled")
		return
	}
	rep, err := s.reports.Load(chi.URLParam(r, "requestID"))
	if err != nil {
		s.writeReportError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleReportBundle(w http.ResponseWriter, r *http.Request) {
	if s.reports == nil {
		writeError(w, http.StatusServiceUnavailable, ErrKindUnavailable, "reports disabled")
		return
	}
	id := chi.URLParam(r, "requestID")
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.zip"`, id))
	// WriteZip fails before writing anything for unknown IDs.
	if err := s.reports.WriteZip(id, w); err != nil {
		if errors.Is(err, report.ErrNotFound) {
			w.Header().Del("Content-Disposition")
		}
		s.writeReportError(w, err)
	}
}

func (s *Server) writeReportError(w http.ResponseWriter, err error) {
	if errors.Is(err, report.ErrNotFound) {
		writeError(w, http.StatusNotFound, ErrKindNotFound, "report not found")
		return
	}
	s.log.Error("report read failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrKindInternal, "report read failed")
}
