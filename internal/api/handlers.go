package api

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/sells-group/pipemap/internal/dataset"
)

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Updated int    `json:"updated,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"status":"error","message":"encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, statusResponse{Status: "error", Message: msg})
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// viewerConfig tells the map page which attributes to edit.
type viewerConfig struct {
	IDField   string `json:"id_field"`
	YearField string `json:"year_field"`
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, viewerConfig{IDField: s.opts.IDField, YearField: s.opts.YearField})
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	data, err := s.ds.GeoJSON(r.Context())
	if err != nil {
		s.log.Error("data: load failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load dataset")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err != nil {
		datasetUpdates.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, "Request body too large or unreadable")
		return
	}

	req, err := dataset.DecodeUpdateRequest(body)
	if err == nil {
		var n int
		n, err = s.ds.Update(r.Context(), req)
		if err == nil {
			datasetUpdates.WithLabelValues("success").Inc()
			writeJSON(w, http.StatusOK, statusResponse{Status: "success", Updated: n})
			return
		}
	}

	switch {
	case dataset.IsInvalid(err):
		datasetUpdates.WithLabelValues("invalid").Inc()
		msg := "Invalid JSON body"
		if errors.Is(err, dataset.ErrMissingFields) {
			msg = dataset.MsgMissingFields
		}
		writeError(w, http.StatusBadRequest, msg)
	case dataset.IsNotFound(err):
		datasetUpdates.WithLabelValues("not_found").Inc()
		writeError(w, http.StatusNotFound, dataset.MsgNotFound)
	default:
		datasetUpdates.WithLabelValues("error").Inc()
		s.log.Error("update: failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to update dataset")
	}
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.ds.Archive(r.Context(), &buf); err != nil {
		s.log.Error("download: archive failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to build archive")
		return
	}
	archiveBytes.Observe(float64(buf.Len()))

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": s.ds.ArchiveName(),
	}))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}
