package server

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/livetemplate/syntaxstudio/internal/pane"
	"github.com/livetemplate/syntaxstudio/internal/preview"
)

// maxRequestBodySize limits a single buffer upload (1MB).
const maxRequestBodySize = 1 << 20

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.Document(r.Context())
	if err != nil {
		log.Printf("[API] Failed to load document: %v", err)
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handlePutPane(w http.ResponseWriter, r *http.Request) {
	kind, err := pane.ParseKind(r.PathValue("pane"))
	if err != nil {
		writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeJSONError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	if err := s.ApplyEdit(r.Context(), kind, string(body)); err != nil {
		log.Printf("[API] Failed to save %s: %v", kind, err)
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	doc, err := s.Document(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleResetDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.Reset(r.Context()); err != nil {
		log.Printf("[API] Failed to reset document: %v", err)
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	doc, err := s.Document(r.Context())
	if err != nil {
		log.Printf("[API] Failed to load document: %v", err)
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", preview.ContentSecurityPolicy())
	io.WriteString(w, preview.Compose(doc))
}
