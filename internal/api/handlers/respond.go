package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/SonianW/MetaPrompter/internal/catalog"
	"github.com/SonianW/MetaPrompter/internal/prompt"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"status": "error", "message": msg})
}

// writeServiceError maps catalog errors onto status codes.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *catalog.ValidationError
	switch {
	case errors.As(err, &verr):
		writeValidation(w, verr.Fields)
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, "prompt not found")
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// outcomeStatus maps a failed lifecycle result onto a status code.
func outcomeStatus(k prompt.Kind) int {
	switch k {
	case prompt.KindUnavailable:
		return http.StatusServiceUnavailable
	case prompt.KindTemplateNotFound:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

// writeOutcome writes the success envelope with payload merged in, or the
// error envelope carrying the lifecycle message.
func writeOutcome(w http.ResponseWriter, res prompt.Result, status int, message string, payload map[string]interface{}) {
	if !res.OK() {
		writeJSON(w, outcomeStatus(res.Kind), map[string]interface{}{
			"status":  "error",
			"message": res.Text,
			"kind":    res.Kind.String(),
		})
		return
	}

	body := map[string]interface{}{"status": "success", "message": message}
	for k, v := range payload {
		body[k] = v
	}
	writeJSON(w, status, body)
}

// decode reads a JSON body. An empty body leaves dst untouched.
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeError(w, http.StatusBadRequest, "invalid request body")
	return false
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid prompt ID")
		return uuid.Nil, false
	}
	return id, true
}

// queryID parses an optional UUID query parameter.
func queryID(w http.ResponseWriter, r *http.Request, name string) (*uuid.UUID, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return nil, false
	}
	return &id, true
}

func queryInt(r *http.Request, name string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(name))
	return n
}
