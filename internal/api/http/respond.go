package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/studyhall/examd/internal/exam"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the exam error taxonomy onto HTTP status codes. Every
// core error is request-scoped; nothing here is allowed to take the
// process down.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, exam.ErrNotAssigned):
		status = http.StatusForbidden
	case errors.Is(err, exam.ErrTestAlreadyCompleted),
		errors.Is(err, exam.ErrSectionAlreadyCompleted):
		status = http.StatusConflict
	case errors.Is(err, exam.ErrSectionNotActive),
		errors.Is(err, exam.ErrInvalidResponse):
		status = http.StatusBadRequest
	case exam.NotFound(err):
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
