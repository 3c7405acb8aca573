package http

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lingopeak/exam-backend/internal/exam"
)

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeDomainError maps a domain error to its status. Validation errors
// keep their message (offending id included); internal failures are
// replaced with a generic body.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	code := exam.HTTPStatus(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		msg = "internal server error"
	}
	writeJSON(w, code, map[string]string{"error": msg})
}

func sectionIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "sectionID"), 10, 64)
}
