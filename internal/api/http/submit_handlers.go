package http

import (
	"io"
	"net/http"

	auth "github.com/lingopeak/exam-backend/internal/auth/middleware"
	"github.com/lingopeak/exam-backend/internal/exam"
)

// POST /reading/{sectionID}/submit
func SubmitReadingHandler(store *exam.Store) http.HandlerFunc {
	return submitAnswersHandler(store, exam.SectionReading)
}

// POST /listening/{sectionID}/submit
func SubmitListeningHandler(store *exam.Store) http.HandlerFunc {
	return submitAnswersHandler(store, exam.SectionListening)
}

func submitAnswersHandler(store *exam.Store, sectionType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sectionID, err := sectionIDParam(r)
		if err != nil {
			http.Error(w, "bad section id", http.StatusBadRequest)
			return
		}
		userID := auth.SubjectFromContext(r.Context())
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}
		score, err := store.SubmitAnswers(r.Context(), userID, sectionID, sectionType, body)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"section_id": sectionID,
			"score":      score,
		})
	}
}
