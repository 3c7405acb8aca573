package http

import (
	"net/http"

	"github.com/lingopeak/exam-backend/internal/exam"
)

// GET /sections
func ListSectionsHandler(store *exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sections, err := store.ListSections(r.Context())
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		if sections == nil {
			sections = []exam.Section{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"sections": sections})
	}
}

// GET /reading/{sectionID} — answer keys are never included.
func GetReadingSectionHandler(store *exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sectionID, err := sectionIDParam(r)
		if err != nil {
			http.Error(w, "bad section id", http.StatusBadRequest)
			return
		}
		sec, passages, err := store.ReadingSection(r.Context(), sectionID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"id":       sec.ID,
			"title":    sec.Title,
			"passages": passages,
		})
	}
}

// GET /listening/{sectionID}
func GetListeningSectionHandler(store *exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sectionID, err := sectionIDParam(r)
		if err != nil {
			http.Error(w, "bad section id", http.StatusBadRequest)
			return
		}
		sec, audios, err := store.ListeningSection(r.Context(), sectionID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"id":     sec.ID,
			"title":  sec.Title,
			"audios": audios,
		})
	}
}

// GET /speaking/{sectionID}
func GetSpeakingSectionHandler(store *exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sectionID, err := sectionIDParam(r)
		if err != nil {
			http.Error(w, "bad section id", http.StatusBadRequest)
			return
		}
		sec, err := store.Section(r.Context(), sectionID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		tasks, err := store.SpeakingTasks(r.Context(), sectionID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"id":    sec.ID,
			"title": sec.Title,
			"tasks": tasks,
		})
	}
}

// GET /writing/{sectionID}
func GetWritingSectionHandler(store *exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sectionID, err := sectionIDParam(r)
		if err != nil {
			http.Error(w, "bad section id", http.StatusBadRequest)
			return
		}
		sec, err := store.Section(r.Context(), sectionID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		tasks, err := store.WritingTasks(r.Context(), sectionID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"id":    sec.ID,
			"title": sec.Title,
			"tasks": tasks,
		})
	}
}
