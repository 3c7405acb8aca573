package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	auth "github.com/lingopeak/exam-backend/internal/auth/middleware"
	"github.com/lingopeak/exam-backend/internal/exam"
	"github.com/lingopeak/exam-backend/internal/rbac"
	"github.com/lingopeak/exam-backend/internal/storage"
)

var checker = rbac.NewChecker(nil)

// POST /speaking/{sectionID}/submit — multipart form with one audio field
// per task number (task{N}Recording).
func SubmitSpeakingHandler(store *exam.Store, bs storage.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sectionID, err := sectionIDParam(r)
		if err != nil {
			http.Error(w, "bad section id", http.StatusBadRequest)
			return
		}
		if err := r.ParseMultipartForm(64 << 20); err != nil {
			http.Error(w, "multipart form required", http.StatusBadRequest)
			return
		}
		userID := auth.SubjectFromContext(r.Context())

		tasks, err := store.SpeakingTasks(r.Context(), sectionID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		recordings := map[int]exam.Recording{}
		for _, t := range tasks {
			f, hdr, err := r.FormFile(fmt.Sprintf("task%dRecording", t.TaskNumber))
			if err != nil {
				continue // absence is reported by the workflow as MissingRecording
			}
			defer f.Close()
			recordings[t.TaskNumber] = exam.Recording{Name: hdr.Filename, Data: f}
		}
		if err := store.SubmitSpeaking(r.Context(), bs, userID, sectionID, recordings); err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "responses submitted"})
	}
}

// POST /writing/{sectionID}/submit — body { "essays": { "<task_number>": "text" } }.
func SubmitWritingHandler(store *exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sectionID, err := sectionIDParam(r)
		if err != nil {
			http.Error(w, "bad section id", http.StatusBadRequest)
			return
		}
		var req struct {
			Essays map[string]string `json:"essays"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Essays == nil {
			http.Error(w, "body must contain an essays mapping", http.StatusBadRequest)
			return
		}
		essays := map[int]string{}
		for k, v := range req.Essays {
			n, err := strconv.Atoi(strings.TrimSpace(k))
			if err != nil {
				http.Error(w, "task numbers must be numeric", http.StatusBadRequest)
				return
			}
			essays[n] = v
		}
		userID := auth.SubjectFromContext(r.Context())
		if err := store.SubmitWriting(r.Context(), userID, sectionID, essays); err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "essays submitted"})
	}
}

// reviewSubject resolves whose responses are being read or graded.
// Students are always scoped to themselves; a caller with review:view-any
// may name a student via ?user_id=.
func reviewSubject(r *http.Request) (int64, error) {
	self := auth.SubjectFromContext(r.Context())
	param := r.URL.Query().Get("user_id")
	if param == "" {
		return self, nil
	}
	if !checker.Has(rbac.RoleFromContext(r.Context()), "review:view-any") {
		return self, nil
	}
	return strconv.ParseInt(param, 10, 64)
}

// GET /speaking/{sectionID}/review
func GetSpeakingReviewHandler(store *exam.Store) http.HandlerFunc {
	return getReviewHandler(store.SpeakingReview)
}

// GET /writing/{sectionID}/review
func GetWritingReviewHandler(store *exam.Store) http.HandlerFunc {
	return getReviewHandler(store.WritingReview)
}

func getReviewHandler(read func(ctx context.Context, userID, sectionID int64) ([]exam.TaskReview, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sectionID, err := sectionIDParam(r)
		if err != nil {
			http.Error(w, "bad section id", http.StatusBadRequest)
			return
		}
		userID, err := reviewSubject(r)
		if err != nil {
			http.Error(w, "bad user_id", http.StatusBadRequest)
			return
		}
		tasks, err := read(r.Context(), userID, sectionID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"section_id": sectionID,
			"tasks":      tasks,
		})
	}
}

// POST /speaking/{sectionID}/review?user_id=N — body: array of
// {task_id, score, feedback}, one per task in the section.
func PostSpeakingReviewHandler(store *exam.Store) http.HandlerFunc {
	return postReviewHandler(store.SubmitSpeakingReview)
}

// POST /writing/{sectionID}/review?user_id=N
func PostWritingReviewHandler(store *exam.Store) http.HandlerFunc {
	return postReviewHandler(store.SubmitWritingReview)
}

func postReviewHandler(apply func(ctx context.Context, reviewerID, studentID, sectionID int64, items []exam.ReviewItem) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sectionID, err := sectionIDParam(r)
		if err != nil {
			http.Error(w, "bad section id", http.StatusBadRequest)
			return
		}
		studentID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
		if err != nil {
			http.Error(w, "user_id query parameter required", http.StatusBadRequest)
			return
		}
		var items []exam.ReviewItem
		if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
			http.Error(w, "body must be an array of reviews", http.StatusBadRequest)
			return
		}
		reviewerID := auth.SubjectFromContext(r.Context())
		if err := apply(r.Context(), reviewerID, studentID, sectionID, items); err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "review recorded"})
	}
}
