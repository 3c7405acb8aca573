package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path"

	"github.com/google/uuid"

	"github.com/lingopeak/exam-backend/internal/exam"
	"github.com/lingopeak/exam-backend/internal/storage"
)

// POST /reading — JSON body: { "title": ..., "passages": [ { "title",
// "content", "questions": [...] } ] }
func CreateReadingSectionHandler(store *exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Title    string              `json:"title"`
			Passages []exam.PassageInput `json:"passages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.Title == "" {
			http.Error(w, "missing title", http.StatusBadRequest)
			return
		}
		if len(req.Passages) == 0 {
			http.Error(w, "no passages provided", http.StatusBadRequest)
			return
		}
		for _, p := range req.Passages {
			if p.Content == "" {
				http.Error(w, "missing content in passage", http.StatusBadRequest)
				return
			}
		}
		sec, err := store.CreateReadingSection(r.Context(), req.Title, req.Passages)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, sec)
	}
}

// POST /listening — multipart: "sectionData" JSON plus audioFiles[i] /
// photoFiles[i] per audio.
func CreateListeningSectionHandler(store *exam.Store, bs storage.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(256 << 20); err != nil {
			http.Error(w, "multipart form required", http.StatusBadRequest)
			return
		}
		var data struct {
			Title  string            `json:"title"`
			Audios []exam.AudioInput `json:"audios"`
		}
		if err := json.Unmarshal([]byte(r.FormValue("sectionData")), &data); err != nil {
			http.Error(w, "invalid JSON in sectionData", http.StatusBadRequest)
			return
		}
		if data.Title == "" {
			http.Error(w, "missing title", http.StatusBadRequest)
			return
		}
		if len(data.Audios) == 0 {
			http.Error(w, "no audios provided", http.StatusBadRequest)
			return
		}
		for i := range data.Audios {
			if data.Audios[i].Title == "" {
				http.Error(w, fmt.Sprintf("missing title for audio %d", i), http.StatusBadRequest)
				return
			}
			audioURL, err := saveFormFile(r, bs, fmt.Sprintf("audioFiles[%d]", i), "listening_audios")
			if err != nil || audioURL == "" {
				http.Error(w, fmt.Sprintf("missing audio file for audio %d", i), http.StatusBadRequest)
				return
			}
			data.Audios[i].AudioURL = audioURL
			// photo optional
			photoURL, _ := saveFormFile(r, bs, fmt.Sprintf("photoFiles[%d]", i), "listening_photos")
			data.Audios[i].PhotoURL = photoURL
		}
		sec, err := store.CreateListeningSection(r.Context(), data.Title, data.Audios)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, sec)
	}
}

// POST /speaking — multipart: "sectionData" JSON with task1..task4, audio
// uploads for tasks 2-4.
func CreateSpeakingSectionHandler(store *exam.Store, bs storage.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(256 << 20); err != nil {
			http.Error(w, "multipart form required", http.StatusBadRequest)
			return
		}
		raw := map[string]json.RawMessage{}
		if err := json.Unmarshal([]byte(r.FormValue("sectionData")), &raw); err != nil {
			http.Error(w, "invalid JSON in sectionData", http.StatusBadRequest)
			return
		}
		var title string
		_ = json.Unmarshal(raw["title"], &title)
		if title == "" {
			http.Error(w, "missing title", http.StatusBadRequest)
			return
		}

		var tasks []exam.TaskInput
		for n := 1; n <= 4; n++ {
			rawTask, ok := raw[fmt.Sprintf("task%d", n)]
			if !ok {
				http.Error(w, "missing one or more tasks", http.StatusBadRequest)
				return
			}
			var t exam.TaskInput
			if err := json.Unmarshal(rawTask, &t); err != nil || t.Prompt == "" {
				http.Error(w, fmt.Sprintf("invalid task%d", n), http.StatusBadRequest)
				return
			}
			t.TaskNumber = n
			if n >= 2 {
				audioURL, err := saveFormFile(r, bs, fmt.Sprintf("task%dAudio", n), "speaking_audios")
				if err != nil || audioURL == "" {
					http.Error(w, fmt.Sprintf("missing task%dAudio", n), http.StatusBadRequest)
					return
				}
				t.AudioURL = audioURL
			}
			tasks = append(tasks, t)
		}
		sec, err := store.CreateSpeakingSection(r.Context(), title, tasks)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, sec)
	}
}

// POST /writing — multipart: "sectionData" JSON with task1 (audio upload)
// and task2.
func CreateWritingSectionHandler(store *exam.Store, bs storage.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(256 << 20); err != nil {
			http.Error(w, "multipart form required", http.StatusBadRequest)
			return
		}
		raw := map[string]json.RawMessage{}
		if err := json.Unmarshal([]byte(r.FormValue("sectionData")), &raw); err != nil {
			http.Error(w, "invalid JSON in sectionData", http.StatusBadRequest)
			return
		}
		var title string
		_ = json.Unmarshal(raw["title"], &title)
		if title == "" {
			http.Error(w, "missing title", http.StatusBadRequest)
			return
		}

		var tasks []exam.TaskInput
		for n := 1; n <= 2; n++ {
			rawTask, ok := raw[fmt.Sprintf("task%d", n)]
			if !ok {
				http.Error(w, "missing one or more tasks", http.StatusBadRequest)
				return
			}
			var t exam.TaskInput
			if err := json.Unmarshal(rawTask, &t); err != nil || t.Prompt == "" || t.Passage == "" {
				http.Error(w, fmt.Sprintf("invalid task%d", n), http.StatusBadRequest)
				return
			}
			t.TaskNumber = n
			if n == 1 {
				audioURL, err := saveFormFile(r, bs, "task1Audio", "writing_audios")
				if err != nil || audioURL == "" {
					http.Error(w, "missing task1Audio", http.StatusBadRequest)
					return
				}
				t.AudioURL = audioURL
			}
			tasks = append(tasks, t)
		}
		sec, err := store.CreateWritingSection(r.Context(), title, tasks)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, sec)
	}
}

// DELETE /sections/{sectionID} — cascades to containers, questions and
// answers at the schema level.
func DeleteSectionHandler(store *exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sectionID, err := sectionIDParam(r)
		if err != nil {
			http.Error(w, "bad section id", http.StatusBadRequest)
			return
		}
		if err := store.DeleteSection(r.Context(), sectionID); err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "section deleted"})
	}
}

// saveFormFile stores an uploaded file under subfolder and returns its
// asset URL, or "" when the field is absent.
func saveFormFile(r *http.Request, bs storage.BlobStore, field, subfolder string) (string, error) {
	f, hdr, err := r.FormFile(field)
	if err != nil {
		return "", nil
	}
	defer f.Close()
	key := subfolder + "/" + uuid.NewString() + path.Ext(hdr.Filename)
	if _, err := bs.Put(key, f); err != nil {
		return "", err
	}
	return "/assets/" + key, nil
}
