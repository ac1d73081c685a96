package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/studyhall/examd/internal/exam"
)

type uploadTestRequest struct {
	ID           string         `json:"id"`
	Title        string         `json:"title" validate:"required"`
	PassingMarks int            `json:"passing_marks" validate:"min=0"`
	Sections     []uploadSection `json:"sections" validate:"required,min=1,dive"`
}

type uploadSection struct {
	ID           string          `json:"id"`
	Name         string          `json:"name" validate:"required"`
	TimeLimitMin int             `json:"time_limit_min" validate:"min=0"`
	Order        int             `json:"order"`
	Questions    []uploadQuestion `json:"questions" validate:"dive"`
}

type uploadQuestion struct {
	ID       string         `json:"id"`
	Type     string         `json:"type" validate:"required,oneof=mcq free_form"`
	Text     string         `json:"text" validate:"required"`
	Marks    int            `json:"marks" validate:"min=0"`
	Order    int            `json:"order"`
	Choices  []uploadChoice `json:"choices" validate:"dive"`
	Accepted []string       `json:"accepted_answers"`
}

type uploadChoice struct {
	ID        string `json:"id"`
	Label     string `json:"label" validate:"required"`
	Text      string `json:"text" validate:"required"`
	IsCorrect bool   `json:"is_correct"`
}

func (req uploadTestRequest) toTest() exam.Test {
	test := exam.Test{
		ID:           orUUID(req.ID),
		Title:        req.Title,
		PassingMarks: req.PassingMarks,
	}
	for i, us := range req.Sections {
		sec := exam.Section{
			ID:           orUUID(us.ID),
			TestID:       test.ID,
			Name:         us.Name,
			TimeLimitMin: us.TimeLimitMin,
			Order:        orIndex(us.Order, i),
		}
		for j, uq := range us.Questions {
			q := exam.Question{
				ID:        orUUID(uq.ID),
				SectionID: sec.ID,
				Type:      uq.Type,
				Text:      uq.Text,
				Marks:     uq.Marks,
				Order:     orIndex(uq.Order, j),
				Accepted:  uq.Accepted,
			}
			for _, uc := range uq.Choices {
				q.Choices = append(q.Choices, exam.Choice{
					ID:        orUUID(uc.ID),
					Label:     uc.Label,
					Text:      uc.Text,
					IsCorrect: uc.IsCorrect,
				})
			}
			sec.Questions = append(sec.Questions, q)
			test.TotalMarks += q.Marks
		}
		test.Sections = append(test.Sections, sec)
	}
	return test
}

func orUUID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

func orIndex(order, i int) int {
	if order != 0 {
		return order
	}
	return i + 1
}

// UploadTestHandler ingests a full test definition. Re-uploading an id
// replaces the stored definition; live attempts pick up the new question
// set on their next operation.
func UploadTestHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req uploadTestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		test := req.toTest()
		if err := store.PutTest(r.Context(), test); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"test_id":     test.ID,
			"total_marks": test.TotalMarks,
		})
	}
}

// ExpireAttemptHandler serves the expiry timer and proctor tooling.
func ExpireAttemptHandler(svc *exam.AttemptService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.ExpireAttempt(r.Context(), chi.URLParam(r, "attemptID")); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": exam.StatusTimeout})
	}
}
