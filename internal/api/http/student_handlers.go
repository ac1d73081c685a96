package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	auth "github.com/studyhall/examd/internal/auth/middleware"
	"github.com/studyhall/examd/internal/exam"
)

var validate = validator.New()

func StartTestHandler(svc *exam.AttemptService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		student := auth.SubjectFromContext(r.Context())
		res, err := svc.StartTest(r.Context(), student, chi.URLParam(r, "testID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func StartSectionHandler(svc *exam.SectionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		student := auth.SubjectFromContext(r.Context())
		res, err := svc.StartSection(r.Context(), student,
			chi.URLParam(r, "testID"), chi.URLParam(r, "sectionID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func SectionQuestionsHandler(svc *exam.SectionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		student := auth.SubjectFromContext(r.Context())
		view, err := svc.SectionQuestions(r.Context(), student,
			chi.URLParam(r, "testID"), chi.URLParam(r, "sectionID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

type submitAnswerRequest struct {
	TestAttemptID string `json:"test_attempt_id" validate:"required"`
	QuestionID    string `json:"question_id" validate:"required"`
	ChoiceID      string `json:"choice_id"`
	TextAnswer    string `json:"text_answer"`
}

func (req submitAnswerRequest) response() (exam.Response, error) {
	switch {
	case req.ChoiceID != "" && req.TextAnswer != "":
		return exam.Response{}, exam.ErrInvalidResponse
	case req.ChoiceID != "":
		return exam.ChoiceResponse(req.ChoiceID), nil
	case req.TextAnswer != "":
		return exam.TextResponse(req.TextAnswer), nil
	default:
		return exam.Response{}, exam.ErrInvalidResponse
	}
}

func SubmitAnswerHandler(svc *exam.SectionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitAnswerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, exam.ErrInvalidResponse)
			return
		}
		resp, err := req.response()
		if err != nil {
			writeError(w, err)
			return
		}
		student := auth.SubjectFromContext(r.Context())
		correct, err := svc.RecordAnswer(r.Context(), student, req.TestAttemptID, req.QuestionID, resp)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"is_correct": correct})
	}
}

type bulkAnswerItem struct {
	QuestionID string `json:"question_id" validate:"required"`
	ChoiceID   string `json:"choice_id"`
	TextAnswer string `json:"text_answer"`
}

type bulkAnswersRequest struct {
	Answers []bulkAnswerItem `json:"answers" validate:"required,min=1,dive"`
}

func SubmitAnswersBulkHandler(svc *exam.SectionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bulkAnswersRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, exam.ErrInvalidResponse)
			return
		}
		subs := make([]exam.AnswerSubmission, 0, len(req.Answers))
		for _, item := range req.Answers {
			// A choice wins over text; an item with neither is recorded
			// as an empty response and simply grades false.
			resp := exam.EmptyResponse()
			if item.ChoiceID != "" {
				resp = exam.ChoiceResponse(item.ChoiceID)
			} else if item.TextAnswer != "" {
				resp = exam.TextResponse(item.TextAnswer)
			}
			subs = append(subs, exam.AnswerSubmission{QuestionID: item.QuestionID, Response: resp})
		}
		student := auth.SubjectFromContext(r.Context())
		outcomes, err := svc.RecordAnswersBulk(r.Context(), student,
			chi.URLParam(r, "testID"), chi.URLParam(r, "sectionID"), subs)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"saved": outcomes})
	}
}

func CompleteSectionHandler(svc *exam.SectionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		student := auth.SubjectFromContext(r.Context())
		res, err := svc.CompleteSection(r.Context(), student,
			chi.URLParam(r, "testID"), chi.URLParam(r, "sectionID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func CompleteTestHandler(svc *exam.AttemptService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		student := auth.SubjectFromContext(r.Context())
		totals, err := svc.CompleteTest(r.Context(), student, chi.URLParam(r, "testID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, totals)
	}
}

func ResultsHandler(p *exam.Projector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		student := auth.SubjectFromContext(r.Context())
		res, err := p.Results(r.Context(), student, chi.URLParam(r, "testID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func ReviewHandler(p *exam.Projector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		student := auth.SubjectFromContext(r.Context())
		res, err := p.Review(r.Context(), student, chi.URLParam(r, "testID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
