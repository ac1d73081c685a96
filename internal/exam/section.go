package exam

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/studyhall/examd/internal/grading"
)

// SectionService owns the lifecycle of a section within a test attempt:
// start, answer recording, completion. Every operation reloads state from
// the store; nothing is cached between calls.
type SectionService struct {
	store Store
	now   func() time.Time
}

func NewSectionService(store Store, now func() time.Time) *SectionService {
	if now == nil {
		now = time.Now
	}
	return &SectionService{store: store, now: now}
}

func gradingView(q Question) grading.Q {
	gq := grading.Q{Type: q.Type, Accepted: q.Accepted}
	for _, c := range q.Choices {
		gq.Choices = append(gq.Choices, grading.Choice{ID: c.ID, Correct: c.IsCorrect})
	}
	return gq
}

type SectionStart struct {
	SectionAttemptID string    `json:"section_attempt_id"`
	StartedAt        time.Time `json:"started_at"`
	TimeLimitMin     int       `json:"time_limit_min"`
}

// StartSection creates the section attempt on first call and is a no-op on
// repeated calls while the section is in progress. A completed section can
// never be restarted.
func (s *SectionService) StartSection(ctx context.Context, studentID, testID, sectionID string) (SectionStart, error) {
	test, err := s.store.GetTest(ctx, testID)
	if err != nil {
		return SectionStart{}, err
	}
	section, ok := test.SectionByID(sectionID)
	if !ok {
		return SectionStart{}, ErrSectionNotFound
	}

	var out SectionStart
	err = s.store.Tx(ctx, func(st Store) error {
		attempt, err := st.FindTestAttempt(ctx, testID, studentID)
		if err != nil {
			return err
		}
		if terminal(attempt.Status) {
			return ErrTestAlreadyCompleted
		}
		if attempt.Status != StatusInProgress {
			return ErrSectionNotActive
		}

		sa, created, err := st.GetOrCreateSectionAttempt(ctx, SectionAttempt{
			TestAttemptID: attempt.ID,
			SectionID:     section.ID,
			Status:        StatusInProgress,
			StartedAt:     s.now(),
			TotalMarks:    section.MaxMarks(),
		})
		if err != nil {
			return err
		}
		if !created && sa.Status == StatusCompleted {
			return ErrSectionAlreadyCompleted
		}

		attempt.CurrentSectionID = section.ID
		if err := st.UpdateTestAttempt(ctx, attempt); err != nil {
			return err
		}
		out = SectionStart{
			SectionAttemptID: sa.ID,
			StartedAt:        sa.StartedAt,
			TimeLimitMin:     section.TimeLimitMin,
		}
		return nil
	})
	return out, err
}

// RecordAnswer grades and upserts a single answer. A second submission for
// the same question overwrites the first; the graded correctness is
// returned either way.
func (s *SectionService) RecordAnswer(ctx context.Context, studentID, attemptID, questionID string, resp Response) (bool, error) {
	var correct bool
	err := s.store.Tx(ctx, func(st Store) error {
		attempt, err := st.GetTestAttempt(ctx, attemptID)
		if err != nil {
			return err
		}
		if attempt.StudentID != studentID {
			return ErrAttemptNotFound
		}
		test, err := st.GetTest(ctx, attempt.TestID)
		if err != nil {
			return err
		}
		correct, err = s.recordOne(ctx, st, attempt, test, questionID, resp)
		return err
	})
	return correct, err
}

// recordOne holds the shared answer path for single and bulk submission.
// Caller supplies the enclosing transaction.
func (s *SectionService) recordOne(ctx context.Context, st Store, attempt TestAttempt, test Test, questionID string, resp Response) (bool, error) {
	if terminal(attempt.Status) {
		return false, ErrTestAlreadyCompleted
	}
	question, section, ok := test.QuestionByID(questionID)
	if !ok {
		return false, ErrQuestionNotFound
	}
	sa, err := st.GetSectionAttempt(ctx, attempt.ID, section.ID)
	if err != nil {
		if NotFound(err) {
			return false, ErrSectionNotActive
		}
		return false, err
	}
	if sa.Status != StatusInProgress {
		return false, ErrSectionNotActive
	}

	// A choice id that does not belong to the question degrades to an
	// empty response: graded false, never a request failure.
	if id, isChoice := resp.ChoiceID(); isChoice {
		if _, ok := question.ChoiceByID(id); !ok {
			resp = EmptyResponse()
		}
	}

	choiceID, _ := resp.ChoiceID()
	text, _ := resp.Text()
	correct := grading.Grade(gradingView(question), choiceID, text)

	_, err = st.UpsertAnswer(ctx, Answer{
		TestAttemptID:    attempt.ID,
		SectionAttemptID: sa.ID,
		QuestionID:       question.ID,
		Response:         resp,
		IsCorrect:        correct,
		AnsweredAt:       s.now(),
	})
	return correct, err
}

type AnswerSubmission struct {
	QuestionID string   `json:"question_id"`
	Response   Response `json:"response"`
}

type AnswerOutcome struct {
	QuestionID string `json:"question_id"`
	Saved      bool   `json:"saved"`
	IsCorrect  bool   `json:"is_correct"`
	Error      string `json:"error,omitempty"`
}

// RecordAnswersBulk applies RecordAnswer per item. A malformed item
// (unknown question, inactive section) is reported in its outcome and does
// not abort the batch.
func (s *SectionService) RecordAnswersBulk(ctx context.Context, studentID, testID, sectionID string, subs []AnswerSubmission) ([]AnswerOutcome, error) {
	outcomes := make([]AnswerOutcome, 0, len(subs))
	err := s.store.Tx(ctx, func(st Store) error {
		attempt, err := st.FindTestAttempt(ctx, testID, studentID)
		if err != nil {
			return err
		}
		if terminal(attempt.Status) {
			return ErrTestAlreadyCompleted
		}
		test, err := st.GetTest(ctx, attempt.TestID)
		if err != nil {
			return err
		}
		if _, ok := test.SectionByID(sectionID); !ok {
			return ErrSectionNotFound
		}
		for _, sub := range subs {
			out := AnswerOutcome{QuestionID: sub.QuestionID}
			correct, err := s.recordOne(ctx, st, attempt, test, sub.QuestionID, sub.Response)
			switch {
			case err == nil:
				out.Saved = true
				out.IsCorrect = correct
			case NotFound(err), errors.Is(err, ErrSectionNotActive):
				out.Error = err.Error()
			default:
				return err // storage failure aborts the batch
			}
			outcomes = append(outcomes, out)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcomes, nil
}

type SectionResult struct {
	SectionID    string   `json:"section_id"`
	Score        int      `json:"score"`
	TotalMarks   int      `json:"total_marks"`
	TimeTakenSec int      `json:"time_taken_sec"`
	NextSection  *Section `json:"next_section,omitempty"`
}

// CompleteSection finalizes the section attempt: score and max marks are
// recomputed from stored answers and the current question set, so a
// question edited mid-attempt is reflected. Returns the next section in
// order without starting it.
func (s *SectionService) CompleteSection(ctx context.Context, studentID, testID, sectionID string) (SectionResult, error) {
	var out SectionResult
	err := s.store.Tx(ctx, func(st Store) error {
		attempt, err := st.FindTestAttempt(ctx, testID, studentID)
		if err != nil {
			return err
		}
		test, err := st.GetTest(ctx, attempt.TestID)
		if err != nil {
			return err
		}
		section, ok := test.SectionByID(sectionID)
		if !ok {
			return ErrSectionNotFound
		}
		sa, err := st.GetSectionAttempt(ctx, attempt.ID, section.ID)
		if err != nil {
			if NotFound(err) {
				return ErrSectionNotActive
			}
			return err
		}
		if sa.Status == StatusCompleted {
			return ErrSectionAlreadyCompleted
		}
		if sa.Status != StatusInProgress {
			return ErrSectionNotActive
		}

		answers, err := st.ListSectionAnswers(ctx, sa.ID)
		if err != nil {
			return err
		}
		score := 0
		for _, ans := range answers {
			if !ans.IsCorrect {
				continue
			}
			if q, _, ok := test.QuestionByID(ans.QuestionID); ok {
				score += q.Marks
			}
		}

		now := s.now()
		taken := int(now.Sub(sa.StartedAt).Seconds())
		if taken < 0 {
			taken = 0 // clock skew
		}
		sa.Score = score
		sa.TotalMarks = section.MaxMarks()
		sa.Status = StatusCompleted
		sa.CompletedAt = &now
		sa.TimeTakenSec = taken
		if err := st.UpdateSectionAttempt(ctx, sa); err != nil {
			return fmt.Errorf("complete section %s: %w", section.ID, err)
		}

		out = SectionResult{
			SectionID:    section.ID,
			Score:        sa.Score,
			TotalMarks:   sa.TotalMarks,
			TimeTakenSec: sa.TimeTakenSec,
		}
		if next, ok := test.NextSection(section); ok {
			next.Questions = nil
			out.NextSection = &next
			attempt.CurrentSectionID = next.ID
			return st.UpdateTestAttempt(ctx, attempt)
		}
		return nil
	})
	return out, err
}

type StudentChoice struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Text  string `json:"text"`
}

type StudentQuestion struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Text       string          `json:"text"`
	Marks      int             `json:"marks"`
	Order      int             `json:"order"`
	Choices    []StudentChoice `json:"choices,omitempty"`
	Response   Response        `json:"response"`
	IsAnswered bool            `json:"is_answered"`
}

type SectionQuestionsView struct {
	SectionID    string            `json:"section_id"`
	Name         string            `json:"name"`
	TimeLimitMin int               `json:"time_limit_min"`
	StartedAt    time.Time         `json:"started_at"`
	Questions    []StudentQuestion `json:"questions"`
}

// SectionQuestions serves the active-attempt question payload: choices
// without correctness flags, prior responses echoed back.
func (s *SectionService) SectionQuestions(ctx context.Context, studentID, testID, sectionID string) (SectionQuestionsView, error) {
	test, err := s.store.GetTest(ctx, testID)
	if err != nil {
		return SectionQuestionsView{}, err
	}
	section, ok := test.SectionByID(sectionID)
	if !ok {
		return SectionQuestionsView{}, ErrSectionNotFound
	}
	attempt, err := s.store.FindTestAttempt(ctx, testID, studentID)
	if err != nil {
		return SectionQuestionsView{}, err
	}
	sa, err := s.store.GetSectionAttempt(ctx, attempt.ID, section.ID)
	if err != nil {
		if NotFound(err) {
			return SectionQuestionsView{}, ErrSectionNotActive
		}
		return SectionQuestionsView{}, err
	}
	if sa.Status != StatusInProgress {
		return SectionQuestionsView{}, ErrSectionNotActive
	}

	answers, err := s.store.ListAnswers(ctx, attempt.ID)
	if err != nil {
		return SectionQuestionsView{}, err
	}
	byQuestion := map[string]Answer{}
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}

	view := SectionQuestionsView{
		SectionID:    section.ID,
		Name:         section.Name,
		TimeLimitMin: section.TimeLimitMin,
		StartedAt:    sa.StartedAt,
	}
	for _, q := range section.Questions {
		sq := StudentQuestion{
			ID:    q.ID,
			Type:  q.Type,
			Text:  q.Text,
			Marks: q.Marks,
			Order: q.Order,
		}
		for _, c := range q.Choices {
			sq.Choices = append(sq.Choices, StudentChoice{ID: c.ID, Label: c.Label, Text: c.Text})
		}
		if ans, ok := byQuestion[q.ID]; ok {
			sq.Response = ans.Response
			sq.IsAnswered = !ans.Response.IsEmpty()
		}
		view.Questions = append(view.Questions, sq)
	}
	return view, nil
}
