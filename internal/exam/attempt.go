package exam

import (
	"context"
	"math"
	"time"

	"github.com/studyhall/examd/internal/events"
)

// AttemptService owns the overall test-attempt lifecycle: start,
// finalization and the terminal-state rules. Section-level work is
// delegated to SectionService.
type AttemptService struct {
	store  Store
	roster Roster
	events events.Publisher
	now    func() time.Time
}

func NewAttemptService(store Store, roster Roster, pub events.Publisher, now func() time.Time) *AttemptService {
	if pub == nil {
		pub = events.Nop{}
	}
	if now == nil {
		now = time.Now
	}
	return &AttemptService{store: store, roster: roster, events: pub, now: now}
}

type SectionSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Order        int    `json:"order"`
	TimeLimitMin int    `json:"time_limit_min"`
}

type StartTestResult struct {
	AttemptID      string           `json:"attempt_id"`
	Status         string           `json:"status"`
	CurrentSection *SectionSummary  `json:"current_section,omitempty"`
	Sections       []SectionSummary `json:"sections"`
}

// StartTest gets or creates the unique attempt for (student, test).
// Repeated calls while in progress return the same attempt; a completed or
// timed-out attempt can never be reopened.
func (s *AttemptService) StartTest(ctx context.Context, studentID, testID string) (StartTestResult, error) {
	assigned, err := s.roster.IsStudentAssigned(ctx, studentID, testID)
	if err != nil {
		return StartTestResult{}, err
	}
	if !assigned {
		return StartTestResult{}, ErrNotAssigned
	}
	test, err := s.store.GetTest(ctx, testID)
	if err != nil {
		return StartTestResult{}, err
	}

	var attempt TestAttempt
	err = s.store.Tx(ctx, func(st Store) error {
		a, created, err := st.GetOrCreateTestAttempt(ctx, TestAttempt{
			TestID:     test.ID,
			StudentID:  studentID,
			Status:     StatusInProgress,
			TotalMarks: test.TotalMarks,
			StartedAt:  s.now(),
		})
		if err != nil {
			return err
		}
		if !created && terminal(a.Status) {
			return ErrTestAlreadyCompleted
		}
		if a.CurrentSectionID == "" {
			if first, ok := test.FirstSection(); ok {
				a.CurrentSectionID = first.ID
				if err := st.UpdateTestAttempt(ctx, a); err != nil {
					return err
				}
			}
		}
		attempt = a
		return nil
	})
	if err != nil {
		return StartTestResult{}, err
	}

	out := StartTestResult{AttemptID: attempt.ID, Status: attempt.Status}
	for _, sec := range test.Sections {
		sum := SectionSummary{ID: sec.ID, Name: sec.Name, Order: sec.Order, TimeLimitMin: sec.TimeLimitMin}
		out.Sections = append(out.Sections, sum)
		if sec.ID == attempt.CurrentSectionID {
			cur := sum
			out.CurrentSection = &cur
		}
	}
	return out, nil
}

type TestTotals struct {
	AttemptID  string  `json:"attempt_id"`
	TotalScore int     `json:"total_score"`
	TotalMarks int     `json:"total_marks"`
	Percentage float64 `json:"percentage"`
}

// CompleteTest finalizes the attempt. Totals are recomputed from every
// answer recorded for the attempt, regardless of section; when no answer
// resolves to a question with marks, max marks fall back to the sum over
// section attempts. The operation is idempotent and re-runnable: calling
// it on an already-completed attempt overwrites totals rather than
// failing, so post-completion corrections can be reflected.
func (s *AttemptService) CompleteTest(ctx context.Context, studentID, testID string) (TestTotals, error) {
	var (
		out TestTotals
		evt events.AttemptCompleted
	)
	err := s.store.Tx(ctx, func(st Store) error {
		attempt, err := st.FindTestAttempt(ctx, testID, studentID)
		if err != nil {
			return err
		}
		test, err := st.GetTest(ctx, attempt.TestID)
		if err != nil {
			return err
		}
		answers, err := st.ListAnswers(ctx, attempt.ID)
		if err != nil {
			return err
		}

		totalMarks, totalScore := 0, 0
		for _, ans := range answers {
			q, _, ok := test.QuestionByID(ans.QuestionID)
			if !ok {
				continue
			}
			totalMarks += q.Marks
			if ans.IsCorrect {
				totalScore += q.Marks
			}
		}
		if totalMarks == 0 {
			// No answer resolved to marks; fall back to section maxima.
			sas, err := st.ListSectionAttempts(ctx, attempt.ID)
			if err != nil {
				return err
			}
			for _, sa := range sas {
				totalMarks += sa.TotalMarks
			}
		}

		now := s.now()
		attempt.TotalScore = totalScore
		attempt.TotalMarks = totalMarks
		attempt.Percentage = percentage(totalScore, totalMarks)
		attempt.Status = StatusCompleted
		attempt.CompletedAt = &now
		if err := st.UpdateTestAttempt(ctx, attempt); err != nil {
			return err
		}

		if err := s.backfillSections(ctx, st, test, attempt.ID, answers, now); err != nil {
			return err
		}

		out = TestTotals{
			AttemptID:  attempt.ID,
			TotalScore: totalScore,
			TotalMarks: totalMarks,
			Percentage: attempt.Percentage,
		}
		evt = events.AttemptCompleted{
			AttemptID:  attempt.ID,
			TestID:     attempt.TestID,
			StudentID:  attempt.StudentID,
			TotalScore: totalScore,
			TotalMarks: totalMarks,
			Percentage: attempt.Percentage,
		}
		return nil
	})
	if err != nil {
		return TestTotals{}, err
	}
	if err := s.events.PublishAttemptCompleted(ctx, evt); err != nil {
		return TestTotals{}, err
	}
	return out, nil
}

// backfillSections recomputes each section attempt from its own answers.
// A section attempt with no linked answers is left untouched rather than
// zeroed out.
func (s *AttemptService) backfillSections(ctx context.Context, st Store, test Test, attemptID string, answers []Answer, now time.Time) error {
	bySection := map[string][]Answer{}
	for _, ans := range answers {
		if ans.SectionAttemptID != "" {
			bySection[ans.SectionAttemptID] = append(bySection[ans.SectionAttemptID], ans)
		}
	}
	sas, err := st.ListSectionAttempts(ctx, attemptID)
	if err != nil {
		return err
	}
	for _, sa := range sas {
		linked := bySection[sa.ID]
		if len(linked) == 0 {
			continue
		}
		total, score := 0, 0
		for _, ans := range linked {
			q, _, ok := test.QuestionByID(ans.QuestionID)
			if !ok {
				continue
			}
			total += q.Marks
			if ans.IsCorrect {
				score += q.Marks
			}
		}
		sa.TotalMarks = total
		sa.Score = score
		sa.Status = StatusCompleted
		if sa.CompletedAt == nil {
			completed := now
			sa.CompletedAt = &completed
		}
		if err := st.UpdateSectionAttempt(ctx, sa); err != nil {
			return err
		}
	}
	return nil
}

// ExpireAttempt is the entry point for the external expiry timer: it moves
// an in-progress attempt to timeout. Terminal attempts are left alone.
func (s *AttemptService) ExpireAttempt(ctx context.Context, attemptID string) error {
	return s.store.Tx(ctx, func(st Store) error {
		attempt, err := st.GetTestAttempt(ctx, attemptID)
		if err != nil {
			return err
		}
		if terminal(attempt.Status) {
			return nil
		}
		attempt.Status = StatusTimeout
		return st.UpdateTestAttempt(ctx, attempt)
	})
}

// percentage rounds to two decimals; zero marks yield zero rather than a
// division error.
func percentage(score, marks int) float64 {
	if marks <= 0 {
		return 0
	}
	return math.Round(float64(score)/float64(marks)*10000) / 100
}
