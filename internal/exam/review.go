package exam

import (
	"context"
	"time"

	"github.com/studyhall/examd/internal/grading"
)

// Projector builds the student-facing results and review read models. It
// never mutates attempt state.
type Projector struct {
	store Store
}

func NewProjector(store Store) *Projector { return &Projector{store: store} }

type SectionResultView struct {
	SectionID    string  `json:"section_id"`
	Name         string  `json:"name"`
	Score        int     `json:"score"`
	TotalMarks   int     `json:"total_marks"`
	Percentage   float64 `json:"percentage"`
	TimeTakenSec int     `json:"time_taken_sec"`
}

type Results struct {
	TestTitle   string              `json:"test_title"`
	TotalScore  int                 `json:"total_score"`
	TotalMarks  int                 `json:"total_marks"`
	Percentage  float64             `json:"percentage"`
	Passed      bool                `json:"passed"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
	Sections    []SectionResultView `json:"sections"`
}

// Results summarizes a completed attempt. Attempts still in progress are
// reported as not found, matching the student dashboard contract.
func (p *Projector) Results(ctx context.Context, studentID, testID string) (Results, error) {
	attempt, err := p.store.FindTestAttempt(ctx, testID, studentID)
	if err != nil {
		return Results{}, err
	}
	if attempt.Status != StatusCompleted {
		return Results{}, ErrAttemptNotFound
	}
	test, err := p.store.GetTest(ctx, attempt.TestID)
	if err != nil {
		return Results{}, err
	}

	out := Results{
		TestTitle:   test.Title,
		TotalScore:  attempt.TotalScore,
		TotalMarks:  attempt.TotalMarks,
		Percentage:  attempt.Percentage,
		Passed:      attempt.TotalScore >= test.PassingMarks,
		CompletedAt: attempt.CompletedAt,
	}
	sas, err := p.store.ListSectionAttempts(ctx, attempt.ID)
	if err != nil {
		return Results{}, err
	}
	for _, sa := range sas {
		if sa.Status != StatusCompleted {
			continue
		}
		name := sa.SectionID
		if sec, ok := test.SectionByID(sa.SectionID); ok {
			name = sec.Name
		}
		out.Sections = append(out.Sections, SectionResultView{
			SectionID:    sa.SectionID,
			Name:         name,
			Score:        sa.Score,
			TotalMarks:   sa.TotalMarks,
			Percentage:   percentage(sa.Score, sa.TotalMarks),
			TimeTakenSec: sa.TimeTakenSec,
		})
	}
	return out, nil
}

type ReviewChoice struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Text  string `json:"text"`
}

type ReviewQuestion struct {
	ID              string         `json:"id"`
	Type            string         `json:"type"`
	Text            string         `json:"text"`
	Marks           int            `json:"marks"`
	MarksEarned     int            `json:"marks_earned"`
	Choices         []ReviewChoice `json:"choices,omitempty"`
	CorrectChoiceID string         `json:"correct_choice_id,omitempty"`
	AcceptedAnswers []string       `json:"accepted_answers,omitempty"`
	StudentChoiceID string         `json:"student_choice_id,omitempty"`
	StudentText     string         `json:"student_text,omitempty"`
	IsCorrect       bool           `json:"is_correct"`
}

type ReviewSection struct {
	SectionID string           `json:"section_id"`
	Name      string           `json:"name"`
	Questions []ReviewQuestion `json:"questions"`
}

type Review struct {
	TestTitle  string          `json:"test_title"`
	TotalScore int             `json:"total_score"`
	TotalMarks int             `json:"total_marks"`
	Percentage float64         `json:"percentage"`
	Sections   []ReviewSection `json:"sections"`
}

// Review renders every attempted section with per-question correctness.
// Correctness is recomputed from the current question definition for both
// question types, so editing a question's key after submission changes the
// review output. Answer keys and correct choices are hidden while the
// attempt is still active.
func (p *Projector) Review(ctx context.Context, studentID, testID string) (Review, error) {
	attempt, err := p.store.FindTestAttempt(ctx, testID, studentID)
	if err != nil {
		return Review{}, err
	}
	test, err := p.store.GetTest(ctx, attempt.TestID)
	if err != nil {
		return Review{}, err
	}
	answers, err := p.store.ListAnswers(ctx, attempt.ID)
	if err != nil {
		return Review{}, err
	}
	byQuestion := map[string]Answer{}
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}
	active := !terminal(attempt.Status)

	sas, err := p.store.ListSectionAttempts(ctx, attempt.ID)
	if err != nil {
		return Review{}, err
	}

	out := Review{TestTitle: test.Title}
	for _, sa := range sas {
		section, ok := test.SectionByID(sa.SectionID)
		if !ok {
			continue
		}
		rs := ReviewSection{SectionID: section.ID, Name: section.Name}
		for _, q := range section.Questions {
			rq := ReviewQuestion{ID: q.ID, Type: q.Type, Text: q.Text, Marks: q.Marks}
			for _, c := range q.Choices {
				rq.Choices = append(rq.Choices, ReviewChoice{ID: c.ID, Label: c.Label, Text: c.Text})
				if c.IsCorrect && !active {
					rq.CorrectChoiceID = c.ID
				}
			}
			if q.Type == QuestionFreeForm && !active {
				rq.AcceptedAnswers = q.Accepted
			}

			ans, answered := byQuestion[q.ID]
			var choiceID, text string
			if answered {
				choiceID, _ = ans.Response.ChoiceID()
				text, _ = ans.Response.Text()
			}
			rq.StudentChoiceID = choiceID
			rq.StudentText = text
			rq.IsCorrect = answered && grading.Grade(gradingView(q), choiceID, text)
			if rq.IsCorrect {
				rq.MarksEarned = q.Marks
			}

			out.TotalMarks += q.Marks
			out.TotalScore += rq.MarksEarned
			rs.Questions = append(rs.Questions, rq)
		}
		out.Sections = append(out.Sections, rs)
	}
	out.Percentage = percentage(out.TotalScore, out.TotalMarks)
	return out, nil
}
