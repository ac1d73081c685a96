package exam

import "time"

const (
	QuestionMCQ      = "mcq"
	QuestionFreeForm = "free_form"
)

type Choice struct {
	ID        string `json:"id"`
	Label     string `json:"label"` // A-D
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct,omitempty"`
}

type Question struct {
	ID        string   `json:"id"`
	SectionID string   `json:"section_id,omitempty"`
	Type      string   `json:"type"` // mcq|free_form
	Text      string   `json:"text"`
	Marks     int      `json:"marks"`
	Order     int      `json:"order"`
	Choices   []Choice `json:"choices,omitempty"`
	Accepted  []string `json:"accepted_answers,omitempty"` // free_form answer key
}

func (q Question) ChoiceByID(id string) (Choice, bool) {
	for _, c := range q.Choices {
		if c.ID == id {
			return c, true
		}
	}
	return Choice{}, false
}

type Section struct {
	ID           string     `json:"id"`
	TestID       string     `json:"test_id,omitempty"`
	Name         string     `json:"name"`
	TimeLimitMin int        `json:"time_limit_min"`
	Order        int        `json:"order"`
	Questions    []Question `json:"questions,omitempty"`
}

// MaxMarks is the sum of marks over the section's questions.
func (s Section) MaxMarks() int {
	total := 0
	for _, q := range s.Questions {
		total += q.Marks
	}
	return total
}

type Test struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	TotalMarks   int       `json:"total_marks"`
	PassingMarks int       `json:"passing_marks"`
	Sections     []Section `json:"sections"` // ordered by Section.Order
	CreatedAt    int64     `json:"created_at,omitempty"`
}

func (t Test) SectionByID(id string) (Section, bool) {
	for _, s := range t.Sections {
		if s.ID == id {
			return s, true
		}
	}
	return Section{}, false
}

// QuestionByID also resolves the section owning the question.
func (t Test) QuestionByID(id string) (Question, Section, bool) {
	for _, s := range t.Sections {
		for _, q := range s.Questions {
			if q.ID == id {
				return q, s, true
			}
		}
	}
	return Question{}, Section{}, false
}

func (t Test) FirstSection() (Section, bool) {
	if len(t.Sections) == 0 {
		return Section{}, false
	}
	first := t.Sections[0]
	for _, s := range t.Sections[1:] {
		if s.Order < first.Order {
			first = s
		}
	}
	return first, true
}

// NextSection returns the section with the smallest order strictly greater
// than after's, if any.
func (t Test) NextSection(after Section) (Section, bool) {
	var next Section
	found := false
	for _, s := range t.Sections {
		if s.Order <= after.Order || s.ID == after.ID {
			continue
		}
		if !found || s.Order < next.Order {
			next, found = s, true
		}
	}
	return next, found
}

// Attempt lifecycle states. completed and timeout are terminal.
const (
	StatusNotStarted = "not_started"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusTimeout    = "timeout"
)

func terminal(status string) bool {
	return status == StatusCompleted || status == StatusTimeout
}

// TestAttempt is one (student, test) pairing; unique per pair.
type TestAttempt struct {
	ID               string     `json:"id"`
	TestID           string     `json:"test_id"`
	StudentID        string     `json:"student_id"`
	Status           string     `json:"status"`
	CurrentSectionID string     `json:"current_section_id,omitempty"`
	TotalScore       int        `json:"total_score"`
	TotalMarks       int        `json:"total_marks"`
	Percentage       float64    `json:"percentage"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// SectionAttempt is one (test attempt, section) pairing; unique per pair.
// Terminal once completed.
type SectionAttempt struct {
	ID            string     `json:"id"`
	TestAttemptID string     `json:"test_attempt_id"`
	SectionID     string     `json:"section_id"`
	Status        string     `json:"status"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	TimeTakenSec  int        `json:"time_taken_sec"`
	Score         int        `json:"score"`
	TotalMarks    int        `json:"total_marks"`
}

// Answer is one (test attempt, question) pairing; later submissions
// overwrite earlier ones. The section-attempt link is stamped at write
// time and backfilled on completion.
type Answer struct {
	ID               string    `json:"id"`
	TestAttemptID    string    `json:"test_attempt_id"`
	SectionAttemptID string    `json:"section_attempt_id,omitempty"`
	QuestionID       string    `json:"question_id"`
	Response         Response  `json:"response"`
	IsCorrect        bool      `json:"is_correct"`
	AnsweredAt       time.Time `json:"answered_at"`
}
