package exam

import (
	"context"
	"testing"
	"time"

	"github.com/studyhall/examd/internal/events"
)

// capturePublisher records published events for assertions.
type capturePublisher struct {
	events []events.AttemptCompleted
}

func (p *capturePublisher) PublishAttemptCompleted(_ context.Context, evt events.AttemptCompleted) error {
	p.events = append(p.events, evt)
	return nil
}

// algebraTest is the shared fixture: two sections, MCQ plus free-form,
// 20 marks total with a passing bar of 10.
func algebraTest() Test {
	return Test{
		ID:           "t-algebra",
		Title:        "Algebra Midterm",
		TotalMarks:   20,
		PassingMarks: 10,
		Sections: []Section{
			{
				ID: "s-mcq", TestID: "t-algebra", Name: "Multiple Choice",
				TimeLimitMin: 20, Order: 1,
				Questions: []Question{
					{
						ID: "q1", SectionID: "s-mcq", Type: QuestionMCQ,
						Text: "2+2?", Marks: 5, Order: 1,
						Choices: []Choice{
							{ID: "q1a", Label: "A", Text: "3"},
							{ID: "q1b", Label: "B", Text: "4", IsCorrect: true},
						},
					},
					{
						ID: "q2", SectionID: "s-mcq", Type: QuestionMCQ,
						Text: "3*3?", Marks: 5, Order: 2,
						Choices: []Choice{
							{ID: "q2a", Label: "A", Text: "9", IsCorrect: true},
							{ID: "q2b", Label: "B", Text: "6"},
						},
					},
				},
			},
			{
				ID: "s-free", TestID: "t-algebra", Name: "Free Response",
				TimeLimitMin: 15, Order: 2,
				Questions: []Question{
					{
						ID: "q3", SectionID: "s-free", Type: QuestionFreeForm,
						Text: "6*7?", Marks: 10, Order: 1,
						Accepted: []string{"42", "42.0"},
					},
				},
			},
		},
	}
}

type fixture struct {
	store    Store
	roster   *StaticRoster
	attempts *AttemptService
	sections *SectionService
	clock    *fakeClock
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := NewMemoryStore()
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	roster := NewStaticRoster()
	roster.Assign("stu-1", "t-algebra")
	if err := store.PutTest(context.Background(), algebraTest()); err != nil {
		t.Fatalf("put test: %v", err)
	}
	return &fixture{
		store:    store,
		roster:   roster,
		attempts: NewAttemptService(store, roster, nil, clock.now),
		sections: NewSectionService(store, clock.now),
		clock:    clock,
	}
}

// startThrough starts the test and the named section for stu-1.
func (f *fixture) startThrough(t *testing.T, sectionID string) string {
	t.Helper()
	ctx := context.Background()
	res, err := f.attempts.StartTest(ctx, "stu-1", "t-algebra")
	if err != nil {
		t.Fatalf("start test: %v", err)
	}
	if _, err := f.sections.StartSection(ctx, "stu-1", "t-algebra", sectionID); err != nil {
		t.Fatalf("start section %s: %v", sectionID, err)
	}
	return res.AttemptID
}
