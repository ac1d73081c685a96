package exam

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestStartSection_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.startThrough(t, "s-mcq")
	f.clock.advance(time.Minute)

	first, err := f.sections.StartSection(ctx, "stu-1", "t-algebra", "s-mcq")
	if err != nil {
		t.Fatalf("restart section: %v", err)
	}
	second, err := f.sections.StartSection(ctx, "stu-1", "t-algebra", "s-mcq")
	if err != nil {
		t.Fatalf("restart section: %v", err)
	}
	if first.SectionAttemptID != second.SectionAttemptID {
		t.Fatalf("restart created a new section attempt")
	}
	if first.StartedAt != second.StartedAt {
		t.Fatalf("restart moved started_at: %v vs %v", first.StartedAt, second.StartedAt)
	}
}

func TestStartSection_CompletedIsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.startThrough(t, "s-mcq")
	if _, err := f.sections.CompleteSection(ctx, "stu-1", "t-algebra", "s-mcq"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	_, err := f.sections.StartSection(ctx, "stu-1", "t-algebra", "s-mcq")
	if !errors.Is(err, ErrSectionAlreadyCompleted) {
		t.Fatalf("err = %v, want ErrSectionAlreadyCompleted", err)
	}
}

func TestStartSection_UnknownSection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.attempts.StartTest(ctx, "stu-1", "t-algebra"); err != nil {
		t.Fatal(err)
	}
	_, err := f.sections.StartSection(ctx, "stu-1", "t-algebra", "s-nope")
	if !errors.Is(err, ErrSectionNotFound) {
		t.Fatalf("err = %v, want ErrSectionNotFound", err)
	}
}

func TestRecordAnswer_OverwriteKeepsLatest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	attemptID := f.startThrough(t, "s-mcq")

	correct, err := f.sections.RecordAnswer(ctx, "stu-1", attemptID, "q1", ChoiceResponse("q1a"))
	if err != nil {
		t.Fatalf("first answer: %v", err)
	}
	if correct {
		t.Fatal("wrong choice graded correct")
	}
	correct, err = f.sections.RecordAnswer(ctx, "stu-1", attemptID, "q1", ChoiceResponse("q1b"))
	if err != nil {
		t.Fatalf("second answer: %v", err)
	}
	if !correct {
		t.Fatal("right choice graded wrong")
	}

	answers, err := f.store.ListAnswers(ctx, attemptID)
	if err != nil {
		t.Fatal(err)
	}
	if len(answers) != 1 {
		t.Fatalf("answers = %d, want 1 after overwrite", len(answers))
	}
	if id, _ := answers[0].Response.ChoiceID(); id != "q1b" {
		t.Fatalf("stored choice = %s, want q1b", id)
	}
}

func TestRecordAnswer_ForeignChoiceGradesFalse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	attemptID := f.startThrough(t, "s-mcq")

	// q2a belongs to q2; submitted against q1 it degrades to empty.
	correct, err := f.sections.RecordAnswer(ctx, "stu-1", attemptID, "q1", ChoiceResponse("q2a"))
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if correct {
		t.Fatal("foreign choice graded correct")
	}
	answers, _ := f.store.ListAnswers(ctx, attemptID)
	if len(answers) != 1 || !answers[0].Response.IsEmpty() {
		t.Fatalf("expected one empty stored response, got %+v", answers)
	}
}

func TestRecordAnswer_SectionNotStarted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	attemptID := f.startThrough(t, "s-mcq")
	_, err := f.sections.RecordAnswer(ctx, "stu-1", attemptID, "q3", TextResponse("42"))
	if !errors.Is(err, ErrSectionNotActive) {
		t.Fatalf("err = %v, want ErrSectionNotActive", err)
	}
}

func TestRecordAnswer_WrongStudent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	attemptID := f.startThrough(t, "s-mcq")
	_, err := f.sections.RecordAnswer(ctx, "stu-2", attemptID, "q1", ChoiceResponse("q1b"))
	if !errors.Is(err, ErrAttemptNotFound) {
		t.Fatalf("err = %v, want ErrAttemptNotFound", err)
	}
}

func TestRecordAnswersBulk_PartialFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.startThrough(t, "s-mcq")

	outcomes, err := f.sections.RecordAnswersBulk(ctx, "stu-1", "t-algebra", "s-mcq", []AnswerSubmission{
		{QuestionID: "q1", Response: ChoiceResponse("q1b")},
		{QuestionID: "q-missing", Response: ChoiceResponse("q1b")},
		{QuestionID: "q3", Response: TextResponse("42")}, // section not started
	})
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("outcomes = %d, want 3", len(outcomes))
	}
	if !outcomes[0].Saved || !outcomes[0].IsCorrect {
		t.Fatalf("q1 outcome: %+v", outcomes[0])
	}
	if outcomes[1].Saved || outcomes[1].Error == "" {
		t.Fatalf("q-missing outcome: %+v", outcomes[1])
	}
	if outcomes[2].Saved || outcomes[2].Error == "" {
		t.Fatalf("q3 outcome: %+v", outcomes[2])
	}
}

func TestRecordAnswersBulk_UnknownSection(t *testing.T) {
	f := newFixture(t)
	f.startThrough(t, "s-mcq")
	_, err := f.sections.RecordAnswersBulk(context.Background(), "stu-1", "t-algebra", "s-nope", []AnswerSubmission{
		{QuestionID: "q1", Response: ChoiceResponse("q1b")},
	})
	if !errors.Is(err, ErrSectionNotFound) {
		t.Fatalf("err = %v, want ErrSectionNotFound", err)
	}
}

func TestCompleteSection_ScoreAndTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	attemptID := f.startThrough(t, "s-mcq")

	if _, err := f.sections.RecordAnswer(ctx, "stu-1", attemptID, "q1", ChoiceResponse("q1b")); err != nil {
		t.Fatal(err)
	}
	if _, err := f.sections.RecordAnswer(ctx, "stu-1", attemptID, "q2", ChoiceResponse("q2b")); err != nil {
		t.Fatal(err)
	}
	f.clock.advance(90 * time.Second)

	res, err := f.sections.CompleteSection(ctx, "stu-1", "t-algebra", "s-mcq")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.Score != 5 || res.TotalMarks != 10 {
		t.Fatalf("score = %d/%d, want 5/10", res.Score, res.TotalMarks)
	}
	if res.TimeTakenSec != 90 {
		t.Fatalf("time taken = %d, want 90", res.TimeTakenSec)
	}
	if res.NextSection == nil || res.NextSection.ID != "s-free" {
		t.Fatalf("next section = %+v, want s-free", res.NextSection)
	}

	attempt, _ := f.store.GetTestAttempt(ctx, attemptID)
	if attempt.CurrentSectionID != "s-free" {
		t.Fatalf("current section = %s, want s-free", attempt.CurrentSectionID)
	}
}

func TestCompleteSection_Monotonic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.startThrough(t, "s-mcq")
	if _, err := f.sections.CompleteSection(ctx, "stu-1", "t-algebra", "s-mcq"); err != nil {
		t.Fatal(err)
	}
	_, err := f.sections.CompleteSection(ctx, "stu-1", "t-algebra", "s-mcq")
	if !errors.Is(err, ErrSectionAlreadyCompleted) {
		t.Fatalf("err = %v, want ErrSectionAlreadyCompleted", err)
	}
}

func TestCompleteSection_ClockSkewClampsToZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.startThrough(t, "s-mcq")

	// Wall clock moved backwards between start and completion.
	f.clock.advance(-30 * time.Second)

	res, err := f.sections.CompleteSection(ctx, "stu-1", "t-algebra", "s-mcq")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.TimeTakenSec != 0 {
		t.Fatalf("time taken = %d, want 0", res.TimeTakenSec)
	}
}

func TestCompleteSection_LastSectionHasNoNext(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.startThrough(t, "s-free")
	res, err := f.sections.CompleteSection(ctx, "stu-1", "t-algebra", "s-free")
	if err != nil {
		t.Fatal(err)
	}
	if res.NextSection != nil {
		t.Fatalf("next section = %+v, want nil", res.NextSection)
	}
}

func TestCompleteSection_ZeroQuestions(t *testing.T) {
	store := NewMemoryStore()
	roster := NewStaticRoster()
	roster.Assign("stu-1", "t-empty")
	empty := Test{
		ID: "t-empty", Title: "Empty", Sections: []Section{
			{ID: "s-0", TestID: "t-empty", Name: "Nothing", Order: 1},
		},
	}
	ctx := context.Background()
	if err := store.PutTest(ctx, empty); err != nil {
		t.Fatal(err)
	}
	attempts := NewAttemptService(store, roster, nil, nil)
	sections := NewSectionService(store, nil)

	if _, err := attempts.StartTest(ctx, "stu-1", "t-empty"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := sections.StartSection(ctx, "stu-1", "t-empty", "s-0"); err != nil {
		t.Fatalf("start section: %v", err)
	}
	res, err := sections.CompleteSection(ctx, "stu-1", "t-empty", "s-0")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.Score != 0 || res.TotalMarks != 0 {
		t.Fatalf("result = %+v, want 0/0", res)
	}

	totals, err := attempts.CompleteTest(ctx, "stu-1", "t-empty")
	if err != nil {
		t.Fatalf("complete test: %v", err)
	}
	if totals.Percentage != 0 {
		t.Fatalf("percentage = %v, want 0 for zero marks", totals.Percentage)
	}
}

func TestSectionQuestions_HidesKeyEchoesResponses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	attemptID := f.startThrough(t, "s-mcq")
	if _, err := f.sections.RecordAnswer(ctx, "stu-1", attemptID, "q1", ChoiceResponse("q1a")); err != nil {
		t.Fatal(err)
	}

	view, err := f.sections.SectionQuestions(ctx, "stu-1", "t-algebra", "s-mcq")
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if len(view.Questions) != 2 {
		t.Fatalf("questions = %d, want 2", len(view.Questions))
	}
	q1 := view.Questions[0]
	if !q1.IsAnswered {
		t.Fatal("q1 should be marked answered")
	}
	if id, _ := q1.Response.ChoiceID(); id != "q1a" {
		t.Fatalf("echoed choice = %s, want q1a", id)
	}
	if view.Questions[1].IsAnswered {
		t.Fatal("q2 should not be answered")
	}
}
