package exam

import "context"

// Store is the persistence boundary for tests, attempts and answers. The
// services hold no state between calls; every invariant that spans rows
// (attempt uniqueness, answer upsert, status transitions) is enforced here.
type Store interface {
	PutTest(ctx context.Context, t Test) error
	// GetTest returns the full definition, answer keys included. Callers
	// serving students must strip keys themselves (see SectionQuestions).
	GetTest(ctx context.Context, id string) (Test, error)

	GetTestAttempt(ctx context.Context, id string) (TestAttempt, error)
	// FindTestAttempt looks up the unique attempt for (test, student).
	FindTestAttempt(ctx context.Context, testID, studentID string) (TestAttempt, error)
	// GetOrCreateTestAttempt inserts a unless an attempt already exists for
	// (a.TestID, a.StudentID), in which case the existing row is returned.
	// The boolean reports whether a row was created.
	GetOrCreateTestAttempt(ctx context.Context, a TestAttempt) (TestAttempt, bool, error)
	UpdateTestAttempt(ctx context.Context, a TestAttempt) error

	GetSectionAttempt(ctx context.Context, attemptID, sectionID string) (SectionAttempt, error)
	GetOrCreateSectionAttempt(ctx context.Context, sa SectionAttempt) (SectionAttempt, bool, error)
	UpdateSectionAttempt(ctx context.Context, sa SectionAttempt) error
	ListSectionAttempts(ctx context.Context, attemptID string) ([]SectionAttempt, error)

	// UpsertAnswer enforces the (test attempt, question) uniqueness
	// invariant atomically: a second write for the same pair overwrites
	// the first.
	UpsertAnswer(ctx context.Context, ans Answer) (Answer, error)
	// ListAnswers returns all answers of an attempt ordered by section
	// order then question order, for deterministic review rendering.
	ListAnswers(ctx context.Context, attemptID string) ([]Answer, error)
	ListSectionAnswers(ctx context.Context, sectionAttemptID string) ([]Answer, error)

	// Tx runs fn against a store view whose writes commit atomically.
	// Multi-step operations (start/complete section, complete test) go
	// through here so partial writes are never observable.
	Tx(ctx context.Context, fn func(Store) error) error
}

// Roster answers the "is this student allowed to take this test" question.
// Membership management itself lives outside the core.
type Roster interface {
	IsStudentAssigned(ctx context.Context, studentID, testID string) (bool, error)
}
