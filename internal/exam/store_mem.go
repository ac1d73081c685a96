package exam

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// memoryStore backs unit tests and offline experiments. Same contract as
// the SQL store, with a coarse lock standing in for transactions.
type memoryStore struct {
	mu sync.Mutex
	// txMu serializes whole transactions; mu still guards individual ops.
	txMu sync.Mutex

	tests           map[string]Test
	attempts        map[string]TestAttempt
	attemptKeys     map[string]string // testID|studentID -> attempt id
	sectionAttempts map[string]SectionAttempt
	sectionKeys     map[string]string // attemptID|sectionID -> section attempt id
	answers         map[string]Answer
	answerKeys      map[string]string // attemptID|questionID -> answer id
}

func NewMemoryStore() Store {
	return &memoryStore{
		tests:           map[string]Test{},
		attempts:        map[string]TestAttempt{},
		attemptKeys:     map[string]string{},
		sectionAttempts: map[string]SectionAttempt{},
		sectionKeys:     map[string]string{},
		answers:         map[string]Answer{},
		answerKeys:      map[string]string{},
	}
}

func pairKey(a, b string) string { return a + "|" + b }

func (m *memoryStore) PutTest(_ context.Context, t Test) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tests[t.ID] = t
	return nil
}

func (m *memoryStore) GetTest(_ context.Context, id string) (Test, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tests[id]
	if !ok {
		return Test{}, ErrTestNotFound
	}
	return t, nil
}

func (m *memoryStore) GetTestAttempt(_ context.Context, id string) (TestAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok {
		return TestAttempt{}, ErrAttemptNotFound
	}
	return a, nil
}

func (m *memoryStore) FindTestAttempt(_ context.Context, testID, studentID string) (TestAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.attemptKeys[pairKey(testID, studentID)]
	if !ok {
		return TestAttempt{}, ErrAttemptNotFound
	}
	return m.attempts[id], nil
}

func (m *memoryStore) GetOrCreateTestAttempt(_ context.Context, a TestAttempt) (TestAttempt, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pairKey(a.TestID, a.StudentID)
	if id, ok := m.attemptKeys[key]; ok {
		return m.attempts[id], false, nil
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	m.attempts[a.ID] = a
	m.attemptKeys[key] = a.ID
	return a, true, nil
}

func (m *memoryStore) UpdateTestAttempt(_ context.Context, a TestAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.attempts[a.ID]; !ok {
		return ErrAttemptNotFound
	}
	m.attempts[a.ID] = a
	return nil
}

func (m *memoryStore) GetSectionAttempt(_ context.Context, attemptID, sectionID string) (SectionAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.sectionKeys[pairKey(attemptID, sectionID)]
	if !ok {
		return SectionAttempt{}, ErrAttemptNotFound
	}
	return m.sectionAttempts[id], nil
}

func (m *memoryStore) GetOrCreateSectionAttempt(_ context.Context, sa SectionAttempt) (SectionAttempt, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pairKey(sa.TestAttemptID, sa.SectionID)
	if id, ok := m.sectionKeys[key]; ok {
		return m.sectionAttempts[id], false, nil
	}
	if sa.ID == "" {
		sa.ID = uuid.NewString()
	}
	m.sectionAttempts[sa.ID] = sa
	m.sectionKeys[key] = sa.ID
	return sa, true, nil
}

func (m *memoryStore) UpdateSectionAttempt(_ context.Context, sa SectionAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sectionAttempts[sa.ID]; !ok {
		return ErrAttemptNotFound
	}
	m.sectionAttempts[sa.ID] = sa
	return nil
}

func (m *memoryStore) ListSectionAttempts(_ context.Context, attemptID string) ([]SectionAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SectionAttempt
	for _, sa := range m.sectionAttempts {
		if sa.TestAttemptID == attemptID {
			out = append(out, sa)
		}
	}
	// Section order, like the SQL store's join on sections.order_idx.
	order := map[string]int{}
	if att, ok := m.attempts[attemptID]; ok {
		if t, ok := m.tests[att.TestID]; ok {
			for _, s := range t.Sections {
				order[s.ID] = s.Order
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		oi, oj := order[out[i].SectionID], order[out[j].SectionID]
		if oi != oj {
			return oi < oj
		}
		return out[i].SectionID < out[j].SectionID
	})
	return out, nil
}

func (m *memoryStore) UpsertAnswer(_ context.Context, ans Answer) (Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pairKey(ans.TestAttemptID, ans.QuestionID)
	if id, ok := m.answerKeys[key]; ok {
		ans.ID = id
	} else if ans.ID == "" {
		ans.ID = uuid.NewString()
	}
	m.answers[ans.ID] = ans
	m.answerKeys[key] = ans.ID
	return ans, nil
}

func (m *memoryStore) ListAnswers(_ context.Context, attemptID string) ([]Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Answer
	for _, a := range m.answers {
		if a.TestAttemptID == attemptID {
			out = append(out, a)
		}
	}
	m.sortAnswers(attemptID, out)
	return out, nil
}

func (m *memoryStore) ListSectionAnswers(_ context.Context, sectionAttemptID string) ([]Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Answer
	var attemptID string
	for _, a := range m.answers {
		if a.SectionAttemptID == sectionAttemptID {
			out = append(out, a)
			attemptID = a.TestAttemptID
		}
	}
	m.sortAnswers(attemptID, out)
	return out, nil
}

// sortAnswers orders by section order then question order, matching the
// SQL store's join. Caller holds mu.
func (m *memoryStore) sortAnswers(attemptID string, answers []Answer) {
	type pos struct{ section, question int }
	positions := map[string]pos{}
	if att, ok := m.attempts[attemptID]; ok {
		if t, ok := m.tests[att.TestID]; ok {
			for _, s := range t.Sections {
				for _, q := range s.Questions {
					positions[q.ID] = pos{s.Order, q.Order}
				}
			}
		}
	}
	sort.Slice(answers, func(i, j int) bool {
		pi, pj := positions[answers[i].QuestionID], positions[answers[j].QuestionID]
		if pi.section != pj.section {
			return pi.section < pj.section
		}
		if pi.question != pj.question {
			return pi.question < pj.question
		}
		return answers[i].QuestionID < answers[j].QuestionID
	})
}

func (m *memoryStore) Tx(ctx context.Context, fn func(Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(m)
}
