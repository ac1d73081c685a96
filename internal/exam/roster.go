package exam

import (
	"context"
	"database/sql"
	"errors"
	"sync"
)

// SQLRoster resolves assignment through the test_assignments and
// group_members tables. Group membership is managed elsewhere; the core
// only reads it.
type SQLRoster struct{ db *sql.DB }

func NewSQLRoster(db *sql.DB) *SQLRoster { return &SQLRoster{db: db} }

func (r *SQLRoster) IsStudentAssigned(ctx context.Context, studentID, testID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1
		 FROM test_assignments ta
		 JOIN group_members gm ON gm.group_id = ta.group_id
		 WHERE ta.test_id=$1 AND gm.student_id=$2 AND ta.is_active=1
		 LIMIT 1`,
		testID, studentID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// StaticRoster is an in-memory roster for tests and offline seeding.
type StaticRoster struct {
	mu       sync.RWMutex
	assigned map[string]bool // studentID|testID
}

func NewStaticRoster() *StaticRoster {
	return &StaticRoster{assigned: map[string]bool{}}
}

func (r *StaticRoster) Assign(studentID, testID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assigned[pairKey(studentID, testID)] = true
}

func (r *StaticRoster) IsStudentAssigned(_ context.Context, studentID, testID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.assigned[pairKey(studentID, testID)], nil
}
