package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore implements Store over database/sql. Placeholders use the $n
// style, which both the pgx and modernc sqlite drivers accept.
type SQLStore struct {
	db *sql.DB
	q  dbtx
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, q: db}
}

func (s *SQLStore) Tx(ctx context.Context, fn func(Store) error) error {
	if _, nested := s.q.(*sql.Tx); nested {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&SQLStore{db: s.db, q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) PutTest(ctx context.Context, t Test) error {
	return s.Tx(ctx, func(st Store) error {
		q := st.(*SQLStore).q
		_, err := q.ExecContext(ctx, `INSERT INTO tests (id,title,total_marks,passing_marks,created_at)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, total_marks=EXCLUDED.total_marks, passing_marks=EXCLUDED.passing_marks`,
			t.ID, t.Title, t.TotalMarks, t.PassingMarks, time.Now().Unix())
		if err != nil {
			return err
		}
		// Replace the definition wholesale; FKs cascade questions/choices.
		if _, err := q.ExecContext(ctx, `DELETE FROM sections WHERE test_id=$1`, t.ID); err != nil {
			return err
		}
		for _, sec := range t.Sections {
			if _, err := q.ExecContext(ctx, `INSERT INTO sections (id,test_id,name,time_limit_min,order_idx)
				VALUES ($1,$2,$3,$4,$5)`,
				sec.ID, t.ID, sec.Name, sec.TimeLimitMin, sec.Order); err != nil {
				return err
			}
			for _, qu := range sec.Questions {
				accepted, err := json.Marshal(qu.Accepted)
				if err != nil {
					return err
				}
				if _, err := q.ExecContext(ctx, `INSERT INTO questions (id,section_id,qtype,text,marks,order_idx,accepted_json)
					VALUES ($1,$2,$3,$4,$5,$6,$7)`,
					qu.ID, sec.ID, qu.Type, qu.Text, qu.Marks, qu.Order, string(accepted)); err != nil {
					return err
				}
				for _, c := range qu.Choices {
					if _, err := q.ExecContext(ctx, `INSERT INTO choices (id,question_id,label,text,is_correct)
						VALUES ($1,$2,$3,$4,$5)`,
						c.ID, qu.ID, c.Label, c.Text, boolToInt(c.IsCorrect)); err != nil {
						return err
					}
				}
			}
		}
		return nil
	})
}

func (s *SQLStore) GetTest(ctx context.Context, id string) (Test, error) {
	var t Test
	err := s.q.QueryRowContext(ctx,
		`SELECT id,title,total_marks,passing_marks,created_at FROM tests WHERE id=$1`, id).
		Scan(&t.ID, &t.Title, &t.TotalMarks, &t.PassingMarks, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Test{}, ErrTestNotFound
	}
	if err != nil {
		return Test{}, err
	}

	rows, err := s.q.QueryContext(ctx,
		`SELECT id,name,time_limit_min,order_idx FROM sections WHERE test_id=$1 ORDER BY order_idx`, id)
	if err != nil {
		return Test{}, err
	}
	defer rows.Close()
	sectionIdx := map[string]int{}
	for rows.Next() {
		var sec Section
		if err := rows.Scan(&sec.ID, &sec.Name, &sec.TimeLimitMin, &sec.Order); err != nil {
			return Test{}, err
		}
		sec.TestID = t.ID
		sectionIdx[sec.ID] = len(t.Sections)
		t.Sections = append(t.Sections, sec)
	}
	if err := rows.Err(); err != nil {
		return Test{}, err
	}

	qrows, err := s.q.QueryContext(ctx,
		`SELECT q.id,q.section_id,q.qtype,q.text,q.marks,q.order_idx,q.accepted_json
		 FROM questions q JOIN sections s ON s.id=q.section_id
		 WHERE s.test_id=$1 ORDER BY s.order_idx, q.order_idx`, id)
	if err != nil {
		return Test{}, err
	}
	defer qrows.Close()
	questionLoc := map[string][2]int{} // question id -> (section idx, question idx)
	for qrows.Next() {
		var qu Question
		var accepted string
		if err := qrows.Scan(&qu.ID, &qu.SectionID, &qu.Type, &qu.Text, &qu.Marks, &qu.Order, &accepted); err != nil {
			return Test{}, err
		}
		if accepted != "" {
			if err := json.Unmarshal([]byte(accepted), &qu.Accepted); err != nil {
				return Test{}, err
			}
		}
		si, ok := sectionIdx[qu.SectionID]
		if !ok {
			continue
		}
		questionLoc[qu.ID] = [2]int{si, len(t.Sections[si].Questions)}
		t.Sections[si].Questions = append(t.Sections[si].Questions, qu)
	}
	if err := qrows.Err(); err != nil {
		return Test{}, err
	}

	crows, err := s.q.QueryContext(ctx,
		`SELECT c.id,c.question_id,c.label,c.text,c.is_correct
		 FROM choices c
		 JOIN questions q ON q.id=c.question_id
		 JOIN sections s ON s.id=q.section_id
		 WHERE s.test_id=$1 ORDER BY c.label`, id)
	if err != nil {
		return Test{}, err
	}
	defer crows.Close()
	for crows.Next() {
		var c Choice
		var questionID string
		var correct int
		if err := crows.Scan(&c.ID, &questionID, &c.Label, &c.Text, &correct); err != nil {
			return Test{}, err
		}
		c.IsCorrect = correct != 0
		loc, ok := questionLoc[questionID]
		if !ok {
			continue
		}
		sec := &t.Sections[loc[0]]
		sec.Questions[loc[1]].Choices = append(sec.Questions[loc[1]].Choices, c)
	}
	return t, crows.Err()
}

const attemptCols = `id,test_id,student_id,status,current_section_id,total_score,total_marks,percentage,started_at,completed_at`

func (s *SQLStore) scanAttempt(row interface{ Scan(...any) error }) (TestAttempt, error) {
	var a TestAttempt
	var current sql.NullString
	var started int64
	var completed sql.NullInt64
	err := row.Scan(&a.ID, &a.TestID, &a.StudentID, &a.Status, &current,
		&a.TotalScore, &a.TotalMarks, &a.Percentage, &started, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return TestAttempt{}, ErrAttemptNotFound
	}
	if err != nil {
		return TestAttempt{}, err
	}
	a.CurrentSectionID = current.String
	a.StartedAt = time.Unix(started, 0).UTC()
	if completed.Valid {
		t := time.Unix(completed.Int64, 0).UTC()
		a.CompletedAt = &t
	}
	return a, nil
}

func (s *SQLStore) GetTestAttempt(ctx context.Context, id string) (TestAttempt, error) {
	return s.scanAttempt(s.q.QueryRowContext(ctx,
		`SELECT `+attemptCols+` FROM attempts WHERE id=$1`, id))
}

func (s *SQLStore) FindTestAttempt(ctx context.Context, testID, studentID string) (TestAttempt, error) {
	return s.scanAttempt(s.q.QueryRowContext(ctx,
		`SELECT `+attemptCols+` FROM attempts WHERE test_id=$1 AND student_id=$2`, testID, studentID))
}

func (s *SQLStore) GetOrCreateTestAttempt(ctx context.Context, a TestAttempt) (TestAttempt, bool, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO attempts (`+attemptCols+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NULL)
		 ON CONFLICT (test_id, student_id) DO NOTHING`,
		a.ID, a.TestID, a.StudentID, a.Status, nullIfEmpty(a.CurrentSectionID),
		a.TotalScore, a.TotalMarks, a.Percentage, a.StartedAt.Unix())
	if err != nil {
		return TestAttempt{}, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return TestAttempt{}, false, err
	}
	got, err := s.FindTestAttempt(ctx, a.TestID, a.StudentID)
	return got, n > 0, err
}

func (s *SQLStore) UpdateTestAttempt(ctx context.Context, a TestAttempt) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE attempts SET status=$1,current_section_id=$2,total_score=$3,total_marks=$4,percentage=$5,completed_at=$6
		 WHERE id=$7`,
		a.Status, nullIfEmpty(a.CurrentSectionID), a.TotalScore, a.TotalMarks, a.Percentage,
		nullableUnix(a.CompletedAt), a.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrAttemptNotFound
	}
	return nil
}

const sectionAttemptCols = `id,test_attempt_id,section_id,status,started_at,completed_at,time_taken_sec,score,total_marks`

func (s *SQLStore) scanSectionAttempt(row interface{ Scan(...any) error }) (SectionAttempt, error) {
	var sa SectionAttempt
	var started int64
	var completed sql.NullInt64
	err := row.Scan(&sa.ID, &sa.TestAttemptID, &sa.SectionID, &sa.Status,
		&started, &completed, &sa.TimeTakenSec, &sa.Score, &sa.TotalMarks)
	if errors.Is(err, sql.ErrNoRows) {
		return SectionAttempt{}, ErrAttemptNotFound
	}
	if err != nil {
		return SectionAttempt{}, err
	}
	sa.StartedAt = time.Unix(started, 0).UTC()
	if completed.Valid {
		t := time.Unix(completed.Int64, 0).UTC()
		sa.CompletedAt = &t
	}
	return sa, nil
}

func (s *SQLStore) GetSectionAttempt(ctx context.Context, attemptID, sectionID string) (SectionAttempt, error) {
	return s.scanSectionAttempt(s.q.QueryRowContext(ctx,
		`SELECT `+sectionAttemptCols+` FROM section_attempts WHERE test_attempt_id=$1 AND section_id=$2`,
		attemptID, sectionID))
}

func (s *SQLStore) GetOrCreateSectionAttempt(ctx context.Context, sa SectionAttempt) (SectionAttempt, bool, error) {
	if sa.ID == "" {
		sa.ID = uuid.NewString()
	}
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO section_attempts (`+sectionAttemptCols+`)
		 VALUES ($1,$2,$3,$4,$5,NULL,$6,$7,$8)
		 ON CONFLICT (test_attempt_id, section_id) DO NOTHING`,
		sa.ID, sa.TestAttemptID, sa.SectionID, sa.Status, sa.StartedAt.Unix(),
		sa.TimeTakenSec, sa.Score, sa.TotalMarks)
	if err != nil {
		return SectionAttempt{}, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return SectionAttempt{}, false, err
	}
	got, err := s.GetSectionAttempt(ctx, sa.TestAttemptID, sa.SectionID)
	return got, n > 0, err
}

func (s *SQLStore) UpdateSectionAttempt(ctx context.Context, sa SectionAttempt) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE section_attempts SET status=$1,completed_at=$2,time_taken_sec=$3,score=$4,total_marks=$5
		 WHERE id=$6`,
		sa.Status, nullableUnix(sa.CompletedAt), sa.TimeTakenSec, sa.Score, sa.TotalMarks, sa.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrAttemptNotFound
	}
	return nil
}

func (s *SQLStore) ListSectionAttempts(ctx context.Context, attemptID string) ([]SectionAttempt, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT sa.id,sa.test_attempt_id,sa.section_id,sa.status,sa.started_at,sa.completed_at,sa.time_taken_sec,sa.score,sa.total_marks
		 FROM section_attempts sa
		 LEFT JOIN sections s ON s.id=sa.section_id
		 WHERE sa.test_attempt_id=$1 ORDER BY s.order_idx`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SectionAttempt
	for rows.Next() {
		sa, err := s.scanSectionAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sa)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpsertAnswer(ctx context.Context, ans Answer) (Answer, error) {
	if ans.ID == "" {
		ans.ID = uuid.NewString()
	}
	choiceID, _ := ans.Response.ChoiceID()
	text, _ := ans.Response.Text()
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO answers (id,test_attempt_id,section_attempt_id,question_id,choice_id,text_answer,is_correct,answered_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 ON CONFLICT (test_attempt_id, question_id) DO UPDATE SET
		   section_attempt_id=EXCLUDED.section_attempt_id,
		   choice_id=EXCLUDED.choice_id,
		   text_answer=EXCLUDED.text_answer,
		   is_correct=EXCLUDED.is_correct,
		   answered_at=EXCLUDED.answered_at`,
		ans.ID, ans.TestAttemptID, nullIfEmpty(ans.SectionAttemptID), ans.QuestionID,
		nullIfEmpty(choiceID), nullIfEmpty(text), boolToInt(ans.IsCorrect), ans.AnsweredAt.Unix())
	if err != nil {
		return Answer{}, err
	}
	return s.getAnswer(ctx, ans.TestAttemptID, ans.QuestionID)
}

const answerCols = `a.id,a.test_attempt_id,a.section_attempt_id,a.question_id,a.choice_id,a.text_answer,a.is_correct,a.answered_at`

func (s *SQLStore) scanAnswer(row interface{ Scan(...any) error }) (Answer, error) {
	var a Answer
	var sectionAttempt, choice, text sql.NullString
	var correct int
	var answered int64
	err := row.Scan(&a.ID, &a.TestAttemptID, &sectionAttempt, &a.QuestionID,
		&choice, &text, &correct, &answered)
	if err != nil {
		return Answer{}, err
	}
	a.SectionAttemptID = sectionAttempt.String
	switch {
	case choice.Valid && choice.String != "":
		a.Response = ChoiceResponse(choice.String)
	case text.Valid && text.String != "":
		a.Response = TextResponse(text.String)
	default:
		a.Response = EmptyResponse()
	}
	a.IsCorrect = correct != 0
	a.AnsweredAt = time.Unix(answered, 0).UTC()
	return a, nil
}

func (s *SQLStore) getAnswer(ctx context.Context, attemptID, questionID string) (Answer, error) {
	return s.scanAnswer(s.q.QueryRowContext(ctx,
		`SELECT `+answerCols+` FROM answers a WHERE a.test_attempt_id=$1 AND a.question_id=$2`,
		attemptID, questionID))
}

func (s *SQLStore) ListAnswers(ctx context.Context, attemptID string) ([]Answer, error) {
	return s.listAnswers(ctx,
		`SELECT `+answerCols+`
		 FROM answers a
		 JOIN questions q ON q.id=a.question_id
		 JOIN sections s ON s.id=q.section_id
		 WHERE a.test_attempt_id=$1 ORDER BY s.order_idx, q.order_idx`, attemptID)
}

func (s *SQLStore) ListSectionAnswers(ctx context.Context, sectionAttemptID string) ([]Answer, error) {
	return s.listAnswers(ctx,
		`SELECT `+answerCols+`
		 FROM answers a
		 JOIN questions q ON q.id=a.question_id
		 WHERE a.section_attempt_id=$1 ORDER BY q.order_idx`, sectionAttemptID)
}

func (s *SQLStore) listAnswers(ctx context.Context, query, arg string) ([]Answer, error) {
	rows, err := s.q.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Answer
	for rows.Next() {
		a, err := s.scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableUnix(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}
