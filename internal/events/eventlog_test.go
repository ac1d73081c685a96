package events

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/studyhall/examd/internal/db"
)

func TestRepo_AppendsToLog(t *testing.T) {
	ctx := context.Background()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	dbh, err := db.Open(ctx, db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer dbh.Close()

	repo := NewRepo(dbh)
	evt := AttemptCompleted{
		AttemptID: "att-1", TestID: "t-1", StudentID: "stu-1",
		TotalScore: 7, TotalMarks: 10, Percentage: 70,
	}
	if err := repo.PublishAttemptCompleted(ctx, evt); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := repo.PublishAttemptCompleted(ctx, evt); err != nil {
		t.Fatalf("re-publish: %v", err)
	}

	rows, err := dbh.QueryContext(ctx,
		`SELECT typ, key, data FROM event_log ORDER BY seq`)
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		var typ, key, data string
		if err := rows.Scan(&typ, &key, &data); err != nil {
			t.Fatal(err)
		}
		if typ != TypeAttemptCompleted || key != "att-1" {
			t.Fatalf("row %d: typ=%s key=%s", n, typ, key)
		}
		var got AttemptCompleted
		if err := json.Unmarshal([]byte(data), &got); err != nil {
			t.Fatalf("payload: %v", err)
		}
		if got != evt {
			t.Fatalf("payload = %+v, want %+v", got, evt)
		}
		n++
	}
	if n != 2 {
		t.Fatalf("rows = %d, want 2 (log is append-only, no dedup)", n)
	}
}
