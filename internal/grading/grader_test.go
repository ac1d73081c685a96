package grading

import "testing"

func mcqWithKey(correct string) Q {
	q := Q{
		Type: TypeMCQ,
		Choices: []Choice{
			{ID: "c-a"}, {ID: "c-b"}, {ID: "c-c"}, {ID: "c-d"},
		},
	}
	for i := range q.Choices {
		if q.Choices[i].ID == correct {
			q.Choices[i].Correct = true
		}
	}
	return q
}

func TestGrade_MCQ(t *testing.T) {
	q := mcqWithKey("c-b")

	if !Grade(q, "c-b", "") {
		t.Fatalf("correct choice should grade true")
	}
	for _, wrong := range []string{"c-a", "c-c", "c-d"} {
		if Grade(q, wrong, "") {
			t.Fatalf("choice %s should grade false", wrong)
		}
	}
	// Unknown choice id is treated as no selection, never an error.
	if Grade(q, "c-zzz", "") {
		t.Fatalf("foreign choice id should grade false")
	}
	// Free text against an MCQ grades false.
	if Grade(q, "", "c-b") {
		t.Fatalf("text response to mcq should grade false")
	}
}

func TestGrade_FreeForm(t *testing.T) {
	tests := []struct {
		name      string
		accepted  []string
		submitted string
		want      bool
	}{
		{"exact numeric", []string{"5", "5.0"}, "5", true},
		{"whitespace numeric", []string{"5", "5.0"}, " 5 ", true},
		{"decimal alias", []string{"5", "5.0"}, "5.0", true},
		{"word is not a number", []string{"5", "5.0"}, "six", false},
		{"numeric equivalence", []string{"42"}, "42.00", true},
		{"negative", []string{"-3.5"}, "-3.50", true},
		{"case folded text", []string{"Paris"}, "  paris ", true},
		{"text mismatch", []string{"Paris"}, "london", false},
		{"mixed key numeric submit", []string{"about ten", "10"}, "10.0", true},
		{"empty submission", []string{"5"}, "", false},
		{"blank submission", []string{"5"}, "   ", false},
		{"empty accepted list", nil, "5", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q := Q{Type: TypeFreeForm, Accepted: tc.accepted}
			if got := Grade(q, "", tc.submitted); got != tc.want {
				t.Fatalf("Grade(%q vs %v) = %v, want %v", tc.submitted, tc.accepted, got, tc.want)
			}
		})
	}
}

func TestGrade_EmptyResponse(t *testing.T) {
	if Grade(mcqWithKey("c-a"), "", "") {
		t.Fatalf("empty response should grade false")
	}
	if Grade(Q{Type: TypeFreeForm, Accepted: []string{"1"}}, "", "") {
		t.Fatalf("empty response should grade false")
	}
}
