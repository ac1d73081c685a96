package exam

import (
	"encoding/json"
	"testing"
)

func TestResponseVariants(t *testing.T) {
	choice := ChoiceResponse("c-1")
	if id, ok := choice.ChoiceID(); !ok || id != "c-1" {
		t.Fatalf("choice accessor = %q, %v", id, ok)
	}
	if text, ok := choice.Text(); ok || text != "" {
		t.Fatalf("choice leaked into text accessor: %q, %v", text, ok)
	}

	text := TextResponse("42")
	if v, ok := text.Text(); !ok || v != "42" {
		t.Fatalf("text accessor = %q, %v", v, ok)
	}
	if id, ok := text.ChoiceID(); ok || id != "" {
		t.Fatalf("text leaked into choice accessor: %q, %v", id, ok)
	}

	if !EmptyResponse().IsEmpty() || !ChoiceResponse("").IsEmpty() || !TextResponse("").IsEmpty() {
		t.Fatal("empty construction broken")
	}
}

func TestResponseJSON(t *testing.T) {
	raw, err := json.Marshal(TextResponse("hi"))
	if err != nil {
		t.Fatal(err)
	}
	var back Response
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatal(err)
	}
	if v, ok := back.Text(); !ok || v != "hi" {
		t.Fatalf("round trip = %q, %v", v, ok)
	}

	// choice_id wins when a payload carries both
	var both Response
	if err := json.Unmarshal([]byte(`{"choice_id":"c-1","text":"hi"}`), &both); err != nil {
		t.Fatal(err)
	}
	if id, ok := both.ChoiceID(); !ok || id != "c-1" {
		t.Fatalf("both fields: got %q, %v", id, ok)
	}
}
