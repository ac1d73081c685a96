package grading

import (
	"strconv"
	"strings"
)

// Question type identifiers as stored on question rows.
const (
	TypeMCQ      = "mcq"
	TypeFreeForm = "free_form"
)

// Q is the minimal view of a question needed for grading.
// Keep this in sync with whatever fields your store uses.
type Q struct {
	Type     string
	Choices  []Choice
	Accepted []string // accepted answers for free-form questions
}

type Choice struct {
	ID      string
	Correct bool
}

// Grade reports whether the submitted response is correct.
//
// A selected choice wins over free text. A choice id that does not belong
// to the question is treated as no selection, not an error, so one bad id
// cannot abort a bulk submission. An empty response (or free text on an
// MCQ) grades false. Grade never fails: a malformed accepted-answer list
// degrades to incorrect.
func Grade(q Q, choiceID, freeText string) bool {
	if choiceID != "" {
		for _, c := range q.Choices {
			if c.ID == choiceID {
				return c.Correct
			}
		}
		return false
	}
	if q.Type == TypeFreeForm && strings.TrimSpace(freeText) != "" {
		return matchFreeForm(q.Accepted, freeText)
	}
	return false
}

// matchFreeForm compares the submission against each accepted answer,
// numerically when both sides parse as numbers, else as normalized text.
func matchFreeForm(accepted []string, submitted string) bool {
	sub := strings.TrimSpace(submitted)
	subNum, subIsNum := parseNumber(sub)
	for _, cand := range accepted {
		if num, ok := parseNumber(cand); ok && subIsNum {
			if num == subNum {
				return true
			}
			continue
		}
		if normalize(cand) == normalize(sub) {
			return true
		}
	}
	return false
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v, err == nil
}
