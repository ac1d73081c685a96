package exam

import "encoding/json"

type responseKind uint8

const (
	responseEmpty responseKind = iota
	responseChoice
	responseText
)

// Response is the student's submission for one question: a selected choice,
// free text, or nothing. The variant makes choice/text mutually exclusive
// by construction; an unanswered question is a valid, gradeable state.
type Response struct {
	kind  responseKind
	value string
}

func ChoiceResponse(choiceID string) Response {
	if choiceID == "" {
		return Response{}
	}
	return Response{kind: responseChoice, value: choiceID}
}

func TextResponse(text string) Response {
	if text == "" {
		return Response{}
	}
	return Response{kind: responseText, value: text}
}

func EmptyResponse() Response { return Response{} }

func (r Response) ChoiceID() (string, bool) {
	if r.kind != responseChoice {
		return "", false
	}
	return r.value, true
}

func (r Response) Text() (string, bool) {
	if r.kind != responseText {
		return "", false
	}
	return r.value, true
}

func (r Response) IsEmpty() bool { return r.kind == responseEmpty }

type responseJSON struct {
	ChoiceID string `json:"choice_id,omitempty"`
	Text     string `json:"text,omitempty"`
}

func (r Response) MarshalJSON() ([]byte, error) {
	var out responseJSON
	switch r.kind {
	case responseChoice:
		out.ChoiceID = r.value
	case responseText:
		out.Text = r.value
	}
	return json.Marshal(out)
}

func (r *Response) UnmarshalJSON(data []byte) error {
	var in responseJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch {
	case in.ChoiceID != "":
		*r = ChoiceResponse(in.ChoiceID)
	case in.Text != "":
		*r = TextResponse(in.Text)
	default:
		*r = Response{}
	}
	return nil
}
