package models

import "testing"

func TestNoteValidate(t *testing.T) {
	tests := []struct {
		name    string
		note    Note
		wantErr bool
	}{
		{"valid", Note{Title: "groceries"}, false},
		{"blank title", Note{Title: "   "}, true},
		{"tag with space", Note{Title: "t", Tags: []string{"two words"}}, true},
		{"tag with comma", Note{Title: "t", Tags: []string{"a,b"}}, true},
		{"clean tags", Note{Title: "t", Tags: []string{"work", "urgent"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.note.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNoteRoundTrip(t *testing.T) {
	n := &Note{Title: "meeting", Body: "agenda\nitems", Tags: []string{"work"}}
	payload, err := n.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := UnmarshalNote(payload)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Title != n.Title || got.Body != n.Body || !got.HasTag("work") {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestNoteSummary(t *testing.T) {
	n := &Note{Title: "t", Body: "first line\nsecond line"}
	if got := n.Summary(0); got != "first line" {
		t.Errorf("summary: %q", got)
	}
	long := &Note{Title: "t", Body: "abcdefghij"}
	if got := long.Summary(6); len(got) > 8 {
		t.Errorf("truncation: %q", got)
	}
}
