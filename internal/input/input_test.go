package input

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandValue_PlainPassthrough(t *testing.T) {
	for _, v := range []string{"hello", "", "a@b", "with - dash"} {
		got, err := ExpandValue(v)
		if err != nil {
			t.Fatalf("ExpandValue(%q): %v", v, err)
		}
		if got != v {
			t.Errorf("ExpandValue(%q) = %q", v, got)
		}
	}
}

func TestExpandValue_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "body.txt")
	if err := os.WriteFile(path, []byte("line one\nline two\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := ExpandValue("@" + path)
	if err != nil {
		t.Fatalf("ExpandValue: %v", err)
	}
	if got != "line one\nline two" {
		t.Errorf("got %q", got)
	}
}

func TestExpandValue_MissingFile(t *testing.T) {
	if _, err := ExpandValue("@" + filepath.Join(t.TempDir(), "absent.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestExpandValue_Stdin(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	old := os.Stdin
	os.Stdin = r
	defer func() { os.Stdin = old }()

	if _, err := w.WriteString("piped body\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	w.Close()

	got, err := ExpandValue("-")
	if err != nil {
		t.Fatalf("ExpandValue: %v", err)
	}
	if got != "piped body" {
		t.Errorf("got %q", got)
	}
}
