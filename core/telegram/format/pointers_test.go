package format

import "testing"

func TestDerefString(t *testing.T) {
	if got := DerefString(nil, "fallback"); got != "fallback" {
		t.Fatalf("DerefString(nil) = %q, want fallback", got)
	}
	s := "nilai"
	if got := DerefString(&s, "fallback"); got != "nilai" {
		t.Fatalf("DerefString(&s) = %q, want nilai", got)
	}
}
