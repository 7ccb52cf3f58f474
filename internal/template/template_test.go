package template

import (
	"testing"
)

func TestRender_Substitution(t *testing.T) {
	got := Render("Hi {name}, {count} meals near {city}!", map[string]string{
		"name":  "Ada",
		"count": "3",
		"city":  "Leeds",
	})
	want := "Hi Ada, 3 meals near Leeds!"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestRender_MissingKeyLeftInPlace(t *testing.T) {
	got := Render("Hi {name}, welcome to {app}", map[string]string{"name": "Ada"})
	if got != "Hi Ada, welcome to {app}" {
		t.Errorf("unexpected render %q", got)
	}
}

func TestRender_EmptyData(t *testing.T) {
	if got := Render("plain text", nil); got != "plain text" {
		t.Errorf("unexpected render %q", got)
	}
}

func TestFirstName(t *testing.T) {
	if got := FirstName("Ada Lovelace"); got != "Ada" {
		t.Errorf("expected Ada, got %q", got)
	}
	if got := FirstName("Ada"); got != "Ada" {
		t.Errorf("expected Ada, got %q", got)
	}
	if got := FirstName("  "); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}
