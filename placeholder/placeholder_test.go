package placeholder

import (
	"testing"
)

func TestMask_Basic(t *testing.T) {
	masked, m := Mask("Hello {0}, you have {count} new {page.title}")
	want := `Hello <ph id="0"/>, you have <ph id="count"/> new <ph id="page_title"/>`
	if masked != want {
		t.Fatalf("Mask() = %q, want %q", masked, want)
	}
	if m.Len() != 3 {
		t.Fatalf("got %d entries, want 3", m.Len())
	}
	if m[2].Original != "{page.title}" {
		t.Errorf("m[2].Original = %q, want {page.title}", m[2].Original)
	}
}

func TestMask_SpacesInPlaceholder(t *testing.T) {
	masked, _ := Mask("{user name}")
	if masked != `<ph id="user_name"/>` {
		t.Errorf("Mask() = %q", masked)
	}
}

func TestMask_RepeatedPlaceholder(t *testing.T) {
	masked, m := Mask("{0} and {0}")
	if m.Len() != 1 {
		t.Fatalf("got %d entries, want 1", m.Len())
	}
	if got := Unmask(masked, m); got != "{0} and {0}" {
		t.Errorf("Unmask() = %q", got)
	}
}

func TestMask_NoPlaceholders(t *testing.T) {
	masked, m := Mask("Plain <b>bold</b> text")
	if masked != "Plain <b>bold</b> text" {
		t.Errorf("Mask() changed text: %q", masked)
	}
	if m.Len() != 0 {
		t.Errorf("got %d entries, want 0", m.Len())
	}
}

func TestRoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"World",
		"Hello {0}",
		"{0}{1}{2}",
		"Page {page} of {total} - <a href=\"{url}\">open</a>",
		"Unbalanced { brace stays",
		"Braces } reversed {",
		"Nested {{0}} looks odd",
		"Привет {имя}!",
		"{a b.c} and {d}",
	}
	for _, in := range inputs {
		masked, m := Mask(in)
		if got := Unmask(masked, m); got != in {
			t.Errorf("Unmask(Mask(%q)) = %q", in, got)
		}
	}
}

func TestUnmask_ReorderedMarkers(t *testing.T) {
	masked, m := Mask("{0} of {1}")
	// Backend swapped marker order, as word order changes between languages.
	translated := `<ph id="1"/> из <ph id="0"/>`
	if masked == translated {
		t.Fatal("test setup: translated must differ from masked")
	}
	if got := Unmask(translated, m); got != "{1} из {0}" {
		t.Errorf("Unmask() = %q", got)
	}
}

func TestDetection(t *testing.T) {
	if !HasPlaceholders("x {0}") || HasPlaceholders("x {} y") {
		t.Error("HasPlaceholders mismatch")
	}
	if !HasMarkup("<br/>") || HasMarkup("a < b") {
		t.Error("HasMarkup mismatch")
	}
	if !NeedsTagHandling("<i>x</i>") || !NeedsTagHandling("{0}") || NeedsTagHandling("plain") {
		t.Error("NeedsTagHandling mismatch")
	}
}

func TestMask_SanitizedIDCollision(t *testing.T) {
	text := "{a.b} and {a_b} then {a b} and {a.b}"
	masked, m := Mask(text)
	want := `<ph id="a_b"/> and <ph id="a_b_2"/> then <ph id="a_b_3"/> and <ph id="a_b"/>`
	if masked != want {
		t.Fatalf("Mask() = %q, want %q", masked, want)
	}
	if m.Len() != 3 {
		t.Fatalf("got %d entries, want 3", m.Len())
	}
	if got := Unmask(masked, m); got != text {
		t.Errorf("Unmask() = %q, want %q", got, text)
	}
}
