package tokens

import (
	"strings"
	"testing"
	"unicode/utf8"
)

// Tests use a model name with no tiktoken encoding so they exercise the
// deterministic fallback path and never touch the encoding cache.

func TestCount_Empty(t *testing.T) {
	c := NewCounter("unknown-test-model")
	if got := c.Count(""); got != 0 {
		t.Errorf("Count(\"\") = %d, want 0", got)
	}
}

func TestCount_FallbackApproximation(t *testing.T) {
	c := NewCounter("unknown-test-model")
	tests := []struct {
		text string
		want int
	}{
		{"abcd", 1},
		{"abcde", 2},
		{"abcdefgh", 2},
		{"a", 1},
	}
	for _, tt := range tests {
		if got := c.Count(tt.text); got != tt.want {
			t.Errorf("Count(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestCountAll_Sums(t *testing.T) {
	c := NewCounter("unknown-test-model")
	got := c.CountAll("abcd", "efgh", "")
	if got != 2 {
		t.Errorf("CountAll = %d, want 2", got)
	}
}

func TestTruncate_CutsToBudget(t *testing.T) {
	c := NewCounter("unknown-test-model")
	text := strings.Repeat("abcd ", 100)

	got := c.Truncate(text, 10)
	if n := c.Count(got); n > 10 {
		t.Errorf("Count(Truncate(text, 10)) = %d, want <= 10", n)
	}
	if got2 := c.Truncate(text, 10); got2 != got {
		t.Errorf("Truncate is not deterministic: %q vs %q", got, got2)
	}
}

func TestTruncate_ShortTextUnchanged(t *testing.T) {
	c := NewCounter("unknown-test-model")
	if got := c.Truncate("abcd", 10); got != "abcd" {
		t.Errorf("Truncate(%q, 10) = %q, want unchanged", "abcd", got)
	}
}

func TestTruncate_ZeroBudgetDisablesCut(t *testing.T) {
	c := NewCounter("unknown-test-model")
	text := strings.Repeat("abcd ", 100)
	if got := c.Truncate(text, 0); got != text {
		t.Errorf("Truncate with budget 0 changed the text")
	}
}

func TestTruncate_KeepsRuneBoundary(t *testing.T) {
	c := NewCounter("unknown-test-model")
	// Three-byte runes so the byte-budget cut lands mid-rune.
	text := strings.Repeat("✓", 50)
	got := c.Truncate(text, 5)
	if !utf8.ValidString(got) {
		t.Errorf("Truncate split a rune: %q", got)
	}
	if n := c.Count(got); n > 5 {
		t.Errorf("Count(Truncate(text, 5)) = %d, want <= 5", n)
	}
}

func TestCount_Monotonic(t *testing.T) {
	c := NewCounter("unknown-test-model")
	short := c.Count("a short sentence")
	long := c.Count("a much longer sentence that plainly holds more content than the short one")
	if long <= short {
		t.Errorf("longer text should count more tokens: %d <= %d", long, short)
	}
}

func TestModel(t *testing.T) {
	c := NewCounter("gpt-4o-mini")
	if c.Model() != "gpt-4o-mini" {
		t.Errorf("Model() = %q, want gpt-4o-mini", c.Model())
	}
}
