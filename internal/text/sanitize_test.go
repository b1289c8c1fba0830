package text_test

import (
	"testing"

	"github.com/edgard/concisely/internal/text"
)

func TestFixHTML(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Plain text",
			input:    "Просто текст без разметки",
			expected: "Просто текст без разметки",
		},
		{
			name:     "Allowed tags preserved",
			input:    "<b>жирный</b> и <i>курсив</i>",
			expected: "<b>жирный</b> и <i>курсив</i>",
		},
		{
			name:     "Unclosed tag is closed",
			input:    "<b>жирный до конца",
			expected: "<b>жирный до конца</b>",
		},
		{
			name:     "Nested unclosed tags are closed in order",
			input:    "<b>раз <i>два",
			expected: "<b>раз <i>два</i></b>",
		},
		{
			name:     "Disallowed list tags are unwrapped",
			input:    "<ul><li>пункт один</li><li>пункт два</li></ul>",
			expected: "пункт одинпункт два",
		},
		{
			name:     "Disallowed span is unwrapped inside allowed tag",
			input:    "<b><span>текст</span></b>",
			expected: "<b>текст</b>",
		},
		{
			name:     "Link attributes survive",
			input:    `<a href="https://example.com">ссылка</a>`,
			expected: `<a href="https://example.com">ссылка</a>`,
		},
		{
			name:     "Stray angle bracket is escaped",
			input:    "2 < 5",
			expected: "2 &lt; 5",
		},
		{
			name:     "Code and pre preserved",
			input:    "<pre><code>fmt.Println()</code></pre>",
			expected: "<pre><code>fmt.Println()</code></pre>",
		},
		{
			name:     "Empty input",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := text.FixHTML(tt.input)
			if got != tt.expected {
				t.Errorf("FixHTML(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		max      int
		expected string
	}{
		{name: "Shorter than limit", input: "abc", max: 10, expected: "abc"},
		{name: "Exactly at limit", input: "abc", max: 3, expected: "abc"},
		{name: "ASCII truncation", input: "abcdef", max: 4, expected: "abcd"},
		{name: "Cyrillic is cut on rune boundary", input: "привет", max: 4, expected: "прив"},
		{name: "Zero limit", input: "abc", max: 0, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := text.Truncate(tt.input, tt.max)
			if got != tt.expected {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.input, tt.max, got, tt.expected)
			}
		})
	}
}
