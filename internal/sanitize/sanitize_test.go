package sanitize

import (
	"strings"
	"testing"

	"mentorstream/internal/diagram"
)

func defaultSanitizer() *Sanitizer {
	return NewSanitizer(DefaultPolicy(), nil)
}

func TestSanitize_PlainTextPromotion(t *testing.T) {
	s := defaultSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "single line",
			input: "Hello world",
			want:  `<div class="generated-content"><p class="content-paragraph">Hello world</p></div>`,
		},
		{
			name:  "line break inside paragraph",
			input: "First line\nSecond line",
			want:  `<div class="generated-content"><p class="content-paragraph">First line<br/>Second line</p></div>`,
		},
		{
			name:  "blank line splits paragraphs",
			input: "Para one.\n\nPara two.",
			want:  "<div class=\"generated-content\"><p class=\"content-paragraph\">Para one.</p>\n<p class=\"content-paragraph\">Para two.</p></div>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitize_EmptyInput(t *testing.T) {
	s := defaultSanitizer()
	for _, input := range []string{"", "   ", "\n\n\t"} {
		if got := s.Sanitize(input); got != "" {
			t.Errorf("Sanitize(%q) = %q, want empty", input, got)
		}
	}
}

func TestSanitize_StripsScriptWithContent(t *testing.T) {
	s := defaultSanitizer()
	got := s.Sanitize(`<p>hi</p><script>alert("x")</script>`)
	want := `<div class="generated-content"><p class="content-paragraph">hi</p></div>`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if strings.Contains(got, "alert") {
		t.Errorf("script body leaked into output: %q", got)
	}
}

func TestSanitize_DropsEventHandlers(t *testing.T) {
	s := defaultSanitizer()
	got := s.Sanitize(`<p onclick="steal()">hi</p>`)
	want := `<div class="generated-content"><p class="content-paragraph">hi</p></div>`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSanitize_NeutralizesDangerousURLs(t *testing.T) {
	s := defaultSanitizer()

	got := s.Sanitize(`<a href="javascript:alert(1)">x</a>`)
	want := `<div class="generated-content"><a href="#">x</a></div>`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	got = s.Sanitize(`<a href="https://example.com/page">x</a>`)
	want = `<div class="generated-content"><a href="https://example.com/page">x</a></div>`
	if got != want {
		t.Errorf("safe URL mangled: got %q, want %q", got, want)
	}
}

func TestSanitize_ClosesUnbalancedTags(t *testing.T) {
	s := defaultSanitizer()
	got := s.Sanitize(`<p><strong>bold text`)
	want := `<div class="generated-content"><p class="content-paragraph"><strong>bold text</strong></p></div>`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSanitize_FixesNestedParagraphs(t *testing.T) {
	s := defaultSanitizer()
	got := s.Sanitize(`<p>outer<p>inner</p></p>`)
	want := "<div class=\"generated-content\"><p class=\"content-paragraph\">outer</p>\n<p class=\"content-paragraph\">inner</p></div>"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSanitize_UnwrapsDisallowedElements(t *testing.T) {
	s := defaultSanitizer()
	got := s.Sanitize(`<p><marquee>wow</marquee></p>`)
	want := `<div class="generated-content"><p class="content-paragraph">wow</p></div>`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSanitize_DropsTruncatedTrailingTag(t *testing.T) {
	s := defaultSanitizer()
	got := s.Sanitize(`<p>partial<stro`)
	want := `<div class="generated-content"><p class="content-paragraph">partial</p></div>`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSanitize_DeduplicatesRepeatedParagraphs(t *testing.T) {
	s := defaultSanitizer()

	got := s.Sanitize(`<p>Same text.</p><p>Same text.</p><p>Different.</p>`)
	want := "<div class=\"generated-content\"><p class=\"content-paragraph\">Same text.</p>\n<p class=\"content-paragraph\">Different.</p></div>"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	// Attribute and whitespace differences do not defeat the comparison.
	got = s.Sanitize("<p>Same  text.</p><p class=\"x\">Same text.</p>")
	if strings.Count(got, "Same") != 1 {
		t.Errorf("normalized duplicate survived: %q", got)
	}

	// Duplicates arriving as plain text are caught after promotion.
	got = s.Sanitize("dup\n\ndup")
	if strings.Count(got, "dup") != 1 {
		t.Errorf("promoted duplicate survived: %q", got)
	}
}

func TestSanitize_KeepsExistingClasses(t *testing.T) {
	s := defaultSanitizer()
	got := s.Sanitize(`<p class="custom">hi</p>`)
	want := `<div class="generated-content"><p class="custom">hi</p></div>`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSanitize_PreservesPreformattedText(t *testing.T) {
	s := defaultSanitizer()
	got := s.Sanitize("<pre>line1\n  line2</pre>")
	want := "<div class=\"generated-content\"><pre>line1\n  line2</pre></div>"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSanitize_CollapsesWhitespace(t *testing.T) {
	s := defaultSanitizer()
	got := s.Sanitize("<p>a   b\n\tc</p>")
	want := `<div class="generated-content"><p class="content-paragraph">a b c</p></div>`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSanitize_MinimalPolicyExactOutput(t *testing.T) {
	policy := DefaultPolicy()
	policy.Wrap = false
	policy.InjectClasses = false
	s := NewSanitizer(policy, nil)

	if got := s.Sanitize("<p>ok</p>"); got != "<p>ok</p>" {
		t.Errorf("Sanitize(<p>ok</p>) = %q, want <p>ok</p>", got)
	}
}

func TestSanitize_DiagramCandidatePassthrough(t *testing.T) {
	isDiagram := func(text string) bool { return strings.HasPrefix(text, "graph ") }
	s := NewSanitizer(DefaultPolicy(), isDiagram)

	input := "graph TD\nA[Start] --> B[End]"
	if got := s.Sanitize(input); got != input {
		t.Errorf("diagram candidate was rewritten: got %q, want %q", got, input)
	}
}

func TestSanitize_UnrecoverableCandidateBecomesProse(t *testing.T) {
	// Looks like a diagram (connector token) but recovery would yield no
	// nodes or edges. Such input must take the prose path, never escape the
	// pipeline as bare text.
	s := NewSanitizer(DefaultPolicy(), diagram.Recoverable)

	input := "graph TD\nA -->"
	want := `<div class="generated-content"><p class="content-paragraph">graph TD<br/>A --></p></div>`
	got := s.Sanitize(input)
	if got != want {
		t.Errorf("Sanitize(%q) = %q, want %q", input, got, want)
	}
	if again := s.Sanitize(got); again != got {
		t.Errorf("not idempotent: %q", again)
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	s := defaultSanitizer()

	inputs := []string{
		"Hello world",
		"Para one.\n\nPara two.",
		"First\nSecond",
		`<p>hi</p><script>alert(1)</script>`,
		`<p><strong>unclosed`,
		`<p>outer<p>inner</p></p>`,
		`<a href="javascript:x">y</a>`,
		"<pre>keep\n  structure</pre>",
		`<p>a &amp; b</p>`,
		`<h2>Title</h2><ul><li>one</li><li>two</li></ul>`,
		`<p>Same.</p><p>Same.</p>`,
	}
	for _, input := range inputs {
		once := s.Sanitize(input)
		twice := s.Sanitize(once)
		if once != twice {
			t.Errorf("not idempotent for %q:\n first: %q\nsecond: %q", input, once, twice)
		}
	}
}

func TestSanitize_HostileInputNeverPanics(t *testing.T) {
	s := defaultSanitizer()
	inputs := []string{
		strings.Repeat("<p>", 500),
		strings.Repeat("</p>", 500),
		"<",
		"<!",
		"<!-- unterminated",
		"<script>never closed",
		`<p foo=">" onclick='a'>x`,
		"a < b > c",
	}
	for _, input := range inputs {
		_ = s.Sanitize(input) // must not panic
		once := s.Sanitize(input)
		if twice := s.Sanitize(once); once != twice {
			t.Errorf("not idempotent for hostile %q", input)
		}
	}
}
