package sanitize

import "testing"

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text untouched", "thanks, sounds good", "thanks, sounds good"},
		{"tags removed", "<b>Hi</b> there", "Hi there"},
		{"block tags become line breaks", "<p>First</p><p>Second</p>", "First\nSecond"},
		{"br becomes line break", "one<br>two<br/>three", "one\ntwo\nthree"},
		{"entities decoded", "a &amp; b &lt;ok&gt;", "a & b <ok>"},
		{"encoded tags stripped after decode", "&lt;script&gt;alert(1)&lt;/script&gt;", "alert(1)"},
		{"nbsp collapses to space", "hello&nbsp;world", "hello world"},
		{"surrounding whitespace trimmed", "  <div>reply</div>  ", "reply"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripHTML(tt.input); got != tt.want {
				t.Errorf("StripHTML(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
