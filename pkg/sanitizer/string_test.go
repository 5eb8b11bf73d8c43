package sanitizer

import "testing"

func TestTrimAndNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "basic trim",
			input: "  hello  ",
			want:  "hello",
		},
		{
			name:  "multiple spaces",
			input: "hello    world",
			want:  "hello world",
		},
		{
			name:  "tabs and newlines",
			input: "hello\t\nworld",
			want:  "hello world",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
		{
			name:  "only whitespace",
			input: "   ",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrimAndNormalize(tt.input)
			if got != tt.want {
				t.Errorf("TrimAndNormalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizePurpose(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "preserves case",
			input: "Quarterly Review",
			want:  "Quarterly Review",
		},
		{
			name:  "folds whitespace only",
			input: "  Quarterly\t Review ",
			want:  "Quarterly Review",
		},
		{
			name:  "different wording stays different",
			input: "Q3 review",
			want:  "Q3 review",
		},
		{
			name:  "idempotent",
			input: NormalizePurpose("  a   b "),
			want:  "a b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizePurpose(tt.input); got != tt.want {
				t.Errorf("NormalizePurpose(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
