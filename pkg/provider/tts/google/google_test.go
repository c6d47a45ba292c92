package google

import "testing"

func TestLanguageFromVoiceID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		id   string
		want string
	}{
		{id: "fr-FR-Neural2-B", want: "fr-FR"},
		{id: "en-US-Neural2-D", want: "en-US"},
		{id: "ta-IN-Standard-A", want: "ta-IN"},
		{id: "weird", want: "weird"},
	}

	for _, tt := range tests {
		if got := languageFromVoiceID(tt.id); got != tt.want {
			t.Errorf("languageFromVoiceID(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}
