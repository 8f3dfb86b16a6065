package config

import "testing"

func TestIsCloud(t *testing.T) {
	tests := []struct {
		provider string
		baseURL  string
		want     bool
	}{
		{"openai", "", true},
		{"compatible", "https://api.together.xyz/v1", true},
		{"compatible", "http://localhost:8080/v1", false},
		{"compatible", "http://127.0.0.1:1234/v1", false},
		{"compatible", "", true},
		{"ollama", "http://gpu-box:11434", false},
		{"hash", "", false},
	}

	for _, tt := range tests {
		if got := IsCloud(tt.provider, tt.baseURL); got != tt.want {
			t.Errorf("IsCloud(%q, %q) = %v, want %v", tt.provider, tt.baseURL, got, tt.want)
		}
	}
}
