package util

import (
	"strings"
	"testing"
)

func TestGenerateNumericOTP(t *testing.T) {
	code, err := GenerateNumericOTP(6)
	if err != nil {
		t.Fatalf("GenerateNumericOTP returned error: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("expected 6 digits, got %q", code)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			t.Fatalf("expected only digits, got %q", code)
		}
	}

	fallback, err := GenerateNumericOTP(0)
	if err != nil {
		t.Fatalf("GenerateNumericOTP(0) returned error: %v", err)
	}
	if len(fallback) != defaultOTPDigits {
		t.Fatalf("expected default length %d, got %d", defaultOTPDigits, len(fallback))
	}
}

func TestGenerateResetToken(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		token, err := GenerateResetToken(0)
		if err != nil {
			t.Fatalf("GenerateResetToken returned error: %v", err)
		}
		if len(token) != 32 {
			t.Fatalf("expected 32 characters, got %d", len(token))
		}
		for _, r := range token {
			if !strings.ContainsRune(resetTokenAlphabet, r) {
				t.Fatalf("unexpected character %q in %q", r, token)
			}
		}
		if _, dup := seen[token]; dup {
			t.Fatalf("duplicate token generated: %s", token)
		}
		seen[token] = struct{}{}
	}
}

func TestHashTokenIsStable(t *testing.T) {
	a := HashToken("abcDEF")
	if a != HashToken("abcDEF") {
		t.Fatal("expected identical hashes for identical input")
	}
	if a == HashToken("abcDEG") {
		t.Fatal("expected different hashes for different input")
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha256 digest, got %d chars", len(a))
	}
}
