package service

import (
	"math/rand"
	"strings"
	"testing"
)

func TestGenerateCodeDefaults(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	code := GenerateCode(CodeOptions{}, rng)
	if len(code) != 15 {
		t.Fatalf("expected default length 15, got %d (%q)", len(code), code)
	}
	for _, r := range code {
		if !strings.ContainsRune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789", r) {
			t.Fatalf("unexpected character %q in code %q", r, code)
		}
	}
}

func TestGenerateCodeCustomCharset(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	code := GenerateCode(CodeOptions{Length: 8, Chars: "ABC123"}, rng)
	if len(code) != 8 {
		t.Fatalf("expected length 8, got %d", len(code))
	}
	for _, r := range code {
		if !strings.ContainsRune("ABC123", r) {
			t.Fatalf("character %q outside charset in %q", r, code)
		}
	}
}

func TestGenerateCodeSegmented(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	code := GenerateCode(CodeOptions{
		Length:           15,
		Segmented:        true,
		SegmentLength:    4,
		SegmentSeparator: "-",
	}, rng)

	segments := strings.Split(code, "-")
	if len(segments) != 4 {
		t.Fatalf("expected 4 segments, got %d (%q)", len(segments), code)
	}
	for i, seg := range segments[:3] {
		if len(seg) != 4 {
			t.Fatalf("segment %d has length %d, want 4 (%q)", i, len(seg), code)
		}
	}
	if len(segments[3]) != 3 {
		t.Fatalf("last segment has length %d, want 3 (%q)", len(segments[3]), code)
	}
	if strings.Join(segments, "") == "" {
		t.Fatalf("empty code body")
	}
}

func TestGenerateCodeDeterministicWithSeed(t *testing.T) {
	a := GenerateCode(CodeOptions{Length: 10}, rand.New(rand.NewSource(99)))
	b := GenerateCode(CodeOptions{Length: 10}, rand.New(rand.NewSource(99)))
	if a != b {
		t.Fatalf("same seed should give same code: %q vs %q", a, b)
	}
}
