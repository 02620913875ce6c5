package textnorm

import (
	"math/rand"
	"testing"
	"unicode/utf8"
)

func TestAddNoise_Deterministic(t *testing.T) {
	a1 := NewAugmenterWithSource(rand.NewSource(42))
	a2 := NewAugmenterWithSource(rand.NewSource(42))

	text := "Free entry to win cash now"
	for i := 0; i < 20; i++ {
		if got1, got2 := a1.AddNoise(text), a2.AddNoise(text); got1 != got2 {
			t.Fatalf("same seed diverged at call %d: %q vs %q", i, got1, got2)
		}
	}
}

func TestAddNoise_EventuallyCorrupts(t *testing.T) {
	a := NewAugmenterWithSource(rand.NewSource(7))
	text := "call this free cash lottery prize offer"

	changed := false
	for i := 0; i < 200; i++ {
		if a.AddNoise(text) != text {
			changed = true
			break
		}
	}
	if !changed {
		t.Error("200 noise applications never changed the text")
	}
}

func TestLeet_OnlySubstitutesMappedCharacters(t *testing.T) {
	a := NewAugmenterWithSource(rand.NewSource(1))
	text := "aeiostl AEIOSTL xyz"

	for i := 0; i < 100; i++ {
		got := a.leet(text)
		if utf8.RuneCountInString(got) != utf8.RuneCountInString(text) {
			t.Fatalf("leet changed length: %q", got)
		}
		// Unmapped tail must survive every application.
		if got[len(got)-3:] != "xyz" {
			t.Fatalf("leet corrupted unmapped characters: %q", got)
		}
	}
}

func TestHomoglyph_PreservesRuneCount(t *testing.T) {
	a := NewAugmenterWithSource(rand.NewSource(3))
	text := "ocean access code"

	for i := 0; i < 100; i++ {
		got := a.homoglyph(text)
		if utf8.RuneCountInString(got) != utf8.RuneCountInString(text) {
			t.Fatalf("homoglyph changed rune count: %q", got)
		}
	}
}

func TestTypo_NeverGrowsByMoreThanInput(t *testing.T) {
	a := NewAugmenterWithSource(rand.NewSource(9))
	text := "congratulations you have won"

	for i := 0; i < 100; i++ {
		got := a.typo(text)
		if utf8.RuneCountInString(got) > utf8.RuneCountInString(text) {
			t.Fatalf("typo grew the text: %q", got)
		}
	}
}
