package normalize

import (
	"strings"
	"testing"

	"reelforge/internal/fault"
	"reelforge/internal/profile"
)

func testVoice() profile.Voice {
	return profile.Voice{
		Name:        "test",
		VoiceID:     "v1",
		ModelID:     "m1",
		MaxTTSChars: profile.DefaultMaxTTSChars,
	}
}

func TestNormalizePreservesGreetingCasing(t *testing.T) {
	got, err := Normalize("Fala cambada! Hoje tem notícia.", testVoice())
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if !strings.HasPrefix(got, "Fala cambada") {
		t.Errorf("greeting casing changed: %q", got)
	}
}

func TestNormalizeGreetingSurvivesLexicon(t *testing.T) {
	v := testVoice()
	v.Lexicon = map[string]string{"cambada": "galera"}

	got, err := Normalize("Fala cambada, o BTC subiu.", v)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if !strings.HasPrefix(got, "Fala cambada") {
		t.Errorf("lexicon rewrote the greeting: %q", got)
	}
}

func TestNormalizeCollapsesEllipsesAndSemicolons(t *testing.T) {
	got, err := Normalize("Bitcoin subiu... muito;;; hoje", testVoice())
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if got != "Bitcoin subiu muito hoje" {
		t.Errorf("got %q", got)
	}
}

func TestNormalizeKeepsPunctuation(t *testing.T) {
	got, err := Normalize("Subiu, caiu. Fim", testVoice())
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if got != "Subiu, caiu. Fim" {
		t.Errorf("punctuation was altered: %q", got)
	}
}

func TestNormalizeAppliesLexicon(t *testing.T) {
	v := testVoice()
	v.Lexicon = map[string]string{
		"BTC":           "Bitcoin",
		"MicroStrategy": "Micro Strategy",
	}

	got, err := Normalize("A MicroStrategy comprou mais BTC.", v)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if got != "A Micro Strategy comprou mais Bitcoin." {
		t.Errorf("got %q", got)
	}
}

func TestNormalizeLexiconWholeWordsOnly(t *testing.T) {
	v := testVoice()
	v.Lexicon = map[string]string{"BTC": "Bitcoin"}

	got, err := Normalize("O par BTCUSD não muda.", v)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if strings.Contains(got, "BitcoinUSD") {
		t.Errorf("lexicon replaced inside a word: %q", got)
	}
}

func TestNormalizeNumberExpansion(t *testing.T) {
	v := testVoice()
	v.NumberExpansion = true

	got, err := Normalize("Subiu 42 por cento", v)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if got != "Subiu quarenta e dois por cento" {
		t.Errorf("got %q", got)
	}
}

func TestNormalizeNumbersLeftAloneByDefault(t *testing.T) {
	got, err := Normalize("Subiu 42 por cento", testVoice())
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if got != "Subiu 42 por cento" {
		t.Errorf("got %q", got)
	}
}

func TestNormalizeLengthBoundary(t *testing.T) {
	v := testVoice()
	v.MaxTTSChars = 20

	exact := strings.Repeat("a", 20)
	if _, err := Normalize(exact, v); err != nil {
		t.Fatalf("exact-length text should pass, got %v", err)
	}

	over := strings.Repeat("a", 21)
	if _, err := Normalize(over, v); !fault.Is(err, fault.TooLong) {
		t.Fatalf("over-length error = %v, want TooLong", err)
	}
}

func TestCardinal(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "zero"},
		{"7", "sete"},
		{"15", "quinze"},
		{"21", "vinte e um"},
		{"42", "quarenta e dois"},
		{"100", "cem"},
		{"101", "cento e um"},
		{"150", "cento e cinquenta"},
		{"234", "duzentos e trinta e quatro"},
		{"1000", "mil"},
		{"1015", "mil e quinze"},
		{"1984", "mil novecentos e oitenta e quatro"},
		{"2024", "dois mil e vinte e quatro"},
		{"1000000", "um milhão"},
		{"2500000", "dois milhões quinhentos mil"},
		{"1000000000", "um bilhão"},
	}
	for _, tc := range cases {
		if got := Cardinal(tc.in); got != tc.want {
			t.Errorf("Cardinal(%s) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
