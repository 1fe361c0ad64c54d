package script

import (
	"regexp"
	"strings"
	"testing"

	"reelforge/internal/fault"
)

func TestSplitMarkerBased(t *testing.T) {
	raw := "Intro one.\n\n[CORTE]\n\nNews one.\n\n[CORTE]\n\nPor hoje."

	segments, err := Split(raw)
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}

	expected := []struct {
		kind Kind
		text string
	}{
		{KindIntro, "Intro one."},
		{KindNews, "News one."},
		{KindOutro, "Por hoje."},
	}
	if len(segments) != len(expected) {
		t.Fatalf("expected %d segments, got %d: %+v", len(expected), len(segments), segments)
	}
	for i, want := range expected {
		if segments[i].Index != i {
			t.Errorf("segment %d: index = %d", i, segments[i].Index)
		}
		if segments[i].Kind != want.kind {
			t.Errorf("segment %d: kind = %s, want %s", i, segments[i].Kind, want.kind)
		}
		if segments[i].Text != want.text {
			t.Errorf("segment %d: text = %q, want %q", i, segments[i].Text, want.text)
		}
	}
}

func TestSplitHeadingBased(t *testing.T) {
	raw := "Fala cambada.\n\nNotícia 1: BTC sobe.\n\nDetalhe.\n\nE para finalizar: Sigo de olho."

	segments, err := Split(raw)
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}

	expected := []struct {
		kind Kind
		text string
	}{
		{KindIntro, "Fala cambada."},
		{KindNews, "Notícia 1: BTC sobe.\n\nDetalhe."},
		{KindOutro, "E para finalizar: Sigo de olho."},
	}
	if len(segments) != len(expected) {
		t.Fatalf("expected %d segments, got %d: %+v", len(expected), len(segments), segments)
	}
	for i, want := range expected {
		if segments[i].Kind != want.kind {
			t.Errorf("segment %d: kind = %s, want %s", i, segments[i].Kind, want.kind)
		}
		if segments[i].Text != want.text {
			t.Errorf("segment %d: text = %q, want %q", i, segments[i].Text, want.text)
		}
	}
}

func TestSplitMarkerWinsOverHeadings(t *testing.T) {
	raw := "Abertura.\n\n[CORTE]\n\nNotícia 1: algo aconteceu.\n\nMais contexto.\n\n[CORTE]\n\nPor hoje é só."

	segments, err := Split(raw)
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}
	if len(segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segments))
	}
	if segments[1].Kind != KindNews {
		t.Errorf("middle segment kind = %s, want news", segments[1].Kind)
	}
	if !strings.Contains(segments[1].Text, "Notícia 1:") {
		t.Errorf("heading should stay inside the marker piece, got %q", segments[1].Text)
	}
}

func TestSplitEmptyScript(t *testing.T) {
	for _, raw := range []string{"", "   \n\t\n  "} {
		_, err := Split(raw)
		if !fault.Is(err, fault.InvalidInput) {
			t.Errorf("Split(%q) error = %v, want InvalidInput", raw, err)
		}
	}
}

func TestSplitMarkersOnly(t *testing.T) {
	_, err := Split("[CORTE]\n\n[CORTE]")
	if !fault.Is(err, fault.InvalidInput) {
		t.Fatalf("error = %v, want InvalidInput", err)
	}
}

func TestSplitSingleParagraph(t *testing.T) {
	segments, err := Split("Só um parágrafo curto sobre Bitcoin.")
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	if segments[0].Kind != KindIntro {
		t.Errorf("kind = %s, want intro", segments[0].Kind)
	}
}

func TestSplitNoHeadingsMultipleParagraphs(t *testing.T) {
	segments, err := Split("Primeiro parágrafo.\n\nSegundo parágrafo.\n\nTerceiro parágrafo.")
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d: %+v", len(segments), segments)
	}
	if segments[0].Kind != KindIntro || segments[1].Kind != KindNews {
		t.Errorf("kinds = %s, %s; want intro, news", segments[0].Kind, segments[1].Kind)
	}
	if segments[1].Text != "Segundo parágrafo.\n\nTerceiro parágrafo." {
		t.Errorf("news text = %q", segments[1].Text)
	}
}

func TestSplitStripsSourceNoise(t *testing.T) {
	raw := "BTC subiu 5% (Fonte: CoinDesk) em 12/03/2024 nesta semana."

	segments, err := Split(raw)
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}
	text := segments[0].Text
	if strings.Contains(text, "Fonte") || strings.Contains(text, "12/03") {
		t.Errorf("noise survived: %q", text)
	}
	if text != "BTC subiu 5% em nesta semana." {
		t.Errorf("text = %q", text)
	}
}

func TestSplitLongOutroStaysNews(t *testing.T) {
	long := strings.Repeat("Este trecho final é comprido demais para soar como encerramento. ", 4)
	raw := "Abertura.\n\n[CORTE]\n\nPrimeira notícia.\n\n[CORTE]\n\n" + long

	segments, err := Split(raw)
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}
	last := segments[len(segments)-1]
	if last.Kind != KindNews {
		t.Errorf("long trailing piece kind = %s, want news", last.Kind)
	}
}

func TestSplitRejectsOversizedScript(t *testing.T) {
	raw := strings.Repeat("a", MaxScriptChars+1)
	_, err := Split(raw)
	if !fault.Is(err, fault.InvalidInput) {
		t.Fatalf("error = %v, want InvalidInput", err)
	}
}

func TestSplitCoversScript(t *testing.T) {
	raw := "Fala cambada, tudo certo?\n\nNotícia 1: ETF aprovado.\n\nDetalhes do fundo.\n\nNotícia 2: Hashrate recorde.\n\nE para finalizar: Sigo de olho, até amanhã."

	segments, err := Split(raw)
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}

	squash := func(s string) string {
		return regexp.MustCompile(`\s+`).ReplaceAllString(s, " ")
	}
	var got []string
	for _, seg := range segments {
		got = append(got, seg.Text)
	}
	joined := squash(strings.Join(got, " "))
	want := squash(raw)
	if joined != want {
		t.Errorf("segments do not cover the script:\n got %q\nwant %q", joined, want)
	}
}

func TestSplitTrailingHeadingBlockIsOutro(t *testing.T) {
	raw := "Intro.\n\nNotícia 1: primeira.\n\nNotícia 2: segunda."

	segments, err := Split(raw)
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}
	if len(segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segments))
	}
	if segments[2].Kind != KindOutro {
		t.Errorf("trailing block kind = %s, want outro", segments[2].Kind)
	}
}
