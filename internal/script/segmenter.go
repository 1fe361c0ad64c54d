// Package script splits a raw news script into the ordered segments that are
// synthesized and rendered independently. Authors can force boundaries with
// the [CORTE] marker; otherwise headings like "Notícia 1:" drive the split.
package script

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"reelforge/internal/fault"
)

// CutMarker is the explicit segment boundary token.
const CutMarker = "[CORTE]"

// MaxScriptChars bounds accepted script length.
const MaxScriptChars = 40000

// Kind tags a segment's narrative role.
type Kind string

const (
	KindIntro Kind = "intro"
	KindNews  Kind = "news"
	KindOutro Kind = "outro"
)

// Segment is one contiguous portion of the script, rendered as a single
// audio+video unit.
type Segment struct {
	Index int
	Kind  Kind
	Text  string // cleaned text, paragraphs separated by a single blank line
	Raw   string // text as authored, before noise stripping
}

// maxOutroChars is the length under which a trailing piece counts as outro.
const maxOutroChars = 140

var (
	sourceNoteRe = regexp.MustCompile(`\((?i:fonte):[^)]*\)`)
	shortDateRe  = regexp.MustCompile(`\b\d{2}/\d{2}/\d{2}(?:\d{2})?\b`)
	spaceRunRe   = regexp.MustCompile(`[ \t]+`)
	headingRe    = regexp.MustCompile(`(?i)^not[íi]cia\s+\d+:`)
	closingRe    = regexp.MustCompile(`(?i)^e\s+para\s+finalizar:`)
)

// closingPhrases mark a short trailing piece as the sign-off.
var closingPhrases = []string{"por hoje", "sigo de olho"}

// Split parses a script into ordered segments. The cleaned segments cover
// the script in order and partition it up to whitespace and stripped
// source/date noise. Explicit cut markers win over heading detection.
func Split(raw string) ([]Segment, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fault.New(fault.InvalidInput, "script is empty")
	}
	if utf8.RuneCountInString(raw) > MaxScriptChars {
		return nil, fault.New(fault.InvalidInput, "script exceeds %d characters", MaxScriptChars)
	}

	normalized := strings.ReplaceAll(raw, "\r\n", "\n")

	var segments []Segment
	if strings.Contains(normalized, CutMarker) {
		segments = splitOnMarkers(normalized)
	} else {
		segments = splitOnHeadings(normalized)
	}

	if len(segments) == 0 {
		return nil, fault.New(fault.InvalidInput, "script has no speakable content")
	}
	for i := range segments {
		segments[i].Index = i
	}
	return segments, nil
}

// splitOnMarkers splits at each [CORTE]: first piece is the intro, the last
// is the outro when it reads like a sign-off, everything between is news.
func splitOnMarkers(s string) []Segment {
	var segments []Segment
	for _, piece := range strings.Split(s, CutMarker) {
		text := cleanBlock(piece)
		if text == "" {
			continue
		}
		segments = append(segments, Segment{Text: text, Raw: strings.TrimSpace(piece)})
	}

	for i := range segments {
		switch {
		case i == 0:
			segments[i].Kind = KindIntro
		case i == len(segments)-1 && isOutro(segments[i].Text):
			segments[i].Kind = KindOutro
		default:
			segments[i].Kind = KindNews
		}
	}
	return segments
}

// splitOnHeadings splits at paragraph headings. Everything before the first
// heading is the intro; each heading block is news; the trailing block is
// the outro.
func splitOnHeadings(s string) []Segment {
	paras := parseParagraphs(s)
	if len(paras) == 0 {
		return nil
	}

	var headings []int
	for i, p := range paras {
		if headingRe.MatchString(p.clean) || closingRe.MatchString(p.clean) {
			headings = append(headings, i)
		}
	}

	if len(headings) == 0 {
		if len(paras) == 1 {
			return []Segment{{Kind: KindIntro, Text: paras[0].clean, Raw: paras[0].raw}}
		}
		return []Segment{
			joinParagraphs(paras[:1], KindIntro),
			joinParagraphs(paras[1:], KindNews),
		}
	}

	var segments []Segment
	if headings[0] > 0 {
		segments = append(segments, joinParagraphs(paras[:headings[0]], KindIntro))
	}
	for i, start := range headings {
		end := len(paras)
		kind := KindOutro
		if i < len(headings)-1 {
			end = headings[i+1]
			kind = KindNews
		}
		segments = append(segments, joinParagraphs(paras[start:end], kind))
	}
	return segments
}

func isOutro(text string) bool {
	if utf8.RuneCountInString(text) <= maxOutroChars {
		return true
	}
	lower := strings.ToLower(text)
	for _, phrase := range closingPhrases {
		if strings.HasPrefix(lower, phrase) {
			return true
		}
	}
	return false
}

type paragraph struct {
	raw   string
	clean string
}

// parseParagraphs splits on blank lines. Within a paragraph, wrapped lines
// are joined with a single space and whitespace runs are collapsed.
func parseParagraphs(s string) []paragraph {
	var paras []paragraph
	var rawLines, cleanLines []string

	flush := func() {
		if len(cleanLines) > 0 {
			paras = append(paras, paragraph{
				raw:   strings.Join(rawLines, "\n"),
				clean: strings.Join(cleanLines, " "),
			})
		}
		rawLines, cleanLines = nil, nil
	}

	for _, line := range strings.Split(s, "\n") {
		clean := stripNoise(line)
		if strings.TrimSpace(line) == "" || clean == "" {
			flush()
			continue
		}
		rawLines = append(rawLines, strings.TrimSpace(line))
		cleanLines = append(cleanLines, clean)
	}
	flush()
	return paras
}

func joinParagraphs(paras []paragraph, kind Kind) Segment {
	raws := make([]string, len(paras))
	cleans := make([]string, len(paras))
	for i, p := range paras {
		raws[i] = p.raw
		cleans[i] = p.clean
	}
	return Segment{
		Kind: kind,
		Text: strings.Join(cleans, "\n\n"),
		Raw:  strings.Join(raws, "\n\n"),
	}
}

// cleanBlock normalizes a multi-paragraph block, keeping a single blank line
// between paragraphs.
func cleanBlock(s string) string {
	paras := parseParagraphs(s)
	cleans := make([]string, len(paras))
	for i, p := range paras {
		cleans[i] = p.clean
	}
	return strings.Join(cleans, "\n\n")
}

// stripNoise removes "(Fonte: …)" parentheticals and short dates from a
// line, then collapses whitespace runs.
func stripNoise(line string) string {
	line = sourceNoteRe.ReplaceAllString(line, " ")
	line = shortDateRe.ReplaceAllString(line, " ")
	return strings.TrimSpace(spaceRunRe.ReplaceAllString(line, " "))
}
