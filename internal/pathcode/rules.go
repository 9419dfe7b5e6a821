package pathcode

import "regexp"

// Rules holds the numbering-recognition policy. The reserved bands and
// marker names are tuned per document family, so callers can override them.
type Rules struct {
	// AppendixBase is the top-level ordinal band reserved for appendix-like
	// markers. Appendix A maps to AppendixBase+1, B to AppendixBase+2, etc.
	AppendixBase int

	// TableMarker and FigureMarker are the path components used for caption
	// nodes instead of a numeric ordinal.
	TableMarker  string
	FigureMarker string

	// MaxHeadingLen caps the text length considered for pattern matching.
	// Long runs of prose never match, whatever they start with.
	MaxHeadingLen int

	// ShortLineLimit and HeightRatio are the lookahead heading cues: a line
	// at most ShortLineLimit runes long whose height exceeds HeightRatio
	// times the document average is flagged as a heading candidate even
	// without recognizable numbering.
	ShortLineLimit int
	HeightRatio    float64
}

// DefaultRules returns the policy used for numbered rulebook-style documents.
func DefaultRules() Rules {
	return Rules{
		AppendixBase:   900,
		TableMarker:    "tbl",
		FigureMarker:   "fig",
		MaxHeadingLen:  200,
		ShortLineLimit: 20,
		HeightRatio:    1.3,
	}
}

var (
	// "1.2.3 Title", "4. Title", "7) Title"
	decimalRe = regexp.MustCompile(`^(\d+(?:\.\d+)*)[.)、\s]+\S`)

	// "Chapter 3", "Part II", "Section 4", "Article 12"
	chapterRe = regexp.MustCompile(`(?i)^(chapter|part)\s+(\d+|[ivxlcdm]+)\b`)
	sectionRe = regexp.MustCompile(`(?i)^section\s+(\d+)\b`)
	articleRe = regexp.MustCompile(`(?i)^(article|rule)\s+(\d+)\b`)

	// "Appendix A", "Annex 2"
	appendixRe = regexp.MustCompile(`(?i)^(appendix|annex)\s*([a-z]|\d+)\b`)

	// "Table 3", "Fig. 2.1", "Figure 7"
	captionRe = regexp.MustCompile(`(?i)^(table|tbl|figure|fig)[.\s]+(\d+(?:\.\d+)*)`)

	// "(a) ...", "B. ..."
	letterRe = regexp.MustCompile(`^\(?([a-zA-Z])[.)]\s+`)
)

var romanValues = map[byte]int{'i': 1, 'v': 5, 'x': 10, 'l': 50, 'c': 100, 'd': 500, 'm': 1000}

// romanToInt parses a lowercase roman numeral. Returns 0 for garbage.
func romanToInt(s string) int {
	total := 0
	prev := 0
	for i := len(s) - 1; i >= 0; i-- {
		v, ok := romanValues[s[i]]
		if !ok {
			return 0
		}
		if v < prev {
			total -= v
		} else {
			total += v
			prev = v
		}
	}
	return total
}
