package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Split cuts text into ordered chunks of at most max bytes. Boundaries are
// picked in order of preference: paragraph breaks, line breaks, sentence ends,
// then a hard slice. Separators stay attached to the preceding piece, so the
// plain concatenation of the returned chunks equals the input exactly.
//
// The effective packing target is balanced across the minimum number of
// chunks, so a text slightly over max splits near its midpoint instead of
// producing one full chunk and one sliver.
func Split(text string, max int) []string {
	if max <= 0 || len(text) <= max {
		return []string{text}
	}

	chunkCount := (len(text) + max - 1) / max
	target := (len(text) + chunkCount - 1) / chunkCount

	return split(text, target, max, 0)
}

var stages = []func(string) []string{
	func(s string) []string { return strings.SplitAfter(s, "\n\n") },
	func(s string) []string { return strings.SplitAfter(s, "\n") },
	splitSentences,
}

func split(text string, target int, max int, stage int) []string {
	if len(text) <= max {
		return []string{text}
	}
	if stage >= len(stages) {
		return mergeTail(hardSplit(text, target), max)
	}

	parts := stages[stage](text)
	if len(parts) <= 1 {
		//separator not present at this level, try the next one
		return split(text, target, max, stage+1)
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, part := range parts {
		if len(part) > max {
			flush()
			chunks = append(chunks, split(part, target, max, stage+1)...)
			continue
		}
		if current.Len() > 0 && current.Len()+len(part) > target {
			flush()
		}
		current.WriteString(part)
	}
	flush()

	return mergeTail(chunks, max)
}

// mergeTail folds a trailing remainder into its predecessor. Packing toward
// the balanced target can leave the last few parts as a tiny extra chunk;
// whenever the final two chunks still fit under max together they should have
// been one chunk.
func mergeTail(chunks []string, max int) []string {
	n := len(chunks)
	if n >= 2 && len(chunks[n-2])+len(chunks[n-1]) <= max {
		merged := chunks[n-2] + chunks[n-1]
		chunks = append(chunks[:n-2], merged)
	}
	return chunks
}

var sentenceEndRe = regexp.MustCompile(`[.!?]+\s+`)

// splitSentences cuts after end-of-sentence punctuation followed by whitespace.
func splitSentences(text string) []string {
	bounds := sentenceEndRe.FindAllStringIndex(text, -1)
	if len(bounds) == 0 {
		return []string{text}
	}

	var parts []string
	start := 0
	for _, b := range bounds {
		parts = append(parts, text[start:b[1]])
		start = b[1]
	}
	if start < len(text) {
		parts = append(parts, text[start:])
	}
	return parts
}

// hardSplit slices by byte count, backing off to the nearest rune boundary.
func hardSplit(text string, size int) []string {
	var chunks []string
	for len(text) > size {
		cut := size
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if cut == 0 {
			cut = size
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	if len(text) > 0 {
		chunks = append(chunks, text)
	}
	return chunks
}
