package chunker

import (
	"strings"
	"testing"
)

func TestSplit_SmallTextSingleChunk(t *testing.T) {
	text := "short text that fits"
	chunks := Split(text, 1000)

	if len(chunks) != 1 {
		t.Fatalf("Expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != text {
		t.Errorf("Single chunk should equal input, got %q", chunks[0])
	}
}

func TestSplit_BoundsAndReconstruction(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 200; i++ {
		sb.WriteString("A paragraph with some sentences. It keeps going for a while.\nA second line inside it.\n\n")
	}
	text := sb.String()
	max := 700

	chunks := Split(text, max)

	if len(chunks) < 2 {
		t.Fatalf("Expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > max {
			t.Errorf("Chunk %d exceeds max: %d > %d", i, len(c), max)
		}
		if len(c) == 0 {
			t.Errorf("Chunk %d is empty", i)
		}
	}
	if strings.Join(chunks, "") != text {
		t.Error("Concatenated chunks do not reconstruct the input")
	}
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("One sentence here. Another one there. ", 500)

	first := Split(text, 1000)
	second := Split(text, 1000)

	if len(first) != len(second) {
		t.Fatalf("Chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("Chunk %d differs between runs", i)
		}
	}
}

func TestSplit_BalancedParagraphBoundary(t *testing.T) {
	// Two paragraphs slightly over the limit together. The split should land
	// on the paragraph boundary near the midpoint, not at a hard cut.
	para := strings.Repeat("Sentence content providing bulk. ", 50) //~1650 chars
	text := para + "\n\n" + para
	max := len(text) - 100

	chunks := Split(text, max)

	if len(chunks) != 2 {
		t.Fatalf("Expected exactly 2 chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0], "\n\n") {
		t.Errorf("First chunk should end at the paragraph boundary, ends with %q", chunks[0][len(chunks[0])-10:])
	}
	mid := len(text) / 2
	deviation := len(chunks[0]) - mid
	if deviation < 0 {
		deviation = -deviation
	}
	if deviation > len(text)/10 {
		t.Errorf("Split point %d too far from midpoint %d", len(chunks[0]), mid)
	}
}

func TestSplit_NoTrailingSliver(t *testing.T) {
	//mixed paragraph sizes that do not divide the balanced target evenly
	short := strings.Repeat("a", 99) + "\n\n"
	long := strings.Repeat("b", 155) + "\n\n"
	var sb strings.Builder
	for sb.Len() < 320000 {
		sb.WriteString(short)
		sb.WriteString(long)
	}
	text := sb.String()
	max := 250000

	chunks := Split(text, max)

	if len(chunks) != 2 {
		t.Fatalf("Expected exactly 2 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > max {
			t.Errorf("Chunk %d exceeds max: %d > %d", i, len(c), max)
		}
	}
	if !strings.HasSuffix(chunks[0], "\n\n") {
		t.Error("First chunk should end at a paragraph boundary")
	}
	mid := len(text) / 2
	deviation := len(chunks[0]) - mid
	if deviation < 0 {
		deviation = -deviation
	}
	if deviation > len(text)/10 {
		t.Errorf("Split point %d too far from midpoint %d", len(chunks[0]), mid)
	}
	if strings.Join(chunks, "") != text {
		t.Error("Reconstruction failed")
	}
}

func TestSplit_SentenceFallback(t *testing.T) {
	//no paragraph or line breaks available
	text := strings.Repeat("A fairly short sentence ends here. ", 100)
	max := 500

	chunks := Split(text, max)

	for i, c := range chunks {
		if len(c) > max {
			t.Fatalf("Chunk %d exceeds max: %d", i, len(c))
		}
	}
	for i, c := range chunks[:len(chunks)-1] {
		if !strings.HasSuffix(c, ". ") {
			t.Errorf("Chunk %d did not split at a sentence boundary: %q", i, c[len(c)-10:])
		}
	}
	if strings.Join(chunks, "") != text {
		t.Error("Reconstruction failed")
	}
}

func TestSplit_HardSliceLastResort(t *testing.T) {
	text := strings.Repeat("x", 5000) //no separators at all
	max := 1200

	chunks := Split(text, max)

	total := 0
	for i, c := range chunks {
		if len(c) > max {
			t.Errorf("Chunk %d exceeds max: %d", i, len(c))
		}
		total += len(c)
	}
	if total != len(text) {
		t.Errorf("Lost content: got %d bytes, want %d", total, len(text))
	}
}

func TestSplit_RuneSafety(t *testing.T) {
	text := strings.Repeat("héllo wörld ", 400) //multibyte runes, no sentence ends
	chunks := Split(text, 333)

	for i := range chunks {
		if !strings.HasPrefix(text, strings.Join(chunks[:i+1], "")) {
			t.Fatalf("Chunk %d breaks reconstruction", i)
		}
	}
	if strings.Join(chunks, "") != text {
		t.Error("Reconstruction failed")
	}
}
