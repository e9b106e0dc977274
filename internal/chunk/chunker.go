// Package chunk splits raw text into overlapping fragments on line
// boundaries. Chunks never cut a line in half, and every chunk after the
// first is seeded with the trailing lines of its predecessor so that a
// retrieval hit carries enough surrounding prose to be useful on its own.
package chunk

import "strings"

const (
	// DefaultSize is the target chunk size in characters. Sized for the
	// embedding model's context window with headroom (roughly 800 CJK
	// characters per chunk).
	DefaultSize = 800

	// DefaultOverlapRatio is the fraction of the chunk size carried over
	// into the next chunk as overlap.
	DefaultOverlapRatio = 0.18
)

// Chunker splits text into chunks of roughly Size characters with
// Overlap characters of line-aligned overlap between consecutive chunks.
type Chunker struct {
	Size    int
	Overlap int
}

// New returns a Chunker with the given target size and overlap.
// Non-positive size falls back to DefaultSize; non-positive overlap falls
// back to DefaultOverlapRatio of the size. Overlap is capped below the size
// so a chunk always has room for new content.
func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap <= 0 {
		overlap = int(float64(size) * DefaultOverlapRatio)
	}
	if overlap >= size {
		overlap = size / 2
	}
	return &Chunker{Size: size, Overlap: overlap}
}

// Split breaks text into chunks. Guarantees:
//
//   - any non-empty input yields at least one chunk
//   - chunk order matches source order
//   - ignoring overlap regions, concatenating the chunks reconstructs the
//     original line sequence (no line is dropped)
//
// Splitting happens only on line boundaries. A single line longer than the
// target size becomes its own oversized chunk rather than being cut.
func (c *Chunker) Split(text string) []string {
	if text == "" {
		return nil
	}

	lines := strings.Split(text, "\n")
	var chunks []string
	var current []string
	currentSize := 0

	for _, line := range lines {
		lineSize := len(line)
		if currentSize+lineSize > c.Size && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n"))

			// Seed the next chunk with the trailing overlap of this one,
			// rounded down to whole lines.
			current = c.overlapLines(current)
			currentSize = joinedLen(current)
			current = append(current, line)
			currentSize += lineSize
		} else {
			current = append(current, line)
			currentSize += lineSize
		}
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, "\n"))
	}

	return chunks
}

// overlapLines returns the trailing whole lines of chunk whose combined
// length fits within the overlap budget. A line that would only partially
// fit is dropped entirely, so the overlap never starts mid-line.
func (c *Chunker) overlapLines(chunkLines []string) []string {
	if c.Overlap <= 0 {
		return nil
	}
	total := 0
	start := len(chunkLines)
	for i := len(chunkLines) - 1; i >= 0; i-- {
		lineLen := len(chunkLines[i])
		if i < len(chunkLines)-1 {
			lineLen++ // newline between overlap lines
		}
		if total+lineLen > c.Overlap {
			break
		}
		total += lineLen
		start = i
	}
	if start == len(chunkLines) {
		return nil
	}
	// Copy so the emitted chunk's backing array is not shared.
	out := make([]string, len(chunkLines)-start)
	copy(out, chunkLines[start:])
	return out
}

func joinedLen(lines []string) int {
	if len(lines) == 0 {
		return 0
	}
	n := len(lines) - 1 // newlines
	for _, l := range lines {
		n += len(l)
	}
	return n
}
