package ingest

import "strings"

// Default chunking strategy: 1000-rune chunks with 150 runes of overlap
// between consecutive chunks.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 150
)

// separators are tried in order; the splitter prefers breaking on
// paragraph boundaries, then lines, then words, and falls back to a hard
// rune cut.
var separators = []string{"\n\n", "\n", " "}

// SplitText divides text into chunks of at most chunkSize runes with
// roughly overlap runes shared between neighbours. Whitespace-only chunks
// are dropped.
func SplitText(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = DefaultChunkOverlap
	}

	pieces := splitRecursive(text, separators, chunkSize)
	return mergePieces(pieces, chunkSize, overlap)
}

// splitRecursive breaks text on the first separator that appears, recursing
// with finer separators for any piece still over the size limit.
func splitRecursive(text string, seps []string, chunkSize int) []string {
	if len([]rune(text)) <= chunkSize {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{text}
	}

	if len(seps) == 0 {
		return hardSplit(text, chunkSize)
	}

	sep := seps[0]
	if !strings.Contains(text, sep) {
		return splitRecursive(text, seps[1:], chunkSize)
	}

	var out []string
	for _, part := range strings.Split(text, sep) {
		out = append(out, splitRecursive(part, seps[1:], chunkSize)...)
	}
	return out
}

// hardSplit cuts text into fixed-size rune windows when no separator can
// produce small enough pieces.
func hardSplit(text string, chunkSize int) []string {
	runes := []rune(text)
	var out []string
	for start := 0; start < len(runes); start += chunkSize {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}

// mergePieces packs small pieces back into chunks close to chunkSize,
// carrying the tail of each finished chunk into the next one as overlap.
func mergePieces(pieces []string, chunkSize, overlap int) []string {
	var chunks []string
	var current []rune

	flush := func() {
		chunk := strings.TrimSpace(string(current))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if overlap > 0 && len(current) > overlap {
			current = append([]rune(nil), current[len(current)-overlap:]...)
		} else {
			current = nil
		}
	}

	for _, piece := range pieces {
		runes := []rune(piece)
		if len(current) > 0 && len(current)+1+len(runes) > chunkSize {
			flush()
			// The carried overlap may still not leave room for a large
			// piece; start the next chunk clean in that case.
			if len(current)+1+len(runes) > chunkSize {
				current = nil
			}
		}
		if len(current) > 0 {
			current = append(current, ' ')
		}
		current = append(current, runes...)
	}

	chunk := strings.TrimSpace(string(current))
	if chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}
