package chunker

import (
	"strconv"
	"strings"
)

// MetadataChunkIndex is the metadata key carrying the chunk position.
// It is assigned sequentially only when the caller did not set it.
const MetadataChunkIndex = "chunk_index"

// MetadataError marks a chunk produced by the defensive fallback path.
const MetadataError = "error"

// defaultSeparators are tried in priority order; the empty separator
// splits into individual characters and always applies.
var defaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Profile is a named chunking configuration. The two shipped profiles
// serve different ingestion paths and must not be unified: callers
// depend on the specific granularity their index was built with.
type Profile struct {
	Name    string
	Size    int
	Overlap int
}

// TextProfile is the chunking configuration for direct-text ingestion.
func TextProfile() Profile {
	return Profile{Name: "text", Size: 500, Overlap: 50}
}

// DocumentProfile is the chunking configuration for uploaded documents.
func DocumentProfile() Profile {
	return Profile{Name: "document", Size: 1000, Overlap: 200}
}

// Chunk is one produced text segment with its propagated metadata.
type Chunk struct {
	Content  string
	Metadata map[string]string
}

// Splitter splits text recursively: it tries separators in priority
// order, re-splits any piece still longer than the profile size with
// the remaining separators, and reassembles adjacent pieces up to the
// size limit with the configured overlap repeated between consecutive
// chunks.
type Splitter struct {
	profile    Profile
	separators []string
}

// New creates a Splitter for the given profile. Non-positive size or
// negative overlap fall back to the text profile values.
func New(profile Profile) *Splitter {
	if profile.Size <= 0 {
		profile.Size = TextProfile().Size
	}
	if profile.Overlap < 0 || profile.Overlap >= profile.Size {
		profile.Overlap = TextProfile().Overlap
	}
	return &Splitter{
		profile:    profile,
		separators: defaultSeparators,
	}
}

// Profile returns the splitter's profile.
func (s *Splitter) Profile() Profile {
	return s.profile
}

// Split splits text into chunks, attaching a copy of metadata to each.
// Empty input yields no chunks. Every chunk inherits the caller's
// metadata; chunk_index is assigned sequentially unless already set.
func (s *Splitter) Split(text string, metadata map[string]string) []Chunk {
	if text == "" {
		return nil
	}

	pieces := s.splitText(text, s.separators)

	if len(pieces) == 0 {
		// Defensive fallback: emit a single truncated chunk tagged
		// with an error marker.
		content := text
		if len(content) > s.profile.Size {
			content = content[:s.profile.Size]
		}
		meta := cloneMetadata(metadata)
		meta[MetadataError] = "failed to split properly"
		if _, ok := meta[MetadataChunkIndex]; !ok {
			meta[MetadataChunkIndex] = "0"
		}
		return []Chunk{{Content: content, Metadata: meta}}
	}

	_, indexPreset := metadata[MetadataChunkIndex]
	chunks := make([]Chunk, 0, len(pieces))
	for i, piece := range pieces {
		meta := cloneMetadata(metadata)
		if !indexPreset {
			meta[MetadataChunkIndex] = strconv.Itoa(i)
		}
		chunks = append(chunks, Chunk{Content: piece, Metadata: meta})
	}
	return chunks
}

// splitText performs the recursive separator-preference split.
func (s *Splitter) splitText(text string, separators []string) []string {
	// Choose the first separator that occurs in the text; the empty
	// separator always matches.
	separator := separators[len(separators)-1]
	var remaining []string
	for i, sep := range separators {
		if sep == "" || strings.Contains(text, sep) {
			separator = sep
			remaining = separators[i+1:]
			break
		}
	}

	splits := splitOn(text, separator)

	var final []string
	var good []string
	for _, piece := range splits {
		if len(piece) < s.profile.Size {
			good = append(good, piece)
			continue
		}
		// Flush the accumulated short pieces, then re-split the
		// oversized piece with the remaining separators.
		if len(good) > 0 {
			final = append(final, s.mergeSplits(good, separator)...)
			good = nil
		}
		if len(remaining) == 0 {
			final = append(final, piece)
		} else {
			final = append(final, s.splitText(piece, remaining)...)
		}
	}
	if len(good) > 0 {
		final = append(final, s.mergeSplits(good, separator)...)
	}
	return final
}

// mergeSplits reassembles adjacent pieces up to the profile size,
// carrying Overlap characters of trailing context into the next chunk.
func (s *Splitter) mergeSplits(splits []string, separator string) []string {
	sepLen := len(separator)

	var chunks []string
	var current []string
	total := 0

	for _, piece := range splits {
		pieceLen := len(piece)
		joinLen := 0
		if len(current) > 0 {
			joinLen = sepLen
		}

		if total+pieceLen+joinLen > s.profile.Size && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, separator))
			// Drop leading pieces until the retained tail fits inside
			// the overlap window and leaves room for the next piece.
			for total > s.profile.Overlap ||
				(total+pieceLen+joinLen > s.profile.Size && total > 0) {
				total -= len(current[0])
				if len(current) > 1 {
					total -= sepLen
				}
				current = current[1:]
				if len(current) == 0 {
					break
				}
			}
		}

		if len(current) > 0 {
			total += sepLen
		}
		current = append(current, piece)
		total += pieceLen
	}

	if len(current) > 0 {
		if doc := strings.Join(current, separator); doc != "" {
			chunks = append(chunks, doc)
		}
	}
	return chunks
}

// splitOn splits text on separator; the empty separator splits into
// individual characters.
func splitOn(text, separator string) []string {
	var raw []string
	if separator == "" {
		raw = strings.Split(text, "")
	} else {
		raw = strings.Split(text, separator)
	}
	splits := make([]string, 0, len(raw))
	for _, piece := range raw {
		if piece != "" {
			splits = append(splits, piece)
		}
	}
	return splits
}

func cloneMetadata(metadata map[string]string) map[string]string {
	clone := make(map[string]string, len(metadata)+2)
	for k, v := range metadata {
		clone[k] = v
	}
	return clone
}
