package chunker

import (
	"strings"
	"testing"
)

func TestSplitEmptyInput(t *testing.T) {
	s := New(TextProfile())
	if chunks := s.Split("", nil); chunks != nil {
		t.Errorf("Expected no chunks for empty input, got %d", len(chunks))
	}
}

func TestSplitShortText(t *testing.T) {
	s := New(TextProfile())
	text := "Renewable energy adoption is accelerating."

	chunks := s.Split(text, nil)
	if len(chunks) != 1 {
		t.Fatalf("Expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Content != text {
		t.Errorf("Chunk content mismatch: got %q", chunks[0].Content)
	}
	if chunks[0].Metadata[MetadataChunkIndex] != "0" {
		t.Errorf("Expected chunk_index 0, got %q", chunks[0].Metadata[MetadataChunkIndex])
	}
}

func TestSplitRespectsSizeLimit(t *testing.T) {
	testCases := []struct {
		name    string
		profile Profile
		text    string
	}{
		{
			name:    "words within text profile",
			profile: Profile{Name: "text", Size: 50, Overlap: 10},
			text:    strings.Repeat("market demand is growing quickly ", 20),
		},
		{
			name:    "paragraphs within document profile",
			profile: Profile{Name: "document", Size: 100, Overlap: 20},
			text:    strings.Repeat("The solar sector expanded.\n\n", 15),
		},
		{
			name:    "unbroken run of characters",
			profile: Profile{Name: "text", Size: 30, Overlap: 5},
			text:    strings.Repeat("x", 200),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			chunks := New(tc.profile).Split(tc.text, nil)
			if len(chunks) == 0 {
				t.Fatal("Expected chunks, got none")
			}
			for i, chunk := range chunks {
				if len(chunk.Content) > tc.profile.Size {
					t.Errorf("Chunk %d exceeds size limit: %d > %d", i, len(chunk.Content), tc.profile.Size)
				}
				if chunk.Content == "" {
					t.Errorf("Chunk %d is empty", i)
				}
			}
		})
	}
}

func TestSplitOverlapCarriesContext(t *testing.T) {
	s := New(Profile{Name: "test", Size: 20, Overlap: 10})
	text := "aa bb cc dd ee ff gg hh ii jj"

	chunks := s.Split(text, nil)
	if len(chunks) < 2 {
		t.Fatalf("Expected multiple chunks, got %d", len(chunks))
	}

	// Consecutive chunks share their boundary words.
	for i := 1; i < len(chunks); i++ {
		firstWord := strings.Fields(chunks[i].Content)[0]
		if !strings.Contains(chunks[i-1].Content, firstWord) {
			t.Errorf("Chunk %d does not overlap with chunk %d: %q / %q",
				i, i-1, chunks[i-1].Content, chunks[i].Content)
		}
	}
}

func TestSplitPrefersParagraphBoundaries(t *testing.T) {
	s := New(Profile{Name: "test", Size: 60, Overlap: 0})
	text := "First paragraph about market trends.\n\nSecond paragraph about growth."

	chunks := s.Split(text, nil)
	if len(chunks) != 2 {
		t.Fatalf("Expected 2 chunks, got %d: %v", len(chunks), chunks)
	}
	if chunks[0].Content != "First paragraph about market trends." {
		t.Errorf("First chunk not split at paragraph boundary: %q", chunks[0].Content)
	}
	if chunks[1].Content != "Second paragraph about growth." {
		t.Errorf("Second chunk not split at paragraph boundary: %q", chunks[1].Content)
	}
}

func TestSplitMetadataPropagation(t *testing.T) {
	s := New(Profile{Name: "test", Size: 20, Overlap: 5})
	text := "one two three four five six seven eight nine ten"

	chunks := s.Split(text, map[string]string{"document_id": "doc-1"})
	if len(chunks) < 2 {
		t.Fatalf("Expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if chunk.Metadata["document_id"] != "doc-1" {
			t.Errorf("Chunk %d lost caller metadata", i)
		}
		if got := chunk.Metadata[MetadataChunkIndex]; got == "" {
			t.Errorf("Chunk %d missing chunk_index", i)
		}
	}
	if chunks[0].Metadata[MetadataChunkIndex] == chunks[1].Metadata[MetadataChunkIndex] {
		t.Error("Chunk indexes are not sequential")
	}
}

func TestSplitPresetChunkIndexPreserved(t *testing.T) {
	s := New(Profile{Name: "test", Size: 20, Overlap: 5})
	chunks := s.Split("one two three four five six seven", map[string]string{
		MetadataChunkIndex: "42",
	})
	for i, chunk := range chunks {
		if chunk.Metadata[MetadataChunkIndex] != "42" {
			t.Errorf("Chunk %d overwrote preset chunk_index: %q", i, chunk.Metadata[MetadataChunkIndex])
		}
	}
}

func TestSplitMetadataCopied(t *testing.T) {
	s := New(TextProfile())
	meta := map[string]string{"document_id": "doc-1"}
	chunks := s.Split("short text", meta)

	chunks[0].Metadata["document_id"] = "changed"
	if meta["document_id"] != "doc-1" {
		t.Error("Chunk metadata shares storage with caller map")
	}
}

func TestProfileDefaults(t *testing.T) {
	if p := TextProfile(); p.Size != 500 || p.Overlap != 50 {
		t.Errorf("Unexpected text profile: %+v", p)
	}
	if p := DocumentProfile(); p.Size != 1000 || p.Overlap != 200 {
		t.Errorf("Unexpected document profile: %+v", p)
	}

	// Invalid values fall back to the text profile.
	s := New(Profile{Size: -1, Overlap: -1})
	if s.Profile().Size != 500 {
		t.Errorf("Expected size fallback to 500, got %d", s.Profile().Size)
	}
}
