package embedding

import (
	"context"
	"math"
	"testing"
)

func TestDeterministicEmbeddingStable(t *testing.T) {
	p := NewDeterministicProvider(64)
	ctx := context.Background()

	testCases := []string{
		"renewable energy markets",
		"What markets are growing?",
		"",
	}

	for _, text := range testCases {
		first, err := p.EmbedQuery(ctx, text)
		if err != nil {
			t.Fatalf("EmbedQuery failed: %v", err)
		}
		second, err := p.EmbedQuery(ctx, text)
		if err != nil {
			t.Fatalf("EmbedQuery failed: %v", err)
		}
		if len(first) != 64 {
			t.Fatalf("Expected 64 dimensions, got %d", len(first))
		}
		for i := range first {
			if first[i] != second[i] {
				t.Fatalf("Vector for %q not stable at dimension %d: %v != %v", text, i, first[i], second[i])
			}
		}
	}
}

func TestDeterministicEmbeddingUnitLength(t *testing.T) {
	p := NewDeterministicProvider(128)
	vector, err := p.EmbedQuery(context.Background(), "electric vehicle demand")
	if err != nil {
		t.Fatalf("EmbedQuery failed: %v", err)
	}

	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if math.Abs(norm-1) > 1e-3 {
		t.Errorf("Expected unit-length vector, got norm %f", norm)
	}
}

func TestDeterministicEmbeddingDistinctTexts(t *testing.T) {
	p := NewDeterministicProvider(64)
	ctx := context.Background()

	a, _ := p.EmbedQuery(ctx, "solar power")
	b, _ := p.EmbedQuery(ctx, "wind power")

	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("Different texts produced identical vectors")
	}
}

func TestDeterministicEmbedDocuments(t *testing.T) {
	p := NewDeterministicProvider(32)
	ctx := context.Background()

	texts := []string{"alpha", "beta", "gamma"}
	vectors, err := p.EmbedDocuments(ctx, texts)
	if err != nil {
		t.Fatalf("EmbedDocuments failed: %v", err)
	}
	if len(vectors) != len(texts) {
		t.Fatalf("Expected %d vectors, got %d", len(texts), len(vectors))
	}

	// Batch output matches single embedding of the same text.
	single, _ := p.EmbedQuery(ctx, "beta")
	for i := range single {
		if vectors[1][i] != single[i] {
			t.Fatal("Batch embedding differs from single embedding for the same text")
		}
	}
}

func TestDeterministicDefaultDimensions(t *testing.T) {
	p := NewDeterministicProvider(0)
	if p.Dimensions() != DefaultDimensions {
		t.Errorf("Expected default dimensions %d, got %d", DefaultDimensions, p.Dimensions())
	}
}
