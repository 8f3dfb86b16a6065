package usecase

import (
	"testing"

	"docrag/internal/adapter/analyzer"
	"docrag/internal/domain"
)

func hit(page int, text string) domain.SearchResult {
	return domain.SearchResult{Text: text, Metadata: domain.Metadata{PageNumber: page, Text: text}}
}

func TestPackBudget(t *testing.T) {
	packer := NewPackUseCase(analyzer.NewWordTokenizer())

	results := []domain.SearchResult{
		hit(3, "one two three four"),
		hit(1, "five six seven"),
		hit(3, "eight nine ten eleven twelve"),
		hit(2, "small"),
	}

	packed := packer.Pack(results, 8)

	if packed.Included != 2 {
		t.Fatalf("expected 2 chunks included, got %d", packed.Included)
	}
	if packed.UsedWords != 7 {
		t.Errorf("expected 7 words used, got %d", packed.UsedWords)
	}
	want := "[Page 3] one two three four\n\n[Page 1] five six seven"
	if packed.Context != want {
		t.Errorf("unexpected context:\n%q\nwant\n%q", packed.Context, want)
	}
	// packing stops at the first overflow even though "small" would fit
	if len(packed.Citations) != 2 || packed.Citations[0] != 1 || packed.Citations[1] != 3 {
		t.Errorf("expected citations [1 3], got %v", packed.Citations)
	}
}

func TestPackCitationsUnique(t *testing.T) {
	packer := NewPackUseCase(analyzer.NewWordTokenizer())

	packed := packer.Pack([]domain.SearchResult{
		hit(5, "a"), hit(2, "b"), hit(5, "c"), hit(2, "d"), hit(9, "e"),
	}, 100)

	want := []int{2, 5, 9}
	if len(packed.Citations) != len(want) {
		t.Fatalf("expected %v, got %v", want, packed.Citations)
	}
	for i := range want {
		if packed.Citations[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, packed.Citations)
		}
	}
}

func TestPackEmpty(t *testing.T) {
	packer := NewPackUseCase(analyzer.NewWordTokenizer())

	packed := packer.Pack(nil, 10)
	if packed.Context != "" || packed.Included != 0 || len(packed.Citations) != 0 {
		t.Errorf("expected empty context, got %+v", packed)
	}

	packed = packer.Pack([]domain.SearchResult{hit(1, "too many words here")}, 2)
	if packed.Included != 0 || packed.Context != "" {
		t.Errorf("oversized first chunk must not be included, got %+v", packed)
	}
}
