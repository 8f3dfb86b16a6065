package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strings"
	"time"

	"docrag/config"
	"docrag/internal/adapter/embedding"
	"docrag/internal/adapter/store"
	"docrag/internal/domain"
	"docrag/internal/usecase"
)

func main() {
	dir := flag.String("index", ".", "Path to a project with a docrag index")
	query := flag.String("q", "", "Query to run against the project index")
	topK := flag.Int("k", 10, "Number of results")
	synthetic := flag.Int("synthetic", 0, "Benchmark a fresh flat index of N synthetic chunks instead")
	dim := flag.Int("dim", 384, "Embedding dimension for -synthetic")
	flag.Parse()

	ctx := context.Background()
	switch {
	case *synthetic > 0:
		if err := runSynthetic(ctx, *synthetic, *dim, *topK); err != nil {
			fmt.Fprintf(os.Stderr, "Benchmark failed: %v\n", err)
			os.Exit(1)
		}
	case *query != "":
		if err := runQuery(ctx, *dir, *query, *topK); err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Println("Usage:")
		fmt.Println("  go run ./cmd/benchmark -index ./project -q \"query\"   # search quality on a real index")
		fmt.Println("  go run ./cmd/benchmark -synthetic 10000 -dim 384      # add/search/delete latency")
		os.Exit(1)
	}
}

var vocabulary = strings.Fields(`refund shipping invoice warranty contract payment policy employee
leave budget approval vendor license renewal audit security password access device travel expense
report deadline quarter revenue customer support ticket escalation manager review training safety`)

func syntheticText(r *rand.Rand, words int) string {
	parts := make([]string, words)
	for i := range parts {
		parts[i] = vocabulary[r.Intn(len(vocabulary))]
	}
	return strings.Join(parts, " ")
}

func runSynthetic(ctx context.Context, n, dim, k int) error {
	tmp, err := os.MkdirTemp("", "docrag-bench-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	vs, err := store.OpenFlatVectorStore(tmp, dim)
	if err != nil {
		return err
	}
	defer vs.Close()

	index, err := usecase.NewEmbeddingIndex(embedding.NewHashEmbedder(dim, ""), vs)
	if err != nil {
		return err
	}

	r := rand.New(rand.NewSource(1))
	const batch = 64
	const docs = 10

	fmt.Println("FLAT INDEX BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Chunks: %d  Dimension: %d  k: %d\n\n", n, dim, k)

	var addTimes []time.Duration
	for i := 0; i < n; i += batch {
		end := min(i+batch, n)
		texts := make([]string, 0, end-i)
		metas := make([]domain.Metadata, 0, end-i)
		for j := i; j < end; j++ {
			texts = append(texts, syntheticText(r, 40))
			metas = append(metas, domain.Metadata{DocumentID: int64(j % docs), PageNumber: j/docs + 1, ChunkIndex: j})
		}
		start := time.Now()
		if _, err := index.Add(ctx, texts, metas, nil); err != nil {
			return err
		}
		addTimes = append(addTimes, time.Since(start))
	}
	report(fmt.Sprintf("add (batch of %d)", batch), addTimes)

	var searchTimes, filteredTimes []time.Duration
	for i := 0; i < 200; i++ {
		q := syntheticText(r, 6)
		start := time.Now()
		if _, err := index.Search(ctx, q, k, nil); err != nil {
			return err
		}
		searchTimes = append(searchTimes, time.Since(start))

		start = time.Now()
		if _, err := index.Search(ctx, q, 2*k, domain.DocumentFilter(int64(i%docs))); err != nil {
			return err
		}
		filteredTimes = append(filteredTimes, time.Since(start))
	}
	report("search", searchTimes)
	report("search (doc filter)", filteredTimes)

	var deleteTimes []time.Duration
	removed := 0
	for d := 0; d < docs; d++ {
		start := time.Now()
		count, err := index.DeleteByDocument(ctx, int64(d))
		if err != nil {
			return err
		}
		deleteTimes = append(deleteTimes, time.Since(start))
		removed += count
	}
	report("delete_by_document", deleteTimes)
	fmt.Printf("\nRemoved %d of %d chunks\n", removed, n)
	return nil
}

func report(name string, samples []time.Duration) {
	if len(samples) == 0 {
		return
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	pct := func(p float64) time.Duration {
		return samples[int(p*float64(len(samples)-1))]
	}
	fmt.Printf("%-22s n=%-5d p50=%-12s p95=%-12s p99=%s\n", name, len(samples), pct(0.50), pct(0.95), pct(0.99))
}

func runQuery(ctx context.Context, dir, query string, k int) error {
	cfg, err := config.LoadFromDir(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	embedder, err := embedding.New(ctx, cfg)
	if err != nil {
		return err
	}
	stores, err := store.Open(ctx, cfg, dir, embedder.Dimension())
	if err != nil {
		return err
	}
	defer stores.Close()

	index, err := usecase.NewEmbeddingIndex(embedder, stores.Vectors)
	if err != nil {
		return err
	}

	stats, err := index.Stats(ctx)
	if err != nil {
		return err
	}
	if stats.TotalVectors == 0 {
		return fmt.Errorf("no embeddings - run 'docrag index' first")
	}

	fmt.Println("SEMANTIC SEARCH BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Embeddings indexed: %d\n", stats.TotalVectors)
	fmt.Printf("Model: %s (%s)\n", embedder.ModelName(), cfg.Embedding.Provider)
	fmt.Printf("Backend: %s  Dimension: %d\n\n", stats.Backend, stats.Dimension)
	fmt.Printf("Query: %q\n", query)
	fmt.Println(strings.Repeat("-", 70))

	start := time.Now()
	results, err := index.Search(ctx, query, k, nil)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	names := map[int64]string{}
	total := 0.0
	for i, r := range results {
		name, ok := names[r.Metadata.DocumentID]
		if !ok {
			if doc, err := stores.Documents.GetDocument(ctx, r.Metadata.DocumentID); err == nil {
				name = doc.Name
			}
			names[r.Metadata.DocumentID] = name
		}

		preview := strings.ReplaceAll(r.Text, "\n", " ")
		if len(preview) > 150 {
			preview = preview[:150] + "..."
		}

		// squared L2 between unit vectors: 0 identical, 2 orthogonal
		rating := "LOW"
		switch {
		case r.Distance < 0.6:
			rating = "HIGH"
		case r.Distance < 1.0:
			rating = "GOOD"
		case r.Distance < 1.4:
			rating = "OK"
		}
		total += r.Distance

		fmt.Printf("%d. [%s %.3f] %s p.%d #%d\n", i+1, rating, r.Distance, name, r.Metadata.PageNumber, r.Metadata.ChunkIndex)
		fmt.Printf("   %s\n\n", preview)
	}

	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Search time: %s\n", elapsed)
	if len(results) > 0 {
		fmt.Printf("Average distance: %.3f\n", total/float64(len(results)))
		fmt.Printf("Top-1 distance:   %.3f\n", results[0].Distance)
	}
	return nil
}
