// Package benchmark contains Go benchmarks for the memory index, the FTS
// compiler and the query pipeline, measuring throughput and allocation
// behaviour.
package benchmark

import (
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/engine/catalog"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/engine/index"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/engine/ranker"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/engine/tokenizer"
)

// BenchmarkMemoryIndexAdd measures per-document insert throughput into the
// in-memory inverted index.
func BenchmarkMemoryIndexAdd(b *testing.B) {
	mi := index.NewMemoryIndex()
	b.ReportAllocs()
	i := 0
	for b.Loop() {
		mi.AddDocument(fmt.Sprintf("doc-%d", i), "benchmark title",
			"this is a benchmark document with several terms for testing the indexing performance of our memory index")
		i++
	}
}

func loadedIndex(n int) *index.MemoryIndex {
	mi := index.NewMemoryIndex()
	for i := range n {
		mi.AddDocument(fmt.Sprintf("doc-%d", i), "compiled query", "query compiler with constraint trees and result composition")
	}
	return mi
}

var queryTerm = tokenizer.Terms("query")[0]

// BenchmarkMemoryIndexSearch measures single-term lookup latency over 10 000
// documents.
func BenchmarkMemoryIndexSearch(b *testing.B) {
	mi := loadedIndex(10000)
	b.ReportAllocs()
	for b.Loop() {
		_ = mi.Search(queryTerm)
	}
}

// BenchmarkMemoryIndexSearchParallel measures concurrent read throughput.
func BenchmarkMemoryIndexSearchParallel(b *testing.B) {
	mi := loadedIndex(10000)
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = mi.Search(queryTerm)
		}
	})
}

// BenchmarkCatalogUpsert measures indexing one document into all three field
// indexes of a source.
func BenchmarkCatalogUpsert(b *testing.B) {
	for _, preload := range []int{0, 1000, 10000} {
		b.Run(fmt.Sprintf("preloaded_%d", preload), func(b *testing.B) {
			c := catalog.New("doc")
			for i := range preload {
				c.Upsert("doc", fmt.Sprintf("pre-%d", i), "preloaded", "existing document for benchmark")
			}
			b.ReportAllocs()
			i := 0
			for b.Loop() {
				c.Upsert("doc", fmt.Sprintf("doc-%d", i), "benchmark", "new document being indexed")
				i++
			}
		})
	}
}

// BenchmarkRank measures scoring order for blended scores of different sizes.
func BenchmarkRank(b *testing.B) {
	for _, n := range []int{100, 1000, 10000} {
		b.Run(fmt.Sprintf("docs_%d", n), func(b *testing.B) {
			scores := make(map[string]float64, n)
			for i := range n {
				scores[fmt.Sprintf("doc-%d", i)] = float64(i%97) / 7
			}
			b.ReportAllocs()
			for b.Loop() {
				_ = ranker.Rank(scores)
			}
		})
	}
}
