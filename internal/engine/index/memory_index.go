// Package index is the positional inverted index behind one query source.
package index

import (
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/engine/tokenizer"
)

type MemoryIndex struct {
	mu          sync.RWMutex
	postings    map[string]map[string]*Posting
	docTerms    map[string][]string
	docLengths  map[string]int
	totalTokens int64
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		postings:   make(map[string]map[string]*Posting),
		docTerms:   make(map[string][]string),
		docLengths: make(map[string]int),
	}
}

// AddDocument indexes title and body under docID, replacing any earlier
// version of the document.
func (m *MemoryIndex) AddDocument(docID string, title string, body string) {
	tokens := tokenizer.Tokenize(title + " " + body)

	termData := make(map[string]*Posting)
	for _, token := range tokens {
		p, exists := termData[token.Term]
		if !exists {
			p = &Posting{
				DocID:     docID,
				Positions: make([]int, 0, 4),
			}
			termData[token.Term] = p
		}
		p.Frequency++
		p.Positions = append(p.Positions, token.Position)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.removeLocked(docID)
	terms := make([]string, 0, len(termData))
	for term, posting := range termData {
		if _, exists := m.postings[term]; !exists {
			m.postings[term] = make(map[string]*Posting)
		}
		m.postings[term][docID] = posting
		terms = append(terms, term)
	}
	m.docTerms[docID] = terms
	m.docLengths[docID] = len(tokens)
	m.totalTokens += int64(len(tokens))
}

// Remove drops docID from the index. It reports whether the document was
// present.
func (m *MemoryIndex) Remove(docID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(docID)
}

func (m *MemoryIndex) removeLocked(docID string) bool {
	terms, exists := m.docTerms[docID]
	if !exists {
		return false
	}
	for _, term := range terms {
		docs := m.postings[term]
		delete(docs, docID)
		if len(docs) == 0 {
			delete(m.postings, term)
		}
	}
	m.totalTokens -= int64(m.docLengths[docID])
	delete(m.docTerms, docID)
	delete(m.docLengths, docID)
	return true
}

// Search returns the postings of an analysed term ordered by DocID.
func (m *MemoryIndex) Search(term string) PostingList {
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs, exists := m.postings[term]
	if !exists {
		return nil
	}
	result := make(PostingList, 0, len(docs))
	for _, posting := range docs {
		result = append(result, *posting)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].DocID < result[j].DocID
	})
	return result
}

func (m *MemoryIndex) Has(docID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.docTerms[docID]
	return exists
}

// DocIDs returns every indexed document ID in ascending order.
func (m *MemoryIndex) DocIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.docTerms))
	for id := range m.docTerms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *MemoryIndex) DocLength(docID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.docLengths[docID]
}

func (m *MemoryIndex) DocCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docTerms)
}

func (m *MemoryIndex) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := Stats{
		Docs:  len(m.docTerms),
		Terms: len(m.postings),
	}
	if stats.Docs > 0 {
		stats.AvgDocLength = float64(m.totalTokens) / float64(stats.Docs)
	}
	return stats
}
