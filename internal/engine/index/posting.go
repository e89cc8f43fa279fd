package index

// Posting records one document's occurrences of a term. Positions are token
// positions as produced by the tokenizer, in ascending order.
type Posting struct {
	DocID     string
	Frequency int
	Positions []int
}

// PostingList is ordered by DocID.
type PostingList []Posting

// DocSet returns the document IDs of the list as a set.
func (pl PostingList) DocSet() map[string]struct{} {
	set := make(map[string]struct{}, len(pl))
	for _, p := range pl {
		set[p.DocID] = struct{}{}
	}
	return set
}

// Stats summarises an index for BM25 and health reporting.
type Stats struct {
	Docs         int     `json:"docs"`
	Terms        int     `json:"terms"`
	AvgDocLength float64 `json:"avg_doc_length"`
}
