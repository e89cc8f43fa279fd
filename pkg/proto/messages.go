// Package proto defines the request and response messages shared by the
// HTTP API, the internal JSON-over-TCP RPC layer (see pkg/grpc) and the ftsc
// command line client.
package proto

// RPC method names served by the query service.
const (
	MethodCompile = "FTSService.Compile"
	MethodQuery   = "FTSService.Query"
)

// ---------- Compile ----------

// CompileRequest is the input to the Compile RPC.
type CompileRequest struct {
	Query string `json:"query"`
}

// CompileResponse renders the constraint compiled from Query.
type CompileResponse struct {
	Query      string `json:"query"`
	ParseTree  string `json:"parse_tree,omitempty"`
	Constraint string `json:"constraint"`
	Leaves     int    `json:"leaves"`
}

// ---------- Query ----------

// QueryRequest is the input to the Query RPC. Each selector is "alias" or
// "alias:source"; a bare alias names its own source.
type QueryRequest struct {
	Query     string   `json:"query"`
	Selectors []string `json:"selectors,omitempty"`
	Field     string   `json:"field,omitempty"`
	Skip      int      `json:"skip"`
	Limit     int      `json:"limit"`
}

// QueryPage is one composed page of results.
type QueryPage struct {
	Query      string   `json:"query"`
	Constraint string   `json:"constraint"`
	Selectors  []string `json:"selectors"`
	Columns    []string `json:"columns"`
	Start      int      `json:"start"`
	HasMore    bool     `json:"has_more"`
	Rows       []Row    `json:"rows"`
	Filtered   int      `json:"filtered,omitempty"`
	LatencyMs  int64    `json:"latency_ms"`
	CacheHit   bool     `json:"cache_hit"`
}

// Row is one composed result row. Score is the agreed score for a single
// selector and the blended running mean for several.
type Row struct {
	Index     int                    `json:"index"`
	ID        string                 `json:"id"`
	Score     float64                `json:"score"`
	Selectors map[string]SelectorHit `json:"selectors"`
}

// SelectorHit is what one selector contributed to a row.
type SelectorHit struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// ---------- Errors ----------

// ErrorResponse is the body of every failed HTTP call.
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}
