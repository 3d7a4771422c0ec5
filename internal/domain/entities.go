package domain

import "time"

// Document is one ingested source file. It is immutable once chunked;
// re-ingestion replaces it wholesale.
type Document struct {
	ID   string
	Text string
	Type string
}

// Passage is a bounded slice of a document's text, the unit of retrieval.
// Start and End are rune offsets into the source document.
type Passage struct {
	ID      string `json:"id"`
	Source  string `json:"source"`
	Ordinal int    `json:"ordinal"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Text    string `json:"text"`
}

// ScoredPassage pairs a passage with its similarity to a query.
type ScoredPassage struct {
	Passage Passage
	Score   float64
}

// Answer is the grounded response to a single question. It is not
// persisted beyond the request that produced it.
type Answer struct {
	Text    string
	Sources []string
}

// IndexSnapshot is the persisted form of the vector index: passages and
// their vectors, written and loaded together so the passage-to-vector
// correspondence can never be observed broken.
type IndexSnapshot struct {
	RunID     string
	Model     string
	Dimension int
	SavedAt   time.Time
	Passages  []Passage
	Vectors   [][]float32
}

// IndexState is the pipeline lifecycle state.
type IndexState int

const (
	StateEmpty IndexState = iota
	StateBuilding
	StateReady
	StateFailed
)

func (s IndexState) String() string {
	switch s {
	case StateEmpty:
		return "EMPTY"
	case StateBuilding:
		return "BUILDING"
	case StateReady:
		return "READY"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// PipelineStatus is the snapshot returned by the status operation.
type PipelineStatus struct {
	State     IndexState
	LastError string
	Documents int
	Passages  int
	Stale     bool
}

// IngestResult summarizes one ingestion run.
type IngestResult struct {
	DocumentsProcessed int
	PassagesCreated    int
}
