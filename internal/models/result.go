package models

// RankedResult is one entry of a ranked result list.
// For lexical and vector modes Score equals the component score; for hybrid
// mode it is the weighted fusion of the normalized component scores.
type RankedResult struct {
	Document     Document `json:"document"`
	Score        float64  `json:"score"`
	LexicalScore float64  `json:"lexical_score"`
	VectorScore  float64  `json:"vector_score"`
	MatchedTerms []string `json:"matched_terms"`
	Rank         int      `json:"rank"`
}

// SearchRequest is the input of the search pipeline.
// Query wins over Terms; Terms are joined with spaces when Query is empty.
type SearchRequest struct {
	Query         string   `json:"query"`
	Terms         []string `json:"terms,omitempty"`
	SessionID     string   `json:"session_id,omitempty"`
	RetrievalMode string   `json:"retrieval_mode,omitempty"`
	TopK          int      `json:"top_k,omitempty"`
}

// ResultMetadata is the display metadata attached to each search hit.
type ResultMetadata struct {
	Name         string   `json:"name"`
	MatchedTerms []string `json:"matched_terms"`
	Preview      string   `json:"preview"`
}

// SearchHit is a single search hit as returned by the API.
type SearchHit struct {
	ID           string         `json:"id"`
	Score        float64        `json:"score"`
	Rank         int            `json:"rank"`
	LexicalScore float64        `json:"lexical_score"`
	VectorScore  float64        `json:"vector_score"`
	Metadata     ResultMetadata `json:"metadata"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Results       []SearchHit `json:"results"`
	Total         int         `json:"total"`
	Query         string      `json:"query"`
	EnhancedQuery string      `json:"enhanced_query"`
	RetrievalMode string      `json:"retrieval_mode"`
	SessionID     string      `json:"session_id"`
	QueryTime     int64       `json:"query_time_ms"`
}

// SessionSnapshot is a read-only view of a session's accumulated memory.
type SessionSnapshot struct {
	ID      string   `json:"id"`
	Queries []string `json:"queries"`
	Terms   []string `json:"terms"`
}
