package models

// RetrievedChunk is a passage returned by the similarity-search service. Higher
// scores are more relevant.
type RetrievedChunk struct {
	Content    string  `json:"content"`
	SourceName string  `json:"sourceName"`
	Page       int     `json:"page"`
	Score      float64 `json:"score"`
}
