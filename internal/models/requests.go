package models

import "time"

// InteractionMode distinguishes plain retrieval questions from vitals analysis.
type InteractionMode string

const (
	ModeRAG          InteractionMode = "rag"
	ModeDataAnalysis InteractionMode = "dataAnalysis"
)

// InteractionRequest is a single question asked on behalf of a device.
type InteractionRequest struct {
	DeviceID     string
	SessionID    string
	Question     string
	DataAnalysis bool
	Sources      []string
}

// InteractionResult carries everything an answer synthesiser needs.
type InteractionResult struct {
	InteractionID  string
	Mode           InteractionMode
	DeviceID       string
	SessionID      string
	Question       string
	RetrievalQuery string
	Statistics     Statistics
	Derived        DerivedIndices
	Diagnosis      []ConditionCode
	Guidance       []Guidance
	Chunks         []RetrievedChunk
	Context        string
	VitalsSummary  string
	CreatedAt      time.Time
}

// Guidance is next-step advice attached to a condition code.
type Guidance struct {
	Code     ConditionCode
	Severity Severity
	Steps    []string
}

// RankRequest parameterises a standalone ranking call.
type RankRequest struct {
	Query     string
	Sources   []string
	Limit     int
	Threshold float64
}

// Severity captures impact levels.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)
