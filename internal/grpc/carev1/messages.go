package carev1

import "time"

// Statistic summarises one channel. Nil fields are unknown.
type Statistic struct {
	Min    *float64 `json:"min,omitempty"`
	Max    *float64 `json:"max,omitempty"`
	Mean   *float64 `json:"mean,omitempty"`
	Median *float64 `json:"median,omitempty"`
	StdDev *float64 `json:"stdDev,omitempty"`
	Count  int      `json:"count"`
	Latest *float64 `json:"latest,omitempty"`
}

// Sample is one raw reading.
type Sample struct {
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// DerivedIndices carries haemodynamic indices computed from latest readings.
type DerivedIndices struct {
	MeanArterialPressure *float64 `json:"map,omitempty"`
	ShockIndex           *float64 `json:"shockIndex,omitempty"`
}

// Chunk is a ranked passage.
type Chunk struct {
	Content    string  `json:"content"`
	SourceName string  `json:"sourceName"`
	Page       int     `json:"page"`
	Score      float64 `json:"score"`
}

// Guidance is advice attached to a condition code.
type Guidance struct {
	Code     string   `json:"code"`
	Severity string   `json:"severity"`
	Steps    []string `json:"steps"`
}

type AnalyzeRequest struct {
	DeviceId     string   `json:"deviceId"`
	SessionId    string   `json:"sessionId"`
	Question     string   `json:"question"`
	DataAnalysis bool     `json:"dataAnalysis"`
	Sources      []string `json:"sources,omitempty"`
}

type AnalyzeResponse struct {
	InteractionId  string                `json:"interactionId"`
	Mode           string                `json:"mode"`
	DeviceId       string                `json:"deviceId,omitempty"`
	SessionId      string                `json:"sessionId,omitempty"`
	Question       string                `json:"question"`
	RetrievalQuery string                `json:"retrievalQuery"`
	Statistics     map[string]*Statistic `json:"statistics,omitempty"`
	Derived        *DerivedIndices       `json:"derived,omitempty"`
	Diagnosis      []string              `json:"diagnosis,omitempty"`
	Guidance       []Guidance            `json:"guidance,omitempty"`
	Chunks         []Chunk               `json:"chunks"`
	Context        string                `json:"context"`
	VitalsSummary  string                `json:"vitalsSummary,omitempty"`
	CreatedAt      time.Time             `json:"createdAt"`
}

type ComputeVitalsRequest struct {
	Series map[string][]Sample `json:"series"`
}

type ComputeVitalsResponse struct {
	Statistics map[string]*Statistic `json:"statistics"`
}

type DiagnoseRequest struct {
	Statistics map[string]*Statistic `json:"statistics"`
}

type DiagnoseResponse struct {
	Codes    []string        `json:"codes"`
	Derived  *DerivedIndices `json:"derived,omitempty"`
	Guidance []Guidance      `json:"guidance,omitempty"`
}

type RankRequest struct {
	Query     string   `json:"query"`
	Sources   []string `json:"sources,omitempty"`
	Limit     int      `json:"limit,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

type RankResponse struct {
	Chunks []Chunk `json:"chunks"`
}

type HealthRequest struct{}

type HealthResponse struct {
	Status string `json:"status"`
}
