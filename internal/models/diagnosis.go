package models

import "sort"

// ConditionCode is a clinical indicator emitted by the rule engine. It is an
// indicator, not a confirmed diagnosis.
type ConditionCode string

const (
	CodeDiabeticKetoacidosisRisk     ConditionCode = "DiabeticKetoacidosisRisk"
	CodeHyperglycemia                ConditionCode = "Hyperglycemia"
	CodeSevereHypoglycemia           ConditionCode = "SevereHypoglycemia"
	CodeHypoglycemia                 ConditionCode = "Hypoglycemia"
	CodeHeatStrokeRisk               ConditionCode = "HeatStrokeRisk"
	CodePneumoniaRisk                ConditionCode = "PneumoniaRisk"
	CodeFeverSyndrome                ConditionCode = "FeverSyndrome"
	CodeHypothermia                  ConditionCode = "Hypothermia"
	CodeRespiratoryDepression        ConditionCode = "RespiratoryDepression"
	CodeRespiratoryFailure           ConditionCode = "RespiratoryFailure"
	CodeHypoxiaMild                  ConditionCode = "HypoxiaMild"
	CodePossibleMyocardialInfarction ConditionCode = "PossibleMyocardialInfarction"
	CodeCushingsTriadRisk            ConditionCode = "CushingsTriadRisk"
	CodeNeurogenicShockRisk          ConditionCode = "NeurogenicShockRisk"
	CodeTachyarrhythmia              ConditionCode = "Tachyarrhythmia"
	CodeBradyarrhythmia              ConditionCode = "Bradyarrhythmia"
	CodeHealthy                      ConditionCode = "Healthy"

	// Reserved for future rules. No rule emits these yet, but the arrhythmia
	// step already treats them as known causes of tachycardia.
	CodePanicAttackRisk ConditionCode = "PanicAttackRisk"
	CodeDehydrationRisk ConditionCode = "DehydrationRisk"
)

var knownCodes = map[ConditionCode]struct{}{
	CodeDiabeticKetoacidosisRisk: {}, CodeHyperglycemia: {}, CodeSevereHypoglycemia: {},
	CodeHypoglycemia: {}, CodeHeatStrokeRisk: {}, CodePneumoniaRisk: {}, CodeFeverSyndrome: {},
	CodeHypothermia: {}, CodeRespiratoryDepression: {}, CodeRespiratoryFailure: {},
	CodeHypoxiaMild: {}, CodePossibleMyocardialInfarction: {}, CodeCushingsTriadRisk: {},
	CodeNeurogenicShockRisk: {}, CodeTachyarrhythmia: {}, CodeBradyarrhythmia: {}, CodeHealthy: {},
	CodePanicAttackRisk: {}, CodeDehydrationRisk: {},
}

// Known reports whether the code belongs to the fixed vocabulary.
func (c ConditionCode) Known() bool {
	_, ok := knownCodes[c]
	return ok
}

// DiagnosisResult is a set of unique condition codes.
type DiagnosisResult struct {
	codes map[ConditionCode]struct{}
}

// NewDiagnosisResult builds a result holding the given codes.
func NewDiagnosisResult(codes ...ConditionCode) DiagnosisResult {
	r := DiagnosisResult{codes: make(map[ConditionCode]struct{}, len(codes))}
	for _, c := range codes {
		r.codes[c] = struct{}{}
	}
	return r
}

// Add inserts code, ignoring duplicates.
func (r *DiagnosisResult) Add(code ConditionCode) {
	if r.codes == nil {
		r.codes = make(map[ConditionCode]struct{})
	}
	r.codes[code] = struct{}{}
}

// Has reports whether code is present.
func (r DiagnosisResult) Has(code ConditionCode) bool {
	_, ok := r.codes[code]
	return ok
}

// HasAny reports whether any of codes is present.
func (r DiagnosisResult) HasAny(codes ...ConditionCode) bool {
	for _, c := range codes {
		if r.Has(c) {
			return true
		}
	}
	return false
}

// Len returns the number of distinct codes.
func (r DiagnosisResult) Len() int {
	return len(r.codes)
}

// Codes returns the codes sorted lexically so output is deterministic.
func (r DiagnosisResult) Codes() []ConditionCode {
	out := make([]ConditionCode, 0, len(r.codes))
	for c := range r.codes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strings returns Codes as plain strings.
func (r DiagnosisResult) Strings() []string {
	codes := r.Codes()
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = string(c)
	}
	return out
}

// DerivedIndices holds haemodynamic quantities computed from latest readings.
type DerivedIndices struct {
	MeanArterialPressure *float64 `json:"map,omitempty"`
	ShockIndex           *float64 `json:"shockIndex,omitempty"`
}
