package engine

import (
	"context"
	"log/slog"
	"math"

	"github.com/miradorstack/mirador-care/internal/models"
)

// DiagnosisEngine turns vital statistics into clinical condition indicators.
// It holds no per-request state and is safe for concurrent use.
type DiagnosisEngine struct {
	logger *slog.Logger
	rules  []rule
}

// NewDiagnosisEngine returns an engine evaluating the built-in rule pipeline.
func NewDiagnosisEngine(logger *slog.Logger) *DiagnosisEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &DiagnosisEngine{logger: logger, rules: clinicalRules}
}

// Diagnose evaluates every rule in order and returns a non-empty set of codes.
// A nil mapping yields {Healthy}.
func (e *DiagnosisEngine) Diagnose(stats models.Statistics) models.DiagnosisResult {
	if stats == nil {
		return models.NewDiagnosisResult(models.CodeHealthy)
	}

	ev := newEvaluation(stats)
	fired := make([]string, 0, 4)
	for _, r := range e.rules {
		if !r.when(ev) {
			continue
		}
		ev.result.Add(r.code)
		if r.emergency {
			ev.cardiacEmergency = true
		}
		fired = append(fired, r.name)
	}

	if ev.result.Len() == 0 {
		ev.result.Add(models.CodeHealthy)
	}

	if e.logger.Enabled(context.Background(), slog.LevelDebug) {
		attrs := []any{slog.Any("rules", fired), slog.Any("codes", ev.result.Strings())}
		if ev.mapOK {
			attrs = append(attrs, slog.Float64("map", ev.meanArterial))
		}
		if idx := DerivedIndices(stats); idx.ShockIndex != nil {
			attrs = append(attrs, slog.Float64("shock_index", *idx.ShockIndex))
		}
		e.logger.Debug("diagnosis evaluated", attrs...)
	}

	return ev.result
}

// DerivedIndices computes mean arterial pressure and shock index from the
// latest readings. Either is nil when its inputs are unknown.
func DerivedIndices(stats models.Statistics) models.DerivedIndices {
	var out models.DerivedIndices
	sbp := latest(stats, models.ChannelSystolicBloodPressure)
	dbp := latest(stats, models.ChannelDiastolicBloodPressure)
	hr := latest(stats, models.ChannelHeartRate)

	if sbp.ok && dbp.ok {
		out.MeanArterialPressure = models.Float((sbp.v + 2*dbp.v) / 3)
	}
	if hr.ok && sbp.ok && sbp.v > 0 {
		out.ShockIndex = models.Float(hr.v / sbp.v)
	}
	return out
}

// rule is one (predicate, action) step: when the predicate holds, code is
// added and, for emergency rules, the cardiac-emergency flag is raised.
// reads lists codes produced by earlier rules that the predicate inspects, so
// rules must run in declaration order.
type rule struct {
	name      string
	code      models.ConditionCode
	reads     []models.ConditionCode
	emergency bool
	when      func(*evaluation) bool
}

var clinicalRules = []rule{
	// Glucose.
	{
		name: "diabetic-ketoacidosis",
		when: func(ev *evaluation) bool {
			return ev.glucose.latest.above(200) && ev.rr.latest.above(24)
		},
		code: models.CodeDiabeticKetoacidosisRisk,
	},
	{
		name:  "hyperglycemia",
		reads: []models.ConditionCode{models.CodeDiabeticKetoacidosisRisk},
		when: func(ev *evaluation) bool {
			return !ev.result.Has(models.CodeDiabeticKetoacidosisRisk) && ev.glucose.max.atLeast(200)
		},
		code: models.CodeHyperglycemia,
	},
	{
		name: "severe-hypoglycemia",
		when: func(ev *evaluation) bool {
			return ev.glucose.min.below(55)
		},
		code: models.CodeSevereHypoglycemia,
	},
	{
		name:  "hypoglycemia",
		reads: []models.ConditionCode{models.CodeSevereHypoglycemia},
		when: func(ev *evaluation) bool {
			return !ev.result.Has(models.CodeSevereHypoglycemia) && ev.glucose.min.below(70)
		},
		code: models.CodeHypoglycemia,
	},

	// Temperature.
	{
		name: "heat-stroke",
		when: func(ev *evaluation) bool {
			return ev.temp.max.atLeast(40.0) && ev.hr.mean.above(100)
		},
		code: models.CodeHeatStrokeRisk,
	},
	{
		name:  "pneumonia",
		reads: []models.ConditionCode{models.CodeHeatStrokeRisk},
		when: func(ev *evaluation) bool {
			return !ev.result.Has(models.CodeHeatStrokeRisk) &&
				ev.temp.max.above(38) && ev.rr.mean.above(24) && ev.spo2.mean.below(94)
		},
		code: models.CodePneumoniaRisk,
	},
	{
		name:  "fever",
		reads: []models.ConditionCode{models.CodeHeatStrokeRisk, models.CodePneumoniaRisk},
		when: func(ev *evaluation) bool {
			return !ev.result.HasAny(models.CodeHeatStrokeRisk, models.CodePneumoniaRisk) && ev.temp.max.atLeast(38.0)
		},
		code: models.CodeFeverSyndrome,
	},
	{
		name: "hypothermia",
		when: func(ev *evaluation) bool {
			return ev.temp.min.below(35.0)
		},
		code: models.CodeHypothermia,
	},

	// Respiratory.
	{
		name: "respiratory-depression",
		when: func(ev *evaluation) bool {
			return ev.rr.latest.below(10) && ev.spo2.latest.below(92)
		},
		code: models.CodeRespiratoryDepression,
	},
	{
		name:  "respiratory-failure",
		reads: []models.ConditionCode{models.CodeRespiratoryDepression},
		when: func(ev *evaluation) bool {
			return !ev.result.Has(models.CodeRespiratoryDepression) &&
				(ev.spo2.min.below(90) || ev.rr.max.atLeast(30))
		},
		code: models.CodeRespiratoryFailure,
	},
	{
		name:  "hypoxia-mild",
		reads: []models.ConditionCode{models.CodeRespiratoryDepression, models.CodeRespiratoryFailure},
		when: func(ev *evaluation) bool {
			return !ev.result.HasAny(models.CodeRespiratoryDepression, models.CodeRespiratoryFailure) &&
				ev.spo2.mean.between(91, 94)
		},
		code: models.CodeHypoxiaMild,
	},

	// Cardiovascular. These share the cardiac-emergency flag rather than codes.
	{
		name: "myocardial-infarction",
		when: func(ev *evaluation) bool {
			hrDistress := ev.hr.latest.above(100) || ev.hr.latest.below(60)
			bpDistress := ev.sbp.latest.below(90) || ev.sbp.latest.above(160)
			respDistress := ev.rr.latest.above(24) || ev.spo2.latest.below(93)
			return hrDistress && bpDistress && respDistress
		},
		code:      models.CodePossibleMyocardialInfarction,
		emergency: true,
	},
	{
		name: "cushings-triad",
		when: func(ev *evaluation) bool {
			return !ev.cardiacEmergency && ev.sbp.latest.above(160) && ev.hr.latest.below(60)
		},
		code:      models.CodeCushingsTriadRisk,
		emergency: true,
	},
	{
		name: "neurogenic-shock",
		when: func(ev *evaluation) bool {
			return ev.mapOK && ev.meanArterial < 65 && ev.hr.latest.below(60)
		},
		code:      models.CodeNeurogenicShockRisk,
		emergency: true,
	},

	// Arrhythmia.
	{
		name:  "tachyarrhythmia",
		reads: []models.ConditionCode{models.CodeHeatStrokeRisk, models.CodePanicAttackRisk, models.CodeDehydrationRisk},
		when: func(ev *evaluation) bool {
			tachycardia := ev.hr.mean.above(100) || ev.hr.max.above(130)
			return tachycardia && !ev.result.HasAny(
				models.CodeHeatStrokeRisk,
				models.CodePanicAttackRisk,
				models.CodeDehydrationRisk,
			)
		},
		code: models.CodeTachyarrhythmia,
	},
	{
		name:  "bradyarrhythmia",
		reads: []models.ConditionCode{models.CodeNeurogenicShockRisk, models.CodeCushingsTriadRisk},
		when: func(ev *evaluation) bool {
			return ev.hr.mean.below(50) &&
				!ev.result.HasAny(models.CodeNeurogenicShockRisk, models.CodeCushingsTriadRisk)
		},
		code: models.CodeBradyarrhythmia,
	},
}

type evaluation struct {
	hr, rr, spo2, temp, sbp, glucose channelReadings

	meanArterial float64
	mapOK        bool

	result           models.DiagnosisResult
	cardiacEmergency bool
}

func newEvaluation(stats models.Statistics) *evaluation {
	ev := &evaluation{
		hr:      readChannel(stats, models.ChannelHeartRate),
		rr:      readChannel(stats, models.ChannelRespirationRate),
		spo2:    readChannel(stats, models.ChannelOxygenSaturation),
		temp:    readChannel(stats, models.ChannelTemperature),
		sbp:     readChannel(stats, models.ChannelSystolicBloodPressure),
		glucose: readChannel(stats, models.ChannelGlucose),
		result:  models.NewDiagnosisResult(),
	}
	if idx := DerivedIndices(stats); idx.MeanArterialPressure != nil {
		ev.meanArterial = *idx.MeanArterialPressure
		ev.mapOK = true
	}
	return ev
}

type channelReadings struct {
	min, max, mean, latest reading
}

func readChannel(stats models.Statistics, channel models.Channel) channelReadings {
	stat := stats[channel]
	if stat == nil {
		return channelReadings{}
	}
	return channelReadings{
		min:    readValue(stat.Min),
		max:    readValue(stat.Max),
		mean:   readValue(stat.Mean),
		latest: readValue(stat.Latest),
	}
}

func latest(stats models.Statistics, channel models.Channel) reading {
	if stat := stats[channel]; stat != nil {
		return readValue(stat.Latest)
	}
	return reading{}
}

// reading is an optional number. Comparisons against an unknown reading are
// always false.
type reading struct {
	v  float64
	ok bool
}

func readValue(p *float64) reading {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return reading{}
	}
	return reading{v: *p, ok: true}
}

func (r reading) above(limit float64) bool   { return r.ok && r.v > limit }
func (r reading) atLeast(limit float64) bool { return r.ok && r.v >= limit }
func (r reading) below(limit float64) bool   { return r.ok && r.v < limit }

func (r reading) between(lo, hi float64) bool {
	return r.ok && r.v >= lo && r.v <= hi
}
