package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/mirador-care/internal/models"
)

func latestOnly(v float64) *models.VitalStatistic {
	return &models.VitalStatistic{Latest: models.Float(v)}
}

func diagnose(stats models.Statistics) models.DiagnosisResult {
	return NewDiagnosisEngine(nil).Diagnose(stats)
}

func TestDiagnoseNilAndEmptyStatisticsAreHealthy(t *testing.T) {
	for name, stats := range map[string]models.Statistics{
		"nil":   nil,
		"empty": {},
		"all-null": {
			models.ChannelHeartRate:              nil,
			models.ChannelRespirationRate:        nil,
			models.ChannelOxygenSaturation:       nil,
			models.ChannelTemperature:            nil,
			models.ChannelSystolicBloodPressure:  nil,
			models.ChannelDiastolicBloodPressure: nil,
			models.ChannelGlucose:                nil,
		},
		"null-fields": {models.ChannelHeartRate: {}},
	} {
		t.Run(name, func(t *testing.T) {
			result := diagnose(stats)
			assert.Equal(t, []models.ConditionCode{models.CodeHealthy}, result.Codes())
		})
	}
}

func TestDiagnoseKetoacidosisSupersedesHyperglycemia(t *testing.T) {
	result := diagnose(models.Statistics{
		models.ChannelGlucose:         latestOnly(250),
		models.ChannelRespirationRate: latestOnly(30),
	})
	assert.True(t, result.Has(models.CodeDiabeticKetoacidosisRisk))
	assert.False(t, result.Has(models.CodeHyperglycemia))

	result = diagnose(models.Statistics{
		models.ChannelGlucose: {Max: models.Float(200), Latest: models.Float(180)},
	})
	assert.True(t, result.Has(models.CodeHyperglycemia))
}

func TestDiagnoseHypoglycemiaIsExclusive(t *testing.T) {
	severe := diagnose(models.Statistics{models.ChannelGlucose: {Min: models.Float(50)}})
	assert.True(t, severe.Has(models.CodeSevereHypoglycemia))
	assert.False(t, severe.Has(models.CodeHypoglycemia))

	mild := diagnose(models.Statistics{models.ChannelGlucose: {Min: models.Float(60)}})
	assert.True(t, mild.Has(models.CodeHypoglycemia))
	assert.False(t, mild.Has(models.CodeSevereHypoglycemia))
}

func TestDiagnoseHeatStrokeSuppressesFeverAndTachycardia(t *testing.T) {
	result := diagnose(models.Statistics{
		models.ChannelTemperature: {Max: models.Float(40.5)},
		models.ChannelHeartRate:   {Mean: models.Float(110)},
	})
	assert.True(t, result.Has(models.CodeHeatStrokeRisk))
	assert.False(t, result.Has(models.CodeFeverSyndrome))
	assert.False(t, result.Has(models.CodeTachyarrhythmia))
}

func TestDiagnosePneumoniaAndFever(t *testing.T) {
	pneumonia := diagnose(models.Statistics{
		models.ChannelTemperature:      {Max: models.Float(38.6)},
		models.ChannelRespirationRate:  {Mean: models.Float(26)},
		models.ChannelOxygenSaturation: {Mean: models.Float(92)},
	})
	assert.True(t, pneumonia.Has(models.CodePneumoniaRisk))
	assert.False(t, pneumonia.Has(models.CodeFeverSyndrome))

	fever := diagnose(models.Statistics{models.ChannelTemperature: {Max: models.Float(38.0), Min: models.Float(37)}})
	assert.Equal(t, []models.ConditionCode{models.CodeFeverSyndrome}, fever.Codes())

	cold := diagnose(models.Statistics{models.ChannelTemperature: {Max: models.Float(38.2), Min: models.Float(34.5)}})
	assert.True(t, cold.Has(models.CodeFeverSyndrome))
	assert.True(t, cold.Has(models.CodeHypothermia))
}

func TestDiagnoseRespiratoryPrecedence(t *testing.T) {
	depression := diagnose(models.Statistics{
		models.ChannelRespirationRate:  {Latest: models.Float(8), Max: models.Float(32)},
		models.ChannelOxygenSaturation: {Latest: models.Float(90), Min: models.Float(85), Mean: models.Float(92)},
	})
	assert.True(t, depression.Has(models.CodeRespiratoryDepression))
	assert.False(t, depression.Has(models.CodeRespiratoryFailure))
	assert.False(t, depression.Has(models.CodeHypoxiaMild))

	failure := diagnose(models.Statistics{models.ChannelRespirationRate: {Max: models.Float(30)}})
	assert.True(t, failure.Has(models.CodeRespiratoryFailure))

	mild := diagnose(models.Statistics{models.ChannelOxygenSaturation: {Mean: models.Float(94), Min: models.Float(91)}})
	assert.Equal(t, []models.ConditionCode{models.CodeHypoxiaMild}, mild.Codes())
}

func TestDiagnoseCushingsTriadWithoutNeurogenicShock(t *testing.T) {
	stats := models.Statistics{
		models.ChannelSystolicBloodPressure:  latestOnly(170),
		models.ChannelDiastolicBloodPressure: latestOnly(90),
		models.ChannelHeartRate:              latestOnly(55),
	}
	idx := DerivedIndices(stats)
	require.NotNil(t, idx.MeanArterialPressure)
	assert.InDelta(t, 116.67, *idx.MeanArterialPressure, 0.01)

	result := diagnose(stats)
	assert.True(t, result.Has(models.CodeCushingsTriadRisk))
	assert.False(t, result.Has(models.CodeNeurogenicShockRisk))
}

func TestDiagnoseNeurogenicShockSuppressesBradycardia(t *testing.T) {
	result := diagnose(models.Statistics{
		models.ChannelSystolicBloodPressure:  latestOnly(80),
		models.ChannelDiastolicBloodPressure: latestOnly(50),
		models.ChannelHeartRate:              {Latest: models.Float(45), Mean: models.Float(45)},
	})
	assert.True(t, result.Has(models.CodeNeurogenicShockRisk))
	assert.False(t, result.Has(models.CodeBradyarrhythmia))

	brady := diagnose(models.Statistics{models.ChannelHeartRate: {Mean: models.Float(45)}})
	assert.Equal(t, []models.ConditionCode{models.CodeBradyarrhythmia}, brady.Codes())
}

func TestDiagnoseMyocardialInfarctionBlocksCushings(t *testing.T) {
	result := diagnose(models.Statistics{
		models.ChannelHeartRate:              latestOnly(50),
		models.ChannelSystolicBloodPressure:  latestOnly(170),
		models.ChannelDiastolicBloodPressure: latestOnly(100),
		models.ChannelRespirationRate:        latestOnly(26),
	})
	assert.True(t, result.Has(models.CodePossibleMyocardialInfarction))
	assert.False(t, result.Has(models.CodeCushingsTriadRisk))
}

func TestDiagnoseTachyarrhythmiaFromMaxHeartRate(t *testing.T) {
	result := diagnose(models.Statistics{models.ChannelHeartRate: {Mean: models.Float(90), Max: models.Float(135)}})
	assert.Equal(t, []models.ConditionCode{models.CodeTachyarrhythmia}, result.Codes())
}

func TestDiagnoseTreatsNonFiniteAsUnknown(t *testing.T) {
	result := diagnose(models.Statistics{
		models.ChannelGlucose:   {Max: models.Float(math.Inf(1)), Min: models.Float(math.NaN())},
		models.ChannelHeartRate: {Mean: models.Float(math.NaN())},
	})
	assert.Equal(t, []models.ConditionCode{models.CodeHealthy}, result.Codes())
}

func TestDiagnoseIsOrderIndependent(t *testing.T) {
	stats := models.Statistics{
		models.ChannelGlucose:                {Latest: models.Float(250), Max: models.Float(260), Min: models.Float(65)},
		models.ChannelRespirationRate:        {Latest: models.Float(28), Mean: models.Float(26), Max: models.Float(31)},
		models.ChannelTemperature:            {Max: models.Float(38.4), Min: models.Float(36)},
		models.ChannelHeartRate:              {Latest: models.Float(112), Mean: models.Float(104), Max: models.Float(120)},
		models.ChannelSystolicBloodPressure:  latestOnly(85),
		models.ChannelDiastolicBloodPressure: latestOnly(55),
		models.ChannelOxygenSaturation:       {Latest: models.Float(91), Mean: models.Float(93), Min: models.Float(89)},
	}
	want := diagnose(stats).Codes()
	for i := 0; i < 50; i++ {
		clone := make(models.Statistics, len(stats))
		for k, v := range stats {
			clone[k] = v
		}
		assert.Equal(t, want, diagnose(clone).Codes())
	}
}

func TestClinicalRulesReadOnlyEarlierCodes(t *testing.T) {
	produced := map[models.ConditionCode]bool{}
	reserved := map[models.ConditionCode]bool{
		models.CodePanicAttackRisk: true,
		models.CodeDehydrationRisk: true,
	}
	for _, r := range clinicalRules {
		for _, code := range r.reads {
			if reserved[code] {
				continue
			}
			assert.Truef(t, produced[code], "rule %s reads %s before it is produced", r.name, code)
		}
		produced[r.code] = true
	}
	for code := range reserved {
		assert.Falsef(t, produced[code], "reserved code %s must not be emitted", code)
	}
}

func TestDerivedIndicesShockIndex(t *testing.T) {
	idx := DerivedIndices(models.Statistics{
		models.ChannelHeartRate:             latestOnly(120),
		models.ChannelSystolicBloodPressure: latestOnly(100),
	})
	require.NotNil(t, idx.ShockIndex)
	assert.InDelta(t, 1.2, *idx.ShockIndex, 1e-9)
	assert.Nil(t, idx.MeanArterialPressure)

	zero := DerivedIndices(models.Statistics{
		models.ChannelHeartRate:             latestOnly(120),
		models.ChannelSystolicBloodPressure: latestOnly(0),
	})
	assert.Nil(t, zero.ShockIndex)
}
