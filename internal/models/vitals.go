package models

import (
	"math"
	"time"
)

// Channel identifies a physiological signal stream.
type Channel string

const (
	ChannelHeartRate              Channel = "hr"
	ChannelRespirationRate        Channel = "rr"
	ChannelOxygenSaturation       Channel = "spo2"
	ChannelTemperature            Channel = "temp"
	ChannelSystolicBloodPressure  Channel = "sbp"
	ChannelDiastolicBloodPressure Channel = "dbp"
	ChannelGlucose                Channel = "glucose"
)

// AllChannels lists every channel in display order.
var AllChannels = []Channel{
	ChannelHeartRate,
	ChannelRespirationRate,
	ChannelOxygenSaturation,
	ChannelTemperature,
	ChannelSystolicBloodPressure,
	ChannelDiastolicBloodPressure,
	ChannelGlucose,
}

var channelMeasurements = map[Channel]string{
	ChannelHeartRate:              "vitals_heart_rate",
	ChannelRespirationRate:        "vitals_respiratory_rate",
	ChannelOxygenSaturation:       "vitals_spo2",
	ChannelTemperature:            "vitals_body_temperature",
	ChannelSystolicBloodPressure:  "vitals_blood_pressure_sys",
	ChannelDiastolicBloodPressure: "vitals_blood_pressure_dia",
	ChannelGlucose:                "vitals_glucose",
}

var channelLabels = map[Channel]string{
	ChannelHeartRate:              "Heart Rate (bpm)",
	ChannelRespirationRate:        "Respiration Rate (breaths/min)",
	ChannelOxygenSaturation:       "Oxygen Saturation (%)",
	ChannelTemperature:            "Body Temperature (°C)",
	ChannelSystolicBloodPressure:  "Systolic Blood Pressure (mmHg)",
	ChannelDiastolicBloodPressure: "Diastolic Blood Pressure (mmHg)",
	ChannelGlucose:                "Blood Glucose (mg/dL)",
}

// Measurement returns the time-series measurement name backing the channel.
func (c Channel) Measurement() string {
	return channelMeasurements[c]
}

// Label returns a readable channel name including its unit.
func (c Channel) Label() string {
	if label, ok := channelLabels[c]; ok {
		return label
	}
	return string(c)
}

// Valid reports whether c is part of the known channel set.
func (c Channel) Valid() bool {
	_, ok := channelMeasurements[c]
	return ok
}

// ParseChannel resolves a channel by short name or measurement name.
func ParseChannel(value string) (Channel, bool) {
	if c := Channel(value); c.Valid() {
		return c, true
	}
	for c, m := range channelMeasurements {
		if m == value {
			return c, true
		}
	}
	return "", false
}

// VitalSample is a single reading acquired from a device.
type VitalSample struct {
	Channel   Channel   `json:"channel"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// VitalStatistic summarises one channel over a lookback window. Any field may
// be nil when the producer could not determine it.
type VitalStatistic struct {
	Min    *float64 `json:"min"`
	Max    *float64 `json:"max"`
	Mean   *float64 `json:"mean"`
	Median *float64 `json:"median"`
	StdDev *float64 `json:"stdDev"`
	Count  int      `json:"count"`
	Latest *float64 `json:"latest"`
}

// Statistics maps each channel to its summary. A nil entry means no samples.
type Statistics map[Channel]*VitalStatistic

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// Finite reports whether p holds a usable number.
func Finite(p *float64) bool {
	return p != nil && !math.IsNaN(*p) && !math.IsInf(*p, 0)
}
