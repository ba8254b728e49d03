package repo

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/miradorstack/mirador-care/internal/models"
	"github.com/miradorstack/mirador-care/internal/utils"
)

// InfluxConfig holds connection settings for an InfluxDB v2 server.
type InfluxConfig struct {
	URL       string
	Org       string
	Bucket    string
	Token     string
	DeviceTag string
	Timeout   time.Duration
}

// InfluxClient reads device vitals from InfluxDB using Flux queries.
type InfluxClient struct {
	baseURL    string
	org        string
	bucket     string
	token      string
	deviceTag  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewInfluxClient constructs a client targeting the configured InfluxDB instance.
func NewInfluxClient(cfg InfluxConfig, logger *slog.Logger) *InfluxClient {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.DeviceTag == "" {
		cfg.DeviceTag = "device_id"
	}
	return &InfluxClient{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		org:        cfg.Org,
		bucket:     cfg.Bucket,
		token:      cfg.Token,
		deviceTag:  cfg.DeviceTag,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// FetchSeries returns the readings of one channel for a device over the
// trailing lookback window, oldest first. An empty series is not an error.
func (c *InfluxClient) FetchSeries(ctx context.Context, deviceID string, channel models.Channel, lookback time.Duration) ([]models.VitalSample, error) {
	if c == nil {
		return nil, fmt.Errorf("influx client not initialised")
	}
	if c.baseURL == "" {
		return nil, fmt.Errorf("influx URL not configured")
	}
	measurement := channel.Measurement()
	if measurement == "" {
		return nil, fmt.Errorf("unknown channel %q", channel)
	}

	query := c.buildQuery(deviceID, measurement, lookback)
	body, err := c.postFlux(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("influx query for %s failed: %w", measurement, err)
	}
	defer body.Close()

	samples, err := parseFluxCSV(body, channel)
	if err != nil {
		return nil, fmt.Errorf("decode influx response for %s: %w", measurement, err)
	}
	c.logger.Debug("influx series fetched",
		slog.String("device_id", deviceID),
		slog.String("channel", string(channel)),
		slog.Int("samples", len(samples)),
	)
	return samples, nil
}

func (c *InfluxClient) buildQuery(deviceID, measurement string, lookback time.Duration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "from(bucket: %s)\n", fluxString(c.bucket))
	fmt.Fprintf(&b, "  |> range(start: -%s)\n", utils.FluxDuration(lookback))
	fmt.Fprintf(&b, "  |> filter(fn: (r) => r[%s] == %s)\n", fluxString(c.deviceTag), fluxString(deviceID))
	fmt.Fprintf(&b, "  |> filter(fn: (r) => r._measurement == %s)\n", fluxString(measurement))
	b.WriteString("  |> filter(fn: (r) => r._field == \"value\")\n")
	b.WriteString("  |> sort(columns: [\"_time\"])\n")
	return b.String()
}

func (c *InfluxClient) postFlux(ctx context.Context, query string) (io.ReadCloser, error) {
	endpoint := c.baseURL + "/api/v2/query"
	if c.org != "" {
		endpoint += "?org=" + url.QueryEscape(c.org)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(query))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/vnd.flux")
	req.Header.Set("Accept", "application/csv")
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		var apiErr struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&apiErr); err == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("influx returned %s: %s", resp.Status, apiErr.Message)
		}
		return nil, fmt.Errorf("influx returned %s", resp.Status)
	}
	return resp.Body, nil
}

// parseFluxCSV reads an InfluxDB CSV response. Each result table starts with
// its own header row; annotation rows are skipped.
func parseFluxCSV(r io.Reader, channel models.Channel) ([]models.VitalSample, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.Comment = '#'
	reader.ReuseRecord = true

	timeIdx, valueIdx, errIdx := -1, -1, -1
	samples := make([]models.VitalSample, 0, 64)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if isBlankRecord(record) {
			timeIdx, valueIdx, errIdx = -1, -1, -1
			continue
		}
		if t, v, ok := headerIndexes(record); ok {
			timeIdx, valueIdx, errIdx = t, v, -1
			continue
		}
		if timeIdx < 0 && errIdx < 0 {
			if idx := indexOf(record, "error"); idx >= 0 {
				errIdx = idx
				continue
			}
		}
		if errIdx >= 0 && errIdx < len(record) {
			return nil, fmt.Errorf("influx query error: %s", record[errIdx])
		}
		if timeIdx < 0 || timeIdx >= len(record) || valueIdx >= len(record) {
			continue
		}

		ts, err := utils.ParseRFC3339(record[timeIdx])
		if err != nil {
			return nil, err
		}
		value, err := strconv.ParseFloat(record[valueIdx], 64)
		if err != nil {
			return nil, fmt.Errorf("parse value %q: %w", record[valueIdx], err)
		}
		samples = append(samples, models.VitalSample{Channel: channel, Value: value, Timestamp: ts})
	}

	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})
	return samples, nil
}

func headerIndexes(record []string) (int, int, bool) {
	timeIdx := indexOf(record, "_time")
	valueIdx := indexOf(record, "_value")
	return timeIdx, valueIdx, timeIdx >= 0 && valueIdx >= 0
}

func indexOf(record []string, name string) int {
	for i, cell := range record {
		if cell == name {
			return i
		}
	}
	return -1
}

func isBlankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func fluxString(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "${", `\${`)
	return `"` + replacer.Replace(value) + `"`
}
