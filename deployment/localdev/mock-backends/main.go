// Command mock-backends serves canned InfluxDB, Qdrant and Ollama responses
// so the engine can run locally without the real stores.
package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"time"
)

var measurementPattern = regexp.MustCompile(`_measurement == "([^"]+)"`)

// Readings describe a febrile, tachycardic patient so data-analysis mode
// produces a non-trivial diagnosis.
var readings = map[string][]float64{
	"vitals_heart_rate":         {104, 112, 118, 121},
	"vitals_respiratory_rate":   {18, 20, 22, 21},
	"vitals_spo2":               {97, 96, 96, 97},
	"vitals_body_temperature":   {38.4, 38.7, 38.9, 38.8},
	"vitals_blood_pressure_sys": {122, 124, 121, 119},
	"vitals_blood_pressure_dia": {78, 80, 79, 77},
	"vitals_glucose":            {96, 101, 99, 104},
}

type passage struct {
	Content string
	Source  string
	Page    int
	Score   float64
}

var passages = []passage{
	{Content: "Fever above 38°C with tachycardia warrants fluids, rest and rechecking in one hour.", Source: "fever-guide.pdf", Page: 3, Score: 0.88},
	{Content: "Sinus tachycardia is commonly secondary to fever, dehydration or pain.", Source: "cardiology.pdf", Page: 12, Score: 0.81},
	{Content: "Normal resting respiratory rate for adults is 12 to 20 breaths per minute.", Source: "respiratory.pdf", Page: 1, Score: 0.47},
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil)).With(slog.String("component", "mock-backends"))

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/v2/query", influxQuery)
	mux.HandleFunc("/api/embeddings", ollamaEmbeddings)
	mux.HandleFunc("/collections/{collection}/points/search", qdrantSearch)

	addr := ":8080"
	if v := os.Getenv("MOCK_BACKENDS_ADDR"); v != "" {
		addr = v
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           logRequests(logger, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("listening", slog.String("address", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", slog.Any("error", err))
		os.Exit(1)
	}
}

func influxQuery(w http.ResponseWriter, r *http.Request) {
	if !enforcePost(w, r) {
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	match := measurementPattern.FindSubmatch(body)
	if match == nil {
		w.WriteHeader(http.StatusBadRequest)
		writeJSON(w, map[string]string{"code": "invalid", "message": "missing _measurement filter"})
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	out := csv.NewWriter(w)
	_ = out.Write([]string{"", "result", "table", "_time", "_value", "_field", "_measurement"})
	start := time.Now().Add(-time.Duration(len(readings[string(match[1])])) * time.Minute).UTC()
	for i, v := range readings[string(match[1])] {
		_ = out.Write([]string{
			"", "_result", "0",
			start.Add(time.Duration(i) * time.Minute).Format(time.RFC3339Nano),
			strconv.FormatFloat(v, 'f', -1, 64),
			"value",
			string(match[1]),
		})
	}
	out.Flush()
}

func ollamaEmbeddings(w http.ResponseWriter, r *http.Request) {
	if !enforcePost(w, r) {
		return
	}
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	vector := make([]float32, 8)
	for i, c := range req.Prompt {
		vector[i%len(vector)] += float32(c%31) / 31
	}
	writeJSON(w, map[string]any{"embedding": vector})
}

func qdrantSearch(w http.ResponseWriter, r *http.Request) {
	if !enforcePost(w, r) {
		return
	}
	var req struct {
		Limit  int `json:"limit"`
		Filter struct {
			Must []struct {
				Match struct {
					Value string `json:"value"`
				} `json:"match"`
			} `json:"must"`
		} `json:"filter"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	source := ""
	if len(req.Filter.Must) > 0 {
		source = req.Filter.Must[0].Match.Value
	}

	results := make([]map[string]any, 0, len(passages))
	for _, p := range passages {
		if source != "" && p.Source != source {
			continue
		}
		if req.Limit > 0 && len(results) >= req.Limit {
			break
		}
		results = append(results, map[string]any{
			"score": p.Score,
			"payload": map[string]any{
				"content":  p.Content,
				"metadata": map[string]any{"source": p.Source, "page": p.Page},
			},
		})
	}
	writeJSON(w, map[string]any{"result": results, "status": "ok"})
}

func enforcePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("encode error", slog.Any("error", err))
	}
}

func logRequests(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Info("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rw.status),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
