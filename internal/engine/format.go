package engine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/miradorstack/mirador-care/internal/models"
)

// FormatContext renders ranked passages as numbered documents for an answer
// synthesiser. An empty set renders as "N/A".
func FormatContext(chunks []models.RetrievedChunk) string {
	if len(chunks) == 0 {
		return "N/A"
	}
	blocks := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		var b strings.Builder
		fmt.Fprintf(&b, "[Document %d] (Relevance: %.2f)\n", i+1, chunk.Score)

		meta := make([]string, 0, 2)
		if chunk.SourceName != "" {
			meta = append(meta, "Source: "+chunk.SourceName)
		}
		if chunk.Page > 0 {
			meta = append(meta, "Page: "+strconv.Itoa(chunk.Page))
		}
		if len(meta) > 0 {
			b.WriteString("Metadata: " + strings.Join(meta, " | ") + "\n")
		}
		b.WriteString("Content:\n")
		b.WriteString(strings.TrimSpace(chunk.Content))
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n")
}

// FormatVitals renders per-channel statistics as a bullet list in channel
// display order. Unknown channels follow, sorted by name.
func FormatVitals(stats models.Statistics) string {
	if stats == nil {
		return "No vitals data available."
	}

	lines := make([]string, 0, len(stats))
	for _, channel := range orderedChannels(stats) {
		stat := stats[channel]
		if stat == nil {
			lines = append(lines, fmt.Sprintf("- %s: No data recorded in the last window.", channel.Label()))
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s:\n  - Latest Value: %s\n  - Average: %s\n  - Range: %s - %s\n  - Variability: %s",
			channel.Label(),
			formatNumber(stat.Latest, -1),
			formatNumber(stat.Mean, 1),
			formatNumber(stat.Min, -1),
			formatNumber(stat.Max, -1),
			formatNumber(stat.StdDev, 2),
		))
	}
	return strings.Join(lines, "\n")
}

func orderedChannels(stats models.Statistics) []models.Channel {
	out := make([]models.Channel, 0, len(stats))
	seen := make(map[models.Channel]struct{}, len(stats))
	for _, channel := range models.AllChannels {
		if _, ok := stats[channel]; ok {
			out = append(out, channel)
			seen[channel] = struct{}{}
		}
	}
	extra := make([]string, 0)
	for channel := range stats {
		if _, ok := seen[channel]; !ok {
			extra = append(extra, string(channel))
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		out = append(out, models.Channel(name))
	}
	return out
}

func formatNumber(p *float64, precision int) string {
	if !models.Finite(p) {
		return "unknown"
	}
	return strconv.FormatFloat(*p, 'f', precision, 64)
}
