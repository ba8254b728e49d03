package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/miradorstack/mirador-care/internal/models"
)

// GuidancePack maps condition codes to severity and next-step advice.
type GuidancePack struct {
	entries map[models.ConditionCode]models.Guidance
}

// GuidanceEntry is a single YAML entry.
type GuidanceEntry struct {
	Code     string   `yaml:"code"`
	Severity string   `yaml:"severity"`
	Steps    []string `yaml:"steps"`
}

// GuidanceFile is the YAML root structure.
type GuidanceFile struct {
	Guidance []GuidanceEntry `yaml:"guidance"`
}

// LoadGuidancePack reads a guidance pack from path. An empty path or a missing
// file yields a nil pack, which attaches no guidance.
func LoadGuidancePack(path string, logger *slog.Logger) (*GuidancePack, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return ParseGuidancePack(data, logger)
}

// ParseGuidancePack builds a pack from YAML bytes. Unknown codes and
// severities are rejected.
func ParseGuidancePack(data []byte, logger *slog.Logger) (*GuidancePack, error) {
	var file GuidanceFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse guidance pack: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	pack := &GuidancePack{entries: make(map[models.ConditionCode]models.Guidance, len(file.Guidance))}
	for _, entry := range file.Guidance {
		code := models.ConditionCode(entry.Code)
		if !code.Known() {
			return nil, fmt.Errorf("guidance pack: unknown condition code %q", entry.Code)
		}
		severity, err := parseSeverity(entry.Severity)
		if err != nil {
			return nil, fmt.Errorf("guidance pack: code %s: %w", entry.Code, err)
		}
		existing := pack.entries[code]
		existing.Code = code
		if severity != "" {
			existing.Severity = severity
		} else if existing.Severity == "" {
			existing.Severity = models.SeverityLow
		}
		existing.Steps = appendUnique(existing.Steps, entry.Steps...)
		pack.entries[code] = existing
	}
	logger.Debug("guidance pack loaded", slog.Int("codes", len(pack.entries)))
	return pack, nil
}

// For returns guidance for each code that has an entry, in code order.
func (p *GuidancePack) For(codes []models.ConditionCode) []models.Guidance {
	if p == nil {
		return nil
	}
	out := make([]models.Guidance, 0, len(codes))
	seen := make(map[models.ConditionCode]struct{}, len(codes))
	for _, code := range codes {
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		if g, ok := p.entries[code]; ok {
			out = append(out, g)
		}
	}
	return out
}

// Len returns the number of codes with guidance.
func (p *GuidancePack) Len() int {
	if p == nil {
		return 0
	}
	return len(p.entries)
}

func parseSeverity(value string) (models.Severity, error) {
	switch models.Severity(strings.ToLower(strings.TrimSpace(value))) {
	case "":
		return "", nil
	case models.SeverityLow:
		return models.SeverityLow, nil
	case models.SeverityMedium:
		return models.SeverityMedium, nil
	case models.SeverityHigh:
		return models.SeverityHigh, nil
	case models.SeverityCritical:
		return models.SeverityCritical, nil
	default:
		return "", fmt.Errorf("unknown severity %q", value)
	}
}

func appendUnique(existing []string, additions ...string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, rec := range existing {
		seen[rec] = struct{}{}
	}
	for _, item := range additions {
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		existing = append(existing, item)
		seen[item] = struct{}{}
	}
	return existing
}
