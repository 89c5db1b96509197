package parsers

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	logx "github.com/seller-copilot/server/pkg/logger"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 64 * 1024 // 64KB
	maxListItems  = 50
)

// extractJSON pulls the outermost JSON object out of a model reply,
// tolerating markdown code fences and surrounding prose.
func extractJSON(content string) (string, error) {
	if len(content) > maxContentLen {
		content = content[:maxContentLen]
	}
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no json object found")
	}
	return content[start : end+1], nil
}

// decodeJSON extracts and unmarshals into dst with panic safety.
func decodeJSON(content, component string, dst any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", component).Msgf("panic recovered: %v", r)
			err = fmt.Errorf("%s parser panic", component)
		}
	}()

	raw, err := extractJSON(content)
	if err != nil {
		return fmt.Errorf("%s: %w", component, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("%s unmarshal: %w", component, err)
	}
	return nil
}

// clamp01 bounds a confidence-like value into [0, 1]; NaN becomes 0.
func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func capList(items []string) []string {
	if len(items) > maxListItems {
		return items[:maxListItems]
	}
	return items
}
