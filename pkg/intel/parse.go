package intel

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap"
)

// Closed category set. Anything else the model invents is dropped.
var knownCategories = map[string]bool{
	"deporte":   true,
	"bienestar": true,
	"salud":     true,
}

// parseIntel decodes a model response into a BusinessIntel. Model output is
// not trusted to be valid JSON: markdown fences are stripped and the first
// balanced-looking object window is extracted before decoding. Anything still
// unparsable yields an empty result rather than an error.
func parseIntel(text string) *BusinessIntel {
	cleaned := cleanJSON(text)
	if cleaned == "" {
		return &BusinessIntel{}
	}

	var intel BusinessIntel
	if err := json.Unmarshal([]byte(cleaned), &intel); err != nil {
		zap.L().Debug("intel: discarding unparsable model output", zap.Error(err))
		return &BusinessIntel{}
	}

	intel.Category = strings.ToLower(strings.TrimSpace(intel.Category))
	if !knownCategories[intel.Category] {
		intel.Category = ""
	}

	contacts := intel.FoundContacts[:0]
	for _, fc := range intel.FoundContacts {
		fc.Email = strings.ToLower(strings.TrimSpace(fc.Email))
		if fc.Email == "" || !strings.Contains(fc.Email, "@") {
			continue
		}
		contacts = append(contacts, fc)
	}
	intel.FoundContacts = contacts

	return &intel
}

// cleanJSON strips markdown fences and extracts the JSON object window.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
