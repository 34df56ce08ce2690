package normalizer

import (
	"strconv"
	"strings"

	"github.com/coeus-crm/leadgen-cli/internal/model"
)

// Provider payloads arrive with the same logical field under several names
// depending on actor version. Each list is tried in order; the first present
// candidate wins. Plural lists are merged across all candidates instead.

var titleFields = []string{"title", "name", "businessName"}

var websiteFields = []string{"website", "websiteUrl", "url"}

var phoneFields = []string{"phone", "phoneNumber", "phoneUnformatted"}

var phoneListFields = []string{"phones", "phoneNumbers"}

var emailListFields = []string{"emails", "allEmails", "verifiedEmails", "contactEmails"}

var emailFields = []string{"email", "contactEmail"}

var addressFields = []string{"address", "fullAddress"}

var scrapedURLFields = []string{"scrapedUrls", "crawledUrls", "subPages"}

// str returns the first non-empty string among the candidate keys, trimmed.
func str(r model.RawRecord, keys ...string) string {
	for _, k := range keys {
		if v, ok := r[k]; ok {
			if s := toStr(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// strList merges every candidate key into one list, tolerating scalar
// strings, []string and []any shapes.
func strList(r model.RawRecord, keys ...string) []string {
	var out []string
	for _, k := range keys {
		v, ok := r[k]
		if !ok {
			continue
		}
		switch vv := v.(type) {
		case string:
			if s := strings.TrimSpace(vv); s != "" {
				out = append(out, s)
			}
		case []string:
			for _, s := range vv {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		case []any:
			for _, item := range vv {
				if s := toStr(item); s != "" {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

// num returns the first numeric candidate, tolerating float64, int and
// numeric strings. Unparsable values degrade to 0.
func num(r model.RawRecord, keys ...string) float64 {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		switch vv := v.(type) {
		case float64:
			return vv
		case int:
			return float64(vv)
		case int64:
			return float64(vv)
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(vv), 64); err == nil {
				return f
			}
		}
	}
	return 0
}

// boolean returns the first boolean candidate; strings "true"/"false" are
// accepted for providers that stringify flags.
func boolean(r model.RawRecord, keys ...string) bool {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		switch vv := v.(type) {
		case bool:
			return vv
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(vv)); err == nil {
				return b
			}
		}
	}
	return false
}

func toStr(v any) string {
	switch vv := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(vv)
	case float64:
		// Place ids and cids sometimes arrive numeric.
		if vv == float64(int64(vv)) {
			return strconv.FormatInt(int64(vv), 10)
		}
		return strconv.FormatFloat(vv, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(vv)
	default:
		return ""
	}
}

// uniq deduplicates preserving first-seen order and dropping empties.
func uniq(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
