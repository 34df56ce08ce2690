// Package normalizer turns raw provider listings into the canonical CleanLead
// shape. Everything here is pure and deterministic: malformed input degrades
// to empty fields, it never fails.
package normalizer

import (
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/coeus-crm/leadgen-cli/internal/model"
)

// minPhoneDigits is the shortest digit run accepted as a phone number.
// Shorter fragments (extensions, junk) normalize to empty.
const minPhoneDigits = 7

// genericAliases are mailbox prefixes deprioritized when picking the primary
// email.
var genericAliases = []string{"info@", "contacto@", "admin@"}

// Normalize cleans one raw listing into a CleanLead plus the enrichment flags
// derived from it. Calling it twice on the same record yields identical
// output.
func Normalize(raw model.RawRecord) (model.CleanLead, model.EnrichmentFlags) {
	website := str(raw, websiteFields...)
	domain := str(raw, "domain")
	if domain == "" {
		domain = ExtractDomain(website)
	}
	domain = strings.ToLower(domain)

	emails := collectEmails(raw)
	emailPrimary := pickPrimaryEmail(emails, domain)

	phonesRaw := append([]string{str(raw, phoneFields...)}, strList(raw, phoneListFields...)...)
	var phones []string
	for _, p := range phonesRaw {
		if n := NormalizePhone(p); n != "" {
			phones = append(phones, n)
		}
	}
	phones = uniq(phones)
	phonePrimary := pickPrimaryPhone(phones)
	phoneType := PhoneTypeES(phonePrimary)

	scrapedURLs := uniq(strList(raw, scrapedURLFields...))
	ecommerce := DetectEcommerce(scrapedURLs)

	placeID := str(raw, "placeId", "place_id")
	city := str(raw, "city")
	name := str(raw, titleFields...)
	address := str(raw, addressFields...)

	host := websiteHost(website)
	isSocial := hostMatches(host, socialDomains)
	isProvider := hostMatches(host, providerDomains)

	lead := model.CleanLead{
		Name:        name,
		GMBCategory: str(raw, "categoryName"),
		Categories:  uniq(strList(raw, "categories")),

		Website:      website,
		Domain:       domain,
		EmailPrimary: emailPrimary,
		EmailsAll:    emails,
		PhonePrimary: phonePrimary,
		PhonesAll:    phones,
		PhoneType:    phoneType,

		Address:      address,
		Street:       str(raw, "street"),
		Neighborhood: str(raw, "neighborhood"),
		City:         city,
		PostalCode:   str(raw, "postalCode", "postcode"),
		State:        str(raw, "state"),
		CountryCode:  strings.ToUpper(str(raw, "countryCode")),

		TotalScore:   nonNegative(num(raw, "totalScore", "rating")),
		ReviewsCount: int(nonNegative(num(raw, "reviewsCount", "reviewCount"))),
		ImagesCount:  int(nonNegative(num(raw, "imagesCount"))),

		PermanentlyClosed: boolean(raw, "permanentlyClosed"),
		TemporarilyClosed: boolean(raw, "temporarilyClosed"),

		Ecommerce:        ecommerce,
		IsSocialMedia:    isSocial,
		IsProviderDomain: isProvider,

		PlaceID:     placeID,
		CID:         str(raw, "cid"),
		FID:         str(raw, "fid"),
		ScrapedAt:   str(raw, "scrapedAt"),
		Source:      "listings_provider",
		ScrapedURLs: scrapedURLs,
	}
	lead.IsClosed = lead.PermanentlyClosed || lead.TemporarilyClosed
	lead.WhatsappLikely = whatsappLikely(lead.CountryCode, phoneType)

	if placeID != "" {
		lead.DedupeKeyPrimary = "place:" + placeID
	}
	if domain != "" && city != "" {
		lead.DedupeKeySecondary = "domcity:" + domain + ":" + strings.ToLower(city)
	}
	if name != "" && address != "" {
		lead.DedupeKeyTertiary = "nameaddr:" + foldLower(name) + ":" + foldLower(address)
	}

	flags := model.EnrichmentFlags{
		MissingEmail:         lead.EmailPrimary == "",
		MissingWebsite:       lead.Website == "",
		MissingDomain:        lead.Domain == "",
		MissingContactPerson: true,
		NoDedupeKey:          lead.DedupeKey() == "",
	}
	if isSocial {
		flags.Warnings = append(flags.Warnings, "website is a social profile")
	}
	if isProvider {
		flags.Warnings = append(flags.Warnings, "website is a builder/shortener domain")
	}
	if flags.NoDedupeKey {
		flags.Warnings = append(flags.Warnings, "record has no dedupe key, duplicates possible")
	}

	return lead, flags
}

// collectEmails merges every plausible email field into one lowercased,
// deduplicated set. Values without an @ are dropped.
func collectEmails(raw model.RawRecord) []string {
	candidates := strList(raw, emailListFields...)
	if single := str(raw, emailFields...); single != "" {
		candidates = append(candidates, single)
	}
	var out []string
	for _, e := range candidates {
		e = strings.ToLower(strings.TrimSpace(e))
		if strings.Contains(e, "@") {
			out = append(out, e)
		}
	}
	return uniq(out)
}

// pickPrimaryEmail applies priority: own-domain match, then non-generic
// alias, then first candidate.
func pickPrimaryEmail(emails []string, domain string) string {
	if len(emails) == 0 {
		return ""
	}
	if domain != "" {
		for _, e := range emails {
			if strings.HasSuffix(e, "@"+domain) {
				return e
			}
		}
	}
	for _, e := range emails {
		if !isGenericAlias(e) {
			return e
		}
	}
	return emails[0]
}

func isGenericAlias(email string) bool {
	for _, a := range genericAliases {
		if strings.HasPrefix(email, a) {
			return true
		}
	}
	return false
}

// pickPrimaryPhone prefers a mobile-looking number over anything else.
func pickPrimaryPhone(phones []string) string {
	if len(phones) == 0 {
		return ""
	}
	for _, p := range phones {
		if PhoneTypeES(p) == model.PhoneMobile {
			return p
		}
	}
	return phones[0]
}

// NormalizePhone strips formatting and applies Spain-local conventions:
// 9 local digits gain +34, 34-prefixed 11-digit runs gain +, anything else
// passes through +-prefixed once it reaches a minimal length.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if r == '+' || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return ""
	}
	if strings.HasPrefix(cleaned, "+") {
		return cleaned
	}

	digits := strings.ReplaceAll(cleaned, "+", "")
	switch {
	case len(digits) == 9:
		return "+34" + digits
	case len(digits) == 11 && strings.HasPrefix(digits, "34"):
		return "+" + digits
	case len(digits) >= minPhoneDigits:
		return "+" + digits
	default:
		return ""
	}
}

// PhoneTypeES classifies a normalized number by Spanish prefix conventions:
// 6/7 mobile, 8/9 landline.
func PhoneTypeES(e164 string) model.PhoneType {
	digits := strings.TrimPrefix(e164, "+")
	if digits == "" {
		return model.PhoneUnknown
	}
	if strings.HasPrefix(digits, "34") && len(digits) > 2 {
		digits = digits[2:]
	}
	switch digits[0] {
	case '6', '7':
		return model.PhoneMobile
	case '8', '9':
		return model.PhoneLandline
	default:
		return model.PhoneUnknown
	}
}

func whatsappLikely(countryCode string, phoneType model.PhoneType) bool {
	return countryCode == "ES" && phoneType == model.PhoneMobile
}

// ExtractDomain pulls the lowercased host out of a website URL, unwrapping
// search-engine redirect wrappers and stripping a leading www. Malformed
// URLs degrade to "".
func ExtractDomain(website string) string {
	host := websiteHost(website)
	return strings.TrimPrefix(host, "www.")
}

func websiteHost(website string) string {
	if website == "" {
		return ""
	}
	u, err := url.Parse(website)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())

	// Search-engine redirect wrappers hide the real site in a q= parameter.
	if strings.Contains(host, "google.") && strings.HasPrefix(u.Path, "/url") {
		if target := u.Query().Get("q"); target != "" {
			if tu, err := url.Parse(target); err == nil && tu.Host != "" {
				return strings.ToLower(tu.Hostname())
			}
		}
	}
	return host
}

// DetectEcommerce matches sub-page URLs against the fixed commerce path
// segment list.
func DetectEcommerce(scrapedURLs []string) model.Ecommerce {
	var matched []string
	for _, raw := range scrapedURLs {
		lower := strings.ToLower(raw)
		if hasCommercePath(lower) {
			matched = append(matched, lower)
		}
	}
	return model.Ecommerce{IsEcommerce: len(matched) > 0, MatchedURLs: matched}
}

func hasCommercePath(lowerURL string) bool {
	for _, seg := range commercePaths {
		marker := "/" + seg
		idx := strings.Index(lowerURL, marker)
		for idx >= 0 {
			end := idx + len(marker)
			if end == len(lowerURL) || !isWordRune(rune(lowerURL[end])) {
				return true
			}
			next := strings.Index(lowerURL[end:], marker)
			if next < 0 {
				break
			}
			idx = end + next
		}
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// foldLower lower-cases and strips diacritics so "Café Ñu" and "cafe nu"
// produce the same tertiary dedupe key.
func foldLower(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

func nonNegative(f float64) float64 {
	if f < 0 {
		return 0
	}
	return f
}
