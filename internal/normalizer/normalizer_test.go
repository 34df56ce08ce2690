package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coeus-crm/leadgen-cli/internal/model"
)

func TestNormalizePhone_SpainLocalMobile(t *testing.T) {
	assert.Equal(t, "+34612345678", NormalizePhone("612 345 678"))
}

func TestNormalizePhone_SpainLocalLandline(t *testing.T) {
	assert.Equal(t, "+34912345678", NormalizePhone("912345678"))
}

func TestNormalizePhone_CountryPrefixedDigits(t *testing.T) {
	assert.Equal(t, "+34612345678", NormalizePhone("34612345678"))
}

func TestNormalizePhone_AlreadyE164(t *testing.T) {
	assert.Equal(t, "+34612345678", NormalizePhone("+34 612-345-678"))
}

func TestNormalizePhone_ShortFragmentDropped(t *testing.T) {
	assert.Empty(t, NormalizePhone("12345"))
	assert.Empty(t, NormalizePhone("ext. 23"))
	assert.Empty(t, NormalizePhone(""))
}

func TestNormalizePhone_ForeignNumberPassesThrough(t *testing.T) {
	assert.Equal(t, "+4915112345678", NormalizePhone("49 151 1234 5678"))
}

func TestPhoneTypeES(t *testing.T) {
	assert.Equal(t, model.PhoneMobile, PhoneTypeES("+34612345678"))
	assert.Equal(t, model.PhoneMobile, PhoneTypeES("+34712345678"))
	assert.Equal(t, model.PhoneLandline, PhoneTypeES("+34912345678"))
	assert.Equal(t, model.PhoneLandline, PhoneTypeES("+34812345678"))
	assert.Equal(t, model.PhoneUnknown, PhoneTypeES(""))
}

func TestExtractDomain_StripsWWW(t *testing.T) {
	assert.Equal(t, "clinic.es", ExtractDomain("https://www.clinic.es/about"))
}

func TestExtractDomain_RedirectWrapper(t *testing.T) {
	got := ExtractDomain("https://google.com/url?q=https://realsite.com/&sa=D")
	assert.Equal(t, "realsite.com", got)
}

func TestExtractDomain_Malformed(t *testing.T) {
	assert.Empty(t, ExtractDomain("not a url"))
	assert.Empty(t, ExtractDomain(""))
	assert.Empty(t, ExtractDomain("::://bad"))
}

func TestDetectEcommerce(t *testing.T) {
	ec := DetectEcommerce([]string{
		"https://x.es/tienda",
		"https://x.es/blog",
		"https://x.es/shopping-guide",
	})
	assert.True(t, ec.IsEcommerce)
	assert.Equal(t, []string{"https://x.es/tienda"}, ec.MatchedURLs)

	assert.False(t, DetectEcommerce([]string{"https://x.es/blog"}).IsEcommerce)
	assert.False(t, DetectEcommerce(nil).IsEcommerce)
}

func TestNormalize_GoldPathScenario(t *testing.T) {
	raw := model.RawRecord{
		"title":        "Clinica Dental",
		"emails":       []any{"owner@clinic.es"},
		"phone":        "612345678",
		"reviewsCount": float64(120),
		"totalScore":   4.8,
		"website":      "https://clinic.es",
		"countryCode":  "es",
		"city":         "Madrid",
	}
	lead, flags := Normalize(raw)

	assert.Equal(t, "+34612345678", lead.PhonePrimary)
	assert.Equal(t, model.PhoneMobile, lead.PhoneType)
	assert.True(t, lead.WhatsappLikely)
	assert.Equal(t, "owner@clinic.es", lead.EmailPrimary)
	assert.Equal(t, "clinic.es", lead.Domain)
	assert.Equal(t, 120, lead.ReviewsCount)
	assert.False(t, flags.MissingEmail)
	assert.Equal(t, "domcity:clinic.es:madrid", lead.DedupeKey())
}

func TestNormalize_SpainLandlineNotWhatsapp(t *testing.T) {
	lead, _ := Normalize(model.RawRecord{
		"phone":       "912345678",
		"countryCode": "ES",
	})
	assert.Equal(t, "+34912345678", lead.PhonePrimary)
	assert.Equal(t, model.PhoneLandline, lead.PhoneType)
	assert.False(t, lead.WhatsappLikely)
}

func TestNormalize_ForeignMobileNotWhatsapp(t *testing.T) {
	lead, _ := Normalize(model.RawRecord{
		"phone":       "612345678",
		"countryCode": "FR",
	})
	assert.Equal(t, model.PhoneMobile, lead.PhoneType)
	assert.False(t, lead.WhatsappLikely)
}

func TestNormalize_EmailPriority(t *testing.T) {
	// Own-domain beats generic, generic is last resort.
	lead, _ := Normalize(model.RawRecord{
		"website": "https://acme.es",
		"emails":  []any{"info@gmail.com", "ventas@otra.com", "jefe@acme.es"},
	})
	assert.Equal(t, "jefe@acme.es", lead.EmailPrimary)

	lead, _ = Normalize(model.RawRecord{
		"emails": []any{"info@gmail.com", "ventas@otra.com"},
	})
	assert.Equal(t, "ventas@otra.com", lead.EmailPrimary)

	lead, _ = Normalize(model.RawRecord{
		"emails": []any{"info@gmail.com"},
	})
	assert.Equal(t, "info@gmail.com", lead.EmailPrimary)
}

func TestNormalize_EmailVariantsMergedAndFiltered(t *testing.T) {
	lead, _ := Normalize(model.RawRecord{
		"emails":         []any{"A@B.com", "not-an-email"},
		"verifiedEmails": []any{"a@b.com", "c@d.com"},
		"email":          "E@F.com",
	})
	assert.Equal(t, []string{"a@b.com", "c@d.com", "e@f.com"}, lead.EmailsAll)
}

func TestNormalize_MobilePreferredAsPrimaryPhone(t *testing.T) {
	lead, _ := Normalize(model.RawRecord{
		"phone":  "912345678",
		"phones": []any{"612345678"},
	})
	assert.Equal(t, "+34612345678", lead.PhonePrimary)
	assert.ElementsMatch(t, []string{"+34912345678", "+34612345678"}, lead.PhonesAll)
}

func TestNormalize_ClosedFlags(t *testing.T) {
	lead, _ := Normalize(model.RawRecord{"permanentlyClosed": true})
	assert.True(t, lead.IsClosed)

	lead, _ = Normalize(model.RawRecord{"temporarilyClosed": true})
	assert.True(t, lead.IsClosed)
}

func TestNormalize_DedupeKeyFallbacks(t *testing.T) {
	lead, _ := Normalize(model.RawRecord{"placeId": "abc123"})
	assert.Equal(t, "place:abc123", lead.DedupeKey())

	lead, _ = Normalize(model.RawRecord{
		"title":   "Café Ñandú",
		"address": "C/ Mayor 1, Móstoles",
	})
	assert.Equal(t, "nameaddr:cafe nandu:c/ mayor 1, mostoles", lead.DedupeKey())
}

func TestNormalize_NoDedupeKeyFlagged(t *testing.T) {
	lead, flags := Normalize(model.RawRecord{"title": "Solo Nombre"})
	assert.Empty(t, lead.DedupeKey())
	assert.True(t, flags.NoDedupeKey)
	assert.NotEmpty(t, flags.Warnings)
}

func TestNormalize_SocialAndProviderWebsites(t *testing.T) {
	lead, flags := Normalize(model.RawRecord{"website": "https://www.instagram.com/acme"})
	assert.True(t, lead.IsSocialMedia)
	assert.NotEmpty(t, flags.Warnings)

	lead, _ = Normalize(model.RawRecord{"website": "https://acme.wixsite.com/home"})
	assert.True(t, lead.IsProviderDomain)
	assert.False(t, lead.IsSocialMedia)
}

func TestNormalize_Deterministic(t *testing.T) {
	raw := model.RawRecord{
		"title":       "Gimnasio Fuerte",
		"emails":      []any{"b@x.com", "a@x.com", "b@x.com"},
		"phones":      []any{"612345678", "912345678"},
		"website":     "https://www.fuerte.es",
		"city":        "Sevilla",
		"scrapedUrls": []any{"https://fuerte.es/tienda"},
	}
	first, firstFlags := Normalize(raw)
	second, secondFlags := Normalize(raw)
	require.Equal(t, first, second)
	require.Equal(t, firstFlags, secondFlags)
}

func TestNormalize_AdversarialInputNeverPanics(t *testing.T) {
	assert.NotPanics(t, func() {
		Normalize(model.RawRecord{})
		Normalize(model.RawRecord{"emails": 42, "phone": []any{1, 2}, "website": "::bad::"})
		Normalize(model.RawRecord{"totalScore": "not-a-number", "reviewsCount": nil})
		Normalize(nil)
	})
}
