package normalizer

import "strings"

// socialDomains flags websites that are social profiles rather than an owned
// site. The scorer treats them as weak websites and enrichment records the
// flag in meta.
var socialDomains = []string{
	"instagram.com",
	"facebook.com",
	"linkedin.com",
	"twitter.com",
	"x.com",
	"tiktok.com",
	"youtube.com",
}

// providerDomains flags website-builder and shortener hosts that hide the
// business's real domain.
var providerDomains = []string{
	"wixsite.com",
	"wordpress.com",
	"blogspot.com",
	"squarespace.com",
	"webnode.es",
	"jimdofree.com",
	"negocio.site",
	"business.site",
	"linktr.ee",
	"bit.ly",
	"goo.gl",
}

// commercePaths are the sub-page path segments that indicate a shop.
var commercePaths = []string{
	"shop", "tienda", "store", "carrito", "checkout", "producto", "productos",
}

func hostMatches(host string, list []string) bool {
	host = strings.ToLower(host)
	for _, d := range list {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
