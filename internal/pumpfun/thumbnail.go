package pumpfun

import (
	"net/url"
	"strings"
)

// hosts serving the same content-addressed paths as the canonical gateway
var alternateGateways = map[string]struct{}{
	"cf-ipfs.com":          {},
	"cloudflare-ipfs.com":  {},
	"gateway.pinata.cloud": {},
	"dweb.link":            {},
	"nftstorage.link":      {},
	"ipfs.infura.io":       {},
	"gateway.ipfs.io":      {},
}

// NormalizeThumbnail moves a thumbnail hosted on a known alternate IPFS gateway
// onto gateway, keeping path and query. Anything else is returned unchanged.
func NormalizeThumbnail(raw, gateway string) string {
	if raw == "" || gateway == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	if _, ok := alternateGateways[strings.ToLower(u.Hostname())]; !ok {
		return raw
	}
	u.Host = gateway
	return u.String()
}
