package config

import (
	"net/netip"

	"github.com/pkg/errors"
)

type ProxyConfig interface {
	GetTrustedProxies() TrustedProxies
}

// TrustedProxies are the peers whose forwarding headers are believed. The
// zero value trusts nobody.
type TrustedProxies []netip.Prefix

// Contains reports whether addr falls inside any trusted range.
func (t TrustedProxies) Contains(addr string) bool {
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return false
	}
	ip = ip.Unmap()
	for _, p := range t {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}

func (s *Settings) GetTrustedProxies() TrustedProxies {
	proxies, _ := parseTrustedProxies(s.TrustedProxies)
	return proxies
}

// parseTrustedProxies accepts a comma separated list of CIDR ranges and
// single addresses.
func parseTrustedProxies(v string) (TrustedProxies, error) {
	var out TrustedProxies
	for _, entry := range splitList(v) {
		if p, err := netip.ParsePrefix(entry); err == nil {
			out = append(out, p.Masked())
			continue
		}
		ip, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, errors.Errorf("config: invalid TRUSTED_PROXIES entry %q", entry)
		}
		ip = ip.Unmap()
		out = append(out, netip.PrefixFrom(ip, ip.BitLen()))
	}
	return out, nil
}
