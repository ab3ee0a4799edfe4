package rules

import (
	"net/netip"
	"strings"

	"github.com/AdguardTeam/golibs/netutil"
	"github.com/AdguardTeam/urlindex/internal/fasthash"
)

// isValidHostname returns true if hostname is a domain name or an IP address.
func isValidHostname(hostname string) (ok bool) {
	if netutil.ValidateHostname(hostname) == nil {
		return true
	}

	_, err := netip.ParseAddr(hostname)

	return err == nil
}

// isDomainOrSubdomain checks if host is domain or its subdomain.
func isDomainOrSubdomain(host, domain string) (ok bool) {
	if !strings.HasSuffix(host, domain) {
		return false
	}

	n := len(host) - len(domain)

	return n == 0 || host[n-1] == '.'
}

// DomainHash returns the hash of the domain name as used in [DomainSet] and
// [Request.SourceHashes].
func DomainHash(domain string) (h uint64) {
	return fasthash.String(strings.ToLower(domain))
}

// appendHostnameHashes appends the hashes of hostname and all of its parent
// domains to hashes.
func appendHostnameHashes(hashes []uint64, hostname string) (res []uint64) {
	for hostname != "" {
		hashes = append(hashes, fasthash.String(hostname))

		i := strings.IndexByte(hostname, '.')
		if i < 0 {
			break
		}

		hostname = hostname[i+1:]
	}

	return hashes
}

// dedupTokens removes repeated tokens from tokens keeping the first
// occurrence.  Short lists are checked linearly.
func dedupTokens(tokens []uint64) (res []uint64) {
	if len(tokens) > dedupMapThreshold {
		return dedupTokensMap(tokens)
	}

	res = tokens[:0]
	for _, t := range tokens {
		if !containsToken(res, t) {
			res = append(res, t)
		}
	}

	return res
}

// dedupMapThreshold is the number of tokens after which [dedupTokens] uses a
// map instead of a linear search.
const dedupMapThreshold = 64

// dedupTokensMap is the version of [dedupTokens] for long token lists.
func dedupTokensMap(tokens []uint64) (res []uint64) {
	seen := make(map[uint64]struct{}, len(tokens))
	res = tokens[:0]
	for _, t := range tokens {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			res = append(res, t)
		}
	}

	return res
}

// containsToken returns true if tokens contains t.
func containsToken(tokens []uint64, t uint64) (ok bool) {
	for _, tok := range tokens {
		if tok == t {
			return true
		}
	}

	return false
}
