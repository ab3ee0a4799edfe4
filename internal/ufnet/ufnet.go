// Package ufnet contains utilities for extracting hostnames from request URLs.
package ufnet

import "strings"

// ExtractHostname quickly retrieves the hostname from a URL-like string.  The
// scheme, the userinfo, and the port are stripped, as are the brackets around
// an IPv6 address.  Non-hierarchical URLs, like "stun:host:3478", are
// supported.  An empty string is returned if there is no hostname.
//
// NOTE: ExtractHostname doesn't allocate and doesn't validate the result.
func ExtractHostname(url string) (hostname string) {
	start, end := HostnameRange(url)

	return url[start:end]
}

// HostnameRange returns the range of the hostname within url, so that the
// hostname is url[start:end].  See [ExtractHostname] for the rules.  If there
// is no hostname, start and end are equal.
func HostnameRange(url string) (start, end int) {
	start = strings.Index(url, "//")
	if start >= 0 {
		start += len("//")
	} else {
		start = strings.IndexByte(url, ':')
		if start <= 0 {
			return 0, 0
		}

		start++
	}

	end = len(url)
	if i := strings.IndexAny(url[start:], "/?#"); i >= 0 {
		end = start + i
	}

	if at := strings.LastIndexByte(url[start:end], '@'); at >= 0 {
		start += at + 1
	}

	return hostRange(url, start, end)
}

// hostRange removes the port and the IPv6 brackets from url[start:end], which
// is the host and port part of url.
func hostRange(url string, start, end int) (hostStart, hostEnd int) {
	hostport := url[start:end]
	if strings.HasPrefix(hostport, "[") {
		i := strings.IndexByte(hostport, ']')
		if i < 0 {
			return start, start
		}

		return start + 1, start + i
	}

	if i := strings.IndexByte(hostport, ':'); i >= 0 {
		return start, start + i
	}

	return start, end
}
