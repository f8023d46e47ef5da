package security

import (
	"fmt"
	"net"
	"strings"
)

// AllowAllIP disables the allow-list when it appears among the entries.
const AllowAllIP = "0.0.0.0"

// IPAllowList matches client addresses against single IPs and CIDR blocks.
// An empty list allows every address.
type IPAllowList struct {
	allowAll bool
	networks []*net.IPNet
}

// ParseIPAllowList parses a comma separated list of IPs and CIDRs.
func ParseIPAllowList(raw string) (*IPAllowList, error) {
	list := &IPAllowList{}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if entry == AllowAllIP {
			list.allowAll = true
			continue
		}
		if strings.Contains(entry, "/") {
			_, network, err := net.ParseCIDR(entry)
			if err != nil {
				return nil, fmt.Errorf("security: invalid allow-list entry %q: %w", entry, err)
			}
			list.networks = append(list.networks, network)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			return nil, fmt.Errorf("security: invalid allow-list entry %q", entry)
		}
		bits := 128
		if ip.To4() != nil {
			ip = ip.To4()
			bits = 32
		}
		list.networks = append(list.networks, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	if len(list.networks) == 0 {
		list.allowAll = true
	}
	return list, nil
}

// Allows reports whether the client address may proceed.
func (l *IPAllowList) Allows(clientIP string) bool {
	if l == nil || l.allowAll {
		return true
	}
	ip := net.ParseIP(strings.TrimSpace(clientIP))
	if ip == nil {
		return false
	}
	for _, network := range l.networks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
