// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"fmt"
	"net"
	"net/netip"
)

// AdvertiseAddress returns a dialable form of listenAddress. A listen
// address with a concrete host is returned unchanged. An unspecified
// host ("", "0.0.0.0", "::") is replaced with the first non-loopback
// unicast address of an up interface, preferring IPv4, or with the
// loopback address when the machine has no other.
func AdvertiseAddress(listenAddress string) (string, error) {
	host, port, err := net.SplitHostPort(listenAddress)
	if err != nil {
		return "", fmt.Errorf("parsing listen address %q: %w", listenAddress, err)
	}
	if host != "" {
		parsed, parseErr := netip.ParseAddr(host)
		if parseErr != nil || !parsed.IsUnspecified() {
			return listenAddress, nil
		}
	}

	interfaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("listing network interfaces: %w", err)
	}
	var candidates []netip.Addr
	for _, networkInterface := range interfaces {
		if networkInterface.Flags&net.FlagUp == 0 || networkInterface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addresses, err := networkInterface.Addrs()
		if err != nil {
			continue
		}
		for _, address := range addresses {
			prefix, err := netip.ParsePrefix(address.String())
			if err != nil {
				continue
			}
			candidates = append(candidates, prefix.Addr())
		}
	}

	return net.JoinHostPort(pickAdvertiseHost(candidates).String(), port), nil
}

// pickAdvertiseHost chooses among interface addresses: the first
// global-unicast IPv4 address, else the first global-unicast IPv6
// address, else IPv4 loopback.
func pickAdvertiseHost(candidates []netip.Addr) netip.Addr {
	var fallback netip.Addr
	for _, candidate := range candidates {
		if !candidate.IsGlobalUnicast() {
			continue
		}
		if candidate.Is4() {
			return candidate
		}
		if !fallback.IsValid() {
			fallback = candidate
		}
	}
	if fallback.IsValid() {
		return fallback
	}
	return netip.AddrFrom4([4]byte{127, 0, 0, 1})
}
