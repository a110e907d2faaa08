package ice

import (
	"fmt"
	"net"
)

const udp = "udp"

// NetworkType represents the transport of a candidate. Only UDP is
// supported; the two values distinguish the address family so pairing can
// require matching families.
type NetworkType int

const (
	// NetworkTypeUDP4 indicates UDP over IPv4
	NetworkTypeUDP4 NetworkType = iota + 1

	// NetworkTypeUDP6 indicates UDP over IPv6
	NetworkTypeUDP6
)

func (t NetworkType) String() string {
	switch t {
	case NetworkTypeUDP4:
		return "udp4"
	case NetworkTypeUDP6:
		return "udp6"
	default:
		return ErrUnknownType.Error()
	}
}

// NetworkShort returns the network name without the family suffix, as
// written on candidate lines.
func (t NetworkType) NetworkShort() string {
	return udp
}

// IsIPv4 returns whether the network type is IPv4
func (t NetworkType) IsIPv4() bool {
	return t == NetworkTypeUDP4
}

// IsIPv6 returns whether the network type is IPv6
func (t NetworkType) IsIPv6() bool {
	return t == NetworkTypeUDP6
}

// determineNetworkType resolves the network type from a network name and an
// IP address. Anything but UDP is rejected.
func determineNetworkType(network string, ip net.IP) (NetworkType, error) {
	switch {
	case len(network) >= 3 && network[:3] == udp && ip.To4() != nil:
		return NetworkTypeUDP4, nil
	case len(network) >= 3 && network[:3] == udp:
		return NetworkTypeUDP6, nil
	default:
		return NetworkType(0), fmt.Errorf("%w from network %q", ErrDetermineNetworkType, network)
	}
}
