package ice

import (
	"fmt"
	"net"
)

// CandidateRelay is a candidate at a relay server. This agent never
// allocates relays, but a remote peer may still offer one; it is paired and
// checked like any other remote address.
type CandidateRelay struct {
	candidateBase
}

// CandidateRelayConfig is the config required to create a new CandidateRelay
type CandidateRelayConfig struct {
	CandidateID string
	Network     string
	Address     string
	Port        int
	Component   uint16
	Priority    uint32
	Foundation  string
	RelAddr     string
	RelPort     int
}

// NewCandidateRelay creates a new relay candidate
func NewCandidateRelay(config *CandidateRelayConfig) (*CandidateRelay, error) {
	ip := net.ParseIP(config.Address)
	if ip == nil {
		return nil, fmt.Errorf("%w: %s", ErrAddressParse, config.Address)
	}

	networkType, err := determineNetworkType(config.Network, ip)
	if err != nil {
		return nil, err
	}

	baseAddress, basePort := config.RelAddr, config.RelPort
	if baseAddress == "" {
		baseAddress, basePort = config.Address, config.Port
	}

	return &CandidateRelay{
		candidateBase: candidateBase{
			id:                 candidateIDFromConfig(config.CandidateID),
			networkType:        networkType,
			candidateType:      CandidateTypeRelay,
			component:          defaultComponent(config.Component),
			address:            config.Address,
			port:               config.Port,
			baseAddress:        baseAddress,
			basePort:           basePort,
			foundationOverride: config.Foundation,
			priorityOverride:   config.Priority,
		},
	}, nil
}
