package ice

import (
	"fmt"
	"net"
)

// CandidatePeerReflexive is a candidate discovered during connectivity
// checks: locally from a mapped address in a check response, remotely from a
// check arriving from an unknown transport address.
type CandidatePeerReflexive struct {
	candidateBase
}

// CandidatePeerReflexiveConfig is the config required to create a new
// CandidatePeerReflexive
type CandidatePeerReflexiveConfig struct {
	CandidateID string
	Network     string
	Address     string
	Port        int
	Component   uint16

	// Priority is learned from the wire: the PRIORITY attribute of the
	// check that discovered a remote prflx, or the peer-reflexive priority
	// the local check carried.
	Priority   uint32
	Foundation string

	// RelAddr and RelPort are the base. For a locally discovered candidate
	// this is the socket the discovering check ran on.
	RelAddr string
	RelPort int
}

// NewCandidatePeerReflexive creates a new peer reflective candidate
func NewCandidatePeerReflexive(config *CandidatePeerReflexiveConfig) (*CandidatePeerReflexive, error) {
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

	return &CandidatePeerReflexive{
		candidateBase: candidateBase{
			id:                 candidateIDFromConfig(config.CandidateID),
			networkType:        networkType,
			candidateType:      CandidateTypePeerReflexive,
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
