package ice

import (
	"fmt"
	"net"
)

// CandidateServerReflexive is a candidate discovered by asking a STUN server
// for the agent's mapped address. It answers through the socket of the host
// candidate it was discovered from.
type CandidateServerReflexive struct {
	candidateBase
}

// CandidateServerReflexiveConfig is the config required to create a new
// CandidateServerReflexive
type CandidateServerReflexiveConfig struct {
	CandidateID string
	Network     string
	Address     string
	Port        int
	Component   uint16
	Priority    uint32
	Foundation  string

	// RelAddr and RelPort are the base: the host transport address the
	// mapping was learned from. Empty for candidates parsed off the wire
	// when the peer chose not to disclose it.
	RelAddr string
	RelPort int

	// Server is the URL of the STUN server that produced the mapping, used
	// to group foundations. Empty for remote candidates.
	Server string
}

// NewCandidateServerReflexive creates a new server reflexive candidate
func NewCandidateServerReflexive(config *CandidateServerReflexiveConfig) (*CandidateServerReflexive, error) {
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

	return &CandidateServerReflexive{
		candidateBase: candidateBase{
			id:                 candidateIDFromConfig(config.CandidateID),
			networkType:        networkType,
			candidateType:      CandidateTypeServerReflexive,
			component:          defaultComponent(config.Component),
			address:            config.Address,
			port:               config.Port,
			baseAddress:        baseAddress,
			basePort:           basePort,
			relatedServer:      config.Server,
			foundationOverride: config.Foundation,
			priorityOverride:   config.Priority,
		},
	}, nil
}
