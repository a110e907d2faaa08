package ice

import (
	"fmt"
	"net"
)

// CandidateHost is a candidate derived from a local interface address.
type CandidateHost struct {
	candidateBase
}

// CandidateHostConfig is the config required to create a new CandidateHost
type CandidateHostConfig struct {
	CandidateID string
	Network     string
	Address     string
	Port        int
	Component   uint16
	Priority    uint32
	Foundation  string
}

// NewCandidateHost creates a new host candidate
func NewCandidateHost(config *CandidateHostConfig) (*CandidateHost, error) {
	candidateID := candidateIDFromConfig(config.CandidateID)

	ip := net.ParseIP(config.Address)
	if ip == nil {
		return nil, fmt.Errorf("%w: %s", ErrAddressParse, config.Address)
	}

	networkType, err := determineNetworkType(config.Network, ip)
	if err != nil {
		return nil, err
	}

	return &CandidateHost{
		candidateBase: candidateBase{
			id:                 candidateID,
			networkType:        networkType,
			candidateType:      CandidateTypeHost,
			component:          defaultComponent(config.Component),
			address:            config.Address,
			port:               config.Port,
			baseAddress:        config.Address,
			basePort:           config.Port,
			foundationOverride: config.Foundation,
			priorityOverride:   config.Priority,
		},
	}, nil
}

func candidateIDFromConfig(id string) string {
	if id != "" {
		return id
	}
	return newCandidateIDGenerator().Generate()
}

func defaultComponent(component uint16) uint16 {
	if component == 0 {
		return ComponentRTP
	}
	return component
}
