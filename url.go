package ice

import (
	"errors"
	"fmt"
	"net"
	gourl "net/url"
	"strconv"
)

// SchemeType indicates the type of server used in the URL
type SchemeType int

const (
	// SchemeTypeUnknown indicates an unparsable scheme
	SchemeTypeUnknown SchemeType = iota

	// SchemeTypeSTUN indicates the URL represents a STUN server
	SchemeTypeSTUN

	// SchemeTypeSTUNS indicates the URL represents a STUNS (secure) server
	SchemeTypeSTUNS

	// SchemeTypeTURN indicates the URL represents a TURN server
	SchemeTypeTURN

	// SchemeTypeTURNS indicates the URL represents a TURNS (secure) server
	SchemeTypeTURNS
)

// NewSchemeType defines a procedure for creating a new SchemeType from a raw
// string naming the scheme type.
func NewSchemeType(raw string) SchemeType {
	switch raw {
	case "stun":
		return SchemeTypeSTUN
	case "stuns":
		return SchemeTypeSTUNS
	case "turn":
		return SchemeTypeTURN
	case "turns":
		return SchemeTypeTURNS
	default:
		return SchemeTypeUnknown
	}
}

func (t SchemeType) String() string {
	switch t {
	case SchemeTypeSTUN:
		return "stun"
	case SchemeTypeSTUNS:
		return "stuns"
	case SchemeTypeTURN:
		return "turn"
	case SchemeTypeTURNS:
		return "turns"
	default:
		return ErrUnknownType.Error()
	}
}

// ProtoType indicates the transport protocol type that is used in the
// ice.URL structure.
type ProtoType int

const (
	// ProtoTypeUnknown indicates an unparsable transport
	ProtoTypeUnknown ProtoType = iota

	// ProtoTypeUDP indicates the URL uses a UDP transport
	ProtoTypeUDP
)

// NewProtoType defines a procedure for creating a new ProtoType from a raw
// string naming the transport protocol type.
func NewProtoType(raw string) ProtoType {
	if raw == udp {
		return ProtoTypeUDP
	}
	return ProtoTypeUnknown
}

func (t ProtoType) String() string {
	if t == ProtoTypeUDP {
		return udp
	}
	return ErrUnknownType.Error()
}

// URL represents a STUN (RFC 7064) or TURN (RFC 7065) URL. Only STUN URLs
// are usable for gathering; TURN parses but is rejected by the agent since
// relayed candidates are not allocated.
type URL struct {
	Scheme SchemeType
	Host   string
	Port   int
	Proto  ProtoType
}

// ParseURL parses a STUN or TURN URL.
func ParseURL(raw string) (*URL, error) {
	rawParts, err := gourl.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHost, err)
	}

	var u URL
	u.Scheme = NewSchemeType(rawParts.Scheme)
	if u.Scheme == SchemeTypeUnknown {
		return nil, ErrSchemeType
	}

	if rawParts.Opaque == "" {
		return nil, ErrHost
	}
	rawHost, rawPort, err := net.SplitHostPort(rawParts.Opaque)
	if err != nil {
		var addrErr *net.AddrError
		if errors.As(err, &addrErr) && addrErr.Err == "missing port in address" {
			rawHost, rawPort = rawParts.Opaque, defaultPortFor(u.Scheme)
		} else {
			return nil, fmt.Errorf("%w: %v", ErrHost, err)
		}
	}

	if rawHost == "" {
		return nil, ErrHost
	}
	u.Host = rawHost

	port, err := strconv.Atoi(rawPort)
	if err != nil || port <= 0 || port > 65535 {
		return nil, ErrPort
	}
	u.Port = port

	switch u.Scheme {
	case SchemeTypeSTUN, SchemeTypeSTUNS:
		if rawParts.RawQuery != "" {
			return nil, ErrSTUNQuery
		}
		u.Proto = ProtoTypeUDP
	case SchemeTypeTURN, SchemeTypeTURNS:
		u.Proto = ProtoTypeUDP
		if rawParts.RawQuery != "" {
			q, qErr := gourl.ParseQuery(rawParts.RawQuery)
			if qErr != nil {
				return nil, ErrInvalidQuery
			}
			if proto := q.Get("transport"); proto != "" {
				u.Proto = NewProtoType(proto)
				if u.Proto == ProtoTypeUnknown {
					return nil, ErrProtoType
				}
			}
		}
	default:
	}

	return &u, nil
}

func (u URL) String() string {
	host := u.Host
	if net.ParseIP(host) != nil && net.ParseIP(host).To4() == nil {
		host = "[" + host + "]"
	}
	return fmt.Sprintf("%s:%s:%d", u.Scheme, host, u.Port)
}

func defaultPortFor(scheme SchemeType) string {
	switch scheme {
	case SchemeTypeSTUNS, SchemeTypeTURNS:
		return "5349"
	default:
		return "3478"
	}
}
