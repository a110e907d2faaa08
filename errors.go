package ice

import "errors"

var (
	// ErrUnknownType indicates an enum value outside its known range
	ErrUnknownType = errors.New("unknown")

	// ErrClosed indicates the agent is closed
	ErrClosed = errors.New("the agent is closed")

	// ErrRoleMissing indicates an agent was configured without a role
	ErrRoleMissing = errors.New("agent role is required")

	// ErrUnknownRole indicates a role string other than controlling or controlled
	ErrUnknownRole = errors.New("unknown role")

	// ErrSchemeType indicates the scheme type could not be parsed
	ErrSchemeType = errors.New("unknown scheme type")

	// ErrSTUNQuery indicates query arguments are provided in a STUN URL
	ErrSTUNQuery = errors.New("queries not supported in stun address")

	// ErrInvalidQuery indicates a malformed query is provided
	ErrInvalidQuery = errors.New("invalid query")

	// ErrHost indicates a malformed hostname is provided
	ErrHost = errors.New("invalid hostname")

	// ErrPort indicates a malformed port is provided
	ErrPort = errors.New("invalid port")

	// ErrProtoType indicates an unsupported transport type was provided
	ErrProtoType = errors.New("invalid transport protocol type")

	// ErrMultipleStart indicates Run was called twice
	ErrMultipleStart = errors.New("attempted to start agent twice")

	// ErrRemoteUfragEmpty indicates remote credentials with an empty ufrag
	ErrRemoteUfragEmpty = errors.New("remote ufrag is empty")

	// ErrRemotePwdEmpty indicates remote credentials with an empty pwd
	ErrRemotePwdEmpty = errors.New("remote pwd is empty")

	// ErrCanceledByCaller indicates the Connect context was canceled
	ErrCanceledByCaller = errors.New("connecting canceled by caller")

	// ErrConnectionFailed indicates connectivity establishment concluded
	// without a usable candidate pair
	ErrConnectionFailed = errors.New("connectivity establishment failed")

	// ErrNoCandidatePairs indicates the agent has no selected candidate pair
	ErrNoCandidatePairs = errors.New("no candidate pairs available")

	// ErrWriteSTUNMessage indicates an application write that looks like STUN
	ErrWriteSTUNMessage = errors.New("the ICE conn can't write STUN messages")

	// ErrUnknownCandidateType indicates a candidate line with an unknown typ
	ErrUnknownCandidateType = errors.New("unknown candidate type")

	// ErrCandidateLine indicates a candidate line that could not be parsed
	ErrCandidateLine = errors.New("invalid candidate line")

	// ErrAddressParse indicates a transport address that could not be parsed
	ErrAddressParse = errors.New("failed to parse address")

	// ErrDetermineNetworkType indicates an address that maps to no known
	// network type
	ErrDetermineNetworkType = errors.New("unable to determine network type")

	errMismatchUsername   = errors.New("username mismatch")
	errMissingXORAddress  = errors.New("no XOR-MAPPED-ADDRESS in response")
	errParseComponent     = errors.New("could not parse component")
	errParsePriority      = errors.New("could not parse priority")
	errParsePort          = errors.New("could not parse port")
	errParseRelatedAddr   = errors.New("could not parse related addresses")
	errSendPacket         = errors.New("failed to send packet")
	errAttachToClosedPair = errors.New("pair no longer in the checklist")
)
