package ice

import (
	"fmt"
	"strings"

	"github.com/pion/stun"
)

func assertInboundUsername(m *stun.Message, expectedUsername string) error {
	var username stun.Username
	if err := username.GetFrom(m); err != nil {
		return err
	}
	if string(username) != expectedUsername {
		return fmt.Errorf("%w expected(%s) actual(%s)", errMismatchUsername, expectedUsername, string(username))
	}
	return nil
}

// assertInboundUsernamePrefix verifies only the local half of the USERNAME.
// Used while the remote ufrag is still unknown.
func assertInboundUsernamePrefix(m *stun.Message, prefix string) error {
	var username stun.Username
	if err := username.GetFrom(m); err != nil {
		return err
	}
	if !strings.HasPrefix(string(username), prefix) {
		return fmt.Errorf("%w expected prefix(%s) actual(%s)", errMismatchUsername, prefix, string(username))
	}
	return nil
}

func assertInboundMessageIntegrity(m *stun.Message, key []byte) error {
	messageIntegrityAttr := stun.MessageIntegrity(key)
	return messageIntegrityAttr.Check(m)
}

func assertInboundFingerprint(m *stun.Message) error {
	return stun.Fingerprint.Check(m)
}

// isBindingTraffic reports whether the message is something an agent
// processes at all: a Binding request, indication or response.
func isBindingTraffic(m *stun.Message) bool {
	if m.Type.Method != stun.MethodBinding {
		return false
	}
	switch m.Type.Class {
	case stun.ClassRequest, stun.ClassIndication, stun.ClassSuccessResponse, stun.ClassErrorResponse:
		return true
	default:
		return false
	}
}
