package ice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURL(t *testing.T) {
	for _, tc := range []struct {
		raw      string
		expected URL
	}{
		{"stun:stun.example.net", URL{SchemeTypeSTUN, "stun.example.net", 3478, ProtoTypeUDP}},
		{"stun:stun.example.net:4478", URL{SchemeTypeSTUN, "stun.example.net", 4478, ProtoTypeUDP}},
		{"stuns:stun.example.net", URL{SchemeTypeSTUNS, "stun.example.net", 5349, ProtoTypeUDP}},
		{"stun:192.0.2.1:3478", URL{SchemeTypeSTUN, "192.0.2.1", 3478, ProtoTypeUDP}},
		{"stun:[2001:db8::1]:3478", URL{SchemeTypeSTUN, "2001:db8::1", 3478, ProtoTypeUDP}},
		{"turn:turn.example.net", URL{SchemeTypeTURN, "turn.example.net", 3478, ProtoTypeUDP}},
		{"turns:turn.example.net", URL{SchemeTypeTURNS, "turn.example.net", 5349, ProtoTypeUDP}},
		{"turn:turn.example.net?transport=udp", URL{SchemeTypeTURN, "turn.example.net", 3478, ProtoTypeUDP}},
	} {
		t.Run(tc.raw, func(t *testing.T) {
			u, err := ParseURL(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, *u)
		})
	}
}

func TestParseURLErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		raw  string
		err  error
	}{
		{"unknown scheme", "http://example.net", ErrSchemeType},
		{"empty host", "stun:", ErrHost},
		{"non-opaque form", "stun://stun.example.net", ErrHost},
		{"port zero", "stun:stun.example.net:0", ErrPort},
		{"port overflow", "stun:stun.example.net:65536", ErrPort},
		{"port garbage", "stun:stun.example.net:port", ErrPort},
		{"stun with query", "stun:stun.example.net?transport=udp", ErrSTUNQuery},
		{"turn tcp transport", "turn:turn.example.net?transport=tcp", ErrProtoType},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseURL(tc.raw)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestURLString(t *testing.T) {
	u, err := ParseURL("stun:stun.example.net:4478")
	require.NoError(t, err)
	assert.Equal(t, "stun:stun.example.net:4478", u.String())

	u6, err := ParseURL("stun:[2001:db8::1]:3478")
	require.NoError(t, err)
	assert.Equal(t, "stun:[2001:db8::1]:3478", u6.String())
}
