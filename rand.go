package ice

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/pion/randutil"
)

const (
	runesAlpha                 = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	runesDigit                 = "0123456789"
	runesCandidateIDFoundation = runesAlpha + runesDigit + "+/"

	// Credentials are base64 of raw random bytes: 3 bytes of ufrag clear
	// the 24-bit floor of RFC 8445 5.3, 16 bytes of pwd clear the 128-bit
	// floor.
	ufragRandomBytes = 3
	pwdRandomBytes   = 16
)

// Seeding the generator each call limits the sequence space and collides on
// coarse clocks, so one crypto-seeded math generator is shared.
var globalMathRandomGenerator = randutil.NewMathRandomGenerator() //nolint:gochecknoglobals

// candidateIDGenerator is a random candidate ID generator. Candidate IDs
// appear in SDP and need uniqueness, not unpredictability.
type candidateIDGenerator struct {
	randutil.MathRandomGenerator
}

func newCandidateIDGenerator() *candidateIDGenerator {
	return &candidateIDGenerator{globalMathRandomGenerator}
}

func (g *candidateIDGenerator) Generate() string {
	// candidate-id = "candidate" ":" foundation
	// foundation   = 1*32ice-char
	// ice-char     = ALPHA / DIGIT / "+" / "/"
	return "candidate:" + g.MathRandomGenerator.GenerateString(32, runesCandidateIDFoundation)
}

// generateTieBreaker produces the 64-bit value carried in ICE-CONTROLLING
// and ICE-CONTROLLED attributes. Never fixed: equal tie-breakers on both
// sides make role conflicts unresolvable.
func generateTieBreaker() uint64 {
	return globalMathRandomGenerator.Uint64()
}

func generateUFrag() (string, error) {
	return generateCredential(ufragRandomBytes)
}

func generatePwd() (string, error) {
	return generateCredential(pwdRandomBytes)
}

// generateCredential returns the unpadded base64 of n crypto-random bytes.
// The base64 alphabet is a subset of ice-char; omitting padding keeps "="
// out of the credential.
func generateCredential(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawStdEncoding.EncodeToString(b), nil
}
