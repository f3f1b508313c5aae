package probe

import (
	"regexp"

	"github.com/hicap-labs/thinkprobe/internal/stream"
)

// MinSignatureLength is the shortest integrity token seen in practice;
// anything under it is suspicious but not disqualifying.
const MinSignatureLength = 50

// Integrity tokens are base64-flavored; URL-safe and padding characters
// included.
var signaturePattern = regexp.MustCompile(`^[A-Za-z0-9+/=_-]+$`)

// SignatureChecks is the structural analysis of a captured integrity token.
// Present and NonEmpty are the critical pair; format and length are
// advisory.
type SignatureChecks struct {
	Present          bool `json:"present"`
	NonEmpty         bool `json:"non_empty"`
	ValidFormat      bool `json:"valid_format"`
	ReasonableLength bool `json:"reasonable_length"`
	Length           int  `json:"length"`
	Passed           bool `json:"passed"`
}

// VerifySignature analyzes the token captured in a turn.
func VerifySignature(res stream.TurnResult) SignatureChecks {
	sig := res.Signature
	c := SignatureChecks{
		Present:          res.SignaturePresent,
		NonEmpty:         len(sig) > 0,
		ValidFormat:      len(sig) > 0 && signaturePattern.MatchString(sig),
		ReasonableLength: len(sig) >= MinSignatureLength,
		Length:           len(sig),
	}
	c.Passed = c.Present && c.NonEmpty
	return c
}
