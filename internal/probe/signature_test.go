package probe

import (
	"strings"
	"testing"

	"github.com/hicap-labs/thinkprobe/internal/stream"
)

func TestVerifySignature(t *testing.T) {
	long := strings.Repeat("Ab3+/=_-", 10) // 80 chars, all in the allowed set

	tests := []struct {
		name string
		res  stream.TurnResult
		want SignatureChecks
	}{
		{
			name: "full token",
			res:  stream.TurnResult{Signature: long, SignaturePresent: true},
			want: SignatureChecks{Present: true, NonEmpty: true, ValidFormat: true, ReasonableLength: true, Length: 80, Passed: true},
		},
		{
			name: "absent",
			res:  stream.TurnResult{},
			want: SignatureChecks{},
		},
		{
			name: "short but valid",
			res:  stream.TurnResult{Signature: "abc", SignaturePresent: true},
			want: SignatureChecks{Present: true, NonEmpty: true, ValidFormat: true, Length: 3, Passed: true},
		},
		{
			name: "bad charset",
			res:  stream.TurnResult{Signature: "ab c!", SignaturePresent: true},
			want: SignatureChecks{Present: true, NonEmpty: true, Length: 5, Passed: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VerifySignature(tt.res); got != tt.want {
				t.Fatalf("VerifySignature = %+v, want %+v", got, tt.want)
			}
		})
	}
}
