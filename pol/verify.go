package pol

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/math"
)

// VerificationOutcome classifies the BGT balance samples
type VerificationOutcome string

const (
	VerificationIncreasing    VerificationOutcome = "increasing"
	VerificationNotIncreasing VerificationOutcome = "not_increasing"
	VerificationInconclusive  VerificationOutcome = "inconclusive"
	VerificationSkipped       VerificationOutcome = "skipped"
)

// Verification records the result of the verify step
type Verification struct {
	Address string              `json:"address,omitempty"`
	Samples []string            `json:"samples,omitempty"`
	Outcome VerificationOutcome `json:"outcome"`
}

// ParseBalance parses a wei balance as printed by cast
func ParseBalance(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	// Drop a trailing annotation such as "123 [1.23e2]".
	if i := strings.IndexByte(s, ' '); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return nil, fmt.Errorf("empty balance")
	}
	v, ok := math.ParseBig256(s)
	if !ok {
		return nil, fmt.Errorf("invalid balance %q", s)
	}
	return v, nil
}

// EvaluateBalances reports whether the samples show a growing balance: they
// are not all equal and the last exceeds the first.
func EvaluateBalances(samples []*big.Int) bool {
	if len(samples) < 2 {
		return false
	}
	distinct := false
	for _, s := range samples[1:] {
		if s.Cmp(samples[0]) != 0 {
			distinct = true
			break
		}
	}
	return distinct && samples[len(samples)-1].Cmp(samples[0]) > 0
}

// evaluateSamples classifies raw balance samples
func evaluateSamples(raw []string) VerificationOutcome {
	values := make([]*big.Int, 0, len(raw))
	for _, s := range raw {
		v, err := ParseBalance(s)
		if err != nil {
			return VerificationInconclusive
		}
		values = append(values, v)
	}
	if EvaluateBalances(values) {
		return VerificationIncreasing
	}
	return VerificationNotIncreasing
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
