// Package extract pulls addresses out of command output.
package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/deepnoodle-ai/deploy"
	"github.com/ethereum/go-ethereum/common"
)

// AddressExpr matches a 0x-prefixed 20-byte hex address
const AddressExpr = `0x[a-fA-F0-9]{40}`

// Pattern is a named extraction rule. The first capture group is the value.
type Pattern struct {
	name string
	re   *regexp.Regexp
}

// New compiles a pattern
func New(name, expr string) (*Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", name, err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("pattern %q has no capture group", name)
	}
	return &Pattern{name: name, re: re}, nil
}

// MustCompile is like New but panics on error
func MustCompile(name, expr string) *Pattern {
	p, err := New(name, expr)
	if err != nil {
		panic(err)
	}
	return p
}

// AddressAfter matches an address following marker and whitespace, e.g.
// "BGT deployed at:" followed by "  0x...".
func AddressAfter(marker string) *Pattern {
	return MustCompile(marker, regexp.QuoteMeta(marker)+`\s+(`+AddressExpr+`)`)
}

// Name returns the pattern's name
func (p *Pattern) Name() string {
	return p.name
}

func (p *Pattern) String() string {
	return p.re.String()
}

// Find returns the first capture group of the first match in text
func Find(text string, p *Pattern) (string, bool) {
	m := p.re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Require is like Find but reports a miss as an extraction_miss error
func Require(text string, p *Pattern) (string, error) {
	value, ok := Find(text, p)
	if !ok {
		return "", deploy.NewExtractionMiss(p.name)
	}
	return value, nil
}

// FindAll returns the capture groups of every match in text, in order
func FindAll(text string, p *Pattern) [][]string {
	matches := p.re.FindAllStringSubmatch(text, -1)
	groups := make([][]string, 0, len(matches))
	for _, m := range matches {
		groups = append(groups, m[1:])
	}
	return groups
}

// IsAddress reports whether s is a 0x-prefixed 20-byte hex address
func IsAddress(s string) bool {
	return strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}

// Checksum returns the EIP-55 form of an address
func Checksum(s string) string {
	return common.HexToAddress(s).Hex()
}
