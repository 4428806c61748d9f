package resolver

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Fantasim/tokenidx/internal/config"
)

// Kind classifies raw user input before any network activity.
type Kind int

const (
	KindEmpty Kind = iota
	KindHex
	KindName
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindHex:
		return "hex"
	case KindName:
		return "name"
	default:
		return "invalid"
	}
}

var (
	hexShapeRegex = regexp.MustCompile(`^(0[xX])?[0-9a-fA-F]{40}$`)
	// Two or more dot-separated labels without whitespace or URL punctuation.
	// Full ENSIP-15 normalization is left to the name service: a name that is
	// not normalized simply does not resolve.
	nameShapeRegex = regexp.MustCompile(`^[^\s./\\:@#?]+(\.[^\s./\\:@#?]+)+$`)
)

// ValidationError is an input problem with a message fit for display.
type ValidationError struct {
	Err     error
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(sentinel error, format string, args ...interface{}) error {
	return &ValidationError{Err: sentinel, Message: fmt.Sprintf(format, args...)}
}

// Classify decides how input should be treated. It never touches the network.
func Classify(input string) Kind {
	s := strings.TrimSpace(input)
	switch {
	case s == "":
		return KindEmpty
	case hexShapeRegex.MatchString(s):
		return KindHex
	case nameShapeRegex.MatchString(strings.ToLower(s)):
		return KindName
	default:
		return KindInvalid
	}
}

// NormalizeName lower-cases and trims an ENS name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ValidateHex checks a 40-hex-digit account identifier. All-lower and all-upper hex are
// accepted as-is; mixed case must match the EIP-55 checksum.
func ValidateHex(input string) (common.Address, error) {
	s := strings.TrimSpace(input)
	if !hexShapeRegex.MatchString(s) {
		return common.Address{}, invalid(config.ErrInvalidAddress,
			"Invalid address. Please enter a valid Ethereum address or ENS name.")
	}

	digits := s
	if len(digits) == 42 {
		digits = digits[2:]
	}

	addr := common.HexToAddress(digits)
	if digits != strings.ToLower(digits) && digits != strings.ToUpper(digits) {
		if addr.Hex()[2:] != digits {
			return common.Address{}, invalid(config.ErrBadChecksum,
				"Invalid address checksum. Check the mixed-case letters or enter the address in lower case.")
		}
	}

	return addr, nil
}
