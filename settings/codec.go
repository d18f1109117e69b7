package settings

import (
	"errors"
	"fmt"
)

// TokenLength is the number of significant characters in a line-setting token
// such as "8N1".
const TokenLength = 3

// Parity is the parity mode of a line setting
type Parity int

const (
	ParityNone Parity = iota
	ParityEven
	ParityOdd
	ParityMark
	ParitySpace
)

func (p Parity) String() string {
	switch p {
	case ParityNone:
		return "N"
	case ParityEven:
		return "E"
	case ParityOdd:
		return "O"
	case ParityMark:
		return "M"
	case ParitySpace:
		return "S"
	default:
		return "?"
	}
}

// StopBits is the number of stop bits of a line setting
type StopBits int

const (
	StopBitsOne StopBits = iota
	StopBitsTwo
)

func (s StopBits) String() string {
	switch s {
	case StopBitsOne:
		return "1"
	case StopBitsTwo:
		return "2"
	default:
		return "?"
	}
}

// LineSetting is a decoded line-setting token. Only Decode produces one.
type LineSetting struct {
	Token    string // first three characters of the source token
	ByteSize int
	Parity   Parity
	StopBits StopBits
}

// String returns the canonical token, e.g. "8N1"
func (l LineSetting) String() string {
	return fmt.Sprintf("%d%s%s", l.ByteSize, l.Parity, l.StopBits)
}

// Kind classifies a DecodeError
type Kind int

const (
	Malformed Kind = iota
	UnsupportedByteSize
	UnsupportedParity
	UnsupportedStopBits
)

var (
	ErrMalformed           = errors.New("malformed line setting")
	ErrUnsupportedByteSize = errors.New("unsupported byte size")
	ErrUnsupportedParity   = errors.New("unsupported parity")
	ErrUnsupportedStopBits = errors.New("unsupported stop bits")
)

func (k Kind) sentinel() error {
	switch k {
	case UnsupportedByteSize:
		return ErrUnsupportedByteSize
	case UnsupportedParity:
		return ErrUnsupportedParity
	case UnsupportedStopBits:
		return ErrUnsupportedStopBits
	default:
		return ErrMalformed
	}
}

// DecodeError reports why a token could not be decoded
type DecodeError struct {
	Token string
	Kind  Kind
	Char  byte // offending character, zero for Malformed
}

func (e *DecodeError) Error() string {
	if e.Kind == Malformed {
		return fmt.Sprintf("%v %q: want %d characters like 8N1", ErrMalformed, e.Token, TokenLength)
	}
	return fmt.Sprintf("%v %q in line setting %q", e.Kind.sentinel(), e.Char, e.Token)
}

// Is lets callers match with errors.Is(err, settings.ErrUnsupportedParity)
func (e *DecodeError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

var (
	byteSizes = map[byte]int{'5': 5, '6': 6, '7': 7, '8': 8}

	parities = map[byte]Parity{
		'N': ParityNone,
		'E': ParityEven,
		'O': ParityOdd,
		'M': ParityMark,
		'S': ParitySpace,
	}

	stopBits = map[byte]StopBits{'1': StopBitsOne, '2': StopBitsTwo}
)

// Decode converts a token of shape <digit><parity-letter><digit> into a
// LineSetting. Tokens longer than TokenLength are decoded from their first
// three characters; see Oversized.
func Decode(token string) (LineSetting, error) {
	if len(token) < TokenLength {
		return LineSetting{}, &DecodeError{Token: token, Kind: Malformed}
	}

	size, ok := byteSizes[token[0]]
	if !ok {
		return LineSetting{}, &DecodeError{Token: token, Kind: UnsupportedByteSize, Char: token[0]}
	}

	parity, ok := parities[token[1]]
	if !ok {
		return LineSetting{}, &DecodeError{Token: token, Kind: UnsupportedParity, Char: token[1]}
	}

	stop, ok := stopBits[token[2]]
	if !ok {
		return LineSetting{}, &DecodeError{Token: token, Kind: UnsupportedStopBits, Char: token[2]}
	}

	return LineSetting{
		Token:    token[:TokenLength],
		ByteSize: size,
		Parity:   parity,
		StopBits: stop,
	}, nil
}

// Oversized reports whether token carries characters past TokenLength that
// Decode ignores.
func Oversized(token string) bool {
	return len(token) > TokenLength
}
