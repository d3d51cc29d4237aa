// Package ident converts between numeric content ids and the public base62 uuids
// used in platform URLs.
package ident

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

var base = big.NewInt(62)

// ErrMalformedIdentifier is returned when a uuid cannot be decoded into an id.
var ErrMalformedIdentifier = errors.New("malformed identifier")

// ToUUID encodes id as base62 over the big-endian bytes of its decimal ASCII form.
func ToUUID(id uint64) string {
	n := new(big.Int).SetBytes([]byte(strconv.FormatUint(id, 10)))

	var out []byte
	rem := new(big.Int)
	for n.Sign() > 0 {
		n.DivMod(n, base, rem)
		out = append(out, alphabet[rem.Int64()])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}

// FromUUID reverses ToUUID.
func FromUUID(uuid string) (uint64, error) {
	if uuid == "" {
		return 0, fmt.Errorf("%w: empty uuid", ErrMalformedIdentifier)
	}

	n := new(big.Int)
	for _, r := range uuid {
		idx := strings.IndexRune(alphabet, r)
		if idx < 0 {
			return 0, fmt.Errorf("%w: invalid character %q in %q", ErrMalformedIdentifier, r, uuid)
		}
		n.Mul(n, base)
		n.Add(n, big.NewInt(int64(idx)))
	}

	digits := n.Bytes()
	if len(digits) == 0 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedIdentifier, uuid)
	}
	for _, b := range digits {
		if b < '0' || b > '9' {
			return 0, fmt.Errorf("%w: %q does not decode to a decimal id", ErrMalformedIdentifier, uuid)
		}
	}

	id, err := strconv.ParseUint(string(digits), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedIdentifier, err)
	}
	return id, nil
}
