// Package bech32 implements BIP173 bech32 encoding, used for age key
// material (age1... recipients, AGE-SECRET-KEY-1... identities).
package bech32

import (
	"fmt"
	"strings"
)

const charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

var generator = [5]uint32{0x3b6a57b2, 0x26508e6d, 0x1ea119fa, 0x3d4233dd, 0x2a1462b3}

func polymod(values []byte) uint32 {
	chk := uint32(1)
	for _, v := range values {
		top := chk >> 25
		chk = (chk&0x1ffffff)<<5 ^ uint32(v)
		for i := 0; i < 5; i++ {
			if (top>>uint(i))&1 == 1 {
				chk ^= generator[i]
			}
		}
	}
	return chk
}

func hrpExpand(hrp string) []byte {
	out := make([]byte, 0, len(hrp)*2+1)
	for i := 0; i < len(hrp); i++ {
		out = append(out, hrp[i]>>5)
	}
	out = append(out, 0)
	for i := 0; i < len(hrp); i++ {
		out = append(out, hrp[i]&31)
	}
	return out
}

func createChecksum(hrp string, data []byte) []byte {
	values := append(hrpExpand(hrp), data...)
	values = append(values, 0, 0, 0, 0, 0, 0)
	mod := polymod(values) ^ 1
	out := make([]byte, 6)
	for i := 0; i < 6; i++ {
		out[i] = byte((mod >> uint(5*(5-i))) & 31)
	}
	return out
}

func verifyChecksum(hrp string, data []byte) bool {
	return polymod(append(hrpExpand(hrp), data...)) == 1
}

func convertBits(data []byte, fromBits, toBits uint, pad bool) ([]byte, error) {
	var acc uint32
	var bits uint
	maxv := uint32(1)<<toBits - 1
	out := make([]byte, 0, len(data)*int(fromBits)/int(toBits)+1)

	for _, b := range data {
		if uint32(b)>>fromBits != 0 {
			return nil, fmt.Errorf("invalid data value %d for %d-bit group", b, fromBits)
		}
		acc = acc<<fromBits | uint32(b)
		bits += fromBits
		for bits >= toBits {
			bits -= toBits
			out = append(out, byte((acc>>bits)&maxv))
		}
	}

	if pad {
		if bits > 0 {
			out = append(out, byte((acc<<(toBits-bits))&maxv))
		}
	} else if bits >= fromBits || (acc<<(toBits-bits))&maxv != 0 {
		return nil, fmt.Errorf("invalid padding in bit groups")
	}
	return out, nil
}

func validateHRP(hrp string) error {
	if hrp == "" {
		return fmt.Errorf("human-readable part cannot be empty")
	}
	hasLower := false
	hasUpper := false
	for i := 0; i < len(hrp); i++ {
		c := hrp[i]
		if c < 33 || c > 126 {
			return fmt.Errorf("invalid character %q in human-readable part", c)
		}
		if c >= 'a' && c <= 'z' {
			hasLower = true
		}
		if c >= 'A' && c <= 'Z' {
			hasUpper = true
		}
	}
	if hasLower && hasUpper {
		return fmt.Errorf("mixed case in human-readable part")
	}
	return nil
}

// Encode encodes data as bech32 with the given human-readable part. An
// all-uppercase HRP produces an all-uppercase string.
func Encode(hrp string, data []byte) (string, error) {
	if err := validateHRP(hrp); err != nil {
		return "", err
	}

	grouped, err := convertBits(data, 8, 5, true)
	if err != nil {
		return "", err
	}

	lowerHRP := strings.ToLower(hrp)
	combined := append(grouped, createChecksum(lowerHRP, grouped)...)

	var b strings.Builder
	b.WriteString(lowerHRP)
	b.WriteByte('1')
	for _, v := range combined {
		b.WriteByte(charset[v])
	}

	if strings.ToUpper(hrp) == hrp && strings.ToLower(hrp) != hrp {
		return strings.ToUpper(b.String()), nil
	}
	return b.String(), nil
}

// Decode decodes a bech32 string, returning the human-readable part in its
// original case and the decoded data.
func Decode(s string) (string, []byte, error) {
	if strings.ToLower(s) != s && strings.ToUpper(s) != s {
		return "", nil, fmt.Errorf("mixed case bech32 string")
	}

	sep := strings.LastIndex(s, "1")
	if sep < 1 {
		return "", nil, fmt.Errorf("missing or misplaced separator")
	}
	hrp := s[:sep]
	dataPart := strings.ToLower(s[sep+1:])
	if len(dataPart) < 6 {
		return "", nil, fmt.Errorf("data part too short")
	}
	if err := validateHRP(hrp); err != nil {
		return "", nil, err
	}

	data := make([]byte, 0, len(dataPart))
	for i := 0; i < len(dataPart); i++ {
		idx := strings.IndexByte(charset, dataPart[i])
		if idx < 0 {
			return "", nil, fmt.Errorf("invalid character %q in data part", dataPart[i])
		}
		data = append(data, byte(idx))
	}

	if !verifyChecksum(strings.ToLower(hrp), data) {
		return "", nil, fmt.Errorf("invalid checksum")
	}

	decoded, err := convertBits(data[:len(data)-6], 5, 8, false)
	if err != nil {
		return "", nil, err
	}
	return hrp, decoded, nil
}
