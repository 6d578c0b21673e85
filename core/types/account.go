package types

import (
	"encoding/hex"
	"fmt"
)

// Address identifies an account on the host ledger.
type Address [20]byte

// MintID identifies a token mint (fungible units or a single NFT).
type MintID [32]byte

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte {
	return append([]byte(nil), a[:]...)
}

// String renders the address as lowercase hex.
func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return a == Address{}
}

// ParseAddress decodes a hex encoded address.
func ParseAddress(s string) (Address, error) {
	var addr Address
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Address{}, fmt.Errorf("types: invalid address %q: %w", s, err)
	}
	if len(raw) != len(addr) {
		return Address{}, fmt.Errorf("types: address must be %d bytes, got %d", len(addr), len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}

// Bytes returns a copy of the raw mint bytes.
func (m MintID) Bytes() []byte {
	return append([]byte(nil), m[:]...)
}

// String renders the mint identifier as lowercase hex.
func (m MintID) String() string {
	return hex.EncodeToString(m[:])
}

// IsZero reports whether the mint identifier is unset.
func (m MintID) IsZero() bool {
	return m == MintID{}
}

// ParseMintID decodes a hex encoded mint identifier.
func ParseMintID(s string) (MintID, error) {
	var mint MintID
	raw, err := hex.DecodeString(s)
	if err != nil {
		return MintID{}, fmt.Errorf("types: invalid mint %q: %w", s, err)
	}
	if len(raw) != len(mint) {
		return MintID{}, fmt.Errorf("types: mint must be %d bytes, got %d", len(mint), len(raw))
	}
	copy(mint[:], raw)
	return mint, nil
}
