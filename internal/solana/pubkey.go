// Package solana holds the small amount of chain plumbing the relay needs:
// public key validation and the programSubscribe wire format.
package solana

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// PumpFunProgram is the pump.fun bonding curve program ID.
const PumpFunProgram = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"

const pubkeySize = 32

// ValidatePubkey checks that s is a base58-encoded 32-byte Solana public key.
func ValidatePubkey(s string) error {
	decoded, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("decode pubkey: %w", err)
	}
	if len(decoded) != pubkeySize {
		return fmt.Errorf("pubkey is %d bytes, want %d", len(decoded), pubkeySize)
	}
	return nil
}
