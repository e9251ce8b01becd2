// Package events normalizes raw Solana programNotification frames into the
// TokenEvent wire shape the relay broadcasts to clients.
package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// TokenEvent is the normalized event serialized to clients.
type TokenEvent struct {
	EventType            string       `json:"event_type"`
	Timestamp            string       `json:"timestamp"`
	TransactionSignature string       `json:"transaction_signature"`
	Token                TokenDetails `json:"token"`
	PumpData             PumpData     `json:"pump_data"`
}

// TokenDetails describes the token the notification refers to.
type TokenDetails struct {
	MintAddress string `json:"mint_address"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Creator     string `json:"creator"`
	Supply      uint64 `json:"supply"`
	Decimals    uint8  `json:"decimals"`
}

// PumpData holds bonding curve state for the token.
type PumpData struct {
	BondingCurve         string `json:"bonding_curve"`
	VirtualSolReserves   uint64 `json:"virtual_sol_reserves"`
	VirtualTokenReserves uint64 `json:"virtual_token_reserves"`
}

// Placeholder values for the fields the relay does not decode from the
// account's binary payload. Decoding the pump.fun account layout is out of
// scope; these keep the wire shape stable for consumers.
const (
	placeholderSymbol        = "MTK"
	placeholderCreator       = "DEF456..."
	placeholderBondingCurve  = "GHI789..."
	placeholderSupply        = 1_000_000_000
	placeholderDecimals      = 6
	placeholderSolReserves   = 30_000_000_000
	placeholderTokenReserves = 1_073_000_000_000_000
)

// notification mirrors the subset of a programNotification frame the
// normalizer inspects.
type notification struct {
	Method string `json:"method"`
	Params struct {
		Result struct {
			Context struct {
				Slot *uint64 `json:"slot"`
			} `json:"context"`
			Value struct {
				Pubkey  string `json:"pubkey"`
				Account *struct {
					Owner string `json:"owner"`
				} `json:"account"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
}

// Parse normalizes a raw upstream frame. It returns the serialized TokenEvent
// and true when the frame is a programNotification for an account owned by
// programID, and ("", false) otherwise — including for frames that are not
// valid JSON. The caller decides what to do with frames it declines.
//
// The transaction signature is synthesized from the pubkey and slot; it is
// not a real chain signature.
func Parse(raw []byte, programID string, now time.Time) (string, bool) {
	var n notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", false
	}
	if n.Method != "programNotification" {
		return "", false
	}

	pubkey := n.Params.Result.Value.Pubkey
	slot := n.Params.Result.Context.Slot
	if pubkey == "" || slot == nil {
		return "", false
	}

	account := n.Params.Result.Value.Account
	if account == nil || account.Owner != programID {
		return "", false
	}

	short := pubkey
	if len(short) > 8 {
		short = short[:8]
	}

	event := TokenEvent{
		EventType:            "token_created",
		Timestamp:            now.UTC().Format(time.RFC3339),
		TransactionSignature: fmt.Sprintf("%s_%d", short, *slot),
		Token: TokenDetails{
			MintAddress: pubkey,
			Name:        "Token_" + short,
			Symbol:      placeholderSymbol,
			Creator:     placeholderCreator,
			Supply:      placeholderSupply,
			Decimals:    placeholderDecimals,
		},
		PumpData: PumpData{
			BondingCurve:         placeholderBondingCurve,
			VirtualSolReserves:   placeholderSolReserves,
			VirtualTokenReserves: placeholderTokenReserves,
		},
	}

	out, err := json.Marshal(event)
	if err != nil {
		return "", false
	}
	return string(out), true
}
