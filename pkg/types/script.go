package types

import (
	"encoding/hex"
	"encoding/json"
)

// ScriptType identifies the type of locking/unlocking script.
type ScriptType uint8

const (
	ScriptTypeP2PKH         ScriptType = 0x01 // Pay to public key hash
	ScriptTypeZerocoinMint  ScriptType = 0x50 // Output carrying a coin commitment (data = commitment, big-endian)
	ScriptTypeZerocoinSpend ScriptType = 0x51 // Input revealing a coin serial number (data = serial, big-endian)
)

// String returns a human-readable name for the script type.
func (st ScriptType) String() string {
	switch st {
	case ScriptTypeP2PKH:
		return "P2PKH"
	case ScriptTypeZerocoinMint:
		return "ZerocoinMint"
	case ScriptTypeZerocoinSpend:
		return "ZerocoinSpend"
	default:
		return "Unknown"
	}
}

// Script defines the locking condition for an output, or the unlocking
// data of an input.
type Script struct {
	Type ScriptType `json:"type"`
	Data []byte     `json:"data"`
}

// IsZerocoinMint reports whether the script publishes a coin commitment.
func (s Script) IsZerocoinMint() bool {
	return s.Type == ScriptTypeZerocoinMint
}

// IsZerocoinSpend reports whether the script reveals a coin serial.
func (s Script) IsZerocoinSpend() bool {
	return s.Type == ScriptTypeZerocoinSpend
}

// scriptJSON is the JSON representation of a Script with hex-encoded data.
type scriptJSON struct {
	Type ScriptType `json:"type"`
	Data string     `json:"data"`
}

// MarshalJSON encodes the script with hex-encoded data.
func (s Script) MarshalJSON() ([]byte, error) {
	return json.Marshal(scriptJSON{
		Type: s.Type,
		Data: hex.EncodeToString(s.Data),
	})
}

// UnmarshalJSON decodes a script with hex-encoded data.
func (s *Script) UnmarshalJSON(data []byte) error {
	var j scriptJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	s.Type = j.Type
	if j.Data != "" {
		b, err := hex.DecodeString(j.Data)
		if err != nil {
			return err
		}
		s.Data = b
	}
	return nil
}
