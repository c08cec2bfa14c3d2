package builder

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

var ErrInvalidKey = errors.New("invalid private key")

type TransferMsg struct {
	Source     string
	Target     string
	Token      string
	Amount     decimal.Decimal
	Epoch      uint64
	Shielded   bool
	Memo       string
	PrivateKey string
}

type IBCTransferMsg struct {
	TransferMsg
	PortID    string
	ChannelID string
	FeeAmount decimal.Decimal
}

// SignedTx is a transaction ready for broadcast. Hash is the pre-broadcast hash;
// the applied hash reported by the node may differ.
type SignedTx struct {
	Hash  string
	Bytes []byte
}

type Builder interface {
	MakeTransfer(ctx context.Context, msg TransferMsg) (SignedTx, error)
	MakeIBCTransfer(ctx context.Context, msg IBCTransferMsg) (SignedTx, error)
}

type payload struct {
	Kind      string `json:"kind"`
	ChainID   string `json:"chain_id"`
	Source    string `json:"source"`
	Target    string `json:"target"`
	Token     string `json:"token"`
	Amount    string `json:"amount"`
	Epoch     uint64 `json:"epoch"`
	Shielded  bool   `json:"shielded,omitempty"`
	Memo      string `json:"memo,omitempty"`
	PortID    string `json:"port_id,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`
	Fee       string `json:"fee,omitempty"`
}

type envelope struct {
	Payload   json.RawMessage `json:"payload"`
	PublicKey string          `json:"pk"`
	Signature string          `json:"sig"`
}

// EnvelopeBuilder signs transfers as a JSON payload plus secp256k1 signature.
// Keys are used for the duration of one call and never retained.
type EnvelopeBuilder struct {
	chainID string
}

func Init(chainID string) *EnvelopeBuilder {
	return &EnvelopeBuilder{chainID: chainID}
}

func (b *EnvelopeBuilder) MakeTransfer(ctx context.Context, msg TransferMsg) (SignedTx, error) {
	return b.sign(ctx, msg.PrivateKey, payload{
		Kind:     "transfer",
		ChainID:  b.chainID,
		Source:   msg.Source,
		Target:   msg.Target,
		Token:    msg.Token,
		Amount:   msg.Amount.String(),
		Epoch:    msg.Epoch,
		Shielded: msg.Shielded,
		Memo:     msg.Memo,
	})
}

func (b *EnvelopeBuilder) MakeIBCTransfer(ctx context.Context, msg IBCTransferMsg) (SignedTx, error) {
	return b.sign(ctx, msg.PrivateKey, payload{
		Kind:      "ibc_transfer",
		ChainID:   b.chainID,
		Source:    msg.Source,
		Target:    msg.Target,
		Token:     msg.Token,
		Amount:    msg.Amount.String(),
		Epoch:     msg.Epoch,
		Memo:      msg.Memo,
		PortID:    msg.PortID,
		ChannelID: msg.ChannelID,
		Fee:       msg.FeeAmount.String(),
	})
}

func (b *EnvelopeBuilder) sign(ctx context.Context, privateKey string, p payload) (SignedTx, error) {
	if err := ctx.Err(); err != nil {
		return SignedTx{}, err
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKey, "0x"))
	if err != nil {
		return SignedTx{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return SignedTx{}, fmt.Errorf("encode payload: %w", err)
	}

	sig, err := crypto.Sign(crypto.Keccak256(raw), key)
	if err != nil {
		return SignedTx{}, fmt.Errorf("sign: %w", err)
	}

	bz, err := json.Marshal(envelope{
		Payload:   raw,
		PublicKey: hexutil.Encode(crypto.CompressPubkey(&key.PublicKey)),
		Signature: hexutil.Encode(sig),
	})
	if err != nil {
		return SignedTx{}, fmt.Errorf("encode envelope: %w", err)
	}

	return SignedTx{
		Hash:  strings.ToUpper(hex.EncodeToString(crypto.Keccak256(bz))),
		Bytes: bz,
	}, nil
}

// ValidateKey reports whether privateKey parses as a secp256k1 key.
func ValidateKey(privateKey string) error {
	if _, err := crypto.HexToECDSA(strings.TrimPrefix(privateKey, "0x")); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return nil
}
