package chain

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrSocketClosed = errors.New("socket closed")
	ErrNoEpoch      = errors.New("epoch not available")
)

// microPerUnit is the divisor between on-chain micro amounts and display units.
var microPerUnit = decimal.NewFromInt(1000)

// MicroToUnits converts an on-chain micro amount (gas used, raw balance) to units.
func MicroToUnits(v decimal.Decimal) decimal.Decimal {
	return v.Div(microPerUnit)
}

// BlockEvent is the applied-transaction event for a single tx hash, decoded once
// from the websocket payload.
type BlockEvent struct {
	GasUsed decimal.Decimal
	Hash    string
	Height  uint64
	Code    string
	Info    string
}

// OK reports whether the application accepted the tx.
func (e BlockEvent) OK() bool { return e.Code == "" || e.Code == "0" }

type EpochQuerier interface {
	QueryEpoch(ctx context.Context) (uint64, error)
}

type BalanceQuerier interface {
	QueryBalance(ctx context.Context, owner, token string) (decimal.Decimal, error)
}

// Socket is a single node connection used for one submission.
type Socket interface {
	BroadcastTx(ctx context.Context, tx []byte) error
	SubscribeNewBlock(ctx context.Context, hash string) (BlockEvent, error)
	Disconnect()
}

type SocketDialer interface {
	Dial(ctx context.Context) (Socket, error)
}
