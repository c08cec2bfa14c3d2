package transfers

import (
	"fmt"
	"time"

	"github.com/pvzzle/walletd/internal/account"

	"github.com/shopspring/decimal"
)

type TransferType string

const (
	TypeIBC         TransferType = "IBC"
	TypeShielded    TransferType = "Shielded"
	TypeNonShielded TransferType = "Non-Shielded"
)

// Transaction is a finalized transfer. It is appended to history and never
// mutated afterwards.
type Transaction struct {
	Source      string
	Target      string
	Type        TransferType
	Amount      decimal.Decimal
	Height      uint64
	TokenType   string
	Gas         decimal.Decimal
	AppliedHash string
	Memo        string
	Timestamp   time.Time
}

// Events is the confirmation shown for the most recently started submission.
type Events struct {
	Gas          decimal.Decimal
	AppliedHash  string
	SubmissionID string
}

type State struct {
	Transactions            []Transaction
	IsTransferSubmitting    bool
	IsIbcTransferSubmitting bool
	TransferError           *string
	Events                  *Events
}

type Token struct {
	Symbol  string
	Address string
}

type TransferArgs struct {
	Account   account.Account
	Target    string
	Token     Token
	Amount    decimal.Decimal
	Memo      string
	Shielded  bool
	UseFaucet bool
}

type IBCTransferArgs struct {
	Account   account.Account
	Target    string
	Token     Token
	Amount    decimal.Decimal
	Memo      string
	ChannelID string
	PortID    string          // "transfer" when empty
	FeeAmount decimal.Decimal // zero when unset
}

// RejectionError is an application-level failure reported by the chain for a
// transaction that was nevertheless included in a block.
type RejectionError struct {
	Code string
	Info string
}

func (e *RejectionError) Error() string {
	if e.Info != "" {
		return e.Info
	}
	return fmt.Sprintf("transaction rejected with code %s", e.Code)
}
