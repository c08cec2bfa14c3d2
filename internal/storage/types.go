package storage

import "time"

type TransferRecord struct {
	AppliedHash string
	ChainID     string
	Kind        string // IBC | Shielded | Non-Shielded
	Source      string
	Target      string
	Amount      string // decimal string in display units
	TokenType   string
	Gas         string
	Height      uint64
	Memo        string
	SubmittedAt time.Time
}

type TransferEventType string

const (
	EventSubmit TransferEventType = "submit"
	EventFaucet TransferEventType = "faucet"
)

type HistoryItem struct {
	At        time.Time
	EventType TransferEventType

	AppliedHash string
	Kind        string
	Target      string
	Amount      string
	TokenType   string
	Height      uint64
}
