package storage

import "context"

// Recorder persists finalized transfers.
type Recorder interface {
	UpsertTransfer(ctx context.Context, tr TransferRecord) error
}

type Repository interface {
	Recorder

	EnsureSchema(ctx context.Context) error
	AddChatEvent(ctx context.Context, chatID int64, appliedHash string, eventType TransferEventType) error
	ListHistory(ctx context.Context, chatID int64, limit int) ([]HistoryItem, error)
}
