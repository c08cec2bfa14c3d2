package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/pvzzle/walletd/internal/storage"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Postgres struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Postgres { return &Postgres{pool: pool} }

func (r *Postgres) EnsureSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS transfers (
  applied_hash TEXT PRIMARY KEY,
  chain_id TEXT NOT NULL,

  kind   TEXT NOT NULL, -- IBC|Shielded|Non-Shielded
  source TEXT NOT NULL,
  target TEXT NOT NULL,

  amount     NUMERIC NOT NULL,
  token_type TEXT NOT NULL,
  gas        NUMERIC NOT NULL,
  height     BIGINT NOT NULL,
  memo       TEXT NOT NULL DEFAULT '',

  submitted_at TIMESTAMPTZ NOT NULL,
  updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS chat_transfers (
  chat_id BIGINT NOT NULL,
  applied_hash TEXT NOT NULL REFERENCES transfers(applied_hash) ON DELETE CASCADE,
  event_type TEXT NOT NULL, -- submit|faucet
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (chat_id, applied_hash, event_type)
);

CREATE INDEX IF NOT EXISTS chat_transfers_chat_created_idx ON chat_transfers(chat_id, created_at DESC);
`
	_, err := r.pool.Exec(ctx, ddl)
	return err
}

func (r *Postgres) UpsertTransfer(ctx context.Context, tr storage.TransferRecord) error {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	q := `
INSERT INTO transfers(
  applied_hash, chain_id, kind, source, target,
  amount, token_type, gas, height, memo, submitted_at
) VALUES (
  $1, $2, $3, $4, $5,
  $6::numeric, $7, $8::numeric, $9, $10, $11
)
ON CONFLICT(applied_hash) DO UPDATE SET
  chain_id   = EXCLUDED.chain_id,
  kind       = EXCLUDED.kind,
  gas        = EXCLUDED.gas,
  height     = GREATEST(EXCLUDED.height, transfers.height),
  updated_at = now()
`
	_, err := r.pool.Exec(cctx, q,
		tr.AppliedHash, tr.ChainID, tr.Kind, tr.Source, tr.Target,
		tr.Amount, tr.TokenType, tr.Gas, int64(tr.Height), tr.Memo, tr.SubmittedAt,
	)
	return err
}

func (r *Postgres) AddChatEvent(ctx context.Context, chatID int64, appliedHash string, eventType storage.TransferEventType) error {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	_, err := r.pool.Exec(cctx,
		`INSERT INTO chat_transfers(chat_id, applied_hash, event_type) VALUES ($1, $2, $3)
		 ON CONFLICT DO NOTHING`,
		chatID, appliedHash, string(eventType),
	)
	return err
}

func (r *Postgres) ListHistory(ctx context.Context, chatID int64, limit int) ([]storage.HistoryItem, error) {
	if limit <= 0 {
		limit = 10
	}
	cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	q := `
SELECT
  c.created_at,
  c.event_type,
  t.applied_hash,
  t.kind,
  t.target,
  t.amount::text,
  t.token_type,
  t.height
FROM chat_transfers c
JOIN transfers t ON t.applied_hash = c.applied_hash
WHERE c.chat_id = $1
ORDER BY c.created_at DESC
LIMIT $2
`
	rows, err := r.pool.Query(cctx, q, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.HistoryItem
	for rows.Next() {
		var (
			it     storage.HistoryItem
			etype  string
			height int64
		)
		if err := rows.Scan(&it.At, &etype, &it.AppliedHash, &it.Kind, &it.Target, &it.Amount, &it.TokenType, &height); err != nil {
			return nil, err
		}
		it.EventType = storage.TransferEventType(etype)
		it.Height = uint64(height)
		out = append(out, it)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return out, nil
}

func (r *Postgres) String() string { return fmt.Sprintf("pgrepo(%p)", r.pool) }
