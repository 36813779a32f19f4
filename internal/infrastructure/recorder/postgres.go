package recorder

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Chrissou78/omniswap-sub002/internal/domain/entities"
)

const createTransactionsTable = `
	CREATE TABLE IF NOT EXISTS swap_transactions (
		id BIGSERIAL PRIMARY KEY,
		from_chain_id BIGINT NOT NULL,
		to_chain_id BIGINT NOT NULL,
		from_token TEXT NOT NULL,
		to_token TEXT NOT NULL,
		amount_in NUMERIC NOT NULL,
		amount_out NUMERIC NOT NULL,
		route TEXT NOT NULL,
		fees_usd NUMERIC NOT NULL,
		tx_hash TEXT,
		account TEXT,
		executed_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

// PostgresRecorder inserts records into swap_transactions
type PostgresRecorder struct {
	pool *pgxpool.Pool
}

func NewPostgresRecorder(ctx context.Context, dsn string) (*PostgresRecorder, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, createTransactionsTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create swap_transactions: %w", err)
	}
	return &PostgresRecorder{pool: pool}, nil
}

func (r *PostgresRecorder) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

func (r *PostgresRecorder) Record(ctx context.Context, rec entities.TransactionRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO swap_transactions (
			from_chain_id, to_chain_id, from_token, to_token, amount_in, amount_out,
			route, fees_usd, tx_hash, account, executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		rec.FromChainID,
		rec.ToChainID,
		rec.FromToken,
		rec.ToToken,
		rec.AmountIn.String(),
		rec.AmountOut.String(),
		string(rec.Route),
		rec.FeesUSD.String(),
		rec.TxHash,
		rec.Account,
		rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert swap transaction: %w", err)
	}
	return nil
}
