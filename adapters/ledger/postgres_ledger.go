package ledger

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/layer-3/wallet2fa/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS authentications (
    id         UUID PRIMARY KEY,
    address    TEXT        NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    proof      JSONB       NOT NULL,
    verified   BOOLEAN     NOT NULL DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS authentications_address_created_at_idx
    ON authentications (address, created_at DESC);`

// PostgresLedger persists authentication records in PostgreSQL
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// Migrate creates the ledger table when missing
func (l *PostgresLedger) Migrate(ctx context.Context) error {
	if _, err := l.db.Exec(ctx, schema); err != nil {
		return errors.Wrap(err, "migrating ledger schema")
	}
	return nil
}

func (l *PostgresLedger) Append(ctx context.Context, record *core.AuthenticationRecord) error {
	id, err := uuid.Parse(record.ID)
	if err != nil {
		return errors.Wrapf(err, "invalid record id<%s>", record.ID)
	}

	proof, err := json.Marshal(record.Proof)
	if err != nil {
		return errors.Wrap(err, "encoding proof")
	}

	_, err = l.db.Exec(ctx, `INSERT INTO authentications (id, address, created_at, proof, verified)
        VALUES ($1, $2, $3, $4, $5)`, id, record.Address, record.Timestamp, proof, record.Verified)
	if err != nil {
		return errors.Wrap(err, "inserting authentication record")
	}
	return nil
}

func (l *PostgresLedger) QueryRecent(ctx context.Context, address string, limit int) ([]*core.AuthenticationRecord, error) {
	const query = `
        SELECT id, address, created_at, proof, verified
        FROM authentications
        WHERE address = $1
        ORDER BY created_at DESC, id
        LIMIT $2`

	rows, err := l.db.Query(ctx, query, address, limit)
	if err != nil {
		return nil, errors.Wrap(err, "querying authentication history")
	}
	defer rows.Close()

	records := make([]*core.AuthenticationRecord, 0, limit)
	for rows.Next() {
		var (
			id     uuid.UUID
			proof  []byte
			record core.AuthenticationRecord
		)
		if err := rows.Scan(&id, &record.Address, &record.Timestamp, &proof, &record.Verified); err != nil {
			return nil, errors.Wrap(err, "scanning authentication record")
		}
		record.ID = id.String()
		if len(proof) > 0 {
			record.Proof = &core.ProofArtifact{}
			if err := json.Unmarshal(proof, record.Proof); err != nil {
				return nil, errors.Wrapf(err, "decoding proof for record<%s>", record.ID)
			}
		}
		records = append(records, &record)
	}

	return records, errors.Wrap(rows.Err(), "reading authentication history")
}

func (l *PostgresLedger) Count(ctx context.Context, address string) (int, error) {
	var n int
	err := l.db.QueryRow(ctx, `SELECT count(*) FROM authentications WHERE address = $1`, address).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, "counting authentication records")
	}
	return n, nil
}
