package result

import (
	"context"
	"database/sql"
	"embed"
	"path"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github/chapool/batch-sender/internal/wallet/transfer"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// SQLiteSink stores outcomes in the transfer_results table, tagged with the run id.
type SQLiteSink struct {
	db    *sql.DB
	runID string
}

// OpenSQLite opens (or creates) the database at dsn and applies the embedded migrations.
func OpenSQLite(ctx context.Context, dsn string, runID string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open sqlite database %s", dsn)
	}
	// one writer connection avoids SQLITE_BUSY between concurrent appends
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteSink{db: db, runID: runID}, nil
}

func (s *SQLiteSink) Append(ctx context.Context, outcomes ...transfer.Outcome) (err error) {
	if len(outcomes) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin result transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transfer_results(
			run_id, request_id, idx, kind, from_addr, to_addr, asset, contract, token_id,
			amount, tx_hash, success, message, attempts, duration_ms, created_at
		)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errors.Wrap(err, "failed to prepare result insert")
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, o := range outcomes {
		req := o.Request
		if req == nil {
			continue
		}

		from := ""
		if req.From != nil {
			from = req.From.Address.Hex()
		}

		success := 0
		if o.Success {
			success = 1
		}

		_, err = stmt.ExecContext(ctx,
			s.runID,
			req.ID.String(),
			req.Index,
			string(req.Kind),
			from,
			req.To.Hex(),
			req.Asset.Type.String(),
			contractOrNull(req.Asset.Contract),
			tokenIDOrNull(req),
			nullIfEmpty(req.AmountString()),
			txHashOrNull(o),
			success,
			Message(o),
			o.Attempts,
			o.Duration.Milliseconds(),
			now,
		)
		if err != nil {
			return errors.Wrapf(err, "failed to insert result of request %s", req.ID)
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit results")
}

func (s *SQLiteSink) Close() error {
	return errors.Wrap(s.db.Close(), "failed to close sqlite database")
}

// Summary counts the stored outcomes of this run.
func (s *SQLiteSink) Summary(ctx context.Context) (succeeded, failed int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(success), 0), COALESCE(SUM(1 - success), 0)
		FROM transfer_results
		WHERE run_id = ?
	`, s.runID).Scan(&succeeded, &failed)
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to query result summary")
	}

	return succeeded, failed, nil
}

// migrate runs the embedded migrations in file name order.
func migrate(ctx context.Context, db *sql.DB) error {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return errors.Wrap(err, "failed to read embedded migrations")
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		raw, err := migrationFS.ReadFile(path.Join("migrations", entry.Name()))
		if err != nil {
			return errors.Wrapf(err, "failed to read migration %s", entry.Name())
		}

		if _, err := db.ExecContext(ctx, string(raw)); err != nil {
			return errors.Wrapf(err, "failed to apply migration %s", entry.Name())
		}
	}

	return nil
}

func contractOrNull(contract common.Address) any {
	if contract == (common.Address{}) {
		return nil
	}

	return contract.Hex()
}

func tokenIDOrNull(req *transfer.Request) any {
	if req.Asset.TokenID == nil {
		return nil
	}

	return req.Asset.TokenID.String()
}

func txHashOrNull(o transfer.Outcome) any {
	if o.TxHash == (common.Hash{}) {
		return nil
	}

	return o.TxHash.Hex()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}

	return s
}
