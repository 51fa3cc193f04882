package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the credit ledger store (SQLite).
var Migrations = migrate.NewGroup("credits")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_credit_accounts",
			Version: "20260101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS credit_accounts (
    account_id                TEXT PRIMARY KEY,
    plan_tier                 TEXT NOT NULL DEFAULT '',
    plan_ref                  TEXT NOT NULL DEFAULT '',
    plan_allowance            INTEGER NOT NULL DEFAULT 0 CHECK (plan_allowance >= 0),
    current_balance           INTEGER NOT NULL DEFAULT 0 CHECK (current_balance >= 0),
    purchased_credits         INTEGER NOT NULL DEFAULT 0 CHECK (purchased_credits >= 0),
    initial_purchased_credits INTEGER NOT NULL DEFAULT 0 CHECK (initial_purchased_credits >= 0),
    credits_used_this_cycle   INTEGER NOT NULL DEFAULT 0 CHECK (credits_used_this_cycle >= 0),
    forfeited_credits         INTEGER NOT NULL DEFAULT 0 CHECK (forfeited_credits >= 0),
    cycle_start               DATETIME NOT NULL,
    cycle_end                 DATETIME NOT NULL,
    version                   INTEGER NOT NULL DEFAULT 1,
    pending                   TEXT,
    created_at                DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at                DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    CHECK (current_balance >= purchased_credits)
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS credit_accounts`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_credit_transactions",
			Version: "20260101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS credit_transactions (
    id             TEXT PRIMARY KEY,
    account_id     TEXT NOT NULL,
    kind           TEXT NOT NULL,
    amount         INTEGER NOT NULL,
    balance_before INTEGER NOT NULL CHECK (balance_before >= 0),
    balance_after  INTEGER NOT NULL CHECK (balance_after >= 0),
    sequence       INTEGER NOT NULL,
    description    TEXT NOT NULL DEFAULT '',
    external_ref   TEXT NOT NULL DEFAULT '',
    created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_credit_tx_account_seq ON credit_transactions (account_id, sequence DESC);
CREATE UNIQUE INDEX IF NOT EXISTS idx_credit_tx_purchase_ref ON credit_transactions (account_id, external_ref)
    WHERE kind = 'purchase' AND external_ref != '';
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS credit_transactions`)
				return err
			},
		},
	)
}
