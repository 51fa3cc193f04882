package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the credit ledger store.
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
    plan_allowance            BIGINT NOT NULL DEFAULT 0 CHECK (plan_allowance >= 0),
    current_balance           BIGINT NOT NULL DEFAULT 0 CHECK (current_balance >= 0),
    purchased_credits         BIGINT NOT NULL DEFAULT 0 CHECK (purchased_credits >= 0),
    initial_purchased_credits BIGINT NOT NULL DEFAULT 0 CHECK (initial_purchased_credits >= 0),
    credits_used_this_cycle   BIGINT NOT NULL DEFAULT 0 CHECK (credits_used_this_cycle >= 0),
    forfeited_credits         BIGINT NOT NULL DEFAULT 0 CHECK (forfeited_credits >= 0),
    cycle_start               TIMESTAMPTZ NOT NULL,
    cycle_end                 TIMESTAMPTZ NOT NULL,
    version                   BIGINT NOT NULL DEFAULT 1,
    pending                   JSONB,
    created_at                TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at                TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CHECK (current_balance >= purchased_credits),
    CHECK (cycle_end > cycle_start)
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
    amount         BIGINT NOT NULL,
    balance_before BIGINT NOT NULL CHECK (balance_before >= 0),
    balance_after  BIGINT NOT NULL CHECK (balance_after >= 0),
    sequence       BIGINT NOT NULL,
    description    TEXT NOT NULL DEFAULT '',
    external_ref   TEXT NOT NULL DEFAULT '',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CHECK (balance_after - balance_before = amount)
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
