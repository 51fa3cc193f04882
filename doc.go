// Package credits provides a usage-credit ledger for subscription products.
//
// Credits is designed as a library, not a service. Import it directly into
// your Go application. It provides:
//
//   - A monthly credit allowance per plan tier, reset lazily when a cycle ends
//   - Purchased credits that never expire and survive every reset
//   - Atomic spends that never drive a balance negative
//   - An append-only transaction log for every balance change
//   - Plan upgrades that grant the new allowance immediately
//   - A reconciliation audit of balances against the log
//
// # Quick Start
//
// Create a ledger with your preferred store:
//
//	import (
//	    "github.com/xraph/credits"
//	    "github.com/xraph/credits/store/memory"
//	)
//
//	l := credits.New(memory.New())
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
// # Core Concepts
//
// An account is opened on first use with the allowance of its tier:
//
//	balance, err := l.GetBalance(ctx, userID)
//
// Spends draw from one fungible pool. Monthly credits are used before
// purchased ones:
//
//	res, err := l.Spend(ctx, userID, 10)
//	if credits.IsInsufficientCredits(err) {
//	    // offer a top-up
//	}
//
// Purchases add non-expiring credits. The external reference makes payment
// webhook redelivery safe:
//
//	a, err := l.AddPurchasedCredits(ctx, userID, 500, "pi_3Nx...")
//
// When a cycle ends, the unused monthly remainder is forfeited and the
// tier's allowance is granted again on top of the purchased credits:
//
//	balance = allowance + purchased
//
// # Concurrency
//
// Every mutation is a conditional write on the account version. Lost writes
// are retried with exponential backoff and surface as
// ErrConcurrentModification once the budget is spent. The transaction
// describing a change is written in the same row update as the change itself,
// then appended to the log, so the log never misses a committed change.
//
// # TypeID
//
// Transactions and audit reports use TypeIDs:
//
//	ltx_01h2xcejqtf2nbrexx3vqjhp41    // Transaction ID
//	audit_01h455vb4pex5vsknk084sn02q  // Audit report ID
package credits
