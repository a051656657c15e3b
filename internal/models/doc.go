// Package models defines the core domain models for Saving Circle.
//
// # Ledger Models
//
// A savings circle is a Group that members pay into toward a shared target:
//   - Group: the pool itself, with its target and current balance
//   - Member: a participant, optionally an administrator
//   - Transaction: an append-only record of a deposit or an approved withdrawal
//   - WithdrawalRequest: a proposed withdrawal awaiting an administrator decision
//   - User: a registered account (identity of the caller and of members)
//
// # Invariants
//
//  1. CurrentAmount is deposits minus approved withdrawals and never drops below zero
//  2. A WithdrawalRequest's Amount never changes; only Status does, and only
//     pending → approved or pending → rejected
//  3. Transactions are never mutated or removed once recorded
//  4. Identifiers marked Provisional were issued locally and are replaced by
//     server identifiers on reconciliation
//
// # Ownership
//
// Members, transactions and requests belong to their parent Group and refer back to
// it by GroupID string, never by pointer. Values are treated as immutable once
// published: code that changes a Group works on a Clone and publishes the copy.
package models
