// Package billing contains the domain model for the credit gateway's
// usage-metering and billing pipeline: accounts with credit balances,
// subscription tiers, immutable usage records, margin configuration and
// the credit/USD conversion rules.
//
// Key invariants:
//   - The stored truth for an account is always credits, never USD.
//   - A successful pre-authorized deduction never drives a balance negative;
//     only post-dispatch billing of actual usage may (documented edge case).
//   - Usage records are append-only: corrections are new records.
//   - Tier and allotment change only through subscription lifecycle events.
package billing
