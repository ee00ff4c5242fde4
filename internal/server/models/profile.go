// Package models defines server-side data models persisted in the database.
package models

import "time"

// Profile is the off-chain record of a registered wallet. AuthMessage holds
// the pending login challenge; it is single use.
type Profile struct {
	ID              string
	WalletAddress   string
	ProfilePDA      string
	AuthMessage     string
	AuthMessageUsed bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ProfileStatus compares a profile with its ledger record. LedgerDocumentCount
// is meaningful only when OnLedger is set.
type ProfileStatus struct {
	Profile             Profile
	OnLedger            bool
	LedgerDocumentCount uint64
	DocumentCount       int
}
