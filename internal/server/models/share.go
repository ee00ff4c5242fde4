package models

import "time"

// Share caches a ledger grant for listing. ValidUntil is display data only;
// access decisions always read the grant from the ledger.
type Share struct {
	ID             string
	DocumentID     string
	OwnerAddress   string
	InviteeAddress string
	SharePDA       string
	ValidUntil     time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DocumentData is a document together with the shares granted on it.
type DocumentData struct {
	Document Document
	Shares   []Share
}

// SharedDocument is a document as seen by an invitee.
type SharedDocument struct {
	Document   Document
	SharePDA   string
	ValidUntil time.Time
}
