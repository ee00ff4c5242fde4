package models

import "time"

// DeletionState is the position of a document in the two-phase delete.
// Transitions only move forward.
type DeletionState string

const (
	DeletionActive                 DeletionState = "active"
	DeletionLedgerConfirmedDeleted DeletionState = "ledger_confirmed_deleted"
	DeletionObjectPurged           DeletionState = "object_purged"
)

func (s DeletionState) rank() int {
	switch s {
	case DeletionActive:
		return 0
	case DeletionLedgerConfirmedDeleted:
		return 1
	case DeletionObjectPurged:
		return 2
	}
	return -1
}

// CanAdvanceTo reports whether moving from s to next is a forward step.
// Staying in the same state is allowed.
func (s DeletionState) CanAdvanceTo(next DeletionState) bool {
	r, n := s.rank(), next.rank()
	return r >= 0 && n >= r
}

// DocumentMetadata describes the uploaded file as the owner named it.
type DocumentMetadata struct {
	Name      string
	Size      int64
	Extension string
}

// Document is the off-chain record of an uploaded object. (OwnerAddress,
// Index) is unique and never reassigned, even after deletion.
type Document struct {
	ID              string
	ProfileID       string
	OwnerAddress    string
	Index           uint64
	ObjectName      string
	DocumentPDA     string
	Metadata        DocumentMetadata
	IsEncrypted     bool
	DeletedOnLedger bool
	DeletionState   DeletionState
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
