package shares

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var (
	upsertQ = `(?s)^INSERT\s+INTO\s+shares\s*\(document_id,\s*owner_address,\s*invitee_address,\s*share_pda,\s*valid_until\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5\)\s*ON\s+CONFLICT\s*\(document_id,\s*invitee_address\)\s*DO\s+UPDATE.*RETURNING\s+id,\s*created_at,\s*updated_at,\s*\(xmax\s*=\s*0\)\s+AS\s+inserted\s*$`
	validTo = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	created = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
)

func TestUpsert_InsertThenRefresh(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	later := validTo.Add(time.Hour)

	mock.ExpectQuery(upsertQ).
		WithArgs("d-1", "owner", "invitee", "spda", validTo).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at", "inserted"}).AddRow("s-1", created, created, true))
	mock.ExpectQuery(upsertQ).
		WithArgs("d-1", "owner", "invitee", "spda", later).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at", "inserted"}).AddRow("s-1", created, later, false))

	first := &models.Share{DocumentID: "d-1", OwnerAddress: "owner", InviteeAddress: "invitee", SharePDA: "spda", ValidUntil: validTo}
	inserted, err := repo.Upsert(context.Background(), first)
	if err != nil || !inserted || first.ID != "s-1" {
		t.Fatalf("first upsert: inserted=%v share=%+v err=%v", inserted, first, err)
	}

	second := &models.Share{DocumentID: "d-1", OwnerAddress: "owner", InviteeAddress: "invitee", SharePDA: "spda", ValidUntil: later}
	inserted, err = repo.Upsert(context.Background(), second)
	if err != nil || inserted {
		t.Fatalf("second upsert: inserted=%v err=%v", inserted, err)
	}
	if second.ID != first.ID || !second.CreatedAt.Equal(created) {
		t.Fatalf("row identity not preserved: %+v", second)
	}
}

func TestUpsert_Errors(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(upsertQ).WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: sharePDAConstraint})
	mock.ExpectQuery(upsertQ).WillReturnError(errors.New("db down"))

	_, err := repo.Upsert(context.Background(), &models.Share{})
	if !errors.Is(err, common.ErrAlreadyExists) {
		t.Fatalf("want ErrAlreadyExists, got %v", err)
	}

	_, err = repo.Upsert(context.Background(), &models.Share{})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestListByOwner(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*document_id,.*FROM\s+shares\s+WHERE\s+owner_address\s*=\s*\$1`).
		WithArgs("owner").
		WillReturnRows(sqlmock.NewRows([]string{"id", "document_id", "owner_address", "invitee_address", "share_pda", "valid_until", "created_at", "updated_at"}).
			AddRow("s-1", "d-1", "owner", "bob", "pda-1", validTo, created, created).
			AddRow("s-2", "d-2", "owner", "carol", "pda-2", validTo, created, created))

	got, err := repo.ListByOwner(context.Background(), "owner")
	if err != nil {
		t.Fatalf("ListByOwner error: %v", err)
	}
	if len(got) != 2 || got[1].InviteeAddress != "carol" || !got[0].ValidUntil.Equal(validTo) {
		t.Fatalf("unexpected shares: %+v", got)
	}
}

func TestListSharedWith(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+d\.id,.*FROM\s+shares\s+s\s+JOIN\s+documents\s+d.*WHERE\s+s\.invitee_address\s*=\s*\$1`).
		WithArgs("bob").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "profile_id", "owner_address", "idx", "object_name", "document_pda", "name", "size", "extension",
			"is_encrypted", "deleted_on_ledger", "deletion_state", "created_at", "updated_at", "share_pda", "valid_until",
		}).AddRow("d-1", "p-1", "owner", int64(0), "obj", "dpda", "report.pdf", int64(5), "pdf",
			false, false, "active", created, created, "spda", validTo))

	got, err := repo.ListSharedWith(context.Background(), "bob")
	if err != nil {
		t.Fatalf("ListSharedWith error: %v", err)
	}
	if len(got) != 1 || got[0].Document.Metadata.Name != "report.pdf" || got[0].SharePDA != "spda" {
		t.Fatalf("unexpected shared documents: %+v", got)
	}
}

func TestListSharedWith_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT`).WillReturnError(errors.New("db err"))

	if _, err := repo.ListSharedWith(context.Background(), "bob"); err == nil {
		t.Fatal("expected error")
	}
}
