package pg

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"vendorhub.org/internal/auth"
	"vendorhub.org/internal/supplier"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db), mock
}

func profileRows(id, identityID, status, reason string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "identity_id", "status", "rejection_reason",
		"business_name", "business_address", "business_city",
		"business_state", "business_zip", "created_at", "updated_at",
	}).AddRow(id, identityID, status, reason, "", "", "", "", "", now, now)
}

func TestCreateIdentityDuplicateEmail(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("insert into identities").
		WithArgs("id-1", "a@b.com", "hash", "regular", false, sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: uniqueViolation})

	err := store.CreateIdentity(context.Background(), &auth.Identity{
		ID: "id-1", Email: "a@b.com", PasswordHash: "hash",
		Role: auth.RoleRegular, CreatedAt: time.Now().UTC(),
	})
	if !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("got %v, want ErrConflict", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestIdentityByEmailNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("from identities where email").
		WithArgs("missing@b.com").
		WillReturnError(sql.ErrNoRows)

	if _, err := store.IdentityByEmail(context.Background(), "missing@b.com"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateApplicationSetsFlagAtomically(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("select supplier_applicant from identities where id=\\$1 for update").
		WithArgs("id-1").
		WillReturnRows(sqlmock.NewRows([]string{"supplier_applicant"}).AddRow(false))
	mock.ExpectExec("insert into supplier_profiles").
		WithArgs("profile-1", "id-1", "pending", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into supplier_documents").
		WithArgs("doc-1", "profile-1", "w9.pdf", "ab/key", "application/pdf", int64(2048), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("update identities set supplier_applicant=true").
		WithArgs("id-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	profile := &supplier.Profile{
		ID: "profile-1", IdentityID: "id-1",
		Status: supplier.StatusPending, CreatedAt: now, UpdatedAt: now,
	}
	docs := []*supplier.Document{{
		ID: "doc-1", ProfileID: "profile-1", FileName: "w9.pdf",
		Location: "ab/key", ContentType: "application/pdf",
		SizeBytes: 2048, CreatedAt: now,
	}}
	if err := store.CreateApplication(context.Background(), profile, docs); err != nil {
		t.Fatalf("CreateApplication: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateApplicationDuplicateRollsBack(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("select supplier_applicant from identities where id=\\$1 for update").
		WithArgs("id-1").
		WillReturnRows(sqlmock.NewRows([]string{"supplier_applicant"}).AddRow(true))
	mock.ExpectRollback()

	profile := &supplier.Profile{ID: "profile-1", IdentityID: "id-1", Status: supplier.StatusPending}
	err := store.CreateApplication(context.Background(), profile, nil)
	if !errors.Is(err, supplier.ErrConflict) {
		t.Fatalf("got %v, want ErrConflict", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApproveProfilePromotesRole(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("select .*from supplier_profiles where id=\\$1 for update").
		WithArgs("profile-1").
		WillReturnRows(profileRows("profile-1", "id-1", "pending", ""))
	mock.ExpectExec("update supplier_profiles set status=\\$2").
		WithArgs("profile-1", "approved", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("update identities set role=\\$2").
		WithArgs("id-1", "supplier", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	profile, err := store.ApproveProfile(context.Background(), "profile-1")
	if err != nil {
		t.Fatalf("ApproveProfile: %v", err)
	}
	if profile.Status != supplier.StatusApproved {
		t.Fatalf("status = %q, want approved", profile.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApproveNonPendingProfile(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("select .*from supplier_profiles where id=\\$1 for update").
		WithArgs("profile-1").
		WillReturnRows(profileRows("profile-1", "id-1", "rejected", "nope"))
	mock.ExpectRollback()

	if _, err := store.ApproveProfile(context.Background(), "profile-1"); !errors.Is(err, supplier.ErrInvalidTransition) {
		t.Fatalf("got %v, want ErrInvalidTransition", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRejectProfileStoresReason(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("select .*from supplier_profiles where id=\\$1 for update").
		WithArgs("profile-1").
		WillReturnRows(profileRows("profile-1", "id-1", "pending", ""))
	mock.ExpectExec("update supplier_profiles set status=\\$2, rejection_reason=\\$3").
		WithArgs("profile-1", "rejected", "incomplete paperwork", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	profile, err := store.RejectProfile(context.Background(), "profile-1", "incomplete paperwork")
	if err != nil {
		t.Fatalf("RejectProfile: %v", err)
	}
	if profile.Status != supplier.StatusRejected || profile.RejectionReason != "incomplete paperwork" {
		t.Fatalf("profile = %+v", profile)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteProfileByIdentity(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("select id from supplier_profiles where identity_id=\\$1 for update").
		WithArgs("id-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("profile-1"))
	mock.ExpectExec("delete from supplier_documents").
		WithArgs("profile-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("delete from supplier_profiles").
		WithArgs("profile-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("update identities set supplier_applicant=false").
		WithArgs("id-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := store.DeleteProfileByIdentity(context.Background(), "id-1"); err != nil {
		t.Fatalf("DeleteProfileByIdentity: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteProfileMissing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("select id from supplier_profiles where identity_id=\\$1 for update").
		WithArgs("id-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	if err := store.DeleteProfileByIdentity(context.Background(), "id-1"); !errors.Is(err, supplier.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateBusinessRequiresApproved(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("select .*from supplier_profiles where identity_id=\\$1 for update").
		WithArgs("id-1").
		WillReturnRows(profileRows("profile-1", "id-1", "pending", ""))
	mock.ExpectRollback()

	name := "Acme Goods"
	if _, err := store.UpdateBusiness(context.Background(), "id-1", supplier.BusinessUpdate{Name: &name}); !errors.Is(err, supplier.ErrForbidden) {
		t.Fatalf("got %v, want ErrForbidden", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListPending(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select .*from supplier_profiles where status=\\$1").
		WithArgs("pending", 100).
		WillReturnRows(profileRows("profile-1", "id-1", "pending", ""))

	profiles, err := store.ListPending(context.Background(), 100)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(profiles) != 1 || profiles[0].ID != "profile-1" {
		t.Fatalf("profiles = %+v", profiles)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
