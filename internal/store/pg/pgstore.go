// Package pg implements identity and supplier persistence on PostgreSQL.
// Lifecycle transitions run in serializable transactions: the precondition
// check happens under SELECT ... FOR UPDATE in the same transaction as the
// writes, so two concurrent transitions on the same rows cannot both observe
// the precondition as true.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"vendorhub.org/internal/auth"
	"vendorhub.org/internal/supplier"
)

const uniqueViolation = "23505"

// Store implements auth.IdentityStore and supplier.Store.
type Store struct {
	db *sql.DB
}

var _ auth.IdentityStore = (*Store)(nil)
var _ supplier.Store = (*Store)(nil)

// Open connects with pooled defaults; adjust under load tests.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing handle (tests).
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// --- auth.IdentityStore ---

func (s *Store) CreateIdentity(ctx context.Context, ident *auth.Identity) error {
	_, err := s.db.ExecContext(ctx, `
		insert into identities(id, email, password_hash, role, supplier_applicant, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$6)
	`, ident.ID, ident.Email, ident.PasswordHash, string(ident.Role), ident.SupplierApplicant, ident.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: email already registered", auth.ErrConflict)
		}
		return err
	}
	return nil
}

func (s *Store) IdentityByID(ctx context.Context, id string) (*auth.Identity, error) {
	return s.scanIdentity(s.db.QueryRowContext(ctx, `
		select id, email, password_hash, role, supplier_applicant, created_at, updated_at
		from identities where id=$1
	`, id))
}

func (s *Store) IdentityByEmail(ctx context.Context, email string) (*auth.Identity, error) {
	return s.scanIdentity(s.db.QueryRowContext(ctx, `
		select id, email, password_hash, role, supplier_applicant, created_at, updated_at
		from identities where email=$1
	`, email))
}

func (s *Store) scanIdentity(row *sql.Row) (*auth.Identity, error) {
	var (
		ident auth.Identity
		role  string
	)
	err := row.Scan(&ident.ID, &ident.Email, &ident.PasswordHash, &role,
		&ident.SupplierApplicant, &ident.CreatedAt, &ident.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	ident.Role = auth.Role(role)
	return &ident, nil
}

// --- supplier.Store ---

func (s *Store) CreateApplication(ctx context.Context, profile *supplier.Profile, docs []*supplier.Document) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// Re-check the applicant flag under lock: this is the guard against
	// the double-submit race.
	var applicant bool
	err = tx.QueryRowContext(ctx, `
		select supplier_applicant from identities where id=$1 for update
	`, profile.IdentityID).Scan(&applicant)
	if errors.Is(err, sql.ErrNoRows) {
		return supplier.ErrNotFound
	}
	if err != nil {
		return err
	}
	if applicant {
		return fmt.Errorf("%w: application already submitted", supplier.ErrConflict)
	}

	if _, err := tx.ExecContext(ctx, `
		insert into supplier_profiles(id, identity_id, status, created_at, updated_at)
		values ($1,$2,$3,$4,$4)
	`, profile.ID, profile.IdentityID, string(profile.Status), profile.CreatedAt); err != nil {
		return err
	}
	for _, doc := range docs {
		if _, err := tx.ExecContext(ctx, `
			insert into supplier_documents(id, profile_id, file_name, location, content_type, size_bytes, created_at)
			values ($1,$2,$3,$4,$5,$6,$7)
		`, doc.ID, doc.ProfileID, doc.FileName, doc.Location, doc.ContentType, doc.SizeBytes, doc.CreatedAt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `
		update identities set supplier_applicant=true, updated_at=now() where id=$1
	`, profile.IdentityID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) ApproveProfile(ctx context.Context, profileID string) (*supplier.Profile, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	profile, err := lockProfile(ctx, tx, profileID)
	if err != nil {
		return nil, err
	}
	if profile.Status != supplier.StatusPending {
		return nil, fmt.Errorf("%w: profile is %s", supplier.ErrInvalidTransition, profile.Status)
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		update supplier_profiles set status=$2, updated_at=$3 where id=$1
	`, profileID, string(supplier.StatusApproved), now); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		update identities set role=$2, updated_at=$3 where id=$1
	`, profile.IdentityID, string(auth.RoleSupplier), now); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	profile.Status = supplier.StatusApproved
	profile.UpdatedAt = now
	return profile, nil
}

func (s *Store) RejectProfile(ctx context.Context, profileID, reason string) (*supplier.Profile, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	profile, err := lockProfile(ctx, tx, profileID)
	if err != nil {
		return nil, err
	}
	if profile.Status != supplier.StatusPending {
		return nil, fmt.Errorf("%w: profile is %s", supplier.ErrInvalidTransition, profile.Status)
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		update supplier_profiles set status=$2, rejection_reason=$3, updated_at=$4 where id=$1
	`, profileID, string(supplier.StatusRejected), reason, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	profile.Status = supplier.StatusRejected
	profile.RejectionReason = reason
	profile.UpdatedAt = now
	return profile, nil
}

func (s *Store) DeleteProfileByIdentity(ctx context.Context, identityID string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var profileID string
	err = tx.QueryRowContext(ctx, `
		select id from supplier_profiles where identity_id=$1 for update
	`, identityID).Scan(&profileID)
	if errors.Is(err, sql.ErrNoRows) {
		return supplier.ErrNotFound
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		delete from supplier_documents where profile_id=$1
	`, profileID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		delete from supplier_profiles where id=$1
	`, profileID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		update identities set supplier_applicant=false, updated_at=now() where id=$1
	`, identityID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) UpdateBusiness(ctx context.Context, identityID string, upd supplier.BusinessUpdate) (*supplier.Profile, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	profile, err := lockProfileByIdentity(ctx, tx, identityID)
	if err != nil {
		return nil, err
	}
	if profile.Status != supplier.StatusApproved {
		return nil, fmt.Errorf("%w: profile is %s", supplier.ErrForbidden, profile.Status)
	}

	upd.Apply(&profile.Business)
	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		update supplier_profiles
		set business_name=$2, business_address=$3, business_city=$4, business_state=$5, business_zip=$6, updated_at=$7
		where id=$1
	`, profile.ID, profile.Business.Name, profile.Business.Address, profile.Business.City,
		profile.Business.State, profile.Business.Zip, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	profile.UpdatedAt = now
	return profile, nil
}

const profileColumns = `id, identity_id, status, coalesce(rejection_reason,''), coalesce(business_name,''), coalesce(business_address,''), coalesce(business_city,''), coalesce(business_state,''), coalesce(business_zip,''), created_at, updated_at`

func (s *Store) ProfileByID(ctx context.Context, profileID string) (*supplier.Profile, error) {
	return scanProfile(s.db.QueryRowContext(ctx,
		`select `+profileColumns+` from supplier_profiles where id=$1`, profileID))
}

func (s *Store) ProfileByIdentity(ctx context.Context, identityID string) (*supplier.Profile, error) {
	return scanProfile(s.db.QueryRowContext(ctx,
		`select `+profileColumns+` from supplier_profiles where identity_id=$1`, identityID))
}

func (s *Store) ListPending(ctx context.Context, limit int) ([]*supplier.Profile, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+profileColumns+` from supplier_profiles where status=$1 order by created_at asc limit $2`,
		string(supplier.StatusPending), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*supplier.Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, profile)
	}
	return res, rows.Err()
}

func (s *Store) DocumentByID(ctx context.Context, documentID string) (*supplier.Document, error) {
	var doc supplier.Document
	err := s.db.QueryRowContext(ctx, `
		select id, profile_id, file_name, location, content_type, size_bytes, created_at
		from supplier_documents where id=$1
	`, documentID).Scan(&doc.ID, &doc.ProfileID, &doc.FileName, &doc.Location,
		&doc.ContentType, &doc.SizeBytes, &doc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, supplier.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *Store) DocumentsByProfile(ctx context.Context, profileID string) ([]*supplier.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, profile_id, file_name, location, content_type, size_bytes, created_at
		from supplier_documents where profile_id=$1 order by created_at asc
	`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*supplier.Document
	for rows.Next() {
		var doc supplier.Document
		if err := rows.Scan(&doc.ID, &doc.ProfileID, &doc.FileName, &doc.Location,
			&doc.ContentType, &doc.SizeBytes, &doc.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, &doc)
	}
	return res, rows.Err()
}

// --- helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*supplier.Profile, error) {
	var (
		profile supplier.Profile
		status  string
	)
	err := row.Scan(&profile.ID, &profile.IdentityID, &status, &profile.RejectionReason,
		&profile.Business.Name, &profile.Business.Address, &profile.Business.City,
		&profile.Business.State, &profile.Business.Zip, &profile.CreatedAt, &profile.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, supplier.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	profile.Status = supplier.Status(status)
	return &profile, nil
}

func lockProfile(ctx context.Context, tx *sql.Tx, profileID string) (*supplier.Profile, error) {
	return scanProfile(tx.QueryRowContext(ctx,
		`select `+profileColumns+` from supplier_profiles where id=$1 for update`, profileID))
}

func lockProfileByIdentity(ctx context.Context, tx *sql.Tx, identityID string) (*supplier.Profile, error) {
	return scanProfile(tx.QueryRowContext(ctx,
		`select `+profileColumns+` from supplier_profiles where identity_id=$1 for update`, identityID))
}
