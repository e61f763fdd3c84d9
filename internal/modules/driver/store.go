// README: Driver profile store backed by PostgreSQL.
package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridebook/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const selectProfile = `
	SELECT user_id, email, phone, gender,
	       government_id_path, selfie_path, driving_license_path, car_rc_path, number_plate_path, car_photos_paths,
	       government_id_uploaded_at, selfie_uploaded_at, driving_license_uploaded_at,
	       car_rc_uploaded_at, number_plate_uploaded_at, car_photos_uploaded_at,
	       documents_complete, profile_verified, created_at, updated_at
	FROM driver_profiles`

// completeExpr is true when every document type has at least one path.
const completeExpr = `(
	government_id_path IS NOT NULL AND selfie_path IS NOT NULL AND
	driving_license_path IS NOT NULL AND car_rc_path IS NOT NULL AND
	number_plate_path IS NOT NULL AND cardinality(car_photos_paths) > 0)`

func (s *Store) Get(ctx context.Context, userID types.ID) (*Profile, error) {
	p, err := scanProfile(s.db.QueryRow(ctx, selectProfile+` WHERE user_id = $1`, string(userID)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get driver profile: %w", types.ErrPersistence, err)
	}
	return p, nil
}

func (s *Store) Upsert(ctx context.Context, userID types.ID, email, phone, gender string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO driver_profiles (user_id, email, phone, gender)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET email = CASE WHEN EXCLUDED.email = '' THEN driver_profiles.email ELSE EXCLUDED.email END,
		    phone = EXCLUDED.phone,
		    gender = EXCLUDED.gender,
		    updated_at = NOW()`,
		string(userID), email, phone, gender,
	)
	if err != nil {
		return fmt.Errorf("%w: upsert driver profile: %w", types.ErrPersistence, err)
	}
	return nil
}

// SetDocument stores path for the document (appending for car photos) and
// recomputes documents_complete in the same transaction.
func (s *Store) SetDocument(ctx context.Context, userID types.ID, doc DocumentType, path string) error {
	col, ok := documentColumns[doc]
	if !ok {
		return ErrUnknownDocument
	}
	assign := col.path + ` = $2`
	if col.multi {
		assign = col.path + ` = array_append(` + col.path + `, $2)`
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin set document: %w", types.ErrPersistence, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE driver_profiles
		SET `+assign+`, `+col.uploadedAt+` = NOW(), updated_at = NOW()
		WHERE user_id = $1`,
		string(userID), path,
	)
	if err != nil {
		return fmt.Errorf("%w: set document: %w", types.ErrPersistence, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if _, err := tx.Exec(ctx, `
		UPDATE driver_profiles SET documents_complete = `+completeExpr+`
		WHERE user_id = $1`, string(userID)); err != nil {
		return fmt.Errorf("%w: recompute documents: %w", types.ErrPersistence, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit set document: %w", types.ErrPersistence, err)
	}
	return nil
}

// ClearDocument removes the document and returns the paths it held.
func (s *Store) ClearDocument(ctx context.Context, userID types.ID, doc DocumentType) ([]string, error) {
	col, ok := documentColumns[doc]
	if !ok {
		return nil, ErrUnknownDocument
	}
	reset := col.path + ` = NULL`
	if col.multi {
		reset = col.path + ` = '{}'`
	}

	p, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	_, err = s.db.Exec(ctx, `
		UPDATE driver_profiles
		SET `+reset+`, `+col.uploadedAt+` = NULL, documents_complete = false, updated_at = NOW()
		WHERE user_id = $1`, string(userID),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: clear document: %w", types.ErrPersistence, err)
	}
	return p.Documents[doc].Paths, nil
}

func (s *Store) List(ctx context.Context, verifiedOnly bool) ([]*Profile, error) {
	query := selectProfile + ` ORDER BY created_at DESC`
	if verifiedOnly {
		query = selectProfile + ` WHERE profile_verified = true ORDER BY created_at DESC`
	}
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: list drivers: %w", types.ErrPersistence, err)
	}
	defer rows.Close()

	var out []*Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan driver: %w", types.ErrPersistence, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list drivers: %w", types.ErrPersistence, err)
	}
	return out, nil
}

func (s *Store) SetVerified(ctx context.Context, userID types.ID, verified bool) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE driver_profiles SET profile_verified = $2, updated_at = NOW()
		WHERE user_id = $1`, string(userID), verified,
	)
	if err != nil {
		return fmt.Errorf("%w: set verified: %w", types.ErrPersistence, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	var userID string
	var govID, selfie, license, rc, plate *string
	var photos []string
	var govAt, selfieAt, licenseAt, rcAt, plateAt, photosAt *time.Time
	err := row.Scan(
		&userID, &p.Email, &p.Phone, &p.Gender,
		&govID, &selfie, &license, &rc, &plate, &photos,
		&govAt, &selfieAt, &licenseAt, &rcAt, &plateAt, &photosAt,
		&p.DocumentsComplete, &p.ProfileVerified, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.UserID = types.ID(userID)
	p.Documents = map[DocumentType]Document{
		DocGovernmentID:   single(govID, govAt),
		DocSelfie:         single(selfie, selfieAt),
		DocDrivingLicense: single(license, licenseAt),
		DocCarRC:          single(rc, rcAt),
		DocNumberPlate:    single(plate, plateAt),
		DocCarPhotos:      {Paths: photos, UploadedAt: photosAt},
	}
	return &p, nil
}

func single(path *string, at *time.Time) Document {
	if path == nil {
		return Document{}
	}
	return Document{Paths: []string{*path}, UploadedAt: at}
}
