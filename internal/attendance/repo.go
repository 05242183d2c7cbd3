package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"facetrack/internal/model"
)

// Repository persists attendance data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Companies lists all companies.
func (r *Repository) Companies(ctx context.Context) ([]model.Company, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, created_at FROM companies ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []model.Company
	for rows.Next() {
		var c model.Company
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// CreateCompany inserts a company; ErrConflict when the name is taken.
func (r *Repository) CreateCompany(ctx context.Context, name string) (model.Company, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO companies (name)
		VALUES ($1)
		ON CONFLICT (name) DO NOTHING
		RETURNING id, created_at
	`, name)
	c := model.Company{Name: name}
	if err := row.Scan(&c.ID, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Company{}, ErrConflict
		}
		return model.Company{}, err
	}
	return c, nil
}

// EnrollPerson inserts a person with their enrollment photo.
// ErrConflict when the national id is already enrolled for the company.
func (r *Repository) EnrollPerson(ctx context.Context, p model.Person, photo []byte) (int64, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO persons (company_id, name, national_id, title, photo)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (company_id, national_id) DO NOTHING
		RETURNING id
	`, p.CompanyID, p.Name, p.NationalID, p.Title, photo)
	var id int64
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrConflict
		}
		return 0, err
	}
	return id, nil
}

// Labels returns the roster labels (person names) for a company.
func (r *Repository) Labels(ctx context.Context, companyID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name FROM persons WHERE company_id = $1 ORDER BY name
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var labels []string
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, err
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

// Persons returns all persons enrolled under a company.
func (r *Repository) Persons(ctx context.Context, companyID int64) ([]model.Person, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, company_id, name, national_id, title, face_enrolled, created_at
		FROM persons WHERE company_id = $1 ORDER BY name
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []model.Person
	for rows.Next() {
		var p model.Person
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.Name, &p.NationalID, &p.Title, &p.FaceEnrolled, &p.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// PersonPhoto returns the enrollment photo for a label within a company.
func (r *Repository) PersonPhoto(ctx context.Context, label string, companyID int64) ([]byte, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT photo FROM persons WHERE name = $1 AND company_id = $2 LIMIT 1
	`, label, companyID)
	var photo []byte
	if err := row.Scan(&photo); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(photo) == 0 {
		return nil, ErrNotFound
	}
	return photo, nil
}

// PersonPhotoByID returns the enrollment photo by person id.
func (r *Repository) PersonPhotoByID(ctx context.Context, personID int64) ([]byte, error) {
	row := r.db.QueryRowContext(ctx, `SELECT photo FROM persons WHERE id = $1`, personID)
	var photo []byte
	if err := row.Scan(&photo); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(photo) == 0 {
		return nil, ErrNotFound
	}
	return photo, nil
}

// PersonID resolves a roster label to a person id within a company.
func (r *Repository) PersonID(ctx context.Context, label string, companyID int64) (int64, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id FROM persons WHERE name = $1 AND company_id = $2 LIMIT 1
	`, label, companyID)
	var id int64
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return id, nil
}

// SetFaceEnrolled flags whether a person's photo yielded a usable descriptor.
func (r *Repository) SetFaceEnrolled(ctx context.Context, personID int64, enrolled bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE persons SET face_enrolled = $2 WHERE id = $1
	`, personID, enrolled)
	return err
}

// RecordEntry writes the first entry of the day for a person.
// The conditional insert is the sole arbiter: concurrent duplicates race on
// the (person_id, company_id, day) unique index and exactly one wins.
func (r *Repository) RecordEntry(ctx context.Context, personID, companyID int64, ts time.Time) (model.AttendanceRecord, error) {
	rec := model.AttendanceRecord{
		ID:        uuid.NewString(),
		PersonID:  personID,
		CompanyID: companyID,
		Day:       DayOf(ts),
		EntryAt:   ts,
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, person_id, company_id, day, entry_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (person_id, company_id, day) DO NOTHING
		RETURNING created_at
	`, rec.ID, rec.PersonID, rec.CompanyID, rec.Day, rec.EntryAt)
	if err := row.Scan(&rec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.AttendanceRecord{}, ErrConflict
		}
		return model.AttendanceRecord{}, err
	}
	return rec, nil
}

// RecordExit sets the exit timestamp on the day's open entry.
// Zero rows means no entry exists or the exit was already recorded; both
// surface as ErrConflict.
func (r *Repository) RecordExit(ctx context.Context, personID, companyID int64, ts time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE attendance_records
		SET exit_at = $4
		WHERE person_id = $1 AND company_id = $2 AND day = $3 AND exit_at IS NULL
	`, personID, companyID, DayOf(ts), ts)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// EntryExists reports whether an entry is recorded for the given day.
func (r *Repository) EntryExists(ctx context.Context, personID, companyID int64, day string) (bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM attendance_records
			WHERE person_id = $1 AND company_id = $2 AND day = $3
		)
	`, personID, companyID, day)
	var exists bool
	err := row.Scan(&exists)
	return exists, err
}

// ExitExists reports whether an exit is recorded for the given day.
func (r *Repository) ExitExists(ctx context.Context, personID, companyID int64, day string) (bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM attendance_records
			WHERE person_id = $1 AND company_id = $2 AND day = $3 AND exit_at IS NOT NULL
		)
	`, personID, companyID, day)
	var exists bool
	err := row.Scan(&exists)
	return exists, err
}

// ListRecords returns a company's attendance log, newest first.
func (r *Repository) ListRecords(ctx context.Context, companyID int64, limit, offset int) ([]model.AttendanceRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, person_id, company_id, day, entry_at, exit_at, created_at
		FROM attendance_records
		WHERE company_id = $1
		ORDER BY entry_at DESC
		LIMIT $2 OFFSET $3
	`, companyID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []model.AttendanceRecord
	for rows.Next() {
		var rec model.AttendanceRecord
		var day time.Time
		if err := rows.Scan(&rec.ID, &rec.PersonID, &rec.CompanyID, &day, &rec.EntryAt, &rec.ExitAt, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Day = day.Format("2006-01-02")
		res = append(res, rec)
	}
	return res, rows.Err()
}

// UpsertDevice ensures a device record exists.
func (r *Repository) UpsertDevice(ctx context.Context, deviceID string) error {
	if deviceID == "" {
		return errors.New("device id required")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (device_id)
		VALUES ($1)
		ON CONFLICT (device_id) DO NOTHING
	`, deviceID)
	return err
}

// SaveRefreshToken stores a refresh token for rotation checks.
func (r *Repository) SaveRefreshToken(ctx context.Context, deviceID, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (token, device_id, expires_at)
		VALUES ($1, $2, $3)
	`, token, deviceID, expiresAt)
	return err
}
