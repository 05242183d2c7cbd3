package attendance

import (
	"context"
	"errors"
	"time"

	"facetrack/internal/model"
)

// Sentinel errors shared by the repository and the HTTP layer.
var (
	// ErrNotFound signals a missing company, person, or photo.
	ErrNotFound = errors.New("not found")
	// ErrConflict signals a write whose precondition failed: duplicate
	// enrollment, duplicate entry for the day, or exit without an open entry.
	ErrConflict = errors.New("conflict")
	// ErrInvalid signals a request rejected by validation.
	ErrInvalid = errors.New("invalid argument")
)

// DayOf returns the calendar day of ts in the offset ts carries.
// Client-supplied timestamps keep the attendee's local zone, so the
// attendance day follows the attendee's clock, not the server's.
func DayOf(ts time.Time) string {
	return ts.Format("2006-01-02")
}

// Store is the persistence surface the service and HTTP layer depend on.
// Implemented by Repository (Postgres) and mock.Store (tests).
type Store interface {
	Companies(ctx context.Context) ([]model.Company, error)
	CreateCompany(ctx context.Context, name string) (model.Company, error)

	EnrollPerson(ctx context.Context, p model.Person, photo []byte) (int64, error)
	Labels(ctx context.Context, companyID int64) ([]string, error)
	Persons(ctx context.Context, companyID int64) ([]model.Person, error)
	PersonPhoto(ctx context.Context, label string, companyID int64) ([]byte, error)
	PersonPhotoByID(ctx context.Context, personID int64) ([]byte, error)
	PersonID(ctx context.Context, label string, companyID int64) (int64, error)
	SetFaceEnrolled(ctx context.Context, personID int64, enrolled bool) error

	RecordEntry(ctx context.Context, personID, companyID int64, ts time.Time) (model.AttendanceRecord, error)
	RecordExit(ctx context.Context, personID, companyID int64, ts time.Time) error
	EntryExists(ctx context.Context, personID, companyID int64, day string) (bool, error)
	ExitExists(ctx context.Context, personID, companyID int64, day string) (bool, error)
	ListRecords(ctx context.Context, companyID int64, limit, offset int) ([]model.AttendanceRecord, error)

	UpsertDevice(ctx context.Context, deviceID string) error
	SaveRefreshToken(ctx context.Context, deviceID, token string, expiresAt time.Time) error
}
