package attendance

import (
	"context"
	"fmt"
	"time"

	"facetrack/internal/model"
)

// Service validates requests and delegates persistence to a Store.
// It holds no state of its own: idempotency lives in the store's
// conditional writes, not here.
type Service struct {
	store Store
}

// NewService creates a service backed by a store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Companies lists all companies.
func (s *Service) Companies(ctx context.Context) ([]model.Company, error) {
	return s.store.Companies(ctx)
}

// CreateCompany creates a company with a unique name.
func (s *Service) CreateCompany(ctx context.Context, name string) (model.Company, error) {
	if name == "" {
		return model.Company{}, fmt.Errorf("%w: company name required", ErrInvalid)
	}
	return s.store.CreateCompany(ctx, name)
}

// Enroll registers a person with their enrollment photo.
func (s *Service) Enroll(ctx context.Context, name, nationalID, title string, companyID int64, photo []byte) (int64, error) {
	if name == "" || nationalID == "" {
		return 0, fmt.Errorf("%w: name and national id required", ErrInvalid)
	}
	if companyID <= 0 {
		return 0, fmt.Errorf("%w: company id required", ErrInvalid)
	}
	if len(photo) == 0 {
		return 0, fmt.Errorf("%w: enrollment photo required", ErrInvalid)
	}
	p := model.Person{CompanyID: companyID, Name: name, NationalID: nationalID, Title: title}
	return s.store.EnrollPerson(ctx, p, photo)
}

// Roster returns the labels enrolled under a company. An empty company
// yields an empty roster, not an error.
func (s *Service) Roster(ctx context.Context, companyID int64) ([]string, int, error) {
	if companyID <= 0 {
		return nil, 0, fmt.Errorf("%w: company id required", ErrInvalid)
	}
	labels, err := s.store.Labels(ctx, companyID)
	if err != nil {
		return nil, 0, err
	}
	return labels, len(labels), nil
}

// Persons returns the persons enrolled under a company.
func (s *Service) Persons(ctx context.Context, companyID int64) ([]model.Person, error) {
	if companyID <= 0 {
		return nil, fmt.Errorf("%w: company id required", ErrInvalid)
	}
	return s.store.Persons(ctx, companyID)
}

// Photo returns the enrollment photo for a label.
func (s *Service) Photo(ctx context.Context, label string, companyID int64) ([]byte, error) {
	if label == "" || companyID <= 0 {
		return nil, fmt.Errorf("%w: label and company id required", ErrInvalid)
	}
	return s.store.PersonPhoto(ctx, label, companyID)
}

// PersonID resolves a roster label to a person id.
func (s *Service) PersonID(ctx context.Context, label string, companyID int64) (int64, error) {
	if label == "" || companyID <= 0 {
		return 0, fmt.Errorf("%w: label and company id required", ErrInvalid)
	}
	return s.store.PersonID(ctx, label, companyID)
}

// RegisterEntry records the first entry of the day. ErrConflict when an
// entry already exists for the (person, company, day).
func (s *Service) RegisterEntry(ctx context.Context, personID, companyID int64, ts time.Time) (model.AttendanceRecord, error) {
	if personID <= 0 || companyID <= 0 {
		return model.AttendanceRecord{}, fmt.Errorf("%w: person and company required", ErrInvalid)
	}
	if ts.IsZero() {
		return model.AttendanceRecord{}, fmt.Errorf("%w: timestamp required", ErrInvalid)
	}
	return s.store.RecordEntry(ctx, personID, companyID, ts)
}

// RegisterExit records the day's exit. ErrConflict when no open entry exists.
func (s *Service) RegisterExit(ctx context.Context, personID, companyID int64, ts time.Time) error {
	if personID <= 0 || companyID <= 0 {
		return fmt.Errorf("%w: person and company required", ErrInvalid)
	}
	if ts.IsZero() {
		return fmt.Errorf("%w: timestamp required", ErrInvalid)
	}
	return s.store.RecordExit(ctx, personID, companyID, ts)
}

// EntryExists reports whether an entry is recorded for the given day.
func (s *Service) EntryExists(ctx context.Context, personID, companyID int64, day string) (bool, error) {
	if personID <= 0 || companyID <= 0 {
		return false, fmt.Errorf("%w: person and company required", ErrInvalid)
	}
	return s.store.EntryExists(ctx, personID, companyID, day)
}

// ExitExists reports whether an exit is recorded for the given day.
func (s *Service) ExitExists(ctx context.Context, personID, companyID int64, day string) (bool, error) {
	if personID <= 0 || companyID <= 0 {
		return false, fmt.Errorf("%w: person and company required", ErrInvalid)
	}
	return s.store.ExitExists(ctx, personID, companyID, day)
}

// Records returns a company's attendance log.
func (s *Service) Records(ctx context.Context, companyID int64, limit, offset int) ([]model.AttendanceRecord, error) {
	if companyID <= 0 {
		return nil, fmt.Errorf("%w: company id required", ErrInvalid)
	}
	return s.store.ListRecords(ctx, companyID, limit, offset)
}

// RegisterDevice validates and persists kiosk device metadata.
func (s *Service) RegisterDevice(ctx context.Context, deviceID string) error {
	if deviceID == "" {
		return fmt.Errorf("%w: device id required", ErrInvalid)
	}
	return s.store.UpsertDevice(ctx, deviceID)
}

// SaveRefreshToken stores an issued refresh token.
func (s *Service) SaveRefreshToken(ctx context.Context, deviceID, token string, expiresAt time.Time) error {
	return s.store.SaveRefreshToken(ctx, deviceID, token, expiresAt)
}
