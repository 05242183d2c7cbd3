// Package mock provides an in-memory attendance.Store for testing.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"facetrack/internal/attendance"
	"facetrack/internal/model"
)

type personKey struct {
	companyID  int64
	nationalID string
}

type recordKey struct {
	personID  int64
	companyID int64
	day       string
}

// Store is an in-memory attendance.Store. The mutex gives it the same
// at-most-one-success semantics as the Postgres conditional writes, so
// concurrency properties can be exercised without a database.
type Store struct {
	mu sync.Mutex

	companies map[int64]model.Company
	persons   map[int64]model.Person
	photos    map[int64][]byte
	records   map[recordKey]*model.AttendanceRecord
	byNatID   map[personKey]int64
	devices   map[string]struct{}
	tokens    map[string]string

	nextCompanyID int64
	nextPersonID  int64

	// Error injection
	FailWith error
}

// NewStore creates an empty mock store.
func NewStore() *Store {
	return &Store{
		companies: make(map[int64]model.Company),
		persons:   make(map[int64]model.Person),
		photos:    make(map[int64][]byte),
		records:   make(map[recordKey]*model.AttendanceRecord),
		byNatID:   make(map[personKey]int64),
		devices:   make(map[string]struct{}),
		tokens:    make(map[string]string),
	}
}

func (s *Store) Companies(ctx context.Context) ([]model.Company, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []model.Company
	for _, c := range s.companies {
		res = append(res, c)
	}
	return res, nil
}

func (s *Store) CreateCompany(ctx context.Context, name string) (model.Company, error) {
	if s.FailWith != nil {
		return model.Company{}, s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.companies {
		if c.Name == name {
			return model.Company{}, attendance.ErrConflict
		}
	}
	s.nextCompanyID++
	c := model.Company{ID: s.nextCompanyID, Name: name, CreatedAt: time.Now()}
	s.companies[c.ID] = c
	return c, nil
}

func (s *Store) EnrollPerson(ctx context.Context, p model.Person, photo []byte) (int64, error) {
	if s.FailWith != nil {
		return 0, s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := personKey{companyID: p.CompanyID, nationalID: p.NationalID}
	if _, exists := s.byNatID[key]; exists {
		return 0, attendance.ErrConflict
	}
	s.nextPersonID++
	p.ID = s.nextPersonID
	p.CreatedAt = time.Now()
	s.persons[p.ID] = p
	s.photos[p.ID] = photo
	s.byNatID[key] = p.ID
	return p.ID, nil
}

func (s *Store) Labels(ctx context.Context, companyID int64) ([]string, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var labels []string
	for _, p := range s.persons {
		if p.CompanyID == companyID {
			labels = append(labels, p.Name)
		}
	}
	return labels, nil
}

func (s *Store) Persons(ctx context.Context, companyID int64) ([]model.Person, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []model.Person
	for _, p := range s.persons {
		if p.CompanyID == companyID {
			res = append(res, p)
		}
	}
	return res, nil
}

func (s *Store) PersonPhoto(ctx context.Context, label string, companyID int64) ([]byte, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.persons {
		if p.CompanyID == companyID && p.Name == label {
			if photo := s.photos[id]; len(photo) > 0 {
				return photo, nil
			}
			return nil, attendance.ErrNotFound
		}
	}
	return nil, attendance.ErrNotFound
}

func (s *Store) PersonPhotoByID(ctx context.Context, personID int64) ([]byte, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if photo := s.photos[personID]; len(photo) > 0 {
		return photo, nil
	}
	return nil, attendance.ErrNotFound
}

func (s *Store) PersonID(ctx context.Context, label string, companyID int64) (int64, error) {
	if s.FailWith != nil {
		return 0, s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.persons {
		if p.CompanyID == companyID && p.Name == label {
			return id, nil
		}
	}
	return 0, attendance.ErrNotFound
}

func (s *Store) SetFaceEnrolled(ctx context.Context, personID int64, enrolled bool) error {
	if s.FailWith != nil {
		return s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.persons[personID]
	if !ok {
		return attendance.ErrNotFound
	}
	p.FaceEnrolled = enrolled
	s.persons[personID] = p
	return nil
}

func (s *Store) RecordEntry(ctx context.Context, personID, companyID int64, ts time.Time) (model.AttendanceRecord, error) {
	if s.FailWith != nil {
		return model.AttendanceRecord{}, s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recordKey{personID: personID, companyID: companyID, day: attendance.DayOf(ts)}
	if _, exists := s.records[key]; exists {
		return model.AttendanceRecord{}, attendance.ErrConflict
	}
	rec := model.AttendanceRecord{
		ID:        uuid.NewString(),
		PersonID:  personID,
		CompanyID: companyID,
		Day:       key.day,
		EntryAt:   ts,
		CreatedAt: time.Now(),
	}
	s.records[key] = &rec
	return rec, nil
}

func (s *Store) RecordExit(ctx context.Context, personID, companyID int64, ts time.Time) error {
	if s.FailWith != nil {
		return s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recordKey{personID: personID, companyID: companyID, day: attendance.DayOf(ts)}
	rec, exists := s.records[key]
	if !exists || rec.ExitAt != nil {
		return attendance.ErrConflict
	}
	exit := ts
	rec.ExitAt = &exit
	return nil
}

func (s *Store) EntryExists(ctx context.Context, personID, companyID int64, day string) (bool, error) {
	if s.FailWith != nil {
		return false, s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.records[recordKey{personID: personID, companyID: companyID, day: day}]
	return exists, nil
}

func (s *Store) ExitExists(ctx context.Context, personID, companyID int64, day string) (bool, error) {
	if s.FailWith != nil {
		return false, s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, exists := s.records[recordKey{personID: personID, companyID: companyID, day: day}]
	return exists && rec.ExitAt != nil, nil
}

func (s *Store) ListRecords(ctx context.Context, companyID int64, limit, offset int) ([]model.AttendanceRecord, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []model.AttendanceRecord
	for _, rec := range s.records {
		if rec.CompanyID == companyID {
			res = append(res, *rec)
		}
	}
	return res, nil
}

func (s *Store) UpsertDevice(ctx context.Context, deviceID string) error {
	if s.FailWith != nil {
		return s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[deviceID] = struct{}{}
	return nil
}

func (s *Store) SaveRefreshToken(ctx context.Context, deviceID, token string, expiresAt time.Time) error {
	if s.FailWith != nil {
		return s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = deviceID
	return nil
}
