package model

import "time"

// Company scopes every other entity. Immutable once created.
type Company struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Person is an enrolled attendee. The name doubles as the roster label.
type Person struct {
	ID           int64     `json:"id"`
	CompanyID    int64     `json:"company_id"`
	Name         string    `json:"name"`
	NationalID   string    `json:"national_id"`
	Title        string    `json:"title"`
	FaceEnrolled bool      `json:"face_enrolled"`
	CreatedAt    time.Time `json:"created_at"`
}

// AttendanceRecord is one day's entry/exit pair for a person.
// Exit stays nil until the first exit of the day is recorded.
type AttendanceRecord struct {
	ID        string     `json:"id"`
	PersonID  int64      `json:"person_id"`
	CompanyID int64      `json:"company_id"`
	Day       string     `json:"day"` // YYYY-MM-DD in the attendee's local offset
	EntryAt   time.Time  `json:"entry_at"`
	ExitAt    *time.Time `json:"exit_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
