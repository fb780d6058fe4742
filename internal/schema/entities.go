// Package schema defines the synchronizable entity types of the school
// console and the table registry the sync core iterates over.
//
// Field shapes follow the hosted database: snake_case JSON documents with
// client-generated string IDs, RFC 3339 timestamps, and free-text remarks.
// The embedded SyncMeta is mirror-local state and is excluded from the JSON
// document sent to the remote service.
package schema

import "time"

// Student is a pupil record with fee-tracking totals.
type Student struct {
	ID                   string  `json:"id"`
	StudentID            string  `json:"student_id" validate:"required"`
	Name                 string  `json:"name" validate:"required"`
	RollNumber           string  `json:"roll_number" validate:"required"`
	Class                string  `json:"class" validate:"required"`
	Section              string  `json:"section,omitempty"`
	Contact              string  `json:"contact,omitempty"`
	Address              string  `json:"address,omitempty"`
	TotalFee             float64 `json:"total_fee,omitempty"`
	FeePaid              float64 `json:"fee_paid,omitempty"`
	FeePaidCurrentYear   float64 `json:"fee_paid_current_year,omitempty"`
	PreviousYearBalance  float64 `json:"previous_year_balance,omitempty"`
	AttendancePercentage float64 `json:"attendance_percentage,omitempty"`
	Remarks              string  `json:"remarks,omitempty"`
	PhotoURL             string  `json:"photo_url,omitempty"`
	CreatedAt            string  `json:"created_at,omitempty"`
	UpdatedAt            string  `json:"updated_at,omitempty"`
	CreatedBy            string  `json:"created_by" validate:"required"`

	Sync SyncMeta `json:"-"`
}

// Teacher is a teaching-staff record.
type Teacher struct {
	ID            string  `json:"id"`
	TeacherID     string  `json:"teacher_id,omitempty"`
	Name          string  `json:"name" validate:"required"`
	Subject       string  `json:"subject" validate:"required"`
	Contact       string  `json:"contact" validate:"required"`
	Email         string  `json:"email" validate:"required,email"`
	Qualification string  `json:"qualification" validate:"required"`
	Experience    int     `json:"experience"`
	Salary        float64 `json:"salary,omitempty"`
	Level         string  `json:"level,omitempty"`
	ClassTaught   string  `json:"class_taught,omitempty"`
	PhotoURL      string  `json:"photo_url,omitempty"`
	CreatedAt     string  `json:"created_at,omitempty"`
	UpdatedAt     string  `json:"updated_at,omitempty"`
	CreatedBy     string  `json:"created_by" validate:"required"`

	Sync SyncMeta `json:"-"`
}

// Staff is a non-teaching-staff record.
type Staff struct {
	ID        string  `json:"id"`
	StaffID   string  `json:"staff_id,omitempty"`
	Name      string  `json:"name" validate:"required"`
	Contact   string  `json:"contact" validate:"required"`
	Address   string  `json:"address,omitempty"`
	Salary    float64 `json:"salary,omitempty"`
	PhotoURL  string  `json:"photo_url,omitempty"`
	CreatedAt string  `json:"created_at,omitempty"`
	UpdatedAt string  `json:"updated_at,omitempty"`
	CreatedBy string  `json:"created_by" validate:"required"`

	Sync SyncMeta `json:"-"`
}

// FeePayment records a single fee payment against a student.
type FeePayment struct {
	ID            string  `json:"id"`
	StudentID     string  `json:"student_id" validate:"required"`
	Amount        float64 `json:"amount" validate:"required,gt=0"`
	PaymentDate   string  `json:"payment_date" validate:"required"`
	PaymentMethod string  `json:"payment_method,omitempty"`
	ReceiptNumber string  `json:"receipt_number,omitempty"`
	Remarks       string  `json:"remarks,omitempty"`
	CreatedAt     string  `json:"created_at,omitempty"`
	CreatedBy     string  `json:"created_by" validate:"required"`

	Sync SyncMeta `json:"-"`
}

// AttendanceRecord records one student's attendance for one date.
type AttendanceRecord struct {
	ID        string `json:"id"`
	StudentID string `json:"student_id" validate:"required"`
	Date      string `json:"date" validate:"required"`
	Status    string `json:"status" validate:"required,oneof=present absent leave late"`
	Remarks   string `json:"remarks,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	CreatedBy string `json:"created_by" validate:"required"`

	Sync SyncMeta `json:"-"`
}

// SalaryPayment records a monthly salary payment to a teacher.
type SalaryPayment struct {
	ID            string  `json:"id"`
	TeacherID     string  `json:"teacher_id" validate:"required"`
	Amount        float64 `json:"amount" validate:"required,gt=0"`
	Month         string  `json:"month" validate:"required"`
	Year          int     `json:"year" validate:"required"`
	PaymentDate   string  `json:"payment_date" validate:"required"`
	PaymentMethod string  `json:"payment_method,omitempty"`
	Remarks       string  `json:"remarks,omitempty"`
	CreatedAt     string  `json:"created_at,omitempty"`
	CreatedBy     string  `json:"created_by" validate:"required"`

	Sync SyncMeta `json:"-"`
}

// StaffSalaryPayment records a monthly salary payment to a staff member.
type StaffSalaryPayment struct {
	ID            string  `json:"id"`
	StaffID       string  `json:"staff_id" validate:"required"`
	Amount        float64 `json:"amount" validate:"required,gt=0"`
	Month         string  `json:"month" validate:"required"`
	Year          int     `json:"year" validate:"required"`
	PaymentDate   string  `json:"payment_date" validate:"required"`
	PaymentMethod string  `json:"payment_method,omitempty"`
	Remarks       string  `json:"remarks,omitempty"`
	CreatedAt     string  `json:"created_at,omitempty"`
	CreatedBy     string  `json:"created_by" validate:"required"`

	Sync SyncMeta `json:"-"`
}

func (s *Student) GetID() string             { return s.ID }
func (s *Student) SetID(id string)           { s.ID = id }
func (s *Student) SyncState() *SyncMeta      { return &s.Sync }
func (t *Teacher) GetID() string             { return t.ID }
func (t *Teacher) SetID(id string)           { t.ID = id }
func (t *Teacher) SyncState() *SyncMeta      { return &t.Sync }
func (s *Staff) GetID() string               { return s.ID }
func (s *Staff) SetID(id string)             { s.ID = id }
func (s *Staff) SyncState() *SyncMeta        { return &s.Sync }
func (p *FeePayment) GetID() string          { return p.ID }
func (p *FeePayment) SetID(id string)        { p.ID = id }
func (p *FeePayment) SyncState() *SyncMeta   { return &p.Sync }
func (a *AttendanceRecord) GetID() string    { return a.ID }
func (a *AttendanceRecord) SetID(id string)  { a.ID = id }
func (a *AttendanceRecord) SyncState() *SyncMeta { return &a.Sync }
func (p *SalaryPayment) GetID() string       { return p.ID }
func (p *SalaryPayment) SetID(id string)     { p.ID = id }
func (p *SalaryPayment) SyncState() *SyncMeta { return &p.Sync }
func (p *StaffSalaryPayment) GetID() string  { return p.ID }
func (p *StaffSalaryPayment) SetID(id string) { p.ID = id }
func (p *StaffSalaryPayment) SyncState() *SyncMeta { return &p.Sync }

// Timestamp formats a time the way the hosted database stores it.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
