package api

import (
	"fmt"
	"strings"
	"time"
)

// Role is the kind of account a session belongs to
type Role string

const (
	RolePatient Role = "PATIENT"
	RoleDoctor  Role = "DOCTOR"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RolePatient || r == RoleDoctor
}

// ParseRole parses a role name case-insensitively
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q (want %s or %s)", s, RolePatient, RoleDoctor)
	}
	return r, nil
}

// Status is the server-owned state of an appointment
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// ParseStatus parses a status filter. The empty string means "any status".
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case "", StatusPending, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// User is the account returned at login
type User struct {
	ID       string `json:"id" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email,omitempty"`
	Role     Role   `json:"role" validate:"required,oneof=PATIENT DOCTOR"`
	PhotoURL string `json:"photo_url,omitempty"`
}

// Doctor is an entry of the doctor directory
type Doctor struct {
	ID             string `json:"id" validate:"required"`
	Name           string `json:"name" validate:"required"`
	Email          string `json:"email,omitempty"`
	Specialization string `json:"specialization,omitempty"`
	PhotoURL       string `json:"photo_url,omitempty"`
}

// Patient is the counterparty shown on a doctor's appointment list
type Patient struct {
	ID       string `json:"id" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email,omitempty"`
	PhotoURL string `json:"photo_url,omitempty"`
}

// Appointment is owned by the server; the client only reflects it
type Appointment struct {
	ID      string    `json:"id" validate:"required"`
	Date    time.Time `json:"date" validate:"required"`
	Status  Status    `json:"status" validate:"required,oneof=PENDING COMPLETED CANCELLED"`
	Doctor  *Doctor   `json:"doctor,omitempty" validate:"omitempty"`
	Patient *Patient  `json:"patient,omitempty" validate:"omitempty"`
}

// Counterparty returns the name of the other side of the appointment
func (a *Appointment) Counterparty() string {
	switch {
	case a.Doctor != nil:
		return a.Doctor.Name
	case a.Patient != nil:
		return a.Patient.Name
	}
	return ""
}

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     Role   `json:"role" validate:"required,oneof=PATIENT DOCTOR"`
}

// LoginResponse carries the issued credential and the account it belongs to
type LoginResponse struct {
	Token string `json:"token" validate:"required"`
	User  User   `json:"user"`
}

// RegisterPatientRequest is the body of POST /auth/register/patient
type RegisterPatientRequest struct {
	Name     string `json:"name" validate:"required,min=2"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	PhotoURL string `json:"photo_url,omitempty" validate:"omitempty,url"`
}

// RegisterDoctorRequest is the body of POST /auth/register/doctor
type RegisterDoctorRequest struct {
	Name           string `json:"name" validate:"required,min=2"`
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required,min=6"`
	Specialization string `json:"specialization" validate:"required"`
	PhotoURL       string `json:"photo_url,omitempty" validate:"omitempty,url"`
}

// CreateAppointmentRequest is the body of POST /appointments
type CreateAppointmentRequest struct {
	DoctorID string `json:"doctorId" validate:"required"`
	Date     string `json:"date" validate:"required"`
}

// UpdateStatusRequest is the body of PATCH /appointments/update-status
type UpdateStatusRequest struct {
	AppointmentID string `json:"appointment_id" validate:"required"`
	Status        Status `json:"status" validate:"required,oneof=CANCELLED COMPLETED"`
}

// DoctorQuery filters GET /doctors
type DoctorQuery struct {
	Page           int
	Limit          int
	Search         string
	Specialization string
}

// AppointmentQuery filters the appointment lists. Date (YYYY-MM-DD) is only
// honoured on the doctor list.
type AppointmentQuery struct {
	Status Status
	Date   string
	Page   int
}
