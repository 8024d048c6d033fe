package api

import (
	"context"

	"github.com/OHshajim/MedLink/pkg/medlink/paging"
)

// Service defines the remote appointment API consumed by the client
type Service interface {
	Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error)
	RegisterPatient(ctx context.Context, req *RegisterPatientRequest) error
	RegisterDoctor(ctx context.Context, req *RegisterDoctorRequest) error
	Specializations(ctx context.Context) ([]string, error)
	Doctors(ctx context.Context, q DoctorQuery) (*paging.Page[Doctor], error)
	CreateAppointment(ctx context.Context, req *CreateAppointmentRequest) (*Appointment, error)
	PatientAppointments(ctx context.Context, q AppointmentQuery) (*paging.Page[Appointment], error)
	DoctorAppointments(ctx context.Context, q AppointmentQuery) (*paging.Page[Appointment], error)
	UpdateStatus(ctx context.Context, req *UpdateStatusRequest) error
}
