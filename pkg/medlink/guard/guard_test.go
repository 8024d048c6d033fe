package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/OHshajim/MedLink/pkg/medlink/api"
	"github.com/OHshajim/MedLink/pkg/medlink/auth"
)

func sessionFor(role api.Role) auth.Session {
	return auth.Session{
		Identity:        auth.Identity{UserID: "u-1", Name: "Test User", Role: role},
		IsAuthenticated: true,
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name     string
		session  auth.Session
		required api.Role
		path     string
		want     Decision
	}{
		{
			name:     "anonymous is sent to login with return path",
			session:  auth.Session{},
			required: api.RolePatient,
			path:     PathPatientDashboard,
			want:     Decision{Outcome: RedirectLogin, RedirectTo: PathLogin, From: PathPatientDashboard},
		},
		{
			name:     "wrong role is sent to login without return path",
			session:  sessionFor(api.RolePatient),
			required: api.RoleDoctor,
			path:     PathDoctorDashboard,
			want:     Decision{Outcome: RedirectLogin, RedirectTo: PathLogin},
		},
		{
			name:     "matching role is allowed",
			session:  sessionFor(api.RoleDoctor),
			required: api.RoleDoctor,
			path:     PathDoctorDashboard,
			want:     Decision{Outcome: Allow},
		},
		{
			name:     "any role when none is required",
			session:  sessionFor(api.RolePatient),
			required: "",
			path:     "/anything",
			want:     Decision{Outcome: Allow},
		},
		{
			name:     "anonymous without required role still needs a session",
			session:  auth.Session{},
			required: "",
			path:     "/anything",
			want:     Decision{Outcome: RedirectLogin, RedirectTo: PathLogin, From: "/anything"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.session, tt.required, tt.path))
		})
	}
}

func TestNavigate(t *testing.T) {
	anonymous := auth.Session{}
	patient := sessionFor(api.RolePatient)
	doctor := sessionFor(api.RoleDoctor)

	// Public pages
	assert.Equal(t, Allow, Navigate(anonymous, PathLogin).Outcome)
	assert.Equal(t, Allow, Navigate(anonymous, PathRegister).Outcome)

	// Protected pages
	d := Navigate(anonymous, "/patient/dashboard/?tab=2")
	assert.Equal(t, RedirectLogin, d.Outcome)
	assert.Equal(t, PathLogin, d.RedirectTo)
	assert.Equal(t, PathPatientDashboard, d.From)

	assert.Equal(t, Allow, Navigate(patient, PathRoot).Outcome)
	assert.Equal(t, Allow, Navigate(patient, PathPatientAppointments).Outcome)
	assert.Equal(t, RedirectLogin, Navigate(patient, PathDoctorDashboard).Outcome)
	assert.Equal(t, RedirectLogin, Navigate(doctor, PathPatientDashboard).Outcome)
	assert.Equal(t, Allow, Navigate(doctor, PathDoctorDashboard).Outcome)

	// Unknown pages
	assert.Equal(t, NotFound, Navigate(patient, "/admin").Outcome)
	assert.Equal(t, NotFound, Navigate(anonymous, "/admin").Outcome)
}

func TestHomeFor(t *testing.T) {
	assert.Equal(t, PathPatientDashboard, HomeFor(api.RolePatient))
	assert.Equal(t, PathDoctorDashboard, HomeFor(api.RoleDoctor))
	assert.Equal(t, PathLogin, HomeFor(""))
}

func TestReturnPath(t *testing.T) {
	assert.Equal(t, PathPatientAppointments, ReturnPath(api.RolePatient, PathPatientAppointments))
	assert.Equal(t, PathPatientDashboard, ReturnPath(api.RolePatient, ""))
	assert.Equal(t, PathPatientDashboard, ReturnPath(api.RolePatient, PathDoctorDashboard))
	assert.Equal(t, PathDoctorDashboard, ReturnPath(api.RoleDoctor, PathLogin))
	assert.Equal(t, PathDoctorDashboard, ReturnPath(api.RoleDoctor, "/nowhere"))
}

func TestClean(t *testing.T) {
	assert.Equal(t, PathRoot, Clean(""))
	assert.Equal(t, PathPatientDashboard, Clean("patient/dashboard"))
	assert.Equal(t, PathPatientDashboard, Clean("/patient/dashboard/"))
	assert.Equal(t, PathDoctorDashboard, Clean("/doctor/dashboard?date=2026-10-14#top"))
}
