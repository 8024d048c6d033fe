// Package apitest runs an in-memory fake of the MedLink appointment API for
// tests. It keeps accounts, tokens and appointments in maps and counts the
// calls made to every route.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/OHshajim/MedLink/pkg/medlink/api"
)

// Route names, as reported by Calls
const (
	RouteLogin               = "login"
	RouteRegisterPatient     = "register-patient"
	RouteRegisterDoctor      = "register-doctor"
	RouteSpecializations     = "specializations"
	RouteDoctors             = "doctors"
	RouteCreateAppointment   = "create-appointment"
	RoutePatientAppointments = "patient-appointments"
	RouteDoctorAppointments  = "doctor-appointments"
	RouteUpdateStatus        = "update-status"
)

// BasePath is where the API is mounted on the test server
const BasePath = "/api/v1"

const (
	defaultDoctorLimit = 10
	appointmentLimit   = 10
)

type account struct {
	api.User
	Password       string
	Specialization string
}

type appointment struct {
	ID        string
	DoctorID  string
	PatientID string
	Date      time.Time
	Status    api.Status
}

type failure struct {
	status  int
	message string
}

// Server is a fake API. Create it with NewServer.
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	accounts     map[string]*account // by email
	tokens       map[string]string   // token -> user id
	appointments []*appointment
	calls        map[string]int
	failures     map[string][]failure
	gates        map[string]chan struct{}
}

// NewServer starts a fake API that is closed when t finishes
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		accounts: make(map[string]*account),
		tokens:   make(map[string]string),
		calls:    make(map[string]int),
		failures: make(map[string][]failure),
		gates:    make(map[string]chan struct{}),
	}

	router := mux.NewRouter()
	v1 := router.PathPrefix(BasePath).Subrouter()
	v1.Use(s.instrument)

	v1.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost).Name(RouteLogin)
	v1.HandleFunc("/auth/register/patient", s.handleRegister(api.RolePatient)).Methods(http.MethodPost).Name(RouteRegisterPatient)
	v1.HandleFunc("/auth/register/doctor", s.handleRegister(api.RoleDoctor)).Methods(http.MethodPost).Name(RouteRegisterDoctor)
	v1.HandleFunc("/specializations", s.handleSpecializations).Methods(http.MethodGet).Name(RouteSpecializations)
	v1.HandleFunc("/doctors", s.handleDoctors).Methods(http.MethodGet).Name(RouteDoctors)
	v1.HandleFunc("/appointments", s.authenticated(api.RolePatient, s.handleCreateAppointment)).Methods(http.MethodPost).Name(RouteCreateAppointment)
	v1.HandleFunc("/appointments/patient", s.authenticated(api.RolePatient, s.handlePatientAppointments)).Methods(http.MethodGet).Name(RoutePatientAppointments)
	v1.HandleFunc("/appointments/doctor", s.authenticated(api.RoleDoctor, s.handleDoctorAppointments)).Methods(http.MethodGet).Name(RouteDoctorAppointments)
	v1.HandleFunc("/appointments/update-status", s.authenticated("", s.handleUpdateStatus)).Methods(http.MethodPatch).Name(RouteUpdateStatus)

	s.Server = httptest.NewServer(router)
	t.Cleanup(s.Close)
	return s
}

// BaseURL is the API base to hand to api.NewClient
func (s *Server) BaseURL() string {
	return s.URL + BasePath
}

// Calls returns how many requests reached route
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// FailNext makes the next request to route fail with status and message
func (s *Server) FailNext(route string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = append(s.failures[route], failure{status: status, message: message})
}

// Block holds every request to route until the returned func is called
func (s *Server) Block(route string) (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gates[route] = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.gates[route] == gate {
				delete(s.gates, route)
			}
			s.mu.Unlock()
			close(gate)
		})
	}
}

// RevokeTokens invalidates every issued token, as if all sessions expired
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]string)
}

// AddPatient registers a patient account directly
func (s *Server) AddPatient(name, email, password string) api.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addAccountLocked(api.RolePatient, name, email, password, "", "").User
}

// AddDoctor registers a doctor account directly
func (s *Server) AddDoctor(name, email, password, specialization string) api.Doctor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addAccountLocked(api.RoleDoctor, name, email, password, specialization, "").doctor()
}

// IssueToken returns a valid token for the account with email
func (s *Server) IssueToken(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[strings.ToLower(email)]
	if !ok {
		panic(fmt.Sprintf("apitest: no account for %s", email))
	}
	token := uuid.NewString()
	s.tokens[token] = acct.ID
	return token
}

// AddAppointment books an appointment directly and returns its id
func (s *Server) AddAppointment(doctorID, patientID string, date time.Time, status api.Status) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := &appointment{ID: uuid.NewString(), DoctorID: doctorID, PatientID: patientID, Date: date.UTC(), Status: status}
	s.appointments = append(s.appointments, a)
	return a.ID
}

// Appointment returns the stored status of an appointment
func (s *Server) Appointment(id string) (api.Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.appointments {
		if a.ID == id {
			return a.Status, true
		}
	}
	return "", false
}

func (s *Server) addAccountLocked(role api.Role, name, email, password, specialization, photoURL string) *account {
	acct := &account{
		User: api.User{
			ID:       uuid.NewString(),
			Name:     name,
			Email:    email,
			Role:     role,
			PhotoURL: photoURL,
		},
		Password:       password,
		Specialization: specialization,
	}
	s.accounts[strings.ToLower(email)] = acct
	return acct
}

func (a *account) doctor() api.Doctor {
	return api.Doctor{
		ID:             a.ID,
		Name:           a.Name,
		Email:          a.Email,
		Specialization: a.Specialization,
		PhotoURL:       a.PhotoURL,
	}
}

func (a *account) patient() api.Patient {
	return api.Patient{ID: a.ID, Name: a.Name, Email: a.Email, PhotoURL: a.PhotoURL}
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := ""
		if route := mux.CurrentRoute(r); route != nil {
			name = route.GetName()
		}

		s.mu.Lock()
		s.calls[name]++
		gate := s.gates[name]
		var fail *failure
		if queue := s.failures[name]; len(queue) > 0 {
			fail = &queue[0]
			s.failures[name] = queue[1:]
		}
		s.mu.Unlock()

		if gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}
		if fail != nil {
			writeMessage(w, fail.status, fail.message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type userHandler func(w http.ResponseWriter, r *http.Request, user *account)

// authenticated resolves the bearer token. An empty role admits any account.
func (s *Server) authenticated(role api.Role, next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

		s.mu.Lock()
		user := s.userByIDLocked(s.tokens[token])
		s.mu.Unlock()

		if token == "" || user == nil {
			writeMessage(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if role != "" && user.Role != role {
			writeMessage(w, http.StatusForbidden, "Forbidden")
			return
		}
		next(w, r, user)
	}
}

func (s *Server) userByIDLocked(id string) *account {
	if id == "" {
		return nil
	}
	for _, acct := range s.accounts {
		if acct.ID == id {
			return acct
		}
	}
	return nil
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[strings.ToLower(req.Email)]
	if !ok || acct.Password != req.Password || acct.Role != req.Role {
		writeMessage(w, http.StatusBadRequest, "Invalid email or password")
		return
	}

	token := uuid.NewString()
	s.tokens[token] = acct.ID
	writeJSON(w, http.StatusOK, api.LoginResponse{Token: token, User: acct.User})
}

func (s *Server) handleRegister(role api.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.RegisterDoctorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Name == "" || req.Email == "" || req.Password == "" {
			writeMessage(w, http.StatusBadRequest, "Name, email and password are required")
			return
		}
		if role == api.RoleDoctor && req.Specialization == "" {
			writeMessage(w, http.StatusBadRequest, "Specialization is required")
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		if _, exists := s.accounts[strings.ToLower(req.Email)]; exists {
			writeMessage(w, http.StatusConflict, "User already exists")
			return
		}
		acct := s.addAccountLocked(role, req.Name, req.Email, req.Password, req.Specialization, req.PhotoURL)
		writeJSON(w, http.StatusCreated, map[string]any{"message": "Registered successfully", "data": acct.User})
	}
}

func (s *Server) handleSpecializations(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	seen := make(map[string]bool)
	var list []string
	for _, acct := range s.accounts {
		if acct.Role == api.RoleDoctor && acct.Specialization != "" && !seen[acct.Specialization] {
			seen[acct.Specialization] = true
			list = append(list, acct.Specialization)
		}
	}
	s.mu.Unlock()

	sort.Strings(list)
	writeJSON(w, http.StatusOK, map[string]any{"data": list})
}

func (s *Server) handleDoctors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	search := strings.ToLower(q.Get("search"))
	specialization := q.Get("specialization")

	s.mu.Lock()
	var doctors []api.Doctor
	for _, acct := range s.accounts {
		if acct.Role != api.RoleDoctor {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(acct.Name), search) {
			continue
		}
		if specialization != "" && acct.Specialization != specialization {
			continue
		}
		doctors = append(doctors, acct.doctor())
	}
	s.mu.Unlock()

	sort.Slice(doctors, func(i, j int) bool { return doctors[i].Name < doctors[j].Name })

	page, limit := intParam(q.Get("page"), 1), intParam(q.Get("limit"), defaultDoctorLimit)
	data, totalPages := paginate(doctors, page, limit)

	// The doctor list reports its counters under "pagination"
	writeJSON(w, http.StatusOK, map[string]any{
		"data": data,
		"pagination": map[string]int{
			"page":       page,
			"totalPages": totalPages,
			"total":      len(doctors),
		},
	})
}

func (s *Server) handleCreateAppointment(w http.ResponseWriter, r *http.Request, user *account) {
	var req api.CreateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	date, err := time.Parse(time.RFC3339, req.Date)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid appointment date")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doctor := s.userByIDLocked(req.DoctorID)
	if doctor == nil || doctor.Role != api.RoleDoctor {
		writeMessage(w, http.StatusNotFound, "Doctor not found")
		return
	}
	for _, a := range s.appointments {
		if a.DoctorID == doctor.ID && a.Date.Equal(date) && a.Status != api.StatusCancelled {
			writeMessage(w, http.StatusConflict, "This time slot is already booked")
			return
		}
	}

	a := &appointment{ID: uuid.NewString(), DoctorID: doctor.ID, PatientID: user.ID, Date: date.UTC(), Status: api.StatusPending}
	s.appointments = append(s.appointments, a)
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Appointment created", "data": s.renderLocked(a)})
}

func (s *Server) handlePatientAppointments(w http.ResponseWriter, r *http.Request, user *account) {
	s.listAppointments(w, r, func(a *appointment) bool { return a.PatientID == user.ID })
}

func (s *Server) handleDoctorAppointments(w http.ResponseWriter, r *http.Request, user *account) {
	date := r.URL.Query().Get("date")
	s.listAppointments(w, r, func(a *appointment) bool {
		return a.DoctorID == user.ID && (date == "" || a.Date.Format("2006-01-02") == date)
	})
}

func (s *Server) listAppointments(w http.ResponseWriter, r *http.Request, match func(*appointment) bool) {
	q := r.URL.Query()
	status := api.Status(q.Get("status"))

	s.mu.Lock()
	var list []api.Appointment
	for _, a := range s.appointments {
		if match(a) && (status == "" || a.Status == status) {
			list = append(list, s.renderLocked(a))
		}
	}
	s.mu.Unlock()

	sort.SliceStable(list, func(i, j int) bool { return list[i].Date.Before(list[j].Date) })

	page := intParam(q.Get("page"), 1)
	data, totalPages := paginate(list, page, appointmentLimit)
	writeJSON(w, http.StatusOK, map[string]any{
		"data":       data,
		"page":       page,
		"totalPages": totalPages,
		"total":      len(list),
	})
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request, user *account) {
	var req api.UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Status != api.StatusCancelled && req.Status != api.StatusCompleted {
		writeMessage(w, http.StatusBadRequest, "Invalid status")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.appointments {
		if a.ID != req.AppointmentID {
			continue
		}
		owner := a.PatientID
		if user.Role == api.RoleDoctor {
			owner = a.DoctorID
		}
		if owner != user.ID {
			writeMessage(w, http.StatusForbidden, "Forbidden")
			return
		}
		if user.Role == api.RolePatient && req.Status != api.StatusCancelled {
			writeMessage(w, http.StatusForbidden, "Patients can only cancel appointments")
			return
		}
		if a.Status != api.StatusPending {
			writeMessage(w, http.StatusBadRequest, "Only pending appointments can be updated")
			return
		}
		a.Status = req.Status
		writeJSON(w, http.StatusOK, map[string]any{"message": "Appointment updated", "data": s.renderLocked(a)})
		return
	}
	writeMessage(w, http.StatusNotFound, "Appointment not found")
}

func (s *Server) renderLocked(a *appointment) api.Appointment {
	out := api.Appointment{ID: a.ID, Date: a.Date, Status: a.Status}
	if d := s.userByIDLocked(a.DoctorID); d != nil {
		doc := d.doctor()
		out.Doctor = &doc
	}
	if p := s.userByIDLocked(a.PatientID); p != nil {
		pat := p.patient()
		out.Patient = &pat
	}
	return out
}

func paginate[T any](items []T, page, limit int) ([]T, int) {
	if limit < 1 {
		limit = 1
	}
	totalPages := (len(items) + limit - 1) / limit
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}, totalPages
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], totalPages
}

func intParam(v string, def int) int {
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
