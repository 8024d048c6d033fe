package views

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/OHshajim/MedLink/internal/apitest"
	"github.com/OHshajim/MedLink/pkg/medlink/api"
	"github.com/OHshajim/MedLink/pkg/medlink/auth"
	apperrors "github.com/OHshajim/MedLink/pkg/medlink/errors"
	"github.com/OHshajim/MedLink/pkg/medlink/guard"
	"github.com/OHshajim/MedLink/pkg/medlink/paging"
	"github.com/OHshajim/MedLink/pkg/medlink/query"
)

// Wednesday
var testNow = time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)

type recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *recorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recorder) All() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

type fixture struct {
	srv     *apitest.Server
	deps    Deps
	notices *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	srv := apitest.NewServer(t)
	session := auth.NewStore(auth.NewMemoryStore())
	notices := &recorder{}

	return &fixture{
		srv: srv,
		deps: Deps{
			API:      api.NewClient(srv.BaseURL(), session.Token),
			Cache:    query.New(query.WithRetries(0, 0)),
			Session:  session,
			Notifier: notices,
			Now:      func() time.Time { return testNow },
		},
		notices: notices,
	}
}

func (f *fixture) login(t *testing.T, id, name, email string, role api.Role) {
	t.Helper()
	token := f.srv.IssueToken(email)
	require.NoError(t, f.deps.Session.Login(context.Background(),
		auth.Identity{UserID: id, Name: name, Email: email, Role: role}, token))
}

func (f *fixture) patient(t *testing.T) api.User {
	t.Helper()
	u := f.srv.AddPatient("Ayesha Khan", "ayesha@example.com", "secret1")
	f.login(t, u.ID, u.Name, u.Email, api.RolePatient)
	return u
}

func (f *fixture) doctor(t *testing.T) api.Doctor {
	t.Helper()
	d := f.srv.AddDoctor("Dr. Rahman", "rahman@example.com", "secret1", "Cardiology")
	f.login(t, d.ID, d.Name, d.Email, api.RoleDoctor)
	return d
}

func TestDoctorDirectory_RedirectsAnonymous(t *testing.T) {
	f := newFixture(t)
	v := NewDoctorDirectory(f.deps)

	res := v.Load(context.Background())

	require.NotNil(t, res.Redirect)
	assert.Equal(t, guard.RedirectLogin, res.Redirect.Outcome)
	assert.Equal(t, guard.PathLogin, res.Redirect.RedirectTo)
	assert.Equal(t, guard.PathPatientDashboard, res.Redirect.From)
	assert.Equal(t, 0, f.srv.Calls(apitest.RouteDoctors))
}

func TestDoctorDirectory_RejectsDoctorSession(t *testing.T) {
	f := newFixture(t)
	f.doctor(t)

	res := NewDoctorDirectory(f.deps).Load(context.Background())

	require.NotNil(t, res.Redirect)
	assert.Empty(t, res.Redirect.From)
	assert.Equal(t, 0, f.srv.Calls(apitest.RouteDoctors))
}

func TestDoctorDirectory_FiltersAndPages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, d := range []struct{ name, spec string }{
		{"Dr. Alam", "Cardiology"}, {"Dr. Bose", "Dermatology"}, {"Dr. Chowdhury", "Neurology"},
		{"Dr. Das", "Cardiology"}, {"Dr. Elahi", "Pediatrics"}, {"Dr. Faruk", "Neurology"},
		{"Dr. Gazi", "Dermatology"}, {"Dr. Hossain", "Pediatrics"},
	} {
		f.srv.AddDoctor(d.name, d.name+"@example.com", "secret1", d.spec)
	}
	f.patient(t)
	v := NewDoctorDirectory(f.deps)

	res := v.Load(ctx)
	require.NoError(t, res.Err)
	assert.Equal(t, StateSuccess, res.State)
	assert.Len(t, res.Page.Data, api.DoctorPageSize)
	assert.Equal(t, 2, res.Page.TotalPages)

	v.Next()
	assert.Equal(t, 2, v.Page())
	res = v.Load(ctx)
	require.NoError(t, res.Err)
	assert.Len(t, res.Page.Data, 2)

	// Already on the last page
	v.Next()
	assert.Equal(t, 2, v.Page())

	v.SetSpecialization("Cardiology")
	assert.Equal(t, 1, v.Page())
	res = v.Load(ctx)
	require.NoError(t, res.Err)
	require.Len(t, res.Page.Data, 2)
	assert.Equal(t, "Dr. Alam", res.Page.Data[0].Name)

	v.SetSpecialization(AllSpecializations)
	v.SetSearch("nobody")
	res = v.Load(ctx)
	require.NoError(t, res.Err)
	assert.Equal(t, StateEmpty, res.State)
	assert.Equal(t, StateEmpty, v.State())

	specs, err := v.Specializations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Cardiology", "Dermatology", "Neurology", "Pediatrics"}, specs)
}

func TestDoctorDirectory_RepeatsServedFromCache(t *testing.T) {
	f := newFixture(t)
	f.srv.AddDoctor("Dr. Rahman", "rahman@example.com", "secret1", "Cardiology")
	f.patient(t)
	v := NewDoctorDirectory(f.deps)

	for i := 0; i < 3; i++ {
		res := v.Load(context.Background())
		require.NoError(t, res.Err)
	}
	assert.Equal(t, 1, f.srv.Calls(apitest.RouteDoctors))
}

func TestDoctorDirectory_BookShowsPendingAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doctor := f.srv.AddDoctor("Dr. Rahman", "rahman@example.com", "secret1", "Cardiology")
	f.patient(t)

	list := NewPatientAppointments(f.deps)
	res := list.Load(ctx)
	require.NoError(t, res.Err)
	assert.Equal(t, StateEmpty, res.State)

	appt, err := NewDoctorDirectory(f.deps).Book(ctx, doctor, "2026-10-15", "10:00")
	require.NoError(t, err)
	assert.Equal(t, api.StatusPending, appt.Status)
	assert.True(t, appt.Date.Equal(time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)))

	notices := f.notices.All()
	require.Len(t, notices, 1)
	assert.Equal(t, "Appointment booked successfully!", notices[0].Title)
	assert.Equal(t, "Your appointment with Dr. Rahman has been scheduled.", notices[0].Description)
	assert.Equal(t, VariantDefault, notices[0].Variant)

	res = list.Load(ctx)
	require.NoError(t, res.Err)
	require.Len(t, res.Page.Data, 1)
	assert.Equal(t, appt.ID, res.Page.Data[0].ID)
	assert.Equal(t, api.StatusPending, res.Page.Data[0].Status)
	assert.Equal(t, 2, f.srv.Calls(apitest.RoutePatientAppointments))
}

func TestDoctorDirectory_BookRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	doctor := f.srv.AddDoctor("Dr. Rahman", "rahman@example.com", "secret1", "Cardiology")
	f.patient(t)
	v := NewDoctorDirectory(f.deps)

	tests := []struct {
		name string
		day  string
		slot string
	}{
		{"sunday", "2026-10-18", "10:00"},
		{"past", "2026-10-13", "10:00"},
		{"no date", "", "10:00"},
		{"slot outside hours", "2026-10-15", "12:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Book(context.Background(), doctor, tt.day, tt.slot)
			require.Error(t, err)
			assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
		})
	}

	_, err := v.Book(context.Background(), doctor, "20-10-2026", "10:00")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "YYYY-MM-DD")

	assert.Equal(t, 0, f.srv.Calls(apitest.RouteCreateAppointment))
	assert.Empty(t, f.notices.All())
}

func TestDoctorDirectory_BookConflictNotifies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doctor := f.srv.AddDoctor("Dr. Rahman", "rahman@example.com", "secret1", "Cardiology")
	f.patient(t)
	v := NewDoctorDirectory(f.deps)

	_, err := v.Book(ctx, doctor, "2026-10-15", "10:00")
	require.NoError(t, err)

	_, err = v.Book(ctx, doctor, "2026-10-15", "10:00")
	require.Error(t, err)

	notices := f.notices.All()
	require.Len(t, notices, 2)
	assert.Equal(t, VariantDestructive, notices[1].Variant)
	assert.Equal(t, "This time slot is already booked", notices[1].Description)
}

func TestDoctorAppointments_CompleteIncrementsCompletedStat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	patient := f.srv.AddPatient("Ayesha Khan", "ayesha@example.com", "secret1")
	doctor := f.doctor(t)

	todayID := f.srv.AddAppointment(doctor.ID, patient.ID, testNow.Add(2*time.Hour), api.StatusPending)
	f.srv.AddAppointment(doctor.ID, patient.ID, testNow.Add(26*time.Hour), api.StatusPending)

	v := NewDoctorAppointments(f.deps)
	res := v.Load(ctx)
	require.NoError(t, res.Err)
	require.Len(t, res.Page.Data, 2)
	assert.Equal(t, "Ayesha Khan", res.Page.Data[0].Counterparty())
	assert.Equal(t, Stats{Today: 1, Pending: 2, Completed: 0}, v.Stats())

	require.NoError(t, v.Complete(ctx, todayID))
	status, _ := f.srv.Appointment(todayID)
	assert.Equal(t, api.StatusCompleted, status)

	res = v.Load(ctx)
	require.NoError(t, res.Err)
	assert.Equal(t, Stats{Today: 1, Pending: 1, Completed: 1}, v.Stats())
	assert.Equal(t, 2, f.srv.Calls(apitest.RouteDoctorAppointments))
}

func TestDoctorAppointments_Filters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	patient := f.srv.AddPatient("Ayesha Khan", "ayesha@example.com", "secret1")
	doctor := f.doctor(t)
	f.srv.AddAppointment(doctor.ID, patient.ID, testNow.Add(2*time.Hour), api.StatusPending)
	f.srv.AddAppointment(doctor.ID, patient.ID, testNow.Add(26*time.Hour), api.StatusCancelled)

	v := NewDoctorAppointments(f.deps)
	require.Error(t, v.SetDate("14/10/2026"))

	v.Today()
	assert.Equal(t, []string{"DOCTOR", "", "2026-10-14"}, v.Key().Filters)
	res := v.Load(ctx)
	require.NoError(t, res.Err)
	assert.Len(t, res.Page.Data, 1)

	v.ClearFilters()
	v.SetStatus(api.StatusCancelled)
	res = v.Load(ctx)
	require.NoError(t, res.Err)
	require.Len(t, res.Page.Data, 1)
	assert.Equal(t, api.StatusCancelled, res.Page.Data[0].Status)
}

func TestView_UnauthorizedEndsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.patient(t)

	v := NewPatientAppointments(f.deps)
	require.NoError(t, v.Load(ctx).Err)
	require.Equal(t, 1, f.deps.Cache.Len())

	f.srv.RevokeTokens()
	f.deps.Cache.Invalidate(query.ResourceAppointments)
	res := v.Load(ctx)

	require.Error(t, res.Err)
	require.NotNil(t, res.Redirect)
	assert.Equal(t, guard.PathLogin, res.Redirect.RedirectTo)
	assert.Equal(t, guard.PathPatientAppointments, res.Redirect.From)
	assert.False(t, f.deps.Session.Current().IsAuthenticated)
	assert.Equal(t, 0, f.deps.Cache.Len())
	assert.Empty(t, f.notices.All())
}

func TestView_SupersededResultIsDiscarded(t *testing.T) {
	f := newFixture(t)
	f.srv.AddDoctor("Dr. Rahman", "rahman@example.com", "secret1", "Cardiology")
	f.patient(t)
	v := NewDoctorDirectory(f.deps)

	release := f.srv.Block(apitest.RouteDoctors)
	done := make(chan Result[api.Doctor])
	go func() { done <- v.Load(context.Background()) }()

	require.Eventually(t, func() bool { return f.srv.Calls(apitest.RouteDoctors) == 1 }, time.Second, time.Millisecond)
	v.SetSearch("Rahman")
	release()

	res := <-done
	assert.True(t, res.Stale)
	assert.ErrorIs(t, res.Err, ErrStale)
	assert.Nil(t, res.Page)
}

func TestView_ClosedViewDiscardsLoads(t *testing.T) {
	f := newFixture(t)
	f.patient(t)
	v := NewPatientAppointments(f.deps)
	v.Close()

	res := v.Load(context.Background())
	assert.True(t, res.Stale)
	assert.Equal(t, 0, f.srv.Calls(apitest.RoutePatientAppointments))
}

func TestView_ConcurrentIdenticalLoadsShareOneRequest(t *testing.T) {
	f := newFixture(t)
	f.patient(t)
	a, b := NewPatientAppointments(f.deps), NewPatientAppointments(f.deps)

	release := f.srv.Block(apitest.RoutePatientAppointments)
	var wg sync.WaitGroup
	for _, v := range []*PatientAppointments{a, b} {
		wg.Add(1)
		go func(v *PatientAppointments) {
			defer wg.Done()
			assert.NoError(t, v.Load(context.Background()).Err)
		}(v)
	}

	require.Eventually(t, func() bool { return f.srv.Calls(apitest.RoutePatientAppointments) == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	release()
	wg.Wait()

	assert.Equal(t, 1, f.srv.Calls(apitest.RoutePatientAppointments))
}

func TestCountStats(t *testing.T) {
	appts := []api.Appointment{
		{ID: "1", Date: testNow.Add(time.Hour), Status: api.StatusPending},
		{ID: "2", Date: testNow.Add(3 * time.Hour), Status: api.StatusCompleted},
		{ID: "3", Date: testNow.Add(-24 * time.Hour), Status: api.StatusCompleted},
		{ID: "4", Date: testNow.Add(48 * time.Hour), Status: api.StatusCancelled},
	}
	assert.Equal(t, Stats{Today: 2, Pending: 1, Completed: 2}, CountStats(appts, testNow))
	assert.Equal(t, Stats{}, CountStats(nil, testNow))
}

type mockService struct {
	mock.Mock
}

func (m *mockService) Login(ctx context.Context, req *api.LoginRequest) (*api.LoginResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*api.LoginResponse)
	return resp, args.Error(1)
}

func (m *mockService) RegisterPatient(ctx context.Context, req *api.RegisterPatientRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockService) RegisterDoctor(ctx context.Context, req *api.RegisterDoctorRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockService) Specializations(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]string)
	return list, args.Error(1)
}

func (m *mockService) Doctors(ctx context.Context, q api.DoctorQuery) (*paging.Page[api.Doctor], error) {
	args := m.Called(ctx, q)
	page, _ := args.Get(0).(*paging.Page[api.Doctor])
	return page, args.Error(1)
}

func (m *mockService) CreateAppointment(ctx context.Context, req *api.CreateAppointmentRequest) (*api.Appointment, error) {
	args := m.Called(ctx, req)
	appt, _ := args.Get(0).(*api.Appointment)
	return appt, args.Error(1)
}

func (m *mockService) PatientAppointments(ctx context.Context, q api.AppointmentQuery) (*paging.Page[api.Appointment], error) {
	args := m.Called(ctx, q)
	page, _ := args.Get(0).(*paging.Page[api.Appointment])
	return page, args.Error(1)
}

func (m *mockService) DoctorAppointments(ctx context.Context, q api.AppointmentQuery) (*paging.Page[api.Appointment], error) {
	args := m.Called(ctx, q)
	page, _ := args.Get(0).(*paging.Page[api.Appointment])
	return page, args.Error(1)
}

func (m *mockService) UpdateStatus(ctx context.Context, req *api.UpdateStatusRequest) error {
	return m.Called(ctx, req).Error(0)
}

func TestPatientAppointments_CancelInvalidatesOnlyOnSuccess(t *testing.T) {
	svc := &mockService{}
	session := auth.NewStore(nil)
	require.NoError(t, session.Login(context.Background(),
		auth.Identity{UserID: "p-1", Name: "Ayesha", Role: api.RolePatient}, "opaque-token"))
	notices := &recorder{}
	deps := Deps{API: svc, Cache: query.New(query.WithRetries(0, 0)), Session: session, Notifier: notices}

	page := &paging.Page[api.Appointment]{
		Data: []api.Appointment{{ID: "a-1", Date: testNow, Status: api.StatusPending}},
		Page: 1, TotalPages: 1, Total: 1,
	}
	svc.On("PatientAppointments", mock.Anything, api.AppointmentQuery{Page: 1}).Return(page, nil).Twice()

	cancelReq := &api.UpdateStatusRequest{AppointmentID: "a-1", Status: api.StatusCancelled}
	svc.On("UpdateStatus", mock.Anything, cancelReq).
		Return(apperrors.NewWithStatus(apperrors.ErrCodeRequest, "Server error", http.StatusInternalServerError, nil)).Once()
	svc.On("UpdateStatus", mock.Anything, cancelReq).Return(nil).Once()

	v := NewPatientAppointments(deps)
	ctx := context.Background()
	require.NoError(t, v.Load(ctx).Err)
	require.True(t, deps.Cache.Cached(v.Key()))

	// A failed write is reported once and leaves the cache alone
	err := v.Cancel(ctx, "a-1")
	require.Error(t, err)
	assert.True(t, deps.Cache.Cached(v.Key()))
	require.Len(t, notices.All(), 1)
	assert.Equal(t, VariantDestructive, notices.All()[0].Variant)
	assert.Equal(t, "Server error", notices.All()[0].Description)

	require.NoError(t, v.Cancel(ctx, "a-1"))
	assert.False(t, deps.Cache.Cached(v.Key()))
	require.NoError(t, v.Load(ctx).Err)

	svc.AssertExpectations(t)
	svc.AssertNumberOfCalls(t, "UpdateStatus", 2)
}

func TestPatientAppointments_CancelRequiresID(t *testing.T) {
	svc := &mockService{}
	session := auth.NewStore(nil)
	require.NoError(t, session.Login(context.Background(),
		auth.Identity{UserID: "p-1", Name: "Ayesha", Role: api.RolePatient}, "opaque-token"))

	err := NewPatientAppointments(Deps{API: svc, Session: session}).Cancel(context.Background(), "")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
	svc.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything)
}

func TestPatientAppointments_MutationRedirectsWithoutSession(t *testing.T) {
	svc := &mockService{}
	err := NewPatientAppointments(Deps{API: svc}).Cancel(context.Background(), "a-1")

	var redirect *RedirectError
	require.ErrorAs(t, err, &redirect)
	assert.Equal(t, guard.PathLogin, redirect.Decision.RedirectTo)
	svc.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything)
}
