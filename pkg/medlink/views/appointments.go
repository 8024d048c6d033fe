package views

import (
	"context"
	"sync"
	"time"

	"github.com/OHshajim/MedLink/pkg/medlink/api"
	"github.com/OHshajim/MedLink/pkg/medlink/guard"
	"github.com/OHshajim/MedLink/pkg/medlink/paging"
	"github.com/OHshajim/MedLink/pkg/medlink/query"
	"github.com/OHshajim/MedLink/pkg/medlink/validate"
)

// PatientAppointments lists the signed-in patient's appointments
type PatientAppointments struct {
	base

	fmu    sync.Mutex
	page   int
	status api.Status
}

// NewPatientAppointments opens the list on its first page with no status filter
func NewPatientAppointments(deps Deps) *PatientAppointments {
	return &PatientAppointments{base: newBase(deps, guard.PathPatientAppointments), page: paging.FirstPage}
}

// SetStatus filters by status and returns to the first page. "" shows all.
func (v *PatientAppointments) SetStatus(s api.Status) {
	v.fmu.Lock()
	v.status = s
	v.page = paging.FirstPage
	v.fmu.Unlock()
	v.supersede()
}

// SetPage jumps to page
func (v *PatientAppointments) SetPage(page int) {
	if page < paging.FirstPage {
		page = paging.FirstPage
	}
	v.fmu.Lock()
	v.page = page
	v.fmu.Unlock()
	v.supersede()
}

func (v *PatientAppointments) Next() { v.SetPage(paging.Advance(v.Page(), v.lastTotalPages())) }
func (v *PatientAppointments) Prev() { v.SetPage(paging.Retreat(v.Page())) }

// Page returns the current page
func (v *PatientAppointments) Page() int {
	v.fmu.Lock()
	defer v.fmu.Unlock()
	return v.page
}

func (v *PatientAppointments) query() api.AppointmentQuery {
	v.fmu.Lock()
	defer v.fmu.Unlock()
	return api.AppointmentQuery{Status: v.status, Page: v.page}
}

// Key is the cache key of the current page and filters
func (v *PatientAppointments) Key() query.Key {
	return patientKey(v.query())
}

func patientKey(q api.AppointmentQuery) query.Key {
	return query.NewKey(query.ResourceAppointments, q.Page, string(api.RolePatient), string(q.Status))
}

// Load fetches the current page
func (v *PatientAppointments) Load(ctx context.Context) Result[api.Appointment] {
	q := v.query()
	return load(ctx, &v.base, patientKey(q), func(ctx context.Context) (*paging.Page[api.Appointment], error) {
		return v.deps.API.PatientAppointments(ctx, q)
	})
}

// Cancel cancels one of the patient's appointments
func (v *PatientAppointments) Cancel(ctx context.Context, appointmentID string) error {
	return updateStatus(ctx, &v.base, appointmentID, api.StatusCancelled)
}

// Stats summarizes the appointments on a doctor's current page
type Stats struct {
	Today     int
	Pending   int
	Completed int
}

// DoctorAppointments is the doctor dashboard
type DoctorAppointments struct {
	base

	fmu    sync.Mutex
	page   int
	status api.Status
	date   string
	last   *paging.Page[api.Appointment]
}

// NewDoctorAppointments opens the dashboard on its first page with no filters
func NewDoctorAppointments(deps Deps) *DoctorAppointments {
	return &DoctorAppointments{base: newBase(deps, guard.PathDoctorDashboard), page: paging.FirstPage}
}

// SetStatus filters by status and returns to the first page. "" shows all.
func (v *DoctorAppointments) SetStatus(s api.Status) {
	v.fmu.Lock()
	v.status = s
	v.page = paging.FirstPage
	v.fmu.Unlock()
	v.supersede()
}

// SetDate filters by day (YYYY-MM-DD) and returns to the first page. ""
// clears the filter.
func (v *DoctorAppointments) SetDate(day string) error {
	if day != "" {
		if _, err := time.Parse(validate.DayLayout, day); err != nil {
			return &validate.FieldError{Field: "date", Message: "Please enter a date as YYYY-MM-DD"}
		}
	}
	v.fmu.Lock()
	v.date = day
	v.page = paging.FirstPage
	v.fmu.Unlock()
	v.supersede()
	return nil
}

// Today filters on the current day
func (v *DoctorAppointments) Today() {
	_ = v.SetDate(v.deps.Now().Format(validate.DayLayout))
}

// ClearFilters removes the status and date filters
func (v *DoctorAppointments) ClearFilters() {
	v.fmu.Lock()
	v.status = ""
	v.date = ""
	v.page = paging.FirstPage
	v.fmu.Unlock()
	v.supersede()
}

// SetPage jumps to page
func (v *DoctorAppointments) SetPage(page int) {
	if page < paging.FirstPage {
		page = paging.FirstPage
	}
	v.fmu.Lock()
	v.page = page
	v.fmu.Unlock()
	v.supersede()
}

func (v *DoctorAppointments) Next() { v.SetPage(paging.Advance(v.Page(), v.lastTotalPages())) }
func (v *DoctorAppointments) Prev() { v.SetPage(paging.Retreat(v.Page())) }

// Page returns the current page
func (v *DoctorAppointments) Page() int {
	v.fmu.Lock()
	defer v.fmu.Unlock()
	return v.page
}

func (v *DoctorAppointments) query() api.AppointmentQuery {
	v.fmu.Lock()
	defer v.fmu.Unlock()
	return api.AppointmentQuery{Status: v.status, Date: v.date, Page: v.page}
}

// Key is the cache key of the current page and filters
func (v *DoctorAppointments) Key() query.Key {
	return doctorKey(v.query())
}

func doctorKey(q api.AppointmentQuery) query.Key {
	return query.NewKey(query.ResourceAppointments, q.Page, string(api.RoleDoctor), string(q.Status), q.Date)
}

// Load fetches the current page
func (v *DoctorAppointments) Load(ctx context.Context) Result[api.Appointment] {
	q := v.query()
	res := load(ctx, &v.base, doctorKey(q), func(ctx context.Context) (*paging.Page[api.Appointment], error) {
		return v.deps.API.DoctorAppointments(ctx, q)
	})
	if res.Page != nil {
		v.fmu.Lock()
		v.last = res.Page
		v.fmu.Unlock()
	}
	return res
}

// Stats counts the appointments of the last loaded page
func (v *DoctorAppointments) Stats() Stats {
	v.fmu.Lock()
	page := v.last
	v.fmu.Unlock()

	if page == nil {
		return Stats{}
	}
	return CountStats(page.Data, v.deps.Now())
}

// Complete marks an appointment as completed
func (v *DoctorAppointments) Complete(ctx context.Context, appointmentID string) error {
	return updateStatus(ctx, &v.base, appointmentID, api.StatusCompleted)
}

// Cancel cancels an appointment
func (v *DoctorAppointments) Cancel(ctx context.Context, appointmentID string) error {
	return updateStatus(ctx, &v.base, appointmentID, api.StatusCancelled)
}

// CountStats counts appointments falling on now's calendar day, pending ones
// and completed ones.
func CountStats(appointments []api.Appointment, now time.Time) Stats {
	var s Stats
	today := now.Format(validate.DayLayout)
	for _, a := range appointments {
		if a.Date.In(now.Location()).Format(validate.DayLayout) == today {
			s.Today++
		}
		switch a.Status {
		case api.StatusPending:
			s.Pending++
		case api.StatusCompleted:
			s.Completed++
		}
	}
	return s
}

func updateStatus(ctx context.Context, b *base, appointmentID string, status api.Status) error {
	req := &api.UpdateStatusRequest{AppointmentID: appointmentID, Status: status}
	if err := validate.Struct(req); err != nil {
		return err
	}

	err := b.mutate(ctx, "Failed to update appointment", func(ctx context.Context) error {
		return b.deps.API.UpdateStatus(ctx, req)
	})
	if err != nil {
		return err
	}

	desc := "The appointment has been cancelled."
	if status == api.StatusCompleted {
		desc = "The appointment has been marked as completed."
	}
	b.deps.Notifier.Notify(Notice{Title: "Appointment updated", Description: desc})
	return nil
}
