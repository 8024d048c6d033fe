package views

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/OHshajim/MedLink/pkg/medlink/api"
	"github.com/OHshajim/MedLink/pkg/medlink/guard"
	"github.com/OHshajim/MedLink/pkg/medlink/paging"
	"github.com/OHshajim/MedLink/pkg/medlink/query"
	"github.com/OHshajim/MedLink/pkg/medlink/validate"
)

// AllSpecializations is the specialization filter value that matches every doctor
const AllSpecializations = "all"

// DoctorDirectory is the patient dashboard: a searchable, filterable list of
// doctors from which appointments are booked.
type DoctorDirectory struct {
	base

	fmu            sync.Mutex
	page           int
	search         string
	specialization string
}

// NewDoctorDirectory opens the directory on its first page
func NewDoctorDirectory(deps Deps) *DoctorDirectory {
	return &DoctorDirectory{base: newBase(deps, guard.PathPatientDashboard), page: paging.FirstPage}
}

// SetSearch filters doctors by name and returns to the first page
func (v *DoctorDirectory) SetSearch(s string) {
	v.fmu.Lock()
	v.search = strings.TrimSpace(s)
	v.page = paging.FirstPage
	v.fmu.Unlock()
	v.supersede()
}

// SetSpecialization filters doctors by specialization and returns to the
// first page. AllSpecializations or "" clears the filter.
func (v *DoctorDirectory) SetSpecialization(s string) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, AllSpecializations) {
		s = ""
	}
	v.fmu.Lock()
	v.specialization = s
	v.page = paging.FirstPage
	v.fmu.Unlock()
	v.supersede()
}

// SetPage jumps to page
func (v *DoctorDirectory) SetPage(page int) {
	if page < paging.FirstPage {
		page = paging.FirstPage
	}
	v.fmu.Lock()
	v.page = page
	v.fmu.Unlock()
	v.supersede()
}

// Next moves to the following page if there is one
func (v *DoctorDirectory) Next() {
	v.SetPage(paging.Advance(v.Page(), v.lastTotalPages()))
}

// Prev moves to the previous page if there is one
func (v *DoctorDirectory) Prev() {
	v.SetPage(paging.Retreat(v.Page()))
}

// Page returns the current page
func (v *DoctorDirectory) Page() int {
	v.fmu.Lock()
	defer v.fmu.Unlock()
	return v.page
}

func (v *DoctorDirectory) query() api.DoctorQuery {
	v.fmu.Lock()
	defer v.fmu.Unlock()
	return api.DoctorQuery{
		Page:           v.page,
		Limit:          api.DoctorPageSize,
		Search:         v.search,
		Specialization: v.specialization,
	}
}

// Key is the cache key of the current page and filters
func (v *DoctorDirectory) Key() query.Key {
	return doctorsKey(v.query())
}

func doctorsKey(q api.DoctorQuery) query.Key {
	return query.NewKey(query.ResourceDoctors, q.Page, q.Search, q.Specialization)
}

// Load fetches the current page
func (v *DoctorDirectory) Load(ctx context.Context) Result[api.Doctor] {
	q := v.query()
	return load(ctx, &v.base, doctorsKey(q), func(ctx context.Context) (*paging.Page[api.Doctor], error) {
		return v.deps.API.Doctors(ctx, q)
	})
}

// Specializations lists the values accepted by SetSpecialization
func (v *DoctorDirectory) Specializations(ctx context.Context) ([]string, error) {
	if d, ok := v.admit(); !ok {
		return nil, &RedirectError{Decision: d}
	}
	list, err := query.Fetch(ctx, v.deps.Cache, query.NewKey(query.ResourceSpecializations, 0), v.deps.API.Specializations)
	if err != nil {
		if d := v.handle(ctx, "Failed to load specializations", err); d != nil {
			return nil, &RedirectError{Decision: *d, Err: err}
		}
		return nil, err
	}
	return list, nil
}

// Book requests an appointment with doctor on day (YYYY-MM-DD, local time)
// at slot (one of validate.TimeSlots). Invalid input is rejected before
// anything is sent.
func (v *DoctorDirectory) Book(ctx context.Context, doctor api.Doctor, day, slot string) (*api.Appointment, error) {
	now := v.deps.Now()
	start, err := validate.ParseBooking(day, slot, now)
	if err != nil {
		return nil, err
	}

	req := &api.CreateAppointmentRequest{DoctorID: doctor.ID, Date: start.Format(time.RFC3339)}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	var appt *api.Appointment
	err = v.mutate(ctx, "Booking failed", func(ctx context.Context) error {
		var err error
		appt, err = v.deps.API.CreateAppointment(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	v.deps.Notifier.Notify(Notice{
		Title:       "Appointment booked successfully!",
		Description: fmt.Sprintf("Your appointment with Dr. %s has been scheduled.", strings.TrimPrefix(doctor.Name, "Dr. ")),
	})
	return appt, nil
}
