package medlink

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OHshajim/MedLink/pkg/medlink/api"
	apperrors "github.com/OHshajim/MedLink/pkg/medlink/errors"
	"github.com/OHshajim/MedLink/pkg/medlink/paging"
	"github.com/OHshajim/MedLink/pkg/medlink/validate"
	"github.com/OHshajim/MedLink/pkg/medlink/views"
)

// NewSpecializationsCmd creates the specializations command
func NewSpecializationsCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "specializations",
		Short: "List doctor specializations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := views.NewDoctorDirectory(rt.app.Deps())
			defer dir.Close()

			var list []string
			var err error
			rt.spin("Loading specializations", func() { list, err = dir.Specializations(cmd.Context()) })
			if err != nil {
				return userError(err, !isContextErr(err))
			}
			if len(list) == 0 {
				fmt.Fprintln(rt.out, "No specializations found")
				return nil
			}
			for _, s := range list {
				fmt.Fprintln(rt.out, s)
			}
			return nil
		},
	}
}

// DoctorsConfig holds configuration for the doctors command
type DoctorsConfig struct {
	Search         string
	Specialization string
	Page           int
}

// NewDoctorsCmd creates the doctors command
func NewDoctorsCmd(rt *runtime) *cobra.Command {
	cfg := &DoctorsConfig{}

	cmd := &cobra.Command{
		Use:   "doctors",
		Short: "Browse the doctor directory",
		Long: `List doctors, six per page. Requires a patient session.

Examples:
  medlink doctors
  medlink doctors --search rahman
  medlink doctors --specialization Cardiology --page 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := views.NewDoctorDirectory(rt.app.Deps())
			defer dir.Close()
			dir.SetSearch(cfg.Search)
			dir.SetSpecialization(cfg.Specialization)
			dir.SetPage(cfg.Page)

			var res views.Result[api.Doctor]
			rt.spin("Loading doctors", func() { res = dir.Load(cmd.Context()) })
			if err := resultError(res); err != nil {
				return err
			}
			if res.State == views.StateEmpty {
				fmt.Fprintln(rt.out, "No doctors found")
				return nil
			}
			renderDoctors(rt.out, res.Page)
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.Search, "search", "", "Filter doctors by name")
	cmd.Flags().StringVar(&cfg.Specialization, "specialization", "", "Filter doctors by specialization ('all' for any)")
	cmd.Flags().IntVar(&cfg.Page, "page", paging.FirstPage, "Page to show")

	return cmd
}

// BookConfig holds configuration for the book command
type BookConfig struct {
	Date string
	Time string
}

// NewBookCmd creates the book command
func NewBookCmd(rt *runtime) *cobra.Command {
	cfg := &BookConfig{}

	cmd := &cobra.Command{
		Use:   "book DOCTOR_ID",
		Short: "Book an appointment with a doctor",
		Long: `Book an appointment. Dates are YYYY-MM-DD in local time, from today up to
three months ahead, Sundays excluded. Times are 09:00 to 11:30 and 14:00 to
17:00 in 30 minute steps.

Examples:
  medlink book 6512bd43d9caa6e02c990b0a --date 2026-10-20 --time 10:30`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBook(cmd.Context(), rt, args[0], cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.Date, "date", "", "Appointment date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&cfg.Time, "time", "", fmt.Sprintf("Appointment time, one of %v", validate.TimeSlots))

	return cmd
}

func runBook(ctx context.Context, rt *runtime, doctorID string, cfg *BookConfig) error {
	dir := views.NewDoctorDirectory(rt.app.Deps())
	defer dir.Close()

	var doctor api.Doctor
	var err error
	rt.spin("Looking up doctor", func() { doctor, err = findDoctor(ctx, dir, doctorID) })
	if err != nil {
		return err
	}

	var appt *api.Appointment
	rt.spin("Booking appointment", func() { appt, err = dir.Book(ctx, doctor, cfg.Date, cfg.Time) })
	if err != nil {
		return userError(err, !isContextErr(err))
	}

	fmt.Fprintf(rt.out, "Appointment %s on %s (%s)\n", appt.ID, appt.Date.Local().Format(dateTimeLayout), statusLabel(appt.Status))
	return nil
}

// findDoctor walks the directory until it meets id. Progress is tracked by
// the directory's own page, since servers may omit "page" from the envelope.
func findDoctor(ctx context.Context, dir *views.DoctorDirectory, id string) (api.Doctor, error) {
	for {
		if err := ctx.Err(); err != nil {
			return api.Doctor{}, err
		}
		res := dir.Load(ctx)
		if err := resultError(res); err != nil {
			return api.Doctor{}, err
		}
		for _, d := range res.Page.Data {
			if d.ID == id {
				return d, nil
			}
		}
		page := dir.Page()
		dir.Next()
		if dir.Page() == page {
			return api.Doctor{}, &cliError{
				msg: fmt.Sprintf("no doctor with id %s", id),
				err: apperrors.New(apperrors.ErrCodeRequest, "doctor not found", nil),
			}
		}
	}
}

// AppointmentsConfig holds configuration for the appointment list commands
type AppointmentsConfig struct {
	Status string
	Date   string
	Today  bool
	Page   int
}

// NewAppointmentsCmd creates the appointments command
func NewAppointmentsCmd(rt *runtime) *cobra.Command {
	cfg := &AppointmentsConfig{}

	cmd := &cobra.Command{
		Use:   "appointments",
		Short: "List your appointments",
		Long: `List the appointments of the signed-in patient.

Examples:
  medlink appointments
  medlink appointments --status pending --page 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := api.ParseStatus(cfg.Status)
			if err != nil {
				return err
			}

			list := views.NewPatientAppointments(rt.app.Deps())
			defer list.Close()
			list.SetStatus(status)
			list.SetPage(cfg.Page)

			var res views.Result[api.Appointment]
			rt.spin("Loading appointments", func() { res = list.Load(cmd.Context()) })
			if err := resultError(res); err != nil {
				return err
			}
			if res.State == views.StateEmpty {
				fmt.Fprintln(rt.out, "No appointments found")
				return nil
			}
			renderAppointments(rt.out, res.Page, "Doctor")
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.Status, "status", "", "Filter by status: pending, completed or cancelled")
	cmd.Flags().IntVar(&cfg.Page, "page", paging.FirstPage, "Page to show")

	return cmd
}

// NewCancelCmd creates the cancel command
func NewCancelCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel APPOINTMENT_ID",
		Short: "Cancel one of your appointments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list := views.NewPatientAppointments(rt.app.Deps())
			defer list.Close()

			var err error
			rt.spin("Cancelling appointment", func() { err = list.Cancel(cmd.Context(), args[0]) })
			return userError(err, !isContextErr(err))
		},
	}
}
