package medlink

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OHshajim/MedLink/pkg/medlink/api"
	"github.com/OHshajim/MedLink/pkg/medlink/paging"
	"github.com/OHshajim/MedLink/pkg/medlink/views"
)

// NewDoctorCmd creates the doctor command
func NewDoctorCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Manage your appointments as a doctor",
		Long: `Commands for doctors. Requires a doctor session.

Available subcommands:
  appointments  List your appointments with today's, pending and completed counts
  complete      Mark an appointment as completed
  cancel        Cancel an appointment

Examples:
  medlink doctor appointments --today
  medlink doctor appointments --status pending --date 2026-10-20
  medlink doctor complete 6512bd43d9caa6e02c990b0b`,
	}

	cmd.AddCommand(newDoctorAppointmentsCmd(rt))
	cmd.AddCommand(newDoctorStatusCmd(rt, "complete", "Mark an appointment as completed", "Updating appointment",
		(*views.DoctorAppointments).Complete))
	cmd.AddCommand(newDoctorStatusCmd(rt, "cancel", "Cancel an appointment", "Cancelling appointment",
		(*views.DoctorAppointments).Cancel))

	return cmd
}

func newDoctorAppointmentsCmd(rt *runtime) *cobra.Command {
	cfg := &AppointmentsConfig{}

	cmd := &cobra.Command{
		Use:   "appointments",
		Short: "List your appointments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := api.ParseStatus(cfg.Status)
			if err != nil {
				return err
			}

			list := views.NewDoctorAppointments(rt.app.Deps())
			defer list.Close()
			list.SetStatus(status)
			if cfg.Today {
				list.Today()
			} else if err := list.SetDate(cfg.Date); err != nil {
				return userError(err, false)
			}
			list.SetPage(cfg.Page)

			var res views.Result[api.Appointment]
			rt.spin("Loading appointments", func() { res = list.Load(cmd.Context()) })
			if err := resultError(res); err != nil {
				return err
			}

			stats := list.Stats()
			fmt.Fprintf(rt.out, "Today: %d  Pending: %d  Completed: %d\n", stats.Today, stats.Pending, stats.Completed)
			if res.State == views.StateEmpty {
				fmt.Fprintln(rt.out, "No appointments found")
				return nil
			}
			renderAppointments(rt.out, res.Page, "Patient")
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.Status, "status", "", "Filter by status: pending, completed or cancelled")
	cmd.Flags().StringVar(&cfg.Date, "date", "", "Filter by day (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&cfg.Today, "today", false, "Only show today's appointments")
	cmd.Flags().IntVar(&cfg.Page, "page", paging.FirstPage, "Page to show")
	cmd.MarkFlagsMutuallyExclusive("date", "today")

	return cmd
}

type statusChange func(v *views.DoctorAppointments, ctx context.Context, appointmentID string) error

func newDoctorStatusCmd(rt *runtime, use, short, progress string, change statusChange) *cobra.Command {
	return &cobra.Command{
		Use:   use + " APPOINTMENT_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list := views.NewDoctorAppointments(rt.app.Deps())
			defer list.Close()

			var err error
			rt.spin(progress, func() { err = change(list, cmd.Context(), args[0]) })
			return userError(err, !isContextErr(err))
		},
	}
}
