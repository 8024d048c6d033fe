package medlink

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OHshajim/MedLink/pkg/medlink/guard"
)

// NewOpenCmd creates the open command
func NewOpenCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "open PATH",
		Short: "Check whether the current session may open a page",
		Long: `Resolve a page of the MedLink application against the current session and
print where navigation ends up.

Pages:
  /login, /register                           public
  /, /patient/dashboard, /patient/appointments  patients
  /doctor/dashboard                            doctors

Examples:
  medlink open /patient/dashboard
  medlink open /doctor/dashboard`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := guard.Clean(args[0])
			d := rt.app.Navigate(path)

			switch d.Outcome {
			case guard.Allow:
				fmt.Fprintf(rt.out, "%s: allowed\n", path)
			case guard.RedirectLogin:
				if d.From != "" {
					fmt.Fprintf(rt.out, "%s: redirect to %s (return to %s after login)\n", path, d.RedirectTo, d.From)
				} else {
					fmt.Fprintf(rt.out, "%s: redirect to %s\n", path, d.RedirectTo)
				}
			case guard.NotFound:
				return fmt.Errorf("%s: page not found", path)
			}
			return nil
		},
	}
}
