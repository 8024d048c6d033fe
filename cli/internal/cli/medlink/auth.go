package medlink

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OHshajim/MedLink/pkg/medlink/api"
)

// LoginConfig holds configuration for the login command
type LoginConfig struct {
	Email         string
	Password      string
	PasswordStdin bool
	Role          string
	From          string
}

// NewLoginCmd creates the login command
func NewLoginCmd(rt *runtime) *cobra.Command {
	cfg := &LoginConfig{}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in as a patient or a doctor",
		Long: `Log in to MedLink. The session is stored locally and reused by later
commands until you log out or it expires.

Examples:
  medlink login --email ayesha@example.com --password secret1
  echo secret1 | medlink login --email rahman@example.com --role doctor --password-stdin
  medlink login --email ayesha@example.com --password secret1 --from /patient/appointments`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.PasswordStdin {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read password from stdin: %w", err)
				}
				cfg.Password = strings.TrimRight(line, "\r\n")
			}
			return runLogin(cmd, rt, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&cfg.Password, "password", "", "Account password")
	cmd.Flags().BoolVar(&cfg.PasswordStdin, "password-stdin", false, "Read the password from stdin")
	cmd.Flags().StringVar(&cfg.Role, "role", "patient", "Account role: patient or doctor")
	cmd.Flags().StringVar(&cfg.From, "from", "", "Page to return to after logging in")
	cmd.MarkFlagsMutuallyExclusive("password", "password-stdin")

	return cmd
}

func runLogin(cmd *cobra.Command, rt *runtime, cfg *LoginConfig) error {
	role, err := api.ParseRole(cfg.Role)
	if err != nil {
		return err
	}

	req := &api.LoginRequest{Email: strings.TrimSpace(cfg.Email), Password: cfg.Password, Role: role}

	var landing string
	rt.spin("Logging in", func() {
		landing, err = rt.app.Login(cmd.Context(), req, cfg.From)
	})
	if err != nil {
		return userError(err, false)
	}

	sess := rt.app.Session.Current()
	fmt.Fprintf(rt.out, "Logged in as %s (%s)\n", sess.Name, roleLabel(sess.Role))
	fmt.Fprintf(rt.out, "Continue at %s\n", landing)
	return nil
}

// NewLogoutCmd creates the logout command
func NewLogoutCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt.app.Logout(cmd.Context())
			fmt.Fprintln(rt.out, "Logged out")
			return nil
		},
	}
}

// NewWhoamiCmd creates the whoami command
func NewWhoamiCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess := rt.app.Session.Current()
			if !sess.IsAuthenticated {
				fmt.Fprintln(rt.out, "Not logged in")
				return nil
			}
			fmt.Fprintf(rt.out, "Name:  %s\n", sess.Name)
			if sess.Email != "" {
				fmt.Fprintf(rt.out, "Email: %s\n", sess.Email)
			}
			fmt.Fprintf(rt.out, "Role:  %s\n", roleLabel(sess.Role))
			fmt.Fprintf(rt.out, "ID:    %s\n", sess.UserID)
			return nil
		},
	}
}

// RegisterConfig holds configuration for the register commands
type RegisterConfig struct {
	Name           string
	Email          string
	Password       string
	PhotoURL       string
	Specialization string
}

// NewRegisterCmd creates the register command
func NewRegisterCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a patient or doctor account",
		Long: `Create a new MedLink account. Log in afterwards to start a session.

Available subcommands:
  patient     Register as a patient
  doctor      Register as a doctor

Examples:
  medlink register patient --name "Ayesha Khan" --email ayesha@example.com --password secret1
  medlink register doctor --name "Rahman" --email rahman@example.com --password secret1 --specialization Cardiology`,
	}

	cmd.AddCommand(newRegisterPatientCmd(rt))
	cmd.AddCommand(newRegisterDoctorCmd(rt))

	return cmd
}

func addRegisterFlags(cmd *cobra.Command, cfg *RegisterConfig) {
	cmd.Flags().StringVar(&cfg.Name, "name", "", "Full name")
	cmd.Flags().StringVar(&cfg.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&cfg.Password, "password", "", "Password (at least 6 characters)")
	cmd.Flags().StringVar(&cfg.PhotoURL, "photo-url", "", "Optional profile photo URL")
}

func newRegisterPatientCmd(rt *runtime) *cobra.Command {
	cfg := &RegisterConfig{}
	cmd := &cobra.Command{
		Use:   "patient",
		Short: "Register as a patient",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &api.RegisterPatientRequest{
				Name:     strings.TrimSpace(cfg.Name),
				Email:    strings.TrimSpace(cfg.Email),
				Password: cfg.Password,
				PhotoURL: strings.TrimSpace(cfg.PhotoURL),
			}
			var err error
			rt.spin("Creating account", func() { err = rt.app.RegisterPatient(cmd.Context(), req) })
			if err != nil {
				return userError(err, false)
			}
			fmt.Fprintln(rt.out, "Registration successful! Please log in with 'medlink login'.")
			return nil
		},
	}
	addRegisterFlags(cmd, cfg)
	return cmd
}

func newRegisterDoctorCmd(rt *runtime) *cobra.Command {
	cfg := &RegisterConfig{}
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Register as a doctor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &api.RegisterDoctorRequest{
				Name:           strings.TrimSpace(cfg.Name),
				Email:          strings.TrimSpace(cfg.Email),
				Password:       cfg.Password,
				Specialization: strings.TrimSpace(cfg.Specialization),
				PhotoURL:       strings.TrimSpace(cfg.PhotoURL),
			}
			var err error
			rt.spin("Creating account", func() { err = rt.app.RegisterDoctor(cmd.Context(), req) })
			if err != nil {
				return userError(err, false)
			}
			fmt.Fprintln(rt.out, "Registration successful! Please log in with 'medlink login --role doctor'.")
			return nil
		},
	}
	addRegisterFlags(cmd, cfg)
	cmd.Flags().StringVar(&cfg.Specialization, "specialization", "", "Medical specialization")
	return cmd
}
