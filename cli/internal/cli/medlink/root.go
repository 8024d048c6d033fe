package medlink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/OHshajim/MedLink/internal/config"
	"github.com/OHshajim/MedLink/internal/logging"
	"github.com/OHshajim/MedLink/pkg/medlink"
)

// runtime is the state shared by every subcommand of one invocation
type runtime struct {
	v   *viper.Viper
	cfg *config.Config
	app *medlink.App
	log logr.Logger

	out         io.Writer
	errOut      io.Writer
	interactive bool
}

// Execute runs the medlink command line with os.Args and releases the
// session store whatever the outcome
func Execute(ctx context.Context) error {
	cmd, rt := newRootCmd()
	defer rt.close()
	return cmd.ExecuteContext(ctx)
}

// NewMedlinkCmd creates the root medlink command
func NewMedlinkCmd() *cobra.Command {
	cmd, _ := newRootCmd()
	return cmd
}

func newRootCmd() (*cobra.Command, *runtime) {
	rt := &runtime{v: viper.New(), log: logr.Discard()}

	cmd := &cobra.Command{
		Use:   "medlink",
		Short: "Book and manage doctor appointments",
		Long: `medlink is a command line client for the MedLink appointment service.

Patients browse doctors, book appointments and cancel them. Doctors review
their appointments and mark them completed or cancelled. The session is kept
between runs until you log out or it expires.

Settings are read from the config file, then MEDLINK_* environment variables
(for example MEDLINK_API_BASE_URL or MEDLINK_SESSION_STORE), then flags.

Available subcommands:
  login            Log in as a patient or a doctor
  logout           End the current session
  whoami           Show the current session
  register         Create a patient or doctor account
  specializations  List doctor specializations
  doctors          Browse the doctor directory
  book             Book an appointment with a doctor
  appointments     List your appointments (patients)
  cancel           Cancel one of your appointments (patients)
  doctor           Manage your appointments (doctors)
  open             Check whether the current session may open a page
  config           Manage the configuration file

Examples:
  medlink login --email ayesha@example.com --role patient --password-stdin
  medlink doctors --specialization Cardiology
  medlink book 6512bd43d9caa6e02c990b0a --date 2026-10-20 --time 10:30
  medlink doctor appointments --today`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return rt.init(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return rt.close()
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("config", "", "Path to the config file (default: <user config dir>/medlink/config.yaml)")
	flags.String("api-url", "", "Base URL of the MedLink API")
	flags.Duration("timeout", 0, "Timeout of a single API request")
	flags.String("session-store", "", "Where the session is kept: file, sqlite or memory")
	flags.String("session-path", "", "Location of the session file or database")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.String("log-format", "", "Log format: console or json")
	flags.Bool("no-color", false, "Disable colored output")
	rt.bindFlags(flags)

	cmd.AddCommand(NewLoginCmd(rt))
	cmd.AddCommand(NewLogoutCmd(rt))
	cmd.AddCommand(NewWhoamiCmd(rt))
	cmd.AddCommand(NewRegisterCmd(rt))
	cmd.AddCommand(NewSpecializationsCmd(rt))
	cmd.AddCommand(NewDoctorsCmd(rt))
	cmd.AddCommand(NewBookCmd(rt))
	cmd.AddCommand(NewAppointmentsCmd(rt))
	cmd.AddCommand(NewCancelCmd(rt))
	cmd.AddCommand(NewDoctorCmd(rt))
	cmd.AddCommand(NewOpenCmd(rt))
	cmd.AddCommand(NewConfigCmd(rt))

	return cmd, rt
}

// bindFlags maps flags onto config keys. Environment variables use the
// MEDLINK_ prefix with dots replaced by underscores.
func (rt *runtime) bindFlags(flags *pflag.FlagSet) {
	bindings := map[string]string{
		"api.base_url":  "api-url",
		"api.timeout":   "timeout",
		"session.store": "session-store",
		"session.path":  "session-path",
		"log.level":     "log-level",
		"log.format":    "log-format",
		"config":        "config",
		"no_color":      "no-color",
	}
	for key, name := range bindings {
		_ = rt.v.BindPFlag(key, flags.Lookup(name))
	}
	rt.v.SetEnvPrefix("MEDLINK")
	rt.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	rt.v.AutomaticEnv()
}

// configPath returns the config file to read and whether it was asked for explicitly
func (rt *runtime) configPath() (string, bool, error) {
	if p := rt.v.GetString("config"); p != "" {
		return p, true, nil
	}
	p, err := config.DefaultPath()
	return p, false, err
}

// loadConfig reads the config file and applies environment and flag
// overrides. A missing default file is not an error; a missing explicit one
// is, unless allowMissing is set.
func (rt *runtime) loadConfig(allowMissing bool) (*config.Config, error) {
	path, explicit, err := rt.configPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	cfg, err := config.LoadConfig(path)
	switch {
	case err == nil:
	case (allowMissing || !explicit) && errors.Is(err, fs.ErrNotExist):
		cfg = config.DefaultConfig()
	default:
		return nil, err
	}

	if s := rt.v.GetString("api.base_url"); s != "" {
		cfg.API.BaseURL = s
	}
	if d := rt.v.GetDuration("api.timeout"); d > 0 {
		cfg.API.Timeout = d
	}
	if s := rt.v.GetString("session.store"); s != "" {
		cfg.Session.Store = s
	}
	if s := rt.v.GetString("session.path"); s != "" {
		cfg.Session.Path = s
	}
	if s := rt.v.GetString("log.level"); s != "" {
		cfg.Log.Level = s
	}
	if s := rt.v.GetString("log.format"); s != "" {
		cfg.Log.Format = s
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (rt *runtime) init(cmd *cobra.Command) error {
	rt.out = cmd.OutOrStdout()
	rt.errOut = cmd.ErrOrStderr()
	if rt.v.GetBool("no_color") {
		color.NoColor = true
	}
	rt.interactive = !color.NoColor && rt.errOut == os.Stderr

	cfg, err := rt.loadConfig(!needsApp(cmd))
	if err != nil {
		return err
	}
	rt.cfg = cfg

	log, err := logging.New(rt.errOut, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	rt.log = log.WithName("cli")
	ctx := logr.NewContext(cmd.Context(), log)
	cmd.SetContext(ctx)

	// config subcommands work without a usable session store
	if !needsApp(cmd) {
		return nil
	}

	app, err := medlink.NewApp(ctx, &medlink.Config{
		BaseURL:      cfg.API.BaseURL,
		Timeout:      cfg.API.Timeout,
		SessionStore: cfg.Session.Store,
		SessionPath:  cfg.Session.Path,
		CacheSize:    cfg.Cache.Size,
		Logger:       log,
		Notifier:     &printer{w: rt.out},
	})
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	rt.app = app
	return nil
}

func (rt *runtime) close() error {
	if rt.app == nil {
		return nil
	}
	err := rt.app.Close()
	rt.app = nil
	return err
}

const skipAppAnnotation = "medlink/no-app"

func needsApp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if _, ok := c.Annotations[skipAppAnnotation]; ok {
			return false
		}
	}
	return true
}
