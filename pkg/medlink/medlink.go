// Package medlink wires the client together: the session store, the API
// client, the server-state cache and the views that read through them.
package medlink

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/OHshajim/MedLink/pkg/medlink/api"
	"github.com/OHshajim/MedLink/pkg/medlink/auth"
	apperrors "github.com/OHshajim/MedLink/pkg/medlink/errors"
	"github.com/OHshajim/MedLink/pkg/medlink/guard"
	"github.com/OHshajim/MedLink/pkg/medlink/query"
	"github.com/OHshajim/MedLink/pkg/medlink/validate"
	"github.com/OHshajim/MedLink/pkg/medlink/views"
)

// App is a signed-in (or anonymous) MedLink client
type App struct {
	Config  *Config
	Session *auth.Store
	API     *api.Client
	Cache   *query.Cache
	Metrics *query.Metrics

	notifier views.Notifier
	log      logr.Logger
}

// Config represents the client configuration
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	SessionStore string
	SessionPath  string
	CacheSize    int

	// Registry receives the cache metrics when set
	Registry prometheus.Registerer
	Logger   logr.Logger
	Notifier views.Notifier
}

// NewApp opens the credential store, restores any persisted session and
// builds the API client and cache around it.
func NewApp(ctx context.Context, cfg *Config) (*App, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	log := cfg.Logger
	if log.GetSink() == nil {
		log = logr.Discard()
	}

	backend, err := auth.NewCredentialStore(cfg.SessionStore, cfg.SessionPath)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeSessionStore, "failed to open session store", err)
	}

	app := &App{
		Config:   cfg,
		Session:  auth.NewStore(backend, auth.WithLogger(log)),
		Metrics:  query.NewMetrics(cfg.Registry),
		notifier: cfg.Notifier,
		log:      log.WithName("medlink"),
	}
	app.Session.Hydrate(ctx)

	app.Cache = query.New(
		query.WithSize(cfg.CacheSize),
		query.WithMetrics(app.Metrics),
		query.WithLogger(log),
	)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = api.DefaultTimeout
	}
	app.API = api.NewClient(cfg.BaseURL, app.Session.Token,
		api.WithHTTPClient(newHTTPClient(timeout)),
		api.WithUnauthorizedHook(app.sessionRejected),
		api.WithLogger(log),
	)

	return app, nil
}

// sessionRejected runs when the server answers 401
func (a *App) sessionRejected() {
	a.Session.Logout(context.Background())
	a.Cache.Reset()
}

// Deps returns the services views are built on
func (a *App) Deps() views.Deps {
	return views.Deps{
		API:      a.API,
		Cache:    a.Cache,
		Session:  a.Session,
		Notifier: a.notifier,
	}
}

// Navigate checks whether the current session may open path
func (a *App) Navigate(path string) guard.Decision {
	return guard.Navigate(a.Session.Current(), path)
}

// Login authenticates and starts a session. It returns the page to land on:
// from when the new role may open it, the role's dashboard otherwise.
func (a *App) Login(ctx context.Context, req *api.LoginRequest, from string) (string, error) {
	if err := validate.Struct(req); err != nil {
		return "", err
	}

	resp, err := a.API.Login(ctx, req)
	if err != nil {
		return "", err
	}

	if err := a.Session.Login(ctx, auth.IdentityFromUser(resp.User), resp.Token); err != nil {
		return "", err
	}
	// Nothing cached for a previous user may leak into this session
	a.Cache.Reset()

	a.log.V(1).Info("login complete", "role", resp.User.Role)
	return guard.ReturnPath(resp.User.Role, from), nil
}

// Logout ends the session and forgets everything read during it
func (a *App) Logout(ctx context.Context) {
	a.Session.Logout(ctx)
	a.Cache.Reset()
}

// RegisterPatient creates a patient account. The new account still has to log in.
func (a *App) RegisterPatient(ctx context.Context, req *api.RegisterPatientRequest) error {
	if err := validate.Struct(req); err != nil {
		return err
	}
	return a.API.RegisterPatient(ctx, req)
}

// RegisterDoctor creates a doctor account. The new account still has to log in.
func (a *App) RegisterDoctor(ctx context.Context, req *api.RegisterDoctorRequest) error {
	if err := validate.Struct(req); err != nil {
		return err
	}
	if err := a.API.RegisterDoctor(ctx, req); err != nil {
		return err
	}
	// A new doctor may bring a new specialization
	a.Cache.Invalidate(query.ResourceSpecializations)
	a.Cache.Invalidate(query.ResourceDoctors)
	return nil
}

// Close releases the credential store
func (a *App) Close() error {
	return a.Session.Close()
}

// DefaultConfig returns the default configuration from environment variables
func DefaultConfig() *Config {
	timeout := api.DefaultTimeout
	if t := os.Getenv("MEDLINK_API_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}
	cacheSize := query.DefaultSize
	if s := os.Getenv("MEDLINK_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			cacheSize = n
		}
	}

	return &Config{
		BaseURL:      getEnvOrDefault("MEDLINK_API_URL", api.DefaultBaseURL),
		Timeout:      timeout,
		SessionStore: getEnvOrDefault("MEDLINK_SESSION_STORE", auth.StoreFile),
		SessionPath:  os.Getenv("MEDLINK_SESSION_PATH"),
		CacheSize:    cacheSize,
		Logger:       logr.Discard(),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func newHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 10
	return &http.Client{Timeout: timeout, Transport: transport}
}
