package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"

	apperrors "github.com/OHshajim/MedLink/pkg/medlink/errors"
	"github.com/OHshajim/MedLink/pkg/medlink/paging"
	"github.com/OHshajim/MedLink/pkg/medlink/validate"
)

const (
	DefaultBaseURL = "https://appointment-manager-node.onrender.com/api/v1"
	DefaultTimeout = 30 * time.Second

	// DoctorPageSize is the number of doctors shown per directory page
	DoctorPageSize = 6

	maxResponseBytes = 4 << 20

	loginPath = "/auth/login"
)

// Client implements Service over HTTP. Every request carries the current
// credential as a bearer token when one is held.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	tokenFunc      func() string
	onUnauthorized func()
	log            logr.Logger
}

var _ Service = (*Client)(nil)

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithUnauthorizedHook registers fn to run whenever the server answers 401
func WithUnauthorizedHook(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// WithLogger sets the logger used for request tracing
func WithLogger(log logr.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient creates a new Client. tokenFunc returns the current credential,
// or "" when there is none.
func NewClient(baseURL string, tokenFunc func() string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		tokenFunc:  tokenFunc,
		log:        logr.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithName("api")
	return c
}

func (c *Client) addAuthHeaders(req *http.Request) {
	if c.tokenFunc != nil {
		if token := c.tokenFunc(); token != "" {
			req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
		}
	}
}

func (c *Client) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	body, err := c.do(ctx, http.MethodPost, loginPath, nil, req)
	if err != nil {
		return nil, err
	}

	var resp LoginResponse
	if err := decodeUnwrapped(body, "token", &resp); err != nil {
		return nil, err
	}
	if err := checkResponse(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) RegisterPatient(ctx context.Context, req *RegisterPatientRequest) error {
	_, err := c.do(ctx, http.MethodPost, "/auth/register/patient", nil, req)
	return err
}

func (c *Client) RegisterDoctor(ctx context.Context, req *RegisterDoctorRequest) error {
	_, err := c.do(ctx, http.MethodPost, "/auth/register/doctor", nil, req)
	return err
}

func (c *Client) Specializations(ctx context.Context) ([]string, error) {
	body, err := c.do(ctx, http.MethodGet, "/specializations", nil, nil)
	if err != nil {
		return nil, err
	}

	// Either a bare array or {"data": [...]}
	var list []string
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Data []string `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeDecode, "failed to decode specializations", err)
	}
	if wrapped.Data == nil {
		return []string{}, nil
	}
	return wrapped.Data, nil
}

func (c *Client) Doctors(ctx context.Context, q DoctorQuery) (*paging.Page[Doctor], error) {
	if q.Limit == 0 {
		q.Limit = DoctorPageSize
	}
	params := url.Values{}
	setInt(params, "page", q.Page)
	setInt(params, "limit", q.Limit)
	setString(params, "search", q.Search)
	setString(params, "specialization", q.Specialization)

	body, err := c.do(ctx, http.MethodGet, "/doctors", params, nil)
	if err != nil {
		return nil, err
	}
	return decodePage[Doctor](body, "doctors")
}

func (c *Client) CreateAppointment(ctx context.Context, req *CreateAppointmentRequest) (*Appointment, error) {
	body, err := c.do(ctx, http.MethodPost, "/appointments", nil, req)
	if err != nil {
		return nil, err
	}

	var appt Appointment
	if err := decodeUnwrapped(body, "id", &appt); err != nil {
		return nil, err
	}
	if err := checkResponse(&appt); err != nil {
		return nil, err
	}
	return &appt, nil
}

func (c *Client) PatientAppointments(ctx context.Context, q AppointmentQuery) (*paging.Page[Appointment], error) {
	params := url.Values{}
	setString(params, "status", string(q.Status))
	setInt(params, "page", q.Page)

	body, err := c.do(ctx, http.MethodGet, "/appointments/patient", params, nil)
	if err != nil {
		return nil, err
	}
	return decodePage[Appointment](body, "patient appointments")
}

func (c *Client) DoctorAppointments(ctx context.Context, q AppointmentQuery) (*paging.Page[Appointment], error) {
	params := url.Values{}
	setString(params, "status", string(q.Status))
	setString(params, "date", q.Date)
	setInt(params, "page", q.Page)

	body, err := c.do(ctx, http.MethodGet, "/appointments/doctor", params, nil)
	if err != nil {
		return nil, err
	}
	return decodePage[Appointment](body, "doctor appointments")
}

func (c *Client) UpdateStatus(ctx context.Context, req *UpdateStatusRequest) error {
	_, err := c.do(ctx, http.MethodPatch, "/appointments/update-status", nil, req)
	return err
}

// do sends one request and returns the raw body of a 2xx response. It never retries.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, in any) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, apperrors.New(apperrors.ErrCodeTransport, "failed to marshal request", err)
		}
		reqBody = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeTransport, "failed to create request", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	c.addAuthHeaders(httpReq)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.log.V(1).Info("request failed", "method", method, "path", path, "error", err.Error())
		return nil, apperrors.New(apperrors.ErrCodeTransport, "Unable to reach the server", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, apperrors.NewWithStatus(apperrors.ErrCodeTransport, "failed to read response", resp.StatusCode, err)
	}

	c.log.V(1).Info("request", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	switch {
	case resp.StatusCode == http.StatusUnauthorized && path == loginPath:
		// Rejected credentials, not an expired session
		return nil, apperrors.NewWithStatus(apperrors.ErrCodeRequest,
			serverMessage(body, "Invalid email or password"), resp.StatusCode, nil)
	case resp.StatusCode == http.StatusUnauthorized:
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return nil, apperrors.NewWithStatus(apperrors.ErrCodeUnauthorized,
			serverMessage(body, "Your session has expired, please sign in again"), resp.StatusCode, nil)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, apperrors.NewWithStatus(apperrors.ErrCodeRequest,
			serverMessage(body, apperrors.GenericMessage), resp.StatusCode, nil)
	}

	return body, nil
}

// serverMessage extracts {"message": "..."} (or {"error": "..."}) from an error body
func serverMessage(body []byte, fallback string) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return fallback
	}
	if payload.Message != "" {
		return payload.Message
	}
	if payload.Error != "" {
		return payload.Error
	}
	return fallback
}

// decodeUnwrapped decodes body into out. When body lacks probe at the top level
// but has a "data" object, that object is decoded instead.
func decodeUnwrapped(body []byte, probe string, out any) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return apperrors.New(apperrors.ErrCodeDecode, "failed to decode response", err)
	}
	if _, ok := fields[probe]; !ok {
		if inner, ok := fields["data"]; ok {
			body = inner
		}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperrors.New(apperrors.ErrCodeDecode, "failed to decode response", err)
	}
	return nil
}

func decodePage[T any](body []byte, what string) (*paging.Page[T], error) {
	var page paging.Page[T]
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeDecode, fmt.Sprintf("failed to decode %s", what), err)
	}
	for i := range page.Data {
		if err := checkResponse(&page.Data[i]); err != nil {
			return nil, err
		}
	}
	return &page, nil
}

func checkResponse(v any) error {
	if err := validate.Validator().Struct(v); err != nil {
		return apperrors.New(apperrors.ErrCodeInvalidResponse, "server returned a malformed response", err)
	}
	return nil
}

func setInt(params url.Values, key string, v int) {
	if v > 0 {
		params.Set(key, strconv.Itoa(v))
	}
}

func setString(params url.Values, key, v string) {
	if v = strings.TrimSpace(v); v != "" {
		params.Set(key, v)
	}
}
