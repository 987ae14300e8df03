package hyperiot

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"

	"github.com/HyperIoT-Labs/HyperIoT-DS/internal/observability"
)

const (
	projectsPath = "/hyperiot/hprojects/all/cards"
	devicesPath  = "/hyperiot/hdevices/all/"
	packetsPath  = "/hyperiot/hpackets/all/"
)

// ErrMalformedResponse is returned when the platform answers 2xx with a body
// that lacks the fields this client needs.
var ErrMalformedResponse = errors.New("malformed hyperiot response")

// StatusError is a non-2xx answer from the platform.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("hyperiot returned status %d", e.Status)
	}
	return fmt.Sprintf("hyperiot returned status %d: %s", e.Status, e.Body)
}

// IsAuthFailure reports whether err is a 401/403 from the platform.
func IsAuthFailure(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.Status == http.StatusUnauthorized || se.Status == http.StatusForbidden
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

type options struct {
	timeout            time.Duration
	insecureSkipVerify bool
	httpClient         *http.Client
}

type Option func(*options)

// WithTimeout bounds each request. Zero disables the timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithInsecureSkipVerify disables TLS certificate validation.
func WithInsecureSkipVerify(skip bool) Option {
	return func(o *options) { o.insecureSkipVerify = skip }
}

// WithHTTPClient replaces the underlying client; timeout and TLS options are ignored.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

func New(baseURL string, opts ...Option) *Client {
	o := options{timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	hc := o.httpClient
	if hc == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if o.insecureSkipVerify {
			slog.Warn("hyperiot TLS certificate validation disabled", "base_url", baseURL)
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- opt-in via config
		}
		hc = &http.Client{Timeout: o.timeout, Transport: transport}
	}

	return &Client{baseURL: baseURL, httpClient: hc}
}

// ListProjects fetches the project cards visible to the token. Only the
// first page the platform returns is read.
func (c *Client) ListProjects(ctx context.Context, token string) ([]Project, error) {
	body, err := c.get(ctx, "list_projects", projectsPath, token)
	if err != nil {
		return nil, err
	}
	return decodeProjects(body)
}

// ListDevices returns the devices of a project exactly as the platform sent them.
func (c *Client) ListDevices(ctx context.Context, token string, id ProjectID) (json.RawMessage, error) {
	return c.getRaw(ctx, "list_devices", devicesPath+url.PathEscape(id.String()), token)
}

// ListPackets returns the packets of a project exactly as the platform sent them.
func (c *Client) ListPackets(ctx context.Context, token string, id ProjectID) (json.RawMessage, error) {
	return c.getRaw(ctx, "list_packets", packetsPath+url.PathEscape(id.String()), token)
}

func (c *Client) getRaw(ctx context.Context, op, path, token string) (json.RawMessage, error) {
	body, err := c.get(ctx, op, path, token)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: %s body is not JSON", ErrMalformedResponse, op)
	}
	return json.RawMessage(body), nil
}

func (c *Client) get(ctx context.Context, op, path, token string) ([]byte, error) {
	ctx, span := otel.Tracer("hyperiot").Start(ctx, "hyperiot "+op)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", http.MethodGet),
		attribute.String("http.target", path),
	)

	start := time.Now()
	status := "error"
	defer func() {
		observability.ObserveUpstream(op, status, time.Since(start))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", token)
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	status = strconv.Itoa(resp.StatusCode)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: reading body: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		span.SetStatus(codes.Error, status)
		slog.Debug("hyperiot request failed", "op", op, "status", resp.StatusCode)
		return nil, fmt.Errorf("%s: %w", op, &StatusError{Status: resp.StatusCode, Body: string(body)})
	}
	return body, nil
}
