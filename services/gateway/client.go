// Package gateway is the thin, retrying client for the club's booking
// backend: read user profiles, read available hours, submit bookings. All
// retry, backoff and fallback-payload logic lives here and nowhere else.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"courtside/models"
)

const confirmEndpoint = "/confirm_booking"

// ErrSlotTaken is the application-level conflict: the backend accepted the
// request but the slot is no longer available. Never retried blindly; the
// caller must re-fetch options.
var ErrSlotTaken = errors.New("slot already taken")

// APIError is a non-2xx backend response.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Body)
}

// UserProfile is the backend's view of a user looked up by phone.
type UserProfile struct {
	Found    bool   `json:"found"`
	Name     string `json:"name"`
	LastName string `json:"last_name,omitempty"`
	ID       string `json:"id,omitempty"`
}

// BookingRequest carries everything the confirm endpoint needs.
type BookingRequest struct {
	Phone         string
	Date          string
	Times         []string
	Court         string
	Sport         string
	UserType      string
	Name          string
	LastName      string
	BackendUserID string
}

type bookingPayload struct {
	Phone    string   `json:"phone"`
	Date     string   `json:"date"`
	Time     []string `json:"time"`
	Court    string   `json:"court"`
	Sport    string   `json:"sport"`
	UserType string   `json:"user_type"`
	Name     string   `json:"name,omitempty"`
	LastName string   `json:"last_name,omitempty"`
	User     string   `json:"user,omitempty"`
}

type hoursResponse struct {
	Hours []models.Slot `json:"hours"`
}

type resultEnvelope struct {
	Error string `json:"error"`
}

// Client wraps the backend's REST surface. Fields are set once in main;
// tests shorten Backoff.
type Client struct {
	BaseURL     string
	HTTP        *http.Client
	Logger      *zap.Logger
	MaxAttempts int
	Backoff     time.Duration
}

// NewClient normalizes the base URL to end beneath the workflow path segment
// and disables the transport's automatic redirect following: redirects are
// handled manually, exactly once.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	base := strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(base, "/workflow") {
		base += "/workflow"
	}
	return &Client{
		BaseURL: base,
		HTTP: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		Logger:      logger,
		MaxAttempts: 3,
		Backoff:     500 * time.Millisecond,
	}
}

// GetUser fetches the backend profile for a phone number.
func (c *Client) GetUser(ctx context.Context, phone string) (*UserProfile, error) {
	endpoint := fmt.Sprintf("%s/get_user?phone=%s", c.BaseURL, url.QueryEscape(phone))
	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	var profile UserProfile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("failed to decode user profile: %w", err)
	}
	return &profile, nil
}

// GetHours fetches the raw availability for (sport, date). currentHour lets
// the backend filter out already-started slots when the date is today.
func (c *Client) GetHours(ctx context.Context, sport, date string, currentHour int) ([]models.Slot, error) {
	endpoint := fmt.Sprintf("%s/get_hours?sport=%s&date=%s&current_time_number=%d",
		c.BaseURL, url.QueryEscape(sport), url.QueryEscape(NormalizeDate(date)), currentHour)
	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	var resp hoursResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode hours: %w", err)
	}
	return resp.Hours, nil
}

// ConfirmBooking submits a booking. A "slot taken" signal inside a 2xx
// envelope becomes ErrSlotTaken and is never retried with a fallback payload.
// A transport failure is retried once more with a reduced payload (backend
// user id omitted) before being surfaced as a hard failure.
func (c *Client) ConfirmBooking(ctx context.Context, req BookingRequest) error {
	endpoint := c.BaseURL + confirmEndpoint

	body, err := c.do(ctx, http.MethodPost, endpoint, c.payload(req, true))
	if err == nil {
		return parseBookingResult(body)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
		return err
	}
	if req.BackendUserID == "" {
		return err
	}

	c.Logger.Warn("booking submission failed, retrying once with reduced payload",
		zap.String("phone", req.Phone), zap.Error(err))
	body, err = c.doOnce(ctx, http.MethodPost, endpoint, c.payload(req, false))
	if err != nil {
		return err
	}
	return parseBookingResult(body)
}

func (c *Client) payload(req BookingRequest, includeUser bool) []byte {
	p := bookingPayload{
		Phone:    req.Phone,
		Date:     NormalizeDate(req.Date),
		Time:     req.Times,
		Court:    req.Court,
		Sport:    req.Sport,
		UserType: req.UserType,
		Name:     req.Name,
		LastName: req.LastName,
	}
	if includeUser {
		p.User = req.BackendUserID
	}
	data, _ := json.Marshal(p)
	return data
}

func parseBookingResult(body []byte) error {
	var env resultEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("failed to decode booking result: %w", err)
	}
	if env.Error == "" {
		return nil
	}
	msg := strings.ToLower(env.Error)
	if strings.Contains(msg, "taken") || strings.Contains(msg, "ocupad") {
		return ErrSlotTaken
	}
	return fmt.Errorf("booking rejected: %s", env.Error)
}

// do performs the request with up to MaxAttempts tries, doubling backoff,
// retrying transport failures and 5xx responses only. 4xx responses surface
// immediately.
func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < c.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.Backoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		body, status, err := c.roundTrip(ctx, method, endpoint, payload, true)
		if err != nil {
			lastErr = err
			c.Logger.Warn("backend request failed",
				zap.String("endpoint", endpoint), zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}
		if status >= 500 {
			lastErr = &APIError{Status: status, Body: string(body)}
			c.Logger.Warn("backend returned server error",
				zap.String("endpoint", endpoint), zap.Int("status", status), zap.Int("attempt", attempt+1))
			continue
		}
		if status >= 400 {
			return nil, &APIError{Status: status, Body: string(body)}
		}
		return body, nil
	}
	return nil, fmt.Errorf("backend unreachable after %d attempts: %w", c.MaxAttempts, lastErr)
}

// doOnce performs a single attempt with no retry loop. Used for the reduced-
// payload booking fallback, which is tried exactly once.
func (c *Client) doOnce(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	body, status, err := c.roundTrip(ctx, method, endpoint, payload, true)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, &APIError{Status: status, Body: string(body)}
	}
	return body, nil
}

// roundTrip performs one HTTP exchange, following a 3xx redirect exactly once.
func (c *Client) roundTrip(ctx context.Context, method, endpoint string, payload []byte, followRedirect bool) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response: %w", err)
	}

	if followRedirect && resp.StatusCode >= 300 && resp.StatusCode < 400 {
		loc := resp.Header.Get("Location")
		if loc != "" {
			target, err := resp.Request.URL.Parse(loc)
			if err != nil {
				return nil, 0, fmt.Errorf("invalid redirect location %q: %w", loc, err)
			}
			return c.roundTrip(ctx, method, target.String(), payload, false)
		}
	}

	return body, resp.StatusCode, nil
}

// NormalizeDate expands a bare calendar date to midnight UTC; datetime
// strings pass through unchanged.
func NormalizeDate(date string) string {
	if len(date) == len("2006-01-02") {
		if _, err := time.Parse("2006-01-02", date); err == nil {
			return date + "T00:00:00Z"
		}
	}
	return date
}
