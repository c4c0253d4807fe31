// Package remote is the HTTP client for the remote booking source. Every
// call carries a bounded timeout; a slow remote fails, it never hangs the
// caller.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	apperrors "booker/pkg/errors"
	"booker/pkg/model"
)

const DefaultTimeout = 5 * time.Second

type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		timeout: timeout,
		http:    &http.Client{Timeout: timeout},
	}
}

// Healthy probes GET /health. Any non-200 or transport failure means the
// remote is considered unavailable; there is no error to report.
func (c *Client) Healthy(ctx context.Context) bool {
	resp, err := c.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return false
	}
	return resp.status == http.StatusOK
}

func (c *Client) ListBookings(ctx context.Context) ([]model.Booking, error) {
	resp, err := c.do(ctx, http.MethodGet, "/bookings", nil)
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK {
		return nil, resp.asError("list bookings")
	}
	var bookings []model.Booking
	if err := json.Unmarshal(resp.body, &bookings); err != nil {
		return nil, apperrors.Network("malformed booking list from remote", err)
	}
	return bookings, nil
}

func (c *Client) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	resp, err := c.do(ctx, http.MethodGet, "/bookings/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	switch resp.status {
	case http.StatusOK:
		return resp.decodeBooking()
	case http.StatusNotFound:
		return nil, apperrors.NotFoundWithID("Booking", id)
	default:
		return nil, resp.asError("get booking")
	}
}

func (c *Client) CreateBooking(ctx context.Context, form model.BookingForm) (*model.Booking, error) {
	resp, err := c.do(ctx, http.MethodPost, "/bookings", form)
	if err != nil {
		return nil, err
	}
	switch resp.status {
	case http.StatusCreated:
		return resp.decodeBooking()
	case http.StatusConflict:
		return nil, apperrors.Conflict(resp.errorMessage("Time slot is already booked"), "time")
	case http.StatusBadRequest:
		return nil, apperrors.Validation(resp.errorMessage("remote rejected booking"), nil)
	default:
		return nil, resp.asError("create booking")
	}
}

func (c *Client) UpdateBooking(ctx context.Context, id string, patch model.BookingPatch) (*model.Booking, error) {
	resp, err := c.do(ctx, http.MethodPut, "/bookings/"+url.PathEscape(id), patch)
	if err != nil {
		return nil, err
	}
	switch resp.status {
	case http.StatusOK:
		return resp.decodeBooking()
	case http.StatusNotFound:
		return nil, apperrors.NotFoundWithID("Booking", id)
	case http.StatusConflict:
		return nil, apperrors.Conflict(resp.errorMessage("Time slot is already booked"), "time")
	case http.StatusBadRequest:
		return nil, apperrors.Validation(resp.errorMessage("remote rejected update"), nil)
	default:
		return nil, resp.asError("update booking")
	}
}

func (c *Client) DeleteBooking(ctx context.Context, id string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/bookings/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	switch resp.status {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return apperrors.NotFoundWithID("Booking", id)
	default:
		return resp.asError("delete booking")
	}
}

type availabilityRequest struct {
	Date             string `json:"date"`
	Time             string `json:"time"`
	Duration         int    `json:"duration"`
	ExcludeBookingID string `json:"excludeBookingId,omitempty"`
}

// CheckAvailability asks the remote for its verdict on a slot. The server
// side applies the same half-open interval rule against committed records,
// so it can veto a client-side "available".
func (c *Client) CheckAvailability(ctx context.Context, date, clock string, duration int, excludeID string) (bool, error) {
	resp, err := c.do(ctx, http.MethodPost, "/bookings/availability", availabilityRequest{
		Date:             date,
		Time:             clock,
		Duration:         duration,
		ExcludeBookingID: excludeID,
	})
	if err != nil {
		return false, err
	}
	if resp.status != http.StatusOK {
		return false, resp.asError("check availability")
	}
	var out struct {
		Available bool `json:"available"`
	}
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return false, apperrors.Network("malformed availability response", err)
	}
	return out.Available, nil
}

type response struct {
	status int
	body   []byte
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*response, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, apperrors.Internal("cannot encode request body", err)
		}
		reqBody = bytes.NewReader(data)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, apperrors.Internal("cannot build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.Timeout(fmt.Sprintf("remote did not respond within %s", c.timeout))
		}
		return nil, apperrors.Network("remote request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Network("cannot read remote response", err)
	}
	return &response{status: resp.StatusCode, body: data}, nil
}

func (r *response) decodeBooking() (*model.Booking, error) {
	var b model.Booking
	if err := json.Unmarshal(r.body, &b); err != nil {
		return nil, apperrors.Network("malformed booking from remote", err)
	}
	return &b, nil
}

// errorMessage extracts the remote's {"error": ...} payload, falling back
// to the given default.
func (r *response) errorMessage(fallback string) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(r.body, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return fallback
}

func (r *response) asError(op string) error {
	return apperrors.Network(fmt.Sprintf("%s failed: %s", op, r.errorMessage(http.StatusText(r.status))), nil)
}
