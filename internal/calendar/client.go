package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/chatrdv/platform/pkg/logging"
)

const (
	defaultBaseURL = "https://www.googleapis.com/calendar/v3"
	defaultTimeout = 20 * time.Second
)

// tokenProvider abstracts the OAuth flow from the API client.
type tokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// EventRequest describes an event to create.
type EventRequest struct {
	Summary         string
	Description     string
	Start           time.Time
	DurationMinutes int
	AttendeeEmail   string
	Timezone        string
}

// Event is the subset of calendar event fields the platform reads back.
type Event struct {
	ID      string    `json:"id"`
	Summary string    `json:"summary"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Status  string    `json:"status"`
}

// Client talks to the external calendar REST API on behalf of one tenant's
// service account.
type Client struct {
	baseURL    string
	tokens     tokenProvider
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient returns an API client. tokens may be nil, in which case the
// client reports itself unconfigured and every call fails fast.
func NewClient(tokens tokenProvider, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL:    defaultBaseURL,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
}

// IsConfigured reports whether the client can authenticate at all.
func (c *Client) IsConfigured() bool {
	return c != nil && c.tokens != nil
}

type eventTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone,omitempty"`
}

type reminderOverride struct {
	Method  string `json:"method"`
	Minutes int    `json:"minutes"`
}

type eventPayload struct {
	Summary     string     `json:"summary"`
	Description string     `json:"description,omitempty"`
	Start       eventTime  `json:"start"`
	End         eventTime  `json:"end"`
	Attendees   []attendee `json:"attendees,omitempty"`
	Reminders   struct {
		UseDefault bool               `json:"useDefault"`
		Overrides  []reminderOverride `json:"overrides"`
	} `json:"reminders"`
}

type attendee struct {
	Email string `json:"email"`
}

// CreateEvent inserts an event and returns the upstream event ID. Default
// reminders are replaced with an email a day ahead and a popup an hour ahead.
func (c *Client) CreateEvent(ctx context.Context, calendarID string, req EventRequest) (string, error) {
	if !c.IsConfigured() {
		return "", fmt.Errorf("calendar: client not configured")
	}
	if req.DurationMinutes <= 0 {
		req.DurationMinutes = 60
	}

	payload := eventPayload{
		Summary:     req.Summary,
		Description: req.Description,
		Start:       eventTime{DateTime: req.Start.Format(time.RFC3339), TimeZone: req.Timezone},
		End: eventTime{
			DateTime: req.Start.Add(time.Duration(req.DurationMinutes) * time.Minute).Format(time.RFC3339),
			TimeZone: req.Timezone,
		},
	}
	if req.AttendeeEmail != "" {
		payload.Attendees = []attendee{{Email: req.AttendeeEmail}}
	}
	payload.Reminders.UseDefault = false
	payload.Reminders.Overrides = []reminderOverride{
		{Method: "email", Minutes: 24 * 60},
		{Method: "popup", Minutes: 60},
	}

	var out struct {
		ID string `json:"id"`
	}
	path := fmt.Sprintf("/calendars/%s/events", url.PathEscape(calendarID))
	if err := c.do(ctx, http.MethodPost, path, nil, payload, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("calendar: create event returned empty id")
	}
	return out.ID, nil
}

// GetEvents lists confirmed events overlapping [start, end).
func (c *Client) GetEvents(ctx context.Context, calendarID string, start, end time.Time) ([]Event, error) {
	if !c.IsConfigured() {
		return nil, fmt.Errorf("calendar: client not configured")
	}

	query := url.Values{
		"timeMin":      {start.Format(time.RFC3339)},
		"timeMax":      {end.Format(time.RFC3339)},
		"singleEvents": {"true"},
		"orderBy":      {"startTime"},
	}

	var out struct {
		Items []struct {
			ID      string    `json:"id"`
			Summary string    `json:"summary"`
			Status  string    `json:"status"`
			Start   eventTime `json:"start"`
			End     eventTime `json:"end"`
		} `json:"items"`
	}
	path := fmt.Sprintf("/calendars/%s/events", url.PathEscape(calendarID))
	if err := c.do(ctx, http.MethodGet, path, query, nil, &out); err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(out.Items))
	for _, item := range out.Items {
		if item.Status == "cancelled" {
			continue
		}
		startAt, err := time.Parse(time.RFC3339, item.Start.DateTime)
		if err != nil {
			continue
		}
		endAt, err := time.Parse(time.RFC3339, item.End.DateTime)
		if err != nil {
			continue
		}
		events = append(events, Event{
			ID:      item.ID,
			Summary: item.Summary,
			Start:   startAt,
			End:     endAt,
			Status:  item.Status,
		})
	}
	return events, nil
}

// HasEventsBetween reports whether any confirmed event overlaps the range.
func (c *Client) HasEventsBetween(ctx context.Context, calendarID string, start, end time.Time) (bool, error) {
	events, err := c.GetEvents(ctx, calendarID, start, end)
	if err != nil {
		return false, err
	}
	return len(events) > 0, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("calendar: acquire token: %w", err)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("calendar: marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("calendar: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calendar: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("calendar: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(respBody)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		return fmt.Errorf("calendar: status %d: %s", resp.StatusCode, msg)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("calendar: unmarshal response: %w", err)
		}
	}
	return nil
}
