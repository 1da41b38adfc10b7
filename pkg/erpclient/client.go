// Package erpclient talks to the school ERP REST API. Responses are mapped
// into internal/models types at this boundary; callers never see the ERP's
// loosely typed shapes.
package erpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitution-api/internal/models"
)

const maxErrorBody = 512

// Observer receives timing for every upstream call.
type Observer interface {
	ObserveUpstreamCall(operation string, status int, duration time.Duration)
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
	Observer   Observer
}

// Client is a thin, stateless ERP API client. It is safe for concurrent use.
type Client struct {
	baseURL  string
	http     *http.Client
	logger   *zap.Logger
	observer Observer
}

// New builds a Client.
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		http:     httpClient,
		logger:   logger,
		observer: opts.Observer,
	}
}

type tokenKey struct{}

// WithToken attaches the operator's bearer token to ctx. Calls made with a
// ctx lacking a token are sent without an Authorization header.
func WithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFrom returns the bearer token carried by ctx.
func TokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// StatusError is returned when the ERP answers with a non-2xx status.
type StatusError struct {
	Operation string
	Status    int
	Message   string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("erp %s: status %d: %s", e.Operation, e.Status, e.Message)
	}
	return fmt.Sprintf("erp %s: status %d", e.Operation, e.Status)
}

// IsNotFound reports whether err is an ERP 404.
func IsNotFound(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Status == http.StatusNotFound
}

// ListTeachers returns the teacher roster.
func (c *Client) ListTeachers(ctx context.Context) ([]models.Teacher, error) {
	var raw []rawTeacher
	if err := c.do(ctx, "list_teachers", http.MethodGet, "/teachers", nil, nil, &raw); err != nil {
		return nil, err
	}
	return adaptTeachers(raw), nil
}

// ListPeriods returns the daily period definitions.
func (c *Client) ListPeriods(ctx context.Context) ([]models.Period, error) {
	var raw []rawPeriod
	if err := c.do(ctx, "list_periods", http.MethodGet, "/periods", nil, nil, &raw); err != nil {
		return nil, err
	}
	return adaptPeriods(raw), nil
}

// ListHolidays returns every known holiday.
func (c *Client) ListHolidays(ctx context.Context) ([]models.Holiday, error) {
	var raw []rawHoliday
	if err := c.do(ctx, "list_holidays", http.MethodGet, "/holidays", nil, nil, &raw); err != nil {
		return nil, err
	}
	return adaptHolidays(raw), nil
}

// TeacherTimetable returns the timetable rows of one teacher.
func (c *Client) TeacherTimetable(ctx context.Context, teacherID int64) ([]models.TimetableRecord, error) {
	path := "/timetable/teacher/" + strconv.FormatInt(teacherID, 10)
	var raw []rawTimetableEntry
	if err := c.do(ctx, "teacher_timetable", http.MethodGet, path, nil, nil, &raw); err != nil {
		return nil, err
	}
	return adaptTimetable(raw, teacherID), nil
}

// SubstitutionsByDate returns every substitution recorded for date.
func (c *Client) SubstitutionsByDate(ctx context.Context, date string) ([]models.SubstitutionAssignment, error) {
	query := url.Values{"date": {date}}
	var raw []rawSubstitution
	if err := c.do(ctx, "substitutions_by_date", http.MethodGet, "/substitutions", query, nil, &raw); err != nil {
		return nil, err
	}
	return adaptSubstitutions(raw, date), nil
}

// AvailableTeachers returns teachers without a class at (date, periodID).
func (c *Client) AvailableTeachers(ctx context.Context, date string, periodID int64) ([]models.Teacher, error) {
	query := url.Values{
		"date":     {date},
		"periodId": {strconv.FormatInt(periodID, 10)},
	}
	var raw []rawTeacher
	if err := c.do(ctx, "available_teachers", http.MethodGet, "/substitutions/available-teachers", query, nil, &raw); err != nil {
		return nil, err
	}
	return adaptTeachers(raw), nil
}

// TeacherWorkload returns the weekly and per-day load of a teacher.
func (c *Client) TeacherWorkload(ctx context.Context, teacherID int64) (*models.TeacherWorkload, error) {
	path := "/teachers/" + strconv.FormatInt(teacherID, 10) + "/workload"
	var raw rawWorkload
	if err := c.do(ctx, "teacher_workload", http.MethodGet, path, nil, nil, &raw); err != nil {
		return nil, err
	}
	workload := raw.toModel(teacherID)
	return &workload, nil
}

// UpsertSubstitution creates or updates a substitution. The ERP decides
// which; the returned record carries its canonical id.
func (c *Client) UpsertSubstitution(ctx context.Context, a models.SubstitutionAssignment) (*models.SubstitutionAssignment, error) {
	payload := newUpsertPayload(a)
	var raw rawSubstitution
	if err := c.do(ctx, "upsert_substitution", http.MethodPost, "/substitutions", nil, payload, &raw); err != nil {
		return nil, err
	}
	saved := raw.merge(a)
	return &saved, nil
}

// DeleteSubstitution removes a persisted substitution. A 404 surfaces as a
// StatusError; see IsNotFound.
func (c *Client) DeleteSubstitution(ctx context.Context, id int64) error {
	path := "/substitutions/" + strconv.FormatInt(id, 10)
	return c.do(ctx, "delete_substitution", http.MethodDelete, path, nil, nil, nil)
}

func (c *Client) do(ctx context.Context, operation, method, path string, query url.Values, body, dest interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("erp %s: encode body: %w", operation, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("erp %s: build request: %w", operation, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := TokenFrom(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(operation, 0, time.Since(start))
		return fmt.Errorf("erp %s: %w", operation, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	c.observe(operation, resp.StatusCode, time.Since(start))
	if err != nil {
		return fmt.Errorf("erp %s: read body: %w", operation, err)
	}

	c.logger.Debug("erp call",
		zap.String("operation", operation),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Operation: operation, Status: resp.StatusCode, Message: errorMessage(payload)}
	}
	if dest == nil {
		return nil
	}
	if err := decodeData(payload, dest); err != nil {
		return fmt.Errorf("erp %s: decode: %w", operation, err)
	}
	return nil
}

func (c *Client) observe(operation string, status int, d time.Duration) {
	if c.observer != nil {
		c.observer.ObserveUpstreamCall(operation, status, d)
	}
}

// decodeData accepts both bare payloads and {"data": ...} envelopes.
func decodeData(payload []byte, dest interface{}) error {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] == '{' {
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err == nil {
			data := bytes.TrimSpace(envelope.Data)
			if len(data) > 0 && !bytes.Equal(data, []byte("null")) {
				trimmed = data
			}
		}
	}
	return json.Unmarshal(trimmed, dest)
}

func errorMessage(payload []byte) string {
	var body struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(payload, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
		var plain string
		if json.Unmarshal(body.Error, &plain) == nil && plain != "" {
			return plain
		}
	}
	text := strings.TrimSpace(string(payload))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody]
	}
	return text
}
