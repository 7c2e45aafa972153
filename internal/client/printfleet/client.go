// Package printfleet is the client for the 3D print fleet vendor API. Every
// operation is a form-encoded POST answered with a {result, message} envelope.
package printfleet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/client"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/models"
)

// System is the source system tag of the print fleet.
const System = string(models.SourcePrintFleet)

// Vendor operations, relative to the API base URL.
const (
	opLogin              = "login"
	opCheckSession       = "check_session"
	opListPrinters       = "get_organization_printers_list"
	opListJobs           = "get_printer_jobs"
	opJobInfo            = "get_job_info"
	opCustomReport       = "get_custom_report"
	opFinishedJobsReport = "get_finished_jobs_report"
)

var escapedPassword = regexp.MustCompile(`\\([%$!])`)

// Client talks to the print fleet API. It also implements client.Authenticator
// so it can back a SessionBroker.
type Client struct {
	*client.BaseClient

	username string
	password string
	logger   *logrus.Logger
}

// NewClient creates a print fleet client. Backslash escapes in the password
// (\%, \$ and \!) are removed.
func NewClient(
	baseURL string,
	username string,
	password string,
	timeout time.Duration,
	logger *logrus.Logger,
	observer client.Observer,
) *Client {
	return &Client{
		BaseClient: client.NewBaseClient(System, baseURL, timeout, logger, observer),
		username:   username,
		password:   escapedPassword.ReplaceAllString(password, "$1"),
		logger:     logger,
	}
}

type envelope struct {
	Result  bool            `json:"result"`
	Message json.RawMessage `json:"message"`
}

// vendorError is a result:false answer that did not complain about the session.
type vendorError struct {
	operation string
	message   string
}

func (e *vendorError) Error() string {
	if e.message == "" {
		return e.operation + " failed"
	}
	return e.message
}

// Login signs in with the service account and returns the session id.
func (c *Client) Login(ctx context.Context) (string, error) {
	if c.username == "" || c.password == "" {
		return "", models.NewAuthenticationError("print fleet service account is not configured")
	}

	form := url.Values{}
	form.Set("username", c.username)
	form.Set("password", c.password)

	raw, err := c.call(ctx, opLogin, form)
	if err != nil {
		var rejected *vendorError
		if errors.As(err, &rejected) {
			return "", models.NewAuthenticationError(rejected.Error())
		}
		return "", err
	}

	var msg struct {
		Session string `json:"session"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Session == "" {
		return "", models.NewAuthenticationError("print fleet login returned no session")
	}
	return msg.Session, nil
}

// Validate reports whether a session id is still accepted. It never fails.
func (c *Client) Validate(ctx context.Context, session string) bool {
	form := url.Values{}
	form.Set("session", session)

	_, err := c.call(ctx, opCheckSession, form)
	if err != nil {
		c.logger.WithError(err).Debug("Print fleet session check failed")
		return false
	}
	return true
}

// ListPrinters returns the organization printer inventory.
func (c *Client) ListPrinters(ctx context.Context, session string) ([]models.Printer, error) {
	form := url.Values{}
	form.Set("session", session)

	printers := []models.Printer{}
	if err := c.post(ctx, opListPrinters, form, &printers); err != nil {
		return nil, err
	}
	return printers, nil
}

// ListJobs returns one page of a printer's jobs. A limit of zero omits paging
// and returns the vendor's default page. Never returns a nil slice on success.
func (c *Client) ListJobs(ctx context.Context, session, printerID string, limit, offset int) ([]models.Job, error) {
	form := url.Values{}
	form.Set("session", session)
	form.Set("printer_id", printerID)
	if limit > 0 {
		form.Set("limit", strconv.Itoa(limit))
		form.Set("offset", strconv.Itoa(offset))
	}

	raw, err := c.call(ctx, opListJobs, form)
	if err != nil {
		return nil, upstream(err)
	}

	jobs := []models.Job{}
	if !isArray(raw) {
		return jobs, nil
	}
	if err := json.Unmarshal(raw, &jobs); err != nil {
		return nil, models.NewUpstreamError(fmt.Sprintf("malformed %s payload: %v", opListJobs, err))
	}
	for i := range jobs {
		if jobs[i].PrinterID == "" {
			jobs[i].PrinterID = models.FlexString(printerID)
		}
	}
	return jobs, nil
}

// GetJobInfo returns one job. A rejected lookup is a NotFoundError.
func (c *Client) GetJobInfo(ctx context.Context, session, jobID string) (*models.Job, error) {
	form := url.Values{}
	form.Set("session", session)
	form.Set("job_id", jobID)

	raw, err := c.call(ctx, opJobInfo, form)
	if err != nil {
		var rejected *vendorError
		if errors.As(err, &rejected) {
			return nil, models.NewNotFoundError(fmt.Sprintf("job %s not found", jobID))
		}
		return nil, err
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte("false")) {
		return nil, models.NewNotFoundError(fmt.Sprintf("job %s not found", jobID))
	}

	var job models.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, models.NewUpstreamError(fmt.Sprintf("malformed %s payload: %v", opJobInfo, err))
	}
	if job.ID == "" {
		job.ID = models.FlexString(jobID)
	}
	return &job, nil
}

// CustomReport runs the flexible report query for [from, to] (YYYY-MM-DD).
func (c *Client) CustomReport(ctx context.Context, session, from, to string, fields models.ReportFields) (*models.RawTable, error) {
	form := url.Values{}
	form.Set("session", session)
	form.Set("from", from)
	form.Set("to", to)
	form.Set("type", "json")
	if fields.AllFields {
		form.Set("all_fields", "1")
	} else {
		form.Set("all_fields", "0")
		form.Set("fields", strings.Join(fields.Fields, ","))
	}

	raw, err := c.call(ctx, opCustomReport, form)
	if err != nil {
		return nil, upstream(err)
	}

	cells, err := decodeCells(raw)
	if err != nil {
		return nil, models.NewUpstreamError(fmt.Sprintf("malformed %s payload: %v", opCustomReport, err))
	}
	return models.NewRawTable(cells), nil
}

// FinishedJobsReport returns one row per job finished in [from, to].
func (c *Client) FinishedJobsReport(ctx context.Context, session, from, to string) ([]models.FinishedJob, error) {
	form := url.Values{}
	form.Set("session", session)
	form.Set("from", from)
	form.Set("to", to)

	jobs := []models.FinishedJob{}
	if err := c.post(ctx, opFinishedJobsReport, form, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// post calls an operation and decodes the message into out.
func (c *Client) post(ctx context.Context, operation string, form url.Values, out any) error {
	raw, err := c.call(ctx, operation, form)
	if err != nil {
		return upstream(err)
	}
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return models.NewUpstreamError(fmt.Sprintf("malformed %s payload: %v", operation, err))
	}
	return nil
}

// call performs one vendor round trip and unwraps the envelope. Session
// complaints and HTTP 401/403 are AuthenticationErrors; other result:false
// answers are returned as *vendorError for the caller to classify.
func (c *Client) call(ctx context.Context, operation string, form url.Values) (json.RawMessage, error) {
	resp, err := c.PostForm(ctx, operation, form)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, client.StatusError(resp, System)
	}

	var env envelope
	decodeErr := client.DecodeJSON(resp, System, &env)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg := fmt.Sprintf("%s returned HTTP %d", operation, resp.StatusCode)
		if decodeErr == nil {
			if vendorMsg := messageText(env.Message); vendorMsg != "" {
				msg = vendorMsg
			}
		}
		return nil, models.NewUpstreamError(msg)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}

	if !env.Result {
		msg := messageText(env.Message)
		if isSessionComplaint(msg) {
			return nil, models.NewAuthenticationError(msg)
		}
		return nil, &vendorError{operation: operation, message: msg}
	}

	return env.Message, nil
}

func upstream(err error) error {
	var rejected *vendorError
	if errors.As(err, &rejected) {
		return models.NewUpstreamError(rejected.Error())
	}
	return err
}

func isSessionComplaint(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "session")
}

// messageText returns the message when it is a JSON string.
func messageText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

// decodeCells converts the report's mixed-type 2D array into strings. Nulls
// become "", numbers keep their literal form.
func decodeCells(raw json.RawMessage) ([][]string, error) {
	if !isArray(raw) {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var rows [][]any
	if err := dec.Decode(&rows); err != nil {
		return nil, err
	}

	cells := make([][]string, 0, len(rows))
	for _, row := range rows {
		out := make([]string, len(row))
		for i, v := range row {
			out[i] = cellString(v)
		}
		cells = append(cells, out)
	}
	return cells, nil
}

func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
