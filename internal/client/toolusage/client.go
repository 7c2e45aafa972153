// Package toolusage is the client for the tool usage tracking API. Calls are
// GETs keyed by an organization credential pair passed as "orgKey:orgId".
package toolusage

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/client"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/models"
)

// System is the source system tag of the tool usage tracker.
const System = string(models.SourceToolUsage)

const (
	opDailyUsage       = "DailyToolUsages"
	opIndividualUsages = "IndividualToolUsages"
	opToolStatus       = "ToolStatus"
)

// Client talks to the tool usage API. It also implements client.Authenticator:
// the credential is derived from configuration and never expires.
type Client struct {
	*client.BaseClient

	orgKey string
	orgID  string
	logger *logrus.Logger
}

// NewClient creates a tool usage client for one organization.
func NewClient(
	baseURL string,
	orgKey string,
	orgID string,
	timeout time.Duration,
	logger *logrus.Logger,
	observer client.Observer,
) *Client {
	return &Client{
		BaseClient: client.NewBaseClient(System, baseURL, timeout, logger, observer),
		orgKey:     orgKey,
		orgID:      orgID,
		logger:     logger,
	}
}

// Login returns the "orgKey:orgId" credential.
func (c *Client) Login(context.Context) (string, error) {
	if c.orgKey == "" || c.orgID == "" {
		return "", models.NewAuthenticationError("tool usage organization key or id is not configured")
	}
	return c.orgKey + ":" + c.orgID, nil
}

// Validate reports whether credential is the configured pair.
func (c *Client) Validate(_ context.Context, credential string) bool {
	return c.orgKey != "" && c.orgID != "" && credential == c.orgKey+":"+c.orgID
}

// DailyUsage returns per-tool usage hours for [from, to] (YYYY-MM-DD).
func (c *Client) DailyUsage(ctx context.Context, credential, from, to string) ([]models.DailyUsage, error) {
	rows := []models.DailyUsage{}
	if err := c.get(ctx, credential, opDailyUsage, dateRange(from, to), &rows); err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.DailyUsage{}
	}
	return rows, nil
}

// IndividualUsages returns every tool session in [from, to]. A payload without
// a UsageList is an UpstreamError.
func (c *Client) IndividualUsages(ctx context.Context, credential, from, to string) (*models.IndividualUsageReport, error) {
	var payload struct {
		UsageList *[]models.ToolUsage `json:"UsageList"`
	}
	if err := c.get(ctx, credential, opIndividualUsages, dateRange(from, to), &payload); err != nil {
		return nil, err
	}
	if payload.UsageList == nil {
		return nil, models.NewUpstreamError("tool usage payload is missing UsageList")
	}
	return &models.IndividualUsageReport{UsageList: *payload.UsageList}, nil
}

// ToolStatus returns the current free-text status of every tool.
func (c *Client) ToolStatus(ctx context.Context, credential string) ([]models.ToolStatus, error) {
	rows := []models.ToolStatus{}
	if err := c.get(ctx, credential, opToolStatus, url.Values{}, &rows); err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.ToolStatus{}
	}
	return rows, nil
}

func (c *Client) get(ctx context.Context, credential, operation string, query url.Values, out any) error {
	key, id, ok := strings.Cut(credential, ":")
	if !ok || key == "" || id == "" {
		return models.NewAuthenticationError("malformed tool usage credential")
	}
	query.Set("EGKey", key)
	query.Set("EGId", id)

	resp, err := c.Get(ctx, operation, query)
	if err != nil {
		return err
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return client.StatusError(resp, System)
	}
	return client.DecodeJSON(resp, System, out)
}

func dateRange(from, to string) url.Values {
	q := url.Values{}
	q.Set("StartDate", from)
	q.Set("EndDate", to)
	return q
}
