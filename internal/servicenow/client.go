// Package servicenow provides a ServiceNow Table API client used to query
// records related to the incident that fired a trigger.
package servicenow

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bissquit/incident-relay/internal/pkg/ctxlog"
	"github.com/bissquit/incident-relay/internal/record"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 4096
)

// Config holds ServiceNow connection configuration.
type Config struct {
	InstanceURL string // e.g. https://example.service-now.com
	Username    string
	Password    string
	Timeout     time.Duration
	Fields      []string // sysparm_fields, empty returns every column
}

// Client queries the ServiceNow Table API.
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a new Table API client.
func NewClient(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	config.InstanceURL = strings.TrimRight(config.InstanceURL, "/")

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

type tableResponse struct {
	Result []map[string]string `json:"result"`
}

// QueryRelated returns rows of table matching filter, in the order the
// instance returns them.
func (c *Client) QueryRelated(ctx context.Context, table string, filter record.Filter) ([]record.Row, error) {
	query := url.Values{}
	if filter.Field != "" {
		query.Set("sysparm_query", fmt.Sprintf("%s=%s", filter.Field, filter.Value))
	}
	query.Set("sysparm_exclude_reference_link", "true")
	if len(c.config.Fields) > 0 {
		query.Set("sysparm_fields", strings.Join(c.config.Fields, ","))
	}

	endpoint := fmt.Sprintf("%s/api/now/table/%s?%s", c.config.InstanceURL, url.PathEscape(table), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.config.Username != "" {
		req.SetBasicAuth(c.config.Username, c.config.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &QueryError{Table: table, Message: fmt.Sprintf("send request: %v", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &QueryError{
			Table:   table,
			Code:    resp.StatusCode,
			Message: strings.TrimSpace(string(body)),
		}
	}

	var decoded tableResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &QueryError{Table: table, Message: fmt.Sprintf("decode response: %v", err)}
	}

	rows := make([]record.Row, 0, len(decoded.Result))
	for _, r := range decoded.Result {
		rows = append(rows, record.Row(r))
	}

	ctxlog.FromContext(ctx).Debug("servicenow table queried",
		"table", table,
		"filter_field", filter.Field,
		"rows", len(rows),
	)

	return rows, nil
}

// QueryError indicates a failed Table API query.
type QueryError struct {
	Table   string
	Code    int
	Message string
}

func (e *QueryError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("servicenow table %s error %d: %s", e.Table, e.Code, e.Message)
	}
	return fmt.Sprintf("servicenow table %s error: %s", e.Table, e.Message)
}
