// Package workday submits financial transactions to the Workday
// Financial_Management web service over SOAP.
package workday

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/hooklift/gowsdl/soap"

	commonhttp "finhub-workers/internal/common/http"
	"finhub-workers/internal/common/logger"
	"finhub-workers/internal/models"
	"finhub-workers/internal/transaction"
)

const (
	Namespace         = "urn:com.workday/bsvc"
	DefaultAPIVersion = "v41.0"
	serviceName       = "Financial_Management"
)

type Config struct {
	Scheme     string
	APIVersion string
	Timeout    time.Duration
}

// Client implements transaction.Transport. It keeps no per-call state, so one
// instance serves every session.
type Client struct {
	httpClient *commonhttp.Client
	scheme     string
	apiVersion string
	logger     logger.Logger
}

var _ transaction.Transport = (*Client)(nil)

func NewClient(cfg Config, log logger.Logger) *Client {
	if cfg.Scheme == "" {
		cfg.Scheme = "https"
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Client{
		httpClient: commonhttp.NewClient(cfg.Timeout),
		scheme:     cfg.Scheme,
		apiVersion: cfg.APIVersion,
		logger:     log,
	}
}

// submitRequest is the SOAP body element: <{op}_Request> wrapping the data document.
type submitRequest struct {
	XMLName xml.Name
	Version string `xml:"urn:com.workday/bsvc version,attr"`
	Data    *transaction.RemoteRequest
}

// submitResponse captures whatever element the service returns, verbatim.
type submitResponse struct {
	XMLName xml.Name
	Raw     string `xml:",innerxml"`
}

// Endpoint returns the Financial_Management URL for creds.
func (c *Client) Endpoint(creds models.Credentials) string {
	host := strings.TrimSpace(creds.Host)
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	host = strings.TrimRight(host, "/")
	return fmt.Sprintf("%s://%s/ccx/service/%s/%s/%s", c.scheme, host, strings.TrimSpace(creds.Tenant), serviceName, c.apiVersion)
}

// Username is the WS-Security user: Workday expects user@tenant.
func Username(creds models.Credentials) string {
	user := strings.TrimSpace(creds.User)
	if strings.Contains(user, "@") {
		return user
	}
	return user + "@" + strings.TrimSpace(creds.Tenant)
}

// Submit performs one SOAP call for op. It never retries.
func (c *Client) Submit(ctx context.Context, op transaction.Operation, creds models.Credentials, req *transaction.RemoteRequest) (*transaction.RemoteResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("%s: empty request document", op.Name)
	}

	endpoint := c.Endpoint(creds)
	client := soap.NewClient(endpoint, soap.WithHTTPClient(c.httpClient))
	client.AddHeader(soap.NewWSSSecurityHeader(Username(creds), creds.Secret, "", ""))

	// Workday qualifies every element; the data document and its children
	// must sit in the bsvc namespace. Copy so the caller's request is untouched.
	data := *req
	data.XMLName.Space = Namespace

	body := &submitRequest{
		XMLName: xml.Name{Space: Namespace, Local: op.RequestElement},
		Version: c.apiVersion,
		Data:    &data,
	}
	resp := &submitResponse{}

	c.logger.Debug("Submitting SOAP request", map[string]interface{}{
		"operation": op.Name,
		"endpoint":  endpoint,
		"user":      Username(creds),
	})

	if err := client.CallContext(ctx, "", body, resp); err != nil {
		return nil, fmt.Errorf("%s failed: %w", op.Name, err)
	}

	return &transaction.RemoteResponse{
		Element: resp.XMLName.Local,
		Raw:     resp.Raw,
	}, nil
}
