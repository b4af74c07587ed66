// internal/reporting/client.go
package reporting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/songgate/internal/models"
	"github.com/javajoker/songgate/internal/services"
)

// CallerListingHeader carries the listing the report is made for.
const CallerListingHeader = "X-Caller-Listing"

// maxResponseBytes bounds how much of a collaborator response is read.
const maxResponseBytes = 1 << 20

type request struct {
	Selector string           `json:"selector"`
	Buyer    models.AccountID `json:"buyer"`
	Value    models.Amount    `json:"value"`
}

type envelope struct {
	Success bool                    `json:"success"`
	Data    *services.ReportReceipt `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client implements services.Reporter against REPORT_URL.
type Client struct {
	url        string
	token      string
	httpClient *http.Client
	log        *logrus.Entry
}

func NewClient(url, token string, timeout time.Duration, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url:        url,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		log:        logger.WithField("component", "reporting"),
	}
}

// Report posts one call. A transport error, a non-2xx status or
// success=false all fail the report.
func (c *Client) Report(ctx context.Context, call services.ReportCall) (*services.ReportReceipt, error) {
	body, err := json.Marshal(request{
		Selector: services.ReportSelector,
		Buyer:    call.Buyer,
		Value:    call.Value,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build report request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(CallerListingHeader, call.Caller.String())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("report request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read report response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("report rejected with status %d", resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to decode report response: %w", err)
	}
	if !env.Success {
		if env.Error != nil {
			return nil, fmt.Errorf("report rejected: %s: %s", env.Error.Code, env.Error.Message)
		}
		return nil, fmt.Errorf("report rejected")
	}

	receipt := env.Data
	if receipt == nil {
		receipt = &services.ReportReceipt{Amount: call.Value}
	}

	c.log.WithFields(logrus.Fields{
		"caller": call.Caller.String(),
		"buyer":  call.Buyer.String(),
		"value":  call.Value.String(),
	}).Debug("report accepted")
	return receipt, nil
}
