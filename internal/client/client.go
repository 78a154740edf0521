// Package client talks to the remote Combination Service: search,
// spreadsheet upload search and CSV export.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"invoicemix/internal/core"
	ierr "invoicemix/internal/errors"

	"github.com/shopspring/decimal"
)

const (
	searchPath = "/api/combinations"
	uploadPath = "/api/combinations/upload"
	exportPath = "/api/combinations/export"
)

// StatusError is returned (wrapped) when the service answers with a
// non-success status.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("combination service returned status %d", e.StatusCode)
}

// Client is the HTTP adapter for the Combination Service.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for baseURL. A nil httpClient gets a default one
// with a 60 second timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

type invoicePayload struct {
	ID     string      `json:"id"`
	Amount json.Number `json:"amount"`
}

type searchPayload struct {
	Target             json.Number      `json:"target"`
	Invoices           []invoicePayload `json:"invoices"`
	MinInvoices        *int             `json:"minInvoices,omitempty"`
	MaxInvoices        *int             `json:"maxInvoices,omitempty"`
	RequiredInvoiceIDs []string         `json:"requiredInvoiceIds,omitempty"`
}

type combinationResponse struct {
	Combinations     [][]string                 `json:"combinations"`
	CombinationCount int                        `json:"combinationCount"`
	InvoiceAmounts   map[string]json.RawMessage `json:"invoiceAmounts"`
}

type messageBody struct {
	Message string `json:"message"`
}

func newSearchPayload(req core.CombinationRequest) searchPayload {
	p := searchPayload{
		Target:      json.Number(req.Target.String()),
		Invoices:    make([]invoicePayload, 0, len(req.Invoices)),
		MinInvoices: req.MinInvoices,
		MaxInvoices: req.MaxInvoices,
	}
	for _, inv := range req.Invoices {
		p.Invoices = append(p.Invoices, invoicePayload{ID: inv.ID, Amount: json.Number(inv.Amount.String())})
	}
	if len(req.RequiredInvoiceIDs) > 0 {
		p.RequiredInvoiceIDs = req.RequiredInvoiceIDs
	}
	return p
}

// Search posts a combination request and returns the normalized result.
func (c *Client) Search(ctx context.Context, req core.CombinationRequest) (*core.CombinationResult, error) {
	body, err := json.Marshal(newSearchPayload(req))
	if err != nil {
		return nil, ierr.Service("encode search request", err, "")
	}

	status, respBody, err := c.do(ctx, searchPath, "application/json", body)
	if err != nil {
		return nil, ierr.Service("search combinations", err, "")
	}
	if status != http.StatusOK {
		return nil, ierr.Service("search combinations", &StatusError{StatusCode: status, Body: respBody}, jsonMessage(respBody))
	}
	return decodeResult(respBody, "search combinations")
}

// SearchUpload posts the spreadsheet and constraints as a multipart form.
func (c *Client) SearchUpload(ctx context.Context, req core.UploadRequest) (*core.CombinationResult, error) {
	body, contentType, err := encodeUpload(req)
	if err != nil {
		return nil, ierr.Service("encode upload request", err, "")
	}

	status, respBody, err := c.do(ctx, uploadPath, contentType, body)
	if err != nil {
		return nil, ierr.Service("upload combinations", err, "")
	}
	if status != http.StatusOK {
		return nil, ierr.Service("upload combinations", &StatusError{StatusCode: status, Body: respBody}, jsonMessage(respBody))
	}
	return decodeResult(respBody, "upload combinations")
}

// Export posts a combination request and returns the CSV payload. A failed
// export carries the raw response text as its message.
func (c *Client) Export(ctx context.Context, req core.CombinationRequest) ([]byte, error) {
	body, err := json.Marshal(newSearchPayload(req))
	if err != nil {
		return nil, ierr.Service("encode export request", err, "")
	}

	status, respBody, err := c.do(ctx, exportPath, "application/json", body)
	if err != nil {
		return nil, ierr.Service("export combinations", err, "")
	}
	if status != http.StatusOK {
		return nil, ierr.Service("export combinations", &StatusError{StatusCode: status, Body: respBody}, strings.TrimSpace(string(respBody)))
	}
	return respBody, nil
}

func (c *Client) do(ctx context.Context, path, contentType string, body []byte) (int, []byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.ContentLength = int64(len(body))
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return 0, nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

func decodeResult(body []byte, op string) (*core.CombinationResult, error) {
	var resp combinationResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, ierr.Service(op, fmt.Errorf("decode response: %w", err), "")
	}
	combos := resp.Combinations
	if combos == nil {
		combos = [][]string{}
	}
	return &core.CombinationResult{
		Combinations:     combos,
		CombinationCount: resp.CombinationCount,
		InvoiceAmounts:   NormalizeAmounts(resp.InvoiceAmounts),
	}, nil
}

// jsonMessage extracts the "message" field of an error body, if any.
func jsonMessage(body []byte) string {
	var m messageBody
	if err := json.Unmarshal(body, &m); err != nil {
		return ""
	}
	return strings.TrimSpace(m.Message)
}

// NormalizeAmounts converts the service's invoiceAmounts into decimals.
// Numbers are kept, strings may carry comma grouping, and anything that is
// not numeric is dropped.
func NormalizeAmounts(raw map[string]json.RawMessage) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(raw))
	for id, value := range raw {
		value = bytes.TrimSpace(value)
		if len(value) == 0 {
			continue
		}
		if value[0] == '"' {
			var s string
			if err := json.Unmarshal(value, &s); err != nil {
				continue
			}
			if d, ok := core.ParseGroupedNumber(s); ok {
				out[id] = d
			}
			continue
		}
		if d, err := decimal.NewFromString(string(value)); err == nil {
			out[id] = d
		}
	}
	return out
}
