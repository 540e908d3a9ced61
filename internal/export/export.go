// Package export calls the document-rendering gateway that turns a contract
// into a portable document. The gateway is an opaque remote dependency; this
// package only assembles the call and interprets the response.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kingdavid28/iyaya-contracts/internal/contract"
)

type Request struct {
	ContractID        string `json:"contract_id"`
	IncludeSignatures bool   `json:"include_signatures"`
	Locale            string `json:"locale,omitempty"`
}

type Result struct {
	URL         string `json:"url"`
	ContractID  string `json:"contract_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

type Gateway interface {
	Render(ctx context.Context, req Request) (*Result, error)
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: &http.Client{Timeout: 30 * time.Second}}
}

func (c *Client) Render(ctx context.Context, req Request) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/render", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("content-type", "application/json")
	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, &contract.ExportError{Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, &contract.ExportError{StatusCode: resp.StatusCode}
	}
	var out Result
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &contract.ExportError{Err: err}
	}
	if out.ContractID == "" {
		out.ContractID = req.ContractID
	}
	return &out, nil
}
