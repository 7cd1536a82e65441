package anchor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"candela-hq/guardian/pkg/merkle"
)

// HTTPSink submits roots to a JSON-RPC 2.0 endpoint with the
// anchor_submitRoot method. The endpoint is expected to answer only once the
// root is confirmed, with {"result": {"receipt": "..."}}.
type HTTPSink struct {
	endpoint   string
	name       string
	httpClient *http.Client
	headers    map[string]string
	nextID     atomic.Int64
}

// NewHTTPSink creates a sink for endpoint. timeout bounds each request; zero
// leaves the bound to the caller's context.
func NewHTTPSink(endpoint string, timeout time.Duration, headers map[string]string) (*HTTPSink, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid sink url %q", endpoint)
	}
	return &HTTPSink{
		endpoint:   endpoint,
		name:       "jsonrpc:" + u.Host,
		httpClient: &http.Client{Timeout: timeout},
		headers:    headers,
	}, nil
}

// Name implements Sink.
func (s *HTTPSink) Name() string {
	return s.name
}

type rpcRequest struct {
	JSONRPC string   `json:"jsonrpc"`
	ID      int64    `json:"id"`
	Method  string   `json:"method"`
	Params  []string `json:"params"`
}

type rpcResponse struct {
	Result *struct {
		Receipt string `json:"receipt"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Submit implements Sink.
func (s *HTTPSink) Submit(ctx context.Context, root merkle.Hash) (Receipt, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      s.nextID.Add(1),
		Method:  "anchor_submitRoot",
		Params:  []string{"0x" + root.String()},
	})
	if err != nil {
		return Receipt{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return Receipt{}, err
	}
	req.Header.Set("content-type", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Receipt{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Receipt{}, fmt.Errorf("sink returned %s", resp.Status)
	}

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Receipt{}, fmt.Errorf("decode sink response: %w", err)
	}
	if decoded.Error != nil {
		return Receipt{}, fmt.Errorf("sink error %d: %s", decoded.Error.Code, decoded.Error.Message)
	}
	if decoded.Result == nil || decoded.Result.Receipt == "" {
		return Receipt{}, fmt.Errorf("sink response has no receipt")
	}
	return Receipt{ID: decoded.Result.Receipt}, nil
}
