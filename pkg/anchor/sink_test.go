package anchor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"candela-hq/guardian/pkg/merkle"
)

func TestHTTPSink_Submit(t *testing.T) {
	root := merkle.LeafHash([]byte("batch"))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Method != "anchor_submitRoot" || req.JSONRPC != "2.0" {
			t.Errorf("unexpected request %+v", req)
		}
		if len(req.Params) != 1 || req.Params[0] != "0x"+root.String() {
			t.Errorf("unexpected params %v", req.Params)
		}
		if r.Header.Get("Authorization") != "Bearer token" {
			t.Errorf("missing configured header")
		}
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"receipt":"0xabc"}}`))
	}))
	defer srv.Close()

	sink, err := NewHTTPSink(srv.URL, time.Second, map[string]string{"Authorization": "Bearer token"})
	if err != nil {
		t.Fatalf("NewHTTPSink() error = %v", err)
	}
	receipt, err := sink.Submit(context.Background(), root)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if receipt.ID != "0xabc" {
		t.Errorf("receipt = %q, want 0xabc", receipt.ID)
	}
	if !strings.HasPrefix(sink.Name(), "jsonrpc:127.0.0.1") {
		t.Errorf("Name() = %q", sink.Name())
	}
}

func TestHTTPSink_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"rpc error", 200, `{"error":{"code":-32000,"message":"insufficient funds"}}`, "insufficient funds"},
		{"no receipt", 200, `{"result":{}}`, "no receipt"},
		{"http error", 502, `bad gateway`, "502"},
		{"bad json", 200, `<html>`, "decode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			sink, _ := NewHTTPSink(srv.URL, time.Second, nil)
			_, err := sink.Submit(context.Background(), merkle.Hash{})
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Submit() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewHTTPSink_InvalidURL(t *testing.T) {
	for _, u := range []string{"", "not a url", "/relative"} {
		if _, err := NewHTTPSink(u, 0, nil); err == nil {
			t.Errorf("NewHTTPSink(%q) should fail", u)
		}
	}
}
