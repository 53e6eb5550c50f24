package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSendMessage(t *testing.T) {
	var (
		gotPath string
		gotBody map[string][]map[string]string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newLiveClient(srv.URL + "/")
	if err := c.sendMessage(context.Background(), "ses_1", "run the tests"); err != nil {
		t.Fatal(err)
	}
	if gotPath != "/session/ses_1/message" {
		t.Errorf("unexpected path %q", gotPath)
	}
	parts := gotBody["parts"]
	if len(parts) != 1 || parts[0]["type"] != "text" || parts[0]["text"] != "run the tests" {
		t.Errorf("unexpected body %v", gotBody)
	}
}

func TestAbortSession(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte("true"))
	}))
	defer srv.Close()

	if err := newLiveClient(srv.URL).abortSession(context.Background(), "ses_1"); err != nil {
		t.Fatal(err)
	}
	if gotPath != "/session/ses_1/abort" {
		t.Errorf("unexpected path %q", gotPath)
	}
}

func TestLiveErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "session busy", http.StatusConflict)
	}))
	defer srv.Close()

	err := newLiveClient(srv.URL).sendMessage(context.Background(), "ses_1", "hi")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.HasPrefix(err.Error(), "send message: ") || !strings.Contains(err.Error(), "session busy") {
		t.Errorf("unexpected error %q", err)
	}
}

func TestSessionURLEscapes(t *testing.T) {
	c := newLiveClient("http://localhost:4096")
	if got := c.sessionURL("a/b", "abort"); got != "http://localhost:4096/session/a%2Fb/abort" {
		t.Errorf("unexpected url %q", got)
	}
}
