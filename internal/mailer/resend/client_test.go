package resend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewClient_Defaults(t *testing.T) {
	client, err := NewClient("api-key", "", 0)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if client.BaseURL() != defaultBaseURL+"/" {
		t.Errorf("BaseURL = %q, want default", client.BaseURL())
	}
	if client.httpClient.Timeout != defaultTimeout {
		t.Errorf("timeout = %v, want %v", client.httpClient.Timeout, defaultTimeout)
	}
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	if _, err := NewClient("k", "http://[::1", time.Second); err == nil {
		t.Fatal("want error for malformed base URL")
	}
}

func TestSend_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/emails" {
			t.Errorf("request = %s %s, want POST /emails", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		var body Message
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("Decode body: %v", err)
		}
		if body.From != "Vault <onboarding@resend.dev>" {
			t.Errorf("from = %q", body.From)
		}
		if len(body.To) != 1 || body.To[0] != "ada@example.com" {
			t.Errorf("to = %v", body.To)
		}
		if body.Subject != "Hello" || body.HTML != "<p>hi</p>" {
			t.Errorf("body = %+v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"abc"}`))
	}))
	defer server.Close()

	client, err := NewClient("test-key", server.URL, time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	msg := Message{From: "Vault <onboarding@resend.dev>", To: []string{"ada@example.com"}, Subject: "Hello", HTML: "<p>hi</p>"}
	if err := client.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}
}

func TestSend_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"statusCode":422,"name":"validation_error","message":"invalid from"}`))
	}))
	defer server.Close()

	client, err := NewClient("test-key", server.URL, time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	err = client.Send(context.Background(), Message{To: []string{"a@b.c"}})
	if err == nil {
		t.Fatal("want error for 422")
	}
	if !strings.HasPrefix(err.Error(), "resend: ") {
		t.Errorf("error = %v", err)
	}
}

func TestSend_NoAPIKey(t *testing.T) {
	client, err := NewClient("", "", 0)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := client.Send(context.Background(), Message{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("want ErrNotConfigured, got %v", err)
	}
}

func TestSend_ContextDeadline(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	client, err := NewClient("test-key", server.URL, 5*time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := client.Send(ctx, Message{To: []string{"a@b.c"}}); err == nil {
		t.Fatal("want error when context deadline passes")
	}
}
