package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestHandlerStats(t *testing.T) {
	d := newTestDispatcher(&MockEmailSender{}, &MockSMSSender{}, time.Hour)
	defer d.Stop()
	if _, err := d.SendFromTemplate(context.Background(), "welcome", "a@example.com", map[string]string{"patient_name": "A"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/notifications/stats", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := NewHandler(d).Stats(c); err != nil {
		t.Fatalf("stats: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		ByStatus         map[string]int `json:"by_status"`
		PendingReminders int            `json:"pending_reminders"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.ByStatus["sent"] != 1 {
		t.Errorf("sent count = %d, want 1", body.ByStatus["sent"])
	}
}

func TestHandlerGetUnknownID(t *testing.T) {
	d := newTestDispatcher(&MockEmailSender{}, &MockSMSSender{}, time.Hour)
	defer d.Stop()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("missing")

	err := NewHandler(d).Get(c)
	if err == nil {
		t.Fatal("expected error")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusNotFound {
		t.Errorf("code = %d, want 404", httpErr.Code)
	}
}

func TestHandlerRetry(t *testing.T) {
	email := &MockEmailSender{ShouldFail: true}
	d := newTestDispatcher(email, &MockSMSSender{}, time.Hour)
	defer d.Stop()

	n, _ := d.SendFromTemplate(context.Background(), "welcome", "a@example.com", map[string]string{"patient_name": "A"})
	if n.Status != "failed" {
		t.Fatalf("setup: status = %s, want failed", n.Status)
	}

	email.ShouldFail = false

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(n.ID)

	if err := NewHandler(d).Retry(c); err != nil {
		t.Fatalf("retry: %v", err)
	}

	var got Notification
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != "sent" {
		t.Errorf("status = %s, want sent", got.Status)
	}
}
