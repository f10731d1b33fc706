package scheduling

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/easyapt/easyapt/internal/platform/auth"
)

func authedRequest(method, target, body string, userID uuid.UUID) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	ctx := context.WithValue(req.Context(), auth.UserIDKey, userID)
	return req.WithContext(ctx)
}

func TestHandler_Book(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)
	e := echo.New()

	body := `{"provider_id":"` + f.providerID.String() + `","start_time":"2026-01-10T09:00:00Z","end_time":"2026-01-10T09:30:00Z","reason":"checkup"}`
	req := authedRequest(http.MethodPost, "/appointments/book", body, f.patientID)
	rec := httptest.NewRecorder()

	if err := h.Book(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	var appt Appointment
	json.Unmarshal(rec.Body.Bytes(), &appt)
	if appt.Status != StatusBooked {
		t.Errorf("expected booked, got %s", appt.Status)
	}
	if appt.PatientID != f.patientID {
		t.Errorf("patient id not taken from token context")
	}
}

func TestHandler_BookConflictIs409(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)
	e := echo.New()

	body := `{"provider_id":"` + f.providerID.String() + `","start_time":"2026-01-10T09:00:00Z","end_time":"2026-01-10T09:30:00Z"}`
	req := authedRequest(http.MethodPost, "/appointments/book", body, f.patientID)
	if err := h.Book(e.NewContext(req, httptest.NewRecorder())); err != nil {
		t.Fatalf("first booking: %v", err)
	}

	req = authedRequest(http.MethodPost, "/appointments/book", body, f.patientID)
	err := h.Book(e.NewContext(req, httptest.NewRecorder()))
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusConflict {
		t.Errorf("expected 409, got %v", err)
	}
}

func TestHandler_CancelForbiddenIs403(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)
	e := echo.New()

	appt, err := f.svc.Book(context.Background(), f.patientID, f.providerID, at(9, 0), at(9, 30), "")
	if err != nil {
		t.Fatalf("Book: %v", err)
	}

	req := authedRequest(http.MethodDelete, "/appointments/"+appt.ID.String(), "", uuid.New())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(appt.ID.String())

	err = h.Cancel(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %v", err)
	}
}

func TestHandler_RescheduleUnknownIs404(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)
	e := echo.New()

	id := uuid.New()
	body := `{"start_time":"2026-01-10T11:00:00Z","end_time":"2026-01-10T11:30:00Z"}`
	req := authedRequest(http.MethodPut, "/appointments/"+id.String()+"/reschedule", body, f.patientID)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(id.String())

	err := h.Reschedule(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_ListMine(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc)
	e := echo.New()

	if _, err := f.svc.Book(context.Background(), f.patientID, f.providerID, at(9, 0), at(9, 30), ""); err != nil {
		t.Fatalf("Book: %v", err)
	}

	req := authedRequest(http.MethodGet, "/appointments/my", "", f.patientID)
	rec := httptest.NewRecorder()
	if err := h.ListMine(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Errorf("expected total 1 in response: %s", rec.Body.String())
	}
}

func routedRequest(method, target string, userID uuid.UUID, role string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	ctx := context.WithValue(req.Context(), auth.UserIDKey, userID)
	ctx = context.WithValue(ctx, auth.RoleKey, role)
	return req.WithContext(ctx)
}

func TestHandler_ProviderSlotsVisibleToPatients(t *testing.T) {
	// The booking UI shows occupied slots before booking, so this listing is
	// not restricted to provider-role accounts.
	f := newFixture(t)
	e := echo.New()
	NewHandler(f.svc).RegisterRoutes(e.Group(""))

	if _, err := f.svc.Book(context.Background(), f.patientID, f.providerID, at(9, 0), at(9, 30), ""); err != nil {
		t.Fatalf("Book: %v", err)
	}

	req := routedRequest(http.MethodGet, "/providers/"+f.providerID.String()+"/appointments", f.patientID, "patient")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for patient-role caller, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Errorf("expected the booked slot in response: %s", rec.Body.String())
	}
}

func TestHandler_DashboardRequiresProviderRole(t *testing.T) {
	f := newFixture(t)
	e := echo.New()
	NewHandler(f.svc).RegisterRoutes(e.Group(""))

	req := routedRequest(http.MethodGet, "/provider-dashboard-list", f.patientID, "patient")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for patient-role caller, got %d", rec.Code)
	}

	req = routedRequest(http.MethodGet, "/provider-dashboard-list", f.providerUserID, "provider")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for provider-role caller, got %d", rec.Code)
	}
}
