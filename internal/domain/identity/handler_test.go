package identity

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func newTestHandler() (*Handler, *echo.Echo, *mockRepo) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockNotifier{}, time.Minute)
	return NewHandler(svc), echo.New(), repo
}

func TestHandler_Register(t *testing.T) {
	h, e, _ := newTestHandler()

	body := `{"email":"jane@example.com","password":"` + goodPassword + `"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Register(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	var user User
	json.Unmarshal(rec.Body.Bytes(), &user)
	if user.Email != "jane@example.com" {
		t.Errorf("unexpected email: %s", user.Email)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Error("response must not leak password material")
	}
}

func TestHandler_RegisterRole(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		wantRole string
		wantCode int
	}{
		{"default is patient", `{"email":"a@example.com","password":"` + goodPassword + `"}`, RolePatient, http.StatusCreated},
		{"provider accepted", `{"email":"b@example.com","password":"` + goodPassword + `","role":"provider"}`, RoleProvider, http.StatusCreated},
		{"staff accepted", `{"email":"c@example.com","password":"` + goodPassword + `","role":"staff"}`, RoleStaff, http.StatusCreated},
		{"bogus role rejected", `{"email":"d@example.com","password":"` + goodPassword + `","role":"superuser"}`, "", http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, e, _ := newTestHandler()

			req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(tc.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()

			err := h.Register(e.NewContext(req, rec))
			if tc.wantCode == http.StatusCreated {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				var user User
				json.Unmarshal(rec.Body.Bytes(), &user)
				if user.Role != tc.wantRole {
					t.Errorf("role = %q, want %q", user.Role, tc.wantRole)
				}
				return
			}
			httpErr, ok := err.(*echo.HTTPError)
			if !ok || httpErr.Code != tc.wantCode {
				t.Errorf("expected %d, got %v", tc.wantCode, err)
			}
		})
	}
}

func TestHandler_RegisterWeakPassword(t *testing.T) {
	h, e, _ := newTestHandler()

	body := `{"email":"jane@example.com","password":"weak"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Register(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_LoginForm(t *testing.T) {
	h, e, _ := newTestHandler()

	regBody := `{"email":"jane@example.com","password":"` + goodPassword + `"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(regBody))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if err := h.Register(e.NewContext(req, httptest.NewRecorder())); err != nil {
		t.Fatalf("register: %v", err)
	}

	form := url.Values{}
	form.Set("username", "jane@example.com")
	form.Set("password", goodPassword)
	req = httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()

	if err := h.Login(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var resp tokenResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.AccessToken == "" {
		t.Error("missing access_token")
	}
	if resp.TokenType != "bearer" {
		t.Errorf("expected token_type bearer, got %s", resp.TokenType)
	}
}

func TestHandler_LoginBadCredentials(t *testing.T) {
	h, e, _ := newTestHandler()

	form := url.Values{}
	form.Set("username", "ghost@example.com")
	form.Set("password", goodPassword)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)

	err := h.Login(e.NewContext(req, httptest.NewRecorder()))
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}
