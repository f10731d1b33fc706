// Package captcha verifies Google reCAPTCHA tokens. Verification is advisory
// for login: a failed or missing check is logged by the caller, never used to
// reject the request.
package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Verifier checks CAPTCHA tokens against a verification backend.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}

type googleVerifier struct {
	secret    string
	verifyURL string
	client    *http.Client
}

// NewGoogleVerifier returns a Verifier backed by the reCAPTCHA siteverify API.
func NewGoogleVerifier(secret string) Verifier {
	return &googleVerifier{
		secret:    secret,
		verifyURL: "https://www.google.com/recaptcha/api/siteverify",
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

type verifyResponse struct {
	Success    bool     `json:"success"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

func (v *googleVerifier) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("build siteverify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("POST %s: %w", v.verifyURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("siteverify returned status %d", resp.StatusCode)
	}

	var body verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("decode siteverify response: %w", err)
	}
	return body.Success, nil
}

// Disabled is a Verifier used when no secret key is configured; it accepts
// every token.
type Disabled struct{}

func (Disabled) Verify(context.Context, string, string) (bool, error) { return true, nil }
