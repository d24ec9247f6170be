package admission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const siteverifyPath = "/turnstile/v0/siteverify"

var (
	ErrVerificationFailed  = errors.New("challenge verification failed")
	ErrVerifierUnavailable = errors.New("challenge verifier unavailable")
	ErrTokenMissing        = errors.New("challenge token missing")
)

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
	Hostname   string   `json:"hostname"`
}

// TurnstileVerifier checks a challenge token against the siteverify API.
type TurnstileVerifier struct {
	http     *resty.Client
	secret   string
	required bool
}

func NewTurnstileVerifier(baseURL, secret string, required bool, timeout time.Duration) *TurnstileVerifier {
	return &TurnstileVerifier{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(timeout),
		secret:   secret,
		required: required,
	}
}

// Enabled is false when no secret is configured; callers skip the check.
func (v *TurnstileVerifier) Enabled() bool {
	return v != nil && v.secret != ""
}

// Required reports whether a request without a token is refused.
func (v *TurnstileVerifier) Required() bool {
	return v.Enabled() && v.required
}

// Verify posts the token with the caller address. remoteIP may be empty.
func (v *TurnstileVerifier) Verify(ctx context.Context, token, remoteIP string) error {
	if token == "" {
		return ErrTokenMissing
	}

	form := map[string]string{"secret": v.secret, "response": token}
	if remoteIP != "" {
		form["remoteip"] = remoteIP
	}

	var out siteverifyResponse
	resp, err := v.http.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&out).
		Post(siteverifyPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerifierUnavailable, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: siteverify returned %d", ErrVerifierUnavailable, resp.StatusCode())
	}
	if !out.Success {
		return fmt.Errorf("%w: %s", ErrVerificationFailed, strings.Join(out.ErrorCodes, ","))
	}
	return nil
}
