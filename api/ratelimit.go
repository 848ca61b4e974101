package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/AlyBadawy/Securial-sub000/internal/util"
	"github.com/AlyBadawy/Securial-sub000/rate"
)

// Throttle gates requests through the rate limiter before they reach
// authentication or any handler. A counter-store failure fails the
// request; it is never silently waved through.
func (a *API) Throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rejection, err := a.limiter.Check(r)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "rate limiter unavailable")
			return
		}
		if rejection != nil {
			a.audit.logFailure(AuditRateLimited, r, rejection.Rule)
			writeRateLimited(w, rejection)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeRateLimited sends the structured rejection with a Retry-After
// hint equal to the rule's window.
func writeRateLimited(w http.ResponseWriter, rejection *rate.Rejection) {
	w.Header().Set("Retry-After", retryAfterString(rejection.RetryAfter))
	writeError(w, rejection.Status, rejection.Message)
}

func retryAfterString(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// defaultRules guards the login endpoint by IP and by credential
// identifier, and the password-reset request endpoint the same way. A
// request matching several rules is rejected if any of them trips.
func (a *API) defaultRules() []rate.Rule {
	cfg := a.cfg
	return []rate.Rule{
		{
			Name:    "login_by_ip",
			Limit:   cfg.LoginLimit,
			Window:  cfg.LoginWindow,
			Status:  cfg.LimitStatus,
			Message: cfg.LimitMessage,
			Key:     a.endpointKeyByIP(http.MethodPost, "/auth/login"),
		},
		{
			Name:    "login_by_email",
			Limit:   cfg.LoginLimit,
			Window:  cfg.LoginWindow,
			Status:  cfg.LimitStatus,
			Message: cfg.LimitMessage,
			Key:     endpointKeyByEmail(http.MethodPost, "/auth/login"),
		},
		{
			Name:    "reset_by_ip",
			Limit:   cfg.ResetLimit,
			Window:  cfg.ResetWindow,
			Status:  cfg.LimitStatus,
			Message: cfg.LimitMessage,
			Key:     a.endpointKeyByIP(http.MethodPost, "/password/forgot"),
		},
		{
			Name:    "reset_by_email",
			Limit:   cfg.ResetLimit,
			Window:  cfg.ResetWindow,
			Status:  cfg.LimitStatus,
			Message: cfg.LimitMessage,
			Key:     endpointKeyByEmail(http.MethodPost, "/password/forgot"),
		},
	}
}

// endpointKeyByIP keys matching requests by client IP; other requests
// yield no key, so the rule does not apply to them.
func (a *API) endpointKeyByIP(method, path string) func(*http.Request) string {
	return func(r *http.Request) string {
		if r.Method != method || routePath(r) != path {
			return ""
		}
		return a.extractClientIP(r)
	}
}

// endpointKeyByEmail keys matching requests by the submitted credential
// identifier, so an attacker rotating IPs still hits a per-account
// ceiling.
func endpointKeyByEmail(method, path string) func(*http.Request) string {
	return func(r *http.Request) string {
		if r.Method != method || routePath(r) != path {
			return ""
		}
		return peekEmailAddress(r)
	}
}

// peekEmailAddress reads the email_address field out of a JSON body and
// restores the body so the handler can decode it again.
func peekEmailAddress(r *http.Request) string {
	if r.Body == nil {
		return ""
	}
	buf, err := io.ReadAll(io.LimitReader(r.Body, maxAuthBodySize))
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(buf))
	if err != nil {
		return ""
	}

	var probe struct {
		EmailAddress string `json:"email_address"`
	}
	if err := json.Unmarshal(buf, &probe); err != nil {
		return ""
	}
	if probe.EmailAddress == "" {
		return ""
	}
	return util.NormalizeIdentifier(probe.EmailAddress)
}
