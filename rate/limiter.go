// Package rate implements rule-based request throttling: each rule names
// an endpoint class, extracts a key dimension from the request (client
// IP, credential identifier), and bounds how many matching requests may
// occur within its window. Counters live behind CounterStore so a
// single-process deployment can use in-memory sliding windows while a
// multi-process one shares a redis counter store.
package rate

import (
	"fmt"
	"net/http"
	"time"
)

// Rule describes one throttling dimension for one endpoint class.
type Rule struct {
	// Name namespaces the rule's counters.
	Name string
	// Limit is the maximum number of requests per Window and key.
	Limit int
	// Window is the trailing interval the limit applies to.
	Window time.Duration
	// Status is the HTTP status for rejections; 0 means 429.
	Status int
	// Message is the rejection body message; empty means a default.
	Message string
	// Key extracts the dimension value from a request. Returning ""
	// means the rule does not apply to this request.
	Key func(r *http.Request) string
}

// Rejection describes a request that exceeded a rule.
type Rejection struct {
	Rule       string
	Status     int
	Message    string
	RetryAfter time.Duration
}

// CounterStore increments a counter and reports the post-increment count
// within the current window. Increments must be atomic under concurrent
// access; the window policy (sliding vs. bucketed) is the store's choice
// provided the limit is never permanently exceeded once the window passes.
type CounterStore interface {
	Incr(key string, window time.Duration) (int64, error)
}

// Limiter evaluates a set of rules against inbound requests.
type Limiter struct {
	store CounterStore
	rules []Rule
}

// NewLimiter creates a Limiter over the given counter store and rules.
func NewLimiter(store CounterStore, rules ...Rule) *Limiter {
	return &Limiter{store: store, rules: rules}
}

// Check increments the counter of every applicable rule and returns the
// first rejection, or nil if the request is within all limits. A request
// guarded by several rules is rejected if any one of them is exceeded.
func (l *Limiter) Check(r *http.Request) (*Rejection, error) {
	for i := range l.rules {
		rule := &l.rules[i]
		key := rule.Key(r)
		if key == "" {
			continue
		}

		count, err := l.store.Incr(rule.Name+":"+key, rule.Window)
		if err != nil {
			return nil, fmt.Errorf("incrementing %s counter: %w", rule.Name, err)
		}
		if count > int64(rule.Limit) {
			return &Rejection{
				Rule:       rule.Name,
				Status:     rule.statusOrDefault(),
				Message:    rule.messageOrDefault(),
				RetryAfter: rule.Window,
			}, nil
		}
	}
	return nil, nil
}

func (r *Rule) statusOrDefault() int {
	if r.Status == 0 {
		return http.StatusTooManyRequests
	}
	return r.Status
}

func (r *Rule) messageOrDefault() string {
	if r.Message == "" {
		return "too many requests; try again later"
	}
	return r.Message
}
