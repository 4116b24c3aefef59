/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package timesource provides the authoritative real-time sources the
// virtual clock resynchronizes against.
package timesource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrUnavailable reports that the real-time source could not be read. The
// caller keeps its last known time and may retry at any moment.
var ErrUnavailable = errors.New("time source unavailable")

// Source yields the authoritative current absolute time.
type Source interface {
	Now(ctx context.Context) (time.Time, error)
}

// System reads the operating system clock. It never fails.
type System struct{}

// Now returns the local system time.
func (System) Now(ctx context.Context) (time.Time, error) {
	return time.Now(), nil
}

// API queries a worldtimeapi-style JSON endpoint.
type API struct {
	URL    string
	Client *http.Client
}

// NewAPI constructs an API source with the given request timeout.
func NewAPI(url string, timeout time.Duration) *API {
	return &API{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

type apiResponse struct {
	DateTime string `json:"datetime"`
}

// Now fetches the current time from the API. Any transport, status, or
// decode failure wraps ErrUnavailable.
func (a *API) Now(ctx context.Context) (time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	resp, err := a.Client.Do(req)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return time.Time{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var payload apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return time.Time{}, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	parsed, err := time.Parse(time.RFC3339Nano, payload.DateTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: parse datetime %q: %v", ErrUnavailable, payload.DateTime, err)
	}
	return parsed, nil
}

// Fallback tries primary first and falls back to secondary when the
// primary is unavailable.
type Fallback struct {
	Primary   Source
	Secondary Source
}

// Now returns the primary's time when it can be read, otherwise the
// secondary's.
func (f Fallback) Now(ctx context.Context) (time.Time, error) {
	t, err := f.Primary.Now(ctx)
	if err == nil {
		return t, nil
	}
	return f.Secondary.Now(ctx)
}
