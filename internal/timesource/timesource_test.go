/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package timesource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAPIReadsDatetime(t *testing.T) {
	want := time.Date(2026, 3, 2, 8, 30, 15, 0, time.FixedZone("CET", 3600))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"datetime":%q,"timezone":"Europe/Warsaw"}`, want.Format(time.RFC3339Nano))
	}))
	defer srv.Close()

	source := NewAPI(srv.URL, 2*time.Second)
	got, err := source.Now(context.Background())
	if err != nil {
		t.Fatalf("Now: %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("Now = %v, want %v", got, want)
	}
}

func TestAPIErrorsWrapUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "down", http.StatusInternalServerError)
			},
		},
		{
			name: "garbage body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, "not json")
			},
		},
		{
			name: "malformed datetime",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"datetime":"yesterday"}`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			source := NewAPI(srv.URL, 2*time.Second)
			if _, err := source.Now(context.Background()); !errors.Is(err, ErrUnavailable) {
				t.Errorf("error = %v, want ErrUnavailable", err)
			}
		})
	}
}

func TestAPIUnreachableHost(t *testing.T) {
	source := NewAPI("http://127.0.0.1:1", 500*time.Millisecond)
	if _, err := source.Now(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
}

func TestSystemSource(t *testing.T) {
	got, err := System{}.Now(context.Background())
	if err != nil {
		t.Fatalf("Now: %v", err)
	}
	if time.Since(got) > time.Second {
		t.Errorf("system time %v is stale", got)
	}
}

func TestFallbackUsesSecondary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	source := &Fallback{
		Primary:   NewAPI(srv.URL, time.Second),
		Secondary: System{},
	}
	got, err := source.Now(context.Background())
	if err != nil {
		t.Fatalf("Now: %v", err)
	}
	if time.Since(got) > time.Second {
		t.Errorf("fallback time %v is stale", got)
	}
}

func TestFallbackPrefersPrimary(t *testing.T) {
	want := time.Date(2026, 3, 2, 8, 30, 15, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"datetime":%q}`, want.Format(time.RFC3339Nano))
	}))
	defer srv.Close()

	source := &Fallback{
		Primary:   NewAPI(srv.URL, time.Second),
		Secondary: System{},
	}
	got, err := source.Now(context.Background())
	if err != nil {
		t.Fatalf("Now: %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("Now = %v, want primary's %v", got, want)
	}
}
