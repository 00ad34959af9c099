package openf1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func ptrInt32(v int32) *int32 { return &v }

func TestGetSessionResults_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/session_result" {
			t.Fatalf("path = %s, want /session_result", r.URL.Path)
		}
		if got := r.URL.Query().Get("session_key"); got != "7782" {
			t.Fatalf("session_key = %s, want 7782", got)
		}

		results := []SessionResult{
			{DriverNumber: ptrInt32(44)},
			{DriverID: ptrInt32(63)},
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(results); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	results, err := client.GetSessionResults(ctx, 7782)
	if err != nil {
		t.Fatalf("GetSessionResults error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].DriverNumber == nil || *results[0].DriverNumber != 44 {
		t.Fatalf("unexpected first result: %+v", results[0])
	}
}

func TestGetSessionResults_Empty(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("[]"))
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	results, err := client.GetSessionResults(context.Background(), 1234)
	if err != nil {
		t.Fatalf("GetSessionResults error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("len(results) = %d, want 0", len(results))
	}
}

func TestGetSessionResults_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	_, err := client.GetSessionResults(context.Background(), 7782)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestGetSessions_QueryParams(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := q.Get("session_type"); got != "Race" {
			t.Fatalf("session_type = %s, want Race", got)
		}
		if got := q.Get("year"); got != "2024" {
			t.Fatalf("year = %s, want 2024", got)
		}
		if got := q.Get("country_name"); got != "Italy" {
			t.Fatalf("country_name = %s, want Italy", got)
		}

		sessions := []Session{
			{SessionKey: 9999, SessionName: "Race", SessionType: "Race", Year: 2024, CountryName: "Italy"},
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(sessions); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	year := 2024
	sessions, err := client.GetSessions(context.Background(), "Race", &year, "Italy")
	if err != nil {
		t.Fatalf("GetSessions error: %v", err)
	}
	if len(sessions) != 1 || sessions[0].SessionKey != 9999 {
		t.Fatalf("unexpected sessions: %+v", sessions)
	}
}

func TestGetDrivers_Unreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := client.GetDrivers(ctx, 7782)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestSessionResultMatches(t *testing.T) {
	tests := []struct {
		name   string
		result SessionResult
		driver int32
		want   bool
	}{
		{
			name:   "matches by driver number",
			result: SessionResult{DriverNumber: ptrInt32(44)},
			driver: 44,
			want:   true,
		},
		{
			name:   "matches by driver id",
			result: SessionResult{DriverID: ptrInt32(44)},
			driver: 44,
			want:   true,
		},
		{
			name:   "no identifiers set",
			result: SessionResult{},
			driver: 44,
			want:   false,
		},
		{
			name:   "different driver",
			result: SessionResult{DriverNumber: ptrInt32(63), DriverID: ptrInt32(63)},
			driver: 44,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.Matches(tt.driver); got != tt.want {
				t.Fatalf("Matches(%d) = %v, want %v", tt.driver, got, tt.want)
			}
		})
	}
}
