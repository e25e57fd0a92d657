package medplatform

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", WithAPIKey("secret"), WithHTTPClient(srv.Client()))
}

func writeEnvelope(w http.ResponseWriter, status int, success bool, data interface{}, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": success,
		"data":    data,
		"message": msg,
	})
}

func TestClient_WeeklySchedule(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/organizations/org-1/calendars/doc-1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing api key, got %q", r.Header.Get("Authorization"))
		}
		writeEnvelope(w, http.StatusOK, true, map[string]interface{}{
			"fixedSchedule": map[string]interface{}{
				"Monday":  []map[string]string{{"startTime": "08:00", "endTime": "12:00"}},
				"tuesday": nil,
			},
			"dynamicSchedule": []map[string]interface{}{
				{"date": "2024-01-09", "startTime": "10:00", "endTime": "11:00", "available": false},
			},
		}, "")
	})

	sched, err := c.WeeklySchedule(context.Background(), "org-1", "doc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sched["monday"]) != 1 || sched["monday"][0].StartTime != "08:00" {
		t.Errorf("unexpected schedule %+v", sched)
	}
	if sched.WorksOn("tuesday") {
		t.Error("null day should not be a working day")
	}

	cal, err := c.Calendar(context.Background(), "org-1", "doc-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(cal.Dynamic) != 1 || cal.Dynamic[0].Available {
		t.Errorf("unexpected overrides %+v", cal.Dynamic)
	}
}

func TestClient_BusyRanges(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/organizations/org-1/calendars/busy" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("dayKey"); got != "08-01-2024" {
			t.Errorf("dayKey = %q", got)
		}
		writeEnvelope(w, http.StatusOK, true, []map[string]string{
			{"start": "2024-01-08T10:00:00", "end": "2024-01-08T10:30:00"},
		}, "")
	})

	ranges, err := c.BusyRanges(context.Background(), "org-1", "08-01-2024")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ranges) != 1 || ranges[0].Start != "2024-01-08T10:00:00" {
		t.Errorf("unexpected ranges %+v", ranges)
	}
}

func TestClient_BusyRangesNullData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, true, nil, "")
	})
	ranges, err := c.BusyRanges(context.Background(), "org-1", "08-01-2024")
	if err != nil {
		t.Fatal(err)
	}
	if ranges == nil || len(ranges) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", ranges)
	}
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		checker func(error) bool
	}{
		{"not found", http.StatusNotFound, `{}`, func(err error) bool { return errors.Is(err, ErrNotFound) }},
		{"server error", http.StatusInternalServerError, `oops`, func(err error) bool {
			var se *StatusError
			return errors.As(err, &se) && se.StatusCode == 500 && se.Body == "oops"
		}},
		{"conflict with message", http.StatusConflict, `{"success":false,"message":"slot taken"}`, func(err error) bool {
			var re *RejectedError
			return errors.As(err, &re) && re.Message == "slot taken"
		}},
		{"bad request without envelope", http.StatusBadRequest, `nope`, func(err error) bool {
			var se *StatusError
			return errors.As(err, &se) && se.StatusCode == 400
		}},
		{"success false on 200", http.StatusOK, `{"success":false,"message":"closed"}`, func(err error) bool {
			var re *RejectedError
			return errors.As(err, &re) && re.Message == "closed"
		}},
		{"malformed 200", http.StatusOK, `{"success":`, func(err error) bool {
			return err != nil && strings.Contains(err.Error(), "decode envelope")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.BusyRanges(context.Background(), "org-1", "08-01-2024")
			if !tt.checker(err) {
				t.Errorf("unexpected error %v", err)
			}
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		writeEnvelope(w, http.StatusOK, true, nil, "")
	}))
	defer srv.Close()

	c := New(srv.URL, WithHTTPClient(srv.Client()), WithTimeout(20*time.Millisecond))
	if _, err := c.BusyRanges(context.Background(), "org-1", "08-01-2024"); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestClient_ResolvePatientID(t *testing.T) {
	var queries []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.RawQuery)
		q := r.URL.Query()
		switch {
		case q.Get("email") != "":
			writeEnvelope(w, http.StatusOK, true, []Patient{}, "")
		case q.Get("name") != "":
			writeEnvelope(w, http.StatusNotFound, false, nil, "no match")
		default:
			writeEnvelope(w, http.StatusOK, true, []Patient{
				{ID: "p-1", Email: "other@example.com", FirstName: "Luis", LastName: "Soto"},
				{ID: "p-2", Email: "ANA@example.com ", FirstName: "Ana", LastName: "Rojas"},
			}, "")
		}
	})

	id, err := c.ResolvePatientID(context.Background(), "org-1", PatientQuery{UserID: "u-1", Email: "ana@example.com", Name: "Ana Rojas"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "p-2" {
		t.Errorf("id = %q, want p-2", id)
	}
	if len(queries) != 3 {
		t.Errorf("expected email, name and full-list lookups, got %v", queries)
	}
}

func TestClient_ResolvePatientIDNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, true, []Patient{{ID: "p-1", Email: "x@example.com"}}, "")
	})
	_, err := c.ResolvePatientID(context.Background(), "org-1", PatientQuery{Email: "ana@example.com"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClient_CreateAppointment(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/organizations/org-1/quotes" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body AppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Status != "pendiente" || body.ScheduledStart != "2024-01-08T10:00:00" {
			t.Errorf("unexpected body %+v", body)
		}
		writeEnvelope(w, http.StatusCreated, true, map[string]string{"id": "q-42"}, "")
	})

	id, err := c.CreateAppointment(context.Background(), "org-1", AppointmentRequest{
		DayKey:         "08-01-2024",
		ScheduledStart: "2024-01-08T10:00:00",
		ScheduledEnd:   "2024-01-08T10:30:00",
		Status:         "pendiente",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "q-42" {
		t.Errorf("id = %q", id)
	}
}

func TestClient_AppointmentTypes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("userId") != "doc-1" {
			t.Errorf("expected userId filter, got %q", r.URL.RawQuery)
		}
		writeEnvelope(w, http.StatusOK, true, []map[string]interface{}{
			{"id": "t1", "name": "General", "duration": 30, "price": 100, "externalVisibility": true},
			{"id": "t2", "name": "Hidden", "duration": 15, "externalVisibility": false},
		}, "")
	})
	types, err := c.AppointmentTypes(context.Background(), "org-1", "doc-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(types) != 2 || types[0].DurationMinutes != 30 || !types[0].ExternalVisibility {
		t.Errorf("unexpected types %+v", types)
	}
}

func TestClient_DefaultLocationID(t *testing.T) {
	inactive := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, true, []Location{
			{ID: "l-1", Name: "Closed branch", Active: &inactive},
			{ID: "l-2", Name: "Main"},
		}, "")
	})
	id, err := c.DefaultLocationID(context.Background(), "org-1")
	if err != nil {
		t.Fatal(err)
	}
	if id != "l-2" {
		t.Errorf("id = %q, want l-2", id)
	}
}

func TestOrgPath_Escapes(t *testing.T) {
	if got := orgPath("org 1", "calendars", "a/b"); got != "/organizations/org%201/calendars/a%2Fb" {
		t.Errorf("orgPath = %q", got)
	}
}
