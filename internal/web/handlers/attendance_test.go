package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/logging"
)

func testRecords() []ledger.Record {
	return []ledger.Record{
		{Name: "Alice", Date: "05-03-24", Time: "08:59:01"},
		{Name: "Bob", Date: "05-03-24", Time: "09:12:44"},
		{Name: "Alice", Date: "04-03-24", Time: "09:01:10"},
	}
}

func TestAttendanceHandler_List(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantDate  string
		wantNames []string
	}{
		{name: "defaults to today", query: "", wantDate: "05-03-24", wantNames: []string{"Alice", "Bob"}},
		{name: "explicit date", query: "?date=04-03-24", wantDate: "04-03-24", wantNames: []string{"Alice"}},
		{name: "empty day", query: "?date=01-01-24", wantDate: "01-01-24", wantNames: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := &fakeAttendance{records: testRecords()}
			handler := NewAttendanceHandler(reader, logging.Discard())

			req := httptest.NewRequest("GET", "/api/v1/attendance"+tt.query, nil)
			recorder := httptest.NewRecorder()
			handler.List(recorder, req)

			assertStatusCode(t, recorder, http.StatusOK)
			assertContentType(t, recorder, "application/json")

			var resp AttendanceResponse
			parseJSONResponse(t, recorder, &resp)

			if resp.Date != tt.wantDate || reader.asked != tt.wantDate {
				t.Errorf("date = %q (asked %q), want %q", resp.Date, reader.asked, tt.wantDate)
			}
			if resp.Count != len(tt.wantNames) || len(resp.Records) != len(tt.wantNames) {
				t.Fatalf("count = %d, records = %d, want %d", resp.Count, len(resp.Records), len(tt.wantNames))
			}
			for i, name := range tt.wantNames {
				if resp.Records[i].Name != name {
					t.Errorf("records[%d] = %q, want %q", i, resp.Records[i].Name, name)
				}
			}
		})
	}
}

func TestAttendanceHandler_EmptyDayIsEmptyArray(t *testing.T) {
	handler := NewAttendanceHandler(&fakeAttendance{}, logging.Discard())

	recorder := httptest.NewRecorder()
	handler.List(recorder, httptest.NewRequest("GET", "/api/v1/attendance", nil))

	want := `{"date":"05-03-24","count":0,"records":[]}` + "\n"
	if recorder.Body.String() != want {
		t.Errorf("body = %q, want %q", recorder.Body.String(), want)
	}
}

func TestAttendanceHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		reader     AttendanceReader
		query      string
		wantStatus int
		wantError  string
	}{
		{
			name:       "invalid date",
			reader:     &fakeAttendance{},
			query:      "?date=2024-03-05",
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid date, expected DD-MM-YY",
		},
		{
			name:       "store failure",
			reader:     &fakeAttendance{err: errStoreDown},
			wantStatus: http.StatusInternalServerError,
			wantError:  "failed to read attendance",
		},
		{
			name:       "no ledger",
			reader:     nil,
			wantStatus: http.StatusServiceUnavailable,
			wantError:  "attendance ledger not available",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewAttendanceHandler(tt.reader, logging.Discard())
			recorder := httptest.NewRecorder()
			handler.List(recorder, httptest.NewRequest("GET", "/api/v1/attendance"+tt.query, nil))

			assertStatusCode(t, recorder, tt.wantStatus)
			assertJSONError(t, recorder, tt.wantError)
		})
	}
}
