package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"rfrelay/internal/events"
	"rfrelay/internal/model"
	"rfrelay/internal/rp"
)

// fakeRP records item start/finish traffic and answers with sequential UUIDs.
type fakeRP struct {
	t        *testing.T
	seq      int
	trace    []string
	logBatch []rp.SaveLogRQ

	logStatus int
}

func (f *fakeRP) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api/v1/qa")
		switch {
		case r.Method == "POST" && path == "/launch":
			f.trace = append(f.trace, "start_launch")
			fmt.Fprint(w, `{"id":"launch-uuid"}`)
		case r.Method == "PUT" && strings.HasSuffix(path, "/finish"):
			f.trace = append(f.trace, "finish_launch")
		case r.Method == "POST" && strings.HasPrefix(path, "/item"):
			f.seq++
			parent := strings.TrimPrefix(path, "/item")
			f.trace = append(f.trace, fmt.Sprintf("start_item%s -> u%d", parent, f.seq))
			fmt.Fprintf(w, `{"id":"u%d"}`, f.seq)
		case r.Method == "PUT" && strings.HasPrefix(path, "/item/"):
			var rq rp.FinishTestItemRQ
			json.NewDecoder(r.Body).Decode(&rq)
			f.trace = append(f.trace, fmt.Sprintf("finish_item %s %s", strings.TrimPrefix(path, "/item/"), rq.Status))
		case r.Method == "POST" && path == "/log":
			if f.logStatus != 0 {
				status := f.logStatus
				f.logStatus = 0
				w.WriteHeader(status)
				fmt.Fprint(w, `{"errorCode":1,"message":"rejected"}`)
				return
			}
			if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
				r.ParseMultipartForm(1 << 20)
				var rqs []rp.SaveLogRQ
				json.Unmarshal([]byte(r.MultipartForm.Value["json_request_part"][0]), &rqs)
				f.logBatch = append(f.logBatch, rqs...)
			} else {
				var rq rp.SaveLogRQ
				json.NewDecoder(r.Body).Decode(&rq)
				f.logBatch = append(f.logBatch, rq)
			}
			f.trace = append(f.trace, "log")
		default:
			f.t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	}
}

func newActiveSession(t *testing.T, f *fakeRP) (*Session, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(f.handler())
	t.Cleanup(server.Close)

	s := New(nil)
	if err := s.Init(server.URL, "qa", "token", rp.WithHTTPClient(server.Client())); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return s, server
}

func TestSession_Lifecycle(t *testing.T) {
	f := &fakeRP{t: t}
	s, server := newActiveSession(t, f)

	if !s.Active() {
		t.Error("session should be active after Init")
	}
	if err := s.Init(server.URL, "qa", "token"); err == nil {
		t.Error("double Init must fail")
	}

	s.Terminate()
	s.Terminate() // idempotent
	if s.Active() {
		t.Error("session should not be active after Terminate")
	}
	if err := s.Init(server.URL, "qa", "token"); err == nil {
		t.Error("reinitializing a terminated session must fail")
	}
	if err := s.Log(context.Background(), []*model.Message{{Body: "x"}}); err == nil {
		t.Error("operations on a terminated session must fail")
	}
}

func TestSession_ItemStackParentsCalls(t *testing.T) {
	f := &fakeRP{t: t}
	s, _ := newActiveSession(t, f)
	ctx := context.Background()

	if _, err := s.StartLaunch(ctx, "nightly", []string{"smoke"}, "doc"); err != nil {
		t.Fatalf("StartLaunch: %v", err)
	}
	if s.LaunchUUID() != "launch-uuid" {
		t.Errorf("LaunchUUID = %q", s.LaunchUUID())
	}

	suite := model.NewSuite("S", events.SuiteAttrs{Tests: []string{"T"}})
	test := model.NewTest("T", events.TestAttrs{})
	test.Status = model.StatusPass
	suite.Status = model.StatusPass

	if err := s.StartSuite(ctx, suite); err != nil {
		t.Fatal(err)
	}
	if err := s.StartTest(ctx, test); err != nil {
		t.Fatal(err)
	}
	if err := s.FinishTest(ctx, test); err != nil {
		t.Fatal(err)
	}
	if err := s.FinishSuite(ctx, suite); err != nil {
		t.Fatal(err)
	}
	if err := s.FinishLaunch(ctx, model.StatusPass); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"start_launch",
		"start_item -> u1",
		"start_item/u1 -> u2",
		"finish_item u2 PASSED",
		"finish_item u1 PASSED",
		"finish_launch",
	}
	if diff := cmp.Diff(want, f.trace); diff != "" {
		t.Errorf("trace mismatch (-want +got):\n%s", diff)
	}
}

func TestSession_FinishWithoutStart(t *testing.T) {
	f := &fakeRP{t: t}
	s, _ := newActiveSession(t, f)

	test := model.NewTest("T", events.TestAttrs{})
	if err := s.FinishTest(context.Background(), test); err == nil {
		t.Error("finish without a matching start must fail")
	}
}

func TestSession_LogTransportFailureRecovered(t *testing.T) {
	f := &fakeRP{t: t}
	s, server := newActiveSession(t, f)
	server.Close()

	err := s.Log(context.Background(), []*model.Message{{Body: "hello", Level: "INFO"}})
	if err != nil {
		t.Errorf("transport failure on the log path must be recovered, got %v", err)
	}
}

func TestSession_LogOversizeFallback(t *testing.T) {
	f := &fakeRP{t: t, logStatus: http.StatusRequestEntityTooLarge}
	s, _ := newActiveSession(t, f)

	err := s.Log(context.Background(), []*model.Message{{Body: strings.Repeat("x", 100), Level: "INFO"}})
	if err != nil {
		t.Fatalf("oversize rejection should fall back, got %v", err)
	}
	if len(f.logBatch) != 1 {
		t.Fatalf("expected exactly one fallback record, got %d", len(f.logBatch))
	}
	if !strings.Contains(f.logBatch[0].Message, "too large") {
		t.Errorf("fallback message = %q", f.logBatch[0].Message)
	}
	if f.logBatch[0].Level != "WARN" {
		t.Errorf("fallback level = %q", f.logBatch[0].Level)
	}
}

func TestSession_LogAPIErrorPropagates(t *testing.T) {
	f := &fakeRP{t: t, logStatus: http.StatusBadRequest}
	s, _ := newActiveSession(t, f)

	err := s.Log(context.Background(), []*model.Message{{Body: "x", Level: "INFO"}})
	if err == nil {
		t.Error("a structured API rejection must propagate")
	}
}

func TestMapStatus(t *testing.T) {
	cases := map[model.Status]string{
		model.StatusPass: "PASSED",
		model.StatusFail: "FAILED",
		model.StatusSkip: "SKIPPED",
	}
	for in, want := range cases {
		if got := MapStatus(in); got != want {
			t.Errorf("MapStatus(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestMapLevel(t *testing.T) {
	if got := MapLevel("FAIL"); got != "ERROR" {
		t.Errorf("MapLevel(FAIL) = %q, want ERROR", got)
	}
	if got := MapLevel("TRACE"); got != "TRACE" {
		t.Errorf("MapLevel(TRACE) = %q", got)
	}
	if got := MapLevel("SHOUT"); got != "INFO" {
		t.Errorf("unknown levels report as INFO, got %q", got)
	}
}
