package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rfrelay/internal/rp"
)

const eventStream = `
{"event":"start_suite","name":"Root","attrs":{"id":"s1","tests":["T1"],"starttime":"20260831 10:00:00.000"}}
{"event":"start_test","name":"T1","attrs":{"id":"s1-t1","starttime":"20260831 10:00:01.000"}}
{"event":"end_test","name":"T1","attrs":{"id":"s1-t1","status":"PASS","endtime":"20260831 10:00:02.000"}}
{"event":"end_suite","name":"Root","attrs":{"id":"s1","status":"PASS","endtime":"20260831 10:00:03.000"}}
{"event":"close"}
`

func newFakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	seq := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == "POST" && strings.HasSuffix(r.URL.Path, "/launch"):
			fmt.Fprint(w, `{"id":"launch-uuid"}`)
		case r.Method == "GET" && strings.Contains(r.URL.Path, "/launch/uuid/"):
			fmt.Fprint(w, `{"id":77,"uuid":"launch-uuid","name":"nightly","number":3,"status":"PASSED"}`)
		case r.Method == "GET" && strings.HasSuffix(r.URL.Path, "/launch/77"):
			fmt.Fprint(w, `{"id":77,"uuid":"launch-uuid","name":"nightly","number":3,"status":"PASSED"}`)
		case r.Method == "GET" && strings.HasSuffix(r.URL.Path, "/launch"):
			json.NewEncoder(w).Encode(rp.PagedLaunches{
				Content: []rp.LaunchResource{{ID: 77, UUID: "launch-uuid", Name: "nightly", Number: 3, Status: "PASSED"}},
				Page:    rp.PageInfo{Number: 1, TotalPages: 1},
			})
		case r.Method == "POST" && strings.Contains(r.URL.Path, "/item"):
			seq++
			fmt.Fprintf(w, `{"id":"u%d"}`, seq)
		case r.Method == "GET" && strings.Contains(r.URL.Path, "/item"):
			json.NewEncoder(w).Encode(rp.PagedItems{
				Content: []rp.TestItemResource{{
					ID: 101, Name: "T1", Type: "STEP", Parent: 10,
					PathNames: &rp.PathNameResource{ItemPaths: []rp.PathSegment{{ID: 10, Name: "Root"}}},
				}},
				Page: rp.PageInfo{Number: 1, TotalPages: 1},
			})
		default:
			fmt.Fprint(w, `{}`)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("%v failed: %v\n%s", args, err, out.String())
	}
	return out.String()
}

func TestRelayCommand(t *testing.T) {
	server := newFakeServer(t)
	t.Setenv("RP_ENDPOINT", server.URL)
	t.Setenv("RP_PROJECT", "qa")
	t.Setenv("RP_UUID", "token")
	t.Setenv("RP_LAUNCH", "nightly")

	streamPath := filepath.Join(t.TempDir(), "events.jsonl")
	if err := os.WriteFile(streamPath, []byte(eventStream), 0644); err != nil {
		t.Fatal(err)
	}

	out := execute(t, "relay", streamPath)
	if !strings.Contains(out, "STATUS") || !strings.Contains(out, "PASS") {
		t.Errorf("summary table missing from output:\n%s", out)
	}
	if !strings.Contains(out, "launches/all/77") {
		t.Errorf("launch link missing from output:\n%s", out)
	}
}

func TestRelayCommand_MissingConfig(t *testing.T) {
	t.Setenv("RP_ENDPOINT", "")
	t.Setenv("RP_PROJECT", "")
	t.Setenv("RP_UUID", "")
	t.Setenv("RP_LAUNCH", "")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"relay", "/nonexistent.jsonl"})
	err := rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "missing parameter") {
		t.Fatalf("err = %v, want missing-parameter error", err)
	}
}

func TestLinksCommand(t *testing.T) {
	server := newFakeServer(t)
	t.Setenv("RP_ENDPOINT", server.URL)
	t.Setenv("RP_PROJECT", "qa")
	t.Setenv("RP_UUID", "token")

	out := execute(t, "links", "77")
	if !strings.Contains(out, "Launch: nightly #3 (PASSED)") {
		t.Errorf("launch header missing from output:\n%s", out)
	}
	if !strings.Contains(out, "launches/all/77") {
		t.Errorf("launch link missing from output:\n%s", out)
	}
	if !strings.Contains(out, "Root.T1") {
		t.Errorf("test link row missing from output:\n%s", out)
	}
}

func TestLinksCommand_ByName(t *testing.T) {
	server := newFakeServer(t)
	t.Setenv("RP_ENDPOINT", server.URL)
	t.Setenv("RP_PROJECT", "qa")
	t.Setenv("RP_UUID", "token")

	out := execute(t, "links", "nightly")
	if !strings.Contains(out, "Launch: nightly #3 (PASSED)") {
		t.Errorf("launch header missing from output:\n%s", out)
	}
	if !strings.Contains(out, "launches/all/77") {
		t.Errorf("launch link missing from output:\n%s", out)
	}
}
