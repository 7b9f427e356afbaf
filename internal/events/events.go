// Package events defines the callback contract of the test-execution engine:
// the attribute payloads delivered with each lifecycle callback, the engine's
// timestamp format, and a decoder for the JSON-lines transport through which
// an out-of-process engine reaches the relay.
package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimeLayout is the engine's textual timestamp format.
const TimeLayout = "20060102 15:04:05.000"

// Timestamp wraps time.Time with the engine's wire format. An empty string
// decodes to the zero time.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON parses an engine timestamp string.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("unmarshal timestamp: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.ParseInLocation(TimeLayout, s, time.Local)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}

// MarshalJSON renders the timestamp in the engine's format.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return json.Marshal("")
	}
	return json.Marshal(t.Format(TimeLayout))
}

// SuiteAttrs is the payload of suite start/end callbacks. End payloads carry
// a strict subset of fields plus Status, Message, Statistics and EndTime.
type SuiteAttrs struct {
	ID         string            `json:"id"`
	LongName   string            `json:"longname"`
	Doc        string            `json:"doc"`
	Source     string            `json:"source"`
	Suites     []string          `json:"suites"`
	Tests      []string          `json:"tests"`
	TotalTests int               `json:"totaltests"`
	Metadata   map[string]string `json:"metadata"`
	StartTime  Timestamp         `json:"starttime"`
	EndTime    Timestamp         `json:"endtime"`
	Status     string            `json:"status"`
	Message    string            `json:"message"`
	Statistics string            `json:"statistics"`
}

// TestAttrs is the payload of test start/end callbacks. Tags may differ
// between start and end: teardown-time tag edits arrive in the end payload.
type TestAttrs struct {
	ID        string    `json:"id"`
	LongName  string    `json:"longname"`
	Doc       string    `json:"doc"`
	Template  string    `json:"template"`
	Critical  string    `json:"critical"`
	Tags      []string  `json:"tags"`
	StartTime Timestamp `json:"starttime"`
	EndTime   Timestamp `json:"endtime"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
}

// Fixture type values carried in KeywordAttrs.Type. Anything else is a plain
// body step.
const (
	KeywordTypeSetup    = "Setup"
	KeywordTypeTeardown = "Teardown"
)

// KeywordAttrs is the payload of keyword start/end callbacks. LastError on
// the end payload is the engine's most recent error text, used to synthesize
// fixture failure and skip messages.
type KeywordAttrs struct {
	KwName    string    `json:"kwname"`
	LibName   string    `json:"libname"`
	Doc       string    `json:"doc"`
	Type      string    `json:"type"`
	Tags      []string  `json:"tags"`
	Args      []string  `json:"args"`
	Assign    []string  `json:"assign"`
	StartTime Timestamp `json:"starttime"`
	EndTime   Timestamp `json:"endtime"`
	Status    string    `json:"status"`
	LastError string    `json:"last_error"`
}

// LogRecord is one raw log message emitted while a keyword executes.
type LogRecord struct {
	Message   string    `json:"message"`
	Level     string    `json:"level"`
	HTML      bool      `json:"html"`
	Timestamp Timestamp `json:"timestamp"`
}

// Handler receives the engine's lifecycle callbacks in delivery order. The
// engine guarantees well-nested start/end pairs; a Handler may rely on that
// ordering and should treat violations as fatal.
type Handler interface {
	StartSuite(name string, attrs SuiteAttrs) error
	EndSuite(name string, attrs SuiteAttrs) error
	StartTest(name string, attrs TestAttrs) error
	EndTest(name string, attrs TestAttrs) error
	StartKeyword(name string, attrs KeywordAttrs) error
	EndKeyword(name string, attrs KeywordAttrs) error
	LogMessage(rec LogRecord) error
	OutputFile(path string) error
	Close() error
}

// Callback names on the wire.
const (
	EventStartSuite   = "start_suite"
	EventEndSuite     = "end_suite"
	EventStartTest    = "start_test"
	EventEndTest      = "end_test"
	EventStartKeyword = "start_keyword"
	EventEndKeyword   = "end_keyword"
	EventLogMessage   = "log_message"
	EventOutputFile   = "output_file"
	EventClose        = "close"
)

// envelope is one serialized callback on the JSON-lines stream.
type envelope struct {
	Event   string          `json:"event"`
	Name    string          `json:"name"`
	Path    string          `json:"path"`
	Attrs   json.RawMessage `json:"attrs"`
	Message json.RawMessage `json:"message"`
}
