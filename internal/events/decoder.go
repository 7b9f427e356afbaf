package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Replay decodes a stream of serialized callbacks and dispatches each to h in
// order. Decoding stops at EOF or on the first handler error. A malformed
// envelope or an unknown event name is an error: the stream is a strict
// contract, not best-effort input.
func Replay(r io.Reader, h Handler) error {
	dec := json.NewDecoder(r)
	for {
		var env envelope
		if err := dec.Decode(&env); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("decode event: %w", err)
		}
		if err := dispatch(&env, h); err != nil {
			return err
		}
	}
}

func dispatch(env *envelope, h Handler) error {
	switch env.Event {
	case EventStartSuite, EventEndSuite:
		var attrs SuiteAttrs
		if err := json.Unmarshal(env.Attrs, &attrs); err != nil {
			return fmt.Errorf("%s: decode attrs: %w", env.Event, err)
		}
		if env.Event == EventStartSuite {
			return h.StartSuite(env.Name, attrs)
		}
		return h.EndSuite(env.Name, attrs)

	case EventStartTest, EventEndTest:
		var attrs TestAttrs
		if err := json.Unmarshal(env.Attrs, &attrs); err != nil {
			return fmt.Errorf("%s: decode attrs: %w", env.Event, err)
		}
		if env.Event == EventStartTest {
			return h.StartTest(env.Name, attrs)
		}
		return h.EndTest(env.Name, attrs)

	case EventStartKeyword, EventEndKeyword:
		var attrs KeywordAttrs
		if err := json.Unmarshal(env.Attrs, &attrs); err != nil {
			return fmt.Errorf("%s: decode attrs: %w", env.Event, err)
		}
		if env.Event == EventStartKeyword {
			return h.StartKeyword(env.Name, attrs)
		}
		return h.EndKeyword(env.Name, attrs)

	case EventLogMessage:
		var rec LogRecord
		if err := json.Unmarshal(env.Message, &rec); err != nil {
			return fmt.Errorf("log_message: decode record: %w", err)
		}
		return h.LogMessage(rec)

	case EventOutputFile:
		return h.OutputFile(env.Path)

	case EventClose:
		return h.Close()

	default:
		return fmt.Errorf("unknown event %q", env.Event)
	}
}
