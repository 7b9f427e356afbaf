// Package session owns the process-wide Report Portal reporting session: the
// client connection, the launch this process reports into, and the stack of
// currently open remote items that parents every start/log/finish call.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"rfrelay/internal/model"
	"rfrelay/internal/rp"
)

// State is the session lifecycle phase.
type State int

const (
	StateUninitialized State = iota
	StateActive
	StateTerminated
)

// statusMapping translates engine statuses to Report Portal statuses.
var statusMapping = map[model.Status]string{
	model.StatusPass: "PASSED",
	model.StatusFail: "FAILED",
	model.StatusSkip: "SKIPPED",
}

// levelMapping translates engine log levels to Report Portal levels. The
// engine's FAIL level has no remote counterpart and reports as ERROR.
var levelMapping = map[string]string{
	"INFO":  "INFO",
	"FAIL":  "ERROR",
	"TRACE": "TRACE",
	"DEBUG": "DEBUG",
	"WARN":  "WARN",
	"ERROR": "ERROR",
}

// MapStatus returns the remote status for an engine status.
func MapStatus(st model.Status) string {
	if mapped, ok := statusMapping[st]; ok {
		return mapped
	}
	return string(st)
}

// MapLevel returns the remote severity for an engine log level. Unknown
// levels report as INFO.
func MapLevel(level string) string {
	if mapped, ok := levelMapping[level]; ok {
		return mapped
	}
	return "INFO"
}

// Session is the reporting session. It is not safe for concurrent use; the
// reconciler drives it strictly sequentially.
type Session struct {
	logger *slog.Logger

	state      State
	client     *rp.Client
	scope      *rp.ProjectScope
	launchUUID string
	stack      []string
}

// New returns an uninitialized session.
func New(logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{logger: logger}
}

// Init opens the remote connection. Initializing an already active session is
// an error: exactly one connection exists per process.
func (s *Session) Init(endpoint, project, token string, opts ...rp.Option) error {
	if s.state == StateActive {
		return fmt.Errorf("session: already initialized")
	}
	if s.state == StateTerminated {
		return fmt.Errorf("session: cannot reinitialize a terminated session")
	}

	client, err := rp.New(endpoint, token, append([]rp.Option{rp.WithLogger(s.logger)}, opts...)...)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}

	s.client = client
	s.scope = client.Project(project)
	s.state = StateActive
	return nil
}

// Active reports whether the session holds an open connection.
func (s *Session) Active() bool { return s.state == StateActive }

// Terminate closes the session. Safe to call any number of times.
func (s *Session) Terminate() {
	if s.state != StateActive {
		return
	}
	s.state = StateTerminated
	s.logger.Debug("session terminated", "open_items", len(s.stack))
}

// Client exposes the underlying API client for read-side collaborators.
func (s *Session) Client() *rp.Client { return s.client }

// Project exposes the project scope for read-side collaborators.
func (s *Session) Project() *rp.ProjectScope { return s.scope }

// LaunchUUID returns the launch this session reports into.
func (s *Session) LaunchUUID() string { return s.launchUUID }

// SetLaunchUUID adopts an externally created launch. The session becomes a
// participant: it must not finish that launch.
func (s *Session) SetLaunchUUID(uuid string) { s.launchUUID = uuid }

func (s *Session) active() error {
	if s.state != StateActive {
		return fmt.Errorf("session: not active")
	}
	return nil
}

// StartLaunch creates a new launch and adopts it as this session's launch.
func (s *Session) StartLaunch(ctx context.Context, name string, tags []string, doc string) (string, error) {
	if err := s.active(); err != nil {
		return "", err
	}
	uuid, err := s.scope.Launches().Start(ctx, rp.StartLaunchRQ{
		Name:        name,
		Description: doc,
		StartTime:   rp.Millis(time.Now()),
		Attributes:  rp.TagsToAttributes(tags),
	})
	if err != nil {
		return "", err
	}
	s.launchUUID = uuid
	return uuid, nil
}

// FinishLaunch closes the session's launch with the given status.
func (s *Session) FinishLaunch(ctx context.Context, status model.Status) error {
	if err := s.active(); err != nil {
		return err
	}
	return s.scope.Launches().Finish(ctx, s.launchUUID, rp.FinishExecutionRQ{
		EndTime: rp.Millis(time.Now()),
		Status:  MapStatus(status),
	})
}

// StartSuite opens a remote item for the suite under the currently open item.
func (s *Session) StartSuite(ctx context.Context, suite *model.Suite) error {
	return s.startItem(ctx, rp.StartTestItemRQ{
		Name:        suite.Name,
		Description: suite.Doc,
		StartTime:   rp.Millis(orNow(suite.Start)),
		Type:        suite.ItemType(),
	})
}

// FinishSuite closes the suite's remote item.
func (s *Session) FinishSuite(ctx context.Context, suite *model.Suite) error {
	return s.finishItem(ctx, suite.Status, suite.End)
}

// StartTest opens a remote STEP item for the test.
func (s *Session) StartTest(ctx context.Context, test *model.Test) error {
	return s.startItem(ctx, rp.StartTestItemRQ{
		Name:        test.Name,
		Description: test.Doc,
		StartTime:   rp.Millis(orNow(test.Start)),
		Type:        model.ItemTypeStep,
		Attributes:  rp.TagsToAttributes(test.Tags),
	})
}

// FinishTest closes the test's remote item.
func (s *Session) FinishTest(ctx context.Context, test *model.Test) error {
	return s.finishItem(ctx, test.Status, test.End)
}

// StartKeyword opens a remote item for a fixture keyword.
func (s *Session) StartKeyword(ctx context.Context, kw *model.Keyword) error {
	return s.startItem(ctx, rp.StartTestItemRQ{
		Name:        kw.DisplayName(),
		Description: kw.Doc,
		StartTime:   rp.Millis(orNow(kw.Start)),
		Type:        kw.ItemType(),
		Attributes:  rp.TagsToAttributes(kw.Tags),
	})
}

// FinishKeyword closes the keyword's remote item.
func (s *Session) FinishKeyword(ctx context.Context, kw *model.Keyword) error {
	return s.finishItem(ctx, kw.Status, kw.End)
}

func (s *Session) startItem(ctx context.Context, rq rp.StartTestItemRQ) error {
	if err := s.active(); err != nil {
		return err
	}
	rq.LaunchUUID = s.launchUUID

	parent := ""
	if len(s.stack) > 0 {
		parent = s.stack[len(s.stack)-1]
	}
	uuid, err := s.scope.Items().Start(ctx, parent, rq)
	if err != nil {
		return err
	}
	s.stack = append(s.stack, uuid)
	return nil
}

func (s *Session) finishItem(ctx context.Context, status model.Status, end time.Time) error {
	if err := s.active(); err != nil {
		return err
	}
	if len(s.stack) == 0 {
		return fmt.Errorf("session: finish without a matching start")
	}
	uuid := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]

	return s.scope.Items().Finish(ctx, uuid, rp.FinishTestItemRQ{
		EndTime:    rp.Millis(orNow(end)),
		Status:     MapStatus(status),
		LaunchUUID: s.launchUUID,
	})
}

// Log submits a batch of messages against the currently open item. This is
// the one recovered call site: transport-level failures are downgraded to a
// warning so a flaky network cannot abort the run, and an oversized-payload
// rejection falls back to a minimal replacement record. Structured API
// rejections other than the oversize case still propagate.
func (s *Session) Log(ctx context.Context, messages []*model.Message) error {
	if err := s.active(); err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}

	item := ""
	if len(s.stack) > 0 {
		item = s.stack[len(s.stack)-1]
	}

	rqs := make([]rp.SaveLogRQ, 0, len(messages))
	var atts []rp.AttachmentPart
	for _, msg := range messages {
		rq := rp.SaveLogRQ{
			LaunchUUID: s.launchUUID,
			ItemUUID:   item,
			Time:       rp.Millis(orNow(msg.Time)),
			Message:    msg.Body,
			Level:      MapLevel(msg.Level),
		}
		if msg.Attachment != nil {
			rq.File = &rp.FileLocator{Name: msg.Attachment.Name}
			atts = append(atts, rp.AttachmentPart{
				Name: msg.Attachment.Name,
				MIME: msg.Attachment.MIME,
				Data: msg.Attachment.Data,
			})
		}
		rqs = append(rqs, rq)
	}

	err := s.scope.Logs().SaveBatch(ctx, rqs, atts)
	switch {
	case err == nil:
		return nil
	case rp.IsPayloadTooLarge(err):
		s.logger.Warn("log batch rejected as too large, submitting fallback message", "error", err)
		return s.scope.Logs().Save(ctx, rp.SaveLogRQ{
			LaunchUUID: s.launchUUID,
			ItemUUID:   item,
			Time:       rp.Millis(time.Now()),
			Message:    fmt.Sprintf("A batch of %d log messages was too large to submit and was dropped.", len(rqs)),
			Level:      "WARN",
		})
	case !rp.IsAPIError(err):
		s.logger.Warn("log submission failed, continuing", "error", err)
		return nil
	default:
		return err
	}
}

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
