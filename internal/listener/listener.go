// Package listener is the event reconciler: it consumes the engine's flat
// callback stream, rebuilds the suite/test/keyword hierarchy with correct
// scoping and fixture placement, buffers log messages against the right
// keyword, and replays completed subtrees to Report Portal.
package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"rfrelay/internal/config"
	"rfrelay/internal/events"
	"rfrelay/internal/logging"
	"rfrelay/internal/message"
	"rfrelay/internal/model"
	"rfrelay/internal/session"
)

// rootSuiteID is the engine's sentinel id for the first (root) suite.
const rootSuiteID = "s1"

// Precondition errors: a callback arrived while the scope it needs is not
// active. These signal a broken assumption about engine callback ordering
// and are not recoverable.
var (
	ErrNoSuite   = errors.New("no suite is running")
	ErrNoTest    = errors.New("no test is running")
	ErrNoKeyword = errors.New("no keyword is running")
	ErrNoScope   = errors.New("no scope is active")
)

// Listener implements events.Handler. It is strictly sequential: callbacks
// must arrive one at a time in engine order, and every remote call completes
// before the next callback is processed.
type Listener struct {
	cfg     *config.Config
	session *session.Session
	fmtr    *message.Formatter
	logger  *slog.Logger
	ctx     context.Context

	retryRe *regexp.Regexp

	suite      *model.Suite
	test       *model.Test
	keyword    *model.Keyword
	scope      model.Scope
	outputPath string

	stats map[model.Status]int
}

// New builds a Listener over the given session. The session may be
// uninitialized; the listener opens it lazily on the first suite start.
func New(cfg *config.Config, sess *session.Session) (*Listener, error) {
	retryRe, err := regexp.Compile(cfg.RetryKeywordPattern)
	if err != nil {
		return nil, fmt.Errorf("listener: retry keyword pattern: %w", err)
	}
	return &Listener{
		cfg:     cfg,
		session: sess,
		fmtr:    &message.Formatter{OutputDir: cfg.OutputDir},
		logger:  logging.New("listener"),
		ctx:     context.Background(),
		retryRe: retryRe,
		stats:   make(map[model.Status]int),
	}, nil
}

// Stats returns per-status counts of replayed tests.
func (l *Listener) Stats() map[model.Status]int { return l.stats }

// OutputPath returns the engine output file announced via OutputFile, if any.
func (l *Listener) OutputPath() string { return l.outputPath }

func (l *Listener) currentSuite() (*model.Suite, error) {
	if l.suite == nil {
		return nil, ErrNoSuite
	}
	return l.suite, nil
}

func (l *Listener) currentTest() (*model.Test, error) {
	if l.test == nil {
		return nil, ErrNoTest
	}
	return l.test, nil
}

func (l *Listener) currentKeyword() (*model.Keyword, error) {
	if l.keyword == nil {
		return nil, ErrNoKeyword
	}
	return l.keyword, nil
}

func (l *Listener) currentScope() (model.Scope, error) {
	if l.scope == nil {
		return nil, ErrNoScope
	}
	return l.scope, nil
}

// StartSuite opens the session on first use and, at the root suite, resolves
// launch ownership: an externally supplied launch UUID makes this process a
// participant; without one, pool mode is a fatal misconfiguration and
// otherwise a fresh launch is created. Suites that directly contain tests
// open their remote item immediately.
func (l *Listener) StartSuite(name string, attrs events.SuiteAttrs) error {
	if !l.session.Active() {
		if err := l.session.Init(l.cfg.Endpoint, l.cfg.Project, l.cfg.Token); err != nil {
			return err
		}
	}

	suite := model.NewSuite(name, attrs)
	l.suite = suite
	l.scope = suite

	if attrs.ID == rootSuiteID {
		switch {
		case l.cfg.LaunchUUID != "":
			l.session.SetLaunchUUID(l.cfg.LaunchUUID)
		case l.cfg.PoolURI != "":
			return fmt.Errorf("pool mode is active but no launch UUID was supplied: " +
				"a participant process must be configured with the shared launch id")
		default:
			suite.Doc = l.cfg.LaunchDoc
			uuid, err := l.session.StartLaunch(l.ctx, l.cfg.LaunchName, l.cfg.LaunchTags, suite.Doc)
			if err != nil {
				return err
			}
			l.logger.Info("launch created", "uuid", uuid, "name", l.cfg.LaunchName)
		}
	}

	if suite.HasTests() {
		return l.session.StartSuite(l.ctx, suite)
	}
	return nil
}

// EndSuite replays the suite's buffered tests and closes its remote item.
// At the root suite it also finishes the launch — but only when this process
// owns it: a participant finishing a shared launch would close it out from
// under the other processes.
func (l *Listener) EndSuite(name string, attrs events.SuiteAttrs) error {
	suite, err := l.currentSuite()
	if err != nil {
		return err
	}
	suite.Update(attrs)

	// After a child suite ends the tracked suite still points at that child;
	// the ending suite's own payload says whether tests were buffered here.
	if len(attrs.Tests) > 0 {
		if attrs.Message != "" {
			// The suite's own fixture failure, not an individual test's.
			msg, err := l.prepare(attrs.Message, "FAIL", suite.End)
			if err != nil {
				return err
			}
			suite.Message = msg
		}
		if err := l.replayTests(suite); err != nil {
			return err
		}
		if err := l.session.FinishSuite(l.ctx, suite); err != nil {
			return err
		}
	}

	if attrs.ID == rootSuiteID {
		if l.cfg.LaunchUUID == "" && l.cfg.PoolURI == "" {
			if err := l.session.FinishLaunch(l.ctx, suite.Status); err != nil {
				return err
			}
		}
		l.session.Terminate()
	}
	return nil
}

// StartTest makes a new Test the current scope.
func (l *Listener) StartTest(name string, attrs events.TestAttrs) error {
	if _, err := l.currentSuite(); err != nil {
		return err
	}
	test := model.NewTest(name, attrs)
	l.test = test
	l.scope = test
	return nil
}

// EndTest finalizes the test, synthesizes its failure message (downgraded to
// a SKIP/WARN pair when the test was tagged skipped), appends it to the
// owning suite's buffer and pops the scope back to the suite.
func (l *Listener) EndTest(name string, attrs events.TestAttrs) error {
	test, err := l.currentTest()
	if err != nil {
		return err
	}
	test.Update(attrs)

	if attrs.Message != "" {
		level := "FAIL"
		if test.HasTag("skipped") {
			test.Status = model.StatusSkip
			level = "WARN"
		}
		msg, err := l.prepare(attrs.Message, level, test.End)
		if err != nil {
			return err
		}
		test.Message = msg
	}

	suite, err := l.currentSuite()
	if err != nil {
		return err
	}
	suite.Tests = append(suite.Tests, test)
	l.scope = suite
	return nil
}

// StartKeyword creates a Keyword under the current scope and attaches it:
// suite/test-level setups and teardowns occupy their parent's fixture slot,
// top-level plain steps join the parent's step sequence, and deeper keywords
// are tracked as scope only — their messages fold into the nearest buffering
// ancestor rather than producing items of their own.
func (l *Listener) StartKeyword(name string, attrs events.KeywordAttrs) error {
	parent, err := l.currentScope()
	if err != nil {
		return err
	}

	kw := model.NewKeyword(name, attrs, parent)
	l.scope = kw
	if kw.IsTopLevel() || kw.IsFixture() {
		l.keyword = kw
	}

	if kw.IsFixture() {
		if t, ok := parent.(*model.Test); ok {
			// Test tags ride along on the fixture so tag-driven policies
			// (retry-wrapper suppression) can see them.
			kw.Tags = t.Tags
		}
	}

	_, parentIsKeyword := parent.(*model.Keyword)
	_, parentIsSuite := parent.(*model.Suite)

	switch {
	case attrs.Type == events.KeywordTypeSetup && !parentIsKeyword:
		setFixture(parent, kw, true)
	case attrs.Type == events.KeywordTypeTeardown && !parentIsKeyword:
		setFixture(parent, kw, false)
	case kw.IsTopLevel() && !parentIsSuite:
		appendStep(parent, kw)
	}
	return nil
}

func setFixture(parent model.Scope, kw *model.Keyword, setup bool) {
	switch p := parent.(type) {
	case *model.Suite:
		if setup {
			p.Setup = kw
		} else {
			p.Teardown = kw
		}
	case *model.Test:
		if setup {
			p.Setup = kw
		} else {
			p.Teardown = kw
		}
	}
}

func appendStep(parent model.Scope, kw *model.Keyword) {
	switch p := parent.(type) {
	case *model.Test:
		p.Steps = append(p.Steps, kw)
	case *model.Keyword:
		p.Steps = append(p.Steps, kw)
	}
}

// EndKeyword finalizes the keyword. Fixture failures synthesize a message
// from the engine's last error; a skip directive in that error downgrades the
// fixture to SKIP with a WARN message. Suite-level fixtures replay eagerly:
// a suite without tests never reaches the buffered test-replay path, so
// waiting for it would lose the fixture entirely.
func (l *Listener) EndKeyword(name string, attrs events.KeywordAttrs) error {
	kw, ok := l.scope.(*model.Keyword)
	if !ok {
		return ErrNoKeyword
	}
	kw.Update(attrs)

	if kw.IsFixture() {
		lastError := attrs.LastError
		switch {
		case kw.Status == model.StatusFail:
			msg, err := l.prepare(lastError, "FAIL", kw.End)
			if err != nil {
				return err
			}
			kw.Messages = append(kw.Messages, msg)
		case lastError != "" && l.cfg.SkipMarker != "" && strings.Contains(lastError, l.cfg.SkipMarker):
			kw.Status = model.StatusSkip
			msg, err := l.prepare(lastError, "WARN", kw.End)
			if err != nil {
				return err
			}
			kw.Messages = append(kw.Messages, msg)
		}
	}

	if t := kw.ItemType(); t == "BEFORE_SUITE" || t == "AFTER_SUITE" {
		if err := l.replayFixture(kw); err != nil {
			return err
		}
	}

	l.scope = kw.Parent
	if p, ok := kw.Parent.(*model.Keyword); ok {
		l.keyword = p
	}
	return nil
}

// LogMessage buffers a raw log record against the current keyword. Records
// are dropped when the keyword is a nested helper (its top-level ancestor is
// the buffering target and is already current), when it is the retry wrapper
// (retry chatter), or at FAIL level (the failure message is synthesized from
// the engine's own error text at end-of-keyword instead, to avoid a
// duplicate).
func (l *Listener) LogMessage(rec events.LogRecord) error {
	kw, err := l.currentKeyword()
	if err != nil {
		return err
	}
	if !kw.IsTopLevel() && !kw.IsFixture() {
		return nil
	}
	if l.retryRe.MatchString(kw.Name) || rec.Level == "FAIL" {
		return nil
	}

	msg, err := l.prepare(rec.Message, rec.Level, rec.Timestamp.Time)
	if err != nil {
		return err
	}
	kw.Messages = append(kw.Messages, msg)
	return nil
}

// OutputFile records the engine's output file path for the report-link
// annotator.
func (l *Listener) OutputFile(path string) error {
	l.outputPath = path
	l.logger.Info("output file ready", "path", path)
	return nil
}

// Close tears down the session. Safe after an EndSuite that already did.
func (l *Listener) Close() error {
	l.session.Terminate()
	return nil
}

// prepare normalizes a raw message body into the wire shape, mapping the
// engine level to its remote severity and resolving screenshot references
// against the current keyword.
func (l *Listener) prepare(body, level string, ts time.Time) (*model.Message, error) {
	name := ""
	if l.keyword != nil {
		name = l.keyword.Name
	}
	return l.fmtr.Format(body, session.MapLevel(level), ts, name)
}
