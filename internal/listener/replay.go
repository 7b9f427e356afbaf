package listener

import (
	"rfrelay/internal/model"
)

// testError resolves the message that should describe a test's outcome once
// its suite has ended. A failed suite setup means no test body ever ran, so
// every test inherits the suite's message verbatim. A failed suite teardown
// happened after the tests, so the suite's message is appended to whatever
// the test itself reported, on a copy so sibling tests don't share state.
// Otherwise the test's own message stands.
func (l *Listener) testError(suite *model.Suite, test *model.Test) *model.Message {
	if suite.Setup != nil && suite.Setup.Status == model.StatusFail {
		return suite.Message
	}
	if suite.Teardown != nil && suite.Teardown.Status == model.StatusFail {
		if test.Message == nil {
			return suite.Message
		}
		if suite.Message == nil {
			return test.Message
		}
		combined := *test.Message
		combined.Body = test.Message.Body + "\n\n" + suite.Message.Body
		return &combined
	}
	return test.Message
}

// replayTests streams the suite's buffered tests to the remote in original
// order. A test with a setup fixture is opened twice: once at its true start
// so the setup keyword nests under it, and again with the start time shifted
// to the setup's end so the reported test duration excludes fixture time.
// The teardown is replayed after the test item is closed, then the item is
// finished once more to settle its final status.
func (l *Listener) replayTests(suite *model.Suite) error {
	for _, test := range suite.Tests {
		errMsg := l.testError(suite, test)
		if errMsg != nil {
			if test.Status != model.StatusSkip {
				test.Status = model.StatusFail
			}
			if l.cfg.StackTraceDescription {
				test.Doc += "\n```error\n" + errMsg.Body + "\n```"
			}
		}
		l.stats[test.Status]++

		var trailing []*model.Message
		if errMsg != nil {
			trailing = append(trailing, errMsg)
		}

		if err := l.session.StartTest(l.ctx, test); err != nil {
			return err
		}
		if test.Setup != nil || test.Teardown != nil {
			if err := l.replayFixture(test.Setup); err != nil {
				return err
			}
			if test.Setup != nil {
				test.Start = test.Setup.End
			}
			if err := l.session.StartTest(l.ctx, test); err != nil {
				return err
			}
			if err := l.replaySteps(test.Steps, trailing); err != nil {
				return err
			}
			if err := l.session.FinishTest(l.ctx, test); err != nil {
				return err
			}
			if err := l.replayFixture(test.Teardown); err != nil {
				return err
			}
		} else if err := l.replaySteps(test.Steps, trailing); err != nil {
			return err
		}
		if err := l.session.FinishTest(l.ctx, test); err != nil {
			return err
		}
	}
	return nil
}

// replaySteps flattens top-level steps into a single log batch: an INFO
// marker naming each step at its start time, followed by the messages that
// folded into it, with any trailing messages (the test's resolved error)
// last.
func (l *Listener) replaySteps(steps []*model.Keyword, trailing []*model.Message) error {
	msgs := make([]*model.Message, 0, len(steps)+len(trailing))
	for _, step := range steps {
		msgs = append(msgs, &model.Message{
			Time:  step.Start,
			Level: "INFO",
			Body:  step.DisplayName(),
		})
		msgs = append(msgs, step.Messages...)
	}
	msgs = append(msgs, trailing...)
	return l.session.Log(l.ctx, msgs)
}

// replayFixture streams a completed setup or teardown keyword as its own
// remote item. When the fixture contains top-level steps of its own, they
// are flattened the same way as a test body and the fixture's ERROR-level
// messages trail them; otherwise the fixture's buffer is sent directly.
// A nil fixture is a no-op so callers can pass absent slots through.
func (l *Listener) replayFixture(kw *model.Keyword) error {
	if kw == nil {
		return nil
	}
	if err := l.session.StartKeyword(l.ctx, kw); err != nil {
		return err
	}
	if len(kw.Steps) > 0 {
		var trailing []*model.Message
		for _, m := range kw.Messages {
			if m.Level == "ERROR" {
				trailing = append(trailing, m)
			}
		}
		if err := l.replaySteps(kw.Steps, trailing); err != nil {
			return err
		}
	} else if err := l.session.Log(l.ctx, kw.Messages); err != nil {
		return err
	}
	return l.session.FinishKeyword(l.ctx, kw)
}
