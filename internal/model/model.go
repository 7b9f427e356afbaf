// Package model holds the in-memory representation of one run's hierarchy:
// suites containing tests containing keywords, plus the log messages buffered
// against them. Pure data and derived classification, no I/O.
package model

import (
	"strings"
	"time"

	"rfrelay/internal/events"
)

// Status is a test/suite/keyword outcome as reported by the engine. The zero
// value means the node has not finished yet.
type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
	StatusSkip Status = "SKIP"
)

// Remote item types understood by Report Portal.
const (
	ItemTypeSuite = "SUITE"
	ItemTypeTest  = "TEST"
	ItemTypeStep  = "STEP"
)

// maxItemNameLength is Report Portal's item-name length limit, in characters.
const maxItemNameLength = 256

// Scope is the tagged variant over the three node kinds a callback can be
// nested under. Dispatch on the concrete type, never on field inspection.
type Scope interface {
	scopeKind() string
}

func (*Suite) scopeKind() string   { return ItemTypeSuite }
func (*Test) scopeKind() string    { return ItemTypeTest }
func (*Keyword) scopeKind() string { return "KEYWORD" }

// Attachment is a binary payload carried by a log message.
type Attachment struct {
	Name string
	Data []byte
	MIME string
}

// Message is one normalized log record ready for transmission.
type Message struct {
	Time       time.Time
	Level      string
	Body       string
	Attachment *Attachment
}

// Suite is one grouping node of the run.
type Suite struct {
	Name        string
	LongName    string
	Doc         string
	Source      string
	ID          string
	ChildSuites []string
	TestNames   []string
	TotalTests  int
	Metadata    map[string]string

	Status     Status
	Message    *Message
	Statistics string
	Start      time.Time
	End        time.Time

	Setup    *Keyword
	Teardown *Keyword
	Tests    []*Test
}

// NewSuite builds a Suite from a suite-start payload.
func NewSuite(name string, attrs events.SuiteAttrs) *Suite {
	return &Suite{
		Name:        name,
		LongName:    attrs.LongName,
		Doc:         attrs.Doc,
		Source:      attrs.Source,
		ID:          attrs.ID,
		ChildSuites: attrs.Suites,
		TestNames:   attrs.Tests,
		TotalTests:  attrs.TotalTests,
		Metadata:    attrs.Metadata,
		Status:      Status(attrs.Status),
		Start:       attrs.StartTime.Time,
	}
}

// Update applies the fields present in a suite-end payload; absent fields are
// left untouched.
func (s *Suite) Update(attrs events.SuiteAttrs) {
	if attrs.Status != "" {
		s.Status = Status(attrs.Status)
	}
	if attrs.Statistics != "" {
		s.Statistics = attrs.Statistics
	}
	if !attrs.EndTime.IsZero() {
		s.End = attrs.EndTime.Time
	}
}

// HasTests reports whether the suite directly contains tests.
func (s *Suite) HasTests() bool { return len(s.TestNames) > 0 }

// ItemType classifies the suite for the remote hierarchy: a node directly
// containing tests is a TEST container, a pure grouping node is a SUITE.
func (s *Suite) ItemType() string {
	if s.HasTests() {
		return ItemTypeTest
	}
	return ItemTypeSuite
}

// Test is one leaf unit of verification.
type Test struct {
	Name     string
	LongName string
	Doc      string
	Template string
	ID       string
	Tags     []string

	Status  Status
	Message *Message
	Start   time.Time
	End     time.Time

	Setup    *Keyword
	Teardown *Keyword
	Steps    []*Keyword
}

// NewTest builds a Test from a test-start payload.
func NewTest(name string, attrs events.TestAttrs) *Test {
	return &Test{
		Name:     name,
		LongName: attrs.LongName,
		Doc:      attrs.Doc,
		Template: attrs.Template,
		ID:       attrs.ID,
		Tags:     attrs.Tags,
		Status:   Status(attrs.Status),
		Start:    attrs.StartTime.Time,
	}
}

// Update applies the fields present in a test-end payload. Tags are replaced
// when present: teardown-time tag edits must retroactively apply.
func (t *Test) Update(attrs events.TestAttrs) {
	if attrs.Status != "" {
		t.Status = Status(attrs.Status)
	}
	if attrs.Tags != nil {
		t.Tags = attrs.Tags
	}
	if !attrs.EndTime.IsZero() {
		t.End = attrs.EndTime.Time
	}
}

// HasTag reports whether the test carries the given tag.
func (t *Test) HasTag(tag string) bool {
	for _, v := range t.Tags {
		if v == tag {
			return true
		}
	}
	return false
}

// Keyword is one executable step: a plain body step or a setup/teardown
// fixture, possibly containing nested keywords. Parent is the lexical
// enclosing scope at creation time and never changes afterwards; ownership
// runs strictly top-down, the parent link is a non-owning back-reference.
type Keyword struct {
	Name        string
	KwName      string
	LibName     string
	Doc         string
	Tags        []string
	Args        []string
	Assign      []string
	FixtureType string
	Parent      Scope

	Status   Status
	Start    time.Time
	End      time.Time
	Messages []*Message
	Steps    []*Keyword

	itemType string
}

// NewKeyword builds a Keyword from a keyword-start payload, attached under
// parent. The remote item type is derived here, once: both inputs it depends
// on are fixed for the keyword's lifetime.
func NewKeyword(name string, attrs events.KeywordAttrs, parent Scope) *Keyword {
	k := &Keyword{
		Name:        name,
		KwName:      attrs.KwName,
		LibName:     attrs.LibName,
		Doc:         attrs.Doc,
		Tags:        attrs.Tags,
		Args:        attrs.Args,
		Assign:      attrs.Assign,
		FixtureType: attrs.Type,
		Parent:      parent,
		Status:      Status(attrs.Status),
		Start:       attrs.StartTime.Time,
	}
	k.itemType = deriveItemType(k.FixtureType, parent)
	return k
}

func deriveItemType(fixtureType string, parent Scope) string {
	switch fixtureType {
	case events.KeywordTypeSetup:
		return "BEFORE_" + parent.scopeKind()
	case events.KeywordTypeTeardown:
		return "AFTER_" + parent.scopeKind()
	default:
		return ItemTypeStep
	}
}

// Update applies the fields present in a keyword-end payload.
func (k *Keyword) Update(attrs events.KeywordAttrs) {
	if attrs.Status != "" {
		k.Status = Status(attrs.Status)
	}
	if !attrs.EndTime.IsZero() {
		k.End = attrs.EndTime.Time
	}
}

// ItemType returns the remote item type: BEFORE_/AFTER_<parent kind> for
// fixtures, STEP for plain steps.
func (k *Keyword) ItemType() string { return k.itemType }

// IsFixture reports whether the keyword is a setup or teardown.
func (k *Keyword) IsFixture() bool { return k.itemType != ItemTypeStep }

// IsTopLevel reports whether the keyword is the outermost visible plain step
// inside a fixture or test body. Steps nested below that level are not
// reported as items of their own; their messages bubble up.
func (k *Keyword) IsTopLevel() bool {
	if k.IsFixture() {
		return false
	}
	if p, ok := k.Parent.(*Keyword); ok {
		return p.IsFixture()
	}
	return true
}

// DisplayName composes "<assignments> = <name> (<args>)" truncated to the
// remote item-name limit, using the bare keyword name without the library
// prefix. Computed fresh on every call: the inputs are fixed at creation but
// the limit must hold at use time.
func (k *Keyword) DisplayName() string {
	name := k.KwName
	if name == "" {
		name = k.Name
	}
	var b strings.Builder
	if len(k.Assign) > 0 {
		b.WriteString(strings.Join(k.Assign, ", "))
		b.WriteString(" = ")
	}
	b.WriteString(name)
	b.WriteString(" (")
	b.WriteString(strings.Join(k.Args, ", "))
	b.WriteString(")")
	return TruncateRunes(b.String(), maxItemNameLength)
}

// TruncateRunes cuts s to at most n characters (code points, not bytes).
func TruncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
