// Package message normalizes raw engine log records into the wire log shape:
// screenshot references become binary attachments, collapsed-details HTML is
// unwrapped into plain text, and oversized bodies are truncated.
package message

import (
	"fmt"
	"html"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/acarl005/stripansi"

	"rfrelay/internal/model"
)

// MaxMessageLength is the longest message body sent to Report Portal, in
// characters. Longer bodies are cut and marked with a trailing "..".
const MaxMessageLength = 8 << 20

const defaultMIME = "application/octet-stream"

var (
	screenshotRe = regexp.MustCompile(`<img src="([_/.\-\w]*)"`)
	detailsRe    = regexp.MustCompile(`(?s)\A<details><summary>(.*)</summary><p>(.*)</p></details>\z`)
)

// Formatter turns raw log bodies into model.Message records. OutputDir is the
// engine's output directory; relative screenshot paths resolve against it.
type Formatter struct {
	OutputDir string
}

// Format normalizes one raw log record. keywordName is the display name of
// the keyword the record belongs to, used when replacing a screenshot
// reference. A screenshot file that cannot be read is a hard error: an
// unresolvable reference means the run and the output directory disagree.
func (f *Formatter) Format(body, level string, ts time.Time, keywordName string) (*model.Message, error) {
	body = stripansi.Strip(body)

	if m := screenshotRe.FindStringSubmatch(body); m != nil {
		att, err := f.attachment(m[1])
		if err != nil {
			return nil, err
		}
		return &model.Message{
			Time:       ts,
			Level:      level,
			Body:       fmt.Sprintf("Screenshot in the keyword %q", keywordName),
			Attachment: att,
		}, nil
	}

	body = unwrapDetails(body)
	return &model.Message{
		Time:  ts,
		Level: level,
		Body:  Truncate(body, MaxMessageLength),
	}, nil
}

func (f *Formatter) attachment(path string) (*model.Attachment, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(f.OutputDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read screenshot: %w", err)
	}
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = defaultMIME
	}
	return &model.Attachment{
		Name: filepath.Base(path),
		Data: data,
		MIME: mimeType,
	}, nil
}

// unwrapDetails flattens a <details><summary>S</summary><p>M</p></details>
// body into plain text: S is prepended unless M already starts with it, and
// HTML entities are unescaped. Anything not matching the exact shape passes
// through untouched.
func unwrapDetails(body string) string {
	m := detailsRe.FindStringSubmatch(body)
	if m == nil {
		return body
	}
	summary, msg := m[1], m[2]
	if len(msg) < len(summary) || msg[:len(summary)] != summary {
		msg = summary + "\n" + msg
	}
	return html.UnescapeString(msg)
}

// Truncate cuts s to at most max characters, appending ".." when anything
// was cut.
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return model.TruncateRunes(s, max) + ".."
}
