package message

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var someTime = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func TestFormat_Passthrough(t *testing.T) {
	f := &Formatter{}
	msg, err := f.Format("plain text", "INFO", someTime, "Lib.Do")
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if msg.Body != "plain text" || msg.Level != "INFO" || !msg.Time.Equal(someTime) {
		t.Errorf("unexpected message: %+v", msg)
	}
	if msg.Attachment != nil {
		t.Error("plain text should carry no attachment")
	}
}

func TestFormat_StripsANSI(t *testing.T) {
	f := &Formatter{}
	msg, err := f.Format("\x1b[31mred alert\x1b[0m", "WARN", someTime, "Lib.Do")
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if msg.Body != "red alert" {
		t.Errorf("Body = %q, want ANSI codes removed", msg.Body)
	}
}

func TestFormat_DetailsUnwrap(t *testing.T) {
	f := &Formatter{}
	body := "<details><summary>Timeout</summary><p>details here</p></details>"
	msg, err := f.Format(body, "INFO", someTime, "Lib.Do")
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if msg.Body != "Timeout\ndetails here" {
		t.Errorf("Body = %q, summary must be prepended", msg.Body)
	}
}

func TestFormat_DetailsSummaryIsPrefix(t *testing.T) {
	f := &Formatter{}
	body := "<details><summary>Error</summary><p>Error: details here</p></details>"
	msg, err := f.Format(body, "INFO", someTime, "Lib.Do")
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if msg.Body != "Error: details here" {
		t.Errorf("Body = %q, a message starting with the summary must not repeat it", msg.Body)
	}
}

func TestFormat_DetailsSummaryAlreadyPresent(t *testing.T) {
	f := &Formatter{}
	body := "<details><summary>Error: details</summary><p>Error: details here &gt; 5</p></details>"
	msg, err := f.Format(body, "INFO", someTime, "Lib.Do")
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if msg.Body != "Error: details here > 5" {
		t.Errorf("Body = %q, summary must not be duplicated and entities must unescape", msg.Body)
	}
}

func TestFormat_DetailsPartialNoMatch(t *testing.T) {
	f := &Formatter{}
	body := "prefix <details><summary>S</summary><p>M</p></details>"
	msg, err := f.Format(body, "INFO", someTime, "Lib.Do")
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if msg.Body != body {
		t.Errorf("non-full-match bodies must pass through, got %q", msg.Body)
	}
}

func TestFormat_Screenshot(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "shot.png"), []byte{0x89, 0x50}, 0o644); err != nil {
		t.Fatal(err)
	}

	f := &Formatter{OutputDir: dir}
	msg, err := f.Format(`<img src="shot.png">`, "INFO", someTime, "Open Page")
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if msg.Body != `Screenshot in the keyword "Open Page"` {
		t.Errorf("Body = %q", msg.Body)
	}
	if msg.Attachment == nil {
		t.Fatal("expected attachment")
	}
	if msg.Attachment.Name != "shot.png" {
		t.Errorf("attachment name = %q", msg.Attachment.Name)
	}
	if !strings.HasPrefix(msg.Attachment.MIME, "image/png") {
		t.Errorf("attachment MIME = %q", msg.Attachment.MIME)
	}
	if len(msg.Attachment.Data) != 2 {
		t.Errorf("attachment data length = %d", len(msg.Attachment.Data))
	}
}

func TestFormat_ScreenshotUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "dump.unknownext"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	f := &Formatter{OutputDir: dir}
	msg, err := f.Format(`<img src="dump.unknownext">`, "INFO", someTime, "Kw")
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if msg.Attachment.MIME != "application/octet-stream" {
		t.Errorf("MIME = %q, want octet-stream fallback", msg.Attachment.MIME)
	}
}

func TestFormat_ScreenshotMissingFile(t *testing.T) {
	f := &Formatter{OutputDir: t.TempDir()}
	_, err := f.Format(`<img src="gone.png">`, "INFO", someTime, "Kw")
	if err == nil {
		t.Fatal("an unreadable screenshot reference must be a hard error")
	}
}

func TestTruncate_Boundary(t *testing.T) {
	exact := strings.Repeat("a", MaxMessageLength)
	if got := Truncate(exact, MaxMessageLength); got != exact {
		t.Error("a body at the limit must pass through unchanged")
	}

	over := strings.Repeat("a", MaxMessageLength+2)
	got := Truncate(over, MaxMessageLength)
	if len([]rune(got)) != MaxMessageLength+2 {
		t.Fatalf("truncated length = %d", len([]rune(got)))
	}
	if !strings.HasSuffix(got, "..") {
		t.Error("truncated body must end with ..")
	}
	if got[:MaxMessageLength] != over[:MaxMessageLength] {
		t.Error("truncation must keep the first MaxMessageLength characters")
	}
}
