package rp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/textproto"
)

// jsonRequestPart is the multipart part name the batch log endpoint expects
// for the JSON payload describing the records.
const jsonRequestPart = "json_request_part"

// LogScope submits log records within a project.
type LogScope struct {
	project *ProjectScope
}

// AttachmentPart carries the bytes of one attachment referenced by a
// SaveLogRQ's File locator. Name must match the locator.
type AttachmentPart struct {
	Name string
	MIME string
	Data []byte
}

// Save submits a single plain log record.
func (s *LogScope) Save(ctx context.Context, rq SaveLogRQ) error {
	u := fmt.Sprintf("%s/api/v1/%s/log",
		s.project.client.baseURL, s.project.projectName)

	payload, err := json.Marshal(rq)
	if err != nil {
		return fmt.Errorf("save log: marshal: %w", err)
	}

	return s.project.client.doJSON(ctx, "POST", u, "save log", bytes.NewReader(payload), nil)
}

// SaveBatch submits a batch of log records in one multipart request, with
// attachment bytes carried as separate binary parts.
func (s *LogScope) SaveBatch(ctx context.Context, rqs []SaveLogRQ, attachments []AttachmentPart) error {
	if len(rqs) == 0 {
		return nil
	}
	u := fmt.Sprintf("%s/api/v1/%s/log",
		s.project.client.baseURL, s.project.projectName)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	jsonHeader := textproto.MIMEHeader{}
	jsonHeader.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name=%q`, jsonRequestPart))
	jsonHeader.Set("Content-Type", "application/json")
	part, err := mw.CreatePart(jsonHeader)
	if err != nil {
		return fmt.Errorf("save log batch: create json part: %w", err)
	}
	if err := json.NewEncoder(part).Encode(rqs); err != nil {
		return fmt.Errorf("save log batch: encode json part: %w", err)
	}

	for _, att := range attachments {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="file"; filename=%q`, att.Name))
		if att.MIME != "" {
			header.Set("Content-Type", att.MIME)
		}
		filePart, err := mw.CreatePart(header)
		if err != nil {
			return fmt.Errorf("save log batch: create file part: %w", err)
		}
		if _, err := filePart.Write(att.Data); err != nil {
			return fmt.Errorf("save log batch: write file part: %w", err)
		}
	}

	if err := mw.Close(); err != nil {
		return fmt.Errorf("save log batch: close multipart: %w", err)
	}

	s.project.logger().DebugContext(ctx, "submitting log batch",
		"records", len(rqs), "attachments", len(attachments))

	return s.project.client.do(ctx, "POST", u, "save log batch", &body, mw.FormDataContentType(), nil)
}
