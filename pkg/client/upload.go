package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"workflow/backend/internal/dto"
	apperrors "workflow/backend/pkg/errors"
)

// UploadState is how far a direct upload got.
type UploadState int

const (
	StateNew         UploadState = iota
	StateRequested               // upload target issued
	StateTransferred             // bytes stored, not yet parsed
	StateFinalized               // server parsed and saved the timetable
)

func (s UploadState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateRequested:
		return "requested"
	case StateTransferred:
		return "transferred"
	case StateFinalized:
		return "finalized"
	}
	return fmt.Sprintf("UploadState(%d)", int(s))
}

// UploadWorkflow records one timetable upload. A failure after
// StateRequested leaves the workflow where it stopped: the stored object,
// if any, is not cleaned up and nothing is retried.
type UploadWorkflow struct {
	FileName    string
	ContentType string
	ObjectName  string
	State       UploadState
	// Fallback is set when the presign step failed and the file went
	// through the multipart endpoint instead.
	Fallback bool
}

// UploadTimetable tries the three-step handshake (presign, PUT to storage,
// notify) and falls back to the multipart endpoint only when presign fails.
func (c *Client) UploadTimetable(ctx context.Context, sess *Session, fileName, contentType string, body io.Reader) (*dto.TimetableResponse, *UploadWorkflow, error) {
	if _, err := sess.bearer(c.now()); err != nil {
		return nil, nil, err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, nil, fmt.Errorf("read timetable file: %w", err)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	wf := &UploadWorkflow{FileName: fileName, ContentType: contentType}

	// 1. upload target
	var target dto.PresignResponse
	if err := c.do(ctx, sess, http.MethodPost, "/student/timetable/presign", dto.PresignRequest{FileName: fileName}, &target); err != nil {
		wf.Fallback = true
		out, ferr := c.uploadMultipart(ctx, sess, fileName, data)
		if ferr != nil {
			return nil, wf, ferr
		}
		wf.State = StateFinalized
		return out, wf, nil
	}
	wf.ObjectName = target.ObjectName
	wf.State = StateRequested

	// 2. bytes straight to storage
	if err := c.transfer(ctx, target.URL, contentType, data); err != nil {
		return nil, wf, err
	}
	wf.State = StateTransferred

	// 3. finalize
	var out dto.TimetableResponse
	if err := c.do(ctx, sess, http.MethodPost, "/student/timetable/notify", dto.NotifyRequest{ObjectName: target.ObjectName}, &out); err != nil {
		return nil, wf, err
	}
	wf.State = StateFinalized
	return &out, wf, nil
}

// transfer PUTs data to a presigned URL. The URL carries its own
// credentials, so no bearer token is sent.
func (c *Client) transfer(ctx context.Context, url, contentType string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build transfer request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = int64(len(data))

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.Upstream("transfer", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return apperrors.Upstream("transfer", fmt.Errorf("object store answered %s", resp.Status))
	}
	return nil
}

func (c *Client) uploadMultipart(ctx context.Context, sess *Session, fileName string, data []byte) (*dto.TimetableResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}

	var out dto.TimetableResponse
	if err := c.send(ctx, sess, http.MethodPost, "/student/timetable/upload", &buf, mw.FormDataContentType(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}
