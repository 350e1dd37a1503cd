package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	apiKeyHeader = "X-API-Key"

	formOriginal          = "original_doc"
	formOriginalFilename  = "original_filename"
	formReference         = "turnitin_pdf"
	formReferenceFilename = "turnitin_filename"
	formStrategy          = "strategy"

	defaultTimeout = 30 * time.Second

	maxResponseBytes = 1 << 20
)

// HTTPClient is the Client implementation speaking the engine REST API.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
}

func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:          100,
				IdleConnTimeout:       90 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
	}
}

type submitResponse struct {
	JobID     string `json:"job_id"`
	TaskID    string `json:"task_id"`
	StatusURL string `json:"status_url"`
}

type statusResponse struct {
	State    State    `json:"state"`
	Progress Progress `json:"progress"`
	Result   *Result  `json:"result"`
	Error    *string  `json:"error"`
}

func (c *HTTPClient) Submit(ctx context.Context, req SubmitRequest) (*Submission, error) {
	body, contentType, err := encodeSubmission(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jobs/process-document", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)

	bodyBytes, err := c.do(httpReq, false)
	if err != nil {
		return nil, err
	}

	var resp submitResponse
	if err := json.Unmarshal(bodyBytes, &resp); err != nil {
		return nil, errors.Wrapf(ErrRejected, "failed to decode submit response: %v", err)
	}

	jobID := resp.JobID
	if jobID == "" {
		jobID = resp.TaskID
	}
	if jobID == "" {
		return nil, errors.Wrap(ErrRejected, "submit response carries no job id")
	}

	return &Submission{JobID: jobID, StatusURL: resp.StatusURL}, nil
}

func (c *HTTPClient) Status(ctx context.Context, jobID string) (*JobStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/jobs/%s/status", c.baseURL, url.PathEscape(jobID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	bodyBytes, err := c.do(httpReq, true)
	if err != nil {
		return nil, err
	}

	var resp statusResponse
	if err := json.Unmarshal(bodyBytes, &resp); err != nil {
		return nil, errors.Wrapf(ErrRejected, "failed to decode status response: %v", err)
	}

	status := &JobStatus{
		JobID:    jobID,
		State:    resp.State.normalized(),
		Progress: resp.Progress,
		Result:   resp.Result,
		Raw:      bodyBytes,
	}
	if resp.Error != nil {
		status.Error = *resp.Error
	}
	return status, nil
}

func (c *HTTPClient) do(req *http.Request, jobLookup bool) ([]byte, error) {
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		zap.S().Named("engine_client").Debugw("engine call failed", "url", req.URL.String(), "error", err)
		return nil, errors.Wrapf(ErrUnreachable, "%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, errors.Wrapf(ErrUnreachable, "failed to read response body: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newStatusError(resp.StatusCode, string(bodyBytes), jobLookup)
	}
	if len(bodyBytes) > maxResponseBytes {
		return nil, errors.Wrapf(ErrRejected, "%s %s: response larger than %d bytes", req.Method, req.URL.Path, maxResponseBytes)
	}

	return bodyBytes, nil
}

func encodeSubmission(req SubmitRequest) (io.Reader, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	if err := writeFile(w, formOriginal, req.Original); err != nil {
		return nil, "", err
	}
	if err := w.WriteField(formOriginalFilename, req.Original.Name); err != nil {
		return nil, "", err
	}

	if req.Reference != nil {
		if err := writeFile(w, formReference, *req.Reference); err != nil {
			return nil, "", err
		}
		if err := w.WriteField(formReferenceFilename, req.Reference.Name); err != nil {
			return nil, "", err
		}
	}

	if req.Strategy != "" {
		if err := w.WriteField(formStrategy, req.Strategy); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

func writeFile(w *multipart.Writer, field string, f File) error {
	part, err := w.CreateFormFile(field, f.Name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f.Content); err != nil {
		return fmt.Errorf("failed to read %s: %w", field, err)
	}
	return nil
}
