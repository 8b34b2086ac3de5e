package jobapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"genmedia-studio/internal/domain"
	"genmedia-studio/internal/domain/model"
	"genmedia-studio/internal/domain/ports/adapter"
	"genmedia-studio/internal/infra/logging"
	"genmedia-studio/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ adapter.JobAPI = (*Client)(nil)

// CredentialSource yields the API key used for every request.
type CredentialSource interface {
	Credential(ctx context.Context) (string, error)
}

type Config struct {
	BaseURL            string
	CreateTimeout      time.Duration
	QueryTimeout       time.Duration
	UploadTimeout      time.Duration
	BatchUploadTimeout time.Duration
	// Endpoints overrides the create path per kind.
	Endpoints map[string]string
	// UploadPath defaults to /media/upload.
	UploadPath string
}

var defaultEndpoints = map[model.Kind]string{
	model.KindTextToVideo:  "/rhart-video-s/text-to-video",
	model.KindImageToVideo: "/rhart-video-s/image-to-video",
	model.KindImageToImage: "/rhart-image-n-pro/edit",
}

const (
	queryPath         = "/query"
	defaultUploadPath = "/media/upload"
)

// Client talks to the remote generation REST API. It never retries.
type Client struct {
	cfg   Config
	creds CredentialSource
	http  *http.Client
	log   *zerolog.Logger
}

func NewClient(cfg Config, creds CredentialSource, hc *http.Client, logger *zerolog.Logger) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.UploadPath == "" {
		cfg.UploadPath = defaultUploadPath
	}
	return &Client{cfg: cfg, creds: creds, http: hc, log: logging.Component(logger, "JobAPI")}
}

func (c *Client) endpoint(kind model.Kind) string {
	if p, ok := c.cfg.Endpoints[string(kind)]; ok && p != "" {
		return p
	}
	return defaultEndpoints[kind]
}

// createBody shapes the request per kind.
func createBody(kind model.Kind, p model.GenerationParams) map[string]any {
	body := map[string]any{"prompt": p.Prompt}
	switch kind {
	case model.KindTextToVideo:
		body["duration"] = p.Duration
		body["aspectRatio"] = p.AspectRatio
		body["storyboard"] = false
	case model.KindImageToVideo:
		body["duration"] = p.Duration
		body["aspectRatio"] = p.AspectRatio
		body["imageUrl"] = p.ImageURLs[0]
	case model.KindImageToImage:
		body["imageUrls"] = p.ImageURLs
		if p.AspectRatio != "" {
			body["aspectRatio"] = p.AspectRatio
		}
		if p.Resolution != "" {
			body["resolution"] = p.Resolution
		}
	}
	return body
}

type createResponse struct {
	TaskID       string     `json:"taskId"`
	Status       string     `json:"status"`
	ErrorCode    flexString `json:"errorCode"`
	ErrorMessage string     `json:"errorMessage"`
	Msg          string     `json:"msg"`
}

type queryResponse struct {
	TaskID       string     `json:"taskId"`
	Status       string     `json:"status"`
	ErrorCode    flexString `json:"errorCode"`
	ErrorMessage string     `json:"errorMessage"`
	FailedReason *struct {
		ExceptionMessage string `json:"exception_message"`
	} `json:"failedReason"`
	Results []struct {
		URL        string `json:"url"`
		OutputType string `json:"outputType"`
	} `json:"results"`
	Usage *struct {
		ConsumeMoney flexString `json:"consumeMoney"`
		ConsumeCoins flexString `json:"consumeCoins"`
		TaskCostTime flexString `json:"taskCostTime"`
	} `json:"usage"`
	Prompt string `json:"prompt"`
	Msg    string `json:"msg"`
}

// CreateJob validates params locally, then submits one job.
func (c *Client) CreateJob(ctx context.Context, kind model.Kind, params model.GenerationParams) (adapter.CreatedJob, error) {
	params = params.WithDefaults(kind)
	if err := params.Validate(kind); err != nil {
		return adapter.CreatedJob{}, err
	}
	key, err := c.credential(ctx)
	if err != nil {
		return adapter.CreatedJob{}, err
	}

	started := time.Now()
	var resp createResponse
	err = c.postJSON(ctx, c.cfg.CreateTimeout, c.endpoint(kind), key, createBody(kind, params), &resp)
	if err == nil {
		if code := string(resp.ErrorCode); code != "" {
			err = codeError(code, firstNonEmpty(resp.ErrorMessage, resp.Msg))
		} else if resp.TaskID == "" {
			err = fmt.Errorf("%w: response carried no taskId", domain.ErrNetwork)
		}
	}
	metrics.ObserveJobAPI("create", started, err == nil)
	if err != nil {
		c.log.Warn().Err(err).Str("kind", string(kind)).Str("api_key", logging.Redact(key)).Msg("create job failed")
		return adapter.CreatedJob{}, err
	}
	c.log.Debug().Str("kind", string(kind)).Str("job_id", resp.TaskID).Str("status", resp.Status).Msg("job created")
	return adapter.CreatedJob{JobID: resp.TaskID, Status: resp.Status}, nil
}

// QueryJob fetches one status snapshot. A remote error code reported
// together with a status is returned in FailureReason, not as an error.
func (c *Client) QueryJob(ctx context.Context, jobID string) (adapter.JobQuery, error) {
	if strings.TrimSpace(jobID) == "" {
		return adapter.JobQuery{}, domain.Validationf("job id is required")
	}
	key, err := c.credential(ctx)
	if err != nil {
		return adapter.JobQuery{}, err
	}

	started := time.Now()
	var resp queryResponse
	err = c.postJSON(ctx, c.cfg.QueryTimeout, queryPath, key, map[string]string{"taskId": jobID}, &resp)
	if err == nil && resp.Status == "" {
		if code := string(resp.ErrorCode); code != "" {
			err = codeError(code, firstNonEmpty(resp.ErrorMessage, resp.Msg))
		} else {
			err = fmt.Errorf("%w: response carried no status", domain.ErrNetwork)
		}
	}
	metrics.ObserveJobAPI("query", started, err == nil)
	if err != nil {
		return adapter.JobQuery{}, err
	}

	q := adapter.JobQuery{
		JobID:  firstNonEmpty(resp.TaskID, jobID),
		Status: strings.ToUpper(resp.Status),
		Prompt: resp.Prompt,
	}
	for _, r := range resp.Results {
		q.Results = append(q.Results, adapter.JobResult{URL: r.URL, OutputType: r.OutputType})
	}
	if resp.Usage != nil {
		q.Usage = &model.Usage{
			ConsumeMoney: string(resp.Usage.ConsumeMoney),
			ConsumeCoins: string(resp.Usage.ConsumeCoins),
			TaskCostTime: string(resp.Usage.TaskCostTime),
		}
	}
	if code := string(resp.ErrorCode); code != "" {
		q.FailureReason = fmt.Sprintf("%s (%s)", firstNonEmpty(resp.ErrorMessage, "remote error"), code)
	} else if resp.FailedReason != nil && resp.FailedReason.ExceptionMessage != "" {
		q.FailureReason = resp.FailedReason.ExceptionMessage
	}
	return q, nil
}

type uploadResponse struct {
	Code int        `json:"code"`
	Msg  string     `json:"msg"`
	Data uploadData `json:"data"`
	// Some deployments answer with the url at the top level.
	DownloadURL string `json:"download_url"`
}

type uploadData struct {
	DownloadURL string `json:"download_url"`
	FileName    string `json:"fileName"`
}

// UploadMedia uploads files one by one and returns their hosted URLs.
// Multi-file uploads share the longer batch deadline.
func (c *Client) UploadMedia(ctx context.Context, files ...adapter.MediaFile) ([]string, error) {
	if len(files) == 0 {
		return nil, domain.Validationf("no files to upload")
	}
	key, err := c.credential(ctx)
	if err != nil {
		return nil, err
	}
	timeout := c.cfg.UploadTimeout
	if len(files) > 1 {
		timeout = c.cfg.BatchUploadTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	urls := make([]string, 0, len(files))
	for _, f := range files {
		started := time.Now()
		u, err := c.uploadOne(ctx, key, f)
		metrics.ObserveJobAPI("upload", started, err == nil)
		if err != nil {
			return nil, fmt.Errorf("upload %s: %w", f.Name, err)
		}
		urls = append(urls, u)
	}
	return urls, nil
}

func (c *Client) uploadOne(ctx context.Context, key string, f adapter.MediaFile) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, f.Name))
	ct := f.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	part, err := mw.CreatePart(h)
	if err != nil {
		return "", fmt.Errorf("failed to create multipart part: %w", err)
	}
	if _, err := io.Copy(part, f.Data); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+c.cfg.UploadPath, &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+key)

	var resp uploadResponse
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	if resp.Code != 0 && resp.Code != 200 {
		return "", codeError(fmt.Sprint(resp.Code), resp.Msg)
	}
	u := firstNonEmpty(resp.Data.DownloadURL, resp.DownloadURL)
	if u == "" {
		return "", fmt.Errorf("%w: upload response carried no url", domain.ErrNetwork)
	}
	return u, nil
}

func (c *Client) credential(ctx context.Context) (string, error) {
	if c.creds == nil {
		return "", domain.ErrCredentialMissing
	}
	key, err := c.creds.Credential(ctx)
	if err != nil {
		return "", err
	}
	if err := model.ValidateCredential(key); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrAuth, err)
	}
	return key, nil
}

func (c *Client) postJSON(ctx context.Context, timeout time.Duration, path, key string, in, out any) error {
	jsonData, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request data: %w", err)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)
	return c.do(req, out)
}

// do sends req and decodes a 2xx JSON body into out.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: failed to unmarshal response: %v, body: %s", domain.ErrNetwork, err, truncate(string(body), 200))
	}
	return nil
}

func transportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: request timed out: %v", domain.ErrNetwork, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrNetwork, err)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
