package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/forPelevin/tredit/internal/types"
)

const (
	DefaultRequestTimeout = 90 * time.Second

	requestIDHeader = "X-Request-ID"
	maxErrorBody    = 400
)

type Options struct {
	BaseURL        string
	Token          string
	RequestTimeout time.Duration
	Logger         *logrus.Logger
	// Client overrides the HTTP client. Its Jar is replaced when nil.
	Client *http.Client
}

// Adapter talks to the transcription backend. The backend keys editing
// state by session cookie, so the adapter keeps a cookie jar for its lifetime.
type Adapter struct {
	baseURL string
	token   string
	timeout time.Duration
	client  *http.Client
	log     *logrus.Logger
	v       *validator.Validate
}

func New(o Options) (*Adapter, error) {
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	client := o.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	if client.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		client.Jar = jar
	}
	return &Adapter{
		baseURL: normalizeBaseURL(o.BaseURL),
		token:   o.Token,
		timeout: o.RequestTimeout,
		client:  client,
		log:     o.Logger,
		v:       validator.New(),
	}, nil
}

func (a *Adapter) Transcribe(ctx context.Context, sourceURL, prompt string) (types.Transcription, error) {
	form := url.Values{}
	form.Set("youtube_url", sourceURL)
	if prompt != "" {
		form.Set("prompt", prompt)
	}
	b, err := a.do(ctx, "transcribe", http.MethodPost, "/transcribe",
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return types.Transcription{}, err
	}
	var out struct {
		types.Transcription
		Error string `json:"error"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return types.Transcription{}, fmt.Errorf("transcribe: decode response: %w", err)
	}
	if out.Error != "" {
		return types.Transcription{}, &types.ApplicationError{Op: "transcribe", Message: out.Error}
	}
	return out.Transcription, nil
}

func (a *Adapter) CachedSession(ctx context.Context) (types.CachedSession, bool, error) {
	b, err := a.do(ctx, "get_cached_transcription", http.MethodGet, "/get_cached_transcription", nil, "")
	if err != nil {
		var ae *types.ApplicationError
		if errors.As(err, &ae) && ae.Status == http.StatusNotFound {
			return types.CachedSession{}, false, nil
		}
		return types.CachedSession{}, false, err
	}
	var out types.CachedSession
	if err := json.Unmarshal(b, &out); err != nil {
		return types.CachedSession{}, false, fmt.Errorf("get_cached_transcription: decode response: %w", err)
	}
	return out, out.Transcription != nil, nil
}

func (a *Adapter) UpdateSegment(ctx context.Context, req types.UpdateSegmentRequest) error {
	_, err := a.postJSON(ctx, "update_segment", req)
	return err
}

func (a *Adapter) AddSegment(ctx context.Context, req types.AddSegmentRequest) (types.Replacement, error) {
	env, err := a.postJSON(ctx, "add_segment", req)
	if err != nil {
		return types.Replacement{}, err
	}
	return replacement("add_segment", env)
}

func (a *Adapter) RemoveSegment(ctx context.Context, index int) (types.Replacement, error) {
	env, err := a.postJSON(ctx, "remove_segment", types.RemoveSegmentRequest{Index: index})
	if err != nil {
		return types.Replacement{}, err
	}
	return replacement("remove_segment", env)
}

func (a *Adapter) SortSegments(ctx context.Context) (types.Replacement, error) {
	env, err := a.postJSON(ctx, "sort_segments", nil)
	if err != nil {
		return types.Replacement{}, err
	}
	return replacement("sort_segments", env)
}

func (a *Adapter) RetranscribeSegment(ctx context.Context, req types.RetranscribeRequest) (types.Segment, error) {
	env, err := a.postJSON(ctx, "retranscribe_segment", req)
	if err != nil {
		return types.Segment{}, err
	}
	if env.Segment == nil {
		return types.Segment{}, &types.ApplicationError{Op: "retranscribe_segment", Message: "response has no segment"}
	}
	return *env.Segment, nil
}

func (a *Adapter) Download(ctx context.Context, f types.Format) ([]byte, error) {
	op := "download_" + string(f)
	return a.do(ctx, op, http.MethodGet, "/"+op, nil, "")
}

func replacement(op string, env types.Envelope) (types.Replacement, error) {
	if env.Transcription == nil {
		return types.Replacement{}, &types.ApplicationError{Op: op, Message: "response has no transcription"}
	}
	return types.Replacement{Transcription: *env.Transcription, IsSorted: env.IsSorted}, nil
}

// postJSON sends body as JSON to /op and requires success:true back.
func (a *Adapter) postJSON(ctx context.Context, op string, body any) (types.Envelope, error) {
	var rd io.Reader
	if body != nil {
		if err := a.v.Struct(body); err != nil {
			return types.Envelope{}, fmt.Errorf("%s: invalid request: %w", op, err)
		}
		b, err := json.Marshal(body)
		if err != nil {
			return types.Envelope{}, fmt.Errorf("%s: marshal request: %w", op, err)
		}
		rd = bytes.NewReader(b)
	}

	rb, err := a.do(ctx, op, http.MethodPost, "/"+op, rd, "application/json")
	if err != nil {
		return types.Envelope{}, err
	}
	var env types.Envelope
	if err := json.Unmarshal(rb, &env); err != nil {
		return types.Envelope{}, fmt.Errorf("%s: decode response: %w", op, err)
	}
	if !env.Success || env.Error != "" {
		msg := env.Error
		if msg == "" {
			msg = "backend reported failure"
		}
		return types.Envelope{}, &types.ApplicationError{Op: op, Message: msg}
	}
	return env, nil
}

// do performs one request and returns the body of a 2xx response.
func (a *Adapter) do(ctx context.Context, op, method, path string, body io.Reader, contentType string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, a.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	reqID := uuid.NewString()
	req.Header.Set(requestIDHeader, reqID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	log := a.log.WithFields(logrus.Fields{"op": op, "request_id": reqID})
	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		log.WithError(err).Warn("backend request failed")
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s: %w: timeout after %s", op, types.ErrNetwork, a.timeout)
		}
		return nil, fmt.Errorf("%s: %w: %s", op, types.ErrNetwork, redactSecrets(err.Error(), a.token))
	}
	defer resp.Body.Close()

	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: read body: %v", op, types.ErrNetwork, err)
	}
	log.WithFields(logrus.Fields{
		"status":     resp.StatusCode,
		"latency_ms": time.Since(start).Milliseconds(),
	}).Debug("backend request done")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &types.ApplicationError{Op: op, Status: resp.StatusCode, Message: errorMessage(rb, a.token)}
	}
	return rb, nil
}

// errorMessage prefers the JSON error field and falls back to the raw body.
func errorMessage(body []byte, token string) string {
	var env struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err == nil && env.Error != "" {
		return truncate(redactSecrets(env.Error, token), maxErrorBody)
	}
	s := strings.TrimSpace(string(body))
	if s == "" {
		return "empty response"
	}
	return truncate(redactSecrets(s, token), maxErrorBody)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var (
	bearerTokenRE = regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._-]+\b`)
	authHeaderRE  = regexp.MustCompile(`(?i)(authorization\s*[:=]\s*)([^\n\r,;]+)`)
)

func redactSecrets(s, token string) string {
	if s == "" {
		return s
	}
	out := s
	if token != "" {
		out = strings.ReplaceAll(out, token, "[REDACTED]")
	}
	out = bearerTokenRE.ReplaceAllString(out, "Bearer [REDACTED]")
	out = authHeaderRE.ReplaceAllString(out, "${1}[REDACTED]")
	return out
}
