package auc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"glass/internal/logging"
	"glass/internal/media/ffprobe"
	"glass/internal/services"
)

const stageName = "transcription"

// Client talks to the remote speech recognition API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
	probe      ffprobe.Inspector
	ffprobeBin string
	newID      func() string
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger sets the logger used for precondition warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithProbe sets the ffprobe fallback used when a WAV header cannot be read.
func WithProbe(binary string, inspector ffprobe.Inspector) Option {
	return func(c *Client) {
		c.ffprobeBin = binary
		if inspector != nil {
			c.probe = inspector
		}
	}
}

// WithRequestIDGenerator overrides request id generation (useful for tests).
func WithRequestIDGenerator(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// NewClient constructs a client. The default transport bounds connection
// setup by ConnectTimeout and the whole exchange by RequestTimeout.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg = cfg.withDefaults()
	cfg.AppKey = strings.TrimSpace(cfg.AppKey)
	cfg.AccessKey = strings.TrimSpace(cfg.AccessKey)
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
		TLSHandshakeTimeout: cfg.ConnectTimeout,
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout, Transport: transport},
		logger:     logging.NewNop(),
		probe:      ffprobe.Inspect,
		newID:      func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Name identifies the provider in logs and persisted records.
func (c *Client) Name() string { return "auc" }

// Check reports whether audioPath may be sent to the API. Every violation is
// wrapped with services.ErrDisqualified; no network request is made.
func (c *Client) Check(ctx context.Context, audioPath string) error {
	if c.cfg.AppKey == "" || c.cfg.AccessKey == "" {
		return disqualified("Check credentials", "app key and access key are required", nil)
	}
	info, err := os.Stat(audioPath)
	if err != nil {
		return disqualified("Check audio file", "audio file not readable", err)
	}
	if info.IsDir() {
		return disqualified("Check audio file", fmt.Sprintf("%s is a directory", audioPath), nil)
	}
	if info.Size() == 0 {
		return disqualified("Check audio file", "audio file is empty", nil)
	}
	if info.Size() > c.cfg.MaxFileSize {
		return disqualified("Check file size", fmt.Sprintf("audio is %s, limit %s", formatMB(info.Size()), formatMB(c.cfg.MaxFileSize)), nil)
	}
	if info.Size() > c.cfg.RecommendedFileSize {
		logging.WarnWithContext(c.logger, "audio exceeds recommended upload size", "auc_precondition",
			logging.String("audio_path", audioPath),
			logging.String("size", formatMB(info.Size())),
			logging.String("recommended", formatMB(c.cfg.RecommendedFileSize)),
			logging.String(logging.FieldImpact, "upload may be slow"),
			logging.String(logging.FieldErrorHint, "lower max file size or compress audio"),
		)
	}

	header, err := readWAVHeader(audioPath)
	if err == nil {
		return c.checkFormat(header.PCM(), int(header.Channels), header.Duration())
	}
	c.logger.Debug("wav header unreadable, probing audio", logging.String("audio_path", audioPath), logging.Error(err))
	probe, probeErr := c.probe(ctx, c.ffprobeBin, audioPath)
	if probeErr != nil {
		return disqualified("Check audio format", "audio is not a readable WAV file", errors.Join(err, probeErr))
	}
	stream, ok := probe.FirstAudioStream()
	if !ok {
		return disqualified("Check audio format", "no audio stream found", nil)
	}
	if !strings.Contains(probe.Format.FormatName, "wav") {
		return disqualified("Check audio format", fmt.Sprintf("container %q is not WAV", probe.Format.FormatName), nil)
	}
	seconds := probe.DurationSeconds()
	if math.IsNaN(seconds) {
		return disqualified("Check duration", "duration unavailable", nil)
	}
	return c.checkFormat(strings.HasPrefix(stream.CodecName, "pcm_"), stream.Channels, time.Duration(seconds*float64(time.Second)))
}

func (c *Client) checkFormat(pcm bool, channels int, duration time.Duration) error {
	if !pcm {
		return disqualified("Check audio format", "audio is not PCM encoded", nil)
	}
	if channels != 1 {
		return disqualified("Check channels", fmt.Sprintf("audio has %d channels, mono required", channels), nil)
	}
	if duration > c.cfg.MaxDuration {
		return disqualified("Check duration", fmt.Sprintf("audio is %s, limit %s", duration.Round(time.Second), c.cfg.MaxDuration), nil)
	}
	return nil
}

// Utterance is one recognized span of speech. Times are in seconds.
type Utterance struct {
	Start float64
	End   float64
	Text  string
}

// Recognition is the parsed API response.
type Recognition struct {
	Utterances []Utterance
	RequestID  string
	Raw        json.RawMessage
}

type recognizeRequest struct {
	User    requestUser    `json:"user"`
	Audio   requestAudio   `json:"audio"`
	Request requestOptions `json:"request"`
}

type requestUser struct {
	UID string `json:"uid"`
}

type requestAudio struct {
	Data string `json:"data"`
}

type requestOptions struct {
	ModelName string `json:"model_name"`
}

type recognizeResponse struct {
	Result struct {
		Text       string `json:"text"`
		Utterances []struct {
			Text      string   `json:"text"`
			StartTime *float64 `json:"start_time"`
			EndTime   *float64 `json:"end_time"`
		} `json:"utterances"`
	} `json:"result"`
}

// Recognize checks the preconditions and transcribes audioPath.
func (c *Client) Recognize(ctx context.Context, audioPath string) (Recognition, error) {
	if err := c.Check(ctx, audioPath); err != nil {
		return Recognition{}, err
	}
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return Recognition{}, disqualified("Read audio", "audio file not readable", err)
	}

	requestID := c.newID()
	body, err := json.Marshal(recognizeRequest{
		User:    requestUser{UID: c.cfg.AppKey},
		Audio:   requestAudio{Data: base64.StdEncoding.EncodeToString(audio)},
		Request: requestOptions{ModelName: c.cfg.ModelName},
	})
	if err != nil {
		return Recognition{}, services.Wrap(services.ErrTransient, stageName, "Encode request", "encode body", err)
	}
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + EndpointPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Recognition{}, services.Wrap(services.ErrConfiguration, stageName, "Build request", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerAppKey, c.cfg.AppKey)
	req.Header.Set(headerAccessKey, c.cfg.AccessKey)
	req.Header.Set(headerResourceID, c.cfg.ResourceID)
	req.Header.Set(headerRequestID, requestID)
	req.Header.Set(headerSequence, "-1")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.Canceled) {
			return Recognition{}, ctxErr
		}
		return Recognition{}, services.WrapWithCode(services.ErrTransient, stageName, "Send request",
			fmt.Sprintf("request failed (timeout=%s)", c.cfg.RequestTimeout), "request_id="+requestID, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Recognition{}, services.WrapWithCode(services.ErrTransient, stageName, "Read response", "read body", "request_id="+requestID, err)
	}

	if err := classifyResponse(resp, payload, requestID); err != nil {
		return Recognition{}, err
	}

	var decoded recognizeResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return Recognition{}, services.WrapWithCode(services.ErrTransient, stageName, "Decode response", "malformed response body", "request_id="+requestID, err)
	}

	result := Recognition{RequestID: requestID, Raw: json.RawMessage(payload)}
	for _, item := range decoded.Result.Utterances {
		text := strings.TrimSpace(item.Text)
		if text == "" || item.StartTime == nil || item.EndTime == nil {
			continue
		}
		start, end := *item.StartTime/1000, *item.EndTime/1000
		if start < 0 || end < start || math.IsNaN(start) || math.IsNaN(end) {
			c.logger.Debug("skipping utterance with invalid timestamps",
				logging.Float64("start", start), logging.Float64("end", end))
			continue
		}
		result.Utterances = append(result.Utterances, Utterance{Start: start, End: end, Text: text})
	}
	if len(result.Utterances) == 0 {
		return Recognition{}, services.WrapWithCode(services.ErrMalformed, stageName, "Parse utterances", "response contained no utterances", "request_id="+requestID, nil)
	}
	return result, nil
}

// classifyResponse maps an unsuccessful HTTP or API status to the taxonomy.
func classifyResponse(resp *http.Response, body []byte, requestID string) error {
	apiStatus := strings.TrimSpace(resp.Header.Get(headerStatusCode))
	message := strings.TrimSpace(resp.Header.Get(headerMessage))
	code := diagnosticCode(resp, requestID)

	if resp.StatusCode != http.StatusOK {
		if message == "" {
			message = snippet(body)
		}
		marker := services.ErrTransient
		switch {
		case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
			marker = services.ErrAuthOrQuota
		case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
			marker = services.ErrTransient
		case isQuotaStatus(apiStatus):
			marker = services.ErrAuthOrQuota
		}
		return services.WrapWithCode(marker, stageName, "Recognize", fmt.Sprintf("http %d: %s", resp.StatusCode, message), code, nil)
	}
	if apiStatus != "" && apiStatus != statusOK {
		marker := services.ErrTransient
		if isQuotaStatus(apiStatus) {
			marker = services.ErrAuthOrQuota
		}
		return services.WrapWithCode(marker, stageName, "Recognize", fmt.Sprintf("api status %s: %s", apiStatus, message), code, nil)
	}
	return nil
}

// isQuotaStatus treats 4xxxxxxx API status codes as caller-side failures
// (credentials, permissions, quota); 5xxxxxxx codes are server-side.
func isQuotaStatus(apiStatus string) bool {
	if len(apiStatus) != 8 {
		return false
	}
	if _, err := strconv.Atoi(apiStatus); err != nil {
		return false
	}
	return apiStatus[0] == '4'
}

func diagnosticCode(resp *http.Response, requestID string) string {
	parts := []string{"http=" + strconv.Itoa(resp.StatusCode)}
	if status := strings.TrimSpace(resp.Header.Get(headerStatusCode)); status != "" {
		parts = append(parts, "status="+status)
	}
	parts = append(parts, "request_id="+requestID)
	if logID := strings.TrimSpace(resp.Header.Get(headerLogID)); logID != "" {
		parts = append(parts, "log_id="+logID)
	}
	return strings.Join(parts, " ")
}

func disqualified(operation, message string, err error) error {
	return services.Wrap(services.ErrDisqualified, stageName, operation, message, err)
}

func snippet(body []byte) string {
	const limit = 200
	text := strings.TrimSpace(string(body))
	if len(text) > limit {
		return text[:limit] + "..."
	}
	return text
}

func formatMB(size int64) string {
	return fmt.Sprintf("%.2f MB", float64(size)/(1<<20))
}
