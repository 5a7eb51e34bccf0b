package auc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"glass/internal/media/ffprobe"
	"glass/internal/services"
	"glass/internal/testsupport"
)

func newTestClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	cfg := Config{BaseURL: baseURL, AppKey: "app", AccessKey: "access", RequestTimeout: 2 * time.Second}
	opts = append([]Option{WithRequestIDGenerator(func() string { return "req-1" })}, opts...)
	return NewClient(cfg, opts...)
}

func monoWAV(t *testing.T, seconds float64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.wav")
	testsupport.WriteWAV(t, path, 16000, seconds)
	return path
}

func TestRecognizeSendsHeadersAndConvertsMilliseconds(t *testing.T) {
	audio := monoWAV(t, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3"+EndpointPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		for header, want := range map[string]string{
			"X-Api-App-Key":     "app",
			"X-Api-Access-Key":  "access",
			"X-Api-Resource-Id": DefaultResourceID,
			"X-Api-Request-Id":  "req-1",
			"X-Api-Sequence":    "-1",
		} {
			if got := r.Header.Get(header); got != want {
				t.Errorf("header %s = %q, want %q", header, got, want)
			}
		}
		var req recognizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if _, err := base64.StdEncoding.DecodeString(req.Audio.Data); err != nil || req.Audio.Data == "" {
			t.Errorf("audio not base64 encoded: %v", err)
		}
		if req.Request.ModelName != DefaultModelName || req.User.UID != "app" {
			t.Errorf("unexpected request body %+v", req.Request)
		}
		w.Header().Set("X-Api-Status-Code", "20000000")
		_, _ = w.Write([]byte(`{"result":{"utterances":[
			{"text":"hello","start_time":0,"end_time":2400},
			{"text":"   ","start_time":2400,"end_time":2500},
			{"text":"bad","start_time":3000},
			{"text":"world","start_time":2400,"end_time":5000}
		]}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL+"/api/v3")
	result, err := client.Recognize(context.Background(), audio)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if len(result.Utterances) != 2 {
		t.Fatalf("expected 2 utterances, got %+v", result.Utterances)
	}
	if result.Utterances[0].End != 2.4 || result.Utterances[1].Start != 2.4 || result.Utterances[1].End != 5 {
		t.Fatalf("unexpected timing %+v", result.Utterances)
	}
	if result.RequestID != "req-1" || len(result.Raw) == 0 {
		t.Fatalf("expected request id and raw payload, got %+v", result)
	}
}

func TestRecognizeStatusMapping(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		apiStatus string
		want      error
	}{
		{"unauthorized", http.StatusUnauthorized, "", services.ErrAuthOrQuota},
		{"forbidden", http.StatusForbidden, "", services.ErrAuthOrQuota},
		{"unavailable", http.StatusServiceUnavailable, "", services.ErrTransient},
		{"throttled", http.StatusTooManyRequests, "", services.ErrTransient},
		{"quota status header", http.StatusOK, "45000030", services.ErrAuthOrQuota},
		{"server status header", http.StatusOK, "55000031", services.ErrTransient},
	}
	audio := monoWAV(t, 1)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				if tc.apiStatus != "" {
					w.Header().Set("X-Api-Status-Code", tc.apiStatus)
				}
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{}`))
			}))
			defer server.Close()

			_, err := newTestClient(t, server.URL).Recognize(context.Background(), audio)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if !strings.Contains(err.Error(), "request_id=req-1") {
				t.Fatalf("expected request id in error, got %v", err)
			}
		})
	}
}

func TestRecognizeMalformedAndEmpty(t *testing.T) {
	audio := monoWAV(t, 1)
	bodies := map[string]error{
		`not json`:                      services.ErrTransient,
		`{"result":{"utterances":[]}}`: services.ErrMalformed,
	}
	for body, want := range bodies {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		_, err := newTestClient(t, server.URL).Recognize(context.Background(), audio)
		server.Close()
		if !errors.Is(err, want) {
			t.Fatalf("body %q: expected %v, got %v", body, want, err)
		}
	}
}

func TestRecognizeTimeoutIsTransient(t *testing.T) {
	audio := monoWAV(t, 1)
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := newTestClient(t, server.URL, WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))
	_, err := client.Recognize(context.Background(), audio)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestCheckDisqualifiesBeforeNetwork(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { calls++ }))
	defer server.Close()

	stereo := filepath.Join(t.TempDir(), "stereo.wav")
	testsupport.WriteWAV(t, stereo, 16000, 1)
	data, err := os.ReadFile(stereo)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	data[22] = 2
	if err := os.WriteFile(stereo, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cases := map[string]struct {
		client *Client
		path   string
	}{
		"missing credentials": {NewClient(Config{BaseURL: server.URL}), monoWAV(t, 1)},
		"missing file":        {newTestClient(t, server.URL), filepath.Join(t.TempDir(), "nope.wav")},
		"too large":           {NewClient(Config{BaseURL: server.URL, AppKey: "a", AccessKey: "b", MaxFileSize: 1024}), monoWAV(t, 1)},
		"too long":            {NewClient(Config{BaseURL: server.URL, AppKey: "a", AccessKey: "b", MaxDuration: time.Second}), monoWAV(t, 2)},
		"stereo":              {newTestClient(t, server.URL), stereo},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := tc.client.Recognize(context.Background(), tc.path)
			if !errors.Is(err, services.ErrDisqualified) {
				t.Fatalf("expected disqualified, got %v", err)
			}
		})
	}
	if calls != 0 {
		t.Fatalf("expected no network calls, got %d", calls)
	}
}

func TestCheckFallsBackToFFprobe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audio.wav")
	testsupport.WriteFile(t, path, 2048)

	probe := func(_ context.Context, _ string, _ string) (ffprobe.Result, error) {
		return ffprobe.Result{
			Streams: []ffprobe.Stream{{CodecType: "audio", CodecName: "pcm_s16le", Channels: 1}},
			Format:  ffprobe.Format{FormatName: "wav", Duration: "12.5"},
		}, nil
	}
	client := newTestClient(t, "http://unused", WithProbe("ffprobe", probe))
	if err := client.Check(context.Background(), path); err != nil {
		t.Fatalf("expected probe fallback to pass, got %v", err)
	}

	failing := func(context.Context, string, string) (ffprobe.Result, error) {
		return ffprobe.Result{}, errors.New("ffprobe missing")
	}
	client = newTestClient(t, "http://unused", WithProbe("ffprobe", failing))
	if err := client.Check(context.Background(), path); !errors.Is(err, services.ErrDisqualified) {
		t.Fatalf("expected disqualified, got %v", err)
	}
}

func TestReadWAVHeader(t *testing.T) {
	info, err := readWAVHeader(monoWAV(t, 3))
	if err != nil {
		t.Fatalf("readWAVHeader: %v", err)
	}
	if !info.PCM() || info.Channels != 1 || info.SampleRate != 16000 {
		t.Fatalf("unexpected header %+v", info)
	}
	if info.Duration() != 3*time.Second {
		t.Fatalf("duration = %s, want 3s", info.Duration())
	}
}
