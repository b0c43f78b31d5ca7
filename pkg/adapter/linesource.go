package adapter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// ErrSourceUnavailable is returned when the line source cannot be reached
var ErrSourceUnavailable = goerr.New("line source unavailable")

// LineSource is the speech-to-text side of a recording. Poll returns the
// most recently transcribed line, or an empty string when there is none.
// The same line may be returned by several polls; callers deduplicate.
type LineSource interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Poll(ctx context.Context) (string, error)
}

// HTTPSource talks to a transcription server exposing POST /start,
// POST /stop and GET /transcript
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

type HTTPSourceOption func(*HTTPSource)

func WithHTTPClient(client *http.Client) HTTPSourceOption {
	return func(s *HTTPSource) {
		s.client = client
	}
}

func NewHTTPSource(baseURL string, opts ...HTTPSourceOption) *HTTPSource {
	s := &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type sourceResponse struct {
	Status     string `json:"status"`
	Transcript string `json:"transcript"`
}

func (s *HTTPSource) Start(ctx context.Context) error {
	resp, err := s.call(ctx, http.MethodPost, "/start")
	if err != nil {
		return err
	}
	if resp.Status != "started" {
		return goerr.New("transcription server did not start", goerr.V("status", resp.Status))
	}
	return nil
}

func (s *HTTPSource) Stop(ctx context.Context) error {
	resp, err := s.call(ctx, http.MethodPost, "/stop")
	if err != nil {
		return err
	}
	if resp.Status != "stopped" {
		return goerr.New("transcription server did not stop", goerr.V("status", resp.Status))
	}
	return nil
}

func (s *HTTPSource) Poll(ctx context.Context) (string, error) {
	resp, err := s.call(ctx, http.MethodGet, "/transcript")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Transcript), nil
}

func (s *HTTPSource) call(ctx context.Context, method, path string) (*sourceResponse, error) {
	url := s.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, http.NoBody)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build request", goerr.V("url", url))
	}

	httpResp, err := s.client.Do(req)
	if err != nil {
		return nil, goerr.Wrap(ErrSourceUnavailable, err.Error(), goerr.V("url", url))
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, goerr.Wrap(ErrSourceUnavailable, "failed to read response", goerr.V("url", url))
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, goerr.Wrap(ErrSourceUnavailable, "unexpected status",
			goerr.V("url", url),
			goerr.V("status", httpResp.StatusCode),
			goerr.V("body", string(body)))
	}

	var resp sourceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, goerr.Wrap(err, "failed to decode response", goerr.V("url", url))
	}
	return &resp, nil
}

// FileSource replays a text file, one non-empty line per Poll. Start rewinds it.
type FileSource struct {
	path string

	mu    sync.Mutex
	lines []string
	next  int
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Start(ctx context.Context) error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return goerr.Wrap(ErrSourceUnavailable, err.Error(), goerr.V("path", s.path))
	}

	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return goerr.Wrap(err, "failed to scan transcript file", goerr.V("path", s.path))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = lines
	s.next = 0
	return nil
}

func (s *FileSource) Stop(ctx context.Context) error {
	return nil
}

func (s *FileSource) Poll(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.next >= len(s.lines) {
		return "", nil
	}
	line := s.lines[s.next]
	s.next++
	return line, nil
}
