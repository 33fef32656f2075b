package dubbing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dubber/internal/config"
	"dubber/internal/jobs"
	"dubber/internal/logging"
	"dubber/internal/services"
)

const defaultHTTPTimeout = 10 * time.Minute

// Client dubs single chunks through an external HTTP dubbing service.
// One request carries one chunk; the response body is the dubbed media.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client (useful for tests).
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithEndpoint overrides the configured endpoint (useful for tests).
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		endpoint = strings.TrimSpace(endpoint)
		if endpoint != "" {
			c.endpoint = strings.TrimRight(endpoint, "/")
		}
	}
}

// NewClient builds a dubbing client from configuration.
func NewClient(cfg *config.Config, logger *slog.Logger, opts ...Option) *Client {
	timeout := time.Duration(cfg.Dubbing.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	client := &Client{
		endpoint:   strings.TrimRight(strings.TrimSpace(cfg.Dubbing.EndpointURL), "/"),
		apiKey:     strings.TrimSpace(cfg.Dubbing.APIKey),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewComponentLogger(logger, "dubbing"),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Translate uploads one chunk and writes the dubbed result under destDir.
// Failures are tagged per chunk so the dispatcher can isolate them.
func (c *Client) Translate(ctx context.Context, chunk jobs.Chunk, cfg jobs.PipelineConfig, destDir string) (string, error) {
	if c.endpoint == "" {
		return "", services.Wrap(services.ErrValidation, "", "dub", "dubbing endpoint not configured", nil)
	}
	if chunk.SourcePath == "" {
		return "", services.Wrap(services.ErrChunkOperation, "", "dub",
			fmt.Sprintf("chunk %d has no source file", chunk.Index), nil)
	}

	body, contentType, err := openUploadBody(chunk, cfg)
	if err != nil {
		return "", err
	}
	defer body.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/dub", body)
	if err != nil {
		return "", services.Wrap(services.ErrChunkOperation, "", "dub", "build request", err)
	}
	req.Header.Set("Content-Type", contentType)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrChunkOperation, "", "dub",
			fmt.Sprintf("chunk %d request failed", chunk.Index), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", services.Wrap(services.ErrChunkOperation, "", "dub",
			fmt.Sprintf("chunk %d: http %d: %s", chunk.Index, resp.StatusCode, strings.TrimSpace(string(detail))), nil)
	}

	ext := filepath.Ext(chunk.SourcePath)
	if ext == "" {
		ext = ".mp4"
	}
	dubbedPath := filepath.Join(destDir, fmt.Sprintf("dubbed_%03d%s", chunk.Index, ext))
	out, err := os.Create(dubbedPath)
	if err != nil {
		return "", services.Wrap(services.ErrChunkOperation, "", "dub", "create dubbed file", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = os.Remove(dubbedPath)
		return "", services.Wrap(services.ErrChunkOperation, "", "dub",
			fmt.Sprintf("chunk %d: stream dubbed media", chunk.Index), err)
	}
	if err := out.Close(); err != nil {
		return "", services.Wrap(services.ErrChunkOperation, "", "dub", "finish dubbed file", err)
	}

	c.logger.Debug("chunk dubbed",
		logging.Int(logging.FieldChunk, chunk.Index),
		logging.String("dubbed_path", dubbedPath))
	return dubbedPath, nil
}

// openUploadBody starts the multipart request body: the dubbing
// parameters followed by the chunk media. The media streams through a
// pipe, so a chunk is never held whole in memory; write failures surface
// through the HTTP request that consumes the reader.
func openUploadBody(chunk jobs.Chunk, cfg jobs.PipelineConfig) (io.ReadCloser, string, error) {
	in, err := os.Open(chunk.SourcePath)
	if err != nil {
		return nil, "", services.Wrap(services.ErrChunkOperation, "", "dub", "open chunk file", err)
	}

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		defer in.Close()
		err := writeUploadParts(writer, in, chunk, cfg)
		if closeErr := writer.Close(); err == nil {
			err = closeErr
		}
		pw.CloseWithError(err)
	}()

	return pr, writer.FormDataContentType(), nil
}

func writeUploadParts(writer *multipart.Writer, media io.Reader, chunk jobs.Chunk, cfg jobs.PipelineConfig) error {
	fields := map[string]string{
		"chunk_index":     strconv.Itoa(chunk.Index),
		"start_sec":       fmt.Sprintf("%.3f", chunk.StartSec),
		"end_sec":         fmt.Sprintf("%.3f", chunk.EndSec),
		"target_language": cfg.TargetLanguage,
		"watermark":       strconv.FormatBool(cfg.UseWatermark),
	}
	if cfg.SourceLanguage != "" {
		fields["source_language"] = cfg.SourceLanguage
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return services.Wrap(services.ErrChunkOperation, "", "dub", "encode field "+name, err)
		}
	}

	part, err := writer.CreateFormFile("media", filepath.Base(chunk.SourcePath))
	if err != nil {
		return services.Wrap(services.ErrChunkOperation, "", "dub", "create media part", err)
	}
	if _, err := io.Copy(part, media); err != nil {
		return services.Wrap(services.ErrChunkOperation, "", "dub", "copy chunk media", err)
	}
	return nil
}
