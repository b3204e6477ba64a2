package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sdsc-ordes/debates-analytics/internal/config"
	"github.com/sdsc-ordes/debates-analytics/pkg/log"
)

// Tasks the service understands. A translate run always targets English.
const (
	TaskTranscribe = "transcribe"
	TaskTranslate  = "translate"
)

// Artifacts holds the local paths of everything one inference run produced.
// Entries may be empty when the service did not return that artifact.
type Artifacts struct {
	SRT          string
	JSON         string
	SegmentsJSON string
	SegmentsMD   string
	SegmentsPDF  string
}

// Files maps artifact names to their local paths, skipping absent ones.
// The names line up with the object-store naming scheme used by the
// transcription stage.
func (a Artifacts) Files() map[string]string {
	all := map[string]string{
		"srt":           a.SRT,
		"json":          a.JSON,
		"segments_json": a.SegmentsJSON,
		"segments_md":   a.SegmentsMD,
		"segments_pdf":  a.SegmentsPDF,
	}
	files := make(map[string]string)
	for name, path := range all {
		if path != "" {
			files[name] = path
		}
	}
	return files
}

// Client calls the external ASR/translation service. One call per task; the
// service returns artifact URLs which the client pulls down next to the
// audio so the caller only ever sees local file handles.
type Client struct {
	baseURL    string
	model      string
	token      string
	httpClient *http.Client
}

// NewClient creates an ASR client. The HTTP timeout is generous on purpose:
// transcription of long recordings runs for minutes.
func NewClient(cfg config.ASRConfig) *Client {
	return &Client{
		baseURL: cfg.URL,
		model:   cfg.Model,
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
	}
}

// inferenceResponse is the service's artifact manifest.
type inferenceResponse struct {
	SRTURL          string `json:"srt_url"`
	JSONURL         string `json:"json_url"`
	SegmentsJSONURL string `json:"segments_json_url"`
	SegmentsMDURL   string `json:"segments_md_url"`
	SegmentsPDFURL  string `json:"segments_pdf_url"`
}

// Run uploads the audio file for one task and downloads every returned
// artifact into destDir.
func (c *Client) Run(ctx context.Context, audioPath, task, destDir string) (*Artifacts, error) {
	lang := "auto"
	if task == TaskTranslate {
		lang = "en"
	}
	log.Info("Running ASR: task=%s language=%s file=%s", task, lang, audioPath)

	manifest, err := c.process(ctx, audioPath, task, lang)
	if err != nil {
		return nil, err
	}

	artifacts := &Artifacts{}
	downloads := []struct {
		url  string
		name string
		dest *string
	}{
		{manifest.SRTURL, "subtitles-" + task + ".srt", &artifacts.SRT},
		{manifest.JSONURL, "subtitles-" + task + ".json", &artifacts.JSON},
		{manifest.SegmentsJSONURL, "segments-" + task + ".json", &artifacts.SegmentsJSON},
		{manifest.SegmentsMDURL, "segments-" + task + ".md", &artifacts.SegmentsMD},
		{manifest.SegmentsPDFURL, "segments-" + task + ".pdf", &artifacts.SegmentsPDF},
	}
	for _, d := range downloads {
		if d.url == "" {
			continue
		}
		local := filepath.Join(destDir, d.name)
		if err := c.download(ctx, d.url, local); err != nil {
			return nil, err
		}
		*d.dest = local
	}

	return artifacts, nil
}

// process submits the audio as a multipart form and decodes the manifest.
func (c *Client) process(ctx context.Context, audioPath, task, lang string) (*inferenceResponse, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("audio_file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("build multipart form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("copy audio into form: %w", err)
	}

	fields := map[string]string{
		"task":     task,
		"language": lang,
		"model":    c.model,
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("write form field %s: %w", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalize multipart form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/process", &body)
	if err != nil {
		return nil, fmt.Errorf("build ASR request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ASR request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read ASR response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ASR service returned %d: %s", resp.StatusCode, respBody)
	}

	var manifest inferenceResponse
	if err := json.Unmarshal(respBody, &manifest); err != nil {
		return nil, fmt.Errorf("decode ASR response: %w", err)
	}
	return &manifest, nil
}

func (c *Client) download(ctx context.Context, url, localPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build artifact request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download artifact %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("artifact %s returned %d", url, resp.StatusCode)
	}

	out, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create artifact file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("write artifact file: %w", err)
	}
	return nil
}
