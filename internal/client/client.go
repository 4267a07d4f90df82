// Package client talks to a running inference service over HTTP.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
)

const maxErrorBody = 4 << 10

// Client calls the inference API. Failed calls are not retried.
type Client struct {
	base *url.URL
	http *http.Client
}

// Inference is the response of a single-trial upload.
type Inference struct {
	ID             string    `json:"id"`
	Predictions    []float64 `json:"predictions"`
	NumTrials      int       `json:"num_trials"`
	PredictedClass string    `json:"predicted_class"`
	MeanScore      float64   `json:"mean_score"`
	AveragePath    string    `json:"average_path"`
}

// TrialsInference is the response of an all-trials upload.
type TrialsInference struct {
	ID              string      `json:"id"`
	NumTrials       int         `json:"num_trials"`
	PredictedClass  string      `json:"predicted_class"`
	MeanScore       float64     `json:"mean_score"`
	MeanPredictions []float64   `json:"mean_predictions"`
	Trials          [][]float64 `json:"trials"`
	AveragePath     string      `json:"average_path"`
}

// Prediction is the saved label and its conclusion sentence.
type Prediction struct {
	PredictedClass string `json:"predicted_class"`
	Conclusion     string `json:"conclusion"`
}

// New creates a client for the service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	raw := strings.TrimSpace(baseURL)
	if raw == "" {
		return nil, ErrBaseURL
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrBaseURL, baseURL)
	}
	c := &Client{base: u, http: &http.Client{Timeout: DefaultTimeout}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Upload posts a MAT file and returns the first-trial prediction.
func (c *Client) Upload(ctx context.Context, name string, r io.Reader) (*Inference, error) {
	var out Inference
	if err := c.upload(ctx, "/run_inference/", name, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadTrials posts a MAT file and returns predictions for every trial.
func (c *Client) UploadTrials(ctx context.Context, name string, r io.Reader) (*TrialsInference, error) {
	var out TrialsInference
	if err := c.upload(ctx, "/run_inference/trials", name, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PredictedClass fetches the label of the most recent stored result.
func (c *Client) PredictedClass(ctx context.Context) (*Prediction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/predict-from-saved/"), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	var out Prediction
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stats fetches the service statistics map. It doubles as a readiness probe.
func (c *Client) Stats(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/stats"), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	out := map[string]any{}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) upload(ctx context.Context, path, name string, r io.Reader, out any) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", name)
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), pr)
	if err != nil {
		pr.Close()
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) endpoint(path string) string {
	return c.base.JoinPath(path).String()
}
