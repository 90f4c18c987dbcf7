package generator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to the external blog-generation service. The service is an
// opaque collaborator: we submit an idea and poll for status; generation
// itself happens elsewhere.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Rating is the service's quality score for generated content.
type Rating struct {
	Score   float64 `json:"score"`
	Summary string  `json:"summary"`
}

// Job is the generation service's status payload.
type Job struct {
	Status    string   `json:"status"`
	Progress  int      `json:"progress"`
	Message   string   `json:"message"`
	Title     string   `json:"title,omitempty"`
	Content   string   `json:"content,omitempty"`
	Images    []string `json:"images,omitempty"`
	WordCount int      `json:"wordCount,omitempty"`
	Rating    *Rating  `json:"rating,omitempty"`
}

// SubmitIdea starts an asynchronous generation job and returns its tracking id.
func (c *Client) SubmitIdea(idea, tone string) (string, error) {
	payload, err := json.Marshal(map[string]string{"idea": idea, "tone": tone})
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Post(c.baseURL+"/api/blog/generate-async", "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("generation service error: %s", serviceError(resp))
	}

	var result struct {
		TrackingID string `json:"trackingId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if result.TrackingID == "" {
		return "", fmt.Errorf("generation service returned no tracking id")
	}
	return result.TrackingID, nil
}

// Status fetches the current state of a generation job.
func (c *Client) Status(trackingID string) (*Job, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/api/blog/status?trackingId=" + url.QueryEscape(trackingID))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("generation service error: %s", serviceError(resp))
	}

	var result struct {
		Job *Job `json:"job"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if result.Job == nil {
		return nil, fmt.Errorf("generation service returned no job for %s", trackingID)
	}
	return result.Job, nil
}

func serviceError(resp *http.Response) string {
	var errResp struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&errResp)
	if errResp.Error != "" {
		return errResp.Error
	}
	return resp.Status
}
