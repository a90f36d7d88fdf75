package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"survey-service/models"

	"github.com/apex/log"
)

// Endpoints of the central reporting backend.
const (
	EndPointUploadImages   = "/api/v3/upload-images"
	EndPointSubmitSurvey   = "/api/v3/submit-survey"
	EndPointCreateIncident = "/api/v3/create-incident"
	EndPointListMySurveys  = "/api/v3/list-my-surveys"
	EndPointGetSurvey      = "/api/v3/survey"
)

// GenericSubmitError is shown when the backend fails without a usable
// message of its own.
const GenericSubmitError = "เกิดข้อผิดพลาดในการส่งรายงาน กรุณาลองใหม่อีกครั้ง"

// StagedPhoto is a photo held locally, not yet uploaded. Content rides JSON
// as base64.
type StagedPhoto struct {
	FileName string `json:"fileName"`
	Content  []byte `json:"content"`
}

// BackendError carries the backend's status and message for dialog-level
// error detail.
type BackendError struct {
	StatusCode int
	Message    string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
}

// Client talks to the central reporting backend.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	uploadClient *http.Client
}

func NewClient(baseURL string, timeout, uploadTimeout time.Duration) *Client {
	return &Client{
		baseURL:      baseURL,
		httpClient:   &http.Client{Timeout: timeout},
		uploadClient: &http.Client{Timeout: uploadTimeout},
	}
}

type uploadResponse struct {
	Urls []string `json:"urls"`
}

// UploadImages uploads staged photos as one multipart batch and returns the
// stored URLs in upload order.
func (c *Client) UploadImages(ctx context.Context, photos []StagedPhoto) ([]string, error) {
	if len(photos) == 0 {
		return []string{}, nil
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, photo := range photos {
		part, err := writer.CreateFormFile("images", photo.FileName)
		if err != nil {
			return nil, fmt.Errorf("building upload form: %w", err)
		}
		if _, err := part.Write(photo.Content); err != nil {
			return nil, fmt.Errorf("building upload form: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("building upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+EndPointUploadImages, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.uploadClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("uploading images: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading upload response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, backendError(resp.StatusCode, respBytes)
	}

	var uploaded uploadResponse
	if err := json.Unmarshal(respBytes, &uploaded); err != nil {
		return nil, fmt.Errorf("parsing upload response: %w", err)
	}

	log.Infof("Uploaded %d photos, got %d urls", len(photos), len(uploaded.Urls))
	return uploaded.Urls, nil
}

// SubmitSurvey posts a completed survey report and returns the record the
// backend created.
func (c *Client) SubmitSurvey(ctx context.Context, report *models.SurveyReport) (*models.SubmittedSurvey, error) {
	respBytes, err := c.postJSON(ctx, EndPointSubmitSurvey, report)
	if err != nil {
		return nil, err
	}

	record := &models.SubmittedSurvey{}
	if err := json.Unmarshal(respBytes, record); err != nil {
		return nil, fmt.Errorf("parsing submit response: %w", err)
	}
	return record, nil
}

// CreateIncident posts a validated incident.
func (c *Client) CreateIncident(ctx context.Context, incident *models.Incident) error {
	_, err := c.postJSON(ctx, EndPointCreateIncident, incident)
	return err
}

// ListMySurveys returns the surveys submitted by an officer.
func (c *Client) ListMySurveys(ctx context.Context, officerId string) ([]models.SubmittedSurvey, error) {
	u := fmt.Sprintf("%s%s?officer=%s", c.baseURL, EndPointListMySurveys, url.QueryEscape(officerId))
	respBytes, err := c.getJSON(ctx, u)
	if err != nil {
		return nil, err
	}

	var surveys []models.SubmittedSurvey
	if err := json.Unmarshal(respBytes, &surveys); err != nil {
		return nil, fmt.Errorf("parsing surveys response: %w", err)
	}
	return surveys, nil
}

// GetSurvey returns one submitted survey by id.
func (c *Client) GetSurvey(ctx context.Context, id string) (*models.SubmittedSurvey, error) {
	u := fmt.Sprintf("%s%s/%s", c.baseURL, EndPointGetSurvey, url.PathEscape(id))
	respBytes, err := c.getJSON(ctx, u)
	if err != nil {
		return nil, err
	}

	survey := &models.SubmittedSurvey{}
	if err := json.Unmarshal(respBytes, survey); err != nil {
		return nil, fmt.Errorf("parsing survey response: %w", err)
	}
	return survey, nil
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload interface{}) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+endpoint, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling backend: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading backend response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, backendError(resp.StatusCode, respBytes)
	}
	return respBytes, nil
}

func (c *Client) getJSON(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", fullURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling backend: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading backend response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, backendError(resp.StatusCode, respBytes)
	}
	return respBytes, nil
}

// backendError extracts the server's message when one exists, otherwise the
// generic fallback.
func backendError(status int, body []byte) error {
	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	message := GenericSubmitError
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Error != "" {
			message = parsed.Error
		} else if parsed.Message != "" {
			message = parsed.Message
		}
	}
	return &BackendError{StatusCode: status, Message: message}
}
