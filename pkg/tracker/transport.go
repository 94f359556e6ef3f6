package tracker

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"
)

// BatchPayload is the wire format for POST /api/analytics/track.
type BatchPayload struct {
	VisitorInfo VisitorInfo `json:"visitorInfo"`
	Events      []Event     `json:"events"`
}

// Transport delivers batches to the ingestion endpoint. Delivery is fire
// and forget: a failed send is dropped, never retried.
type Transport interface {
	SendBatch(payload BatchPayload) error
	SendConsent(visitorID string, granted bool, consentType string) error
}

// HTTPTransport posts JSON to the analytics endpoints.
type HTTPTransport struct {
	TrackURL   string
	ConsentURL string
	Client     *http.Client
}

func NewHTTPTransport(baseURL string) *HTTPTransport {
	return &HTTPTransport{
		TrackURL:   baseURL + "/api/analytics/track",
		ConsentURL: baseURL + "/api/analytics/consent",
		Client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *HTTPTransport) SendBatch(payload BatchPayload) error {
	return t.post(t.TrackURL, payload)
}

func (t *HTTPTransport) SendConsent(visitorID string, granted bool, consentType string) error {
	return t.post(t.ConsentURL, map[string]interface{}{
		"visitorId":    visitorID,
		"hasConsented": granted,
		"consentType":  consentType,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (t *HTTPTransport) post(url string, body interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}

	resp, err := t.Client.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}
