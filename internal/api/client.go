package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const requestTimeout = 30 * time.Second

// Client talks to the ProspectKeeper backend. Every request carries the
// stored API key in the x-api-key header except Health, which the backend
// leaves unauthenticated.
type Client struct {
	BaseURL string
	HTTP    *http.Client

	// Verification streams stay open for the whole agent run, so they
	// bypass the request timeout and rely on ctx for cancellation.
	stream *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTP:    &http.Client{Timeout: requestTimeout},
		stream:  &http.Client{},
	}
}

func (c *Client) getKey() (string, error) {
	key, err := LoadCredential(KeyName)
	if err != nil || strings.TrimSpace(key) == "" {
		return "", &AuthError{Msg: "API key not found. Run `keeper auth login` to store one."}
	}
	return key, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("content-type", "application/json")
	}
	key, err := c.getKey()
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", key)
	return req, nil
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Health reports backend liveness. No API key required.
func (c *Client) Health(ctx context.Context) (HealthInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return HealthInfo{}, err
	}
	var info HealthInfo
	if err := c.doJSON(req, &info); err != nil {
		return HealthInfo{}, err
	}
	return info, nil
}

// ConfigStatus reports which backend integrations are configured.
func (c *Client) ConfigStatus(ctx context.Context) (ConfigStatus, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/config-status", nil)
	if err != nil {
		return ConfigStatus{}, err
	}
	var status ConfigStatus
	if err := c.doJSON(req, &status); err != nil {
		return ConfigStatus{}, err
	}
	return status, nil
}

// ListContacts returns all non-opted-out contacts with freshness data.
func (c *Client) ListContacts(ctx context.Context) ([]Contact, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/contacts", nil)
	if err != nil {
		return nil, err
	}
	var contacts []Contact
	if err := c.doJSON(req, &contacts); err != nil {
		return nil, err
	}
	return contacts, nil
}

// ReviewQueue returns the contacts currently flagged for human review.
func (c *Client) ReviewQueue(ctx context.Context) ([]Contact, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/contacts/review", nil)
	if err != nil {
		return nil, err
	}
	var contacts []Contact
	if err := c.doJSON(req, &contacts); err != nil {
		return nil, err
	}
	return contacts, nil
}

// CreateContact inserts a new contact. The caller supplies the UUID.
func (c *Client) CreateContact(ctx context.Context, contact ContactUpsert) (CreatedContact, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/contacts", contact)
	if err != nil {
		return CreatedContact{}, err
	}
	var created CreatedContact
	if err := c.doJSON(req, &created); err != nil {
		return CreatedContact{}, err
	}
	return created, nil
}

// UpdateContact overwrites the editable fields of an existing contact and
// returns the saved row.
func (c *Client) UpdateContact(ctx context.Context, contact ContactUpsert) (Contact, error) {
	req, err := c.newRequest(ctx, http.MethodPut, "/contacts", contact)
	if err != nil {
		return Contact{}, err
	}
	var saved Contact
	if err := c.doJSON(req, &saved); err != nil {
		return Contact{}, err
	}
	return saved, nil
}

// DeleteContact permanently removes a contact.
func (c *Client) DeleteContact(ctx context.Context, contactID string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/contacts/"+url.PathEscape(contactID), nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, nil)
}

// LinkedInChange fetches the latest recorded profile diff for a contact.
// Returns nil when the backend has no change on record.
func (c *Client) LinkedInChange(ctx context.Context, contactID string) (*ChangeSummary, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/contacts/"+url.PathEscape(contactID)+"/linkedin-change", nil)
	if err != nil {
		return nil, err
	}
	var summary ChangeSummary
	if err := c.doJSON(req, &summary); err != nil {
		return nil, err
	}
	if summary.isEmpty() {
		return nil, nil
	}
	return &summary, nil
}

type sendOneRequest struct {
	ContactID string `json:"contact_id"`
}

// SendConfirmation sends the info-review confirmation email to one contact.
func (c *Client) SendConfirmation(ctx context.Context, contactID string) (SendResult, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/email/send-one", sendOneRequest{ContactID: contactID})
	if err != nil {
		return SendResult{}, err
	}
	var result SendResult
	if err := c.doJSON(req, &result); err != nil {
		return SendResult{}, err
	}
	return result, nil
}

// OpenVerifyStream launches the verification agent for a contact and returns
// the response body carrying the event stream. The caller owns the body and
// must close it; cancelling ctx aborts the run.
func (c *Client) OpenVerifyStream(ctx context.Context, contactID string) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/agent/verify/"+url.PathEscape(contactID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp.Body, nil
}
