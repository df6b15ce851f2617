package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"croptalk/pkg/chat"
	"croptalk/pkg/models"
)

// Service is the messaging surface the client consumes. Tests substitute
// a fake; production uses HTTPService against the croptalk server.
type Service interface {
	Conversations(ctx context.Context, viewer string) ([]chat.ConversationView, error)
	MessagesSince(ctx context.Context, convID, viewer, afterID string) ([]models.Message, error)
	Send(ctx context.Context, req chat.SendRequest) (models.Message, error)
	MarkRead(ctx context.Context, convID, viewer, uptoID string) (int, error)
}

// HTTPService talks to a croptalk server over its JSON API.
type HTTPService struct {
	BaseURL string
	HTTP    *http.Client
}

// NewHTTPService returns an HTTPService with a sane default timeout.
func NewHTTPService(baseURL string) *HTTPService {
	return &HTTPService{BaseURL: baseURL, HTTP: &http.Client{Timeout: 15 * time.Second}}
}

func (s *HTTPService) client() *http.Client {
	if s.HTTP != nil {
		return s.HTTP
	}
	return http.DefaultClient
}

// decodeError maps the server's error body and status onto the shared
// error taxonomy.
func decodeError(status int, body []byte) error {
	var e struct {
		Error string `json:"error"`
	}
	msg := ""
	if json.Unmarshal(body, &e) == nil {
		msg = e.Error
	}
	switch status {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", chat.ErrValidation, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", chat.ErrNotFound, msg)
	default:
		return fmt.Errorf("server returned %d: %s", status, msg)
	}
}

func (s *HTTPService) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+path, nil)
	if err != nil {
		return err
	}
	res, err := s.client().Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode != http.StatusOK {
		return decodeError(res.StatusCode, b)
	}
	return json.Unmarshal(b, out)
}

func (s *HTTPService) postJSON(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := s.client().Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode != http.StatusOK {
		return decodeError(res.StatusCode, b)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(b, out)
}

func (s *HTTPService) Conversations(ctx context.Context, viewer string) ([]chat.ConversationView, error) {
	var out struct {
		Conversations []chat.ConversationView `json:"conversations"`
	}
	path := "/v1/users/" + url.PathEscape(viewer) + "/conversations"
	if err := s.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

func (s *HTTPService) MessagesSince(ctx context.Context, convID, viewer, afterID string) ([]models.Message, error) {
	var out struct {
		Messages []models.Message `json:"messages"`
	}
	q := url.Values{}
	if viewer != "" {
		q.Set("viewer", viewer)
	}
	if afterID != "" {
		q.Set("since", afterID)
	}
	path := "/v1/conversations/" + url.PathEscape(convID) + "/messages"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	if err := s.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (s *HTTPService) Send(ctx context.Context, req chat.SendRequest) (models.Message, error) {
	var msg models.Message
	if err := s.postJSON(ctx, "/v1/messages", req, &msg); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

func (s *HTTPService) MarkRead(ctx context.Context, convID, viewer, uptoID string) (int, error) {
	var out map[string]int
	path := "/v1/conversations/" + url.PathEscape(convID) + "/read"
	body := map[string]string{"viewer": viewer, "upto": uptoID}
	if err := s.postJSON(ctx, path, body, &out); err != nil {
		return 0, err
	}
	return out["unread"], nil
}

var _ Service = (*HTTPService)(nil)
