// Package micropub is the typed client for the write endpoint. Every
// call takes the endpoint URL and token explicitly so no per-user
// state ever lives on the client itself.
package micropub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/terminalpixel/postrchild/internal/domain"
	"github.com/terminalpixel/postrchild/internal/domain/model"
)

const maxBodySize = 1 << 20

// Client issues create/update/delete/undelete/query operations.
type Client struct {
	http *http.Client
	log  zerolog.Logger
}

func New(timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http: &http.Client{Timeout: timeout},
		log:  log.With().Str("component", "micropub").Logger(),
	}
}

// Create publishes a draft and returns the Location of the new post.
// The body is multipart exactly when the draft carries binary media;
// otherwise it is form encoded. Decided per call from the draft shape.
func (c *Client) Create(ctx context.Context, endpoint, token string, draft model.Draft) (string, error) {
	var (
		body        io.Reader
		contentType string
		err         error
	)
	if draft.HasBinary() {
		body, contentType, err = encodeMultipart(draft)
	} else {
		body, contentType = encodeForm(draft), "application/x-www-form-urlencoded"
	}
	if err != nil {
		return "", &domain.PublishError{Op: "create", Err: err}
	}

	resp, respBody, err := c.do(ctx, http.MethodPost, endpoint, token, contentType, body)
	if err != nil {
		return "", &domain.PublishError{Op: "create", Err: err}
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		return "", &domain.PublishError{Op: "create", Status: resp.StatusCode, Body: respBody}
	}
	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", &domain.PublishError{Op: "create", Status: resp.StatusCode, Body: respBody, Err: fmt.Errorf("missing Location header")}
	}
	c.log.Info().Str("location", loc).Msg("created post")
	return loc, nil
}

// Update sends a replace patch for targetURL. Every scalar is
// normalized into a single-element list; micropub requires uniformly
// list-valued properties in the envelope.
func (c *Client) Update(ctx context.Context, endpoint, token, targetURL string, patch model.Draft) error {
	replace := map[string][]string{}
	for k, v := range patch.Scalar {
		replace[k] = []string{v}
	}
	for k, v := range patch.List {
		replace[k] = v
	}
	envelope := map[string]any{
		"action":  "update",
		"url":     targetURL,
		"replace": replace,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return &domain.PublishError{Op: "update", Err: err}
	}

	resp, respBody, err := c.do(ctx, http.MethodPost, endpoint, token, "application/json", bytes.NewReader(payload))
	if err != nil {
		return &domain.PublishError{Op: "update", Err: err}
	}
	if !accepted(resp.StatusCode) {
		return &domain.PublishError{Op: "update", Status: resp.StatusCode, Body: respBody}
	}
	return nil
}

// Delete removes the post at targetURL.
func (c *Client) Delete(ctx context.Context, endpoint, token, targetURL string) error {
	return c.action(ctx, endpoint, token, "delete", targetURL)
}

// Undelete restores a previously deleted post.
func (c *Client) Undelete(ctx context.Context, endpoint, token, targetURL string) error {
	return c.action(ctx, endpoint, token, "undelete", targetURL)
}

func (c *Client) action(ctx context.Context, endpoint, token, action, targetURL string) error {
	form := url.Values{}
	form.Set("action", action)
	form.Set("url", targetURL)
	resp, respBody, err := c.do(ctx, http.MethodPost, endpoint, token, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		return &domain.PublishError{Op: action, Err: err}
	}
	if !accepted(resp.StatusCode) {
		return &domain.PublishError{Op: action, Status: resp.StatusCode, Body: respBody}
	}
	return nil
}

// QuerySyndicationTargets asks the endpoint for its syndicate-to list.
// Targets change server-side, so callers must re-query per run and
// never cache across conversations.
func (c *Client) QuerySyndicationTargets(ctx context.Context, endpoint, token string) ([]string, error) {
	respBody, contentType, err := c.query(ctx, endpoint, token, url.Values{"q": {"syndicate-to"}})
	if err != nil {
		return nil, err
	}
	return parseSyndicationTargets(respBody, contentType)
}

// QuerySource fetches the current properties of an existing post so
// the edit dialog can show what it is about to change.
func (c *Client) QuerySource(ctx context.Context, endpoint, token, targetURL string) (map[string][]string, error) {
	respBody, _, err := c.query(ctx, endpoint, token, url.Values{"q": {"source"}, "url": {targetURL}})
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Properties map[string][]any `json:"properties"`
	}
	if err := json.Unmarshal([]byte(respBody), &parsed); err != nil {
		return nil, &domain.PublishError{Op: "query", Body: respBody, Err: fmt.Errorf("parsing source response: %w", err)}
	}
	props := make(map[string][]string, len(parsed.Properties))
	for k, vals := range parsed.Properties {
		for _, v := range vals {
			if s, ok := v.(string); ok {
				props[k] = append(props[k], s)
			}
		}
	}
	return props, nil
}

func (c *Client) query(ctx context.Context, endpoint, token string, params url.Values) (string, string, error) {
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	resp, respBody, err := c.do(ctx, http.MethodGet, endpoint+sep+params.Encode(), token, "", nil)
	if err != nil {
		return "", "", &domain.PublishError{Op: "query", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", "", &domain.PublishError{Op: "query", Status: resp.StatusCode, Body: respBody}
	}
	return respBody, resp.Header.Get("Content-Type"), nil
}

func (c *Client) do(ctx context.Context, method, rawURL, token, contentType string, body io.Reader) (*http.Response, string, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	return resp, string(respBody), nil
}

func accepted(status int) bool {
	return status == http.StatusOK || status == http.StatusCreated || status == http.StatusNoContent
}

func encodeForm(draft model.Draft) io.Reader {
	form := url.Values{}
	for k, v := range draft.Scalar {
		form.Set(k, v)
	}
	for k, vals := range draft.List {
		for _, v := range vals {
			form.Add(k+"[]", v)
		}
	}
	if draft.Photo != nil && draft.Photo.URL != "" {
		form.Set(model.PropPhoto, draft.Photo.URL)
	}
	return strings.NewReader(form.Encode())
}

func encodeMultipart(draft model.Draft) (io.Reader, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for k, v := range draft.Scalar {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	for k, vals := range draft.List {
		for _, v := range vals {
			if err := w.WriteField(k+"[]", v); err != nil {
				return nil, "", err
			}
		}
	}
	if draft.Photo.Binary() {
		name := draft.Photo.Name
		if name == "" {
			name = "photo"
		}
		part, err := w.CreateFormFile(model.PropPhoto, name)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(draft.Photo.Bytes); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

// parseSyndicationTargets understands both the JSON response shape and
// the legacy query-string one.
func parseSyndicationTargets(body, contentType string) ([]string, error) {
	if strings.Contains(contentType, "json") || strings.HasPrefix(strings.TrimSpace(body), "{") {
		var parsed struct {
			SyndicateTo []json.RawMessage `json:"syndicate-to"`
		}
		if err := json.Unmarshal([]byte(body), &parsed); err != nil {
			return nil, &domain.PublishError{Op: "query", Body: body, Err: fmt.Errorf("parsing syndicate-to: %w", err)}
		}
		var targets []string
		for _, raw := range parsed.SyndicateTo {
			var s string
			if err := json.Unmarshal(raw, &s); err == nil {
				targets = append(targets, s)
				continue
			}
			var obj struct {
				UID  string `json:"uid"`
				Name string `json:"name"`
			}
			if err := json.Unmarshal(raw, &obj); err == nil && obj.UID != "" {
				targets = append(targets, obj.UID)
			}
		}
		return targets, nil
	}
	values, err := url.ParseQuery(body)
	if err != nil {
		return nil, &domain.PublishError{Op: "query", Body: body, Err: err}
	}
	if targets := values["syndicate-to[]"]; len(targets) > 0 {
		return targets, nil
	}
	return values["syndicate-to"], nil
}
