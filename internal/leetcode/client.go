// Package leetcode implements the remote catalog client for the
// LeetCode-compatible GraphQL endpoint.
package leetcode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// problemListQuery retrieves one page of problem summaries.
const problemListQuery = `
query getProblems($limit: Int) {
    problemsetQuestionList(limit: $limit) {
        questions {
            frontendQuestionId
            title
            titleSlug
            difficulty
            acRate
            paidOnly
            status
            topicTags {
                name
                slug
                nameTranslated
            }
        }
    }
}
`

// questionDetailQuery retrieves the full record for one problem by slug.
const questionDetailQuery = `
query questionData($titleSlug: String!) {
    question(titleSlug: $titleSlug) {
        questionId
        questionFrontendId
        title
        titleSlug
        content
        translatedTitle
        translatedContent
        difficulty
        stats
        topicTags {
            name
            slug
            translatedName
        }
    }
}
`

// TopicTag is one topic label as returned by the remote. The list query
// localizes names under nameTranslated, the detail query under
// translatedName; both are kept so either shape decodes.
type TopicTag struct {
	Name           string `json:"name"`
	Slug           string `json:"slug"`
	NameTranslated string `json:"nameTranslated"`
	TranslatedName string `json:"translatedName"`
}

// LocalizedName returns the localized name when present, else the canonical one.
func (t TopicTag) LocalizedName() string {
	if t.NameTranslated != "" {
		return t.NameTranslated
	}
	if t.TranslatedName != "" {
		return t.TranslatedName
	}
	return t.Name
}

// QuestionSummary is the minimal per-problem record from the list query.
type QuestionSummary struct {
	FrontendQuestionID string     `json:"frontendQuestionId"`
	Title              string     `json:"title"`
	TitleSlug          string     `json:"titleSlug"`
	Difficulty         string     `json:"difficulty"`
	AcRate             float64    `json:"acRate"`
	PaidOnly           *bool      `json:"paidOnly"`
	Status             string     `json:"status"`
	TopicTags          []TopicTag `json:"topicTags"`
}

// QuestionDetail is the full per-problem record from the detail query.
// Stats is a JSON-encoded string, decoded downstream during normalization.
type QuestionDetail struct {
	QuestionID         string     `json:"questionId"`
	QuestionFrontendID string     `json:"questionFrontendId"`
	Title              string     `json:"title"`
	TitleSlug          string     `json:"titleSlug"`
	Content            string     `json:"content"`
	TranslatedTitle    string     `json:"translatedTitle"`
	TranslatedContent  string     `json:"translatedContent"`
	Difficulty         string     `json:"difficulty"`
	Stats              string     `json:"stats"`
	PaidOnly           *bool      `json:"paidOnly"`
	TopicTags          []TopicTag `json:"topicTags"`
}

// Config controls the remote catalog client.
type Config struct {
	Endpoint       string
	UserAgent      string
	Origin         string
	Referer        string
	AcceptLanguage string
	Timeout        time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
}

// Client issues parameterized GraphQL queries against the remote catalog.
// Expected remote failure is reported as absence (empty slice / nil), never
// as an error: the upstream routinely drops requests and callers are
// expected to treat "could not fetch" per item, not abort.
type Client struct {
	httpClient *http.Client
	cfg        Config
	logger     *zap.Logger
	sleep      func(time.Duration)
}

// NewClient constructs a Client with a tuned transport and shared connection reuse.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 250 * time.Millisecond
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		ForceAttemptHTTP2:     true,
	}
	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		cfg:    cfg,
		logger: logger,
		sleep:  time.Sleep,
	}
}

// FetchSummaries requests one page of up to limit problem summaries.
// On transport failure or a GraphQL error payload it logs and returns an
// empty slice; callers must treat empty as "could not fetch".
func (c *Client) FetchSummaries(ctx context.Context, limit int) []QuestionSummary {
	variables := map[string]any{"limit": limit}
	data, err := c.post(ctx, problemListQuery, variables)
	if err != nil {
		c.logger.Error("fetch problem list failed", zap.Int("limit", limit), zap.Error(err))
		return nil
	}
	var payload struct {
		ProblemsetQuestionList struct {
			Questions []QuestionSummary `json:"questions"`
		} `json:"problemsetQuestionList"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		c.logger.Error("decode problem list failed", zap.Error(err))
		return nil
	}
	c.logger.Info("fetched problem list", zap.Int("count", len(payload.ProblemsetQuestionList.Questions)))
	return payload.ProblemsetQuestionList.Questions
}

// FetchDetail requests the full record for one problem. It returns nil on
// transport failure, a GraphQL error payload, or when the remote has no
// such question; absence is a value here, not an error.
func (c *Client) FetchDetail(ctx context.Context, slug string) *QuestionDetail {
	variables := map[string]any{"titleSlug": slug}
	data, err := c.post(ctx, questionDetailQuery, variables)
	if err != nil {
		c.logger.Warn("fetch question detail failed", zap.String("slug", slug), zap.Error(err))
		return nil
	}
	var payload struct {
		Question *QuestionDetail `json:"question"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		c.logger.Warn("decode question detail failed", zap.String("slug", slug), zap.Error(err))
		return nil
	}
	return payload.Question
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// post issues one GraphQL request, retrying transport-level failures with a
// flat delay. GraphQL-level errors are not retried; the payload arrived.
func (c *Client) post(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	body, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
			c.sleep(c.cfg.RetryDelay)
		}
		data, retryable, err := c.doOnce(ctx, body)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !retryable || ctx.Err() != nil {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// doOnce performs a single request. The bool reports whether the failure is
// transport-level and worth retrying; a GraphQL error payload is not, since
// the request itself arrived.
func (c *Client) doOnce(ctx context.Context, body []byte) (json.RawMessage, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("post graphql: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn("close response body failed", zap.Error(cerr))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode >= 500, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read response body: %w", err)
	}

	var envelope graphQLEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, false, fmt.Errorf("decode graphql envelope: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return nil, false, fmt.Errorf("graphql error: %s", envelope.Errors[0].Message)
	}
	return envelope.Data, nil
}

// setHeaders presents the client as a standard browser. The upstream gates
// on User-Agent, Origin and Referer.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "*/*")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	if c.cfg.Origin != "" {
		req.Header.Set("Origin", c.cfg.Origin)
	}
	if c.cfg.Referer != "" {
		req.Header.Set("Referer", c.cfg.Referer)
	}
	if c.cfg.AcceptLanguage != "" {
		req.Header.Set("Accept-Language", c.cfg.AcceptLanguage)
	}
}
