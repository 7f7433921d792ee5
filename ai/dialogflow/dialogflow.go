package dialogflow

import (
	"FunnelRouter/entity"
	"FunnelRouter/internal/lib/sl"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

const scope = "https://www.googleapis.com/auth/cloud-platform"

type Options struct {
	ProjectID       string
	Location        string
	AgentID         string
	LanguageCode    string
	Endpoint        string
	CredentialsFile string
	Timeout         time.Duration
	// HTTPClient overrides the authorized client, used with emulators
	HTTPClient *http.Client
}

// Client calls the Dialogflow CX detectIntent endpoint of a single agent
type Client struct {
	http         *http.Client
	endpoint     string
	agentPath    string
	languageCode string
	log          *slog.Logger
}

type textInput struct {
	Text string `json:"text"`
}

type queryInput struct {
	Text         textInput `json:"text"`
	LanguageCode string    `json:"languageCode"`
}

type queryParams struct {
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

type detectIntentRequest struct {
	QueryInput  queryInput  `json:"queryInput"`
	QueryParams queryParams `json:"queryParams"`
}

type detectIntentResponse struct {
	ResponseID  string `json:"responseId"`
	QueryResult struct {
		ResponseMessages []struct {
			Text *struct {
				Text []string `json:"text"`
			} `json:"text,omitempty"`
		} `json:"responseMessages"`
	} `json:"queryResult"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func New(ctx context.Context, opts Options, log *slog.Logger) (*Client, error) {
	if opts.ProjectID == "" || opts.AgentID == "" {
		return nil, fmt.Errorf("dialogflow project and agent id are required")
	}
	if opts.Location == "" {
		opts.Location = "global"
	}
	if opts.LanguageCode == "" {
		opts.LanguageCode = "pt-br"
	}
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = "https://dialogflow.googleapis.com"
		if opts.Location != "global" {
			endpoint = fmt.Sprintf("https://%s-dialogflow.googleapis.com", opts.Location)
		}
	}

	client := opts.HTTPClient
	if client == nil {
		var err error
		client, err = authorizedClient(ctx, opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("dialogflow credentials: %w", err)
		}
	}
	if opts.Timeout > 0 {
		c := *client
		c.Timeout = opts.Timeout
		client = &c
	}

	return &Client{
		http:         client,
		endpoint:     strings.TrimRight(endpoint, "/"),
		agentPath:    fmt.Sprintf("projects/%s/locations/%s/agents/%s", opts.ProjectID, opts.Location, opts.AgentID),
		languageCode: opts.LanguageCode,
		log:          log.With(sl.Module("dialogflow")),
	}, nil
}

func authorizedClient(ctx context.Context, credentialsFile string) (*http.Client, error) {
	if credentialsFile == "" {
		return google.DefaultClient(ctx, scope)
	}
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, err
	}
	creds, err := google.CredentialsFromJSON(ctx, data, scope)
	if err != nil {
		return nil, err
	}
	return oauth2.NewClient(ctx, creds.TokenSource), nil
}

// DetectIntent sends text to the agent session and returns the reply texts joined by a space.
func (c *Client) DetectIntent(ctx context.Context, sessionID, text string, params map[string]interface{}) (string, error) {
	reqBody := detectIntentRequest{
		QueryInput: queryInput{
			Text:         textInput{Text: text},
			LanguageCode: c.languageCode,
		},
		QueryParams: queryParams{Parameters: params},
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v3/%s/sessions/%s:detectIntent", c.endpoint, c.agentPath, sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", entity.ErrAgentUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", entity.ErrAgentUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classify(resp.StatusCode, body)
	}

	var result detectIntentResponse
	if err = json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", entity.ErrAgentUnavailable, err)
	}

	var parts []string
	for _, m := range result.QueryResult.ResponseMessages {
		if m.Text == nil {
			continue
		}
		for _, t := range m.Text.Text {
			if t = strings.TrimSpace(t); t != "" {
				parts = append(parts, t)
			}
		}
	}

	c.log.With(
		slog.String("session", sessionID),
		slog.String("response_id", result.ResponseID),
		slog.Int("replies", len(parts)),
	).Debug("detect intent")

	return strings.Join(parts, " "), nil
}

func classify(status int, body []byte) error {
	var apiErr apiError
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		msg = fmt.Sprintf("%s: %s", apiErr.Error.Status, apiErr.Error.Message)
	}
	switch {
	case status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500:
		return fmt.Errorf("%w: status %d: %s", entity.ErrAgentUnavailable, status, msg)
	default:
		return fmt.Errorf("%w: status %d: %s", entity.ErrAgentRejected, status, msg)
	}
}
