// Package api runs Anthropic Messages API tool-use loops for the
// claude-code backend.
package api

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"
)

// DefaultModel is used when no model is configured.
const DefaultModel = anthropic.ModelClaudeSonnet4_20250514

// ErrNoAPIKey is returned when neither the config nor the environment
// provides an Anthropic key and Bedrock is off.
var ErrNoAPIKey = errors.New("ANTHROPIC_API_KEY environment variable is not set")

// MessagesAPI is the part of the Anthropic SDK the loop depends on.
type MessagesAPI interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Client pairs a Messages service with a model and a token counter.
type Client struct {
	messages MessagesAPI
	model    anthropic.Model
	tracker  *TokenTracker
}

// ClientConfig selects credentials and endpoint for NewClient.
type ClientConfig struct {
	Model anthropic.Model
	// APIKey falls back to ANTHROPIC_API_KEY.
	APIKey string
	// UseAWSBedrock routes requests through Bedrock using the AWS
	// default credential chain.
	UseAWSBedrock bool
	AWSRegion     string
	AWSProfile    string
	// BaseURL overrides the API endpoint, mainly for proxies.
	BaseURL string
}

// NewClient creates a client for the direct API or Bedrock.
func NewClient(cfg ClientConfig) (*Client, error) {
	opts, err := requestOptions(cfg)
	if err != nil {
		return nil, err
	}
	inner := anthropic.NewClient(opts...)

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	if cfg.UseAWSBedrock {
		model = translateModelForBedrock(model)
	}
	return &Client{messages: &inner.Messages, model: model, tracker: NewTokenTracker()}, nil
}

func requestOptions(cfg ClientConfig) ([]option.RequestOption, error) {
	var opts []option.RequestOption
	if cfg.UseAWSBedrock {
		var load []func(*config.LoadOptions) error
		if cfg.AWSRegion != "" {
			load = append(load, config.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			load = append(load, config.WithSharedConfigProfile(cfg.AWSProfile))
		}
		opts = append(opts, bedrock.WithLoadDefaultConfig(context.Background(), load...))
	} else {
		key := cfg.APIKey
		if key == "" {
			key = os.Getenv("ANTHROPIC_API_KEY")
		}
		if key == "" {
			return nil, ErrNoAPIKey
		}
		opts = append(opts, option.WithAPIKey(key))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return opts, nil
}

// NewClientWithMessages builds a Client around an existing Messages
// implementation, such as a test double.
func NewClientWithMessages(messages MessagesAPI, model anthropic.Model) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{messages: messages, model: model, tracker: NewTokenTracker()}
}

// bedrockProfiles maps API model names to cross-region inference profiles.
var bedrockProfiles = map[anthropic.Model]anthropic.Model{
	anthropic.ModelClaudeSonnet4_20250514:   "us.anthropic.claude-sonnet-4-20250514-v1:0",
	anthropic.ModelClaudeSonnet4_5_20250929: "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
	anthropic.ModelClaudeHaiku4_5_20251001:  "us.anthropic.claude-haiku-4-5-20251001-v1:0",
	anthropic.ModelClaudeOpus4_1_20250805:   "us.anthropic.claude-opus-4-1-20250805-v1:0",
	anthropic.ModelClaudeOpus4_5_20251101:   "us.anthropic.claude-opus-4-5-20251101-v1:0",
	anthropic.ModelClaude3_7Sonnet20250219:  "us.anthropic.claude-3-7-sonnet-20250219-v1:0",
	anthropic.ModelClaude3_5Haiku20241022:   "us.anthropic.claude-3-5-haiku-20241022-v1:0",
}

// translateModelForBedrock returns the inference profile for model, or
// model itself when it is unknown or already a Bedrock id.
func translateModelForBedrock(model anthropic.Model) anthropic.Model {
	if p, ok := bedrockProfiles[model]; ok {
		return p
	}
	return model
}

func (c *Client) Messages() MessagesAPI  { return c.messages }
func (c *Client) Model() anthropic.Model { return c.model }
func (c *Client) Tracker() *TokenTracker { return c.tracker }

// TokenTracker counts tokens across Messages calls. Safe for concurrent use.
type TokenTracker struct {
	mu     sync.Mutex
	input  int64
	output int64
	calls  int
}

func NewTokenTracker() *TokenTracker {
	return &TokenTracker{}
}

// Add records the usage of one call.
func (t *TokenTracker) Add(input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.input += input
	t.output += output
	t.calls++
}

// Total returns the input and output tokens recorded so far.
func (t *TokenTracker) Total() (input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.input, t.output
}

func (t *TokenTracker) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

func (t *TokenTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.input, t.output, t.calls = 0, 0, 0
}
