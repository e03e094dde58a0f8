package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"open-rewrite/src/logutil"
	"open-rewrite/src/settings"
)

const (
	// Temperature is fixed for every rewrite.
	Temperature = 0.7

	DefaultTimeout     = 60 * time.Second
	DefaultPingTimeout = 10 * time.Second
)

// Request is one fully resolved rewrite. It carries its own model snapshot.
type Request struct {
	Model         settings.ModelConfig
	SystemMessage string
	Instruction   string
	Input         string
}

// UserMessage renders the user turn sent to the model.
func (r Request) UserMessage() string {
	return fmt.Sprintf("<prompt>%s</prompt>\n<text>%s</text>", r.Instruction, r.Input)
}

// Completer performs one completion. Implementations must not retry.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Client talks to any OpenAI-compatible chat completion endpoint.
type Client struct {
	httpClient  *http.Client
	timeout     time.Duration
	pingTimeout time.Duration
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds each Complete call when ctx carries no deadline.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{timeout: DefaultTimeout, pingTimeout: DefaultPingTimeout}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) sdk(cfg settings.ModelConfig) openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		opts = append(opts, option.WithBaseURL(base))
	}
	if c.httpClient != nil {
		opts = append(opts, option.WithHTTPClient(c.httpClient))
	}
	return openai.NewClient(opts...)
}

func checkModel(cfg settings.ModelConfig) error {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return &Error{Kind: KindAuthentication, Err: errors.New("API key is required")}
	}
	if strings.TrimSpace(cfg.Name) == "" {
		return &Error{Kind: KindAPI, Err: errors.New("model is required")}
	}
	return nil
}

// Complete sends one chat completion and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if err := checkModel(req.Model); err != nil {
		return "", err
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	log.Printf("LLM: request model=%s base=%s key=%s input=%q", req.Model.Name, req.Model.BaseURL, logutil.RedactKey(req.Model.APIKey), logutil.Preview(req.Input))
	start := time.Now()

	client := c.sdk(req.Model)
	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(req.Model.Name),
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{OfString: openai.String(req.SystemMessage)},
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{OfString: openai.String(req.UserMessage())},
				},
			},
		},
		Temperature: openai.Float(Temperature),
	})
	if err != nil {
		cerr := classify(err)
		log.Printf("LLM: request failed after %v: %v", time.Since(start), cerr)
		return "", cerr
	}

	if resp == nil || len(resp.Choices) == 0 {
		return "", &Error{Kind: KindMalformedResponse, Err: errors.New("no choices in response")}
	}
	text := resp.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return "", &Error{Kind: KindMalformedResponse, Err: errors.New("empty completion")}
	}

	log.Printf("LLM: completed in %v, %d chars", time.Since(start), len(text))
	return text, nil
}

// Ping lists models to confirm the endpoint and key work.
func (c *Client) Ping(ctx context.Context, cfg settings.ModelConfig) error {
	if err := checkModel(cfg); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.pingTimeout)
	defer cancel()

	client := c.sdk(cfg)
	if _, err := client.Models.List(ctx); err != nil {
		return classify(err)
	}
	return nil
}
