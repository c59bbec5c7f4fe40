package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ent0n29/callassist/internal/observability"
	"github.com/ent0n29/callassist/internal/reliability"
)

const (
	DefaultModel   = "llama3"
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 1 << 20

	temperature = 0.6
	numPredict  = 120
)

// Persona keeps replies short and in colloquial Egyptian Arabic.
const Persona = "انت مساعد صوتي ودود ترد باللهجة المصرية العامية فقط. خلي ردودك قصيرة وواضحة ومحترمة. تجنب الفصحى وأي لهجات عربية أخرى. لو فيه التباس، اسأل سؤال بسيط للتوضيح.\n\n"

// Settings supplies the live endpoint and model on every request.
type Settings interface {
	OnlineAgentEndpoint() string
	AgentModelName() string
}

// Generator produces one reply for one input.
type Generator interface {
	Generate(ctx context.Context, input string) (string, error)
}

// Client talks to an Ollama-compatible /api/generate endpoint. It never
// retries.
type Client struct {
	settings Settings
	client   *http.Client
	logger   *zap.Logger
	metrics  *observability.Metrics
}

func NewClient(settings Settings, timeout time.Duration, logger *zap.Logger, metrics *observability.Metrics) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		settings: settings,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
		metrics:  metrics,
	}
}

// Configured reports whether an endpoint is set.
func (c *Client) Configured() bool {
	return c != nil && c.settings != nil && strings.TrimSpace(c.settings.OnlineAgentEndpoint()) != ""
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type generateResponse struct {
	Response *string `json:"response"`
}

// BuildPrompt prefixes the persona to the user's words.
func BuildPrompt(input string) string {
	return Persona + "المستخدم قال: '" + input + "'\nرد باللهجة المصرية:"
}

// GenerateURL joins the base endpoint with the generate path.
func GenerateURL(base string) string {
	return joinPath(base, "api/generate")
}

func (c *Client) Generate(ctx context.Context, input string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	started := time.Now()
	text, err := c.generate(ctx, input)
	outcome := "ok"
	if err != nil {
		outcome = string(KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
		c.logger.Info("reply generation failed", zap.String("kind", outcome), zap.Error(err))
	}
	c.metrics.ObserveReply(outcome, time.Since(started))
	return text, err
}

func (c *Client) generate(ctx context.Context, input string) (string, error) {
	model := strings.TrimSpace(c.settings.AgentModelName())
	if model == "" {
		model = DefaultModel
	}
	payload, err := json.Marshal(generateRequest{
		Model:   model,
		Prompt:  BuildPrompt(input),
		Stream:  false,
		Options: generateOptions{Temperature: temperature, NumPredict: numPredict},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, GenerateURL(c.settings.OnlineAgentEndpoint()), bytes.NewReader(payload))
	if err != nil {
		return "", &Error{Kind: KindProtocol, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		if reliability.IsTimeout(err) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", &Error{Kind: KindTimeout, Retryable: true, Err: err}
		}
		return "", &Error{Kind: KindNetwork, Retryable: true, Err: err}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		if reliability.IsTimeout(err) {
			return "", &Error{Kind: KindTimeout, Retryable: true, Err: err}
		}
		return "", &Error{Kind: KindNetwork, Retryable: true, Err: fmt.Errorf("read response: %w", err)}
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", &Error{
			Kind:       KindProtocol,
			StatusCode: res.StatusCode,
			Retryable:  reliability.IsRetryableHTTPStatus(res.StatusCode),
			Err:        fmt.Errorf("%s", strings.TrimSpace(string(body))),
		}
	}

	text := parseReply(body)
	if text == "" {
		return "", &Error{Kind: KindProtocol, Err: errors.New("empty reply")}
	}
	return text, nil
}

// parseReply reads the response field, falling back to the raw body.
func parseReply(body []byte) string {
	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Response != nil {
		return strings.TrimSpace(*parsed.Response)
	}
	return strings.TrimSpace(string(body))
}

func joinPath(base, path string) string {
	base = strings.TrimSpace(base)
	if strings.HasSuffix(base, "/") {
		return base + path
	}
	return base + "/" + path
}
