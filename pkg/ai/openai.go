package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	screenDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "campus",
		Subsystem: "plagiarism",
		Name:      "screen_duration_seconds",
		Help:      "Duration of plagiarism screening requests",
	}, []string{"model"})

	screenFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campus",
		Subsystem: "plagiarism",
		Name:      "screen_failures_total",
		Help:      "Number of plagiarism screening failures",
	}, []string{"model"})
)

// OpenAIConfig defines configuration options for the OpenAI screener.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIScreener implements Screener against the OpenAI chat completion API.
type OpenAIScreener struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIScreener builds a new screener using the provided configuration.
func NewOpenAIScreener(cfg OpenAIConfig) (*OpenAIScreener, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 512
	}

	tracer := otel.Tracer("github.com/noah-isme/campus-core-api/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	client := openai.NewClientWithConfig(config)

	return &OpenAIScreener{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger,
	}, nil
}

// Screen sends the answer text to OpenAI and parses the structured verdict.
func (e *OpenAIScreener) Screen(parent context.Context, input ScreenInput) (ScreenResult, error) {
	ctx, span := e.tracer.Start(parent, "openai.screen", trace.WithAttributes(
		attribute.String("model", e.cfg.Model),
	))
	defer span.End()

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       e.cfg.Model,
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: screenerSystemPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildScreenPrompt(input),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := e.client.CreateChatCompletion(ctx, request)
	duration := time.Since(start)
	screenDuration.WithLabelValues(e.cfg.Model).Observe(duration.Seconds())
	if err != nil {
		screenFailures.WithLabelValues(e.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ScreenResult{}, fmt.Errorf("openai screen: %w", err)
	}

	if len(resp.Choices) == 0 {
		err := fmt.Errorf("no choices returned from openai")
		screenFailures.WithLabelValues(e.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ScreenResult{}, err
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	result, err := parseScreenResponse(content)
	if err != nil {
		screenFailures.WithLabelValues(e.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ScreenResult{}, err
	}

	result.Raw = map[string]interface{}{
		"usage": resp.Usage,
	}

	return result, nil
}

func screenerSystemPrompt() string {
	return "You are an academic integrity reviewer. Respond with a JSON object containing score (0-1, likelihood the answer " +
		"is plagiarised or machine-generated) and report (two sentences naming the signals you relied on). Judge only the text given."
}

func buildScreenPrompt(input ScreenInput) string {
	builder := strings.Builder{}
	builder.WriteString("# Assignment\n")
	builder.WriteString(input.AssignmentTitle)
	builder.WriteString("\n\n## Question\n")
	builder.WriteString(input.QuestionPrompt)
	builder.WriteString("\n\n## Student Answer\n")
	builder.WriteString(input.AnswerText)
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}

func parseScreenResponse(content string) (ScreenResult, error) {
	type payload struct {
		Score  float64 `json:"score"`
		Report string  `json:"report"`
	}

	var data payload
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return ScreenResult{}, fmt.Errorf("parse screening json: %w", err)
	}

	if data.Score < 0 {
		data.Score = 0
	}
	if data.Score > 1 {
		data.Score = 1
	}

	return ScreenResult{
		Score:  data.Score,
		Report: data.Report,
	}, nil
}
