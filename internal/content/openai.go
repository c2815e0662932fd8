package content

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	logx "draftbot/pkg/logx"
)

const defaultModel = "gpt-4o"

type OpenAIConfig struct {
	APIKey   string
	Model    string
	BaseURL  string
	MaxChars int // target post length; 0 means 1000
}

// OpenAI implements Service using the official openai-go SDK (chat completions).
type OpenAI struct {
	client   openai.Client
	model    string
	maxChars int
	log      logx.Logger
}

func NewOpenAI(cfg OpenAIConfig, log logx.Logger) (*OpenAI, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("content api key is empty")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = 1000
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &OpenAI{
		client:   openai.NewClient(opts...),
		model:    model,
		maxChars: maxChars,
		log:      log,
	}, nil
}

func (o *OpenAI) Generate(ctx context.Context, topic string) (string, error) {
	raw, err := o.complete(ctx, o.generateSystemPrompt(),
		fmt.Sprintf("Write a channel post about: %s", topic))
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	html, err := RenderHTML(raw)
	if err != nil {
		return "", fmt.Errorf("generate: render: %w", err)
	}
	o.log.Debug("post generated", logx.String("topic", topic), logx.Int("chars", len(html)))
	return html, nil
}

func (o *OpenAI) Edit(ctx context.Context, original, instruction string) (string, error) {
	user := fmt.Sprintf("Original post:\n%s\n\nEdit instructions:\n%s\n\nApply the instructions to the original post.",
		original, instruction)
	raw, err := o.complete(ctx, editSystemPrompt, user)
	if err != nil {
		return "", fmt.Errorf("edit: %w", err)
	}
	html, err := RenderHTML(raw)
	if err != nil {
		return "", fmt.Errorf("edit: render: %w", err)
	}
	o.log.Debug("post edited", logx.Int("chars", len(html)))
	return html, nil
}

func (o *OpenAI) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty choices")
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", errors.New("openai: empty completion")
	}
	return out, nil
}

func (o *OpenAI) generateSystemPrompt() string {
	return fmt.Sprintf(`You write posts for a public Telegram channel.

Rules:
- Target length about %d characters; if the material is long, summarize it, preserving the main point.
- Markdown formatting only: a bold title line, short logical paragraphs, bullet lists where they help.
- Clear structure, concise and logically complete; never text that feels cut off.
- Friendly, engaging tone suitable for a public channel.
- Reply with the post only, no commentary.`, o.maxChars)
}

const editSystemPrompt = `You are an expert content editor for Telegram channel posts.

Rules:
- Apply the edit instructions while keeping the post's overall style and structure.
- Keep the result readable and suitable for Telegram.
- If the instructions are unclear, make reasonable assumptions.
- Reply with the edited post only, no commentary or explanations.`
