package model

import (
	"context"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/schema"

	"epub-translator/internal/logger"
)

// OpenAIConfig configures the OpenAI-compatible provider. BaseURL may
// point at any chat-completions-compatible endpoint.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAIProvider implements Provider on top of the eino OpenAI chat
// model component.
type OpenAIProvider struct {
	chat      einomodel.BaseChatModel
	modelName string
}

// NewOpenAIProvider builds the provider. The eino chat model holds the
// HTTP client; one provider instance is safe for sequential use across
// a whole document.
func NewOpenAIProvider(ctx context.Context, cfg OpenAIConfig) (*OpenAIProvider, error) {
	chatModelConfig := &openai.ChatModelConfig{
		Model:  cfg.Model,
		APIKey: cfg.APIKey,
	}
	if cfg.BaseURL != "" {
		chatModelConfig.BaseURL = cfg.BaseURL
	}

	chat, err := openai.NewChatModel(ctx, chatModelConfig)
	if err != nil {
		return nil, &Error{Kind: KindProvider, Message: "failed to create chat model", Cause: err}
	}
	return &OpenAIProvider{chat: chat, modelName: cfg.Model}, nil
}

// Name implements Provider.
func (p *OpenAIProvider) Name() string { return "openai/" + p.modelName }

// Generate implements Provider. The context window is enforced by
// budgeting the completion: whatever the prompt does not consume is
// offered to the model as max tokens.
func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	msgs := make([]*schema.Message, 0, 2)
	if req.SystemPrompt != "" {
		msgs = append(msgs, schema.SystemMessage(req.SystemPrompt))
	}
	msgs = append(msgs, schema.UserMessage(req.UserPrompt))

	completionBudget := req.ContextWindow - estimateTokens(req.SystemPrompt+req.UserPrompt)
	if completionBudget < 256 {
		completionBudget = 256
	}

	out, err := p.chat.Generate(ctx, msgs, einomodel.WithMaxTokens(completionBudget))
	if err != nil {
		return nil, classifyErr(err)
	}

	resp := &Response{Text: out.Content}
	if meta := out.ResponseMeta; meta != nil {
		resp.Truncated = meta.FinishReason == "length"
		if meta.Usage != nil {
			resp.PromptTokens = meta.Usage.PromptTokens
			resp.CompletionTokens = meta.Usage.CompletionTokens
		}
	}

	if DetectRepetition(resp.Text) {
		logger.Warn("repetition loop in model output",
			logger.String("model", p.modelName),
			logger.Int("completionTokens", resp.CompletionTokens))
		return nil, &Error{Kind: KindRepetitionLoop, Message: "model output stuck in a repetition loop"}
	}
	return resp, nil
}

// thinkingMarkers identify model families that burn hidden reasoning
// tokens and therefore need a larger initial context window.
var thinkingMarkers = []string{"o1", "o3", "o4-mini", "r1", "qwq", "think", "reason"}

// DetectThinking implements Provider. Classification is by model name;
// providers do not report this capability over the wire.
func (p *OpenAIProvider) DetectThinking(ctx context.Context) (bool, error) {
	name := strings.ToLower(p.modelName)
	for _, marker := range thinkingMarkers {
		if strings.Contains(name, marker) {
			return true, nil
		}
	}
	return false, nil
}

// classifyErr maps transport errors onto the boundary taxonomy.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	if err == context.DeadlineExceeded || strings.Contains(err.Error(), "deadline exceeded") ||
		strings.Contains(err.Error(), "timeout") {
		return &Error{Kind: KindTimeout, Message: "provider call timed out", Cause: err}
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "context length") || strings.Contains(msg, "maximum context") ||
		strings.Contains(msg, "context_length_exceeded") {
		return &Error{Kind: KindContextOverflow, Message: "prompt exceeds model context", Cause: err}
	}
	return &Error{Kind: KindProvider, Message: "provider call failed", Cause: err}
}

// estimateTokens is the coarse chars/4 prompt estimate used only for
// completion budgeting on this provider.
func estimateTokens(text string) int {
	return len(text) / 4
}
