package model

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/eino-contrib/jsonschema"
	"go.uber.org/zap"

	"jitmcp/internal/domain"
)

// EinoGateway is the single model boundary of the pipeline. Intent
// detection, candidate review, call generation, and direct answering all
// pass through here; nothing else in the daemon talks to the model.
type EinoGateway struct {
	config  domain.ModelConfig
	model   model.ToolCallingChatModel
	metrics domain.Metrics
	logger  *zap.Logger
}

// GatewayOptions configures optional gateway collaborators.
type GatewayOptions struct {
	Metrics domain.Metrics
	Logger  *zap.Logger
}

// NewEinoGateway creates the gateway and initializes the configured chat
// model.
func NewEinoGateway(ctx context.Context, config domain.ModelConfig, opts GatewayOptions) (*EinoGateway, error) {
	chatModel, err := initializeModel(ctx, config)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = domain.NopMetrics{}
	}

	return &EinoGateway{
		config:  config,
		model:   chatModel,
		metrics: metrics,
		logger:  logger.Named("model"),
	}, nil
}

// DetectIntent classifies whether the query needs tools and, if so, what
// to search for. A malformed model response is retried once with a
// stricter prompt before the turn fails.
func (g *EinoGateway) DetectIntent(ctx context.Context, userQuery, fragment string) (domain.IntentResponse, error) {
	const op = "model.detect_intent"

	prompt := buildIntentPrompt(userQuery, fragment, false)
	response, err := g.generate(ctx, g.model, intentSystemPrompt, prompt)
	if err != nil {
		return domain.IntentResponse{}, domain.Wrap(domain.CodeUnavailable, op, err)
	}

	intent, parseErr := parseIntent(response.Content)
	if parseErr == nil {
		return intent, nil
	}
	g.logger.Warn("malformed intent response, retrying",
		zap.String("response", response.Content),
		zap.Error(parseErr),
	)

	prompt = buildIntentPrompt(userQuery, fragment, true)
	response, err = g.generate(ctx, g.model, intentSystemPrompt, prompt)
	if err != nil {
		return domain.IntentResponse{}, domain.Wrap(domain.CodeUnavailable, op, err)
	}
	intent, parseErr = parseIntent(response.Content)
	if parseErr != nil {
		return domain.IntentResponse{}, domain.E(domain.CodeInvalidArgument, op, parseErr.Error(), domain.ErrMalformedIntent)
	}
	return intent, nil
}

// SelectTools asks the model to pick the candidates relevant to the
// query. Names outside the candidate set make the whole response invalid.
func (g *EinoGateway) SelectTools(ctx context.Context, userQuery string, candidates []domain.SearchResult) ([]string, error) {
	const op = "model.select_tools"
	if len(candidates) == 0 {
		return nil, nil
	}

	response, err := g.generate(ctx, g.model, selectSystemPrompt, buildSelectPrompt(userQuery, candidates))
	if err != nil {
		return nil, domain.Wrap(domain.CodeUnavailable, op, err)
	}
	return parseSelectedTools(response.Content, candidates)
}

// GenerateToolCalls binds the hydrated schemas as callable tools and asks
// the model to produce call requests. An empty result means the model
// chose to answer without calling anything.
func (g *EinoGateway) GenerateToolCalls(ctx context.Context, userQuery string, tools []domain.ToolSchema) ([]domain.ToolCallRequest, error) {
	const op = "model.generate_tool_calls"

	infos, err := toolInfos(tools)
	if err != nil {
		return nil, domain.E(domain.CodeInvalidArgument, op, "bind tool schemas", err)
	}
	bound, err := g.model.WithTools(infos)
	if err != nil {
		return nil, domain.E(domain.CodeInvalidArgument, op, "bind tool schemas", err)
	}

	response, err := g.generate(ctx, bound, callSystemPrompt, userQuery)
	if err != nil {
		return nil, domain.Wrap(domain.CodeUnavailable, op, err)
	}

	calls := make([]domain.ToolCallRequest, 0, len(response.ToolCalls))
	for _, call := range response.ToolCalls {
		arguments := call.Function.Arguments
		if strings.TrimSpace(arguments) == "" {
			arguments = "{}"
		}
		calls = append(calls, domain.ToolCallRequest{
			Name:      call.Function.Name,
			Arguments: json.RawMessage(arguments),
		})
	}
	return calls, nil
}

// Answer produces a plain, tool-free answer.
func (g *EinoGateway) Answer(ctx context.Context, userQuery string) (string, error) {
	const op = "model.answer"
	response, err := g.generate(ctx, g.model, answerSystemPrompt, userQuery)
	if err != nil {
		return "", domain.Wrap(domain.CodeUnavailable, op, err)
	}
	return response.Content, nil
}

func (g *EinoGateway) generate(ctx context.Context, chatModel model.ToolCallingChatModel, system, user string) (*schema.Message, error) {
	messages := []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(user),
	}

	started := time.Now()
	response, err := chatModel.Generate(ctx, messages)
	g.metrics.ObserveModelLatency(g.config.Provider, g.config.Model, time.Since(started))
	if err != nil {
		return nil, err
	}
	g.observeTokenUsage(response)
	return response, nil
}

func (g *EinoGateway) observeTokenUsage(response *schema.Message) {
	if response == nil || response.ResponseMeta == nil || response.ResponseMeta.Usage == nil {
		return
	}
	tokens := response.ResponseMeta.Usage.TotalTokens
	if tokens <= 0 {
		return
	}
	g.metrics.ObserveModelTokens(g.config.Provider, g.config.Model, tokens)
}

func buildIntentPrompt(userQuery, fragment string, strict bool) string {
	var sb strings.Builder
	if fragment != "" {
		sb.WriteString(fragment)
		sb.WriteString("\n\n")
	}
	sb.WriteString("User query: ")
	sb.WriteString(userQuery)
	sb.WriteString("\n\nDecide whether external tools are needed to answer this query.")
	if strict {
		sb.WriteString("\nYour previous response was not valid JSON. Respond with the JSON object ONLY, no markdown fences, no commentary.")
	}
	return sb.String()
}

// parseIntent decodes the intent JSON. Responses wrapped in markdown
// fences are unwrapped first.
func parseIntent(response string) (domain.IntentResponse, error) {
	var intent domain.IntentResponse
	raw := trimCodeFence(response)
	if err := json.Unmarshal([]byte(raw), &intent); err != nil {
		return domain.IntentResponse{}, fmt.Errorf("invalid JSON response: %w", err)
	}
	if intent.NeedsTools && strings.TrimSpace(intent.SearchQuery) == "" {
		return domain.IntentResponse{}, fmt.Errorf("needs_tools set without search_query")
	}
	return intent, nil
}

func buildSelectPrompt(userQuery string, candidates []domain.SearchResult) string {
	var sb strings.Builder
	sb.WriteString("User task: ")
	sb.WriteString(userQuery)
	sb.WriteString("\n\nCandidate tools:\n")
	for _, candidate := range candidates {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", candidate.Metadata.Name, candidate.Metadata.Description))
	}
	sb.WriteString("\nSelect only the tools that are directly relevant to completing this task.\n")
	sb.WriteString("Return only a JSON array of tool names. Do not include any other text.")
	return sb.String()
}

// parseSelectedTools extracts tool names from the model response and
// rejects any name that is not a candidate.
func parseSelectedTools(response string, candidates []domain.SearchResult) ([]string, error) {
	validNames := make(map[string]bool, len(candidates))
	for _, candidate := range candidates {
		validNames[candidate.Metadata.Name] = true
	}

	var jsonNames []string
	if err := json.Unmarshal([]byte(trimCodeFence(response)), &jsonNames); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}

	result := make([]string, 0, len(jsonNames))
	invalid := make([]string, 0)
	for _, name := range jsonNames {
		if validNames[name] {
			result = append(result, name)
			continue
		}
		invalid = append(invalid, name)
	}
	if len(invalid) > 0 {
		return nil, fmt.Errorf("invalid tool names: %s", strings.Join(invalid, ", "))
	}
	return result, nil
}

// toolInfos converts hydrated schemas into bindable tool definitions.
func toolInfos(tools []domain.ToolSchema) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(tools))
	for _, tool := range tools {
		info := &schema.ToolInfo{
			Name: tool.Name,
			Desc: tool.Description,
		}
		if len(tool.InputSchema) > 0 {
			js := &jsonschema.Schema{}
			if err := json.Unmarshal(tool.InputSchema, js); err != nil {
				return nil, fmt.Errorf("tool %s: %w", tool.Name, err)
			}
			info.ParamsOneOf = schema.NewParamsOneOfByJSONSchema(js)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// trimCodeFence unwraps a ```json fenced block if the model added one.
func trimCodeFence(response string) string {
	trimmed := strings.TrimSpace(response)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

const intentSystemPrompt = `You are an intent classifier for a tool orchestration system. Given a user query and the available tool categories, decide whether external tools are needed.

Output only a JSON object with these keys:
  "needs_tools": boolean, true when the query requires calling external tools
  "tool_categories": array of category names that apply (may be empty)
  "search_query": short keyword query describing the needed capability (required when needs_tools is true)
  "thought": one sentence of reasoning

Do not include any extra text or formatting.
Example: {"needs_tools": true, "tool_categories": ["Search"], "search_query": "current weather lookup", "thought": "The user asks about live weather."}`

const selectSystemPrompt = `You are a tool selection assistant. Given a user task and a list of candidate tools, select only the tools that are relevant to completing the task.

Output only a JSON array of tool names. Do not include any extra text or formatting.
Example: ["tool1", "tool2"]

Be selective - only include tools that are directly useful for the given task. Do not include tools that are only tangentially related.`

const callSystemPrompt = `You are a task execution assistant. Use the provided tools to complete the user's task. Call the tools with arguments that conform to their input schemas. If no tool applies, answer directly.`

const answerSystemPrompt = `You are a helpful assistant. Answer the user's query directly and concisely.`
