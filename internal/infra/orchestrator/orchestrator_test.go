package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"jitmcp/internal/domain"
)

type fakeCatalog struct {
	categories []string
	err        error
}

func (f *fakeCatalog) Categories() ([]string, error) {
	return f.categories, f.err
}

type fakeSearcher struct {
	results []domain.SearchResult
	err     error
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string, _ domain.SearchFilters) ([]domain.SearchResult, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeGateway struct {
	intent       domain.IntentResponse
	intentErr    error
	selected     []string
	selectErr    error
	calls        []domain.ToolCallRequest
	callsErr     error
	answer       string
	answerErr    error
	answerCalled bool
}

func (f *fakeGateway) DetectIntent(context.Context, string, string) (domain.IntentResponse, error) {
	return f.intent, f.intentErr
}

func (f *fakeGateway) SelectTools(context.Context, string, []domain.SearchResult) ([]string, error) {
	return f.selected, f.selectErr
}

func (f *fakeGateway) GenerateToolCalls(context.Context, string, []domain.ToolSchema) ([]domain.ToolCallRequest, error) {
	return f.calls, f.callsErr
}

func (f *fakeGateway) Answer(context.Context, string) (string, error) {
	f.answerCalled = true
	return f.answer, f.answerErr
}

type fakeExecutor struct {
	schemas    map[string][]domain.ToolSchema
	fetchErr   error
	invoked    []string
	invokeErr  error
	callOutput string
}

func (f *fakeExecutor) FetchSchemas(_ context.Context, uri string) ([]domain.ToolSchema, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.schemas[uri], nil
}

func (f *fakeExecutor) Invoke(_ context.Context, _, toolName string, arguments json.RawMessage) (domain.ToolCallOutcome, error) {
	f.invoked = append(f.invoked, toolName)
	if f.invokeErr != nil {
		return domain.ToolCallOutcome{Name: toolName}, f.invokeErr
	}
	return domain.ToolCallOutcome{Name: toolName, Arguments: arguments, Content: f.callOutput}, nil
}

func weatherCandidates() []domain.SearchResult {
	return []domain.SearchResult{
		{Metadata: domain.ToolMetadata{Name: "weather_api", Description: "Look up weather", URI: "mcp://python/weather"}, Score: 3, Rank: 1},
		{Metadata: domain.ToolMetadata{Name: "forecast", Description: "Weekly forecast", URI: "mcp://python/weather"}, Score: 1, Rank: 2},
	}
}

func weatherSchemas() map[string][]domain.ToolSchema {
	return map[string][]domain.ToolSchema{
		"mcp://python/weather": {
			{Name: "weather_api", Description: "Look up weather", InputSchema: json.RawMessage(`{"type":"object"}`), URI: "mcp://python/weather"},
			{Name: "forecast", Description: "Weekly forecast", InputSchema: json.RawMessage(`{"type":"object"}`), URI: "mcp://python/weather"},
		},
	}
}

func newOrchestrator(catalog *fakeCatalog, search *fakeSearcher, gateway *fakeGateway, exec *fakeExecutor, policy Policy) *Orchestrator {
	if policy == nil {
		policy = &ModelPolicy{selector: gateway, fallback: &TopKPolicy{K: 3}, logger: zap.NewNop()}
	}
	return New(catalog, search, gateway, exec, policy, Options{Logger: zap.NewNop()})
}

func TestQuery_DirectAnswerWithoutTools(t *testing.T) {
	gateway := &fakeGateway{
		intent: domain.IntentResponse{NeedsTools: false},
		answer: "2 + 2 = 4",
	}
	search := &fakeSearcher{}
	orch := newOrchestrator(&fakeCatalog{}, search, gateway, &fakeExecutor{}, nil)

	result, err := orch.Query(context.Background(), "s1", "what is 2+2?")
	require.NoError(t, err)
	assert.Equal(t, "2 + 2 = 4", result.Answer)
	assert.Empty(t, result.Calls)
	assert.Empty(t, result.Degraded)
	assert.Empty(t, search.queries, "search must not run on tool-free turns")
}

func TestQuery_FullPipelineExecutesCalls(t *testing.T) {
	gateway := &fakeGateway{
		intent:   domain.IntentResponse{NeedsTools: true, SearchQuery: "weather lookup"},
		selected: []string{"weather_api"},
		calls: []domain.ToolCallRequest{
			{Name: "weather_api", Arguments: json.RawMessage(`{"city":"Paris"}`)},
		},
	}
	exec := &fakeExecutor{schemas: weatherSchemas(), callOutput: "22C, sunny"}
	orch := newOrchestrator(&fakeCatalog{categories: []string{"Search"}}, &fakeSearcher{results: weatherCandidates()}, gateway, exec, nil)

	result, err := orch.Query(context.Background(), "s1", "weather in Paris?")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Candidates)
	assert.Equal(t, []string{"weather_api"}, result.Confirmed)
	require.Len(t, result.Calls, 1)
	assert.Equal(t, "weather_api", result.Calls[0].Name)
	assert.Equal(t, "22C, sunny", result.Calls[0].Content)
	assert.Empty(t, result.Degraded)
	assert.Equal(t, []string{"weather_api"}, exec.invoked)
}

func TestQuery_UnknownToolCallRejectedNotDispatched(t *testing.T) {
	gateway := &fakeGateway{
		intent:   domain.IntentResponse{NeedsTools: true, SearchQuery: "weather"},
		selected: []string{"weather_api"},
		calls: []domain.ToolCallRequest{
			{Name: "weather_api", Arguments: json.RawMessage(`{}`)},
			{Name: "made_up_tool", Arguments: json.RawMessage(`{}`)},
		},
	}
	exec := &fakeExecutor{schemas: weatherSchemas(), callOutput: "ok"}
	orch := newOrchestrator(&fakeCatalog{}, &fakeSearcher{results: weatherCandidates()}, gateway, exec, nil)

	result, err := orch.Query(context.Background(), "s1", "weather?")
	require.NoError(t, err)
	require.Len(t, result.Calls, 2)
	assert.False(t, result.Calls[0].Rejected)
	assert.True(t, result.Calls[1].Rejected)
	assert.Equal(t, domain.ErrUnknownToolCall.Error(), result.Calls[1].Err)
	assert.Equal(t, []string{"weather_api"}, exec.invoked, "rejected call must not reach the executor")
}

func TestQuery_SearchFailureDegrades(t *testing.T) {
	gateway := &fakeGateway{
		intent: domain.IntentResponse{NeedsTools: true, SearchQuery: "weather"},
		answer: "I cannot check live weather right now.",
	}
	orch := newOrchestrator(&fakeCatalog{}, &fakeSearcher{err: errors.New("index offline")}, gateway, &fakeExecutor{}, nil)

	result, err := orch.Query(context.Background(), "s1", "weather?")
	require.NoError(t, err)
	assert.Equal(t, "tool search unavailable", result.Degraded)
	assert.NotEmpty(t, result.Answer)
}

func TestQuery_NoCandidatesDegrades(t *testing.T) {
	gateway := &fakeGateway{
		intent: domain.IntentResponse{NeedsTools: true, SearchQuery: "teleportation"},
		answer: "No tool can do that.",
	}
	orch := newOrchestrator(&fakeCatalog{}, &fakeSearcher{}, gateway, &fakeExecutor{}, nil)

	result, err := orch.Query(context.Background(), "s1", "teleport me")
	require.NoError(t, err)
	assert.Equal(t, "no tools matched the query", result.Degraded)
}

func TestQuery_NothingConfirmedDegrades(t *testing.T) {
	gateway := &fakeGateway{
		intent:   domain.IntentResponse{NeedsTools: true, SearchQuery: "weather"},
		selected: []string{},
		answer:   "Here is what I know offhand.",
	}
	orch := newOrchestrator(&fakeCatalog{}, &fakeSearcher{results: weatherCandidates()}, gateway, &fakeExecutor{}, nil)

	result, err := orch.Query(context.Background(), "s1", "weather?")
	require.NoError(t, err)
	assert.Equal(t, "no tools confirmed for this query", result.Degraded)
	assert.Empty(t, result.Confirmed)
}

func TestQuery_HydrationFailureDegrades(t *testing.T) {
	gateway := &fakeGateway{
		intent:   domain.IntentResponse{NeedsTools: true, SearchQuery: "weather"},
		selected: []string{"weather_api"},
		answer:   "Tool servers are unreachable.",
	}
	exec := &fakeExecutor{fetchErr: errors.New("connection refused")}
	orch := newOrchestrator(&fakeCatalog{}, &fakeSearcher{results: weatherCandidates()}, gateway, exec, nil)

	result, err := orch.Query(context.Background(), "s1", "weather?")
	require.NoError(t, err)
	assert.Equal(t, "tool schemas could not be hydrated", result.Degraded)
}

func TestQuery_ToolNotAdvertisedSkipped(t *testing.T) {
	gateway := &fakeGateway{
		intent:   domain.IntentResponse{NeedsTools: true, SearchQuery: "weather"},
		selected: []string{"weather_api", "forecast"},
		calls:    []domain.ToolCallRequest{{Name: "weather_api", Arguments: json.RawMessage(`{}`)}},
	}
	exec := &fakeExecutor{schemas: map[string][]domain.ToolSchema{
		// Server advertises only one of the two confirmed tools.
		"mcp://python/weather": {
			{Name: "weather_api", InputSchema: json.RawMessage(`{"type":"object"}`), URI: "mcp://python/weather"},
		},
	}}
	orch := newOrchestrator(&fakeCatalog{}, &fakeSearcher{results: weatherCandidates()}, gateway, exec, nil)

	result, err := orch.Query(context.Background(), "s1", "weather?")
	require.NoError(t, err)
	assert.Empty(t, result.Degraded)
	require.Len(t, result.Calls, 1)
	assert.Equal(t, "weather_api", result.Calls[0].Name)
}

func TestQuery_EmptyQueryFails(t *testing.T) {
	orch := newOrchestrator(&fakeCatalog{}, &fakeSearcher{}, &fakeGateway{}, &fakeExecutor{}, nil)

	_, err := orch.Query(context.Background(), "s1", "   ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEmptyQuery))
}

func TestQuery_IntentFailureIsATurnError(t *testing.T) {
	gateway := &fakeGateway{intentErr: domain.E(domain.CodeInvalidArgument, "model.detect_intent", "", domain.ErrMalformedIntent)}
	orch := newOrchestrator(&fakeCatalog{}, &fakeSearcher{}, gateway, &fakeExecutor{}, nil)

	_, err := orch.Query(context.Background(), "s1", "weather?")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMalformedIntent))
}

func TestQuery_NoGeneratedCallsFallsBackToAnswer(t *testing.T) {
	gateway := &fakeGateway{
		intent:   domain.IntentResponse{NeedsTools: true, SearchQuery: "weather"},
		selected: []string{"weather_api"},
		calls:    nil,
		answer:   "Paris is usually mild in May.",
	}
	exec := &fakeExecutor{schemas: weatherSchemas()}
	orch := newOrchestrator(&fakeCatalog{}, &fakeSearcher{results: weatherCandidates()}, gateway, exec, nil)

	result, err := orch.Query(context.Background(), "s1", "weather?")
	require.NoError(t, err)
	assert.Equal(t, "Paris is usually mild in May.", result.Answer)
	assert.Empty(t, result.Calls)
	assert.Empty(t, result.Degraded)
}

func TestTopKPolicy_ConfirmsHighestRanked(t *testing.T) {
	policy := &TopKPolicy{K: 1}
	names, err := policy.Confirm(context.Background(), "q", weatherCandidates())
	require.NoError(t, err)
	assert.Equal(t, []string{"weather_api"}, names)
}

func TestTopKPolicy_KLargerThanCandidates(t *testing.T) {
	policy := &TopKPolicy{K: 10}
	names, err := policy.Confirm(context.Background(), "q", weatherCandidates())
	require.NoError(t, err)
	assert.Len(t, names, 2)
}

func TestThresholdPolicy_FiltersByScore(t *testing.T) {
	policy := &ThresholdPolicy{Floor: 2.0}
	names, err := policy.Confirm(context.Background(), "q", weatherCandidates())
	require.NoError(t, err)
	assert.Equal(t, []string{"weather_api"}, names)
}

func TestModelPolicy_FallsBackOnSelectorFailure(t *testing.T) {
	gateway := &fakeGateway{selectErr: errors.New("model down")}
	policy := &ModelPolicy{selector: gateway, fallback: &TopKPolicy{K: 1}, logger: zap.NewNop()}

	names, err := policy.Confirm(context.Background(), "q", weatherCandidates())
	require.NoError(t, err)
	assert.Equal(t, []string{"weather_api"}, names)
}

func TestNewPolicy_SelectsByName(t *testing.T) {
	gateway := &fakeGateway{}

	policy, err := NewPolicy(domain.ConfirmConfig{Policy: domain.PolicyTopK, TopK: 2}, gateway, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.PolicyTopK, policy.Name())

	policy, err = NewPolicy(domain.ConfirmConfig{Policy: domain.PolicyThreshold, Threshold: 0.4}, gateway, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.PolicyThreshold, policy.Name())

	policy, err = NewPolicy(domain.ConfirmConfig{}, gateway, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.PolicyModel, policy.Name())

	_, err = NewPolicy(domain.ConfirmConfig{Policy: "coin_flip"}, gateway, nil)
	require.Error(t, err)
}
