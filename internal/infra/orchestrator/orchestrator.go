package orchestrator

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"jitmcp/internal/domain"
	"jitmcp/internal/infra/session"
)

// toolCatalog is the slice of the registry the orchestrator reads.
type toolCatalog interface {
	Categories() ([]string, error)
}

// searcher runs one ranked search pass.
type searcher interface {
	Search(ctx context.Context, query string, filters domain.SearchFilters) ([]domain.SearchResult, error)
}

// Orchestrator drives a user query through the staged pipeline: intent
// check, search, candidate review, hydration, execution. Tool capability
// is loaded just in time and discarded when the turn ends; the model only
// ever sees the minimal fragment each stage requires.
type Orchestrator struct {
	catalog  toolCatalog
	search   searcher
	gateway  domain.ModelGateway
	executor domain.ToolExecutor
	policy   Policy
	metrics  domain.Metrics
	logger   *zap.Logger
}

// Options configures optional orchestrator collaborators.
type Options struct {
	Metrics domain.Metrics
	Logger  *zap.Logger
}

// New creates an orchestrator.
func New(catalog toolCatalog, search searcher, gateway domain.ModelGateway, executor domain.ToolExecutor, policy Policy, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = domain.NopMetrics{}
	}
	return &Orchestrator{
		catalog:  catalog,
		search:   search,
		gateway:  gateway,
		executor: executor,
		policy:   policy,
		metrics:  metrics,
		logger:   logger.Named("orchestrator"),
	}
}

// turnState carries the mutable position of one turn through its stages.
type turnState struct {
	sess  *session.Context
	stage domain.Stage
	since time.Time
}

// advance moves the turn to the next stage, enforcing the transition
// table. A violation is an internal bug, never a user-facing condition.
func (o *Orchestrator) advance(state *turnState, to domain.Stage) error {
	if !domain.CanTransition(state.stage, to) {
		return domain.E(domain.CodeInternal, "orchestrator.advance",
			string(state.stage)+" -> "+string(to), domain.ErrIllegalTransition)
	}
	o.metrics.ObserveStage(state.stage, time.Since(state.since))
	state.stage = to
	state.since = time.Now()
	return nil
}

// Query runs one full orchestrated turn. Degraded capability (search
// down, nothing confirmed, hydration failed) produces a degraded result
// with a direct answer, not an error; errors are reserved for failures of
// the turn itself.
func (o *Orchestrator) Query(ctx context.Context, sessionID, text string) (domain.TurnResult, error) {
	started := time.Now()
	result := domain.TurnResult{ID: uuid.NewString()}

	if strings.TrimSpace(text) == "" {
		o.metrics.ObserveTurn(domain.TurnStatusError, time.Since(started))
		return result, domain.E(domain.CodeInvalidArgument, "orchestrator.query", "", domain.ErrEmptyQuery)
	}

	state := &turnState{
		sess:  session.NewContext(sessionID),
		stage: domain.StageIdle,
		since: started,
	}
	defer state.sess.Reset()

	status := domain.TurnStatusError
	defer func() {
		o.metrics.ObserveTurn(status, time.Since(started))
	}()

	// Stage: intent check. Only the category list enters the prompt.
	categories, err := o.catalog.Categories()
	if err != nil {
		o.logger.Warn("category listing failed, classifying without it", zap.Error(err))
	}
	state.sess.SetCategories(categories)
	fragment := state.sess.RenderFragment(domain.StageIdle)

	if err := o.advance(state, domain.StageIntentCheck); err != nil {
		return result, err
	}
	intent, err := o.gateway.DetectIntent(ctx, text, fragment)
	if err != nil {
		return result, err
	}
	result.Intent = intent

	if !intent.NeedsTools {
		if err := o.advance(state, domain.StageIdle); err != nil {
			return result, err
		}
		answer, err := o.gateway.Answer(ctx, text)
		if err != nil {
			return result, err
		}
		result.Answer = answer
		status = domain.TurnStatusAnswered
		return result, nil
	}

	// Stage: search. A failing or empty search degrades to a direct
	// answer instead of failing the turn.
	if err := o.advance(state, domain.StageSearching); err != nil {
		return result, err
	}
	filters := domain.SearchFilters{}
	if len(intent.ToolCategories) == 1 {
		filters.Category = intent.ToolCategories[0]
	}
	candidates, err := o.search.Search(ctx, intent.SearchQuery, filters)
	if err != nil {
		o.logger.Warn("search failed, degrading to direct answer", zap.Error(err))
		return o.degrade(ctx, state, result, text, "tool search unavailable", &status)
	}
	if len(candidates) == 0 {
		return o.degrade(ctx, state, result, text, "no tools matched the query", &status)
	}
	state.sess.SetCandidates(candidates)
	result.Candidates = len(candidates)

	// Stage: candidate review. The session is the gatekeeper: only names
	// it accepts count as confirmed.
	if err := o.advance(state, domain.StageCandidateReview); err != nil {
		return result, err
	}
	selected, err := o.policy.Confirm(ctx, text, candidates)
	if err != nil {
		o.logger.Warn("confirmation failed, degrading to direct answer", zap.Error(err))
		return o.degrade(ctx, state, result, text, "candidate confirmation unavailable", &status)
	}
	confirmed := state.sess.Confirm(selected)
	if len(confirmed) == 0 {
		return o.degrade(ctx, state, result, text, "no tools confirmed for this query", &status)
	}
	result.Confirmed = confirmed

	// Stage: hydration. Full schemas are fetched per server, in parallel.
	if err := o.advance(state, domain.StageHydrating); err != nil {
		return result, err
	}
	o.hydrate(ctx, state.sess, candidates, confirmed)
	active := state.sess.ActiveTools()
	if len(active) == 0 {
		return o.degrade(ctx, state, result, text, "tool schemas could not be hydrated", &status)
	}

	// Stage: execution.
	if err := o.advance(state, domain.StageExecuting); err != nil {
		return result, err
	}
	calls, err := o.gateway.GenerateToolCalls(ctx, text, active)
	if err != nil {
		return result, err
	}
	if len(calls) == 0 {
		// The model declined every tool it asked for.
		if err := o.advance(state, domain.StageIdle); err != nil {
			return result, err
		}
		answer, err := o.gateway.Answer(ctx, text)
		if err != nil {
			return result, err
		}
		result.Answer = answer
		status = domain.TurnStatusAnswered
		return result, nil
	}

	result.Calls = o.dispatch(ctx, state.sess, calls)
	if err := o.advance(state, domain.StageIdle); err != nil {
		return result, err
	}
	status = domain.TurnStatusExecuted
	return result, nil
}

// degrade finishes the turn with a direct answer and a reason. The
// reason is always surfaced; capability loss is never silent.
func (o *Orchestrator) degrade(ctx context.Context, state *turnState, result domain.TurnResult, userQuery, reason string, status *domain.TurnStatus) (domain.TurnResult, error) {
	if err := o.advance(state, domain.StageIdle); err != nil {
		return result, err
	}
	result.Degraded = reason
	answer, err := o.gateway.Answer(ctx, userQuery)
	if err != nil {
		return result, err
	}
	result.Answer = answer
	*status = domain.TurnStatusDegraded
	return result, nil
}

// hydrate fetches schemas for every server the confirmed tools live on,
// one fetch per distinct URI, and activates the confirmed subset.
func (o *Orchestrator) hydrate(ctx context.Context, sess *session.Context, candidates []domain.SearchResult, confirmed []string) {
	uriByName := make(map[string]string, len(candidates))
	for _, candidate := range candidates {
		uriByName[candidate.Metadata.Name] = candidate.Metadata.URI
	}

	namesByURI := make(map[string][]string)
	for _, name := range confirmed {
		uri, ok := uriByName[name]
		if !ok || uri == "" {
			o.logger.Warn("confirmed tool has no locator", zap.String("tool", name))
			continue
		}
		namesByURI[uri] = append(namesByURI[uri], name)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for uri, names := range namesByURI {
		wg.Add(1)
		go func(uri string, names []string) {
			defer wg.Done()
			schemas, err := o.executor.FetchSchemas(ctx, uri)
			if err != nil {
				o.logger.Warn("schema hydration failed",
					zap.String("uri", uri),
					zap.Strings("tools", names),
					zap.Error(err),
				)
				return
			}
			byName := make(map[string]domain.ToolSchema, len(schemas))
			for _, schema := range schemas {
				byName[schema.Name] = schema
			}

			mu.Lock()
			defer mu.Unlock()
			for _, name := range names {
				schema, ok := byName[name]
				if !ok {
					o.logger.Warn("tool not advertised by its server",
						zap.String("tool", name),
						zap.String("uri", uri),
					)
					continue
				}
				if err := sess.Hydrate(name, schema); err != nil {
					o.logger.Warn("hydrate rejected", zap.String("tool", name), zap.Error(err))
				}
			}
		}(uri, names)
	}
	wg.Wait()
}

// dispatch validates and executes the generated calls. Calls naming a
// tool outside the active set are rejected, never forwarded; valid calls
// run concurrently and report per-call outcomes.
func (o *Orchestrator) dispatch(ctx context.Context, sess *session.Context, calls []domain.ToolCallRequest) []domain.ToolCallOutcome {
	outcomes := make([]domain.ToolCallOutcome, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		schema, ok := sess.ActiveTool(call.Name)
		if !ok {
			outcomes[i] = domain.ToolCallOutcome{
				Name:      call.Name,
				Arguments: call.Arguments,
				Err:       domain.ErrUnknownToolCall.Error(),
				Rejected:  true,
			}
			o.metrics.ObserveToolCall(domain.CallStatusRejected, 0)
			o.logger.Warn("rejected call to inactive tool", zap.String("tool", call.Name))
			continue
		}

		wg.Add(1)
		go func(i int, call domain.ToolCallRequest, uri string) {
			defer wg.Done()
			outcome, err := o.executor.Invoke(ctx, uri, call.Name, call.Arguments)
			if err != nil {
				outcome.Name = call.Name
				outcome.Arguments = call.Arguments
				outcome.Err = err.Error()
			}
			outcomes[i] = outcome
		}(i, call, schema.URI)
	}
	wg.Wait()

	return outcomes
}
