package orchestrator

import (
	"context"

	"go.uber.org/zap"

	"jitmcp/internal/domain"
)

// Policy decides which search candidates are confirmed for hydration.
type Policy interface {
	Name() string
	Confirm(ctx context.Context, userQuery string, candidates []domain.SearchResult) ([]string, error)
}

// toolSelector is the slice of the model gateway the model policy needs.
type toolSelector interface {
	SelectTools(ctx context.Context, userQuery string, candidates []domain.SearchResult) ([]string, error)
}

// NewPolicy builds the confirmation policy named in cfg.
func NewPolicy(cfg domain.ConfirmConfig, selector toolSelector, logger *zap.Logger) (Policy, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Policy {
	case domain.PolicyTopK:
		k := cfg.TopK
		if k <= 0 {
			k = domain.DefaultConfirmTopK
		}
		return &TopKPolicy{K: k}, nil
	case domain.PolicyThreshold:
		return &ThresholdPolicy{Floor: cfg.Threshold}, nil
	case domain.PolicyModel, "":
		fallbackK := cfg.TopK
		if fallbackK <= 0 {
			fallbackK = domain.DefaultConfirmTopK
		}
		return &ModelPolicy{
			selector: selector,
			fallback: &TopKPolicy{K: fallbackK},
			logger:   logger.Named("confirm"),
		}, nil
	default:
		return nil, domain.E(domain.CodeInvalidArgument, "orchestrator.new_policy", "unknown confirm policy: "+cfg.Policy, nil)
	}
}

// TopKPolicy confirms the K highest-ranked candidates. Deterministic and
// model-free.
type TopKPolicy struct {
	K int
}

func (p *TopKPolicy) Name() string { return domain.PolicyTopK }

func (p *TopKPolicy) Confirm(_ context.Context, _ string, candidates []domain.SearchResult) ([]string, error) {
	limit := p.K
	if limit > len(candidates) {
		limit = len(candidates)
	}
	names := make([]string, 0, limit)
	for _, candidate := range candidates[:limit] {
		names = append(names, candidate.Metadata.Name)
	}
	return names, nil
}

// ThresholdPolicy confirms every candidate scoring at or above the floor.
type ThresholdPolicy struct {
	Floor float64
}

func (p *ThresholdPolicy) Name() string { return domain.PolicyThreshold }

func (p *ThresholdPolicy) Confirm(_ context.Context, _ string, candidates []domain.SearchResult) ([]string, error) {
	var names []string
	for _, candidate := range candidates {
		if candidate.Score >= p.Floor {
			names = append(names, candidate.Metadata.Name)
		}
	}
	return names, nil
}

// ModelPolicy lets the model review the candidates. A failed or invalid
// model response falls back to the deterministic policy instead of
// failing the turn.
type ModelPolicy struct {
	selector toolSelector
	fallback Policy
	logger   *zap.Logger
}

func (p *ModelPolicy) Name() string { return domain.PolicyModel }

func (p *ModelPolicy) Confirm(ctx context.Context, userQuery string, candidates []domain.SearchResult) ([]string, error) {
	names, err := p.selector.SelectTools(ctx, userQuery, candidates)
	if err != nil {
		p.logger.Warn("model confirmation failed, falling back",
			zap.String("fallback", p.fallback.Name()),
			zap.Error(err),
		)
		return p.fallback.Confirm(ctx, userQuery, candidates)
	}
	return names, nil
}
