package domain

// Stage is the orchestrator's position in the per-turn flow.
type Stage string

const (
	StageIdle            Stage = "idle"
	StageIntentCheck     Stage = "intent_check"
	StageSearching       Stage = "searching"
	StageCandidateReview Stage = "candidate_review"
	StageHydrating       Stage = "hydrating"
	StageExecuting       Stage = "executing"
)

// stageTransitions is the explicit transition table. Every stage may fall
// back to idle (tool-free turns, zero confirmations, aborted stages);
// forward progress is strictly sequential.
var stageTransitions = map[Stage][]Stage{
	StageIdle:            {StageIntentCheck},
	StageIntentCheck:     {StageSearching, StageIdle},
	StageSearching:       {StageCandidateReview, StageIdle},
	StageCandidateReview: {StageHydrating, StageIdle},
	StageHydrating:       {StageExecuting, StageIdle},
	StageExecuting:       {StageIdle},
}

// CanTransition reports whether from -> to is a legal stage transition.
func CanTransition(from, to Stage) bool {
	for _, allowed := range stageTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (s Stage) String() string {
	return string(s)
}
