package pipeline

// Stage names one step of a run.
type Stage string

const (
	StageValidate  Stage = "validate"
	StageOverlay   Stage = "overlay"
	StageUpload    Stage = "transform.upload"
	StageTransform Stage = "transform"
	StagePoll      Stage = "transform.poll"
	StageCaption   Stage = "caption"
	StageDownload  Stage = "finalize.download"
	StageThumbnail Stage = "finalize.thumbnail"
	StageStore     Stage = "finalize.store"
	StagePersist   Stage = "finalize.persist"
	StageCleanup   Stage = "finalize.cleanup"
	StageNotify    Stage = "finalize.notify"
)

// FailurePolicy says what a failure in a stage does to the run.
type FailurePolicy string

const (
	// PolicyFatal aborts the run.
	PolicyFatal FailurePolicy = "fatal"
	// PolicyFallback substitutes a deterministic result and continues.
	PolicyFallback FailurePolicy = "fallback"
	// PolicyAdvisory logs and continues; the result is already durable.
	PolicyAdvisory FailurePolicy = "advisory"
)

// Policies is the failure policy of every stage.
var Policies = map[Stage]FailurePolicy{
	StageValidate:  PolicyFatal,
	StageOverlay:   PolicyFatal,
	StageUpload:    PolicyFatal,
	StageTransform: PolicyFatal,
	StagePoll:      PolicyFatal,
	StageCaption:   PolicyFallback,
	StageDownload:  PolicyFatal,
	StageThumbnail: PolicyFatal,
	StageStore:     PolicyFatal,
	StagePersist:   PolicyFatal,
	StageCleanup:   PolicyAdvisory,
	StageNotify:    PolicyAdvisory,
}

// PolicyFor returns the policy of a stage; unknown stages are fatal.
func PolicyFor(stage Stage) FailurePolicy {
	if policy, ok := Policies[stage]; ok {
		return policy
	}
	return PolicyFatal
}
