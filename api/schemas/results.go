package schemas

import "time"

// -- Result Schemas --

// Status is the overall outcome of a run.
type Status string

const (
	StatusSuccess             Status = "success"
	StatusSuccessWithWarnings Status = "success_with_warnings"
	StatusFailed              Status = "failed"
)

// WarningCode classifies element scoped problems that did not abort the scan.
type WarningCode string

const (
	WarnSelectorCollisionUnresolved WarningCode = "SelectorCollisionUnresolved"
	WarnElementVanished             WarningCode = "ElementVanished"
	WarnElementLimitReached         WarningCode = "ElementLimitReached"
)

// Warning is a non fatal, element scoped issue.
type Warning struct {
	Code      WarningCode `json:"code" yaml:"code"`
	ElementID string      `json:"element_id,omitempty" yaml:"element_id,omitempty"`
	Selector  string      `json:"selector,omitempty" yaml:"selector,omitempty"`
	Message   string      `json:"message" yaml:"message"`
}

// FailureReason is the typed cause of a fatal run failure.
type FailureReason struct {
	Code    string `json:"code" yaml:"code"`
	Message string `json:"message" yaml:"message"`
	URL     string `json:"url,omitempty" yaml:"url,omitempty"`
}

// RunMetadata summarizes one generation run for the renderer.
type RunMetadata struct {
	RunID              string        `json:"run_id" yaml:"run_id"`
	Driver             string        `json:"driver" yaml:"driver"`
	TargetURL          string        `json:"target_url" yaml:"target_url"`
	FinalURL           string        `json:"final_url,omitempty" yaml:"final_url,omitempty"`
	PageTitle          string        `json:"page_title" yaml:"page_title"`
	ElementCount       int           `json:"element_count" yaml:"element_count"`
	MethodCount        int           `json:"method_count" yaml:"method_count"`
	AuthenticationUsed bool          `json:"authentication_used" yaml:"authentication_used"`
	StartedAt          time.Time     `json:"started_at" yaml:"started_at"`
	Duration           time.Duration `json:"duration" yaml:"duration"`
}

// ScanResult is the single success or failure result of one run.
type ScanResult struct {
	Status   Status             `json:"status" yaml:"status"`
	Metadata RunMetadata        `json:"metadata" yaml:"metadata"`
	Elements []DetectedElement  `json:"elements" yaml:"elements"`
	Methods  []MethodDescriptor `json:"methods" yaml:"methods"`
	Warnings []Warning          `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Failures []FailureReason    `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// Finalize derives Status and the metadata counters from the collected data.
func (r *ScanResult) Finalize() {
	r.Metadata.ElementCount = len(r.Elements)
	r.Metadata.MethodCount = len(r.Methods)
	switch {
	case len(r.Failures) > 0:
		r.Status = StatusFailed
	case len(r.Warnings) > 0:
		r.Status = StatusSuccessWithWarnings
	default:
		r.Status = StatusSuccess
	}
}
