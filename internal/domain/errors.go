package domain

import "fmt"

// FetchError reports an unreachable or failing feed or history source.
type FetchError struct {
	Source string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.Source, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ClassifyError marks a malformed feed record. The record is dropped, never fatal.
type ClassifyError struct {
	ItemID string
	Reason string
}

func (e *ClassifyError) Error() string {
	return fmt.Sprintf("classify %q: %s", e.ItemID, e.Reason)
}

// PublishStepError reports the publish step that failed.
type PublishStepError struct {
	Step string
	Err  error
}

func (e *PublishStepError) Error() string {
	return fmt.Sprintf("publish step %s: %v", e.Step, e.Err)
}

func (e *PublishStepError) Unwrap() error { return e.Err }

// ResizeError wraps image decode/scale/encode failures.
type ResizeError struct {
	Err error
}

func (e *ResizeError) Error() string {
	return fmt.Sprintf("resize media: %v", e.Err)
}

func (e *ResizeError) Unwrap() error { return e.Err }

// Publish steps, in execution order.
const (
	StepFetchMedia = "fetch_media"
	StepEncode     = "encode"
	StepUpload     = "upload"
	StepMetadata   = "metadata"
	StepStatus     = "status"
)
