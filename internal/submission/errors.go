package submission

import "fmt"

// SubmitError is a fatal failure. Rows written by earlier stages are left
// in place; Stage is the last stage that completed.
type SubmitError struct {
	Stage Stage
	Op    string
	Err   error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submission failed to %s (after %s): %v", e.Op, e.Stage, e.Err)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// UserMessage is the single notification shown for a fatal failure
func (e *SubmitError) UserMessage() string {
	switch e.Stage {
	case StageAdmitted:
		return "We couldn't save the customer for this estimate. Please try again."
	case StageCustomerResolved:
		return "We couldn't create the estimate. Please try again."
	case StageEstimateCreated:
		return "The estimate was created but its revision could not be saved."
	case StageRevisionCreated:
		return "The estimate was created but its line items could not be saved."
	}
	return "We couldn't submit the estimate. Please try again."
}
