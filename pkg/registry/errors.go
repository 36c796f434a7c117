package registry

import "fmt"

// DuplicateIDError reports two records sharing one id within a load batch.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate skill id %q", e.ID)
}

// DanglingRelationError reports a related-skill reference that resolves
// to no record in the batch.
type DanglingRelationError struct {
	ID      string
	Related string
}

func (e *DanglingRelationError) Error() string {
	return fmt.Sprintf("skill %q relates to unknown skill %q", e.ID, e.Related)
}

// EmptyTriggerError reports a skill that declares no trigger at all and is
// not marked always-on, so it could never be matched.
type EmptyTriggerError struct {
	ID string
}

func (e *EmptyTriggerError) Error() string {
	return fmt.Sprintf("skill %q has no triggers and is not always-on", e.ID)
}

// InvalidCostError reports a non-positive token cost.
type InvalidCostError struct {
	ID   string
	Cost int
}

func (e *InvalidCostError) Error() string {
	return fmt.Sprintf("skill %q has invalid token cost %d", e.ID, e.Cost)
}

// NotFoundError reports a lookup for an id the active snapshot does not hold.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("skill %q not found", e.ID)
}
