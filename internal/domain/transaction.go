package domain

import "fmt"

// TransactionKind distinguishes cash movements from checks.
type TransactionKind string

const (
	TransactionCash  TransactionKind = "Cash"
	TransactionCheck TransactionKind = "Check"
)

// CheckState is the lifecycle state of a check.
type CheckState string

const (
	CheckNone     CheckState = "None"
	CheckPassed   CheckState = "Passed"
	CheckBounced  CheckState = "Bounced"
	CheckExpended CheckState = "Expended"
	CheckCashed   CheckState = "Cashed"
)

// CheckStates lists every valid state, in display order.
var CheckStates = []CheckState{CheckNone, CheckPassed, CheckBounced, CheckExpended, CheckCashed}

// ParseCheckState rejects anything that is not one of CheckStates.
func ParseCheckState(s string) (CheckState, error) {
	for _, st := range CheckStates {
		if string(st) == s {
			return st, nil
		}
	}
	return "", &ErrValidation{Field: "state", Message: fmt.Sprintf("unknown check state %q", s)}
}

// Transaction is a cash or check movement from one client to another.
// Check-only fields are empty for cash.
type Transaction struct {
	ID          string          `json:"id"`
	Kind        TransactionKind `json:"type"`
	FromClient  string          `json:"fromClient"`
	ToClient    string          `json:"toClient"`
	Amount      float64         `json:"amount"`
	Description string          `json:"description,omitempty"`
	Tags        []string        `json:"tags,omitempty"`

	CheckNumber string     `json:"checkNumber,omitempty"`
	Bank        string     `json:"bank,omitempty"`
	ReceiveDate string     `json:"receiveDate,omitempty"`
	DueDate     string     `json:"dueDate,omitempty"`
	State       CheckState `json:"state,omitempty"`
}

func (t Transaction) EntityID() string { return t.ID }
