package model

import (
	"strings"
	"time"

	"code-redemption/internal/domain"

	"github.com/google/uuid"
)

// Code is a provisioned, single-use credential. Its used/unused state is not
// stored here; it is derived from the attempt log.
type Code struct {
	ID        string
	Value     string
	CreatedAt time.Time
}

func NewCode(id, value string) (*Code, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, domain.ErrInvalidArgument
	}
	if id == "" {
		id = uuid.NewString()
	}
	return &Code{
		ID:        id,
		Value:     value,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// CodeStatus is the derived redemption state of a code value.
type CodeStatus string

const (
	CodeStatusUnseen CodeStatus = "unseen" // no Code record
	CodeStatusUnused CodeStatus = "unused"
	CodeStatusUsed   CodeStatus = "used"
)

func ParseCodeStatus(s string) (CodeStatus, bool) {
	switch CodeStatus(strings.ToLower(strings.TrimSpace(s))) {
	case CodeStatusUsed:
		return CodeStatusUsed, true
	case CodeStatusUnused:
		return CodeStatusUnused, true
	}
	return "", false
}

// CodeView is a Code joined with its derived status, used for listings and exports.
type CodeView struct {
	Code
	Status CodeStatus
	UsedAt *time.Time
}

// CodeStats holds the dashboard aggregates. Used+Unused always equals Total.
type CodeStats struct {
	Total  int `json:"total"`
	Used   int `json:"used"`
	Unused int `json:"unused"`
}

// CodeFilter narrows code listings. A zero Status means any.
type CodeFilter struct {
	Status CodeStatus
	Search string
}

// ProvisionResult reports the outcome of a bulk insert. Failures are kept
// per value so an operator can inspect them.
type ProvisionResult struct {
	Imported int               `json:"imported"`
	Skipped  int               `json:"skipped"`
	Failed   int               `json:"failed"`
	Errors   []ProvisionRowErr `json:"errors,omitempty"`
}

type ProvisionRowErr struct {
	Value string `json:"value"`
	Err   string `json:"error"`
}

// Dashboard is the admin summary: code aggregates plus attempt totals.
type Dashboard struct {
	Codes    CodeStats      `json:"codes"`
	Attempts AttemptSummary `json:"attempts"`
}
