package model

import (
	"crypto/rand"
	"math"
	"strings"
	"sync"
	"time"

	"code-redemption/internal/domain"

	"github.com/oklog/ulid/v2"
)

type AttemptStatus string

const (
	AttemptStatusSuccess AttemptStatus = "success"
	AttemptStatusFailed  AttemptStatus = "failed"
)

func (s AttemptStatus) Valid() bool {
	return s == AttemptStatusSuccess || s == AttemptStatusFailed
}

// Contact holds the optional, free-text fields an end user submits with a code.
// They are kept for audit only and never influence redemption.
type Contact struct {
	Name             string `json:"name"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	PurchaseLocation string `json:"purchase_location"`
}

// ClientInfo is best-effort request provenance.
type ClientInfo struct {
	IP        string `json:"client_ip"`
	UserAgent string `json:"client_agent"`
}

// Attempt is one recorded redemption submission. Attempts are never updated
// after they are appended.
type Attempt struct {
	ID        string
	CodeValue string
	Contact   Contact
	Status    AttemptStatus
	Client    ClientInfo
	CreatedAt time.Time
	// Redacted is set when an admin purged a successful attempt; contact and
	// client fields are blanked but the row keeps the code redeemed.
	Redacted bool
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

func newAttemptID(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

func NewAttempt(codeValue string, status AttemptStatus, contact Contact, client ClientInfo) (*Attempt, error) {
	if strings.TrimSpace(codeValue) == "" || !status.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now().UTC()
	return &Attempt{
		ID:        newAttemptID(now),
		CodeValue: codeValue,
		Contact:   contact,
		Status:    status,
		Client:    client,
		CreatedAt: now,
	}, nil
}

// AttemptFilter narrows attempt listings. Search matches code value, name,
// email and phone case-insensitively.
type AttemptFilter struct {
	Status AttemptStatus
	Search string
	// ClientIP and Since narrow to one client over a window.
	ClientIP string
	Since    time.Time
}

// AttemptSummary backs the dashboard.
type AttemptSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// Page is an offset/limit window.
type Page struct {
	Offset int
	Limit  int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 500
)

// MaxPage keeps Offset within a 32-bit OFFSET for any page size.
const MaxPage = math.MaxInt32 / MaxPageSize

// NewPage converts a 1-based page number and size into a Page, clamping both.
func NewPage(page, size int) Page {
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	return Page{Offset: (page - 1) * size, Limit: size}
}
