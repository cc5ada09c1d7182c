package model

// Internal reasons. These go to logs and admin tooling, never to end users.
const (
	ReasonEmptyCode   = "empty code"
	ReasonNotFound    = "code not found"
	ReasonAlreadyUsed = "code already used"
	ReasonRateLimited = "rate limited"
	ReasonStoreError  = "store unavailable"
	ReasonSuccess     = "authentication successful"
)

// RedemptionRequest is what the front end submits.
type RedemptionRequest struct {
	Code    string
	Contact Contact
	Client  ClientInfo
}

// Outcome is the result of one authenticate call. PublicMessage is rendered
// from configured templates; InternalReason must not be shown to the user.
type Outcome struct {
	Success        bool
	PublicMessage  string
	InternalReason string
	// CodeValue is the canonical stored value that was matched, if any.
	CodeValue string
}
