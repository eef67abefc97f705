package models

// Session kinds
const (
	SessionAwaitingPrice = "awaiting_price"
	SessionRequestWizard = "request_wizard"
)

// Session bridges a user's multi-step chat interaction to the request it
// refers to. It is never persisted beyond the session cache.
type Session struct {
	Kind      string        `json:"kind"`
	RequestID string        `json:"request_id,omitempty"`
	Draft     *RequestDraft `json:"draft,omitempty"`
}

// RequestDraft collects a requester's answers before the request is created.
type RequestDraft struct {
	Type           string `json:"type"`
	RouteKey       string `json:"route_key,omitempty"`
	DesiredTime    string `json:"desired_time,omitempty"`
	Seats          int    `json:"seats,omitempty"`
	PackageKind    string `json:"package_kind,omitempty"`
	LocationDetail string `json:"location_detail,omitempty"`
	VoiceRef       string `json:"voice_ref,omitempty"`
	PhotoRef       string `json:"photo_ref,omitempty"`
	Step           string `json:"step"`
}

// Wizard steps
const (
	StepRoute   = "route"
	StepTime    = "time"
	StepSeats   = "seats"
	StepPackage = "package"
	StepDetails = "details"
)
