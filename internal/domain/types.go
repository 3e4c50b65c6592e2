package domain

import "time"

type CallID string
type CaseID string

type Timestamp = time.Time

// Role identifies who spoke a transcript turn.
type Role string

const (
	RoleCaller     Role = "caller"
	RoleDispatcher Role = "dispatcher"
)

// Slot is one required conversational field.
type Slot string

const (
	SlotEmergency Slot = "emergency"
	SlotLocation  Slot = "location"
	SlotName      Slot = "name"
	SlotNumber    Slot = "number"
)

// RetryKey names an independent re-prompt budget.
type RetryKey string

const (
	RetryLocation    RetryKey = "location"
	RetryName        RetryKey = "name"
	RetryPhone       RetryKey = "phone"
	RetryPhoneFormat RetryKey = "phone_format"
)

// Priority levels: 1 (most severe) through 5 (informational), 0 is unclassified.
type Priority int

const (
	PriorityUnclassified Priority = 0
	PriorityCritical     Priority = 1
	PriorityHigh         Priority = 2
	PriorityMedium       Priority = 3
	PriorityLow          Priority = 4
	PriorityInfo         Priority = 5
)

func (p Priority) Valid() bool {
	return p >= PriorityCritical && p <= PriorityInfo
}

func (p Priority) Label() string {
	switch p {
	case PriorityCritical:
		return "CRITICAL"
	case PriorityHigh:
		return "HIGH"
	case PriorityMedium:
		return "MEDIUM"
	case PriorityLow:
		return "LOW"
	case PriorityInfo:
		return "INFO"
	default:
		return "UNKNOWN"
	}
}

type CaseStatus string

const (
	StatusOpen     CaseStatus = "open"
	StatusResolved CaseStatus = "resolved"
)

// Coordinate sources.
const (
	SourceGeocoder  = "geocoder"
	SourceDeviceGPS = "device-gps"
)

// Coordinates is a resolved position for a caller.
type Coordinates struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Accuracy    float64 `json:"accuracy,omitempty"`
	Source      string  `json:"source,omitempty"`
	DisplayName string  `json:"display_name,omitempty"`
}

// Region is the administrative breakdown used by the dashboard filters.
type Region struct {
	City     string `json:"city"`
	District string `json:"district"`
	State    string `json:"state"`
	Country  string `json:"country"`
}

const UnknownRegionPart = "Unknown"

// UnknownRegion is the default when nothing could be resolved.
func UnknownRegion() Region {
	return Region{
		City:     UnknownRegionPart,
		District: UnknownRegionPart,
		State:    UnknownRegionPart,
		Country:  "India",
	}
}
