package interpret

import (
	"ballotscan/internal/domain/ballot"
	"ballotscan/internal/ports"
)

// Action selects what an interpreter worker should do with a request.
type Action string

const (
	ActionConfigure    Action = "configure"
	ActionDetectQrcode Action = "detect-qrcode"
	ActionInterpret    Action = "interpret"
)

// Config is everything an interpreter worker needs to know about the current
// election before it can interpret pages.
type Config struct {
	Election            *ballot.ElectionDefinition  `json:"election"`
	TestMode            bool                        `json:"testMode"`
	CurrentPrecinctID   string                      `json:"currentPrecinctId,omitempty"`
	AdjudicationReasons []ballot.AdjudicationReason `json:"adjudicationReasons,omitempty"`
	MarkThresholds      ports.MarkThresholds        `json:"markThresholds"`
	Templates           []ports.HmpbTemplate        `json:"templates,omitempty"`
}

// Input is one request to an interpreter worker.
type Input struct {
	Action Action `json:"action"`

	// configure
	Config *Config `json:"config,omitempty"`

	// detect-qrcode and interpret
	SheetID   string `json:"sheetId,omitempty"`
	ImagePath string `json:"imagePath,omitempty"`

	// interpret: the QR code to use, already normalized across the sheet
	Qrcode *ballot.Qrcode `json:"qrcode,omitempty"`
}

// Output is one reply from an interpreter worker. Error is set instead of a
// payload when the request itself failed.
type Output struct {
	Error          string                      `json:"error,omitempty"`
	Qrcode         *ballot.Qrcode              `json:"qrcode,omitempty"`
	Interpretation *ballot.InterpretationField `json:"interpretation,omitempty"`
}
