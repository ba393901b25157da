// Package buzzer implements the Buzzer Registry of spec §4.2: a
// map of live buzzer-device websocket connections, one-per-id
// enforcement, identification handshake with a timeout, and
// best-effort outbound LED-pattern dispatch. The read/write pump pair
// is lifted directly from the upstream party-game Client type
// (conn *websocket.Conn, send chan any, one goroutine per direction).
package buzzer

import "github.com/neonbeat/back/internal/model"

// InboundFrame is the WS inbound shape of spec §6: {type, id}.
type InboundFrame struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

const (
	frameIdentification = "identification"
	frameBuzz           = "buzz"
)

// PatternType is the outbound LED pattern kind.
type PatternType string

const (
	PatternBlink PatternType = "blink"
	PatternWave  PatternType = "wave"
	PatternOff   PatternType = "off"
)

// PatternDetails parameterizes blink/wave patterns; omitted for "off".
type PatternDetails struct {
	DurationMS int        `json:"duration_ms"`
	PeriodMS   int        `json:"period_ms"`
	DC         float64    `json:"dc"`
	Color      model.HSV  `json:"color"`
}

// Pattern is one LED instruction.
type Pattern struct {
	Type    PatternType     `json:"type"`
	Details *PatternDetails `json:"details,omitempty"`
}

// OutboundFrame is the WS outbound shape of spec §6: {pattern:{...}}.
type OutboundFrame struct {
	Pattern Pattern `json:"pattern"`
}
