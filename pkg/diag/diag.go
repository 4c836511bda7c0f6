// Package diag holds the fixed catalog of diagnostic messages attached to
// computed resource outputs. Codes are stable: external layers show them
// verbatim and may key translations or suppressions on them.
package diag

import (
	"fmt"
	"slices"
	"strings"
)

// Severity of a diagnostic message.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// MarshalText lets JSON/YAML encoders emit the severity name.
func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Severity) UnmarshalText(b []byte) error {
	for _, v := range []Severity{Info, Warning, Error} {
		if v.String() == string(b) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("diag: unknown severity %q", b)
}

// Code identifies a catalog entry.
type Code int

const (
	ClockDisabled      Code = 101
	ClockNoFanOut      Code = 102
	ClockFanOutLimit   Code = 103
	ClockGated         Code = 104
	FabricLEBadClock   Code = 201
	FabricLEDisabled   Code = 202
	DSPBadClock        Code = 211
	DSPDisabled        Code = 212
	BRAMBadClock       Code = 301
	BRAMDisabled       Code = 302
	BRAMPortUnused     Code = 303
	IOBadClock         Code = 401
	IODisabled         Code = 402
	IOZeroBusWidth     Code = 403
	PeripheralDisabled Code = 501
	PeripheralPending  Code = 502
	DeviceOverBudget   Code = 601
	DeviceJunctionHot  Code = 602
)

type entry struct {
	severity Severity
	text     string
}

// Placeholders are written as {name} and filled by New.
var catalog = map[Code]entry{
	ClockDisabled:      {Info, "This clock is disabled"},
	ClockNoFanOut:      {Warning, "Clock {clock} is active but nothing uses it"},
	ClockFanOutLimit:   {Warning, "Clock {clock} fan-out {fanout} exceeds the supported {limit}"},
	ClockGated:         {Info, "Clock {clock} is gated"},
	FabricLEBadClock:   {Error, "Invalid clock {clock}"},
	FabricLEDisabled:   {Info, "This logic element is disabled"},
	DSPBadClock:        {Error, "Invalid clock {clock}"},
	DSPDisabled:        {Info, "This DSP is disabled"},
	BRAMBadClock:       {Error, "Invalid clock {clock} on port {port}"},
	BRAMDisabled:       {Info, "This block RAM is disabled"},
	BRAMPortUnused:     {Info, "Port {port} has zero width and is not used"},
	IOBadClock:         {Error, "Invalid clock {clock}"},
	IODisabled:         {Info, "This IO is disabled"},
	IOZeroBusWidth:     {Warning, "Bus width is zero"},
	PeripheralDisabled: {Info, "This peripheral is disabled"},
	PeripheralPending:  {Info, "Power model for {kind} is not available yet"},
	DeviceOverBudget:   {Warning, "Total {scenario} power {power} exceeds the budget {budget}"},
	DeviceJunctionHot:  {Warning, "Estimated {scenario} junction temperature {temp} exceeds {max}"},
}

// Message is a rendered diagnostic.
type Message struct {
	Code     Code     `json:"code"`
	Severity Severity `json:"severity"`
	Text     string   `json:"text"`
}

func (m Message) String() string {
	return fmt.Sprintf("[%s %d] %s", m.Severity, m.Code, m.Text)
}

// Args fills named placeholders.
type Args map[string]any

// New renders the catalog entry for code. Unknown codes panic: the catalog
// is fixed at compile time and a miss is a programming error.
func New(code Code, args Args) Message {
	e, ok := catalog[code]
	if !ok {
		panic(fmt.Sprintf("diag: unknown code %d", code))
	}
	text := e.text
	if len(args) > 0 {
		pairs := make([]string, 0, 2*len(args))
		for k, v := range args {
			pairs = append(pairs, "{"+k+"}", fmt.Sprint(v))
		}
		text = strings.NewReplacer(pairs...).Replace(text)
	}
	return Message{Code: code, Severity: e.severity, Text: text}
}

// Codes returns every catalog code in ascending order.
func Codes() []Code {
	out := make([]Code, 0, len(catalog))
	for c := range catalog {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// Has reports whether msgs contains code.
func Has(msgs []Message, code Code) bool {
	return slices.ContainsFunc(msgs, func(m Message) bool { return m.Code == code })
}

// Worst returns the highest severity in msgs, or Info when msgs is empty.
func Worst(msgs []Message) Severity {
	w := Info
	for _, m := range msgs {
		w = max(w, m.Severity)
	}
	return w
}
