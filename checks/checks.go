// Package checks collects schema findings from dialect validation and
// renders them for humans. Findings carry stable IDs (schema.W001 style) so
// they can be filtered and asserted on.
package checks

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Level grades a finding.
type Level int

const (
	Warning Level = iota
	Error
)

func (l Level) String() string {
	if l == Error {
		return "error"
	}
	return "warning"
}

// Message is one finding against a schema object.
type Message struct {
	Level Level
	ID    string // stable identifier, e.g. "schema.W001"
	Text  string
	Hint  string
	Obj   string // "table.column" or "table" the finding is about
}

// Diagnostics accumulates findings across checks.
type Diagnostics struct {
	messages []Message
}

func (d *Diagnostics) Push(m Message) { d.messages = append(d.messages, m) }

func (d *Diagnostics) PushWarning(id, obj, text, hint string) {
	d.Push(Message{Level: Warning, ID: id, Obj: obj, Text: text, Hint: hint})
}

func (d *Diagnostics) PushError(id, obj, text, hint string) {
	d.Push(Message{Level: Error, ID: id, Obj: obj, Text: text, Hint: hint})
}

// Merge appends another collection's findings.
func (d *Diagnostics) Merge(other *Diagnostics) {
	if other != nil {
		d.messages = append(d.messages, other.messages...)
	}
}

func (d *Diagnostics) Messages() []Message { return d.messages }

func (d *Diagnostics) HasErrors() bool {
	for _, m := range d.messages {
		if m.Level == Error {
			return true
		}
	}
	return false
}

func (d *Diagnostics) HasWarnings() bool {
	for _, m := range d.messages {
		if m.Level == Warning {
			return true
		}
	}
	return false
}

// ToResult folds the collection into an error when any error-level finding
// is present.
func (d *Diagnostics) ToResult() error {
	if !d.HasErrors() {
		return nil
	}
	n := 0
	var first Message
	for _, m := range d.messages {
		if m.Level == Error {
			if n == 0 {
				first = m
			}
			n++
		}
	}
	if n == 1 {
		return fmt.Errorf("%s: %s (%s)", first.ID, first.Text, first.Obj)
	}
	return fmt.Errorf("%s: %s (%s) and %d more errors", first.ID, first.Text, first.Obj, n-1)
}

// Pretty writes findings with colored level markers.
func (d *Diagnostics) Pretty(w io.Writer) {
	red := color.New(color.FgRed, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	dim := color.New(color.Faint)

	for _, m := range d.messages {
		switch m.Level {
		case Error:
			red.Fprintf(w, "ERROR %s", m.ID)
		default:
			yellow.Fprintf(w, "WARN  %s", m.ID)
		}
		fmt.Fprintf(w, " %s: %s\n", m.Obj, m.Text)
		if m.Hint != "" {
			dim.Fprintf(w, "      hint: %s\n", m.Hint)
		}
	}
}
