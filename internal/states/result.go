// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package states

import (
	"encoding/json"
	"fmt"
)

// Outcome is the tri-state result of applying a state.
type Outcome int

const (
	// Succeeded means the state holds, whether or not anything changed.
	Succeeded Outcome = iota
	// Failed means the state could not be applied.
	Failed
	// Pending means a dry run found changes that would be made.
	Pending
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Pending:
		return "pending"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// value is the boolean rendering used in reports: true,
// false, or null for a pending change.
func (o Outcome) value() interface{} {
	switch o {
	case Succeeded:
		return true
	case Failed:
		return false
	}
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (o Outcome) MarshalYAML() (interface{}, error) {
	return o.value(), nil
}

// MarshalJSON implements json.Marshaler.
func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.value())
}

// Changes describes what a state mutated. It is empty when nothing
// changed.
type Changes map[string]interface{}

// Result reports the outcome of applying one state.
type Result struct {
	// Name identifies the subject of the state: a hostname, fabric or
	// boot source URL.
	Name    string  `yaml:"name" json:"name"`
	Changes Changes `yaml:"changes" json:"changes"`
	Result  Outcome `yaml:"result" json:"result"`
	Comment string  `yaml:"comment" json:"comment"`
}

func newResult(name, comment string) Result {
	return Result{
		Name:    name,
		Changes: Changes{},
		Result:  Succeeded,
		Comment: comment,
	}
}

// fail marks the result failed, recording err as the change payload.
func (r Result) fail(err error, comment string) Result {
	r.Result = Failed
	r.Comment = comment
	r.Changes = Changes{"error": err.Error()}
	return r
}

func (r Result) pending(comment string) Result {
	r.Result = Pending
	r.Comment = comment
	return r
}

// Failed reports whether the state failed.
func (r Result) Failed() bool {
	return r.Result == Failed
}
