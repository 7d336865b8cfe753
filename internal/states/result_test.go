// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package states_test

import (
	"bytes"
	"encoding/json"

	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"
	"gopkg.in/yaml.v3"

	"github.com/juju/maasng/internal/states"
)

type resultSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&resultSuite{})

func (s *resultSuite) TestOutcomeString(c *gc.C) {
	c.Check(states.Succeeded.String(), gc.Equals, "succeeded")
	c.Check(states.Failed.String(), gc.Equals, "failed")
	c.Check(states.Pending.String(), gc.Equals, "pending")
	c.Check(states.Outcome(7).String(), gc.Equals, "Outcome(7)")
}

func (s *resultSuite) TestMarshalYAML(c *gc.C) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	err := enc.Encode([]states.Result{{
		Name:    "node-1",
		Changes: states.Changes{},
		Result:  states.Succeeded,
		Comment: "ok",
	}, {
		Name:    "node-2",
		Changes: states.Changes{"error": "boom"},
		Result:  states.Failed,
		Comment: "bad",
	}, {
		Name:    "node-3",
		Changes: states.Changes{},
		Result:  states.Pending,
		Comment: "later",
	}})
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(enc.Close(), jc.ErrorIsNil)
	c.Check(buf.String(), gc.Equals, `
- name: node-1
  changes: {}
  result: true
  comment: ok
- name: node-2
  changes:
    error: boom
  result: false
  comment: bad
- name: node-3
  changes: {}
  result: null
  comment: later
`[1:])
}

func (s *resultSuite) TestMarshalJSON(c *gc.C) {
	out, err := json.Marshal(states.Result{
		Name:    "fabric-0",
		Changes: states.Changes{"vid": 10},
		Result:  states.Pending,
		Comment: "Vlan 10 will be updated for fabric-0",
	})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(string(out), gc.Equals,
		`{"name":"fabric-0","changes":{"vid":10},"result":null,"comment":"Vlan 10 will be updated for fabric-0"}`)
}

func (s *resultSuite) TestFailed(c *gc.C) {
	c.Check(states.Result{Result: states.Failed}.Failed(), jc.IsTrue)
	c.Check(states.Result{Result: states.Pending}.Failed(), jc.IsFalse)
	c.Check(states.Result{Result: states.Succeeded}.Failed(), jc.IsFalse)
}
