// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"
)

type mainSuite struct {
	testing.IsolationSuite

	dir    string
	server *httptest.Server
}

var _ = gc.Suite(&mainSuite{})

const machinesResponse = `[{
	"system_id": "4y3ha3",
	"hostname": "node-1",
	"status_name": "Ready",
	"resource_uri": "/MAAS/api/2.0/machines/4y3ha3/"
}]`

func (s *mainSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.PatchEnvironment("MAAS_SERVER", "")
	s.PatchEnvironment("MAAS_API_KEY", "")
	s.dir = c.MkDir()
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/MAAS/api/2.0/machines/" {
			http.Error(w, "unexpected "+r.Method+" "+r.URL.Path, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, machinesResponse)
	}))
	s.AddCleanup(func(*gc.C) { s.server.Close() })
}

func (s *mainSuite) run(c *gc.C, args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	ctx := &Context{
		Context: context.Background(),
		Dir:     s.dir,
		Stdout:  &stdout,
		Stderr:  &stderr,
	}
	code := newSuperCommand(newApplyCommand(false), newApplyCommand(true)).Main(ctx, args)
	return code, stdout.String(), stderr.String()
}

func (s *mainSuite) writeStates(c *gc.C, hostname string) {
	doc := fmt.Sprintf(`
maas:
  server: %s/MAAS
  api-key: consumer:token:secret
states:
  - id: sdb
    disk-partition-present:
      hostname: %s
      disk: sdb
      partition-schema:
        sdb-part1: {size: 10G}
`, s.server.URL, hostname)
	err := os.WriteFile(filepath.Join(s.dir, "states.yaml"), []byte(doc), 0644)
	c.Assert(err, jc.ErrorIsNil)
}

func (s *mainSuite) TestNoArgs(c *gc.C) {
	code, _, stderr := s.run(c)
	c.Check(code, gc.Equals, exitInvalid)
	c.Check(stderr, jc.Contains, "usage: maasng [options] <command> ...")
}

func (s *mainSuite) TestHelp(c *gc.C) {
	code, stdout, _ := s.run(c, "help")
	c.Check(code, gc.Equals, exitOK)
	c.Check(stdout, jc.Contains, "apply    apply declared states to MAAS")
	c.Check(stdout, jc.Contains, "check    preview the changes declared states would make")
}

func (s *mainSuite) TestHelpCommand(c *gc.C) {
	code, stdout, _ := s.run(c, "help", "apply")
	c.Check(code, gc.Equals, exitOK)
	c.Check(stdout, jc.Contains, "usage: maasng apply [options] <file>")
	c.Check(stdout, jc.Contains, "-dry-run")
}

func (s *mainSuite) TestUnknownCommand(c *gc.C) {
	code, _, stderr := s.run(c, "destroy")
	c.Check(code, gc.Equals, exitInvalid)
	c.Check(stderr, gc.Equals, "ERROR unrecognized command: maasng destroy\n")
}

func (s *mainSuite) TestNoFile(c *gc.C) {
	code, _, stderr := s.run(c, "apply")
	c.Check(code, gc.Equals, exitInvalid)
	c.Check(stderr, jc.HasPrefix, "ERROR no state file specified\n")
}

func (s *mainSuite) TestExtraArgs(c *gc.C) {
	code, _, stderr := s.run(c, "apply", "a.yaml", "b.yaml")
	c.Check(code, gc.Equals, exitInvalid)
	c.Check(stderr, jc.HasPrefix, `ERROR unrecognized args: ["b.yaml"]`)
}

func (s *mainSuite) TestMissingFile(c *gc.C) {
	code, _, stderr := s.run(c, "apply", "missing.yaml")
	c.Check(code, gc.Equals, exitInvalid)
	c.Check(stderr, jc.Contains, "missing.yaml")
}

func (s *mainSuite) TestMissingCredentials(c *gc.C) {
	err := os.WriteFile(filepath.Join(s.dir, "states.yaml"), []byte("states: []\n"), 0644)
	c.Assert(err, jc.ErrorIsNil)
	code, _, stderr := s.run(c, "check", "states.yaml")
	c.Check(code, gc.Equals, exitInvalid)
	c.Check(stderr, jc.Contains, "empty Server not valid")
}

func (s *mainSuite) TestCredentialsFromEnvironment(c *gc.C) {
	err := os.WriteFile(filepath.Join(s.dir, "states.yaml"), []byte("states: []\n"), 0644)
	c.Assert(err, jc.ErrorIsNil)
	s.PatchEnvironment("MAAS_SERVER", s.server.URL+"/MAAS")
	s.PatchEnvironment("MAAS_API_KEY", "consumer:token:secret")
	code, stdout, _ := s.run(c, "check", "states.yaml")
	c.Check(code, gc.Equals, exitOK)
	c.Check(stdout, gc.Equals, "[]\n")
}

func (s *mainSuite) TestBadLoggingConfig(c *gc.C) {
	s.writeStates(c, "node-1")
	code, _, stderr := s.run(c, "--logging-config", "<root>=LOUD", "check", "states.yaml")
	c.Check(code, gc.Equals, exitInvalid)
	c.Check(stderr, jc.HasPrefix, "ERROR logging config")
}

func (s *mainSuite) TestCheck(c *gc.C) {
	s.writeStates(c, "node-1")
	code, stdout, _ := s.run(c, "check", "states.yaml", "--metrics-file", "metrics.prom")
	c.Check(code, gc.Equals, exitOK)
	c.Check(stdout, gc.Equals, `
- id: sdb
  state: disk-partition-present
  name: node-1
  changes: {}
  result: null
  comment: Partition schema will be changed on sdb, this action will delete current layout.
`[1:])

	metrics, err := os.ReadFile(filepath.Join(s.dir, "metrics.prom"))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(string(metrics), jc.Contains,
		`maasng_state_results_total{outcome="pending",state="disk-partition-present"} 1`)
}

func (s *mainSuite) TestApplyDryRunFlag(c *gc.C) {
	s.writeStates(c, "node-1")
	code, stdout, _ := s.run(c, "apply", "--dry-run", "states.yaml")
	c.Check(code, gc.Equals, exitOK)
	c.Check(stdout, jc.Contains, "result: null")
}

func (s *mainSuite) TestUnknownMachineFails(c *gc.C) {
	s.writeStates(c, "node-2")
	code, stdout, _ := s.run(c, "check", "states.yaml")
	c.Check(code, gc.Equals, exitFailed)
	c.Check(stdout, jc.Contains, "result: false")
	c.Check(stdout, jc.Contains, "comment: State execution failed for machine node-2")
}

func (s *mainSuite) TestJSONOutput(c *gc.C) {
	s.writeStates(c, "node-1")
	code, _, _ := s.run(c, "check", "--format", "json", "-o", "out.json", "states.yaml")
	c.Check(code, gc.Equals, exitOK)

	data, err := os.ReadFile(filepath.Join(s.dir, "out.json"))
	c.Assert(err, jc.ErrorIsNil)
	var reports []map[string]interface{}
	c.Assert(json.Unmarshal(data, &reports), jc.ErrorIsNil)
	c.Assert(reports, gc.HasLen, 1)
	c.Check(reports[0]["result"], gc.IsNil)
	c.Check(reports[0]["name"], gc.Equals, "node-1")
}

func (s *mainSuite) TestBadFormat(c *gc.C) {
	code, _, stderr := s.run(c, "check", "--format", "xml", "states.yaml")
	c.Check(code, gc.Equals, exitInvalid)
	c.Check(stderr, jc.Contains, `format "xml" not valid`)
}
