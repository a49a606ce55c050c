// Mgmt
// Copyright (C) James Shubin and the project contributors
// Written by James Shubin <james@shubin.ca> and the project contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	cliUtil "github.com/purpleidea/probgraph/cli/util"
	"github.com/purpleidea/probgraph/lang"
	"github.com/purpleidea/probgraph/lang/distributions"
	"github.com/purpleidea/probgraph/lang/interfaces"
	"github.com/purpleidea/probgraph/util"

	"github.com/kylelemons/godebug/pretty"
	"github.com/spf13/afero"
)

const scenario = `name: scenario
program:
  - x: {sample: {normal: [0, 1]}}
  - y: {sample: {normal: [0, 1]}}
  - if: {">": [x, 0]}
    then:
      - observe: [{normal: [x, 1]}, 2]
    else:
      - observe: [{normal: [y, 1]}, 2]
`

func newCompiler(t *testing.T, format string) (*Compiler, *bytes.Buffer) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/model.yaml", []byte(scenario), 0644); err != nil {
		t.Fatalf("could not write program: %+v", err)
	}
	stdout := &bytes.Buffer{}
	obj := &Compiler{
		Lang: &lang.Lang{
			Fs:    fs,
			Input: "/model.yaml",
		},
		Config: &Config{
			Format: format,
		},
		Stdout: stdout,
		Logf: func(format string, v ...interface{}) {
			t.Logf("cli: "+format, v...)
		},
	}
	if err := obj.Init(); err != nil {
		t.Fatalf("could not init: %+v", err)
	}
	return obj, stdout
}

func TestParseConfig0(t *testing.T) {
	type test struct { // an individual test
		name string
		code string
		fail bool
		exp  *Config
	}
	testCases := []test{}

	testCases = append(testCases, test{
		name: "empty",
		code: ``,
		exp:  &Config{},
	})
	testCases = append(testCases, test{
		name: "full",
		code: strings.Join([]string{
			"format: yaml",
			"output: /tmp/graph.yaml",
			"metrics: /tmp/probgraph.prom",
			"data-threshold: 8",
			"max-inline-depth: 4",
			"simplify-before-ssa: true",
			"state-object: s",
		}, "\n"),
		exp: &Config{
			Format:            "yaml",
			Output:            "/tmp/graph.yaml",
			Metrics:           "/tmp/probgraph.prom",
			DataThreshold:     8,
			MaxInlineDepth:    4,
			SimplifyBeforeSSA: true,
			StateObject:       "s",
		},
	})
	testCases = append(testCases, test{
		name: "unknown key",
		code: "colour: blue",
		fail: true,
	})
	testCases = append(testCases, test{
		name: "unknown format",
		code: "format: png",
		fail: true,
	})
	testCases = append(testCases, test{
		name: "negative threshold",
		code: "data-threshold: -1",
		fail: true,
	})

	names := []string{}
	for index, tc := range testCases { // run all the tests
		if tc.name == "" {
			t.Errorf("test #%d: not named", index)
			continue
		}
		if util.StrInList(tc.name, names) {
			t.Errorf("test #%d: duplicate sub test name of: %s", index, tc.name)
			continue
		}
		names = append(names, tc.name)

		t.Run(fmt.Sprintf("test #%d (%s)", index, tc.name), func(t *testing.T) {
			config, err := ParseConfig([]byte(tc.code))
			if !tc.fail && err != nil {
				t.Errorf("test #%d: FAIL", index)
				t.Errorf("test #%d: parse failed with: %+v", index, err)
				return
			}
			if tc.fail {
				if err == nil {
					t.Errorf("test #%d: FAIL", index)
					t.Errorf("test #%d: parse passed, expected fail", index)
				}
				return
			}
			if diff := pretty.Compare(config, tc.exp); diff != "" {
				t.Errorf("test #%d: FAIL", index)
				t.Errorf("test #%d: diff:\n%s", index, diff)
			}
		})
	}
}

func TestSettings(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/probgraph.yaml", []byte("format: dot\ndata-threshold: 8\n"), 0644); err != nil {
		t.Fatalf("could not write config: %+v", err)
	}

	threshold := 2
	args := &CompileArgs{
		Config:        "/probgraph.yaml",
		Output:        "/out.txt",
		DataThreshold: &threshold,
	}
	config, err := args.settings(fs)
	if err != nil {
		t.Fatalf("settings failed: %+v", err)
	}
	exp := &Config{
		Format:        "dot", // from the file
		Output:        "/out.txt",
		DataThreshold: 2, // the flag wins
	}
	if diff := pretty.Compare(config, exp); diff != "" {
		t.Errorf("unexpected settings, diff:\n%s", diff)
	}

	args = &CompileArgs{}
	if config, err := args.settings(fs); err != nil || config.Format != DefaultFormat {
		t.Errorf("expected the default format, got: %+v, %+v", config, err)
	}

	args = &CompileArgs{Format: "png"}
	if _, err := args.settings(fs); !errors.Is(err, cliUtil.UnknownFormat) {
		t.Errorf("expected an unknown format error, got: %+v", err)
	}

	args = &CompileArgs{Config: "/missing.yaml"}
	if _, err := args.settings(fs); err == nil {
		t.Errorf("expected a missing config error")
	}
}

func TestCompile0(t *testing.T) {
	type test struct { // an individual test
		name   string
		format string
		exp    []string // lines that must be in the output
	}
	testCases := []test{}

	testCases = append(testCases, test{
		name:   "text",
		format: "text",
		exp: []string{
			"x30001 = sample(Normal(0, 1))",
			"cond_30003 = (x30001 > 0)",
			"y30005 = observe(Normal(x30002, 1), 2) if not cond_30003",
			"\tx30001 -> y30004",
		},
	})
	testCases = append(testCases, test{
		name:   "dot",
		format: "dot",
		exp: []string{
			`digraph "scenario" {`,
			`	"x30001" -> "y30004" [label="arc"];`,
			`	"x30001" -> "cond_30003" [label="test"];`,
			`	"cond_30003" -> "y30005" [label="false"];`,
		},
	})
	testCases = append(testCases, test{
		name:   "yaml",
		format: "yaml",
		exp: []string{
			"name: scenario",
			"- name: cond_30003",
			"  kind: condition",
			"  test: (x30001 > 0)",
			"- from: x30002",
			"  to: y30005",
		},
	})
	testCases = append(testCases, test{
		name:   "python",
		format: "python",
		exp: []string{
			"def sample_prior(state):",
			`    state["cond_30003"] = (state["x30001"] > 0)`,
		},
	})

	names := []string{}
	for index, tc := range testCases { // run all the tests
		if tc.name == "" {
			t.Errorf("test #%d: not named", index)
			continue
		}
		if util.StrInList(tc.name, names) {
			t.Errorf("test #%d: duplicate sub test name of: %s", index, tc.name)
			continue
		}
		names = append(names, tc.name)

		t.Run(fmt.Sprintf("test #%d (%s)", index, tc.name), func(t *testing.T) {
			obj, stdout := newCompiler(t, tc.format)
			if err := obj.Compile(); err != nil {
				t.Errorf("test #%d: FAIL", index)
				t.Errorf("test #%d: compile failed with: %+v", index, err)
				return
			}
			lines := strings.Split(stdout.String(), "\n")
			for _, exp := range tc.exp {
				if !util.StrInList(exp, lines) {
					t.Errorf("test #%d: FAIL", index)
					t.Errorf("test #%d: missing line: %s", index, exp)
					t.Logf("test #%d: output:\n%s", index, stdout.String())
				}
			}
		})
	}
}

func TestCompileOutput(t *testing.T) {
	obj, stdout := newCompiler(t, "text")
	obj.Config.Output = "/graph.txt"
	if err := obj.Compile(); err != nil {
		t.Fatalf("compile failed: %+v", err)
	}
	if stdout.Len() != 0 {
		t.Errorf("unexpected stdout output: %s", stdout.String())
	}
	b, err := afero.ReadFile(obj.Lang.Fs, "/graph.txt")
	if err != nil {
		t.Fatalf("could not read output: %+v", err)
	}
	if !strings.HasPrefix(string(b), "x30001 = sample(Normal(0, 1))\n") {
		t.Errorf("unexpected output: %s", b)
	}
}

func TestExport(t *testing.T) {
	obj, _ := newCompiler(t, "text")
	output, err := obj.Lang.Run()
	if err != nil {
		t.Fatalf("compile failed: %+v", err)
	}
	out := Export(output.Name, output.Graph)
	for _, n := range out.Nodes {
		n.Line = 0 // the front end tests the lines
	}
	exp := &ExportGraph{
		Name: "scenario",
		Nodes: []*ExportNode{
			{Name: "x30001", Kind: "sampled", Family: "Normal", Args: []string{"0", "1"}, Original: "x"},
			{Name: "x30002", Kind: "sampled", Family: "Normal", Args: []string{"0", "1"}, Original: "y"},
			{Name: "cond_30003", Kind: "condition", Test: "(x30001 > 0)", Ancestors: []string{"x30001"}},
			{Name: "y30004", Kind: "observed", Family: "Normal", Args: []string{"x30001", "1"}, Value: "2", Ancestors: []string{"x30001"}, Conditions: []string{"cond_30003"}},
			{Name: "y30005", Kind: "observed", Family: "Normal", Args: []string{"x30002", "1"}, Value: "2", Ancestors: []string{"x30002"}, Conditions: []string{"not cond_30003"}},
		},
		Arcs: []*ExportArc{
			{From: "x30001", To: "y30004"},
			{From: "x30002", To: "y30005"},
		},
	}
	if diff := pretty.Compare(out, exp); diff != "" {
		t.Errorf("unexpected export, diff:\n%s", diff)
	}
}

func TestFormatUnknown(t *testing.T) {
	obj, _ := newCompiler(t, "png")
	if err := obj.Compile(); !errors.Is(err, cliUtil.UnknownFormat) {
		t.Errorf("expected an unknown format error, got: %+v", err)
	}
	if s := strings.Join(Formats(), ","); s != "dot,python,text,yaml" {
		t.Errorf("unexpected formats: %s", s)
	}
}

func TestDistributions(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := (&DistributionsArgs{}).List(buf); err != nil {
		t.Fatalf("run failed: %+v", err)
	}
	lines := strings.Split(buf.String(), "\n")
	for _, exp := range []string{"Normal(loc, scale) continuous", "Poisson(rate) discrete", "Discrete(...) discrete"} {
		if !util.StrInList(exp, lines) {
			t.Errorf("missing line: %s", exp)
		}
	}

	buf.Reset()
	if err := (&DistributionsArgs{Discrete: true}).List(buf); err != nil {
		t.Fatalf("run failed: %+v", err)
	}
	if strings.Contains(buf.String(), "continuous") {
		t.Errorf("unexpected continuous family:\n%s", buf.String())
	}

	if err := (&DistributionsArgs{Continuous: true, Discrete: true}).List(buf); err == nil {
		t.Errorf("expected an error with both filters")
	}
}

func TestDistributionsCheck(t *testing.T) {
	logged := []string{}
	logf := func(format string, v ...interface{}) {
		logged = append(logged, fmt.Sprintf(format, v...))
	}
	if err := check(distributions.Default(), logf); err != nil {
		t.Errorf("default registry failed the check: %+v", err)
	}
	if len(logged) != 0 {
		t.Errorf("unexpected problems: %v", logged)
	}

	families := []*interfaces.Distribution{
		{Name: "Normal", Params: []string{"loc", "loc"}},
	}
	registry, _ := distributions.NewRegistry(families, map[string]string{"gauss": "Gaussian"})
	if err := check(registry, logf); err == nil {
		t.Errorf("expected an error")
	}
	// the duplicate parameter and the bad alias
	if len(logged) != 2 {
		t.Errorf("unexpected problems: %v", logged)
	}
}

func TestCLI(t *testing.T) {
	if err := CLI(context.Background(), nil); err == nil {
		t.Errorf("expected an error without data")
	}
	data := &cliUtil.Data{
		Program: "probgraph",
		Version: "0.0.1",
		Args:    []string{"probgraph", "--nope"},
		Flags: cliUtil.Flags{
			Logf: t.Logf,
		},
	}
	if err := CLI(context.Background(), data); err == nil {
		t.Errorf("expected a parse error")
	}
}

func TestCLICompile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "model.yaml")
	output := filepath.Join(dir, "graph.yaml")
	metrics := filepath.Join(dir, "probgraph.prom")
	if err := os.WriteFile(input, []byte(scenario), 0644); err != nil {
		t.Fatalf("could not write program: %+v", err)
	}

	data := &cliUtil.Data{
		Program: "probgraph",
		Version: "0.0.1",
		Args: []string{
			"probgraph", "compile",
			"--format", "yaml",
			"--output", output,
			"--metrics", metrics,
			input,
		},
		Flags: cliUtil.Flags{
			Logf: t.Logf,
		},
	}
	if err := CLI(context.Background(), data); err != nil {
		t.Fatalf("cli failed: %+v", err)
	}

	b, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("could not read output: %+v", err)
	}
	if !strings.HasPrefix(string(b), "name: scenario\n") {
		t.Errorf("unexpected output:\n%s", b)
	}
	b, err = os.ReadFile(metrics)
	if err != nil {
		t.Fatalf("could not read metrics: %+v", err)
	}
	if !strings.Contains(string(b), `probgraph_compile_total{errorful="false"} 1`) {
		t.Errorf("unexpected metrics:\n%s", b)
	}
}

func TestReconfigure(t *testing.T) {
	obj, _ := newCompiler(t, "text")
	if err := obj.Reconfigure(&Config{Format: "text", StateObject: "s"}); err != nil {
		t.Fatalf("reconfigure failed: %+v", err)
	}
	if obj.Lang.StateObject != "s" {
		t.Errorf("state object was not copied: %s", obj.Lang.StateObject)
	}
	if err := obj.Reconfigure(&Config{Format: "text", DataThreshold: -1}); err == nil {
		t.Errorf("expected an error for a negative threshold")
	}
}
