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
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	cliUtil "github.com/purpleidea/probgraph/cli/util"
	"github.com/purpleidea/probgraph/lang"
	"github.com/purpleidea/probgraph/pgraph"
	"github.com/purpleidea/probgraph/prometheus"
	"github.com/purpleidea/probgraph/util/errwrap"
	"github.com/purpleidea/probgraph/util/recwatch"

	"github.com/spf13/afero"
)

// CompileArgs is the CLI parsing structure and type of the parsed result. This
// particular one compiles a single program.
type CompileArgs struct {
	Input string `arg:"positional,required" help:"yaml program to compile"`

	Config string `arg:"--config" help:"yaml config file with the default settings"`
	Format string `arg:"--format" help:"output format: text, dot, yaml or python"`
	Output string `arg:"--output" help:"file to write the output to, stdout if empty or -"`

	Metrics          string `arg:"--metrics" help:"file to write the prometheus metrics to after each compile"`
	Prometheus       bool   `arg:"--prometheus" help:"serve the prometheus metrics while running"`
	PrometheusListen string `arg:"--prometheus-listen" help:"specify prometheus instance binding"`

	Graphviz       string `arg:"--graphviz" help:"output file for graphviz data"`
	GraphvizFilter string `arg:"--graphviz-filter" default:"dot" help:"graphviz filter to use"`

	Watch bool `arg:"--watch" help:"recompile whenever the input or config changes"`

	DataThreshold     *int `arg:"--data-threshold" help:"length at which literal vectors become data nodes"`
	MaxInlineDepth    *int `arg:"--max-inline-depth" help:"bound on nested function inlining"`
	SimplifyBeforeSSA bool `arg:"--simplify-before-ssa" help:"run the simplifier before the ssa pass too"`
}

// settings merges the config file, if any, with the flags. A set flag always
// wins.
func (obj *CompileArgs) settings(fs afero.Fs) (*Config, error) {
	config := &Config{}
	if obj.Config != "" {
		var err error
		if config, err = LoadConfig(fs, obj.Config); err != nil {
			return nil, errwrap.Wrapf(err, "could not load config `%s`", obj.Config)
		}
	}
	if obj.Format != "" {
		config.Format = obj.Format
	}
	if config.Format == "" {
		config.Format = DefaultFormat
	}
	if _, exists := formats[config.Format]; !exists {
		return nil, errwrap.Wrapf(cliUtil.UnknownFormat, "format `%s`", config.Format)
	}
	if obj.Output != "" {
		config.Output = obj.Output
	}
	if obj.Metrics != "" {
		config.Metrics = obj.Metrics
	}
	if obj.DataThreshold != nil {
		config.DataThreshold = *obj.DataThreshold
	}
	if obj.MaxInlineDepth != nil {
		config.MaxInlineDepth = *obj.MaxInlineDepth
	}
	config.SimplifyBeforeSSA = config.SimplifyBeforeSSA || obj.SimplifyBeforeSSA
	return config, nil
}

// Run compiles the input once, or on every change of it with --watch.
func (obj *CompileArgs) Run(ctx context.Context, name string, data *cliUtil.Data) error {
	cliUtil.Hello(data.Program, data.Version, data.Flags)
	Logf := func(format string, v ...interface{}) {
		data.Flags.Logf(name+": "+format, v...)
	}

	fs := afero.NewOsFs()
	config, err := obj.settings(fs)
	if err != nil {
		return err
	}

	var metrics *prometheus.Prometheus
	if obj.Prometheus || config.Metrics != "" {
		metrics = &prometheus.Prometheus{
			Listen: obj.PrometheusListen,
		}
		if err := metrics.Init(); err != nil {
			return errwrap.Wrapf(err, "can't initialize prometheus")
		}
	}
	if obj.Prometheus {
		if err := metrics.Start(); err != nil {
			return errwrap.Wrapf(err, "can't start prometheus")
		}
		Logf("prometheus: listening on %s", metrics.Listen)
		defer func() {
			if err := metrics.Stop(); err != nil {
				Logf("prometheus: stop: %+v", err)
			}
		}()
	}

	compiler := &Compiler{
		Lang: &lang.Lang{
			Fs:      fs,
			Input:   obj.Input,
			Metrics: metrics,
			Debug:   data.Flags.Debug,
			Logf: func(format string, v ...interface{}) {
				data.Flags.Logf("lang: "+format, v...)
			},
		},
		Graphviz:       obj.Graphviz,
		GraphvizFilter: obj.GraphvizFilter,
		Stdout:         os.Stdout,
		Logf:           Logf,
	}
	if err := compiler.Reconfigure(config); err != nil {
		return err
	}

	if !obj.Watch {
		return compiler.Compile()
	}

	paths := []string{obj.Input}
	if obj.Config != "" {
		paths = append(paths, obj.Config)
	}
	watcher, err := recwatch.NewRecWatcher(paths,
		recwatch.Debug(data.Flags.Debug),
		recwatch.Logf(func(format string, v ...interface{}) {
			data.Flags.Logf("recwatch: "+format, v...)
		}),
	)
	if err != nil {
		return errwrap.Wrapf(err, "can't watch the input")
	}
	defer watcher.Close()

	if err := compiler.Compile(); err != nil {
		Logf("compile error: %+v", err) // keep watching
	}
	for {
		select {
		case event, ok := <-watcher.Events():
			if !ok {
				return nil
			}
			if err := event.Error; err != nil {
				return errwrap.Wrapf(err, "watch error")
			}
			if data.Flags.Debug {
				Logf("event: %v", event.Body)
			}
			if obj.Config != "" {
				c, err := obj.settings(fs)
				if err == nil {
					err = compiler.Reconfigure(c)
				}
				if err != nil {
					Logf("config error: %+v", err)
					continue
				}
			}
			if err := compiler.Compile(); err != nil {
				Logf("compile error: %+v", err)
			}

		case <-ctx.Done():
			Logf("exiting...")
			return nil
		}
	}
}

// Compiler runs a compilation and writes out all of its results.
type Compiler struct {
	Lang   *lang.Lang
	Config *Config

	// Graphviz is an optional file to write the graphviz data to, which
	// is then rendered with the GraphvizFilter program.
	Graphviz       string
	GraphvizFilter string

	// Stdout is where the output goes when no output file is set.
	Stdout io.Writer

	Logf func(format string, v ...interface{})
}

// Init validates the struct and initializes the compiler.
func (obj *Compiler) Init() error {
	if obj.Lang == nil || obj.Config == nil {
		return fmt.Errorf("the compiler is missing its lang or config")
	}
	if obj.Stdout == nil {
		obj.Stdout = os.Stdout
	}
	if obj.Logf == nil {
		obj.Logf = func(format string, v ...interface{}) {}
	}
	return obj.Lang.Init()
}

// Reconfigure copies the compiler settings of the config into the lang and
// initializes the compiler again.
func (obj *Compiler) Reconfigure(config *Config) error {
	if obj.Lang == nil {
		return fmt.Errorf("the compiler is missing its lang")
	}
	obj.Config = config
	obj.Lang.DataThreshold = config.DataThreshold
	obj.Lang.MaxInlineDepth = config.MaxInlineDepth
	obj.Lang.SimplifyBeforeSSA = config.SimplifyBeforeSSA
	obj.Lang.StateObject = config.StateObject
	return obj.Init()
}

// Compile compiles the input once and writes out the results. The metrics are
// written even when the compilation fails.
func (obj *Compiler) Compile() error {
	output, err := obj.Lang.Run()
	if m := obj.Lang.Metrics; m != nil && obj.Config.Metrics != "" {
		if err := m.WriteTextfile(obj.Config.Metrics); err != nil {
			obj.Logf("metrics: %+v", err)
		}
	}
	if err != nil {
		return err
	}
	obj.Logf("compiled `%s`: %d nodes", output.Name, output.Graph.Len())

	s, err := Format(obj.Config.Format, obj.Lang, output)
	if err != nil {
		return err
	}
	if out := obj.Config.Output; out != "" && out != "-" {
		if err := afero.WriteFile(obj.Lang.Fs, out, []byte(s), 0644); err != nil {
			return errwrap.Wrapf(err, "could not write output")
		}
	} else if _, err := obj.Stdout.Write([]byte(s)); err != nil {
		return err
	}

	if obj.Graphviz != "" {
		g, err := output.Graph.PGraph(output.Name)
		if err != nil {
			return err
		}
		err = g.ExecGraphviz(obj.GraphvizFilter, obj.Graphviz)
		if errors.Is(err, pgraph.ErrMissingFilter) {
			obj.Logf("graphviz: %s not found, only wrote %s", obj.GraphvizFilter, obj.Graphviz)
			return nil
		}
		if err != nil {
			return errwrap.Wrapf(err, "graphviz failed")
		}
		obj.Logf("graphviz: wrote %s.png for %s", obj.Graphviz, g)
	}
	return nil
}
