// Copyright 2026 EMQ Technologies Co., Ltd.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/urfave/cli"

	"github.com/lf-edge/kuiperopt/internal/catalog"
	"github.com/lf-edge/kuiperopt/internal/conf"
	"github.com/lf-edge/kuiperopt/internal/optimizer"
	"github.com/lf-edge/kuiperopt/internal/plancodec"
	"github.com/lf-edge/kuiperopt/internal/rule"
	"github.com/lf-edge/kuiperopt/internal/rules"
	"github.com/lf-edge/kuiperopt/pkg/tracer"
)

var Version = "unknown"

func main() {
	app := newApp(os.Stdout)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "kuiperopt"
	app.Usage = "optimize streaming SQL plans with staged rule phases"
	app.Version = Version
	app.Writer = out
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "the path of " + conf.ConfFileName,
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "print debug logs",
		},
	}
	app.Before = func(c *cli.Context) error {
		if err := conf.InitConf(c.String("config")); err != nil {
			return err
		}
		if c.Bool("debug") {
			conf.SetDebug(true)
		}
		return nil
	}

	pipelineFlag := cli.StringFlag{
		Name:  "pipeline, p",
		Usage: "the pipeline file, the built-in pipeline if not set",
	}
	catalogFlag := cli.StringFlag{
		Name:  "catalog",
		Usage: "the catalog yaml file, overrides catalog.path of the config",
	}
	app.Commands = []cli.Command{
		{
			Name:      "explain",
			Usage:     "optimize a plan document and print the result",
			ArgsUsage: "<plan file>",
			Flags: []cli.Flag{
				pipelineFlag,
				catalogFlag,
				cli.BoolFlag{
					Name:  "minibatch",
					Usage: "enable the mini-batch rewrites",
				},
				cli.StringFlag{
					Name:  "interval",
					Usage: "the mini-batch interval",
					Value: "1s",
				},
				cli.BoolFlag{
					Name:  "trace",
					Usage: "print the spans of the compilation",
				},
				cli.StringFlag{
					Name:  "otlp",
					Usage: "the endpoint of an otlp http collector receiving the spans",
				},
				cli.DurationFlag{
					Name:  "timeout",
					Usage: "cancel the compilation after the duration",
				},
			},
			Action: func(c *cli.Context) error {
				if c.NArg() != 1 {
					return errors.New("expect exactly one plan file")
				}
				return runExplain(c.App.Writer, explainArgs{
					plan:       c.Args().First(),
					pipeline:   c.String("pipeline"),
					catalog:    c.String("catalog"),
					miniBatch:  c.Bool("minibatch"),
					interval:   c.String("interval"),
					trace:      c.Bool("trace") || conf.Config.Optimizer.Tracing,
					endpoint:   c.String("otlp"),
					timeout:    c.Duration("timeout"),
					failOnLoop: conf.Config.Optimizer.FailOnNonConvergence,
				})
			},
		},
		{
			Name:      "validate",
			Usage:     "check that a pipeline file builds",
			ArgsUsage: "<pipeline file>",
			Action: func(c *cli.Context) error {
				if c.NArg() != 1 {
					return errors.New("expect exactly one pipeline file")
				}
				p, err := loadPipeline(c.Args().First(), nil)
				if err != nil {
					return err
				}
				for _, ph := range p.Phases() {
					fmt.Fprintf(c.App.Writer, "%s: %s %s -> %s\n", ph.Name, ph.Strategy, ph.Requires(), ph.Produces())
				}
				return nil
			},
		},
		{
			Name:  "rulesets",
			Usage: "list the built-in rule sets",
			Action: func(c *cli.Context) error {
				reg, err := rules.NewRegistry()
				if err != nil {
					return err
				}
				printRuleSets(c.App.Writer, reg)
				return nil
			},
		},
		{
			Name:  "catalog",
			Usage: "manage the sqlite catalog",
			Subcommands: []cli.Command{
				{
					Name:      "import",
					Usage:     "store the tables of a catalog yaml file",
					ArgsUsage: "<catalog file>",
					Action: func(c *cli.Context) error {
						if c.NArg() != 1 {
							return errors.New("expect exactly one catalog file")
						}
						return importCatalog(c.App.Writer, c.Args().First(), conf.Config.Catalog.Sqlite)
					},
				},
			},
		},
	}
	sort.Sort(cli.FlagsByName(app.Flags))
	sort.Sort(cli.CommandsByName(app.Commands))
	return app
}

type explainArgs struct {
	plan       string
	pipeline   string
	catalog    string
	miniBatch  bool
	interval   string
	trace      bool
	endpoint   string
	timeout    time.Duration
	failOnLoop bool
}

func runExplain(out io.Writer, args explainArgs) error {
	cat, err := loadCatalog(args.catalog)
	if err != nil {
		return err
	}
	g, err := plancodec.DecodeFile(args.plan, cat)
	if err != nil {
		return err
	}
	var m *tracer.Manager
	opts := []optimizer.Option{optimizer.WithCatalog(cat)}
	if args.trace || args.endpoint != "" {
		m, err = tracer.NewManager(tracer.DefaultServiceName, args.endpoint, 0)
		if err != nil {
			return err
		}
		defer m.Shutdown(context.Background())
		opts = append(opts, optimizer.WithTracerProvider(m.TracerProvider()))
	}
	p, err := loadPipeline(args.pipeline, func(pc *optimizer.PipelineConf) {
		if conf.Config != nil && pc.IterationFactor == 0 {
			pc.IterationFactor = conf.Config.Optimizer.IterationFactor
		}
		if args.failOnLoop {
			pc.FailOnNonConvergence = true
		}
		if args.miniBatch {
			if pc.Options == nil {
				pc.Options = map[string]any{}
			}
			pc.Options[rule.OptMiniBatchEnabled] = true
			pc.Options[rule.OptMiniBatchInterval] = args.interval
		}
	}, opts...)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if args.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, args.timeout)
		defer cancel()
	}
	res, err := p.Optimize(ctx, g)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, res.Graph.Explain())
	fmt.Fprintf(out, "digest: %s\n", res.Graph.Digest())
	if res.Outcome != optimizer.Succeeded {
		fmt.Fprintf(out, "outcome: %s\n", res.Outcome)
	}
	for _, ps := range res.Phases {
		if ps.Skipped {
			fmt.Fprintf(out, "phase %s: skipped\n", ps.Name)
			continue
		}
		fmt.Fprintf(out, "phase %s: %d firings, converged %t\n", ps.Name, ps.Firings, ps.Converged)
	}
	for _, d := range res.Diagnostics {
		fmt.Fprintf(out, "warning: %s\n", d)
	}
	if m != nil && args.trace {
		root, err := m.GetTraceByCompilation(res.ID)
		if err != nil {
			return err
		}
		if root != nil {
			root.Print(out)
		}
	}
	return nil
}

// loadPipeline reads the pipeline file, or the built-in pipeline when p is
// empty, and builds it with the built-in rule sets.
func loadPipeline(p string, adjust func(pc *optimizer.PipelineConf), opts ...optimizer.Option) (*optimizer.Pipeline, error) {
	var (
		pc  *optimizer.PipelineConf
		err error
	)
	if p == "" {
		pc, err = optimizer.ParsePipelineConf([]byte(optimizer.DefaultPipelineYaml))
	} else {
		pc, err = optimizer.LoadPipelineConf(p)
	}
	if err != nil {
		return nil, err
	}
	if adjust != nil {
		adjust(pc)
	}
	reg, err := rules.NewRegistry()
	if err != nil {
		return nil, err
	}
	return optimizer.BuildPipeline(pc, reg, opts...)
}

// loadCatalog prefers the yaml file, then the configured sqlite catalog.
func loadCatalog(p string) (*catalog.Catalog, error) {
	if p == "" && conf.Config != nil {
		p = conf.Config.Catalog.Path
	}
	if p != "" {
		return catalog.LoadCatalog(p)
	}
	if conf.Config != nil && conf.Config.Catalog.Sqlite != "" {
		store, err := catalog.GetSqliteStore(conf.Config.Catalog.Sqlite)
		if err != nil {
			return nil, err
		}
		if err := store.Open(); err != nil {
			return nil, err
		}
		defer store.Close()
		return store.Catalog()
	}
	return catalog.NewCatalog()
}

func importCatalog(out io.Writer, p, dir string) error {
	if dir == "" {
		return errors.New("catalog.sqlite is not configured")
	}
	cat, err := catalog.LoadCatalog(p)
	if err != nil {
		return err
	}
	store, err := catalog.GetSqliteStore(dir)
	if err != nil {
		return err
	}
	if err := store.Open(); err != nil {
		return err
	}
	defer store.Close()
	for _, name := range cat.Names() {
		t, _ := cat.Table(name)
		if err := store.Save(t); err != nil {
			return err
		}
		fmt.Fprintf(out, "table %s saved\n", name)
	}
	return nil
}

func printRuleSets(out io.Writer, reg *rule.Registry) {
	for _, name := range reg.Names() {
		s, _ := reg.Get(name)
		names := make([]string, 0, s.Len())
		for _, r := range s.Rules() {
			names = append(names, r.Name())
		}
		fmt.Fprintf(out, "%s (%s): %s\n", name, s.Kind(), strings.Join(names, ", "))
	}
}
