// Package main recomputes YAML character files and prints the derived
// sheet.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/d20sheet/internal/bootstrap"
	"github.com/cory-johannsen/d20sheet/internal/config"
	"github.com/cory-johannsen/d20sheet/internal/game/character"
	"github.com/cory-johannsen/d20sheet/internal/game/engine"
	"github.com/cory-johannsen/d20sheet/internal/game/sheet"
	"github.com/cory-johannsen/d20sheet/internal/observability"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	configPath string
	contentDir string
	scriptsDir string
	format     string
	filter     string
	details    bool
	write      bool
	verbose    bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("recompute", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var o options
	fs.StringVar(&o.configPath, "config", "", "optional configuration file; defaults apply when empty")
	fs.StringVar(&o.contentDir, "content", "", "ruleset content directory (overrides config)")
	fs.StringVar(&o.scriptsDir, "scripts", "", "Lua helper directory (overrides config)")
	fs.StringVar(&o.format, "format", "text", "output format: text, json or yaml")
	fs.StringVar(&o.filter, "path", "", "only print values whose path starts with this prefix")
	fs.BoolVar(&o.details, "details", false, "print source details under each value")
	fs.BoolVar(&o.write, "write", false, "write derived values and granted features back to each file")
	fs.BoolVar(&o.verbose, "v", false, "log engine diagnostics to stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "usage: recompute [flags] <character.yaml>...")
		return 2
	}
	if err := recompute(ctx, o, fs.Args(), stdout, stderr); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func recompute(ctx context.Context, o options, paths []string, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}
	logger := zap.NewNop()
	if o.verbose {
		if logger, err = observability.NewLogger(config.LoggingConfig{Level: "debug", Format: "console"}); err != nil {
			return err
		}
	}
	eng, err := bootstrap.NewEngine(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer eng.Close()

	docs := make([]*character.Character, len(paths))
	byID := make(map[string]*character.Character, len(paths))
	for i, p := range paths {
		c, err := character.LoadFile(p)
		if err != nil {
			return err
		}
		docs[i] = c
		byID[c.ID] = c
	}

	var failed []error
	for i, c := range docs {
		res, err := eng.Engine.Recompute(ctx, engine.Input{Character: c, Master: byID[c.MasterID]})
		if err != nil {
			failed = append(failed, fmt.Errorf("%s: %w", paths[i], err))
			continue
		}
		if !res.FeatureSync.Empty() {
			c = engine.ApplyFeatureSync(c, res.FeatureSync)
			if res, err = eng.Engine.Recompute(ctx, engine.Input{Character: c, Master: byID[c.MasterID]}); err != nil {
				failed = append(failed, fmt.Errorf("%s: %w", paths[i], err))
				continue
			}
		}
		for _, w := range res.Warnings {
			fmt.Fprintf(stderr, "%s: warning: %s\n", paths[i], w.Message)
		}
		if res.Notice != "" {
			fmt.Fprintf(stderr, "%s: %s\n", paths[i], res.Notice)
		}
		if err := printReport(stdout, o, c, res); err != nil {
			return err
		}
		if o.write {
			if err := writeBack(paths[i], c, res); err != nil {
				failed = append(failed, err)
			}
		}
	}
	return errors.Join(failed...)
}

func loadConfig(o options) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.Load(o.configPath)
	} else {
		cfg, err = config.LoadFromViper(config.Defaults())
	}
	if err != nil {
		return config.Config{}, err
	}
	if o.contentDir != "" {
		cfg.Content.Dir = o.contentDir
	}
	if o.scriptsDir != "" {
		cfg.Content.ScriptsDir = o.scriptsDir
	}
	return cfg, nil
}

type report struct {
	ID      string                 `json:"id" yaml:"id"`
	Name    string                 `json:"name" yaml:"name"`
	Values  map[string]float64     `json:"values" yaml:"values"`
	Details map[string][]detailOut `json:"details,omitempty" yaml:"details,omitempty"`
	Flags   []string               `json:"flags,omitempty" yaml:"flags,omitempty"`
}

type detailOut struct {
	Name  string  `json:"name" yaml:"name"`
	Value float64 `json:"value" yaml:"value"`
	Note  string  `json:"note,omitempty" yaml:"note,omitempty"`
}

func printReport(w io.Writer, o options, c *character.Character, res *engine.Result) error {
	r := report{ID: c.ID, Name: c.Name, Values: map[string]float64{}}
	for path, v := range res.Values {
		if strings.HasPrefix(path, o.filter) {
			r.Values[path] = v
		}
	}
	if o.details {
		r.Details = map[string][]detailOut{}
		for path, lines := range res.SourceDetails {
			if !strings.HasPrefix(path, o.filter) {
				continue
			}
			for _, l := range lines {
				r.Details[path] = append(r.Details[path], detailOut{Name: l.Name, Value: l.Value, Note: l.Note})
			}
		}
	}
	for _, f := range res.Flags {
		r.Flags = append(r.Flags, string(f))
	}

	switch o.format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case "text":
		return printText(w, r)
	}
	return fmt.Errorf("unknown format %q", o.format)
}

func printText(w io.Writer, r report) error {
	if _, err := fmt.Fprintf(w, "%s (%s)\n", r.Name, r.ID); err != nil {
		return err
	}
	paths := make([]string, 0, len(r.Values))
	for p := range r.Values {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		fmt.Fprintf(w, "  %s = %g\n", p, r.Values[p])
		for _, d := range r.Details[p] {
			if d.Note != "" {
				fmt.Fprintf(w, "      %+g %s (%s)\n", d.Value, d.Name, d.Note)
			} else {
				fmt.Fprintf(w, "      %+g %s\n", d.Value, d.Name)
			}
		}
	}
	if len(r.Flags) > 0 {
		fmt.Fprintf(w, "  flags: %s\n", strings.Join(r.Flags, ", "))
	}
	return nil
}

func writeBack(path string, c *character.Character, res *engine.Result) error {
	out := c.Clone()
	out.Derived = res.Values
	out.HP.Value = res.HPValue
	out.HP.Max = res.Value(sheet.At(sheet.HPMax).String())
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := character.EncodeYAML(f, out); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
