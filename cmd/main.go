// Command dnrconvert converts filter lists into declarative rule sets.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/AdguardTeam/dnrconverter"
	"github.com/AdguardTeam/dnrconverter/filterlist"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	goFlags "github.com/jessevdk/go-flags"
	"github.com/shirou/gopsutil/v3/process"
)

// Options are the console arguments.
type Options struct {
	// Filters are the filter lists in the "id:path" or "path" form.
	Filters []string `short:"f" long:"filter" description:"Filter list as id:path or path, the id is the position otherwise. Can be specified multiple times." required:"true"`

	// OutputDir is the directory for the rule sets.
	OutputDir string `short:"o" long:"output" description:"Output directory." default:"."`

	// ResourcesPath is the path to the web-accessible resources.
	ResourcesPath string `short:"r" long:"resources" description:"Path to the web-accessible resources, for example /war."`

	// ConfigPath is the path to the YAML options file.
	ConfigPath string `short:"c" long:"config" description:"Path to the YAML options file. The flags override its values."`

	// MaxRules is the maximum number of rules in a rule set.
	MaxRules int `long:"max-rules" description:"Maximum number of rules in a rule set, negative means no limit." default:"-1"`

	// MaxUnsafeRules is the maximum number of unsafe rules in a rule set.
	MaxUnsafeRules int `long:"max-unsafe-rules" description:"Maximum number of unsafe rules in a rule set, negative means no limit." default:"-1"`

	// MaxRegexpRules is the maximum number of regexp rules in a rule set.
	MaxRegexpRules int `long:"max-regexp-rules" description:"Maximum number of regexp rules in a rule set, negative means no limit." default:"-1"`

	// MaxScannedRules is the maximum number of rules scanned from a filter.
	MaxScannedRules int `long:"max-scanned-rules" description:"Maximum number of rules scanned from a filter, negative means no limit." default:"-1"`

	// RuleSetID is the id of the rule set in the single mode.
	RuleSetID int `long:"rule-set-id" description:"Identifier of the rule set in the single mode." default:"0"`

	// Single makes the command produce a single rule set.
	Single bool `long:"single" description:"Convert all filters into a single rule set." optional:"yes" optional-value:"true"`

	// Verbose enables debug logging and the memory report.
	Verbose bool `short:"v" long:"verbose" description:"Verbose output (optional)." optional:"yes" optional-value:"true"`
}

func main() {
	var options Options
	var parser = goFlags.NewParser(&options, goFlags.Default)

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*goFlags.Error); ok && flagsErr.Type == goFlags.ErrHelp {
			os.Exit(0)
		}

		os.Exit(1)
	}

	logger := slogutil.New(&slogutil.Config{
		Output:  os.Stderr,
		Format:  slogutil.FormatText,
		Verbose: options.Verbose,
	})

	err = run(context.Background(), logger, &options)
	if err != nil {
		logger.Error("conversion failed", slogutil.KeyError, err)

		os.Exit(1)
	}
}

// run converts the filters and writes the rule sets.
func run(ctx context.Context, logger *slog.Logger, options *Options) (err error) {
	opts, err := converterOptions(logger, options)
	if err != nil {
		return err
	}

	lists, err := filterLists(options.Filters)
	if err != nil {
		return err
	}

	defer func() {
		for _, l := range lists {
			err = errors.WithDeferred(err, l.Close())
		}
	}()

	var ruleSets []*dnrconverter.RuleSet
	var convErrs []error
	var lims []dnrconverter.Limitation
	if options.Single {
		var res *dnrconverter.SingleResult
		res, err = dnrconverter.ConvertToSingle(ctx, lists, opts)
		if err != nil {
			return err
		}

		ruleSets, convErrs, lims = []*dnrconverter.RuleSet{res.RuleSet}, res.Errors, res.Limitations
	} else {
		var res *dnrconverter.PerFilterResult
		res, err = dnrconverter.ConvertPerFilter(ctx, lists, opts)
		if err != nil {
			return err
		}

		ruleSets, convErrs, lims = res.RuleSets, res.Errors, res.Limitations
	}

	for _, e := range convErrs {
		logger.Warn("not converted", slogutil.KeyError, e)
	}

	for _, l := range lims {
		logger.Warn("limitation", slogutil.KeyError, l, "excluded", len(l.ExcludedSources()))
	}

	for _, rs := range ruleSets {
		err = writeRuleSet(ctx, options.OutputDir, rs)
		if err != nil {
			return err
		}

		logger.Info(
			"rule set written",
			"id", rs.ID(),
			"rules", rs.RulesCount(),
			"unsafe", rs.UnsafeRulesCount(),
			"regexp", rs.RegexpRulesCount(),
		)
	}

	if options.Verbose {
		logMemory(logger)
	}

	return nil
}

// filterLists opens the filter lists from the specified arguments.
func filterLists(args []string) (lists []filterlist.RuleList, err error) {
	for i, arg := range args {
		id, path := i+1, arg
		if idStr, p, ok := strings.Cut(arg, ":"); ok {
			if n, convErr := strconv.Atoi(idStr); convErr == nil {
				id, path = n, p
			}
		}

		var l *filterlist.FileRuleList
		l, err = filterlist.NewFileRuleList(id, path)
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", arg, err)
		}

		lists = append(lists, l)
	}

	return lists, nil
}

// writeRuleSet writes the serialized rule set into the output directory.
func writeRuleSet(ctx context.Context, dir string, rs *dnrconverter.RuleSet) (err error) {
	b, err := rs.Serialize(ctx)
	if err != nil {
		return err
	}

	path := filepath.Join(dir, fmt.Sprintf("ruleset_%d.json", rs.ID()))

	// #nosec G306 -- The rule sets are public.
	err = os.WriteFile(path, b, 0o644)
	if err != nil {
		return fmt.Errorf("writing rule set %d: %w", rs.ID(), err)
	}

	return nil
}

// logMemory logs the heap and RSS sizes of the process.
func logMemory(logger *slog.Logger) {
	ms := &runtime.MemStats{}
	runtime.ReadMemStats(ms)

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Debug("getting process", slogutil.KeyError, err)

		return
	}

	mi, err := p.MemoryInfo()
	if err != nil {
		logger.Debug("getting memory info", slogutil.KeyError, err)

		return
	}

	logger.Debug("memory", "heap_kib", ms.Alloc/1024, "rss_kib", mi.RSS/1024)
}
