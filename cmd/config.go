package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/AdguardTeam/dnrconverter"
	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML options file.
type fileConfig struct {
	MaxRules        *int   `yaml:"max_rules"`
	MaxUnsafeRules  *int   `yaml:"max_unsafe_rules"`
	MaxRegexpRules  *int   `yaml:"max_regexp_rules"`
	MaxScannedRules *int   `yaml:"max_scanned_rules"`
	ResourcesPath   string `yaml:"resources_path"`
	RuleSetID       int    `yaml:"rule_set_id"`
}

// readFileConfig reads the YAML options file.  An empty path means no file.
func readFileConfig(path string) (conf *fileConfig, err error) {
	conf = &fileConfig{}
	if path == "" {
		return conf, nil
	}

	// #nosec G304 -- Trust the path from the command line.
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	err = yaml.Unmarshal(b, conf)
	if err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}

	return conf, nil
}

// converterOptions returns the conversion options from the options file
// overridden by the flags.
func converterOptions(logger *slog.Logger, options *Options) (opts *dnrconverter.Options, err error) {
	conf, err := readFileConfig(options.ConfigPath)
	if err != nil {
		return nil, err
	}

	opts = &dnrconverter.Options{
		Logger:                  logger,
		MaxNumberOfRules:        flagOrFile(options.MaxRules, conf.MaxRules),
		MaxNumberOfUnsafeRules:  flagOrFile(options.MaxUnsafeRules, conf.MaxUnsafeRules),
		MaxNumberOfRegexpRules:  flagOrFile(options.MaxRegexpRules, conf.MaxRegexpRules),
		MaxNumberOfScannedRules: flagOrFile(options.MaxScannedRules, conf.MaxScannedRules),
		ResourcesPath:           conf.ResourcesPath,
		RuleSetID:               conf.RuleSetID,
	}

	if options.ResourcesPath != "" {
		opts.ResourcesPath = options.ResourcesPath
	}

	if options.RuleSetID != 0 {
		opts.RuleSetID = options.RuleSetID
	}

	return opts, opts.Validate()
}

// flagOrFile returns the flag value if it is set, that is not negative, and
// the file value otherwise.
func flagOrFile(flagVal int, fileVal *int) (v *int) {
	if flagVal >= 0 {
		return &flagVal
	}

	return fileVal
}
