package dnrconverter

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
)

// Options are the options of a conversion call.
type Options struct {
	// Logger is used to log the conversion process.  If nil, [slog.Default] is
	// used.
	Logger *slog.Logger

	// MaxNumberOfRules is the maximum number of declarative rules in a rule
	// set.  If not nil, it must be positive.
	MaxNumberOfRules *int

	// MaxNumberOfUnsafeRules is the maximum number of unsafe declarative rules
	// in a rule set.  If not nil, it must not be negative.
	MaxNumberOfUnsafeRules *int

	// MaxNumberOfRegexpRules is the maximum number of declarative rules with
	// regular expressions in a rule set.  If not nil, it must not be
	// negative.
	MaxNumberOfRegexpRules *int

	// MaxNumberOfScannedRules is the maximum number of rules scanned from a
	// single filter.  If not nil, it must be positive.
	MaxNumberOfScannedRules *int

	// ResourcesPath is the path to the web-accessible resources used by
	// redirect rules.  If set, it must start with a slash and must not end
	// with one.  Redirect rules cannot be converted without it.
	ResourcesPath string

	// RuleSetID is the identifier of the rule set produced by single and
	// dynamic conversions.
	RuleSetID int
}

// Validate returns an error if the options are invalid.  o must not be nil.
func (o *Options) Validate() (err error) {
	var errs []error

	if p := o.ResourcesPath; p != "" {
		if !strings.HasPrefix(p, "/") {
			errs = append(errs, &InvalidOptionError{
				Err:    errors.Error("must start with a slash"),
				Option: "ResourcesPath",
				Value:  p,
			})
		} else if strings.HasSuffix(p, "/") {
			errs = append(errs, &InvalidOptionError{
				Err:    errors.Error("must not end with a slash"),
				Option: "ResourcesPath",
				Value:  p,
			})
		}
	}

	errs = appendIfInvalid(errs, "MaxNumberOfRules", o.MaxNumberOfRules, 1)
	errs = appendIfInvalid(errs, "MaxNumberOfUnsafeRules", o.MaxNumberOfUnsafeRules, 0)
	errs = appendIfInvalid(errs, "MaxNumberOfRegexpRules", o.MaxNumberOfRegexpRules, 0)
	errs = appendIfInvalid(errs, "MaxNumberOfScannedRules", o.MaxNumberOfScannedRules, 1)

	return errors.Join(errs...)
}

// appendIfInvalid appends an *InvalidOptionError to errs if v is not nil and
// less than minVal.
func appendIfInvalid(errs []error, name string, v *int, minVal int) (res []error) {
	if v == nil || *v >= minVal {
		return errs
	}

	return append(errs, &InvalidOptionError{
		Err:    fmt.Errorf("must be at least %d", minVal),
		Option: name,
		Value:  strconv.Itoa(*v),
	})
}

// logger returns the logger from the options or the default one.
func (o *Options) logger() (l *slog.Logger) {
	if o.Logger != nil {
		return o.Logger
	}

	return slog.Default()
}

// limits returns the output limits of the options.
func (o *Options) limits() (l *limits) {
	return &limits{
		maxRules:  o.MaxNumberOfRules,
		maxUnsafe: o.MaxNumberOfUnsafeRules,
		maxRegexp: o.MaxNumberOfRegexpRules,
	}
}

// maxScanned returns the scan ceiling or zero if there is none.
func (o *Options) maxScanned() (n int) {
	if o.MaxNumberOfScannedRules == nil {
		return 0
	}

	return *o.MaxNumberOfScannedRules
}
