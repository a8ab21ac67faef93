package runner

import (
	"fmt"
	"strings"

	"github.com/ignite/claims-pipeline/internal/claimnorm"
	"github.com/ignite/claims-pipeline/internal/storage"
)

// SourceArg is one input named on the command line.
type SourceArg struct {
	System   claimnorm.SourceSystem
	Location storage.Location
}

var extSources = map[string]claimnorm.SourceSystem{
	".csv":  claimnorm.SourceAlpha,
	".json": claimnorm.SourceBeta,
}

// ParseSourceArg accepts "alpha=<location>", "beta=<location>", or a bare
// location whose extension picks the source: .csv is Alpha, .json is Beta.
func ParseSourceArg(s string) (SourceArg, error) {
	if prefix, rest, ok := strings.Cut(s, "="); ok && isIndicator(prefix) {
		sys, err := claimnorm.ParseSourceSystem(strings.ToLower(prefix))
		if err != nil {
			return SourceArg{}, err
		}
		loc, err := storage.ParseLocation(rest)
		if err != nil {
			return SourceArg{}, err
		}
		return SourceArg{System: sys, Location: loc}, nil
	}

	loc, err := storage.ParseLocation(s)
	if err != nil {
		return SourceArg{}, err
	}
	sys, ok := extSources[loc.Ext()]
	if !ok {
		return SourceArg{}, fmt.Errorf("%w: cannot infer source from %q, use alpha=<path> or beta=<path>", claimnorm.ErrUnknownSource, s)
	}
	return SourceArg{System: sys, Location: loc}, nil
}

// ParseSourceArgs parses every argument, failing on the first bad one.
func ParseSourceArgs(args []string) ([]SourceArg, error) {
	if len(args) == 0 {
		return nil, claimnorm.ErrNoSources
	}
	out := make([]SourceArg, 0, len(args))
	for _, a := range args {
		sa, err := ParseSourceArg(a)
		if err != nil {
			return nil, err
		}
		out = append(out, sa)
	}
	return out, nil
}

// isIndicator reports whether the text before "=" looks like a source name
// rather than part of a path.
func isIndicator(prefix string) bool {
	return prefix != "" && !strings.ContainsAny(prefix, `/\.:`)
}
