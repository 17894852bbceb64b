package registry

import (
	"log/slog"
	"regexp"
	"strings"
)

// Filter decides whether a registered case takes part in a run.
type Filter func(name string) bool

// MatchAll is the filter used when no selection args are given.
func MatchAll(string) bool { return true }

// RegexList holds compiled selection patterns.
type RegexList struct {
	patterns []*regexp.Regexp
}

func (r RegexList) String() string {
	var ss []string
	for _, p := range r.patterns {
		ss = append(ss, `"`+p.String()+`"`)
	}
	return strings.Join(ss, " or ")
}

// IsDefined reports whether any pattern was added.
func (r RegexList) IsDefined() bool {
	return len(r.patterns) != 0
}

// AnyMatch reports whether any pattern matches s.
func (r RegexList) AnyMatch(s string) bool {
	for _, p := range r.patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

func (r *RegexList) add(pattern string, log *slog.Logger) {
	rx, err := regexp.Compile(pattern)
	if err != nil {
		if log == nil {
			log = slog.Default()
		}
		log.Debug("Ignoring invalid selection pattern", "pattern", pattern, "error", err)
		return
	}
	r.patterns = append(r.patterns, rx)
}

// NewFilter builds the case filter for a suite from raw invocation args.
//
// Each arg is a regex matched against both the bare case name and the
// suite-qualified "suite/name" form. Args prefixed with "!" exclude
// matching cases. Args shaped like flags (leading "-") and args that do
// not compile as regexes are ignored rather than failing the run. With no
// usable patterns every case runs.
func NewFilter(suite string, args []string, log *slog.Logger) Filter {
	if log == nil {
		log = slog.Default()
	}

	var mustMatch, mustNotMatch RegexList
	for _, arg := range args {
		if arg == "" || strings.HasPrefix(arg, "-") {
			continue
		}
		if rest, ok := strings.CutPrefix(arg, "!"); ok {
			mustNotMatch.add(rest, log)
			continue
		}
		mustMatch.add(arg, log)
	}

	if !mustMatch.IsDefined() && !mustNotMatch.IsDefined() {
		return MatchAll
	}

	log.Debug("Applying case filter",
		"suite", suite,
		"match", mustMatch.String(),
		"exclude", mustNotMatch.String())

	return func(name string) bool {
		qualified := suite + "/" + name
		if mustNotMatch.AnyMatch(name) || mustNotMatch.AnyMatch(qualified) {
			return false
		}
		if !mustMatch.IsDefined() {
			return true
		}
		return mustMatch.AnyMatch(name) || mustMatch.AnyMatch(qualified)
	}
}

// ApplyFilter returns the cases that pass the filter, preserving
// registration order and original indexes.
func ApplyFilter[R any](cases []Case[R], filter Filter) []Case[R] {
	if filter == nil {
		filter = MatchAll
	}
	var out []Case[R]
	for _, c := range cases {
		if filter(c.Name) {
			out = append(out, c)
		}
	}
	return out
}
