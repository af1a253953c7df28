// Package filter implements the include/exclude pattern matching shared by
// the Indexer and SyncEngine (spec §4.8). Patterns are compiled once per
// sync pair and reused across every entry considered during a scan.
package filter

import (
	"os"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
)

// Rules holds a sync pair's compiled filter configuration.
type Rules struct {
	include       []*regexp.Regexp
	exclude       []*regexp.Regexp
	excludeHidden bool
	minFileSize   int64
	maxFileSize   int64
}

// Options configures a Rules set. A MaxFileSize of 0 means unbounded.
type Options struct {
	IncludePatterns []string
	ExcludePatterns []string
	ExcludeHidden   bool
	MinFileSize     int64
	MaxFileSize     int64
}

// Compile builds a Rules set from the pair's pattern configuration.
// Patterns using simple glob syntax ("*.ext", "prefix*", "*suffix", literal
// match) are compiled to a single anchored, case-insensitive regular
// expression per the rule in spec §4.3: "." is escaped, "*" becomes ".*",
// "?" becomes ".". A "**" is translated like any other "*", so it matches
// across "/" as well; Compile does not use doublestar, whose matching is
// available separately through MatchesDoublestar.
func Compile(options Options) (*Rules, error) {
	include, err := compilePatterns(options.IncludePatterns)
	if err != nil {
		return nil, errors.Wrap(err, "unable to compile include patterns")
	}
	exclude, err := compilePatterns(options.ExcludePatterns)
	if err != nil {
		return nil, errors.Wrap(err, "unable to compile exclude patterns")
	}
	return &Rules{
		include:       include,
		exclude:       exclude,
		excludeHidden: options.ExcludeHidden,
		minFileSize:   options.MinFileSize,
		maxFileSize:   options.MaxFileSize,
	}, nil
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	var compiled []*regexp.Regexp
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		re, err := compileOne(pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid pattern %q", pattern)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// compileOne translates a single glob pattern into an anchored,
// case-insensitive regular expression.
func compileOne(pattern string) (*regexp.Regexp, error) {
	var builder strings.Builder
	builder.WriteString("(?i)^")
	for _, r := range pattern {
		switch r {
		case '.':
			builder.WriteString(`\.`)
		case '*':
			builder.WriteString(".*")
		case '?':
			builder.WriteString(".")
		default:
			builder.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	builder.WriteString("$")
	return regexp.Compile(builder.String())
}

// Included determines whether the file at virtualPath (whose base name is
// fileName, and whose size is size) should be included in the reconciled
// set, per the rule in spec §4.8:
//
//	matchesAny(include, fileName) && !matchesAny(exclude, fileName) &&
//	    (!excludeHidden || !fileName.startsWith(".")) && size in [min, max]
//
// An empty include list, or one containing only "*", means everything is
// included by default.
func (r *Rules) Included(virtualPath, fileName string, size int64, isDirectory bool) bool {
	if r.excludeHidden && strings.HasPrefix(fileName, ".") {
		return false
	}
	if !isDirectory {
		if size < r.minFileSize {
			return false
		}
		if r.maxFileSize > 0 && size > r.maxFileSize {
			return false
		}
	}
	if matchesAny(r.exclude, virtualPath, fileName) {
		return false
	}
	if len(r.include) == 0 {
		return true
	}
	return matchesAny(r.include, virtualPath, fileName)
}

func matchesAny(patterns []*regexp.Regexp, virtualPath, fileName string) bool {
	for _, pattern := range patterns {
		if pattern.MatchString(fileName) || pattern.MatchString(virtualPath) {
			return true
		}
	}
	return false
}

// MatchesDoublestar reports whether virtualPath matches the supplied
// doublestar-syntax pattern (supporting "**" directory wildcards), for
// configuration keys that need recursive directory matching beyond the
// simple glob rule above.
func MatchesDoublestar(pattern, virtualPath string) (bool, error) {
	return doublestar.Match(pattern, virtualPath)
}

// FileSizeWithinRange reports whether size satisfies the [min, max] bound
// from the file's os.FileInfo, treating a zero max as unbounded.
func FileSizeWithinRange(info os.FileInfo, min, max int64) bool {
	size := info.Size()
	if size < min {
		return false
	}
	if max > 0 && size > max {
		return false
	}
	return true
}
