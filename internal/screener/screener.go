// Package screener implements the StaticScreener: a coarse, cheap pre-filter
// that rejects generated rule code containing syntactic patterns associated
// with filesystem, process, or network escape attempts, before it is ever
// handed to the sandbox. It is not a security boundary — the sandbox is.
package screener

import "strings"

// DenyList is the canonical set of forbidden substrings, matched
// case-insensitively. Implementations may extend it; they must never shrink
// it, since every test in the corpus is written against this exact list.
var DenyList = []string{
	"import os",
	"import subprocess",
	"from subprocess",
	"open(",
	"exec(",
	"eval(",
	"__import__",
	"os.system",
	"sys.stdout",
	"sys.stderr",
}

// Result is the outcome of a screen: either clean, or rejected with the
// single pattern that tripped it.
type Result struct {
	Rejected bool
	Pattern  string
}

// Screen scans code for any denylisted pattern and returns the first match.
// Patterns are checked in DenyList order so results are deterministic.
func Screen(code string) Result {
	lower := strings.ToLower(code)
	for _, pattern := range DenyList {
		if strings.Contains(lower, strings.ToLower(pattern)) {
			return Result{Rejected: true, Pattern: pattern}
		}
	}
	return Result{Rejected: false}
}
