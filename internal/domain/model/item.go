// Package model contains domain models passed between layers.
package model

import (
	"path"
	"strings"
)

// Survey kinds served by the application.
const (
	SurveyABX = "abx"
	SurveyMOS = "mos"
)

// Candidate is one rendering of an item by a named system.
type Candidate struct {
	System string // system (experiment) name, e.g. the candidate root's folder name
	Path   string // audio file path
}

// ComparisonItem is one evaluation unit shown to a rater.
type ComparisonItem struct {
	ID         string     // unique within a set; derived from the reference file stem
	Group      string     // speaker/sub-folder for nested discovery, empty otherwise
	Reference  *Candidate // prompt or ground truth; nil when the source has none
	Candidates []Candidate
}

// Entries returns the display entries of the item: the reference (if any)
// followed by the candidates in stored order. The result is a fresh slice.
func (it ComparisonItem) Entries() []Candidate {
	out := make([]Candidate, 0, len(it.Candidates)+1)
	if it.Reference != nil {
		out = append(out, *it.Reference)
	}
	return append(out, it.Candidates...)
}

// Systems lists the candidate system names in stored order.
func (it ComparisonItem) Systems() []string {
	names := make([]string, len(it.Candidates))
	for i, c := range it.Candidates {
		names[i] = c.System
	}
	return names
}

// Candidate returns the candidate rendered by system.
func (it ComparisonItem) Candidate(system string) (Candidate, bool) {
	for _, c := range it.Candidates {
		if c.System == system {
			return c, true
		}
	}
	return Candidate{}, false
}

// Stem returns the file name of p without directory and extension.
// Both slash styles are accepted so files written on other platforms align.
func Stem(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	base := path.Base(p)
	if ext := path.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}
