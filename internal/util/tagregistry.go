// Package util provides helpers shared by the DICOM writer and the CLI.
package util

import (
	"fmt"
	"sort"
	"strings"

	"github.com/suyashkumar/dicom/pkg/tag"
)

// TagScope represents the DICOM hierarchy level a tag belongs to.
type TagScope int

const (
	// ScopePatient tags identify the patient; overriding them detaches the
	// derived image from its source patient.
	ScopePatient TagScope = iota
	// ScopeStudy tags are shared by every series of a study.
	ScopeStudy
	// ScopeSeries tags describe the derived series.
	ScopeSeries
	// ScopeImage tags can vary per image.
	ScopeImage
)

// String returns the string representation of a TagScope.
func (s TagScope) String() string {
	switch s {
	case ScopePatient:
		return "Patient"
	case ScopeStudy:
		return "Study"
	case ScopeSeries:
		return "Series"
	case ScopeImage:
		return "Image"
	default:
		return "Unknown"
	}
}

// TagInfo describes a tag that may be overridden on written images.
type TagInfo struct {
	Name  string
	Tag   tag.Tag
	Scope TagScope
}

// tagRegistry maps lowercase keywords to overridable tags.
var tagRegistry = map[string]TagInfo{
	"patientname": {Name: "PatientName", Tag: tag.PatientName, Scope: ScopePatient},
	"patientid":   {Name: "PatientID", Tag: tag.PatientID, Scope: ScopePatient},

	"studydescription": {Name: "StudyDescription", Tag: tag.StudyDescription, Scope: ScopeStudy},
	"institutionname":  {Name: "InstitutionName", Tag: tag.InstitutionName, Scope: ScopeStudy},

	"seriesdescription":     {Name: "SeriesDescription", Tag: tag.SeriesDescription, Scope: ScopeSeries},
	"seriesnumber":          {Name: "SeriesNumber", Tag: tag.SeriesNumber, Scope: ScopeSeries},
	"protocolname":          {Name: "ProtocolName", Tag: tag.ProtocolName, Scope: ScopeSeries},
	"derivationdescription": {Name: "DerivationDescription", Tag: tag.DerivationDescription, Scope: ScopeSeries},

	"imagecomments": {Name: "ImageComments", Tag: tag.ImageComments, Scope: ScopeImage},
	"windowcenter":  {Name: "WindowCenter", Tag: tag.WindowCenter, Scope: ScopeImage},
	"windowwidth":   {Name: "WindowWidth", Tag: tag.WindowWidth, Scope: ScopeImage},
}

// GetTagByName returns TagInfo for a keyword, case-insensitively. Unknown
// keywords produce an error suggesting the closest registered name.
func GetTagByName(name string) (TagInfo, error) {
	normalizedName := strings.ToLower(strings.TrimSpace(name))

	if info, ok := tagRegistry[normalizedName]; ok {
		return info, nil
	}

	if suggestion := findClosestTagName(normalizedName); suggestion != "" {
		return TagInfo{}, fmt.Errorf("unknown tag %q, did you mean %q?", name, suggestion)
	}
	return TagInfo{}, fmt.Errorf("unknown tag %q", name)
}

// TagNames returns the registered keywords, sorted.
func TagNames() []string {
	names := make([]string, 0, len(tagRegistry))
	for _, info := range tagRegistry {
		names = append(names, info.Name)
	}
	sort.Strings(names)
	return names
}

// findClosestTagName returns the registered name closest to input, or "" when
// nothing is within 5 edits. Ties resolve alphabetically.
func findClosestTagName(input string) string {
	const maxDistance = 5
	bestDistance := maxDistance + 1
	var bestMatch string

	for _, name := range TagNames() {
		distance := levenshteinDistance(input, strings.ToLower(name))
		if distance < bestDistance {
			bestDistance = distance
			bestMatch = name
		}
	}
	return bestMatch
}

// levenshteinDistance returns the number of single-character edits between a and b.
func levenshteinDistance(a, b string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// TagOverride is a validated Name=Value pair.
type TagOverride struct {
	Info  TagInfo
	Value string
}

// ParseTagOverrides parses "Name=Value" strings. Later entries for the same
// tag replace earlier ones; the result is ordered by tag.
func ParseTagOverrides(pairs []string) ([]TagOverride, error) {
	byName := make(map[string]TagOverride)
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("invalid tag override %q, expected Name=Value", p)
		}
		info, err := GetTagByName(name)
		if err != nil {
			return nil, err
		}
		byName[info.Name] = TagOverride{Info: info, Value: strings.TrimSpace(value)}
	}
	return sortedOverrides(byName), nil
}

// TagOverridesFromMap validates a keyword-to-value map, as found in config files.
func TagOverridesFromMap(m map[string]string) ([]TagOverride, error) {
	byName := make(map[string]TagOverride)
	for name, value := range m {
		info, err := GetTagByName(name)
		if err != nil {
			return nil, err
		}
		byName[info.Name] = TagOverride{Info: info, Value: value}
	}
	return sortedOverrides(byName), nil
}

func sortedOverrides(byName map[string]TagOverride) []TagOverride {
	out := make([]TagOverride, 0, len(byName))
	for _, o := range byName {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Info.Tag.Group != out[j].Info.Tag.Group {
			return out[i].Info.Tag.Group < out[j].Info.Tag.Group
		}
		return out[i].Info.Tag.Element < out[j].Info.Tag.Element
	})
	return out
}
