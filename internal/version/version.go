// Package version holds the version identifier shared by the feed parser and
// the update coordinator, and the build ordering used to decide whether a
// candidate build is newer than the installed one.
package version

import (
	"fmt"
	"strings"
	"unicode"
)

// Identifier is the (display version, build) pair published by a feed or
// declared by the installed application. Only Build takes part in ordering;
// Display is for presentation.
type Identifier struct {
	Display string `json:"display" yaml:"display"`
	Build   string `json:"build" yaml:"build"`
}

// New trims both fields and returns the identifier.
func New(display, build string) Identifier {
	return Identifier{
		Display: strings.TrimSpace(display),
		Build:   strings.TrimSpace(build),
	}
}

// IsZero reports whether neither field is set.
func (id Identifier) IsZero() bool {
	return id.Display == "" && id.Build == ""
}

// Complete reports whether both fields are non-empty.
func (id Identifier) Complete() bool {
	return id.Display != "" && id.Build != ""
}

// String renders "1.1 (101)".
func (id Identifier) String() string {
	switch {
	case id.IsZero():
		return "n/a"
	case id.Build == "":
		return id.Display
	case id.Display == "":
		return "(" + id.Build + ")"
	}
	return fmt.Sprintf("%s (%s)", id.Display, id.Build)
}

// Full renders "1.1-101", the form used in log lines.
func (id Identifier) Full() string {
	return id.Display + "-" + id.Build
}

// IsUpdateAvailable reports whether candidate's build orders strictly after
// installed's build.
func IsUpdateAvailable(installed, candidate Identifier) bool {
	return Compare(installed.Build, candidate.Build) < 0
}

type partKind int

const (
	partNumber partKind = iota
	partPeriod
	partString
)

type part struct {
	kind partKind
	text string
}

// Compare orders two build strings.
// Returns:
//
//	-1 if a < b
//	 0 if a == b
//	 1 if a > b
//
// Builds are split into runs of digits, single periods and runs of other
// characters; whitespace and punctuation other than '.' only separate runs.
// Runs are compared pairwise: digits numerically, other text
// lexicographically. A number beats a period or text at the same position.
// When one build has extra runs, a trailing text run ("1.0b1" vs "1.0") makes
// the longer build older; a trailing number or period makes it newer.
func Compare(a, b string) int {
	partsA := split(a)
	partsB := split(b)

	n := len(partsA)
	if len(partsB) < n {
		n = len(partsB)
	}

	for i := 0; i < n; i++ {
		pa, pb := partsA[i], partsB[i]
		if pa.kind == pb.kind {
			switch pa.kind {
			case partNumber:
				if c := compareNumeric(pa.text, pb.text); c != 0 {
					return c
				}
			case partString:
				if c := strings.Compare(pa.text, pb.text); c != 0 {
					return c
				}
			}
			continue
		}

		switch {
		case pa.kind != partString && pb.kind == partString:
			return 1
		case pa.kind == partString && pb.kind != partString:
			return -1
		case pa.kind == partNumber:
			return 1
		default:
			return -1
		}
	}

	if len(partsA) == len(partsB) {
		return 0
	}

	if len(partsA) > len(partsB) {
		if partsA[n].kind == partString {
			return -1
		}
		return 1
	}
	if partsB[n].kind == partString {
		return 1
	}
	return -1
}

func split(s string) []part {
	var (
		parts []part
		cur   strings.Builder
		kind  partKind
		open  bool
	)
	flush := func() {
		if open && cur.Len() > 0 {
			parts = append(parts, part{kind: kind, text: cur.String()})
		}
		cur.Reset()
		open = false
	}

	for _, r := range s {
		switch {
		case r == '.':
			flush()
			parts = append(parts, part{kind: partPeriod, text: "."})
		case unicode.IsSpace(r) || unicode.IsPunct(r):
			flush()
		case r >= '0' && r <= '9':
			if open && kind != partNumber {
				flush()
			}
			kind, open = partNumber, true
			cur.WriteRune(r)
		default:
			if open && kind != partString {
				flush()
			}
			kind, open = partString, true
			cur.WriteRune(r)
		}
	}
	flush()
	return parts
}

// compareNumeric compares two digit runs of arbitrary length without
// converting them to machine integers.
func compareNumeric(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		return compareInt(len(a), len(b))
	}
	return strings.Compare(a, b)
}

func compareInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}
