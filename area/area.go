// Package area reads the area score from Catapult HLS synthesis reports.
package area

import (
	"os"
	"regexp"
	"strconv"

	"github.com/pkg/errors"
)

// scoreRe matches the "Total Area Score" line of a report; the third number
// is the post-assignment score.
var scoreRe = regexp.MustCompile(`Total Area Score:\s+[\d.]+\s+[\d.]+\s+([\d.]+)`)

// Parse returns the post-assignment area score in report, and false when the
// report has no score line.
func Parse(report []byte) (float64, bool, error) {
	m := scoreRe.FindSubmatch(report)
	if m == nil {
		return 0, false, nil
	}
	score, err := strconv.ParseFloat(string(m[1]), 64)
	if err != nil {
		return 0, false, errors.Wrapf(err, "invalid area score '%s'", m[1])
	}
	return score, true, nil
}

// Score reads the report file and parses its area score.
func Score(file string) (float64, bool, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return 0, false, errors.Wrapf(err, "failed to read report '%s'", file)
	}
	return Parse(data)
}
