// Package relocate moves a granule's files to rule-driven destinations and
// reconciles the relational store, the legacy document store, and any
// metadata cross-reference document with the true final location of every
// file.
package relocate

import (
	"path"
	"regexp"

	"github.com/mesoscale/lineage/pkg/types"
)

// DestinationRule routes files whose name matches Regex to
// Bucket/Filepath/<file_name>. Rules are tested in the order given; the
// first match wins.
type DestinationRule struct {
	Regex    string `yaml:"regex" json:"regex"`
	Bucket   string `yaml:"bucket" json:"bucket"`
	Filepath string `yaml:"filepath" json:"filepath"`
}

type compiledRule struct {
	re       *regexp.Regexp
	bucket   string
	filepath string
}

func compileRules(rules []DestinationRule) ([]compiledRule, error) {
	if len(rules) == 0 {
		return nil, types.NewValidationError("at least one destination rule is required")
	}
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		if r.Bucket == "" {
			return nil, types.NewValidationError("destination rule %q: bucket is required", r.Regex)
		}
		re, err := regexp.Compile(r.Regex)
		if err != nil {
			return nil, types.NewValidationError("destination rule %q: %v", r.Regex, err)
		}
		compiled = append(compiled, compiledRule{re: re, bucket: r.Bucket, filepath: r.Filepath})
	}
	return compiled, nil
}

// move pairs a file with its planned destination. A nil destination means no
// rule matched and the file stays where it is.
type move struct {
	source      types.FileLocation
	destination *types.FileLocation
}

// isMove reports whether the plan entry is a true move, as opposed to a
// no-rule-matched or already-in-place entry.
func (m move) isMove() bool {
	return m.destination != nil && !m.source.Same(*m.destination)
}

// planMoves determines the destination for each file by testing its name
// against the rules in order.
func planMoves(files []types.FileLocation, rules []compiledRule) []move {
	moves := make([]move, 0, len(files))
	for _, f := range files {
		m := move{source: f}
		for _, r := range rules {
			if !r.re.MatchString(f.FileName) {
				continue
			}
			dst := types.FileLocation{
				Bucket:   r.bucket,
				Key:      path.Join(r.filepath, f.FileName),
				FileName: f.FileName,
				Size:     f.Size,
			}
			m.destination = &dst
			break
		}
		moves = append(moves, m)
	}
	return moves
}
