package ingest

import (
	"fmt"
	"strconv"

	"github.com/yosida95/uritemplate/v3"
)

// RankTemplate expands a URI template such as "trace_rank{rank}.json" or
// "{dir}/trace_{rank}_{host}.json" into one filename per rank, for multi-
// rank runs where each rank's events live in a separate file.
type RankTemplate struct {
	tmpl *uritemplate.Template
	dir  string
	host string
}

// NewRankTemplate parses pattern as a level-1 URI template. dir and host
// fill the optional {dir}/{host} variables some deployments use; they may
// be empty if the pattern does not reference them.
func NewRankTemplate(pattern, dir, host string) (*RankTemplate, error) {
	tmpl, err := uritemplate.New(pattern)
	if err != nil {
		return nil, fmt.Errorf("ingest: parsing rank template %q: %w", pattern, err)
	}
	return &RankTemplate{tmpl: tmpl, dir: dir, host: host}, nil
}

// Expand renders the template for a single rank number.
func (t *RankTemplate) Expand(rank int) (string, error) {
	values := uritemplate.Values{}
	values.Set("rank", uritemplate.String(strconv.Itoa(rank)))
	if t.dir != "" {
		values.Set("dir", uritemplate.String(t.dir))
	}
	if t.host != "" {
		values.Set("host", uritemplate.String(t.host))
	}
	return t.tmpl.Expand(values)
}

// ExpandAll renders the template for ranks 0..count-1.
func (t *RankTemplate) ExpandAll(count int) ([]string, error) {
	out := make([]string, 0, count)
	for rank := 0; rank < count; rank++ {
		name, err := t.Expand(rank)
		if err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, nil
}
