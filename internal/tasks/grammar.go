package tasks

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// ErrMalformedOutput signals that runner output did not match the expected
// grammar. Parsers still return whatever they could extract alongside it.
var ErrMalformedOutput = errors.New("malformed task runner output")

// DescribeGrammar is the layout of `<runner> -d <task>` output:
//
//	Displaying detailed information for task 'deploy':
//
//	    No docstring provided
//	    Arguments: mode=None
//
// HeaderLines lines are skipped, then every non-blank line is kept and the
// ArgumentsLabel is rewritten to "<task>:".
type DescribeGrammar struct {
	Version        string
	HeaderLines    int
	ArgumentsLabel string
}

// FabricDescribe is the grammar of Fabric 1.x `fab -d`.
var FabricDescribe = DescribeGrammar{
	Version:        "fabric-1",
	HeaderLines:    3,
	ArgumentsLabel: "Arguments: ",
}

// Parse extracts argument descriptions for task from output.
func (g DescribeGrammar) Parse(task, output string) ([]string, error) {
	lines := splitLines(output)
	if len(lines) < g.HeaderLines {
		return []string{}, fmt.Errorf("%w: %s: expected %d header lines, got %d", ErrMalformedOutput, g.Version, g.HeaderLines, len(lines))
	}

	body := lo.Filter(trimAll(lines[g.HeaderLines:]), func(line string, _ int) bool {
		return line != ""
	})

	labelled := false
	descriptions := lo.Map(body, func(line string, _ int) string {
		if strings.Contains(line, g.ArgumentsLabel) {
			labelled = true
			return strings.ReplaceAll(line, g.ArgumentsLabel, task+":")
		}
		return line
	})

	if !labelled {
		return descriptions, fmt.Errorf("%w: %s: no %q line for task %s", ErrMalformedOutput, g.Version, strings.TrimSpace(g.ArgumentsLabel), task)
	}
	return descriptions, nil
}

// ParseShortlist parses `<runner> --shortlist` output: one task per line,
// surrounding whitespace trimmed. Blank lines are kept.
func ParseShortlist(output string) []string {
	return trimAll(splitLines(output))
}

// splitLines splits on \n, dropping a trailing \r and the empty string after
// a final newline. Lines have no length limit, so output is never cut short.
func splitLines(output string) []string {
	if output == "" {
		return []string{}
	}
	lines := strings.Split(strings.TrimSuffix(output, "\n"), "\n")
	return lo.Map(lines, func(line string, _ int) string {
		return strings.TrimSuffix(line, "\r")
	})
}

func trimAll(lines []string) []string {
	return lo.Map(lines, func(line string, _ int) string {
		return strings.TrimSpace(line)
	})
}
