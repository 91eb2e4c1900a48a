package shell

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"mvdan.cc/sh/v3/syntax"
)

// Variables bash exports to a `complete -C` command.
const (
	LineVar  = "COMP_LINE"
	PointVar = "COMP_POINT"
)

// ErrEnvironment is returned when the completion variables are missing or
// malformed, which means the program was not started by the shell's
// completion machinery.
var ErrEnvironment = errors.New("missing expected environment variables")

// Input is the cursor context of a bash completion request.
type Input struct {
	Line  string
	Point int
	Words []string
}

// FromEnv builds an Input from COMP_LINE and COMP_POINT. lookup is usually
// os.LookupEnv.
func FromEnv(lookup func(string) (string, bool)) (*Input, error) {
	line, ok := lookup(LineVar)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not set", ErrEnvironment, LineVar)
	}
	rawPoint, ok := lookup(PointVar)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not set", ErrEnvironment, PointVar)
	}
	point, err := strconv.Atoi(strings.TrimSpace(rawPoint))
	if err != nil || point < 0 {
		return nil, fmt.Errorf("%w: %s=%q is not a cursor position", ErrEnvironment, PointVar, rawPoint)
	}
	return Parse(line, point), nil
}

// Parse splits line up to the cursor into words. A trailing blank starts a
// new, empty word.
func Parse(line string, point int) *Input {
	if point > len(line) {
		point = len(line)
	}
	prefix := line[:point]

	words, end, ok := syntaxWords(prefix)
	if !ok {
		words = strings.Fields(prefix)
		end = len(strings.TrimRight(prefix, " \t"))
	}
	// Only a blank outside the last word starts a new one; an escaped or
	// quoted blank belongs to the word.
	if len(words) == 0 || end < len(prefix) {
		words = append(words, "")
	}

	return &Input{
		Line:  line,
		Point: point,
		Words: words,
	}
}

// syntaxWords returns the raw source text of each argument of a simple
// command, and the offset where the last one ends. Anything else, including
// a line that does not parse yet because a quote is still open, reports false.
func syntaxWords(src string) ([]string, int, bool) {
	file, err := syntax.NewParser().Parse(strings.NewReader(src), "")
	if err != nil || len(file.Stmts) != 1 {
		return nil, 0, false
	}
	call, ok := file.Stmts[0].Cmd.(*syntax.CallExpr)
	if !ok || len(call.Args) == 0 {
		return nil, 0, false
	}

	words := make([]string, 0, len(call.Args))
	for _, word := range call.Args {
		words = append(words, src[word.Pos().Offset():word.End().Offset()])
	}

	// Text after the last word that is not a word itself (a comment, a
	// redirection) would otherwise vanish from the cursor context.
	end := int(call.Args[len(call.Args)-1].End().Offset())
	if strings.TrimSpace(src[end:]) != "" {
		return nil, 0, false
	}
	return words, end, true
}

// ArgIndex is the 0-based index of the word under the cursor.
func (in *Input) ArgIndex() int {
	return len(in.Words) - 1
}

// CurrentWord is the (possibly empty) word under the cursor.
func (in *Input) CurrentWord() string {
	return in.Words[len(in.Words)-1]
}

// PreviousWord is the word before the cursor's word, or "" at index 0.
func (in *Input) PreviousWord() string {
	if len(in.Words) < 2 {
		return ""
	}
	return in.Words[len(in.Words)-2]
}

// Suggest writes notice (if any) followed by every candidate that starts with
// the current word, one per line.
func Suggest(w io.Writer, in *Input, notice string, candidates []string) error {
	if notice != "" {
		if _, err := fmt.Fprintln(w, notice); err != nil {
			return err
		}
	}

	current := in.CurrentWord()
	matches := lo.Filter(candidates, func(candidate string, _ int) bool {
		return strings.HasPrefix(candidate, current)
	})
	for _, candidate := range matches {
		if _, err := fmt.Fprintln(w, candidate); err != nil {
			return err
		}
	}
	return nil
}
