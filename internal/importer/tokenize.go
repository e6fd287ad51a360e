package importer

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// maxLineBytes bounds a single extract line read from a stream.
const maxLineBytes = 1 << 20

// Line is one extract line split into whitespace-separated tokens.
type Line struct {
	// Number is 1-based.
	Number int
	Tokens []string
}

// Text rejoins the tokens with single spaces.
func (l Line) Text() string { return strings.Join(l.Tokens, " ") }

// Tokenize splits extract text into lines of tokens. Text is NFKC-normalized
// first so full-width digits and non-breaking spaces from PDF extraction
// behave like their ASCII forms.
func Tokenize(text string) []Line {
	raw := strings.Split(norm.NFKC.String(text), "\n")
	out := make([]Line, 0, len(raw))
	for i, l := range raw {
		out = append(out, Line{Number: i + 1, Tokens: strings.Fields(l)})
	}
	return out
}

// TokenizeReader is Tokenize over a stream.
func TokenizeReader(r io.Reader) ([]Line, error) {
	sc := bufio.NewScanner(norm.NFKC.Reader(r))
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var out []Line
	for n := 1; sc.Scan(); n++ {
		out = append(out, Line{Number: n, Tokens: strings.Fields(sc.Text())})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read extract: %w", err)
	}
	return out, nil
}
