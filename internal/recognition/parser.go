package recognition

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultPattern matches a 1-3 digit id followed by a 1-13 digit millisecond clock.
const DefaultPattern = `(?P<id>[0-9]{1,3})-(?P<time>[0-9]{1,13})`

// Result is the outcome of reading one frame.
type Result struct {
	Recognized bool
	ID         int
	Seconds    float64
	Text       string // trimmed engine output, kept for diagnostics
}

// Parser extracts stamps from recognized text.
type Parser struct {
	re      *regexp.Regexp
	idIdx   int
	timeIdx int
}

// NewParser compiles pattern and checks it exposes "id" and "time" groups.
func NewParser(pattern string) (*Parser, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile stamp pattern: %w", err)
	}
	p := &Parser{re: re, idIdx: re.SubexpIndex("id"), timeIdx: re.SubexpIndex("time")}
	if p.idIdx < 0 || p.timeIdx < 0 {
		return nil, fmt.Errorf("stamp pattern %q must define named groups id and time", pattern)
	}
	return p, nil
}

// MustParser is NewParser for patterns known to be valid.
func MustParser(pattern string) *Parser {
	p, err := NewParser(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

// Parse parses engine output. The first match anywhere in the trimmed text wins.
func (p *Parser) Parse(text string) Result {
	text = strings.TrimSpace(text)
	res := Result{Text: text}

	m := p.re.FindStringSubmatch(text)
	if m == nil {
		return res
	}
	id, err := strconv.Atoi(m[p.idIdx])
	if err != nil {
		return res
	}
	ms, err := strconv.ParseInt(m[p.timeIdx], 10, 64)
	if err != nil {
		return res
	}

	res.Recognized = true
	res.ID = id
	res.Seconds = float64(ms) / 1000
	return res
}
