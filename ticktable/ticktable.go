// Package ticktable maps MML duration tokens to tick lengths and back.
//
// A Table is immutable once built and safe to share between goroutines;
// encoders, timelines and serializers take one by reference.
package ticktable

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/jsphweid/mmlcore/constants"
	"github.com/jsphweid/mmlcore/model"
	"github.com/pkg/errors"
)

// Entry is the inverse lookup result for one tick length. Primary is the
// preferred token sequence; Alternates are other sequences of the same
// token count.
type Entry struct {
	Primary    []string
	Alternates [][]string
}

type Table struct {
	ticks   map[string]int
	inverse map[int]Entry

	minOnce sync.Once
	minimum int
}

const maxAlternates = 4

// Default is the built-in table: any integer length 1..64 (whole note divided
// and truncated) plus its dotted form.
func Default() *Table {
	ticks := make(map[string]int)
	for n := 1; n <= 64; n++ {
		t := constants.WholeNoteTick / n
		ticks[strconv.Itoa(n)] = t
		ticks[strconv.Itoa(n)+"."] = t + t/2
	}
	return build(ticks)
}

// Standard only knows power-of-two lengths and their dotted forms.
func Standard() *Table {
	ticks := make(map[string]int)
	for n := 1; n <= 64; n *= 2 {
		t := constants.WholeNoteTick / n
		ticks[strconv.Itoa(n)] = t
		ticks[strconv.Itoa(n)+"."] = t + t/2
	}
	return build(ticks)
}

func New(ticks map[string]int) (*Table, error) {
	if len(ticks) == 0 {
		return nil, errors.New("empty tick table")
	}
	copied := make(map[string]int, len(ticks))
	for token, tick := range ticks {
		if token == "" || tick <= 0 {
			return nil, errors.Errorf("invalid tick table entry %q=%d", token, tick)
		}
		copied[token] = tick
	}
	return build(copied), nil
}

// Load reads "token=tick" lines. Blank lines and lines starting with '#'
// are ignored.
func Load(r io.Reader) (*Table, error) {
	ticks := make(map[string]int)
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, errors.Errorf("line %d: expected token=tick", lineNum)
		}
		tick, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNum)
		}
		ticks[strings.TrimSpace(parts[0])] = tick
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read tick table")
	}
	return New(ticks)
}

// Lookup returns the tick length of a duration token. Trailing non-digit
// characters are stripped one at a time until a known token remains, so
// "8.." resolves like "8.".
func (t *Table) Lookup(token string) (int, error) {
	str := token
	for {
		if tick, ok := t.ticks[str]; ok {
			return tick, nil
		}
		if len(str) == 0 {
			break
		}
		ch := str[len(str)-1]
		if ch >= '0' && ch <= '9' {
			break
		}
		str = str[:len(str)-1]
	}
	return 0, errors.Wrapf(model.ErrUndefinedToken, "%q", token)
}

// Has reports an exact token match, without suffix stripping.
func (t *Table) Has(token string) bool {
	_, ok := t.ticks[token]
	return ok
}

func (t *Table) Inverse(tick int) (Entry, bool) {
	e, ok := t.inverse[tick]
	return e, ok
}

func (t *Table) MinimumTick() int {
	t.minOnce.Do(func() {
		for _, tick := range t.ticks {
			if t.minimum == 0 || tick < t.minimum {
				t.minimum = tick
			}
		}
	})
	return t.minimum
}

func (t *Table) InverseCount() int {
	return len(t.inverse)
}

// Tokens returns every token ordered by tick length, longest first.
func (t *Table) Tokens() []string {
	tokens := make([]string, 0, len(t.ticks))
	for token := range t.ticks {
		tokens = append(tokens, token)
	}
	sort.Slice(tokens, func(i, j int) bool {
		a, b := t.ticks[tokens[i]], t.ticks[tokens[j]]
		if a != b {
			return a > b
		}
		return preferToken(tokens[i], tokens[j])
	})
	return tokens
}

func (t *Table) WriteTable(w io.Writer) error {
	for _, token := range t.Tokens() {
		if _, err := fmt.Fprintf(w, "%s=%d\n", token, t.ticks[token]); err != nil {
			return err
		}
	}
	return nil
}

// WriteInverse writes one "tick=primary|alt|alt" line per inverse entry in
// tick order, with the tokens of a sequence joined by '&'.
func (t *Table) WriteInverse(w io.Writer) error {
	keys := make([]int, 0, len(t.inverse))
	for k := range t.inverse {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for _, k := range keys {
		e := t.inverse[k]
		seqs := []string{strings.Join(e.Primary, "&")}
		for _, alt := range e.Alternates {
			seqs = append(seqs, strings.Join(alt, "&"))
		}
		if _, err := fmt.Fprintf(w, "%d=%s\n", k, strings.Join(seqs, "|")); err != nil {
			return err
		}
	}
	return nil
}
