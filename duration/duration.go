// Package duration turns tick lengths into MML duration tokens.
package duration

import (
	"strconv"
	"strings"

	"github.com/jsphweid/mmlcore/model"
	"github.com/jsphweid/mmlcore/ticktable"
	"github.com/pkg/errors"
)

type Encoder struct {
	table *ticktable.Table
}

func NewEncoder(table *ticktable.Table) *Encoder {
	return &Encoder{table: table}
}

func (e *Encoder) Table() *ticktable.Table {
	return e.table
}

// Tokens decomposes tick into duration tokens. Lengths above two whole notes
// are first reduced by dotted whole notes; the rest is matched against the
// inverse table or split greedily by power-of-two bases.
func (e *Encoder) Tokens(tick int) ([]string, error) {
	tokens, rem := e.wholePrefix(tick)
	return e.decompose(tokens, rem, tick)
}

// Candidates lists spellings of tick with the Tokens result first, followed
// by the inverse table alternates of the part below two whole notes.
func (e *Encoder) Candidates(tick int) ([][]string, error) {
	primary, err := e.Tokens(tick)
	if err != nil {
		return nil, err
	}
	out := [][]string{primary}
	prefix, rem := e.wholePrefix(tick)
	if entry, ok := e.table.Inverse(rem); ok {
		for _, alt := range entry.Alternates {
			out = append(out, append(append([]string(nil), prefix...), alt...))
		}
	}
	return out, nil
}

// wholePrefix peels dotted whole notes off lengths above two whole notes.
// Tables without whole-note tokens skip this step.
func (e *Encoder) wholePrefix(tick int) ([]string, int) {
	var tokens []string
	rem := tick
	if rem <= 0 || !e.table.Has("1.") || !e.table.Has("1") {
		return nil, rem
	}
	dottedWhole, _ := e.table.Lookup("1.")
	whole, _ := e.table.Lookup("1")
	for rem > whole*2 {
		tokens = append(tokens, "1.")
		rem -= dottedWhole
	}
	return tokens, rem
}

func (e *Encoder) decompose(tokens []string, rem, orig int) ([]string, error) {
	if rem <= 0 {
		return tokens, nil
	}
	for base := 1; base <= 64; base *= 2 {
		if entry, ok := e.table.Inverse(rem); ok {
			tokens = append(tokens, entry.Primary...)
			rem = 0
			break
		}
		baseToken := strconv.Itoa(base)
		baseTick, err := e.table.Lookup(baseToken)
		if err != nil {
			continue
		}
		for rem >= baseTick {
			tokens = append(tokens, baseToken)
			rem -= baseTick
		}
	}
	if rem > 0 {
		return nil, errors.Wrapf(model.ErrUnrepresentableDuration, "%d (remainder %d)", orig, rem)
	}
	return tokens, nil
}

// TokensByTuningBase repeats base while at least one minimum length stays
// behind for the tail, then decomposes the tail normally.
func (e *Encoder) TokensByTuningBase(tick int, base model.TuningBase) ([]string, error) {
	baseTick, err := e.table.Lookup(base.Token())
	if err != nil {
		return nil, err
	}
	min := e.table.MinimumTick()
	var tokens []string
	rem := tick
	for rem >= baseTick+min {
		tokens = append(tokens, base.Token())
		rem -= baseTick
	}
	return e.decompose(tokens, rem, tick)
}

// Encode renders name (a note letter with accidental, or "r") with the
// tokens for tick. With needsTie the parts are joined by '&'.
func (e *Encoder) Encode(name string, tick int, needsTie bool) (string, error) {
	tokens, err := e.Tokens(tick)
	if err != nil {
		return "", err
	}
	return Join(name, tokens, needsTie), nil
}

func (e *Encoder) EncodeByTuningBase(name string, tick int, base model.TuningBase, needsTie bool) (string, error) {
	tokens, err := e.TokensByTuningBase(tick, base)
	if err != nil {
		return "", err
	}
	return Join(name, tokens, needsTie), nil
}

func Join(name string, tokens []string, needsTie bool) string {
	var sb strings.Builder
	for i, t := range tokens {
		if i > 0 && needsTie {
			sb.WriteByte('&')
		}
		sb.WriteString(name)
		sb.WriteString(t)
	}
	return sb.String()
}
