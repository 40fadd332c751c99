// Package mml reads and writes MML text for a single timeline.
package mml

import (
	"strconv"
	"strings"

	"github.com/jsphweid/mmlcore/constants"
	"github.com/jsphweid/mmlcore/model"
	"github.com/jsphweid/mmlcore/ticktable"
	"github.com/jsphweid/mmlcore/timeline"
	"github.com/jsphweid/mmlcore/util"
	"github.com/pkg/errors"
)

const (
	MinTempo      = 32
	MaxTempo      = 255
	MaxNoteNumber = 96
)

var semitones = map[byte]int{'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11}

// span ties one parsed event to the text that produced it. Rests keep the
// index of their 'r' so gaps can be located.
type span struct {
	event      model.NoteEvent
	start, end int
}

type pendingNote struct {
	span
	tokens []string
}

type parser struct {
	table *ticktable.Table
	text  string
	pos   int

	octave   int
	length   string
	velocity int
	tick     int
	tie      bool

	pending *pendingNote
	spans   []span
	tempos  []model.TempoEvent
}

func newParser(table *ticktable.Table, text string) *parser {
	return &parser{
		table:    table,
		text:     strings.ToLower(text),
		octave:   constants.DefaultOctave,
		length:   constants.DefaultLength,
		velocity: constants.DefaultVelocity,
	}
}

// Parse builds a fresh Timeline from text. Tempo commands become the
// timeline's tempo list. Characters outside the grammar are skipped.
func Parse(table *ticktable.Table, text string) (*timeline.Timeline, error) {
	p := newParser(table, text)
	if err := p.run(); err != nil {
		return nil, err
	}
	return p.build()
}

func (p *parser) build() (*timeline.Timeline, error) {
	events := make([]model.NoteEvent, len(p.spans))
	for i, s := range p.spans {
		events[i] = s.event
	}
	tl, err := timeline.Build(p.table, events, p.tempos)
	if err != nil {
		return nil, errors.Wrap(model.ErrParse, err.Error())
	}
	return tl, nil
}

func (p *parser) run() error {
	for p.pos < len(p.text) {
		ch := p.text[p.pos]
		start := p.pos
		p.pos++
		switch {
		case strings.IndexByte("cdefgab", ch) >= 0:
			note := p.octave*12 + semitones[ch] + p.accidental()
			if err := p.note(note, start); err != nil {
				return err
			}
		case ch == 'r':
			if err := p.rest(start); err != nil {
				return err
			}
		case ch == 'n':
			if n, ok := p.number(); ok && n <= MaxNoteNumber {
				if err := p.noteWithToken(n, start, p.length); err != nil {
					return err
				}
			}
		case ch == 'o':
			if n, ok := p.number(); ok {
				p.octave = util.Clamp(n, constants.MinOctave, constants.MaxOctave)
			}
		case ch == '>':
			p.octave = util.Clamp(p.octave+1, constants.MinOctave, constants.MaxOctave)
		case ch == '<':
			p.octave = util.Clamp(p.octave-1, constants.MinOctave, constants.MaxOctave)
		case ch == 'l':
			if token := p.duration(); token != "" {
				if _, err := p.table.Lookup(token); err != nil {
					return p.fail(start, err)
				}
				p.length = token
			}
		case ch == 'v':
			if n, ok := p.number(); ok {
				p.velocity = util.Clamp(n, 0, constants.MaxVelocity)
			}
		case ch == 't':
			if n, ok := p.number(); ok && n >= MinTempo && n <= MaxTempo {
				p.addTempo(n)
			}
		case ch == '&':
			p.tie = true
		}
	}
	p.flush()
	return nil
}

func (p *parser) fail(at int, err error) error {
	return errors.Wrapf(model.ErrParse, "at %d: %v", at, err)
}

func (p *parser) accidental() int {
	if p.pos >= len(p.text) {
		return 0
	}
	switch p.text[p.pos] {
	case '+', '#':
		p.pos++
		return 1
	case '-':
		p.pos++
		return -1
	}
	return 0
}

func (p *parser) number() (int, bool) {
	start := p.pos
	for p.pos < len(p.text) && isDigit(p.text[p.pos]) {
		p.pos++
	}
	if start == p.pos {
		return 0, false
	}
	n, err := strconv.Atoi(p.text[start:p.pos])
	return n, err == nil
}

// duration consumes a digit run and trailing dots.
func (p *parser) duration() string {
	start := p.pos
	for p.pos < len(p.text) && isDigit(p.text[p.pos]) {
		p.pos++
	}
	for p.pos < len(p.text) && p.text[p.pos] == '.' {
		p.pos++
	}
	return p.text[start:p.pos]
}

// lengthToken resolves a note's duration suffix against the default length.
func (p *parser) lengthToken() string {
	token := p.duration()
	if token == "" || token[0] == '.' {
		token = p.length + token
	}
	return token
}

func (p *parser) note(note, start int) error {
	return p.noteWithToken(note, start, p.lengthToken())
}

func (p *parser) noteWithToken(note, start int, token string) error {
	tick, err := p.table.Lookup(token)
	if err != nil {
		return p.fail(start, err)
	}
	if p.tie && p.pending != nil && p.pending.event.Note == note {
		p.pending.event.Tick += tick
		p.pending.tokens = append(p.pending.tokens, token)
		p.pending.end = p.pos
	} else {
		p.flush()
		p.pending = &pendingNote{
			span: span{
				event: model.NewNoteEventWithVelocity(note, tick, p.tick, p.velocity),
				start: start,
				end:   p.pos,
			},
			tokens: []string{token},
		}
	}
	p.tick += tick
	p.tie = false
	return nil
}

func (p *parser) rest(start int) error {
	token := p.lengthToken()
	tick, err := p.table.Lookup(token)
	if err != nil {
		return p.fail(start, err)
	}
	p.flush()
	p.spans = append(p.spans, span{event: model.NewRest(tick, p.tick), start: start, end: p.pos})
	p.tick += tick
	p.tie = false
	return nil
}

func (p *parser) addTempo(tempo int) {
	te := model.TempoEvent{TickOffset: p.tick, Tempo: tempo}
	if n := len(p.tempos); n > 0 && p.tempos[n-1].TickOffset == p.tick {
		p.tempos[n-1] = te
		return
	}
	p.tempos = append(p.tempos, te)
}

func (p *parser) flush() {
	if p.pending == nil {
		return
	}
	p.pending.event.TuningBase = tuningBase(p.pending.tokens)
	p.spans = append(p.spans, p.pending.span)
	p.pending = nil
}

// tuningBase detects a tie chain of at least four identical short tokens.
func tuningBase(tokens []string) model.TuningBase {
	if len(tokens) < 4 {
		return model.TuningNone
	}
	for _, t := range tokens[1:] {
		if t != tokens[0] {
			return model.TuningNone
		}
	}
	return model.TuningBaseOf(tokens[0])
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

