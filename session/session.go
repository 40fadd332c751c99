// Package session keeps editable timelines in memory and warms the
// optimizer cache in the background after each edit.
package session

import (
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/google/uuid"
	"github.com/jsphweid/mmlcore/mml"
	"github.com/jsphweid/mmlcore/model"
	"github.com/jsphweid/mmlcore/optimizer"
	"github.com/jsphweid/mmlcore/ticktable"
	"github.com/jsphweid/mmlcore/timeline"
	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("session not found")

// WarmGeneration is what background optimization precomputes.
const WarmGeneration = optimizer.Gen3

type session struct {
	mu     sync.Mutex
	tl     *timeline.Timeline
	warm   func(func())
	closed bool
}

type Manager struct {
	table    *ticktable.Table
	cache    *optimizer.Cache
	debounce time.Duration

	mu       sync.RWMutex
	sessions map[uuid.UUID]*session
}

// NewManager warms the cache after edits go quiet for d. A zero d
// disables warming.
func NewManager(table *ticktable.Table, cache *optimizer.Cache, d time.Duration) *Manager {
	if cache == nil {
		cache = optimizer.NewCache()
	}
	return &Manager{
		table:    table,
		cache:    cache,
		debounce: d,
		sessions: make(map[uuid.UUID]*session),
	}
}

func (m *Manager) Cache() *optimizer.Cache {
	return m.cache
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Create parses text into a new session.
func (m *Manager) Create(text string) (uuid.UUID, error) {
	tl, err := mml.Parse(m.table, text)
	if err != nil {
		return uuid.Nil, err
	}
	s := &session{tl: tl}
	if m.debounce > 0 {
		s.warm = debounce.New(m.debounce)
	}
	id := uuid.New()
	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	m.schedule(s)
	return id, nil
}

func (m *Manager) get(id uuid.UUID) (*session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, errors.Wrap(ErrNotFound, id.String())
	}
	return s, nil
}

func (m *Manager) Delete(id uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return errors.Wrap(ErrNotFound, id.String())
	}
	s.mu.Lock()
	s.closed = true
	m.cache.Invalidate(s.tl.ID())
	s.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the session timeline.
func (m *Manager) Snapshot(id uuid.UUID) (*timeline.Timeline, error) {
	s, err := m.get(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tl.Clone(), nil
}

// Insert writes notes over the session timeline, all or nothing.
func (m *Manager) Insert(id uuid.UUID, notes []model.Triple) error {
	return m.edit(id, func(tl *timeline.Timeline) error {
		return tl.InsertTriples(notes)
	})
}

func (m *Manager) DeleteMinRest(id uuid.UUID) error {
	return m.edit(id, func(tl *timeline.Timeline) error {
		tl.DeleteMinRest()
		return nil
	})
}

func (m *Manager) SetVelocity(id uuid.UUID, tick, velocity int) error {
	return m.edit(id, func(tl *timeline.Timeline) error {
		return tl.SetVelocityCommand(tick, velocity)
	})
}

// AddTempo sets the tempo at te.TickOffset, replacing one already there.
func (m *Manager) AddTempo(id uuid.UUID, te model.TempoEvent) error {
	if te.TickOffset < 0 || te.Tempo < mml.MinTempo || te.Tempo > mml.MaxTempo {
		return errors.Wrapf(model.ErrOutOfRange, "tempo %d at %d", te.Tempo, te.TickOffset)
	}
	return m.edit(id, func(tl *timeline.Timeline) error {
		tl.AddTempo(te)
		return nil
	})
}

func (m *Manager) edit(id uuid.UUID, f func(*timeline.Timeline) error) error {
	s, err := m.get(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	err = f(s.tl)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	m.schedule(s)
	return nil
}

func (m *Manager) schedule(s *session) {
	if s.warm == nil {
		return
	}
	s.warm(func() {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		snap := s.tl.Clone()
		s.mu.Unlock()
		// errors resurface on the next foreground serialize; a Delete that
		// lands meanwhile leaves the cache refusing this ID
		_, _ = m.cache.Optimize(snap, optimizer.Options{Generation: WarmGeneration})
	})
}

// Serialize writes the session at gen through the cache.
func (m *Manager) Serialize(id uuid.UUID, gen optimizer.Generation) (model.SessionResponse, error) {
	snap, err := m.Snapshot(id)
	if err != nil {
		return model.SessionResponse{}, err
	}
	text, err := m.cache.Optimize(snap, optimizer.Options{Generation: gen})
	if err != nil {
		return model.SessionResponse{}, err
	}
	tempos := snap.Tempos()
	if tempos == nil {
		tempos = []model.TempoEvent{}
	}
	return model.SessionResponse{
		ID:         id.String(),
		Revision:   snap.Revision(),
		MML:        text,
		Generation: int(gen),
		TotalTicks: snap.TotalTickLength(),
		Tempos:     tempos,
	}, nil
}

// TextSpan locates tick in the session's text at gen.
func (m *Manager) TextSpan(id uuid.UUID, gen optimizer.Generation, tick int) (model.TextSpanResponse, error) {
	if tick < 0 {
		return model.TextSpanResponse{}, errors.Wrapf(model.ErrOutOfRange, "tick %d", tick)
	}
	res, err := m.Serialize(id, gen)
	if err != nil {
		return model.TextSpanResponse{}, err
	}
	x, err := mml.NewTextIndex(m.table, res.MML)
	if err != nil {
		return model.TextSpanResponse{}, err
	}
	start, end := x.Span(tick)
	return model.TextSpanResponse{Tick: tick, Start: start, End: end}, nil
}
