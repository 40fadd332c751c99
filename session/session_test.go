package session

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jsphweid/mmlcore/model"
	"github.com/jsphweid/mmlcore/optimizer"
	"github.com/jsphweid/mmlcore/ticktable"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var table = ticktable.Default()

func TestCreateAndSerialize(t *testing.T) {
	m := NewManager(table, nil, 0)
	id, err := m.Create("t150c4d4e4")
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())

	res, err := m.Serialize(id, optimizer.Gen2)
	require.NoError(t, err)
	assert.Equal(t, id.String(), res.ID)
	assert.Equal(t, "t150cde", res.MML)
	assert.Equal(t, 288, res.TotalTicks)
	assert.Equal(t, []model.TempoEvent{{TickOffset: 0, Tempo: 150}}, res.Tempos)

	_, err = m.Serialize(id, optimizer.Gen2)
	require.NoError(t, err)
	hits, _ := m.Cache().Stats()
	assert.Equal(t, 1, hits)
}

func TestInsert(t *testing.T) {
	m := NewManager(table, nil, 0)
	id, err := m.Create("c4d4e4")
	require.NoError(t, err)
	before, err := m.Serialize(id, optimizer.Gen2)
	require.NoError(t, err)

	require.NoError(t, m.Insert(id, []model.Triple{{Note: 55, TickOffset: 96, Tick: 96, Velocity: 8}}))
	after, err := m.Serialize(id, optimizer.Gen2)
	require.NoError(t, err)
	assert.Equal(t, "cge", after.MML)
	assert.Greater(t, after.Revision, before.Revision)

	err = m.Insert(id, []model.Triple{
		{Note: 60, TickOffset: 0, Tick: 96, Velocity: 8},
		{Note: 60, TickOffset: 0, Tick: 0, Velocity: 8},
	})
	assert.True(t, errors.Is(err, model.ErrParse))
	unchanged, err := m.Serialize(id, optimizer.Gen2)
	require.NoError(t, err)
	assert.Equal(t, after, unchanged)
}

func TestDeleteMinRest(t *testing.T) {
	m := NewManager(table, nil, 0)
	id, err := m.Create("c4")
	require.NoError(t, err)
	require.NoError(t, m.Insert(id, []model.Triple{{Note: 50, TickOffset: 100, Tick: 92, Velocity: 8}}))

	require.NoError(t, m.DeleteMinRest(id))
	snap, err := m.Snapshot(id)
	require.NoError(t, err)
	assert.Equal(t, 192, snap.TotalTickLength())
	for _, e := range snap.Events() {
		assert.GreaterOrEqual(t, e.Tick, table.MinimumTick())
	}
}

func TestSetVelocityAndTempo(t *testing.T) {
	m := NewManager(table, nil, 0)
	id, err := m.Create("c4d4")
	require.NoError(t, err)
	require.NoError(t, m.SetVelocity(id, 96, 12))
	require.NoError(t, m.AddTempo(id, model.TempoEvent{TickOffset: 0, Tempo: 90}))

	res, err := m.Serialize(id, optimizer.Gen2)
	require.NoError(t, err)
	assert.Equal(t, "t90cv12d", res.MML)

	err = m.SetVelocity(id, 500, 3)
	assert.True(t, errors.Is(err, model.ErrOutOfRange))
	err = m.SetVelocity(id, 0, 16)
	assert.True(t, errors.Is(err, model.ErrOutOfRange))
	err = m.AddTempo(id, model.TempoEvent{TickOffset: 96, Tempo: 300})
	assert.True(t, errors.Is(err, model.ErrOutOfRange))
	err = m.AddTempo(id, model.TempoEvent{TickOffset: -1, Tempo: 120})
	assert.True(t, errors.Is(err, model.ErrOutOfRange))
}

func TestTextSpan(t *testing.T) {
	m := NewManager(table, nil, 0)
	id, err := m.Create("c4d4e4")
	require.NoError(t, err)

	span, err := m.TextSpan(id, optimizer.Gen1, 96)
	require.NoError(t, err)
	assert.Equal(t, model.TextSpanResponse{Tick: 96, Start: 2, End: 4}, span)

	span, err = m.TextSpan(id, optimizer.Gen1, 1000)
	require.NoError(t, err)
	assert.Equal(t, model.TextSpanResponse{Tick: 1000, Start: 6, End: 6}, span)

	_, err = m.TextSpan(id, optimizer.Gen1, -1)
	assert.True(t, errors.Is(err, model.ErrOutOfRange))
}

func TestDelete(t *testing.T) {
	m := NewManager(table, nil, 0)
	id, err := m.Create("c")
	require.NoError(t, err)
	require.NoError(t, m.Delete(id))

	_, err = m.Serialize(id, optimizer.Gen1)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(m.Delete(id), ErrNotFound))
	assert.True(t, errors.Is(m.Insert(uuid.New(), nil), ErrNotFound))
}

func TestDeleteDropsLateWarmUp(t *testing.T) {
	m := NewManager(table, nil, 0)
	id, err := m.Create("cde")
	require.NoError(t, err)
	snap, err := m.Snapshot(id)
	require.NoError(t, err)

	// a warm-up that cloned before Delete finishes after it
	require.NoError(t, m.Delete(id))
	_, err = m.Cache().Optimize(snap, optimizer.Options{Generation: WarmGeneration})
	require.NoError(t, err)
	assert.Equal(t, 0, m.Cache().Len())
}

func TestBackgroundWarmsCache(t *testing.T) {
	m := NewManager(table, nil, 10*time.Millisecond)
	id, err := m.Create("c8d8e8f8g8a8b8>c8")
	require.NoError(t, err)
	require.NoError(t, m.Insert(id, []model.Triple{{Note: 48, TickOffset: 0, Tick: 48, Velocity: 8}}))

	snap, err := m.Snapshot(id)
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		_, ok := m.Cache().Get(snap, optimizer.Options{Generation: WarmGeneration})
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestConcurrentEdits(t *testing.T) {
	m := NewManager(table, nil, time.Millisecond)
	id, err := m.Create("c1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tr := model.Triple{Note: 48 + i, TickOffset: i * 48, Tick: 48, Velocity: 8}
			assert.NoError(t, m.Insert(id, []model.Triple{tr}))
			_, err := m.Serialize(id, optimizer.Gen2)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	res, err := m.Serialize(id, optimizer.Gen2)
	require.NoError(t, err)
	assert.Equal(t, "l8cc+dd+eff+g", res.MML)
}
