package optimizer

import (
	"testing"

	"github.com/jsphweid/mmlcore/mml"
	"github.com/jsphweid/mmlcore/model"
	"github.com/jsphweid/mmlcore/ticktable"
	"github.com/jsphweid/mmlcore/timeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var table = ticktable.Default()

func mustParse(t *testing.T, text string) *timeline.Timeline {
	tl, err := mml.Parse(table, text)
	require.NoError(t, err)
	return tl
}

func mustOptimize(t *testing.T, tl *timeline.Timeline, opts Options) string {
	s, err := Optimize(tl, opts)
	require.NoError(t, err)
	return s
}

var sources = []string{
	"ara",
	"cdef-gab>cdef+gab+<c1",
	"c4&c16g2&g8d1.&d1.&d1.&d24",
	"T150v10c8.g16e4v8g-<at120<b-",
	"c8c8c8c8c8c8c8c8d16d16d16e16e16e16e16",
	"l16cdefgab>c<bagfedcl8r.cdef",
	"t120ct120dt130et130f",
	"o1co7co2c>>>c",
	"v12c64&c64&c64&c64r8d32&d32&d32&d32",
	"c1.&c1.&c1.&c7r3e5g9b11",
	"l3ccc>l6ddd<l12eeeeee",
}

func TestGenerationOne(t *testing.T) {
	for _, src := range sources {
		tl := mustParse(t, src)
		want, err := mml.Serialize(tl, mml.Options{})
		require.NoError(t, err)
		assert.Equal(t, want, mustOptimize(t, tl, Options{Generation: Gen1}))
	}
}

func TestGenerationsShrinkAndRoundTrip(t *testing.T) {
	for _, src := range sources {
		t.Run(src, func(t *testing.T) {
			tl := mustParse(t, src)
			g1 := mustOptimize(t, tl, Options{Generation: Gen1})
			g2 := mustOptimize(t, tl, Options{Generation: Gen2})
			g3 := mustOptimize(t, tl, Options{Generation: Gen3})

			assert.GreaterOrEqual(t, len(g1), len(g2))
			assert.GreaterOrEqual(t, len(g2), len(g3))
			for _, out := range []string{g1, g2, g3} {
				assert.True(t, tl.Equal(mustParse(t, out)), "%s -> %s", src, out)
			}
		})
	}
}

func TestGenerationTwo(t *testing.T) {
	cases := []struct {
		src, want string
	}{
		{"c8c8c8c8c8c8c8c8", "l8cccccccc"},
		{"t120ct120d", "t120cd"},
		{"o1co7c", "o1co7c"},
		{"c4.d4.", "c.d."},
	}
	for _, c := range cases {
		t.Run(c.src, func(t *testing.T) {
			assert.Equal(t, c.want, mustOptimize(t, mustParse(t, c.src), Options{Generation: Gen2}))
		})
	}
}

func TestGenerationThree(t *testing.T) {
	tl := mustParse(t, "l8cdefgab>c<l4c")
	g3 := mustOptimize(t, tl, Options{Generation: Gen3})
	assert.Equal(t, "l8cdefgab>c<c4", g3)
}

func TestTempoDedupKeepsTiming(t *testing.T) {
	tl := mustParse(t, "c2d4")
	tempos := []model.TempoEvent{{TickOffset: 48, Tempo: 150}, {TickOffset: 96, Tempo: 150}}
	g1 := mustOptimize(t, tl, Options{Generation: Gen1, Tempos: tempos})
	g2 := mustOptimize(t, tl, Options{Generation: Gen2, Tempos: tempos})
	assert.Equal(t, "c8t150&c8t150&c4d4", g1)
	assert.Equal(t, "c8t150&c.d", g2)
	assert.Equal(t, []model.TempoEvent{{TickOffset: 48, Tempo: 150}}, mustParse(t, g2).Tempos())
}

func TestOptimizeRange(t *testing.T) {
	tl := mustParse(t, "cdt150ef")
	assert.Equal(t, "d4t150e4", mustOptimize(t, tl, Options{Generation: Gen1, Start: 96, End: 288}))
	_, err := Optimize(tl, Options{Generation: Gen1, Start: 300, End: 200})
	assert.Error(t, err)
}

func TestParseGeneration(t *testing.T) {
	g, err := ParseGeneration("gen3")
	require.NoError(t, err)
	assert.Equal(t, Gen3, g)
	g, err = ParseGeneration("2")
	require.NoError(t, err)
	assert.Equal(t, Gen2, g)
	_, err = ParseGeneration("4")
	assert.Error(t, err)
}

func TestCache(t *testing.T) {
	cache := NewCache()
	tl := mustParse(t, "cdefgab")
	opts := Options{Generation: Gen3}

	first, err := cache.Optimize(tl, opts)
	require.NoError(t, err)
	second, err := cache.Optimize(tl, opts)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	hits, misses := cache.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)

	_, err = cache.Optimize(tl, Options{Generation: Gen1})
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Len())

	require.NoError(t, tl.Insert(model.NewNoteEvent(60, 96, 0)))
	third, err := cache.Optimize(tl, opts)
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
	assert.Equal(t, 1, cache.Len())

	// a fork has its own identity
	cache.Put(tl.Fork(), opts, "x")
	assert.Equal(t, 2, cache.Len())

	cache.Invalidate(tl.ID())
	assert.Equal(t, 1, cache.Len())
	cache.Clear()
	assert.Equal(t, 0, cache.Len())
}

func TestCacheIgnoresPutAfterInvalidate(t *testing.T) {
	cache := NewCache()
	tl := mustParse(t, "cde")
	snap := tl.Clone()

	cache.Invalidate(tl.ID())
	text, err := cache.Optimize(snap, Options{Generation: Gen2})
	require.NoError(t, err)
	assert.Equal(t, "cde", text)
	assert.Equal(t, 0, cache.Len())

	cache.Put(tl.Fork(), Options{Generation: Gen2}, "cde")
	assert.Equal(t, 1, cache.Len())
}

func TestCacheIgnoresOlderRevision(t *testing.T) {
	cache := NewCache()
	tl := mustParse(t, "cde")
	old := tl.Clone()
	require.NoError(t, tl.Insert(model.NewNoteEvent(60, 96, 0)))

	cache.Put(tl, Options{Generation: Gen1}, "new")
	cache.Put(old, Options{Generation: Gen1}, "old")
	_, ok := cache.Get(old, Options{Generation: Gen1})
	assert.False(t, ok)
	s, ok := cache.Get(tl, Options{Generation: Gen1})
	require.True(t, ok)
	assert.Equal(t, "new", s)
}
