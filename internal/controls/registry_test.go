package controls

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iwvelando/sire-dashboard/internal/dataset"
)

var testYears = dataset.Bounds{Min: 1, Max: 12}

func newTestRegistry() *Registry {
	return NewRegistry(Defaults(10, testYears), testYears, []string{"sales-box", "sire-scatter"})
}

func TestDefaults(t *testing.T) {
	state := newTestRegistry().State()

	assert.Equal(t, "", state.View)
	assert.Equal(t, ExcludingOutliers, state.Mode)
	assert.Equal(t, "", state.Search)
	assert.Empty(t, state.Selection)
	assert.Equal(t, 10, state.MinFoals)
	assert.Equal(t, Range{Lo: 1, Hi: 12}, state.YearRange)
}

func TestSetCoercesJSONValues(t *testing.T) {
	tests := []struct {
		name   string
		id     ID
		raw    interface{}
		expect interface{}
	}{
		{"View", View, "sales-box", "sales-box"},
		{"Unset view", View, "", ""},
		{"Mode", Mode, "full", Full},
		{"Search", Search, "tap", "tap"},
		{"Selection from JSON list", Selection, []interface{}{"B", "A", "B"}, []string{"B", "A"}},
		{"Cleared selection", Selection, nil, []string(nil)},
		{"Min foals from JSON number", MinFoals, float64(4), 4},
		{"Negative min foals", MinFoals, -3, -3},
		{"Range from list", YearRange, []interface{}{float64(2), float64(5)}, Range{Lo: 2, Hi: 5}},
		{"Range from object", YearRange, map[string]interface{}{"lo": float64(3), "hi": float64(4)}, Range{Lo: 3, Hi: 4}},
		{"Range clamped to bounds", YearRange, Range{Lo: -5, Hi: 40}, Range{Lo: 1, Hi: 12}},
		{"Inverted range kept", YearRange, Range{Lo: 9, Hi: 2}, Range{Lo: 9, Hi: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := newTestRegistry()
			ev, err := reg.Set(tt.id, tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.id, ev.Control)
			assert.Equal(t, tt.expect, ev.New)

			got, err := reg.State().Get(tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.expect, got)
		})
	}
}

func TestSetRejectsInvalidValuesWithoutMutating(t *testing.T) {
	tests := []struct {
		name string
		id   ID
		raw  interface{}
	}{
		{"Unknown view", View, "pie-chart"},
		{"Unknown mode", Mode, "partial"},
		{"Fractional foals", MinFoals, 2.5},
		{"Text foals", MinFoals, "ten"},
		{"Range of three", YearRange, []interface{}{float64(1), float64(2), float64(3)}},
		{"Range missing hi", YearRange, map[string]interface{}{"lo": float64(1)}},
		{"Selection of numbers", Selection, []interface{}{float64(1)}},
		{"Search as number", Search, 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := newTestRegistry()
			before := reg.State()

			_, err := reg.Set(tt.id, tt.raw)
			assert.ErrorIs(t, err, ErrInvalidValue)
			assert.Equal(t, before, reg.State())
		})
	}
}

func TestSetUnknownControl(t *testing.T) {
	_, err := newTestRegistry().Set(ID("colour"), "red")
	assert.ErrorIs(t, err, ErrUnknownControl)

	_, err = ParseID("colour")
	assert.ErrorIs(t, err, ErrUnknownControl)
}

func TestEventChanged(t *testing.T) {
	reg := newTestRegistry()

	ev, err := reg.Set(MinFoals, 10)
	require.NoError(t, err)
	assert.False(t, ev.Changed())

	ev, err = reg.Set(MinFoals, 11)
	require.NoError(t, err)
	assert.True(t, ev.Changed())
	assert.Equal(t, 10, ev.Old)
}

func TestStateCloneIsDeep(t *testing.T) {
	reg := newTestRegistry()
	_, err := reg.Set(Selection, []string{"A"})
	require.NoError(t, err)

	snapshot := reg.State()
	snapshot.Selection[0] = "mutated"
	assert.Equal(t, []string{"A"}, reg.State().Selection)
}

func TestRangeEmpty(t *testing.T) {
	assert.False(t, Range{Lo: 2, Hi: 5}.Empty())
	assert.False(t, Range{Lo: 4, Hi: 4}.Empty())
	assert.True(t, Range{Lo: 9, Hi: 2}.Empty())
}
