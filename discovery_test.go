package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(farmers []Farmer) []string {
	out := make([]string, len(farmers))
	for i, f := range farmers {
		out[i] = f.ID
	}
	return out
}

func TestDiscover(t *testing.T) {
	st := newTestStore(t, nil)
	pending := st.Register(Farmer{
		Name:        "Honey Hollow",
		Description: "wild honey",
		Products:    []Product{{ID: "h1", Name: "Linden Honey", Category: CategoryHoney}},
	})

	testCases := []struct {
		name  string
		query Query
		want  []string
	}{
		{name: "everything approved", query: Query{}, want: []string{"1", "2", "3", "4"}},
		{name: "all category", query: Query{Category: "ALL"}, want: []string{"1", "2", "3", "4"}},
		{name: "term in name", query: Query{Term: "bees"}, want: []string{"2"}},
		{name: "term in description", query: Query{Term: "CENTRAL MARKET"}, want: []string{"4"}},
		{name: "category", query: Query{Category: "Honey"}, want: []string{"2"}},
		{name: "category any product", query: Query{Category: "crafts"}, want: []string{"2"}},
		{name: "term and category", query: Query{Term: "fresh", Category: "Dairy"}, want: []string{"3"}},
		{name: "no match", query: Query{Term: "mushrooms"}, want: []string{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := st.Discover(tc.query)
			assert.Equal(t, tc.want, ids(got))
			assert.NotContains(t, ids(got), pending.ID)
		})
	}
}

func TestDiscoverKeepsDirectoryOrder(t *testing.T) {
	st := newTestStore(t, nil)
	a := st.Register(Farmer{Name: "A"})
	b := st.Register(Farmer{Name: "B"})
	st.Approve(a.ID)
	st.Approve(b.ID)

	assert.Equal(t, []string{b.ID, a.ID, "1", "2", "3", "4"}, ids(st.Discover(Query{})))
}

func TestMapPins(t *testing.T) {
	st := newTestStore(t, nil)
	st.Register(Farmer{Name: "Hidden", Coordinates: Coordinates{Lat: 1, Lng: 2}})

	pins := st.MapPins(Query{Category: "Fruits"})

	require.Len(t, pins, 1)
	assert.Equal(t, MapPin{
		ID:      "4",
		Name:    "Rīgas Centrāltirgus Stends 45",
		Address: "Riga Central Market, Riga",
		Lat:     56.9440,
		Lng:     24.1160,
		Link:    "/farmer/4",
	}, pins[0])
	assert.Len(t, st.MapPins(Query{}), 4)
}

func TestFavorites(t *testing.T) {
	st := newTestStore(t, nil)
	pending := st.Register(Farmer{Name: "Pending"})
	st.ToggleFollow("3")
	st.ToggleFollow("1")
	st.ToggleFollow(pending.ID)
	st.ToggleFollow("gone")

	assert.Equal(t, []string{"1", "3"}, ids(st.Favorites()))
}

func TestStats(t *testing.T) {
	st := newTestStore(t, nil)
	p := st.Register(Farmer{Name: "Pending"})

	stats := st.Stats()

	assert.Equal(t, 4, stats.Approved)
	assert.Equal(t, 3, stats.Verified)
	require.Len(t, stats.Pending, 1)
	assert.Equal(t, p.ID, stats.Pending[0].ID)
	assert.Equal(t, 1, st.PendingCount())
}
