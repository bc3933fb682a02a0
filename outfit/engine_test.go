package outfit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kasuganosora/magicwardrobe/ai"
	"github.com/kasuganosora/magicwardrobe/catalog"
	"github.com/kasuganosora/magicwardrobe/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	store   *fakeStore
	stylist *fakeStylist
	embed   *fakeEmbedder
	weather *fakeWeather
	engine  *Engine
}

func newHarness(t *testing.T, garments ...model.Garment) *harness {
	t.Helper()
	h := &harness{
		store:   &fakeStore{garments: garments, results: map[catalog.Category][]model.Garment{}},
		stylist: &fakeStylist{out: map[catalog.Category]ai.Suggestion{}},
		embed:   &fakeEmbedder{},
		weather: &fakeWeather{phrase: "Clear sky, 68°F"},
	}
	h.engine = NewEngine(1, h.store, h.stylist, h.embed, h.weather, Options{
		Now:  func() time.Time { return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC) },
		Intn: func(int) int { return 0 },
	}, nop())
	return h
}

// place sets a slot's candidates directly, displaying candidates[idx].
func (h *harness) place(slot catalog.Category, idx int, cands ...model.Garment) {
	ptrs := garmentPtrs(cands)
	h.engine.state.candidates[slot] = ptrs
	h.engine.state.index[slot] = idx
	if len(ptrs) > 0 {
		h.engine.state.slots[slot] = ptrs[idx]
	}
}

func (h *harness) displayedID(slot catalog.Category) int64 {
	if it := h.engine.state.slots[slot]; it != nil {
		return it.ID
	}
	return 0
}

func assertDisplayedInvariant(t *testing.T, e *Engine) {
	t.Helper()
	for _, slot := range catalog.Slots() {
		cands := e.state.candidates[slot]
		if len(cands) == 0 {
			continue
		}
		idx := e.state.index[slot]
		require.Less(t, idx, len(cands), "slot %s", slot)
		require.NotNil(t, e.state.slots[slot], "slot %s", slot)
		assert.Equal(t, cands[idx].ID, e.state.slots[slot].ID, "slot %s", slot)
	}
}

func TestCycleWrapAround(t *testing.T) {
	for _, l := range []int{2, 3, 5} {
		for i := 0; i < l; i++ {
			h := newHarness(t)
			cands := make([]model.Garment, l)
			for k := range cands {
				cands[k] = g(int64(k+1), catalog.Tops)
			}

			h.place(catalog.Tops, i, cands...)
			require.NoError(t, h.engine.Cycle(catalog.Tops, Next))
			assert.Equal(t, (i+1)%l, h.engine.state.index[catalog.Tops])
			assertDisplayedInvariant(t, h.engine)

			h.place(catalog.Tops, i, cands...)
			require.NoError(t, h.engine.Cycle(catalog.Tops, Prev))
			assert.Equal(t, (i-1+l)%l, h.engine.state.index[catalog.Tops])
			assertDisplayedInvariant(t, h.engine)
		}
	}
}

func TestCycleShortListIsNoop(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.engine.Cycle(catalog.Tops, Next))
	assert.Nil(t, h.engine.state.slots[catalog.Tops])

	h.place(catalog.Tops, 0, g(7, catalog.Tops))
	require.NoError(t, h.engine.Cycle(catalog.Tops, Prev))
	assert.Equal(t, 0, h.engine.state.index[catalog.Tops])
	assert.Equal(t, int64(7), h.displayedID(catalog.Tops))
}

func TestCycleLockedSlotIsNoop(t *testing.T) {
	h := newHarness(t)
	h.place(catalog.Tops, 0, g(1, catalog.Tops), g(2, catalog.Tops))
	_, err := h.engine.ToggleLock(catalog.Tops)
	require.NoError(t, err)

	require.NoError(t, h.engine.Cycle(catalog.Tops, Next))
	assert.Equal(t, int64(1), h.displayedID(catalog.Tops))
}

func TestUnknownSlot(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.engine.Cycle(catalog.Accessories, Next), ErrUnknownSlot)
	_, err := h.engine.ToggleLock("Gloves")
	assert.ErrorIs(t, err, ErrUnknownSlot)
	_, err = h.engine.Candidates(catalog.Accessories)
	assert.ErrorIs(t, err, ErrUnknownSlot)
}

func TestToggleLockOnlyFlips(t *testing.T) {
	h := newHarness(t)
	h.place(catalog.Bottoms, 1, g(1, catalog.Bottoms), g(2, catalog.Bottoms), g(3, catalog.Bottoms))

	locked, err := h.engine.ToggleLock(catalog.Bottoms)
	require.NoError(t, err)
	assert.True(t, locked)
	assert.Len(t, h.engine.state.candidates[catalog.Bottoms], 3)
	assert.Equal(t, 1, h.engine.state.index[catalog.Bottoms])

	locked, _ = h.engine.ToggleLock(catalog.Bottoms)
	assert.False(t, locked)

	locked, _ = h.engine.ToggleLock(catalog.Headwear)
	assert.True(t, locked, "empty slots can be locked")
}

func TestGenerateFillsSuggestedSlots(t *testing.T) {
	jeans := g(10, catalog.Bottoms)
	h := newHarness(t, jeans)
	h.stylist.out = map[catalog.Category]ai.Suggestion{
		catalog.Tops:     {SubCategory: "Hoodie", PrimaryColor: "Beige", Tags: []string{"Oversized", "Cotton"}},
		catalog.Footwear: {SubCategory: "Sneakers", PrimaryColor: "White"},
	}
	h.store.results[catalog.Tops] = []model.Garment{g(21, catalog.Tops), g(22, catalog.Tops)}
	h.store.results[catalog.Footwear] = []model.Garment{g(31, catalog.Footwear)}

	out := h.engine.Generate(context.Background())
	require.Equal(t, OutcomeGenerated, out)

	assert.Equal(t, int64(10), h.displayedID(catalog.Bottoms))
	assert.Equal(t, int64(21), h.displayedID(catalog.Tops))
	assert.Len(t, h.engine.state.candidates[catalog.Tops], 2)
	assert.Equal(t, int64(31), h.displayedID(catalog.Footwear))
	assert.Nil(t, h.engine.state.slots[catalog.Headwear])
	assertDisplayedInvariant(t, h.engine)

	assert.ElementsMatch(t, []string{"Beige Hoodie Tops Oversized Cotton", "White Sneakers Footwear"}, h.embed.texts)
	assert.False(t, h.engine.Loading())
}

func TestGenerateUsesTopK(t *testing.T) {
	h := newHarness(t, g(1, catalog.Bottoms))
	h.stylist.out = map[catalog.Category]ai.Suggestion{catalog.Tops: {SubCategory: "Polo"}}
	for i := int64(0); i < 8; i++ {
		h.store.results[catalog.Tops] = append(h.store.results[catalog.Tops], g(100+i, catalog.Tops))
	}
	require.Equal(t, OutcomeGenerated, h.engine.Generate(context.Background()))
	assert.Len(t, h.engine.state.candidates[catalog.Tops], DefaultTopK)
}

func TestGenerateLockPreservation(t *testing.T) {
	h := newHarness(t, g(1, catalog.Bottoms))
	h.place(catalog.Tops, 1, g(5, catalog.Tops), g(6, catalog.Tops), g(7, catalog.Tops))
	_, _ = h.engine.ToggleLock(catalog.Tops)
	_, _ = h.engine.ToggleLock(catalog.Headwear)

	before := h.engine.state.clone()
	h.stylist.out = map[catalog.Category]ai.Suggestion{
		catalog.Tops:     {SubCategory: "Polo"},
		catalog.Headwear: {SubCategory: "Cap"},
	}
	h.store.results[catalog.Tops] = []model.Garment{g(99, catalog.Tops)}
	h.store.results[catalog.Headwear] = []model.Garment{g(98, catalog.Headwear)}

	require.Equal(t, OutcomeGenerated, h.engine.Generate(context.Background()))

	assert.Same(t, before.slots[catalog.Tops], h.engine.state.slots[catalog.Tops])
	assert.Equal(t, before.candidates[catalog.Tops], h.engine.state.candidates[catalog.Tops])
	assert.Equal(t, before.index[catalog.Tops], h.engine.state.index[catalog.Tops])
	assert.Nil(t, h.engine.state.slots[catalog.Headwear], "locked empty slot stays empty")
	assert.Empty(t, h.engine.state.candidates[catalog.Headwear])
	assert.NotContains(t, h.store.searches, catalog.Tops)
}

func TestGenerateWithLocksSkipsAnchor(t *testing.T) {
	h := newHarness(t, g(1, catalog.Bottoms))
	h.place(catalog.Footwear, 0, g(40, catalog.Footwear))
	_, _ = h.engine.ToggleLock(catalog.Footwear)

	require.Equal(t, OutcomeGenerated, h.engine.Generate(context.Background()))
	assert.Zero(t, h.store.listCalls, "no anchor lookup when something is locked")
	assert.Nil(t, h.engine.state.slots[catalog.Bottoms])
	require.Len(t, h.stylist.contexts, 1)
	assert.Nil(t, h.stylist.contexts[0].Anchor)
	assert.True(t, h.stylist.contexts[0].Locked[catalog.Footwear])
}

func TestGenerateAnchorExpansion(t *testing.T) {
	b1, b2, b3 := g(1, catalog.Bottoms), g(2, catalog.Bottoms), g(3, catalog.Bottoms)
	h := newHarness(t, b3, g(9, catalog.Tops), b2, b1)
	h.place(catalog.Bottoms, 0, b2)

	require.Equal(t, OutcomeGenerated, h.engine.Generate(context.Background()))

	cands := h.engine.state.candidates[catalog.Bottoms]
	require.Len(t, cands, 3)
	idx := h.engine.state.index[catalog.Bottoms]
	assert.Equal(t, int64(2), cands[idx].ID)
	assert.Equal(t, int64(2), h.displayedID(catalog.Bottoms))
	assert.Equal(t, []int64{3, 2, 1}, []int64{cands[0].ID, cands[1].ID, cands[2].ID})
	assertDisplayedInvariant(t, h.engine)

	require.NoError(t, h.engine.Cycle(catalog.Bottoms, Next))
	assert.Equal(t, int64(1), h.displayedID(catalog.Bottoms))
}

func TestGenerateTopsAnchorWhenNoBottoms(t *testing.T) {
	h := newHarness(t, g(9, catalog.Tops), g(8, catalog.Tops))
	h.place(catalog.Tops, 0, g(8, catalog.Tops))

	require.Equal(t, OutcomeGenerated, h.engine.Generate(context.Background()))
	cands := h.engine.state.candidates[catalog.Tops]
	require.Len(t, cands, 2)
	assert.Equal(t, 1, h.engine.state.index[catalog.Tops])
	assert.Equal(t, int64(8), h.displayedID(catalog.Tops))
}

func TestGenerateRandomAnchorPrefersBottoms(t *testing.T) {
	h := newHarness(t, g(1, catalog.Tops), g(2, catalog.Bottoms), g(3, catalog.Bottoms))
	h.engine.opts.Intn = func(n int) int { return n - 1 }

	require.Equal(t, OutcomeGenerated, h.engine.Generate(context.Background()))
	assert.Equal(t, int64(3), h.displayedID(catalog.Bottoms))
	assert.Nil(t, h.engine.state.slots[catalog.Tops])

	require.Len(t, h.stylist.contexts, 1)
	require.NotNil(t, h.stylist.contexts[0].Anchor)
	assert.Equal(t, catalog.Bottoms, h.stylist.contexts[0].Anchor.Category)
}

func TestGenerateRandomAnchorFallsBackToTops(t *testing.T) {
	h := newHarness(t, g(1, catalog.Footwear), g(2, catalog.Tops))

	require.Equal(t, OutcomeGenerated, h.engine.Generate(context.Background()))
	assert.Equal(t, int64(2), h.displayedID(catalog.Tops))
	assert.Len(t, h.engine.state.candidates[catalog.Tops], 1)
}

func TestGenerateNoAnchor(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, OutcomeNoAnchor, h.engine.Generate(context.Background()))
	for _, slot := range catalog.Slots() {
		assert.Nil(t, h.engine.state.slots[slot])
	}
	assert.Zero(t, h.stylist.calls)
	assert.False(t, h.engine.Loading())

	h2 := newHarness(t, g(1, catalog.Footwear), g(2, catalog.Accessories))
	assert.Equal(t, OutcomeNoAnchor, h2.engine.Generate(context.Background()))
}

func TestGenerateEmptySearchKeepsSlot(t *testing.T) {
	h := newHarness(t, g(1, catalog.Bottoms))
	h.place(catalog.Bottoms, 0, g(1, catalog.Bottoms))
	h.place(catalog.Outerwear, 1, g(50, catalog.Outerwear), g(51, catalog.Outerwear))
	before := h.engine.state.clone()
	h.stylist.out = map[catalog.Category]ai.Suggestion{catalog.Outerwear: {SubCategory: "Parka"}}

	require.Equal(t, OutcomeGenerated, h.engine.Generate(context.Background()))
	assert.Same(t, before.slots[catalog.Outerwear], h.engine.state.slots[catalog.Outerwear])
	assert.Equal(t, before.candidates[catalog.Outerwear], h.engine.state.candidates[catalog.Outerwear])
	assert.Equal(t, 1, h.engine.state.index[catalog.Outerwear])
}

func TestGeneratePerSlotFailuresAreAbsorbed(t *testing.T) {
	h := newHarness(t, g(1, catalog.Bottoms))
	h.place(catalog.Bottoms, 0, g(1, catalog.Bottoms))
	h.place(catalog.Tops, 0, g(5, catalog.Tops))
	h.stylist.out = map[catalog.Category]ai.Suggestion{catalog.Tops: {SubCategory: "Polo"}}
	h.embed.err = errors.New("embedding quota")

	require.Equal(t, OutcomeGenerated, h.engine.Generate(context.Background()))
	assert.Equal(t, int64(5), h.displayedID(catalog.Tops))
	assert.Equal(t, int64(1), h.displayedID(catalog.Bottoms))

	h.embed.err = nil
	h.store.searchErr = errors.New("db down")
	require.Equal(t, OutcomeGenerated, h.engine.Generate(context.Background()))
	assert.Equal(t, int64(5), h.displayedID(catalog.Tops))
}

func TestGenerateStylistFailureChangesNothing(t *testing.T) {
	h := newHarness(t, g(1, catalog.Bottoms), g(2, catalog.Bottoms))
	h.stylist.err = errors.New("503")

	assert.Equal(t, OutcomeFailed, h.engine.Generate(context.Background()))
	for _, slot := range catalog.Slots() {
		assert.Nil(t, h.engine.state.slots[slot])
		assert.Empty(t, h.engine.state.candidates[slot])
	}
	assert.False(t, h.engine.Loading())
}

func TestGenerateListFailureAborts(t *testing.T) {
	h := newHarness(t)
	h.store.listErr = errors.New("db down")
	assert.Equal(t, OutcomeFailed, h.engine.Generate(context.Background()))
	assert.Zero(t, h.stylist.calls)
}

func TestGenerateAnchorPeersFailureKeepsAnchor(t *testing.T) {
	h := newHarness(t)
	h.place(catalog.Bottoms, 0, g(1, catalog.Bottoms))
	h.store.listErr = errors.New("db down")

	require.Equal(t, OutcomeGenerated, h.engine.Generate(context.Background()))
	assert.Equal(t, int64(1), h.displayedID(catalog.Bottoms))
	assert.Len(t, h.engine.state.candidates[catalog.Bottoms], 1)
}

func TestGenerateBusy(t *testing.T) {
	h := newHarness(t, g(1, catalog.Bottoms))
	h.engine.busy.Store(true)
	assert.Equal(t, OutcomeBusy, h.engine.Generate(context.Background()))
	assert.False(t, h.engine.Confirm(context.Background()))
	assert.Zero(t, h.stylist.calls)
	assert.True(t, h.engine.Snapshot().Loading)
}

func TestWeatherCachedOnSuccess(t *testing.T) {
	h := newHarness(t, g(1, catalog.Bottoms))
	ctx := context.Background()

	h.engine.Generate(ctx)
	h.engine.Generate(ctx)
	assert.Equal(t, 1, h.weather.calls)
	assert.Equal(t, []string{"Clear sky, 68°F", "Clear sky, 68°F"}, h.stylist.weathers)
	assert.Equal(t, "Clear sky, 68°F", h.engine.Snapshot().Weather)

	h.engine.ResetWeather()
	h.engine.Generate(ctx)
	assert.Equal(t, 2, h.weather.calls)
}

func TestWeatherFailureUsesDefaultAndRetries(t *testing.T) {
	h := newHarness(t, g(1, catalog.Bottoms))
	h.weather.err = errors.New("no location")
	ctx := context.Background()

	h.engine.Generate(ctx)
	h.engine.Generate(ctx)
	assert.Equal(t, 2, h.weather.calls)
	assert.Equal(t, []string{DefaultWeather, DefaultWeather}, h.stylist.weathers)
	assert.Empty(t, h.engine.Snapshot().Weather)
}

func TestConfirmRoundTrip(t *testing.T) {
	a := g(1, catalog.Tops)
	a.WearCount, a.MaxWears = 2, intp(3)
	b := g(2, catalog.Bottoms)
	h := newHarness(t, a, b)
	h.place(catalog.Tops, 0, a)
	h.place(catalog.Bottoms, 0, b)
	_, _ = h.engine.ToggleLock(catalog.Tops)
	_, _ = h.engine.ToggleLock(catalog.Footwear)

	require.True(t, h.engine.Confirm(context.Background()))

	gotA, gotB := h.store.garment(1), h.store.garment(2)
	assert.Equal(t, 3, gotA.WearCount)
	assert.False(t, gotA.IsClean)
	assert.Equal(t, 1, gotB.WearCount)
	assert.True(t, gotB.IsClean)

	require.Len(t, h.store.records, 1)
	assert.Equal(t, []int64{1, 2}, h.store.records[0])
	assert.Equal(t, "Outfit for 3/14/2026", h.store.labels[0])
	for _, slot := range catalog.Slots() {
		assert.False(t, h.engine.state.locked[slot], "slot %s", slot)
	}
	assert.Equal(t, int64(1), h.displayedID(catalog.Tops), "slots stay displayed")
}

func TestConfirmFailureKeepsState(t *testing.T) {
	a, b := g(1, catalog.Tops), g(2, catalog.Bottoms)
	h := newHarness(t, a, b)
	h.place(catalog.Tops, 0, a)
	h.place(catalog.Bottoms, 0, b)
	_, _ = h.engine.ToggleLock(catalog.Tops)
	h.store.wornErr = map[int64]error{2: errors.New("constraint")}

	assert.False(t, h.engine.Confirm(context.Background()))
	assert.True(t, h.engine.state.locked[catalog.Tops])
	assert.Empty(t, h.store.records, "history is written only after every wear mark")
	assert.False(t, h.engine.Loading())
}

func TestConfirmHistoryFailure(t *testing.T) {
	a := g(1, catalog.Tops)
	h := newHarness(t, a)
	h.place(catalog.Tops, 0, a)
	_, _ = h.engine.ToggleLock(catalog.Tops)
	h.store.appendErr = errors.New("disk full")

	assert.False(t, h.engine.Confirm(context.Background()))
	assert.True(t, h.engine.state.locked[catalog.Tops])
}

func TestConfirmTransactional(t *testing.T) {
	a, b := g(1, catalog.Tops), g(2, catalog.Bottoms)
	fs := &fakeStore{garments: []model.Garment{a, b}, wornErr: map[int64]error{2: errors.New("constraint")}}
	ts := &txStore{fakeStore: fs}
	e := NewEngine(1, ts, &fakeStylist{}, &fakeEmbedder{}, nil, Options{}, nop())
	require.NoError(t, e.SetSlot(catalog.Tops, &a))
	require.NoError(t, e.SetSlot(catalog.Bottoms, &b))

	assert.False(t, e.Confirm(context.Background()))
	assert.Equal(t, 1, ts.txCalls)
	assert.Equal(t, 0, fs.garment(1).WearCount, "first wear mark rolled back")

	fs.wornErr = nil
	assert.True(t, e.Confirm(context.Background()))
	assert.Equal(t, 1, fs.garment(1).WearCount)
	assert.Equal(t, 1, fs.garment(2).WearCount)
	assert.Len(t, fs.records, 1)
}

func TestConfirmEmptyOutfit(t *testing.T) {
	h := newHarness(t)
	_, _ = h.engine.ToggleLock(catalog.Headwear)
	require.True(t, h.engine.Confirm(context.Background()))
	require.Len(t, h.store.records, 1)
	assert.Empty(t, h.store.records[0])
	assert.False(t, h.engine.state.locked[catalog.Headwear])
}

func TestSetSlot(t *testing.T) {
	h := newHarness(t)
	top := g(4, catalog.Tops)

	require.NoError(t, h.engine.SetSlot(catalog.Tops, &top))
	assert.Equal(t, int64(4), h.displayedID(catalog.Tops))
	assertDisplayedInvariant(t, h.engine)

	shoe := g(5, catalog.Footwear)
	assert.ErrorIs(t, h.engine.SetSlot(catalog.Tops, &shoe), ErrWrongCategory)

	_, _ = h.engine.ToggleLock(catalog.Tops)
	assert.ErrorIs(t, h.engine.SetSlot(catalog.Tops, nil), ErrSlotLocked)
	_, _ = h.engine.ToggleLock(catalog.Tops)

	require.NoError(t, h.engine.SetSlot(catalog.Tops, nil))
	assert.Nil(t, h.engine.state.slots[catalog.Tops])
	assert.Empty(t, h.engine.state.candidates[catalog.Tops])
}

func TestSnapshotIsACopy(t *testing.T) {
	h := newHarness(t)
	h.place(catalog.Bottoms, 0, g(1, catalog.Bottoms), g(2, catalog.Bottoms))
	_, _ = h.engine.ToggleLock(catalog.Footwear)

	snap := h.engine.Snapshot()
	require.Len(t, snap.Slots, 5)
	st := snap.Slots[catalog.Bottoms]
	require.NotNil(t, st.Item)
	assert.Equal(t, 2, st.Candidates)
	assert.True(t, snap.CanCycle(catalog.Bottoms))
	assert.False(t, snap.CanCycle(catalog.Footwear))
	assert.True(t, snap.Slots[catalog.Footwear].Locked)

	st.Item.WearCount = 99
	assert.Zero(t, h.engine.state.slots[catalog.Bottoms].WearCount)

	cands, err := h.engine.Candidates(catalog.Bottoms)
	require.NoError(t, err)
	assert.Len(t, cands, 2)
}

func TestGenerateCommitSkipsSlotLockedMidPass(t *testing.T) {
	h := newHarness(t, g(1, catalog.Bottoms))
	h.place(catalog.Tops, 0, g(5, catalog.Tops))
	h.store.results[catalog.Tops] = []model.Garment{g(6, catalog.Tops)}

	blocking := &lockingStylist{
		fakeStylist: fakeStylist{out: map[catalog.Category]ai.Suggestion{catalog.Tops: {SubCategory: "Polo"}}},
		onCall:      func() { _, _ = h.engine.ToggleLock(catalog.Tops) },
	}
	h.engine.stylist = blocking

	require.Equal(t, OutcomeGenerated, h.engine.Generate(context.Background()))
	assert.Equal(t, int64(5), h.displayedID(catalog.Tops))
}

type lockingStylist struct {
	fakeStylist
	onCall func()
}

func (l *lockingStylist) SuggestOutfit(ctx context.Context, sc ai.StyleContext, weather string) (map[catalog.Category]ai.Suggestion, error) {
	l.onCall()
	return l.fakeStylist.SuggestOutfit(ctx, sc, weather)
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("PREV")
	require.NoError(t, err)
	assert.Equal(t, Prev, d)
	d, err = ParseDirection("next")
	require.NoError(t, err)
	assert.Equal(t, Next, d)
	_, err = ParseDirection("sideways")
	assert.Error(t, err)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "generated", OutcomeGenerated.String())
	assert.Equal(t, "no_anchor", OutcomeNoAnchor.String())
	assert.Equal(t, "busy", OutcomeBusy.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
}
