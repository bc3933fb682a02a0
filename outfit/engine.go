package outfit

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kasuganosora/magicwardrobe/ai"
	"github.com/kasuganosora/magicwardrobe/catalog"
	"github.com/kasuganosora/magicwardrobe/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultTopK        = 5
	DefaultWeather     = "Mild, 70°F"
	DefaultLabelLayout = "1/2/2006"
)

// Options tunes an Engine. Zero values fall back to the defaults above.
type Options struct {
	TopK           int
	DefaultWeather string
	LabelLayout    string
	Now            func() time.Time
	Intn           func(n int) int // random source for anchor selection
}

func (o Options) withDefaults() Options {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.DefaultWeather == "" {
		o.DefaultWeather = DefaultWeather
	}
	if o.LabelLayout == "" {
		o.LabelLayout = DefaultLabelLayout
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Intn == nil {
		o.Intn = rand.IntN
	}
	return o
}

// Engine owns one account's outfit session: the displayed garment, lock,
// ranked candidates and cycling index of each slot.
//
// Generate and Confirm are single-flight: a call made while either is
// running returns OutcomeBusy / false immediately. All state changes of a
// generation pass are committed together under mu, so readers never see a
// partially updated outfit.
type Engine struct {
	accountID int64
	store     Store
	stylist   ai.Stylist
	embedder  ai.Embedder
	weather   WeatherSource
	opts      Options
	logger    *zap.Logger

	busy     atomic.Bool
	lastUsed atomic.Int64 // unix nanos

	mu          sync.Mutex
	state       session
	weatherText string
}

// NewEngine creates an Engine with empty slots. weather may be nil, in
// which case the default weather phrase is always used.
func NewEngine(accountID int64, store Store, stylist ai.Stylist, embedder ai.Embedder,
	weather WeatherSource, opts Options, logger *zap.Logger) *Engine {
	e := &Engine{
		accountID: accountID,
		store:     store,
		stylist:   stylist,
		embedder:  embedder,
		weather:   weather,
		opts:      opts.withDefaults(),
		logger:    logger.With(zap.Int64("account_id", accountID)),
		state:     newSession(),
	}
	e.touch()
	return e
}

func (e *Engine) touch() { e.lastUsed.Store(e.opts.Now().UnixNano()) }

// LastUsed returns the time of the most recent operation.
func (e *Engine) LastUsed() time.Time { return time.Unix(0, e.lastUsed.Load()) }

// Loading reports whether a generate or confirm is in flight.
func (e *Engine) Loading() bool { return e.busy.Load() }

// Snapshot returns a read-only copy of the current session.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := Snapshot{
		Slots:   make(map[catalog.Category]SlotState, 5),
		Loading: e.busy.Load(),
		Weather: e.weatherText,
	}
	for _, slot := range catalog.Slots() {
		st := SlotState{
			Locked:     e.state.locked[slot],
			Candidates: len(e.state.candidates[slot]),
			Index:      e.state.index[slot],
		}
		if g := e.state.slots[slot]; g != nil {
			cp := *g
			st.Item = &cp
		}
		snap.Slots[slot] = st
	}
	return snap
}

// Candidates returns a copy of the ranked alternatives for slot.
func (e *Engine) Candidates(slot catalog.Category) ([]model.Garment, error) {
	if !catalog.IsSlot(slot) {
		return nil, ErrUnknownSlot
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.Garment, len(e.state.candidates[slot]))
	for i, g := range e.state.candidates[slot] {
		out[i] = *g
	}
	return out, nil
}

// ToggleLock flips the lock of slot and returns the new value. Nothing
// else changes.
func (e *Engine) ToggleLock(slot catalog.Category) (bool, error) {
	if !catalog.IsSlot(slot) {
		return false, ErrUnknownSlot
	}
	e.touch()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.locked[slot] = !e.state.locked[slot]
	return e.state.locked[slot], nil
}

// Cycle steps slot to the next or previous candidate, wrapping in both
// directions. It is a no-op for locked slots and for slots with fewer
// than two candidates.
func (e *Engine) Cycle(slot catalog.Category, dir Direction) error {
	if !catalog.IsSlot(slot) {
		return ErrUnknownSlot
	}
	e.touch()
	e.mu.Lock()
	defer e.mu.Unlock()

	cands := e.state.candidates[slot]
	n := len(cands)
	if n <= 1 || e.state.locked[slot] {
		return nil
	}
	i := e.state.index[slot]
	if dir == Prev {
		i = (i - 1 + n) % n
	} else {
		i = (i + 1) % n
	}
	e.state.index[slot] = i
	e.state.slots[slot] = cands[i]
	return nil
}

// SetSlot places g into slot as its only candidate, or clears the slot
// when g is nil. Locked slots cannot be changed.
func (e *Engine) SetSlot(slot catalog.Category, g *model.Garment) error {
	if !catalog.IsSlot(slot) {
		return ErrUnknownSlot
	}
	if g != nil && g.Category != slot {
		return fmt.Errorf("%w: %s into %s", ErrWrongCategory, g.Category, slot)
	}
	e.touch()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.locked[slot] {
		return ErrSlotLocked
	}
	if g == nil {
		e.state.slots[slot] = nil
		e.state.candidates[slot] = nil
	} else {
		cp := *g
		e.state.slots[slot] = &cp
		e.state.candidates[slot] = []*model.Garment{&cp}
	}
	e.state.index[slot] = 0
	return nil
}

// Generate runs one generation pass: resolve the weather, choose an anchor
// when nothing is locked, ask the stylist for the missing pieces, match
// each suggestion against the wardrobe and commit all slots at once.
//
// Failures of individual slot lookups leave that slot as it was. A failure
// to list the wardrobe or reach the stylist aborts the pass with no change.
func (e *Engine) Generate(ctx context.Context) Outcome {
	if !e.busy.CompareAndSwap(false, true) {
		return OutcomeBusy
	}
	defer e.busy.Store(false)
	e.touch()

	e.mu.Lock()
	work := e.state.clone()
	e.mu.Unlock()

	weather := e.resolveWeather(ctx)

	var anchor *model.Garment
	if !work.anyLocked() {
		anchor = work.slots[catalog.Bottoms]
		if anchor == nil {
			anchor = work.slots[catalog.Tops]
		}
		if anchor == nil {
			all, err := e.store.ListAll(ctx)
			if err != nil {
				e.logger.Error("generate: list wardrobe failed", zap.Error(err))
				return OutcomeFailed
			}
			anchor = e.pickRandom(all, catalog.Bottoms)
			if anchor == nil {
				anchor = e.pickRandom(all, catalog.Tops)
			}
		}
		if anchor == nil {
			e.logger.Info("generate: nothing to build on")
			return OutcomeNoAnchor
		}
		work.slots[anchor.Category] = anchor
	}

	suggestions, err := e.stylist.SuggestOutfit(ctx, styleContext(work, anchor), weather)
	if err != nil {
		e.logger.Error("generate: stylist failed", zap.Error(err))
		return OutcomeFailed
	}

	slots := catalog.Slots()
	results := make([]slotResult, len(slots))
	var g errgroup.Group
	for i, slot := range slots {
		sug, hasSug := suggestions[slot]
		g.Go(func() error {
			results[i] = e.resolveSlot(ctx, slot, work, anchor, sug, hasSug)
			return nil
		})
	}
	_ = g.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()
	for i, slot := range slots {
		r := results[i]
		if !r.changed {
			continue
		}
		if e.state.locked[slot] {
			// locked while the pass was running
			continue
		}
		e.state.slots[slot] = r.item
		e.state.candidates[slot] = r.candidates
		e.state.index[slot] = r.index
	}
	return OutcomeGenerated
}

func (e *Engine) resolveSlot(ctx context.Context, slot catalog.Category, work session,
	anchor *model.Garment, sug ai.Suggestion, hasSug bool) slotResult {
	current := work.slots[slot]

	if anchor != nil && current != nil && current.ID == anchor.ID {
		return e.expandAnchor(ctx, slot, anchor)
	}
	if work.locked[slot] {
		return unchanged()
	}
	if !hasSug {
		return unchanged()
	}

	log := e.logger.With(zap.String("slot", string(slot)))
	vec, err := e.embedder.Embed(ctx, sug.SearchText(slot))
	if err != nil {
		log.Warn("generate: embed suggestion failed", zap.Error(err))
		return unchanged()
	}
	matches, err := e.store.Search(ctx, vec, slot, e.opts.TopK)
	if err != nil {
		log.Warn("generate: search failed", zap.Error(err))
		return unchanged()
	}
	if len(matches) == 0 {
		log.Debug("generate: no match", zap.String("query", sug.SearchText(slot)))
		return unchanged()
	}
	cands := garmentPtrs(matches)
	return slotResult{changed: true, item: cands[0], candidates: cands, index: 0}
}

// expandAnchor makes every garment of the anchor's category a candidate,
// positioned on the anchor.
func (e *Engine) expandAnchor(ctx context.Context, slot catalog.Category, anchor *model.Garment) slotResult {
	single := slotResult{changed: true, item: anchor, candidates: []*model.Garment{anchor}}

	all, err := e.store.ListAll(ctx)
	if err != nil {
		e.logger.Warn("generate: list anchor peers failed",
			zap.String("slot", string(slot)), zap.Error(err))
		return single
	}
	var peers []*model.Garment
	idx := -1
	for i := range all {
		if all[i].Category != slot {
			continue
		}
		if all[i].ID == anchor.ID {
			idx = len(peers)
		}
		peers = append(peers, &all[i])
	}
	if idx < 0 {
		// The anchor vanished from the wardrobe; keep it displayed and first.
		peers = append([]*model.Garment{anchor}, peers...)
		idx = 0
	}
	return slotResult{changed: true, item: peers[idx], candidates: peers, index: idx}
}

func (e *Engine) pickRandom(all []model.Garment, cat catalog.Category) *model.Garment {
	var pool []int
	for i := range all {
		if all[i].Category == cat {
			pool = append(pool, i)
		}
	}
	if len(pool) == 0 {
		return nil
	}
	return &all[pool[e.opts.Intn(len(pool))]]
}

// resolveWeather returns the cached phrase, or looks it up once. Failures
// fall back to the default phrase and are not cached.
func (e *Engine) resolveWeather(ctx context.Context) string {
	e.mu.Lock()
	cached := e.weatherText
	e.mu.Unlock()
	if cached != "" {
		return cached
	}
	if e.weather == nil {
		return e.opts.DefaultWeather
	}
	w, err := e.weather.Resolve(ctx)
	if err != nil || w == "" {
		e.logger.Warn("weather unavailable, using default", zap.Error(err))
		return e.opts.DefaultWeather
	}
	e.mu.Lock()
	e.weatherText = w
	e.mu.Unlock()
	return w
}

// ResetWeather drops the cached weather so the next pass looks it up again.
func (e *Engine) ResetWeather() {
	e.mu.Lock()
	e.weatherText = ""
	e.mu.Unlock()
}

func styleContext(work session, anchor *model.Garment) ai.StyleContext {
	sc := ai.StyleContext{
		Slots:  make(map[catalog.Category]*ai.SlotItem, 5),
		Locked: make(map[catalog.Category]bool, 5),
	}
	for _, slot := range catalog.Slots() {
		sc.Locked[slot] = work.locked[slot]
		if g := work.slots[slot]; g != nil {
			sc.Slots[slot] = slotItem(g)
		}
	}
	if anchor != nil {
		sc.Anchor = slotItem(anchor)
	}
	return sc
}

func slotItem(g *model.Garment) *ai.SlotItem {
	return &ai.SlotItem{Category: g.Category, SubCategory: g.SubCategory, PrimaryColor: g.PrimaryColor}
}

// Confirm marks every displayed garment as worn and records the outfit.
// On success all locks are cleared. On failure the session is untouched
// and false is returned. An empty outfit is recorded with no items.
func (e *Engine) Confirm(ctx context.Context) bool {
	if !e.busy.CompareAndSwap(false, true) {
		return false
	}
	defer e.busy.Store(false)
	e.touch()

	e.mu.Lock()
	var ids []int64
	for _, slot := range catalog.Slots() {
		if g := e.state.slots[slot]; g != nil {
			ids = append(ids, g.ID)
		}
	}
	e.mu.Unlock()

	label := "Outfit for " + e.opts.Now().Format(e.opts.LabelLayout)

	var err error
	if tx, ok := e.store.(TxRunner); ok {
		err = tx.RunInTx(ctx, func(s Store) error { return record(ctx, s, ids, label) })
	} else {
		err = e.recordConcurrently(ctx, ids, label)
	}
	if err != nil {
		e.logger.Error("confirm failed", zap.Int64s("items", ids), zap.Error(err))
		return false
	}

	e.mu.Lock()
	for _, slot := range catalog.Slots() {
		e.state.locked[slot] = false
	}
	e.mu.Unlock()
	e.logger.Info("outfit confirmed", zap.Int64s("items", ids))
	return true
}

// record marks wears one by one then appends history; used inside a
// transaction, where statements share one connection.
func record(ctx context.Context, s Store, ids []int64, label string) error {
	for _, id := range ids {
		if err := s.MarkWorn(ctx, id); err != nil {
			return fmt.Errorf("mark worn %d: %w", id, err)
		}
	}
	return s.Append(ctx, ids, label)
}

// recordConcurrently marks wears in parallel and appends history only
// when all of them succeeded. Earlier wear marks are not rolled back.
func (e *Engine) recordConcurrently(ctx context.Context, ids []int64, label string) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		g.Go(func() error {
			if err := e.store.MarkWorn(gctx, id); err != nil {
				return fmt.Errorf("mark worn %d: %w", id, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return e.store.Append(ctx, ids, label)
}
