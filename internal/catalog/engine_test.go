package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/starford/roster/internal/apperr"
	"github.com/starford/roster/internal/models"
	"github.com/starford/roster/internal/overlay"
	"github.com/starford/roster/internal/remote"
	"github.com/starford/roster/internal/storage"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// failingProvider accepts reads but rejects every write.
type failingProvider struct {
	*storage.Memory
}

func (failingProvider) Put(string, []byte) error { return errors.New("disk full") }

// remoteCharacters returns n remote records with ids 1..n named "Hero NN".
func remoteCharacters(n int) []models.Character {
	out := make([]models.Character, n)
	for i := range out {
		out[i] = models.Character{
			ID:   i + 1,
			Name: fmt.Sprintf("Hero %02d", i+1),
			Comics: models.Collection{
				Available: 1,
				Items:     []models.CollectionItem{{Name: fmt.Sprintf("Issue %d", i+1)}},
			},
		}
	}
	return out
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) notify(kind string, id int) {
	r.mu.Lock()
	r.events = append(r.events, fmt.Sprintf("%s:%d", kind, id))
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type fixtureEnv struct {
	engine   *Engine
	store    *overlay.Store
	remote   *remote.Fixture
	provider storage.Provider
	events   *recorder
}

func newEnv(t *testing.T, remoteCount int, provider storage.Provider) *fixtureEnv {
	t.Helper()
	if provider == nil {
		provider = storage.NewMemory()
	}
	store := overlay.Open(provider, quietLogger())
	src := remote.NewFixture(remoteCharacters(remoteCount))
	rec := &recorder{}
	e := New(Deps{
		Overlay:  store,
		Remote:   src,
		Sessions: NewSessions(storage.NewMemory()),
		Logger:   quietLogger(),
		Notify:   rec.notify,
		PageSize: 10,
	})
	return &fixtureEnv{engine: e, store: store, remote: src, provider: provider, events: rec}
}

func ids(cs []models.Character) []int {
	out := make([]int, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestLoadPage_RemoteOnly(t *testing.T) {
	env := newEnv(t, 25, nil)
	s := env.engine.LoadPage(context.Background())

	if s.Error != "" {
		t.Fatalf("Error = %q", s.Error)
	}
	if len(s.Records) != 10 {
		t.Fatalf("len(Records) = %d, want 10", len(s.Records))
	}
	if s.Pagination.Total != 25 || s.Pagination.Count != 10 || !s.Pagination.HasMore() {
		t.Errorf("pagination = %+v", s.Pagination)
	}
	if s.Loading {
		t.Error("Loading should be false after load")
	}
	for _, r := range s.Records {
		if r.Origin != models.OriginRemote {
			t.Errorf("record %d origin = %q", r.ID, r.Origin)
		}
	}
}

func TestLoadPage_OverlayFirstAndShadowsRemote(t *testing.T) {
	env := newEnv(t, 5, nil)
	_ = env.store.Upsert(models.Character{ID: -1, Name: "Local Lad"})
	_ = env.store.Upsert(models.Character{ID: 3, Name: "Hero 03 (edited)"})

	s := env.engine.LoadPage(context.Background())

	want := []int{-1, 3, 1, 2, 4, 5}
	if got := ids(s.Records); !equalInts(got, want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	if s.Records[1].Name != "Hero 03 (edited)" || !s.Records[1].Origin.IsLocal() {
		t.Errorf("overlay copy should win: %+v", s.Records[1])
	}
	if s.Pagination.Total != 5+2 {
		t.Errorf("Total = %d, want 7", s.Pagination.Total)
	}
}

func TestLoadPage_TombstonesSuppressRemote(t *testing.T) {
	env := newEnv(t, 5, nil)
	_ = env.store.Tombstone(2)

	s := env.engine.LoadPage(context.Background())
	for _, r := range s.Records {
		if r.ID == 2 {
			t.Fatal("tombstoned id 2 should not be displayed")
		}
	}
	if len(s.Records) != 4 {
		t.Errorf("len = %d, want 4", len(s.Records))
	}
}

func TestLoadPage_SearchFiltersOverlayByContains(t *testing.T) {
	env := newEnv(t, 12, nil)
	_ = env.store.Upsert(models.Character{ID: -1, Name: "Super Hero Squad"})
	_ = env.store.Upsert(models.Character{ID: -2, Name: "Villain"})

	env.engine.SetSearchTerm("hero 1")
	s := env.engine.LoadPage(context.Background())

	want := []int{10, 11, 12}
	if got := ids(s.Records); !equalInts(got, want) {
		t.Errorf("ids = %v, want %v", got, want)
	}

	env.engine.SetSearchTerm("HERO")
	s = env.engine.LoadPage(context.Background())
	if s.Records[0].ID != -1 {
		t.Errorf("first = %d, want local -1", s.Records[0].ID)
	}
	for _, r := range s.Records {
		if r.ID == -2 {
			t.Error("non-matching local record displayed")
		}
	}
}

func TestLoadPage_DegradedWithLocalRecords(t *testing.T) {
	env := newEnv(t, 5, nil)
	_ = env.store.Upsert(models.Character{ID: -1, Name: "Local Lad"})
	env.remote.Fail(errors.New("down"))

	s := env.engine.LoadPage(context.Background())
	if s.Error != MsgRemoteDegraded {
		t.Errorf("Error = %q, want %q", s.Error, MsgRemoteDegraded)
	}
	if got := ids(s.Records); !equalInts(got, []int{-1}) {
		t.Errorf("ids = %v", got)
	}
	if s.Pagination.Total != 1 || s.Pagination.Count != 1 || s.Pagination.HasMore() {
		t.Errorf("pagination = %+v", s.Pagination)
	}
}

func TestLoadPage_FailsWithoutLocalRecords(t *testing.T) {
	env := newEnv(t, 5, nil)
	env.remote.Fail(errors.New("down"))

	s := env.engine.LoadPage(context.Background())
	if s.Error != MsgLoadFailed {
		t.Errorf("Error = %q, want %q", s.Error, MsgLoadFailed)
	}
	if !s.IsEmpty() || s.Pagination.Total != 0 {
		t.Errorf("state = %+v", s)
	}

	env.remote.Fail(nil)
	s = env.engine.LoadPage(context.Background())
	if s.Error != "" || len(s.Records) != 5 {
		t.Errorf("recovery: error=%q len=%d", s.Error, len(s.Records))
	}
}

func TestLoadMore_AppendsAndStops(t *testing.T) {
	env := newEnv(t, 25, nil)
	ctx := context.Background()
	env.engine.LoadPage(ctx)

	s := env.engine.LoadMore(ctx)
	if len(s.Records) != 20 || s.Query.Offset != 10 {
		t.Fatalf("after 1st more: len=%d offset=%d", len(s.Records), s.Query.Offset)
	}
	s = env.engine.LoadMore(ctx)
	if len(s.Records) != 25 || s.Pagination.HasMore() {
		t.Fatalf("after 2nd more: len=%d pagination=%+v", len(s.Records), s.Pagination)
	}
	s = env.engine.LoadMore(ctx)
	if len(s.Records) != 25 || s.Query.Offset != 20 {
		t.Errorf("load more past end changed state: len=%d offset=%d", len(s.Records), s.Query.Offset)
	}

	seen := map[int]bool{}
	for _, r := range s.Records {
		if seen[r.ID] {
			t.Errorf("duplicate id %d", r.ID)
		}
		seen[r.ID] = true
	}
}

func TestLoadMore_DoesNotRepeatLocalRecords(t *testing.T) {
	env := newEnv(t, 15, nil)
	ctx := context.Background()
	_ = env.store.Upsert(models.Character{ID: -1, Name: "Local Lad"})
	_ = env.store.Upsert(models.Character{ID: 12, Name: "Hero 12 (edited)"})

	env.engine.LoadPage(ctx)
	s := env.engine.LoadMore(ctx)

	count := map[int]int{}
	for _, r := range s.Records {
		count[r.ID]++
	}
	if count[-1] != 1 || count[12] != 1 {
		t.Errorf("local records repeated: %v", count)
	}
	if len(s.Records) != 2+14 {
		t.Errorf("len = %d, want 16", len(s.Records))
	}
	if s.Pagination.HasMore() {
		t.Errorf("HasMore after last page: %+v", s.Pagination)
	}
}

func TestLoadMore_FailureKeepsList(t *testing.T) {
	env := newEnv(t, 25, nil)
	ctx := context.Background()
	env.engine.LoadPage(ctx)
	env.remote.Fail(errors.New("down"))

	s := env.engine.LoadMore(ctx)
	if s.Error != MsgLoadMoreFailed {
		t.Errorf("Error = %q", s.Error)
	}
	if len(s.Records) != 10 || s.Query.Offset != 0 {
		t.Errorf("list changed: len=%d offset=%d", len(s.Records), s.Query.Offset)
	}
}

// gatedSource blocks FetchPage for the search term "slow" until released.
type gatedSource struct {
	*remote.Fixture
	release chan struct{}
	started chan struct{}
}

func (g *gatedSource) FetchPage(ctx context.Context, limit, offset int, term string) (models.Page, error) {
	if term == "slow" {
		close(g.started)
		<-g.release
		return models.Page{Results: []models.Character{{ID: 999, Name: "Slowpoke"}}, Total: 1}, nil
	}
	return g.Fixture.FetchPage(ctx, limit, offset, term)
}

func TestLoadPage_DropsStaleResponse(t *testing.T) {
	src := &gatedSource{
		Fixture: remote.NewFixture(remoteCharacters(3)),
		release: make(chan struct{}),
		started: make(chan struct{}),
	}
	e := New(Deps{
		Overlay:  overlay.Open(storage.NewMemory(), quietLogger()),
		Remote:   src,
		Logger:   quietLogger(),
		PageSize: 10,
	})
	ctx := context.Background()

	e.SetSearchTerm("slow")
	done := make(chan State)
	go func() { done <- e.LoadPage(ctx) }()
	<-src.started

	e.SetSearchTerm("")
	fresh := e.LoadPage(ctx)
	if len(fresh.Records) != 3 {
		t.Fatalf("fresh load len = %d", len(fresh.Records))
	}

	close(src.release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stale load did not return")
	}

	s := e.Snapshot()
	if got := ids(s.Records); !equalInts(got, []int{1, 2, 3}) {
		t.Errorf("stale response applied: ids = %v", got)
	}
	if s.Loading {
		t.Error("Loading stuck true")
	}
}

func TestCreate_AllocatesDescendingLocalIDs(t *testing.T) {
	env := newEnv(t, 5, nil)
	ctx := context.Background()
	env.engine.LoadPage(ctx)

	a, out, err := env.engine.Create(ctx, models.Character{Name: "  Nova  ", Description: "cosmic"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.ID != -1 || a.Name != "Nova" || !a.Origin.IsLocal() || !out.Persisted {
		t.Errorf("first create = %+v, outcome %+v", a, out)
	}
	if a.Comics.Items == nil || a.URLs == nil {
		t.Error("collections should default to empty")
	}
	b, _, _ := env.engine.Create(ctx, models.Character{Name: "Quasar"})
	if b.ID != -2 {
		t.Errorf("second id = %d, want -2", b.ID)
	}

	s := env.engine.Snapshot()
	if got := ids(s.Records[:2]); !equalInts(got, []int{-2, -1}) {
		t.Errorf("prepend order = %v", got)
	}
	if s.Pagination.Total != 7 {
		t.Errorf("Total = %d, want 7", s.Pagination.Total)
	}
	if s.Selected == nil || s.Selected.ID != -2 {
		t.Errorf("Selected = %+v", s.Selected)
	}
	if _, ok := env.store.Get(-1); !ok {
		t.Error("created record not in overlay")
	}
}

func TestCreate_IDBelowExistingOverlay(t *testing.T) {
	env := newEnv(t, 0, nil)
	_ = env.store.Upsert(models.Character{ID: -7, Name: "Old"})

	c, _, err := env.engine.Create(context.Background(), models.Character{Name: "New"})
	if err != nil {
		t.Fatal(err)
	}
	if c.ID != -8 {
		t.Errorf("id = %d, want -8", c.ID)
	}
}

func TestCreate_Validation(t *testing.T) {
	env := newEnv(t, 0, nil)
	long := make([]byte, 201)
	for i := range long {
		long[i] = 'x'
	}

	tests := []struct {
		name  string
		draft models.Character
	}{
		{"blank name", models.Character{Name: "   "}},
		{"long name", models.Character{Name: string(long)}},
		{"bad thumbnail extension", models.Character{Name: "X", Thumbnail: &models.Thumbnail{Path: "http://x/y", Extension: "exe"}}},
		{"missing thumbnail extension", models.Character{Name: "X", Thumbnail: &models.Thumbnail{Path: "http://x/y"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := env.engine.Create(context.Background(), tt.draft)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
	if env.store.Len() != 0 {
		t.Error("invalid drafts must not be stored")
	}
}

func TestCreate_PersistenceFailureIsWarning(t *testing.T) {
	env := newEnv(t, 3, failingProvider{storage.NewMemory()})
	ctx := context.Background()
	env.engine.LoadPage(ctx)

	c, out, err := env.engine.Create(ctx, models.Character{Name: "Nova"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if out.Persisted || out.Warning == "" {
		t.Errorf("outcome = %+v, want warning", out)
	}
	s := env.engine.Snapshot()
	if s.Records[0].ID != c.ID || s.Warning == "" {
		t.Errorf("record should be displayed with warning: %+v", s)
	}
}

func TestUpdate_LocalPersists(t *testing.T) {
	env := newEnv(t, 3, nil)
	ctx := context.Background()
	env.engine.LoadPage(ctx)
	c, _, _ := env.engine.Create(ctx, models.Character{Name: "Nova"})

	c.Name = "Nova Prime"
	c.Comics = models.Collection{}
	got, out, err := env.engine.Update(ctx, c)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !out.Persisted || out.Simulated {
		t.Errorf("outcome = %+v", out)
	}
	stored, _ := env.store.Get(c.ID)
	if stored.Name != "Nova Prime" || got.Name != "Nova Prime" {
		t.Errorf("stored = %+v", stored)
	}
	if stored.Comics.Items == nil {
		t.Error("omitted collection should keep stored value")
	}
}

func TestUpdate_RemoteIsSimulated(t *testing.T) {
	env := newEnv(t, 3, nil)
	ctx := context.Background()
	env.engine.LoadPage(ctx)

	got, out, err := env.engine.Update(ctx, models.Character{ID: 2, Name: "Renamed", Origin: models.OriginRemote})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !out.Simulated || out.Persisted {
		t.Errorf("outcome = %+v", out)
	}
	if got.Origin != models.OriginRemote || len(got.Comics.Items) != 1 {
		t.Errorf("provenance lost: %+v", got)
	}
	if _, ok := env.store.Get(2); ok {
		t.Error("remote edit must not be stored in overlay")
	}
	s := env.engine.Snapshot()
	if s.Records[1].Name != "Renamed" {
		t.Errorf("displayed name = %q", s.Records[1].Name)
	}
}

func TestUpdate_OverlayCopyOfRemoteIsPersisted(t *testing.T) {
	env := newEnv(t, 3, nil)
	ctx := context.Background()
	_ = env.store.Upsert(models.Character{ID: 2, Name: "Hero 02 (edited)"})
	env.engine.LoadPage(ctx)

	_, out, err := env.engine.Update(ctx, models.Character{ID: 2, Name: "Again", Origin: models.OriginRemote})
	if err != nil {
		t.Fatal(err)
	}
	stored, _ := env.store.Get(2)
	if !out.Persisted || stored.Name != "Again" || !stored.Origin.IsLocal() {
		t.Errorf("outcome=%+v stored=%+v", out, stored)
	}
}

func TestUpdate_UnknownID(t *testing.T) {
	env := newEnv(t, 3, nil)
	_, _, err := env.engine.Update(context.Background(), models.Character{ID: 42, Name: "Ghost"})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDelete_LocalRemovesFromOverlay(t *testing.T) {
	env := newEnv(t, 3, nil)
	ctx := context.Background()
	env.engine.LoadPage(ctx)
	c, _, _ := env.engine.Create(ctx, models.Character{Name: "Nova"})

	if _, err := env.engine.Delete(ctx, c.ID); err != nil {
		t.Fatal(err)
	}
	if _, ok := env.store.Get(c.ID); ok {
		t.Error("record still in overlay")
	}
	if len(env.store.Tombstones()) != 0 {
		t.Errorf("local delete created tombstone: %v", env.store.Tombstones())
	}
	s := env.engine.Snapshot()
	if len(s.Records) != 3 || s.Pagination.Total != 3 || s.Selected != nil {
		t.Errorf("state after delete = %+v", s)
	}
}

func TestDelete_RemoteTombstonesAndIsIdempotent(t *testing.T) {
	env := newEnv(t, 3, nil)
	ctx := context.Background()
	env.engine.LoadPage(ctx)

	if _, err := env.engine.Delete(ctx, 2); err != nil {
		t.Fatal(err)
	}
	first := env.store.Tombstones()
	if _, err := env.engine.Delete(ctx, 2); err != nil {
		t.Fatal(err)
	}
	if got := env.store.Tombstones(); !equalInts(got, first) || !equalInts(got, []int{2}) {
		t.Errorf("tombstones = %v, first = %v", got, first)
	}

	s := env.engine.LoadPage(ctx)
	if got := ids(s.Records); !equalInts(got, []int{1, 3}) {
		t.Errorf("ids after reload = %v", got)
	}
	if _, err := env.engine.Get(ctx, 2); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get tombstoned: %v", err)
	}
}

func TestDelete_LocalTwiceLeavesNoTombstone(t *testing.T) {
	env := newEnv(t, 0, nil)
	ctx := context.Background()
	c, _, _ := env.engine.Create(ctx, models.Character{Name: "Nova"})

	_, _ = env.engine.Delete(ctx, c.ID)
	_, _ = env.engine.Delete(ctx, c.ID)
	if len(env.store.Tombstones()) != 0 || env.store.Len() != 0 {
		t.Errorf("overlay changed by second delete: tombstones=%v len=%d", env.store.Tombstones(), env.store.Len())
	}
}

func TestSelect(t *testing.T) {
	env := newEnv(t, 3, nil)
	ctx := context.Background()
	_ = env.store.Upsert(models.Character{ID: -1, Name: "Local Lad"})

	c, err := env.engine.Select(ctx, -1)
	if err != nil || c.Name != "Local Lad" {
		t.Fatalf("Select local: %+v, %v", c, err)
	}
	c, err = env.engine.Select(ctx, 3)
	if err != nil || c.Name != "Hero 03" {
		t.Fatalf("Select remote: %+v, %v", c, err)
	}
	if s := env.engine.Snapshot(); s.Selected == nil || s.Selected.ID != 3 {
		t.Errorf("Selected = %+v", s.Selected)
	}

	env.engine.ClearSelection()
	env.remote.Fail(errors.New("down"))
	if _, err := env.engine.Select(ctx, 2); !errors.Is(err, apperr.ErrRemoteUnavailable) {
		t.Errorf("err = %v", err)
	}
	s := env.engine.Snapshot()
	if s.Selected != nil || s.Error != MsgSelectFailed {
		t.Errorf("state after failed select: selected=%v error=%q", s.Selected, s.Error)
	}
}

func TestComics(t *testing.T) {
	env := newEnv(t, 3, nil)
	ctx := context.Background()
	_ = env.store.Upsert(models.Character{ID: -1, Name: "Local Lad"})

	got, err := env.engine.Comics(ctx, -1, 0)
	if err != nil || len(got) != 0 {
		t.Errorf("local comics = %v, %v", got, err)
	}
	got, err = env.engine.Comics(ctx, 1, 0)
	if err != nil || len(got) != 1 || got[0].Title != "Issue 1" {
		t.Errorf("remote comics = %+v, %v", got, err)
	}
}

func TestNotifications(t *testing.T) {
	env := newEnv(t, 3, nil)
	ctx := context.Background()
	env.engine.LoadPage(ctx)
	c, _, _ := env.engine.Create(ctx, models.Character{Name: "Nova"})
	c.Name = "Nova Prime"
	_, _, _ = env.engine.Update(ctx, c)
	_, _ = env.engine.Delete(ctx, c.ID)

	want := []string{"loaded:0", "created:-1", "updated:-1", "deleted:-1"}
	got := env.events.list()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSimulatedLatencyHonorsContext(t *testing.T) {
	e := New(Deps{
		Overlay:          overlay.Open(storage.NewMemory(), quietLogger()),
		Remote:           remote.NewFixture(nil),
		Logger:           quietLogger(),
		SimulatedLatency: time.Hour,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, _, err := e.Create(ctx, models.Character{Name: "Nova"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestLoadPage_QueryChangeDuringLoadWins(t *testing.T) {
	src := &gatedSource{
		Fixture: remote.NewFixture(remoteCharacters(3)),
		release: make(chan struct{}),
		started: make(chan struct{}),
	}
	e := New(Deps{
		Overlay:  overlay.Open(storage.NewMemory(), quietLogger()),
		Remote:   src,
		Logger:   quietLogger(),
		PageSize: 10,
	})
	ctx := context.Background()

	e.SetSearchTerm("slow")
	done := make(chan State)
	go func() { done <- e.LoadPage(ctx) }()
	<-src.started

	e.SetSearchTerm("Hero 0")
	close(src.release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("load did not return")
	}

	if q := e.Query(); q.SearchTerm != "Hero 0" || q.Offset != 0 {
		t.Fatalf("query = %+v, want search term kept", q)
	}
	s := e.Snapshot()
	for _, r := range s.Records {
		if r.ID == 999 {
			t.Fatal("results for the replaced search term were published")
		}
	}
	if s.Loading {
		t.Error("Loading stuck true after the query changed")
	}

	s = e.LoadPage(ctx)
	if got := ids(s.Records); !equalInts(got, []int{1, 2, 3}) {
		t.Errorf("ids = %v, want [1 2 3]", got)
	}
}

// pagedGate blocks FetchPage for non-zero offsets until released.
type pagedGate struct {
	*remote.Fixture
	release chan struct{}
	started chan struct{}
}

func (g *pagedGate) FetchPage(ctx context.Context, limit, offset int, term string) (models.Page, error) {
	if offset > 0 {
		close(g.started)
		<-g.release
	}
	return g.Fixture.FetchPage(ctx, limit, offset, term)
}

func TestLoadMore_QueryChangeDuringLoadWins(t *testing.T) {
	src := &pagedGate{
		Fixture: remote.NewFixture(remoteCharacters(25)),
		release: make(chan struct{}),
		started: make(chan struct{}),
	}
	e := New(Deps{
		Overlay:  overlay.Open(storage.NewMemory(), quietLogger()),
		Remote:   src,
		Logger:   quietLogger(),
		PageSize: 10,
	})
	ctx := context.Background()
	e.LoadPage(ctx)

	done := make(chan State)
	go func() { done <- e.LoadMore(ctx) }()
	<-src.started

	e.SetSearchTerm("Hero 2")
	close(src.release)
	<-done

	q := e.Query()
	if q.SearchTerm != "Hero 2" || q.Offset != 0 {
		t.Fatalf("query = %+v", q)
	}
	if n := len(e.Snapshot().Records); n != 10 {
		t.Errorf("records = %d, want the first page only", n)
	}
}

func TestDelete_RemoteFromEarlierPage(t *testing.T) {
	env := newEnv(t, 25, nil)
	ctx := context.Background()

	env.engine.LoadPage(ctx)
	env.engine.NextPage()
	s := env.engine.LoadPage(ctx)
	if s.Query.Offset != 10 || s.Records[0].ID != 11 {
		t.Fatalf("page 2 = offset %d first %d", s.Query.Offset, s.Records[0].ID)
	}

	out, err := env.engine.Delete(ctx, 3)
	if err != nil || !out.Persisted {
		t.Fatalf("Delete = %+v, %v", out, err)
	}
	if !env.store.IsTombstoned(3) {
		t.Fatal("id 3 should be tombstoned")
	}
	if n := len(env.engine.Snapshot().Records); n != 10 {
		t.Errorf("page 2 records = %d, want unchanged 10", n)
	}

	env.engine.GoToPage(1)
	s = env.engine.LoadPage(ctx)
	for _, r := range s.Records {
		if r.ID == 3 {
			t.Fatal("deleted id 3 reappeared on page 1")
		}
	}
	if len(s.Records) != 9 {
		t.Errorf("page 1 records = %d, want 9", len(s.Records))
	}
}

// slowProvider blocks Put while armed.
type slowProvider struct {
	*storage.Memory
	entered chan struct{}
	release chan struct{}
}

func (p *slowProvider) Put(key string, value []byte) error {
	if p.entered != nil {
		close(p.entered)
		p.entered = nil
		<-p.release
	}
	return p.Memory.Put(key, value)
}

func TestCreate_ReadersNotBlockedByOverlayWrite(t *testing.T) {
	p := &slowProvider{Memory: storage.NewMemory()}
	env := newEnv(t, 5, p)
	ctx := context.Background()
	env.engine.LoadPage(ctx)

	entered := make(chan struct{})
	p.release = make(chan struct{})
	p.entered = entered

	done := make(chan models.Character)
	go func() {
		c, _, _ := env.engine.Create(ctx, models.Character{Name: "Nova"})
		done <- c
	}()
	<-entered

	read := make(chan State)
	go func() { read <- env.engine.Snapshot() }()
	select {
	case s := <-read:
		if len(s.Records) != 5 {
			t.Errorf("records during write = %d, want 5", len(s.Records))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Snapshot blocked on the overlay write")
	}

	close(p.release)
	c := <-done
	if c.ID != -1 {
		t.Errorf("id = %d, want -1", c.ID)
	}
	if s := env.engine.Snapshot(); s.Records[0].ID != -1 {
		t.Errorf("first record = %d", s.Records[0].ID)
	}
}

func TestCreate_ConcurrentIDsAreUnique(t *testing.T) {
	env := newEnv(t, 0, nil)
	ctx := context.Background()

	const n = 20
	got := make(chan int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, _, err := env.engine.Create(ctx, models.Character{Name: fmt.Sprintf("Local %d", i)})
			if err != nil {
				t.Error(err)
				return
			}
			got <- c.ID
		}()
	}
	wg.Wait()
	close(got)

	seen := map[int]bool{}
	for id := range got {
		if seen[id] || id >= 0 {
			t.Errorf("id %d duplicated or not negative", id)
		}
		seen[id] = true
	}
	if env.store.Len() != n {
		t.Errorf("overlay records = %d, want %d", env.store.Len(), n)
	}
}
