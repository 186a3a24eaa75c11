package namespace

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeSource serves a mutable listing and counts fetches.
type fakeSource struct {
	mu      sync.Mutex
	listing []LeafObject
	err     error
	calls   atomic.Int32
}

func (f *fakeSource) List(ctx context.Context) ([]LeafObject, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]LeafObject(nil), f.listing...), nil
}

func (f *fakeSource) set(listing []LeafObject, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listing = listing
	f.err = err
}

func TestCachePerRequestAlwaysFetches(t *testing.T) {
	src := &fakeSource{listing: sample()}
	c := NewCache(src, CacheOptions{Policy: PolicyPerRequest})

	a, err := c.Tree(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Tree(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("per-request policy shared a tree between calls")
	}
	if n := src.calls.Load(); n != 2 {
		t.Errorf("fetches = %d, want 2", n)
	}
	if _, ok := c.Last(); ok {
		t.Error("per-request policy retained a tree")
	}
}

func TestCacheSessionReusesUntilInvalidated(t *testing.T) {
	src := &fakeSource{listing: sample()}
	c := NewCache(src, CacheOptions{Policy: PolicySession})
	ctx := context.Background()

	first, _ := c.Tree(ctx)
	second, _ := c.Tree(ctx)
	if first != second || src.calls.Load() != 1 {
		t.Fatalf("session tree not reused (calls=%d)", src.calls.Load())
	}

	src.set(leaves("themes/akurai/bg.png"), nil)
	c.Invalidate()

	third, err := c.Tree(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if third == first {
		t.Fatal("tree not rebuilt after Invalidate")
	}
	l, err := Resolve(third, "themes/akurai")
	if err != nil {
		t.Fatal(err)
	}
	if got := objectNames(l); len(got) != 1 || got[0] != "bg.png" {
		t.Errorf("objects after rebuild = %v", got)
	}
}

func TestCacheTTL(t *testing.T) {
	src := &fakeSource{listing: sample()}
	c := NewCache(src, CacheOptions{Policy: PolicySession, TTL: time.Minute})
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Tree(context.Background())
	now = now.Add(30 * time.Second)
	c.Tree(context.Background())
	if n := src.calls.Load(); n != 1 {
		t.Fatalf("fetches before expiry = %d, want 1", n)
	}
	now = now.Add(2 * time.Minute)
	c.Tree(context.Background())
	if n := src.calls.Load(); n != 2 {
		t.Errorf("fetches after expiry = %d, want 2", n)
	}
}

func TestCacheFailedRefreshKeepsTree(t *testing.T) {
	src := &fakeSource{listing: sample()}
	c := NewCache(src, CacheOptions{Policy: PolicySession})
	ctx := context.Background()

	good, err := c.Tree(ctx)
	if err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	src.set(nil, boom)
	c.Invalidate()

	_, err = c.Tree(ctx)
	if !errors.Is(err, ErrUpstream) || !errors.Is(err, boom) {
		t.Fatalf("err = %v, want ErrUpstream wrapping boom", err)
	}
	last, ok := c.Last()
	if !ok || last != good {
		t.Error("failed refresh replaced the last good tree")
	}
}

func TestCacheCoalescesConcurrentRefresh(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	src := SourceFunc(func(ctx context.Context) ([]LeafObject, error) {
		calls.Add(1)
		<-release
		return sample(), nil
	})
	c := NewCache(src, CacheOptions{Policy: PolicySession})

	var wg sync.WaitGroup
	trees := make([]*DirectoryNode, 8)
	for i := range trees {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			trees[i], _ = c.Tree(context.Background())
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("fetches = %d, want 1", n)
	}
	for i, tr := range trees {
		if tr != trees[0] {
			t.Errorf("caller %d got a different tree", i)
		}
	}
}

func TestCacheCancelledCallerDoesNotFailOthers(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	src := SourceFunc(func(ctx context.Context) ([]LeafObject, error) {
		calls.Add(1)
		select {
		case <-release:
			return sample(), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	c := NewCache(src, CacheOptions{Policy: PolicySession})

	ctx1, cancel1 := context.WithCancel(context.Background())
	err1 := make(chan error, 1)
	go func() {
		_, err := c.Tree(ctx1)
		err1 <- err
	}()
	for calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	type result struct {
		tree *DirectoryNode
		err  error
	}
	res2 := make(chan result, 1)
	go func() {
		tree, err := c.Tree(context.Background())
		res2 <- result{tree, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel1()
	select {
	case err := <-err1:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("cancelled caller err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting on the shared build")
	}

	close(release)
	r := <-res2
	if r.err != nil {
		t.Fatalf("live caller err = %v", r.err)
	}
	if r.tree == nil {
		t.Fatal("live caller got no tree")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("fetches = %d, want 1", n)
	}
	if _, ok := c.Last(); !ok {
		t.Error("shared build was not installed")
	}
}

func TestCacheBuildTimeout(t *testing.T) {
	src := SourceFunc(func(ctx context.Context) ([]LeafObject, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	c := NewCache(src, CacheOptions{Policy: PolicySession, BuildTimeout: 10 * time.Millisecond})

	_, err := c.Tree(context.Background())
	if !errors.Is(err, ErrUpstream) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want upstream deadline exceeded", err)
	}
}

func TestCacheLatestRefreshWins(t *testing.T) {
	slow := make(chan struct{})
	var n atomic.Int32
	src := SourceFunc(func(ctx context.Context) ([]LeafObject, error) {
		if n.Add(1) == 1 {
			<-slow
			return leaves("old.png"), nil
		}
		return leaves("new.png"), nil
	})
	c := NewCache(src, CacheOptions{Policy: PolicySession})

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Refresh(context.Background())
	}()
	for n.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	c.Invalidate()
	if _, err := c.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	close(slow)
	<-done

	tree, err := c.Tree(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	l, _ := Resolve(tree, "")
	if got := objectNames(l); len(got) != 1 || got[0] != "new.png" {
		t.Errorf("installed tree objects = %v, want [new.png]", got)
	}
	if n.Load() != 2 {
		t.Errorf("fetches = %d, want 2", n.Load())
	}
}

func TestCacheOnBuildHook(t *testing.T) {
	var got Stats
	c := NewCache(&fakeSource{listing: sample()}, CacheOptions{
		OnBuild: func(_ time.Duration, s Stats) { got = s },
	})
	c.Tree(context.Background())
	want := Stats{Directories: 3, Objects: 4}
	if got != want {
		t.Errorf("stats = %+v, want %+v", got, want)
	}
}

func TestParsePolicy(t *testing.T) {
	tests := map[string]Policy{
		"session": PolicySession,
		"shared":  PolicyPerRequest,
		"request": PolicyPerRequest,
		"":        PolicyPerRequest,
		"bogus":   PolicyPerRequest,
	}
	for in, want := range tests {
		if got := ParsePolicy(in); got != want {
			t.Errorf("ParsePolicy(%q) = %v, want %v", in, got, want)
		}
	}
}
