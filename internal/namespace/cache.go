package namespace

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrUpstream marks a failure of the flat listing source.
var ErrUpstream = errors.New("listing source unavailable")

// Source supplies the authoritative flat listing.
type Source interface {
	List(ctx context.Context) ([]LeafObject, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]LeafObject, error)

// List calls f(ctx).
func (f SourceFunc) List(ctx context.Context) ([]LeafObject, error) { return f(ctx) }

// Policy decides when a tree is rebuilt.
type Policy int

const (
	// PolicyPerRequest builds a fresh tree on every call and shares nothing.
	PolicyPerRequest Policy = iota
	// PolicySession keeps the last tree until it is invalidated or expires.
	PolicySession
)

// ParsePolicy maps a config string to a Policy. Unknown values select
// PolicyPerRequest.
func ParsePolicy(s string) Policy {
	switch s {
	case "session":
		return PolicySession
	default:
		return PolicyPerRequest
	}
}

func (p Policy) String() string {
	if p == PolicySession {
		return "session"
	}
	return "request"
}

// BuildHook is called after every successful build.
type BuildHook func(d time.Duration, stats Stats)

// CacheOptions tunes a Cache.
type CacheOptions struct {
	Policy Policy
	// TTL bounds how long a session tree is reused. Zero means until invalidated.
	TTL time.Duration
	// BuildTimeout bounds a shared session build. Zero means no bound
	// beyond the store client's own timeouts.
	BuildTimeout time.Duration
	OnBuild      BuildHook
}

// Cache governs whether a tree is rebuilt or reused.
//
// Under PolicySession refreshes for the same generation are coalesced, and a
// refresh started before a later one can never replace the later result.
// A failed refresh leaves the installed tree in place.
type Cache struct {
	src  Source
	opts CacheOptions
	now  func() time.Time

	mu        sync.Mutex
	tree      *DirectoryNode
	builtAt   time.Time
	gen       uint64 // bumped by Invalidate
	installed uint64 // generation of the installed tree
	valid     bool

	group singleflight.Group
}

// NewCache returns a Cache reading from src.
func NewCache(src Source, opts CacheOptions) *Cache {
	return &Cache{src: src, opts: opts, now: time.Now}
}

// Policy returns the cache's refresh policy.
func (c *Cache) Policy() Policy { return c.opts.Policy }

// Tree returns a tree reflecting the listing, rebuilding it when the policy
// requires.
func (c *Cache) Tree(ctx context.Context) (*DirectoryNode, error) {
	if c.opts.Policy == PolicyPerRequest {
		return c.build(ctx)
	}

	c.mu.Lock()
	if c.valid && !c.expired() {
		tree := c.tree
		c.mu.Unlock()
		return tree, nil
	}
	c.mu.Unlock()

	return c.Refresh(ctx)
}

// Refresh rebuilds the tree now. Concurrent callers of the same generation
// share one listing fetch. The shared fetch outlives any single caller's
// cancellation; a cancelled caller stops waiting and gets its own ctx error.
func (c *Cache) Refresh(ctx context.Context) (*DirectoryNode, error) {
	if c.opts.Policy == PolicyPerRequest {
		return c.build(ctx)
	}

	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(strconv.FormatUint(gen, 10), func() (interface{}, error) {
		buildCtx := shared
		if c.opts.BuildTimeout > 0 {
			var cancel context.CancelFunc
			buildCtx, cancel = context.WithTimeout(shared, c.opts.BuildTimeout)
			defer cancel()
		}

		tree, err := c.build(buildCtx)
		if err != nil {
			return nil, err
		}
		c.install(gen, tree)
		return tree, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrUpstream, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*DirectoryNode), nil
	}
}

// Invalidate marks the installed tree stale so the next Tree call rebuilds.
// The stale tree stays available through Last.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.valid = false
}

// Last returns the most recently installed tree, stale or not.
func (c *Cache) Last() (*DirectoryNode, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tree, c.tree != nil
}

func (c *Cache) install(gen uint64, tree *DirectoryNode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tree != nil && gen < c.installed {
		return
	}
	c.tree = tree
	c.installed = gen
	c.builtAt = c.now()
	c.valid = gen == c.gen
}

func (c *Cache) expired() bool {
	return c.opts.TTL > 0 && c.now().Sub(c.builtAt) > c.opts.TTL
}

func (c *Cache) build(ctx context.Context) (*DirectoryNode, error) {
	start := c.now()
	listing, err := c.src.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	tree, stats := BuildWithStats(listing)
	if c.opts.OnBuild != nil {
		c.opts.OnBuild(c.now().Sub(start), stats)
	}
	return tree, nil
}
