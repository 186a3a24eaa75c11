package namespace

import (
	"encoding/json"
	"math/rand"
	"reflect"
	"testing"
	"time"
)

func leaves(ids ...string) []LeafObject {
	out := make([]LeafObject, 0, len(ids))
	for _, id := range ids {
		out = append(out, LeafObject{ID: id})
	}
	return out
}

func sample() []LeafObject {
	return leaves(
		"themes/akurai/logo.webp",
		"themes/akurai/bg.png",
		"themes/foo/icon.webp",
		"readme.txt",
	)
}

// shape renders a tree as path -> sorted object ids, for structural comparison.
func shape(root *DirectoryNode) map[string][]string {
	out := make(map[string][]string)
	root.Walk(func(n *DirectoryNode, _ int) bool {
		ids := []string{}
		for _, o := range n.Objects() {
			ids = append(ids, o.ID)
		}
		out[n.Path] = ids
		return true
	})
	return out
}

func TestBuildCreatesImpliedDirectories(t *testing.T) {
	root := Build(leaves("a/b/c.png"))

	a, ok := root.Child("a")
	if !ok {
		t.Fatal("directory a missing")
	}
	if a.Path != "a" || a.Name != "a" {
		t.Errorf("a = {%q %q}", a.Name, a.Path)
	}
	b, ok := a.Child("b")
	if !ok {
		t.Fatal("directory a/b missing")
	}
	if b.Path != "a/b" {
		t.Errorf("b.Path = %q, want a/b", b.Path)
	}
	objs := b.Objects()
	if len(objs) != 1 || objs[0].Filename != "c.png" {
		t.Errorf("a/b objects = %+v", objs)
	}
	if root.ObjectCount() != 0 || a.ObjectCount() != 0 {
		t.Error("object attached to more than one node")
	}
}

func TestBuildRootLevelKey(t *testing.T) {
	root := Build(leaves("logo.webp"))
	if root.DirectoryCount() != 0 {
		t.Errorf("DirectoryCount = %d, want 0", root.DirectoryCount())
	}
	if objs := root.Objects(); len(objs) != 1 || objs[0].ID != "logo.webp" {
		t.Errorf("root objects = %+v", objs)
	}
}

func TestBuildSkipsMalformed(t *testing.T) {
	root, stats := BuildWithStats(leaves(
		"", "/lead.png", "trail/", "a//b.png", "./x.png", "a/../y.png", "ok/fine.png",
	))
	if stats.Skipped != 6 {
		t.Errorf("Skipped = %d, want 6", stats.Skipped)
	}
	if stats.Objects != 1 || stats.Directories != 1 {
		t.Errorf("stats = %+v", stats)
	}
	got := shape(root)
	want := map[string][]string{"": {}, "ok": {"ok/fine.png"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("shape = %v, want %v", got, want)
	}
}

func TestBuildDuplicateIDLastWins(t *testing.T) {
	first := int64(1)
	second := int64(2)
	root, stats := BuildWithStats([]LeafObject{
		{ID: "a/x.png", SizeBytes: &first},
		{ID: "a/x.png", SizeBytes: &second},
	})
	if stats.Objects != 1 {
		t.Errorf("Objects = %d, want 1", stats.Objects)
	}
	a, _ := root.Child("a")
	objs := a.Objects()
	if len(objs) != 1 {
		t.Fatalf("len(objects) = %d, want 1", len(objs))
	}
	if *objs[0].SizeBytes != 2 {
		t.Errorf("SizeBytes = %d, want 2", *objs[0].SizeBytes)
	}
}

func TestBuildDoesNotMutateInput(t *testing.T) {
	in := []LeafObject{{ID: "a/b.png", Filename: "wrong"}}
	Build(in)
	if in[0].Filename != "wrong" {
		t.Errorf("input mutated: %+v", in[0])
	}
}

func TestBuildOrderIndependent(t *testing.T) {
	listing := leaves(
		"themes/akurai/logo.webp", "themes/akurai/bg.png", "themes/foo/icon.webp",
		"readme.txt", "a/b/c/d.png", "a/b/e.png", "a/f.png", "z.png",
	)
	want := shape(Build(listing))

	r := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		perm := make([]LeafObject, len(listing))
		for j, k := range r.Perm(len(listing)) {
			perm[j] = listing[k]
		}
		if got := shape(Build(perm)); !reflect.DeepEqual(got, want) {
			t.Fatalf("permutation %d: shape = %v, want %v", i, got, want)
		}
	}
}

func TestEveryLeafReachableExactlyOnce(t *testing.T) {
	listing := sample()
	root := Build(listing)
	for _, obj := range listing {
		l, err := Resolve(root, Parent(obj.ID))
		if err != nil {
			t.Fatalf("Resolve(%q): %v", Parent(obj.ID), err)
		}
		n := 0
		for _, o := range l.Objects {
			if o.ID == obj.ID {
				n++
			}
		}
		if n != 1 {
			t.Errorf("%s appears %d times in its parent", obj.ID, n)
		}
	}
}

func TestFlatten(t *testing.T) {
	root := Build(sample())
	if got := len(root.Flatten()); got != 4 {
		t.Errorf("len(Flatten) = %d, want 4", got)
	}
}

func TestJSONRoundTripRebuilds(t *testing.T) {
	size := int64(42)
	when := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
	listing := sample()
	listing[0].SizeBytes = &size
	listing[0].UploadedAt = when

	data, err := json.Marshal(Build(listing))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded DirectoryNode
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(shape(&decoded), shape(Build(listing))) {
		t.Errorf("decoded shape = %v", shape(&decoded))
	}

	l, err := Resolve(&decoded, "themes/akurai")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	var logo LeafObject
	for _, o := range l.Objects {
		if o.Filename == "logo.webp" {
			logo = o
		}
	}
	if logo.SizeBytes == nil || *logo.SizeBytes != 42 || !logo.UploadedAt.Equal(when) {
		t.Errorf("metadata lost: %+v", logo)
	}
}

func TestUnmarshalIgnoresForgedPaths(t *testing.T) {
	raw := `{"name":"","path":"","directories":[{"name":"x","path":"elsewhere","directories":[],
		"objects":[{"id":"real/a.png","filename":"zzz"}]}],"objects":[]}`
	var root DirectoryNode
	if err := json.Unmarshal([]byte(raw), &root); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, ok := root.Child("x"); ok {
		t.Error("forged directory survived decoding")
	}
	l, err := Resolve(&root, "real")
	if err != nil {
		t.Fatalf("Resolve(real): %v", err)
	}
	if len(l.Objects) != 1 || l.Objects[0].Filename != "a.png" {
		t.Errorf("objects = %+v", l.Objects)
	}
}
