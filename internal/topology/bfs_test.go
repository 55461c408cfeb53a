package topology

import (
	"errors"
	"testing"
	"time"
)

func lineGraph(dpids ...uint64) *Graph {
	g := newGraph()
	now := time.Now()
	for i := 0; i+1 < len(dpids); i++ {
		g.refreshLink(dpids[i], dpids[i+1], now)
	}
	return g
}

func TestBFS_SameNode(t *testing.T) {
	g := newGraph()
	g.addNode(7)

	path, err := NewBFSRouter().Route(g, 7, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(path) != 1 || path[0] != 7 {
		t.Errorf("path = %v, want [7]", path)
	}
}

func TestBFS_Line(t *testing.T) {
	g := lineGraph(5, 4, 1, 3, 2)

	path, err := NewBFSRouter().Route(g, 5, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []uint64{5, 4, 1, 3, 2}
	if len(path) != len(want) {
		t.Fatalf("path = %v, want %v", path, want)
	}
	for i := range want {
		if path[i] != want[i] {
			t.Fatalf("path = %v, want %v", path, want)
		}
	}
}

func TestBFS_NoPath(t *testing.T) {
	g := lineGraph(1, 2)
	g.addNode(9)

	_, err := NewBFSRouter().Route(g, 1, 9)
	if !errors.Is(err, ErrNoPath) {
		t.Errorf("err = %v, want ErrNoPath", err)
	}
}

func TestBFS_UnknownNode(t *testing.T) {
	g := lineGraph(1, 2)

	if _, err := NewBFSRouter().Route(g, 1, 99); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("err = %v, want ErrNodeNotFound", err)
	}
	if _, err := NewBFSRouter().Route(g, 99, 1); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("err = %v, want ErrNodeNotFound", err)
	}
}

// With two equal-length paths the tie breaks by link insertion order, so
// repeated queries against the same graph return the same path.
func TestBFS_DeterministicTieBreak(t *testing.T) {
	g := newGraph()
	now := time.Now()
	// Diamond: 1-2-4 and 1-3-4, with the 1-2 link inserted first.
	g.refreshLink(1, 2, now)
	g.refreshLink(1, 3, now)
	g.refreshLink(2, 4, now)
	g.refreshLink(3, 4, now)

	for i := 0; i < 10; i++ {
		path, err := NewBFSRouter().Route(g, 1, 4)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(path) != 3 || path[1] != 2 {
			t.Fatalf("path = %v, want [1 2 4] every time", path)
		}
	}
}

func TestBFS_AfterLinkRemoval(t *testing.T) {
	g := lineGraph(5, 4, 1, 3, 2)
	g.deleteLink(1, 3)

	_, err := NewBFSRouter().Route(g, 5, 2)
	if !errors.Is(err, ErrNoPath) {
		t.Errorf("err = %v, want ErrNoPath after cutting the line", err)
	}
}
