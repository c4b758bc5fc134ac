package models

import "testing"

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		" New ":    LevelNew,
		"approved": LevelApproved,
		"TRASHED":  LevelTrashed,
		"deleted":  LevelDeleted,
		"-1":       LevelTrashed,
		"1":        LevelApproved,
	}
	for raw, want := range cases {
		got, err := ParseLevel(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if got != want {
			t.Fatalf("parse %q: expected %v, got %v", raw, want, got)
		}
	}

	for _, raw := range []string{"", "archived", "7"} {
		if _, err := ParseLevel(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestLevelOrdering(t *testing.T) {
	if !(LevelDeleted < LevelTrashed && LevelTrashed < LevelNew && LevelNew < LevelApproved) {
		t.Fatal("levels must be ordered deleted < trashed < new < approved")
	}
}

func TestLevelTransitions(t *testing.T) {
	allowed := [][2]Level{
		{LevelNew, LevelApproved},
		{LevelNew, LevelTrashed},
		{LevelApproved, LevelTrashed},
		{LevelTrashed, LevelDeleted},
	}
	for _, edge := range allowed {
		if !edge[0].CanTransition(edge[1]) {
			t.Fatalf("expected %v -> %v to be allowed", edge[0], edge[1])
		}
	}

	denied := [][2]Level{
		{LevelApproved, LevelNew},
		{LevelTrashed, LevelApproved},
		{LevelDeleted, LevelNew},
		{LevelDeleted, LevelTrashed},
		{LevelNew, LevelDeleted},
	}
	for _, edge := range denied {
		if edge[0].CanTransition(edge[1]) {
			t.Fatalf("expected %v -> %v to be rejected", edge[0], edge[1])
		}
	}
}

func TestContentTypeForPath(t *testing.T) {
	cases := map[string]string{
		"a/b/photo.JPG":  "image/jpeg",
		"clip.gifv":      "video/mp4",
		"x.webp":         "image/webp",
		"anim.gif":       "image/gif",
		"deep/x.y/z.png": "image/png",
	}
	for name, want := range cases {
		got, ok := ContentTypeForPath(name)
		if !ok || got != want {
			t.Fatalf("%s: expected %q, got %q (ok=%v)", name, want, got, ok)
		}
	}

	for _, name := range []string{"notes.txt", "noext", "archive.tar.gz"} {
		if _, ok := ContentTypeForPath(name); ok {
			t.Fatalf("expected %s to be unrecognized", name)
		}
	}
}

func TestDirOf(t *testing.T) {
	if got := DirOf("a/b/c.jpg"); got != "a/b" {
		t.Fatalf("expected a/b, got %q", got)
	}
	if got := DirOf("c.jpg"); got != RootDir {
		t.Fatalf("expected root dir, got %q", got)
	}
}
