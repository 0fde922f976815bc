package pager

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func openTemp(t *testing.T, cacheSize int) (*Pager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pages.db")
	p, err := Open(path, cacheSize)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { p.Close() })
	return p, path
}

func fill(pg *Page, b byte) {
	for i := range pg {
		pg[i] = b
	}
}

func TestNewPageAssignsSequentialIDs(t *testing.T) {
	p, path := openTemp(t, 8)
	for want := PageID(0); want < 5; want++ {
		id, err := p.NewPage()
		if err != nil {
			t.Fatal(err)
		}
		if id != want {
			t.Fatalf("NewPage = %d, want %d", id, want)
		}
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 5*PageSize {
		t.Fatalf("file size = %d, want %d", info.Size(), 5*PageSize)
	}
	if p.Size() != 5*PageSize {
		t.Fatalf("Size() = %d, want %d", p.Size(), 5*PageSize)
	}
}

func TestNewPageZeroInitialized(t *testing.T) {
	p, _ := openTemp(t, 8)
	id, err := p.NewPage()
	if err != nil {
		t.Fatal(err)
	}
	pg, err := p.GetPage(id)
	if err != nil {
		t.Fatal(err)
	}
	for i, b := range pg {
		if b != 0 {
			t.Fatalf("byte %d = %#x, want 0", i, b)
		}
	}
}

func TestCommitAndGetRoundTrip(t *testing.T) {
	p, _ := openTemp(t, 8)
	id, err := p.NewPage()
	if err != nil {
		t.Fatal(err)
	}

	var pg Page
	fill(&pg, 0xAB)
	if err := p.CommitPage(id, &pg); err != nil {
		t.Fatal(err)
	}

	got, err := p.GetPage(id)
	if err != nil {
		t.Fatal(err)
	}
	if *got != pg {
		t.Fatal("read back differs from committed page")
	}
}

func TestGetPageReturnsIndependentCopies(t *testing.T) {
	p, _ := openTemp(t, 8)
	id, _ := p.NewPage()

	var pg Page
	fill(&pg, 1)
	if err := p.CommitPage(id, &pg); err != nil {
		t.Fatal(err)
	}

	a, _ := p.GetPage(id)
	a[0] = 99 // mutation without commit must stay private

	b, err := p.GetPage(id)
	if err != nil {
		t.Fatal(err)
	}
	if b[0] != 1 {
		t.Fatalf("uncommitted mutation leaked: byte 0 = %d", b[0])
	}
}

func TestPersistAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pages.db")
	p, err := Open(path, 4)
	if err != nil {
		t.Fatal(err)
	}
	id, _ := p.NewPage()
	var pg Page
	fill(&pg, 0x5A)
	if err := p.CommitPage(id, &pg); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}

	p, err = Open(path, 4)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	got, err := p.GetPage(id)
	if err != nil {
		t.Fatal(err)
	}
	if *got != pg {
		t.Fatal("page lost across reopen")
	}
	if p.Size() != PageSize {
		t.Fatalf("Size() = %d after reopen, want %d", p.Size(), PageSize)
	}
}

func TestGetPageBeyondEOF(t *testing.T) {
	p, _ := openTemp(t, 8)
	if _, err := p.GetPage(42); err == nil {
		t.Fatal("read beyond EOF succeeded")
	}
}

func TestOpenRejectsPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ragged.db")
	if err := os.WriteFile(path, make([]byte, 100), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path, 4); !errors.Is(err, ErrBadFileSize) {
		t.Fatalf("open ragged file: %v, want ErrBadFileSize", err)
	}
}

func TestCacheIsWriteThrough(t *testing.T) {
	// A cache of 2 forces evictions; every page must still read back
	// from disk exactly as committed.
	p, _ := openTemp(t, 2)
	const n = 6
	for i := 0; i < n; i++ {
		id, _ := p.NewPage()
		var pg Page
		fill(&pg, byte(i+1))
		if err := p.CommitPage(id, &pg); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < n; i++ {
		got, err := p.GetPage(PageID(i))
		if err != nil {
			t.Fatal(err)
		}
		if got[0] != byte(i+1) || got[PageSize-1] != byte(i+1) {
			t.Fatalf("page %d read back wrong fill %d", i, got[0])
		}
	}
}

func TestSecondOpenIsLockedOut(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("advisory flock is unix-only")
	}
	_, path := openTemp(t, 4)
	if second, err := Open(path, 4); err == nil {
		second.Close()
		t.Fatal("second open of a locked database succeeded")
	}
}
