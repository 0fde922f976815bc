package btpage

import (
	"bytes"
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/tinystore-kv/tinystore/dbms/pager"
)

func newLeaf() *pager.Page {
	p := new(pager.Page)
	Init(p, TypeLeaf)
	return p
}

// mustInsert inserts at the sorted position and fails the test when the
// page reports overflow.
func mustInsert(t *testing.T, p *pager.Page, key, value []byte) {
	t.Helper()
	if !InsertItem(p, FindPlace(p, key), key, value) {
		t.Fatalf("insert %q: page full", key)
	}
}

// checkSorted asserts non-decreasing key order, decreasing slot
// offsets, and the free-space accounting invariant.
func checkSorted(t *testing.T, p *pager.Page) {
	t.Helper()
	n := NumItems(p)
	var prevKey []byte
	prevOffs := pager.PageSize + 1
	used := 0
	for i := 0; i < n; i++ {
		k, v := Item(p, i)
		if i > 0 && bytes.Compare(prevKey, k) > 0 {
			t.Fatalf("slot %d: key %q < previous %q", i, k, prevKey)
		}
		offs := Offs(p, i)
		if offs >= prevOffs {
			t.Fatalf("slot %d: offset %d not below previous %d", i, offs, prevOffs)
		}
		used += ItemSize(k, v)
		prevKey, prevOffs = k, offs
	}
	if used+2*n > pager.PageSize-HeaderSize {
		t.Fatalf("page overcommitted: %d item bytes + %d slots", used, n)
	}
	if FreeEnd(p) != pager.PageSize-used {
		t.Fatalf("heap has holes: free end %d, want %d", FreeEnd(p), pager.PageSize-used)
	}
}

func TestInsertItemKeepsOrder(t *testing.T) {
	p := newLeaf()
	for _, k := range []string{"kai", "gabriel", "josh", "hdog123"} {
		mustInsert(t, p, []byte(k), []byte("v-"+k))
	}
	checkSorted(t, p)

	if n := NumItems(p); n != 4 {
		t.Fatalf("NumItems = %d, want 4", n)
	}
	k0, _ := Item(p, 0)
	k3, v3 := Item(p, 3)
	if string(k0) != "gabriel" || string(k3) != "kai" {
		t.Fatalf("unexpected key order: first %q last %q", k0, k3)
	}
	if string(v3) != "v-kai" {
		t.Fatalf("value = %q, want %q", v3, "v-kai")
	}
}

func TestInsertItemAtEnds(t *testing.T) {
	p := newLeaf()
	mustInsert(t, p, []byte("m"), []byte("1"))
	// front
	if !InsertItem(p, 0, []byte("a"), []byte("2")) {
		t.Fatal("front insert failed")
	}
	// back
	if !InsertItem(p, 2, []byte("z"), []byte("3")) {
		t.Fatal("back insert failed")
	}
	checkSorted(t, p)
	for i, want := range []string{"a", "m", "z"} {
		if k, _ := Item(p, i); string(k) != want {
			t.Fatalf("slot %d key = %q, want %q", i, k, want)
		}
	}
}

func TestInsertItemRejectsWhenFull(t *testing.T) {
	p := newLeaf()
	key := make([]byte, 10)
	value := make([]byte, 6)
	il := ItemSize(key, value)
	capacity := (pager.PageSize - HeaderSize) / (il + 2)

	for i := 0; i < capacity; i++ {
		copy(key, fmt.Sprintf("key-%06d", i))
		if !InsertItem(p, i, key, value) {
			t.Fatalf("insert %d rejected before capacity %d", i, capacity)
		}
	}

	before := *p
	copy(key, "key-overfl")
	if InsertItem(p, capacity, key, value) {
		t.Fatal("insert beyond capacity accepted")
	}
	if before != *p {
		t.Fatal("failed insert mutated the page")
	}
	checkSorted(t, p)
}

func TestRemoveItem(t *testing.T) {
	p := newLeaf()
	keys := []string{"aa", "bb", "cc", "dd", "ee"}
	for i, k := range keys {
		mustInsert(t, p, []byte(k), []byte{byte(i)})
	}

	k, v := RemoveItem(p, 2)
	if string(k) != "cc" || !bytes.Equal(v, []byte{2}) {
		t.Fatalf("removed (%q, %v), want (cc, [2])", k, v)
	}
	checkSorted(t, p)

	want := []string{"aa", "bb", "dd", "ee"}
	if NumItems(p) != len(want) {
		t.Fatalf("NumItems = %d, want %d", NumItems(p), len(want))
	}
	for i, wk := range want {
		if k, _ := Item(p, i); string(k) != wk {
			t.Fatalf("slot %d key = %q, want %q", i, k, wk)
		}
	}

	// Remove remaining items from the front; the page must end empty.
	for NumItems(p) > 0 {
		RemoveItem(p, 0)
		checkSorted(t, p)
	}
	if FreeSpace(p) != pager.PageSize-HeaderSize {
		t.Fatalf("free space = %d after emptying, want %d", FreeSpace(p), pager.PageSize-HeaderSize)
	}
}

func TestInsertRemoveRandomRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	p := newLeaf()
	ref := make(map[string]string)

	for op := 0; op < 2000; op++ {
		if rng.Intn(3) > 0 || NumItems(p) == 0 {
			key := []byte(fmt.Sprintf("k%05d", rng.Intn(500)))
			if _, dup := ref[string(key)]; dup {
				continue
			}
			value := make([]byte, rng.Intn(20))
			rng.Read(value)
			if InsertItem(p, FindPlace(p, key), key, value) {
				ref[string(key)] = string(value)
			}
		} else {
			i := rng.Intn(NumItems(p))
			k, _ := RemoveItem(p, i)
			delete(ref, string(k))
		}
		checkSorted(t, p)
	}

	if NumItems(p) != len(ref) {
		t.Fatalf("NumItems = %d, want %d", NumItems(p), len(ref))
	}
	for i := 0; i < NumItems(p); i++ {
		k, v := Item(p, i)
		if want, ok := ref[string(k)]; !ok || want != string(v) {
			t.Fatalf("slot %d (%q, %q) not in reference", i, k, v)
		}
	}
}

func TestFindPlace(t *testing.T) {
	p := newLeaf()
	for _, k := range []string{"bb", "dd", "ff"} {
		mustInsert(t, p, []byte(k), []byte("x"))
	}

	cases := []struct {
		key  string
		want int
	}{
		{"aa", 0},
		{"bb", 0}, // equal key: before the stored one
		{"cc", 1},
		{"dd", 1},
		{"ee", 2},
		{"ff", 2},
		{"zz", 3}, // greater than everything
	}
	for _, c := range cases {
		if got := FindPlace(p, []byte(c.key)); got != c.want {
			t.Errorf("FindPlace(%q) = %d, want %d", c.key, got, c.want)
		}
	}
}

func TestFindPlaceInternalSentinel(t *testing.T) {
	p := new(pager.Page)
	Init(p, TypeInternal)
	child := []byte{0, 0, 0, 1}
	if !InsertItem(p, 0, []byte("mm"), child) {
		t.Fatal("insert separator failed")
	}
	if !InsertItem(p, 1, nil, child) {
		t.Fatal("insert sentinel failed")
	}

	// Keys beyond every separator must land on the sentinel slot, never
	// past the end of the page.
	if got := FindPlace(p, []byte("zz")); got != 1 {
		t.Fatalf("FindPlace(zz) = %d, want sentinel slot 1", got)
	}
	if got := FindPlace(p, []byte("aa")); got != 0 {
		t.Fatalf("FindPlace(aa) = %d, want 0", got)
	}
}

func TestSplit(t *testing.T) {
	for _, n := range []int{3, 15, 16, 101} {
		p := newLeaf()
		all := make(map[string]string, n)
		for i := 0; i < n; i++ {
			k := fmt.Sprintf("key-%04d", i)
			v := fmt.Sprintf("val-%04d", i)
			mustInsert(t, p, []byte(k), []byte(v))
			all[k] = v
		}

		sp, right := Split(p)
		checkSorted(t, p)
		checkSorted(t, right)

		if got := NumItems(p); got != sp+1 {
			t.Fatalf("n=%d: left has %d items, split index %d", n, got, sp)
		}
		if NumItems(p)+NumItems(right) != n {
			t.Fatalf("n=%d: %d + %d items after split", n, NumItems(p), NumItems(right))
		}

		// Every left key must order below every right key, and the
		// union must be exactly the pre-split set.
		lk, _ := Item(p, NumItems(p)-1)
		rk, _ := Item(right, 0)
		if bytes.Compare(lk, rk) >= 0 {
			t.Fatalf("n=%d: left max %q >= right min %q", n, lk, rk)
		}
		for _, pg := range []*pager.Page{p, right} {
			for i := 0; i < NumItems(pg); i++ {
				k, v := Item(pg, i)
				if all[string(k)] != string(v) {
					t.Fatalf("n=%d: item (%q, %q) not in pre-split set", n, k, v)
				}
				delete(all, string(k))
			}
		}
		if len(all) != 0 {
			t.Fatalf("n=%d: %d items lost in split", n, len(all))
		}
	}
}

func TestSplitTinyPages(t *testing.T) {
	// With one or two items the whole page moves right and the caller
	// sees an empty left half; the tree layer rebalances afterwards.
	for _, n := range []int{1, 2} {
		p := newLeaf()
		for i := 0; i < n; i++ {
			mustInsert(t, p, []byte{byte('a' + i)}, []byte("v"))
		}
		sp, right := Split(p)
		if sp != -1 || NumItems(p) != 0 || NumItems(right) != n {
			t.Fatalf("n=%d: sp=%d left=%d right=%d", n, sp, NumItems(p), NumItems(right))
		}
		checkSorted(t, right)
	}
}

func TestValidate(t *testing.T) {
	p := newLeaf()
	mustInsert(t, p, []byte("a"), []byte("1"))
	if err := Validate(p); err != nil {
		t.Fatalf("valid page rejected: %v", err)
	}

	bad := *p
	bad[offMagic] = 0xFF
	if err := Validate(&bad); err == nil {
		t.Fatal("bad magic accepted")
	}

	bad = *p
	bad[offType] = 7
	if err := Validate(&bad); err == nil {
		t.Fatal("bad type accepted")
	}

	bad = *p
	SetOffs(&bad, 0, pager.PageSize-1) // item header would run off the page
	if err := Validate(&bad); err == nil {
		t.Fatal("out-of-range slot offset accepted")
	}
}

func TestRoundTripThroughBytes(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	p := newLeaf()
	keys := make([]string, 0, 50)
	for i := 0; i < 50; i++ {
		keys = append(keys, fmt.Sprintf("%08x", rng.Uint32()))
	}
	sort.Strings(keys)
	for i, k := range keys {
		if !InsertItem(p, i, []byte(k), []byte(k)) {
			t.Fatalf("insert %d failed", i)
		}
	}

	// A byte-for-byte copy must decode to the same items.
	cp := *p
	if err := Validate(&cp); err != nil {
		t.Fatalf("copy rejected: %v", err)
	}
	if NumItems(&cp) != len(keys) {
		t.Fatalf("copy has %d items, want %d", NumItems(&cp), len(keys))
	}
	for i, want := range keys {
		k, v := Item(&cp, i)
		if string(k) != want || string(v) != want {
			t.Fatalf("slot %d = (%q, %q), want %q", i, k, v, want)
		}
	}
}
