package arena

import (
	"encoding/json"
	"testing"
)

type entry struct {
	Value int `json:"value"`
}

func testRegion(t *testing.T, dir string, id uint8) *Region {
	t.Helper()
	a, err := Open(dir)
	if err != nil {
		t.Fatalf("open arena: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	r, err := a.Region(id)
	if err != nil {
		t.Fatalf("open region %d: %v", id, err)
	}
	return r
}

func TestMap_SetGetDelete(t *testing.T) {
	r := testRegion(t, t.TempDir(), 0)
	m, err := OpenMap(r, NewCodec[entry]("entry", 128))
	if err != nil {
		t.Fatalf("open map: %v", err)
	}

	if err := m.Set("b", entry{Value: 2}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := m.Set("a", entry{Value: 1}); err != nil {
		t.Fatalf("set: %v", err)
	}

	if v, ok := m.Get("a"); !ok || v.Value != 1 {
		t.Fatalf("get a: %+v %v", v, ok)
	}
	if keys := m.Keys(); len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("keys not sorted: %v", keys)
	}

	if err := m.Delete("a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := m.Get("a"); ok {
		t.Fatal("deleted key still present")
	}
	if err := m.Delete("a"); err != nil {
		t.Fatalf("deleting absent key should be a no-op: %v", err)
	}
	if m.Len() != 1 {
		t.Fatalf("len: %d", m.Len())
	}
}

func TestMap_ReplayAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	codec := NewCodec[entry]("entry", 128)

	r := testRegion(t, dir, 0)
	m, err := OpenMap(r, codec)
	if err != nil {
		t.Fatalf("open map: %v", err)
	}
	if err := m.Set("k", entry{Value: 7}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := m.Set("gone", entry{Value: 8}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := m.Delete("gone"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	r2 := testRegion(t, dir, 0)
	m2, err := OpenMap(r2, codec)
	if err != nil {
		t.Fatalf("reopen map: %v", err)
	}
	if v, ok := m2.Get("k"); !ok || v.Value != 7 {
		t.Fatalf("replayed entry: %+v %v", v, ok)
	}
	if _, ok := m2.Get("gone"); ok {
		t.Fatal("deleted entry resurrected by replay")
	}
}

func TestMap_CheckpointCompacts(t *testing.T) {
	dir := t.TempDir()
	codec := NewCodec[entry]("entry", 128)

	r := testRegion(t, dir, 0)
	m, err := OpenMap(r, codec)
	if err != nil {
		t.Fatalf("open map: %v", err)
	}
	for i := 0; i < 10; i++ {
		if err := m.Set("hot", entry{Value: i}); err != nil {
			t.Fatalf("set: %v", err)
		}
	}
	if err := m.Checkpoint(); err != nil {
		t.Fatalf("checkpoint: %v", err)
	}

	// After compaction the log holds exactly one record per live key.
	var count int
	if err := r.Replay(func([]byte) error { count++; return nil }); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if count != 1 {
		t.Fatalf("log holds %d records after checkpoint, want 1", count)
	}
	if v, _ := m.Get("hot"); v.Value != 9 {
		t.Fatalf("value lost by checkpoint: %+v", v)
	}
}

func TestVec_PushSetReplay(t *testing.T) {
	dir := t.TempDir()
	codec := NewCodec[entry]("entry", 128)

	r := testRegion(t, dir, 1)
	v, err := OpenVec(r, codec)
	if err != nil {
		t.Fatalf("open vec: %v", err)
	}

	i0, err := v.Push(entry{Value: 10})
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	i1, err := v.Push(entry{Value: 20})
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if i0 != 0 || i1 != 1 {
		t.Fatalf("indexes: %d %d", i0, i1)
	}
	if err := v.Set(0, entry{Value: 11}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := v.Set(5, entry{Value: 1}); err == nil {
		t.Fatal("expected error for out-of-range set")
	}

	r2 := testRegion(t, dir, 1)
	v2, err := OpenVec(r2, codec)
	if err != nil {
		t.Fatalf("reopen vec: %v", err)
	}
	if v2.Len() != 2 {
		t.Fatalf("len after replay: %d", v2.Len())
	}
	if e, _ := v2.Get(0); e.Value != 11 {
		t.Fatalf("in-place update lost: %+v", e)
	}
	if e, _ := v2.Get(1); e.Value != 20 {
		t.Fatalf("element 1: %+v", e)
	}
}

func TestVec_LenientOpenCountsDegraded(t *testing.T) {
	dir := t.TempDir()
	codec := NewCodec[entry]("entry", 128)

	r := testRegion(t, dir, 1)
	v, err := OpenVec(r, codec)
	if err != nil {
		t.Fatalf("open vec: %v", err)
	}
	if _, err := v.Push(entry{Value: 1}); err != nil {
		t.Fatalf("push: %v", err)
	}

	// Inject a push record whose value is not valid for the element type.
	bad, _ := json.Marshal(logRecord{Op: opPush, Value: json.RawMessage(`"scrambled"`)})
	if err := r.Append(bad); err != nil {
		t.Fatalf("append bad record: %v", err)
	}

	r2 := testRegion(t, dir, 1)
	v2, err := OpenVecLenient(r2, codec)
	if err != nil {
		t.Fatalf("lenient open: %v", err)
	}
	if v2.Len() != 2 {
		t.Fatalf("len: %d, want degraded element retained", v2.Len())
	}
	if v2.Degraded() != 1 {
		t.Fatalf("degraded: %d", v2.Degraded())
	}
	if e, _ := v2.Get(1); e.Value != 0 {
		t.Fatalf("degraded element should be zero value: %+v", e)
	}

	// Checkpoint must survive the zero-valued element.
	if err := v2.Checkpoint(); err != nil {
		t.Fatalf("checkpoint with degraded element: %v", err)
	}
}

func TestVec_StrictOpenRejectsBadRecord(t *testing.T) {
	dir := t.TempDir()
	codec := NewCodec[entry]("entry", 128)

	r := testRegion(t, dir, 1)
	bad, _ := json.Marshal(logRecord{Op: opPush, Value: json.RawMessage(`"scrambled"`)})
	if err := r.Append(bad); err != nil {
		t.Fatalf("append bad record: %v", err)
	}

	r2 := testRegion(t, dir, 1)
	defer func() {
		if recover() == nil {
			t.Fatal("expected strict open to panic on corrupt element")
		}
	}()
	_, _ = OpenVec(r2, codec)
}
