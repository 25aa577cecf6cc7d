package arena

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Log record ops shared by both container kinds.
const (
	opSet  = "set"
	opDel  = "del"
	opPush = "push"
)

type logRecord struct {
	Op    string          `json:"op"`
	Key   string          `json:"key,omitempty"`
	Index uint64          `json:"idx,omitempty"`
	Value json.RawMessage `json:"val,omitempty"`
}

func frameRecord(rec logRecord) []byte {
	b, err := json.Marshal(rec)
	if err != nil {
		panic(fmt.Sprintf("arena: marshal log record: %v", err))
	}
	return b
}

// Map is a string-keyed ordered map persisted to one region.
type Map[V any] struct {
	mu     sync.RWMutex
	region *Region
	codec  Codec[V]
	items  map[string]V
}

// OpenMap replays the region log into a Map. Values are decoded with
// the codec's strict mode.
func OpenMap[V any](r *Region, c Codec[V]) (*Map[V], error) {
	m := &Map[V]{region: r, codec: c, items: make(map[string]V)}
	err := r.Replay(func(b []byte) error {
		var rec logRecord
		if err := json.Unmarshal(b, &rec); err != nil {
			return fmt.Errorf("map %s: corrupt log record: %w", c.Name, err)
		}
		switch rec.Op {
		case opSet:
			m.items[rec.Key] = c.Decode(rec.Value)
		case opDel:
			delete(m.items, rec.Key)
		default:
			return fmt.Errorf("map %s: unknown op %q", c.Name, rec.Op)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Get returns the value for key.
func (m *Map[V]) Get(key string) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok
}

// Set stores key=value, appending the mutation to the region log.
func (m *Map[V]) Set(key string, v V) error {
	encoded := m.codec.Encode(v)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.region.Append(frameRecord(logRecord{Op: opSet, Key: key, Value: encoded})); err != nil {
		return err
	}
	m.items[key] = v
	return nil
}

// Delete removes key. Removing an absent key is a no-op.
func (m *Map[V]) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[key]; !ok {
		return nil
	}
	if err := m.region.Append(frameRecord(logRecord{Op: opDel, Key: key})); err != nil {
		return err
	}
	delete(m.items, key)
	return nil
}

// Len returns the number of live entries.
func (m *Map[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Keys returns the live keys in ascending order.
func (m *Map[V]) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Range calls fn for each entry in ascending key order until fn
// returns false.
func (m *Map[V]) Range(fn func(key string, v V) bool) {
	for _, k := range m.Keys() {
		v, ok := m.Get(k)
		if !ok {
			continue
		}
		if !fn(k, v) {
			return
		}
	}
}

// Checkpoint compacts the region log to one set record per live entry.
func (m *Map[V]) Checkpoint() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	recs := make([][]byte, 0, len(keys))
	for _, k := range keys {
		recs = append(recs, frameRecord(logRecord{Op: opSet, Key: k, Value: m.codec.Encode(m.items[k])}))
	}
	return m.region.Rewrite(recs)
}

// Vec is an append-only vector persisted to one region. Elements can be
// updated in place but never removed.
type Vec[V any] struct {
	mu       sync.RWMutex
	region   *Region
	codec    Codec[V]
	items    []V
	degraded int
	lenient  bool
}

// OpenVec replays the region log into a Vec with strict decoding.
func OpenVec[V any](r *Region, c Codec[V]) (*Vec[V], error) {
	return openVec(r, c, false)
}

// OpenVecLenient replays with lenient decoding: unreadable elements are
// kept as zero values and counted instead of stopping the replay.
func OpenVecLenient[V any](r *Region, c Codec[V]) (*Vec[V], error) {
	return openVec(r, c, true)
}

func openVec[V any](r *Region, c Codec[V], lenient bool) (*Vec[V], error) {
	v := &Vec[V]{region: r, codec: c, lenient: lenient}
	err := r.Replay(func(b []byte) error {
		var rec logRecord
		if err := json.Unmarshal(b, &rec); err != nil {
			return fmt.Errorf("vec %s: corrupt log record: %w", c.Name, err)
		}
		var elem V
		if lenient {
			var derr error
			elem, derr = c.DecodeLenient(rec.Value)
			if derr != nil {
				v.degraded++
			}
		} else {
			elem = c.Decode(rec.Value)
		}
		switch rec.Op {
		case opPush:
			v.items = append(v.items, elem)
		case opSet:
			if rec.Index >= uint64(len(v.items)) {
				return fmt.Errorf("vec %s: set index %d beyond length %d", c.Name, rec.Index, len(v.items))
			}
			v.items[rec.Index] = elem
		default:
			return fmt.Errorf("vec %s: unknown op %q", c.Name, rec.Op)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Push appends v and returns its index.
func (v *Vec[V]) Push(elem V) (uint64, error) {
	encoded := v.codec.Encode(elem)

	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.region.Append(frameRecord(logRecord{Op: opPush, Value: encoded})); err != nil {
		return 0, err
	}
	v.items = append(v.items, elem)
	return uint64(len(v.items) - 1), nil
}

// Get returns the element at index i.
func (v *Vec[V]) Get(i uint64) (V, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if i >= uint64(len(v.items)) {
		var zero V
		return zero, false
	}
	return v.items[i], true
}

// Set overwrites the element at index i.
func (v *Vec[V]) Set(i uint64, elem V) error {
	encoded := v.codec.Encode(elem)

	v.mu.Lock()
	defer v.mu.Unlock()
	if i >= uint64(len(v.items)) {
		return fmt.Errorf("vec %s: set index %d beyond length %d", v.codec.Name, i, len(v.items))
	}
	if err := v.region.Append(frameRecord(logRecord{Op: opSet, Index: i, Value: encoded})); err != nil {
		return err
	}
	v.items[i] = elem
	return nil
}

// Len returns the element count.
func (v *Vec[V]) Len() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return uint64(len(v.items))
}

// Range calls fn for each element in index order until fn returns false.
func (v *Vec[V]) Range(fn func(i uint64, elem V) bool) {
	v.mu.RLock()
	snapshot := make([]V, len(v.items))
	copy(snapshot, v.items)
	v.mu.RUnlock()

	for i, elem := range snapshot {
		if !fn(uint64(i), elem) {
			return
		}
	}
}

// Degraded reports how many elements failed lenient decoding on open.
func (v *Vec[V]) Degraded() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.degraded
}

// Checkpoint compacts the region log to one push record per element.
func (v *Vec[V]) Checkpoint() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	recs := make([][]byte, 0, len(v.items))
	for _, elem := range v.items {
		var encoded []byte
		if v.lenient {
			b, err := json.Marshal(elem)
			if err != nil {
				return fmt.Errorf("vec %s: checkpoint encode: %w", v.codec.Name, err)
			}
			encoded = b
		} else {
			encoded = v.codec.Encode(elem)
		}
		recs = append(recs, frameRecord(logRecord{Op: opPush, Value: encoded}))
	}
	return v.region.Rewrite(recs)
}
