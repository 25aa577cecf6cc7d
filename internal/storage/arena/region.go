package arena

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// maxRecordLen bounds a single log record. Anything larger indicates a
// corrupt length prefix rather than real data.
const maxRecordLen = 1 << 20

// Region is one numbered record log inside an arena. Records are raw
// byte slices framed with a big-endian uint32 length prefix.
type Region struct {
	mu   sync.Mutex
	id   uint8
	path string
	f    *os.File
}

func openRegion(id uint8, path string) (*Region, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &Region{id: id, path: path, f: f}, nil
}

// ID returns the region's numeric id.
func (r *Region) ID() uint8 { return r.id }

// Append frames and writes one record, syncing it to disk.
func (r *Region) Append(rec []byte) error {
	if len(rec) > maxRecordLen {
		return fmt.Errorf("region %d: record of %d bytes exceeds frame limit", r.id, len(rec))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.f == nil {
		return fmt.Errorf("region %d: closed", r.id)
	}

	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(rec)))
	if _, err := r.f.Write(prefix[:]); err != nil {
		return fmt.Errorf("region %d: write frame: %w", r.id, err)
	}
	if _, err := r.f.Write(rec); err != nil {
		return fmt.Errorf("region %d: write record: %w", r.id, err)
	}
	if err := r.f.Sync(); err != nil {
		return fmt.Errorf("region %d: sync: %w", r.id, err)
	}
	return nil
}

// Replay reads every record from the start of the log in write order.
// A truncated trailing record, left by an interrupted write, is dropped;
// the log is rewound to the last complete record.
func (r *Region) Replay(fn func(rec []byte) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.f == nil {
		return fmt.Errorf("region %d: closed", r.id)
	}
	if _, err := r.f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("region %d: seek: %w", r.id, err)
	}

	br := bufio.NewReader(r.f)
	var good int64
	for {
		var prefix [4]byte
		if _, err := io.ReadFull(br, prefix[:]); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return r.truncateLocked(good)
			}
			return fmt.Errorf("region %d: read frame: %w", r.id, err)
		}
		n := binary.BigEndian.Uint32(prefix[:])
		if n > maxRecordLen {
			return fmt.Errorf("region %d: corrupt frame length %d at offset %d", r.id, n, good)
		}
		rec := make([]byte, n)
		if _, err := io.ReadFull(br, rec); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return r.truncateLocked(good)
			}
			return fmt.Errorf("region %d: read record: %w", r.id, err)
		}
		if err := fn(rec); err != nil {
			return err
		}
		good += int64(4 + n)
	}
	return nil
}

func (r *Region) truncateLocked(size int64) error {
	if err := r.f.Truncate(size); err != nil {
		return fmt.Errorf("region %d: truncate torn tail: %w", r.id, err)
	}
	if _, err := r.f.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("region %d: seek end: %w", r.id, err)
	}
	return nil
}

// Rewrite atomically replaces the log's contents with the given records.
// Used by container checkpoints to compact the log to its live entries.
func (r *Region) Rewrite(recs [][]byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.f == nil {
		return fmt.Errorf("region %d: closed", r.id)
	}

	tmp := r.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("region %d: open temp: %w", r.id, err)
	}
	w := bufio.NewWriter(f)
	for _, rec := range recs {
		var prefix [4]byte
		binary.BigEndian.PutUint32(prefix[:], uint32(len(rec)))
		if _, err := w.Write(prefix[:]); err == nil {
			_, err = w.Write(rec)
		}
		if err != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("region %d: write temp: %w", r.id, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("region %d: flush temp: %w", r.id, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("region %d: sync temp: %w", r.id, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("region %d: close temp: %w", r.id, err)
	}

	if err := r.f.Close(); err != nil {
		return fmt.Errorf("region %d: close log: %w", r.id, err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("region %d: swap log: %w", r.id, err)
	}
	nf, err := os.OpenFile(r.path, os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("region %d: reopen log: %w", r.id, err)
	}
	r.f = nf
	return nil
}

func (r *Region) close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}
