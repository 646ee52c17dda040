// Package depslog implements C4: the binary append-only log of
// dependency-discovery results (header dependencies found by the
// compiler at build time), keyed by output node id.
package depslog

import (
	"bytes"
	"encoding/binary"
	"os"
	"sort"

	"forge/internal/builderrors"
	"forge/internal/disk"
	"forge/internal/graph"
)

const (
	magic          = "# ninjadeps\n"
	currentVersion = uint32(4)

	// sizeMax is the largest payload a single record may declare; larger
	// values are treated as corruption rather than an allocation bomb.
	sizeMax = 256*1024 - 1

	isDepsBit = uint32(1) << 31
	sizeMask  = isDepsBit - 1
)

// Deps is one deps-log record: the inputs discovered for an output at the
// mtime the output had when those inputs were recorded.
type Deps struct {
	MTime  graph.TimeStamp
	Inputs []int // node ids
}

// Log is the in-memory view of a deps log: the node-id table built from
// path records, and the latest Deps per output id built from deps
// records.
type Log struct {
	path string

	nodeIDs  map[string]int // path -> id
	idPaths  []string       // id -> path, dense
	deps     map[int]*Deps  // output id -> latest deps
	recCount uint32         // monotonic record counter, used in the checksum

	needsRecompaction bool

	f *os.File
}

// NeedsRecompaction reports whether Load determined this log has grown
// disproportionately to its distinct-output count, mirroring
// buildlog.Log's policy.
func (l *Log) NeedsRecompaction() bool { return l.needsRecompaction }

// New constructs an empty, unattached log.
func New(path string) *Log {
	return &Log{path: path, nodeIDs: map[string]int{}, deps: map[int]*Deps{}}
}

// NodeCount returns the number of distinct paths assigned an id.
func (l *Log) NodeCount() int { return len(l.idPaths) }

// PathForID returns the path assigned to id, or "" if out of range.
func (l *Log) PathForID(id int) string {
	if id < 0 || id >= len(l.idPaths) {
		return ""
	}
	return l.idPaths[id]
}

// IDForPath returns the id assigned to path, and whether it is known.
func (l *Log) IDForPath(path string) (int, bool) {
	id, ok := l.nodeIDs[path]
	return id, ok
}

// Lookup returns the latest Deps recorded for outputID, or nil.
func (l *Log) Lookup(outputID int) *Deps { return l.deps[outputID] }

// AllDeps returns every recorded output path mapped to its current input
// paths, for reporting tools that walk the whole log rather than a single
// output.
func (l *Log) AllDeps() map[string][]string {
	out := make(map[string][]string, len(l.deps))
	for id, d := range l.deps {
		paths := make([]string, 0, len(d.Inputs))
		for _, inputID := range d.Inputs {
			paths = append(paths, l.PathForID(inputID))
		}
		out[l.PathForID(id)] = paths
	}
	return out
}

// Load reads path from d. Corruption (bad size, bad checksum, truncated
// tail, an out-of-range node id) stops reading cleanly: everything up to
// the last valid record boundary is kept and Load returns success.
func Load(path string, d disk.Interface) (*Log, error) {
	l := New(path)

	data, err := d.ReadFile(path)
	if err != nil {
		if err == disk.ErrNotFound {
			return l, nil
		}
		return nil, err
	}

	if len(data) < len(magic)+4 || string(data[:len(magic)]) != magic {
		// Unreadable header: discard and start fresh, same policy as an
		// old build-log version.
		return l, nil
	}
	version := binary.LittleEndian.Uint32(data[len(magic) : len(magic)+4])
	if version != currentVersion {
		return l, nil
	}

	off := len(magic) + 4
	for {
		if off+4 > len(data) {
			break // clean EOF at a record boundary.
		}
		sizeWord := binary.LittleEndian.Uint32(data[off : off+4])
		isDeps := sizeWord&isDepsBit != 0
		size := sizeWord & sizeMask
		if size > sizeMax {
			break // corrupt: oversized record, truncate here.
		}

		recordEnd := off + 4 + int(size) + 4 // size word + payload + checksum
		if recordEnd > len(data) {
			break // truncated tail.
		}
		payload := data[off+4 : off+4+int(size)]
		checksum := binary.LittleEndian.Uint32(data[off+4+int(size) : recordEnd])

		l.recCount++
		if checksum != ^l.recCount {
			l.recCount--
			break // checksum mismatch: corruption, truncate here.
		}

		if isDeps {
			if !l.applyDepsRecord(payload) {
				l.recCount--
				break
			}
		} else {
			l.applyPathRecord(payload)
		}

		off = recordEnd
	}

	if int(l.recCount) > 100 && int(l.recCount) > 3*len(l.deps) {
		l.needsRecompaction = true
	}

	return l, nil
}

func (l *Log) applyPathRecord(payload []byte) {
	path := string(bytes.TrimRight(payload, "\x00"))
	id := len(l.idPaths)
	l.idPaths = append(l.idPaths, path)
	l.nodeIDs[path] = id
}

// applyDepsRecord returns false if the record references a node id
// outside the currently known range (P6), which is treated as
// corruption.
func (l *Log) applyDepsRecord(payload []byte) bool {
	if len(payload) < 12 {
		return false
	}
	outID := int(binary.LittleEndian.Uint32(payload[0:4]))
	mtime := int64(binary.LittleEndian.Uint64(payload[4:12]))
	rest := payload[12:]
	if len(rest)%4 != 0 {
		return false
	}
	if outID < 0 || outID >= len(l.idPaths) {
		return false
	}
	inputs := make([]int, len(rest)/4)
	for i := range inputs {
		id := int(binary.LittleEndian.Uint32(rest[i*4 : i*4+4]))
		if id < 0 || id >= len(l.idPaths) {
			return false
		}
		inputs[i] = id
	}
	l.deps[outID] = &Deps{MTime: graph.TimeStamp(mtime), Inputs: inputs}
	return true
}

func (l *Log) ensureOpen() error {
	if l.f != nil {
		return nil
	}
	info, statErr := os.Stat(l.path)
	needsHeader := statErr != nil || info.Size() == 0

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return &builderrors.IOError{Op: "open", Path: l.path, Err: err}
	}
	l.f = f

	if needsHeader {
		var hdr bytes.Buffer
		hdr.WriteString(magic)
		binary.Write(&hdr, binary.LittleEndian, currentVersion)
		if _, err := l.f.Write(hdr.Bytes()); err != nil {
			return &builderrors.IOError{Op: "write-header", Path: l.path, Err: err}
		}
	} else {
		// Reopening an existing log for append: recCount must continue
		// from where Load left it (caller is expected to have Loaded
		// first); nothing to do here.
	}
	return nil
}

// RecordPath assigns path the next sequential node id if it is not
// already known, appending a path record, and returns the id either way.
func (l *Log) RecordPath(path string) (int, error) {
	if id, ok := l.nodeIDs[path]; ok {
		return id, nil
	}
	if err := l.ensureOpen(); err != nil {
		return 0, err
	}

	id := len(l.idPaths)
	l.idPaths = append(l.idPaths, path)
	l.nodeIDs[path] = id

	padded := pad4(path)
	sizeWord := uint32(len(padded))
	l.recCount++
	checksum := ^l.recCount

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, sizeWord)
	buf.Write(padded)
	binary.Write(&buf, binary.LittleEndian, checksum)
	if _, err := l.f.Write(buf.Bytes()); err != nil {
		return 0, &builderrors.IOError{Op: "append", Path: l.path, Err: err}
	}
	return id, l.f.Sync()
}

// RecordDeps appends a deps record for outputID with the given mtime and
// input node ids, which must already be known (call RecordPath first for
// each).
func (l *Log) RecordDeps(outputID int, mtime graph.TimeStamp, inputIDs []int) error {
	if err := l.ensureOpen(); err != nil {
		return err
	}

	payloadLen := 4 + 8 + 4*len(inputIDs)
	sizeWord := isDepsBit | uint32(payloadLen)
	l.recCount++
	checksum := ^l.recCount

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, sizeWord)
	binary.Write(&buf, binary.LittleEndian, uint32(outputID))
	binary.Write(&buf, binary.LittleEndian, int64(mtime))
	for _, id := range inputIDs {
		binary.Write(&buf, binary.LittleEndian, uint32(id))
	}
	binary.Write(&buf, binary.LittleEndian, checksum)
	if _, err := l.f.Write(buf.Bytes()); err != nil {
		return &builderrors.IOError{Op: "append", Path: l.path, Err: err}
	}
	if err := l.f.Sync(); err != nil {
		return &builderrors.IOError{Op: "fsync", Path: l.path, Err: err}
	}

	l.deps[outputID] = &Deps{MTime: mtime, Inputs: append([]int(nil), inputIDs...)}
	return nil
}

// Close releases the underlying file handle, if one was opened.
func (l *Log) Close() error {
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

func pad4(path string) []byte {
	n := len(path)
	padded := (n + 3) &^ 3
	if padded == n {
		padded += 4 // always at least one byte of padding, so the NUL trim in applyPathRecord is unambiguous.
	}
	buf := make([]byte, padded)
	copy(buf, path)
	return buf
}

// IsNodeLive classifies whether an output path should survive
// recompaction: reachable from the current graph as a producible output.
type IsNodeLive func(path string) bool

// Recompact rewrites the log under path, keeping only deps entries whose
// output is live (and dropping any of its inputs that are not), and
// renumbering node ids densely in the process.
func Recompact(path string, l *Log, isLive IsNodeLive) error {
	if err := l.Close(); err != nil {
		return err
	}

	liveOutputs := make([]int, 0, len(l.deps))
	for id := range l.deps {
		if isLive == nil || isLive(l.idPaths[id]) {
			liveOutputs = append(liveOutputs, id)
		}
	}
	sort.Ints(liveOutputs)

	newLog := New(path)
	tmpPath := path + ".recompact"
	newLog.path = tmpPath
	if err := newLog.ensureOpen(); err != nil {
		return err
	}

	for _, oldID := range liveOutputs {
		d := l.deps[oldID]
		newOutID, err := newLog.RecordPath(l.idPaths[oldID])
		if err != nil {
			return err
		}
		newInputs := make([]int, 0, len(d.Inputs))
		for _, in := range d.Inputs {
			if isLive != nil && !isLive(l.idPaths[in]) {
				continue
			}
			newInID, err := newLog.RecordPath(l.idPaths[in])
			if err != nil {
				return err
			}
			newInputs = append(newInputs, newInID)
		}
		if err := newLog.RecordDeps(newOutID, d.MTime, newInputs); err != nil {
			return err
		}
	}
	if err := newLog.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return &builderrors.IOError{Op: "rename", Path: path, Err: err}
	}

	*l = *newLog
	l.path = path
	return nil
}
