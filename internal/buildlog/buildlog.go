// Package buildlog implements C3: the append-only build log recording,
// per output path, the command hash and timing of the command that most
// recently produced it.
package buildlog

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"forge/internal/builderrors"
	"forge/internal/disk"
	"forge/internal/graph"
	"forge/internal/murmur"
)

// CurrentVersion is the build log format version this package writes.
// Versions below MinSupportedVersion are treated as unreadable and the
// file is discarded.
const (
	CurrentVersion      = 5
	MinSupportedVersion = 4
	header              = "# ninja log v%d\n"
)

// Entry is one build log record: the most recent command run for an
// output path.
type Entry struct {
	Output      string
	CommandHash uint64
	StartMS     int32
	EndMS       int32 // -1 means "unknown" for entries imported without timing.
	MTime       graph.TimeStamp
}

// Log is the in-memory view of a build log file plus enough bookkeeping
// to decide whether recompaction is warranted.
type Log struct {
	path    string
	entries map[string]*Entry

	total  int
	unique int

	needsRecompaction bool

	f *os.File // lazily opened on first Record call.
}

// New constructs an empty, unattached log (no file opened yet).
func New(path string) *Log {
	return &Log{path: path, entries: map[string]*Entry{}}
}

// Lookup returns the current entry for output, or nil.
func (l *Log) Lookup(output string) *Entry { return l.entries[output] }

// Entries returns every entry, for callers that need to enumerate (e.g.
// the cleaner's dead-output scan).
func (l *Log) Entries() map[string]*Entry { return l.entries }

// NeedsRecompaction reports whether Load determined this log has grown
// disproportionately to its unique-key count, or is on an old version.
func (l *Log) NeedsRecompaction() bool { return l.needsRecompaction }

// Load reads path from d, populating entries with the last record per
// output. A missing file is not an error: it loads as empty.
//
// A version below MinSupportedVersion causes the file to be deleted and
// loading to proceed as if it were empty — old formats are not
// round-trip compatible and are not worth salvaging.
func Load(path string, d disk.Interface) (*Log, error) {
	l := New(path)

	data, err := d.ReadFile(path)
	if err != nil {
		if err == disk.ErrNotFound {
			return l, nil
		}
		return nil, err
	}

	lines := strings.Split(string(data), "\n")
	if len(lines) == 0 {
		return l, nil
	}

	version, ok := parseHeader(lines[0])
	if !ok {
		// No recognizable header: treat the whole file as pre-version
		// and discard, per load policy for unknown-too-old files.
		d.RemoveFile(path)
		return l, nil
	}
	if version < MinSupportedVersion {
		d.RemoveFile(path)
		return l, nil
	}
	if version < CurrentVersion {
		l.needsRecompaction = true
	}

	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 5 {
			continue // malformed: skip, per load policy.
		}
		start, err1 := strconv.ParseInt(fields[0], 10, 32)
		end, err2 := strconv.ParseInt(fields[1], 10, 32)
		mtime, err3 := strconv.ParseInt(fields[2], 10, 64)
		hash, err4 := strconv.ParseUint(fields[4], 16, 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			continue
		}
		output := fields[3]

		l.total++
		if _, exists := l.entries[output]; !exists {
			l.unique++
		}
		l.entries[output] = &Entry{
			Output:      output,
			CommandHash: hash,
			StartMS:     int32(start),
			EndMS:       int32(end),
			MTime:       graph.TimeStamp(mtime),
		}
	}

	if l.total > 100 && l.total > 3*l.unique {
		l.needsRecompaction = true
	}

	return l, nil
}

func parseHeader(line string) (version int, ok bool) {
	var v int
	n, err := fmt.Sscanf(line, "# ninja log v%d", &v)
	if err != nil || n != 1 {
		return 0, false
	}
	return v, true
}

// HashCommand is the command-hash function used for every record: the
// pinned MurmurHash2 of the fully evaluated command string.
func HashCommand(command string) uint64 { return murmur.HashString(command) }

// Record appends a new entry for output, opening the file (writing the
// header if it is empty) on first use. The write is flushed immediately.
func (l *Log) Record(output string, commandHash uint64, startMS, endMS int32, mtime graph.TimeStamp) error {
	if err := l.ensureOpen(); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(l.f, "%d\t%d\t%d\t%s\t%x\n", startMS, endMS, int64(mtime), output, commandHash); err != nil {
		return &builderrors.IOError{Op: "append", Path: l.path, Err: err}
	}
	if err := l.f.Sync(); err != nil {
		return &builderrors.IOError{Op: "fsync", Path: l.path, Err: err}
	}

	if _, exists := l.entries[output]; !exists {
		l.unique++
	}
	l.total++
	l.entries[output] = &Entry{Output: output, CommandHash: commandHash, StartMS: startMS, EndMS: endMS, MTime: mtime}
	return nil
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
	setCloseOnExec(f)
	l.f = f

	if needsHeader {
		if _, err := fmt.Fprintf(l.f, header, CurrentVersion); err != nil {
			return &builderrors.IOError{Op: "write-header", Path: l.path, Err: err}
		}
	}
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

// IsPathDead classifies, for recompaction, whether an output path is no
// longer relevant. Typically: not produced by any current edge and not
// present on disk.
type IsPathDead func(path string) bool

// Recompact rewrites the log under path+".recompact", dropping entries
// for which isDead reports true, then atomically renames it over path.
func Recompact(path string, l *Log, isDead IsPathDead) error {
	if err := l.Close(); err != nil {
		return err
	}

	outputs := make([]string, 0, len(l.entries))
	for out := range l.entries {
		if isDead != nil && isDead(out) {
			delete(l.entries, out)
			continue
		}
		outputs = append(outputs, out)
	}
	sort.Strings(outputs)

	var b strings.Builder
	fmt.Fprintf(&b, header, CurrentVersion)
	for _, out := range outputs {
		e := l.entries[out]
		fmt.Fprintf(&b, "%d\t%d\t%d\t%s\t%x\n", e.StartMS, e.EndMS, int64(e.MTime), e.Output, e.CommandHash)
	}

	tmp := path + ".recompact"
	if err := os.WriteFile(tmp, []byte(b.String()), 0644); err != nil {
		return &builderrors.IOError{Op: "write", Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		return &builderrors.IOError{Op: "rename", Path: path, Err: err}
	}
	l.total = len(outputs)
	l.unique = len(outputs)
	l.needsRecompaction = false
	return nil
}

// Restat rewrites the log, replacing the recorded mtime of every entry
// whose output matches filter (or every entry, if filter is empty) with a
// fresh stat from d, then renames the result over path.
func Restat(path string, l *Log, d disk.Interface, filter map[string]bool) error {
	if err := l.Close(); err != nil {
		return err
	}

	outputs := make([]string, 0, len(l.entries))
	for out := range l.entries {
		outputs = append(outputs, out)
	}
	sort.Strings(outputs)

	for _, out := range outputs {
		if len(filter) > 0 && !filter[out] {
			continue
		}
		ts, err := d.Stat(out)
		if err != nil {
			return err
		}
		l.entries[out].MTime = ts
	}

	var b strings.Builder
	fmt.Fprintf(&b, header, CurrentVersion)
	for _, out := range outputs {
		e := l.entries[out]
		fmt.Fprintf(&b, "%d\t%d\t%d\t%s\t%x\n", e.StartMS, e.EndMS, int64(e.MTime), e.Output, e.CommandHash)
	}

	_, err := disk.WriteFileAtomic(path, []byte(b.String()))
	return err
}
