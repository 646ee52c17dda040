package graph

// TimeStamp is an opaque monotone integer. Its only meaningful operations
// are equality and ordering; callers must not assume it is a Unix time in
// any particular unit. Zero is the sentinel for "file does not exist".
type TimeStamp int64

// Missing is the sentinel TimeStamp meaning the path has no mtime because
// it does not exist on disk.
const Missing TimeStamp = 0

// exists reports whether ts represents a file that was present at stat
// time (including files whose OS-reported mtime happens to be exactly
// zero, which callers must promote to 1 before constructing a TimeStamp).
func (ts TimeStamp) exists() bool { return ts != Missing }
