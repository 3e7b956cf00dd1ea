// Package access defines the filesystem and network capabilities the
// bootstrap needs and provides one production and one in-memory
// implementation of each.
//
// Disk writes go through go-update so a file is never left half-written;
// HTTP fetches a URL into memory. Memory (afero) and MemoryNetwork are the
// test doubles used across the repository.
package access
