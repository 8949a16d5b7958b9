package defs

/// System parameters, carried over from the parameters table: fixed limits
/// that size the process table, open-file tables, and path buffers.
const (
	NPROC   = 64  /// max simultaneous processes
	NCPU    = 8   /// max harts
	NOFILE  = 16  /// open files per process
	NFILE   = 100 /// system-wide open files
	NINODE  = 50  /// inode cache entries
	MAXPATH = 128 /// max path length
	MAXARG  = 32  /// max exec arguments
	USERSTACK = 1 /// user stack size in pages

	CONSOLE_BUF = 128 /// console input ring buffer size

	BSIZE = 1024 /// block size for the excluded file-system layer
)
