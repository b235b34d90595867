// Package procutil starts shell commands detached from the daemon.
//
// Detach uses a two-level spawn: an intermediate shell backgrounds the real
// command and exits at once. The caller waits only for the intermediate,
// so the command never blocks the caller and, once orphaned, is reaped by
// init instead of lingering as a zombie of the daemon.
package procutil
