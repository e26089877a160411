// Package service provides the session registry for KernelGate.
//
// The Registry maps verified session tokens to live kernel handles. It is
// an explicitly constructed value owned by the server process; nothing in
// this package is global.
//
// Locking discipline:
//
//   - The token map is the only shared mutable structure. Each map access
//     holds one shard lock for the duration of that access only.
//   - Create opens the kernel before inserting.
//   - Execute looks the handle up, then evaluates without any lock held.
//   - Close removes the entry, then terminates the handle without any lock
//     held, so no caller can find a handle that is being terminated.
package service
