/*
Package backend wraps bbolt as the single-writer, multi-reader embedded
key/value store underneath the resource and key/value layers.

	┌──────────────────── BACKEND (bbolt) ──────────────────────┐
	│  core.db                                                   │
	│   data       key -> value            (pkg/kv)              │
	│   resources  "#"+hash -> bytes       (pkg/resource)        │
	│   roots      created for backend bookkeeping, not exposed  │
	└─────────────────────────────────────────────────────────--┘

Opening the file takes bbolt's advisory flock as a sentinel lock: a
second process opening the same directory is blocked rather than
silently corrupting the file.
*/
package backend
