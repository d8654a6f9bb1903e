/*
Package resource implements content-addressed, immutable binaries,
deduplicated by hash and buffered in memory between Stow and the next
Committer cycle. New resources live in an in-memory map keyed by hash
(guarded by a mutex, consulted without the Committer's write lock);
once flushed they are stored under "#"+hash in the backend's own
resources bucket, apart from the key/value data bucket.
*/
package resource
