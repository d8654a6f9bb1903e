/*
Package kv implements the public key/value façade. It validates key and
value constraints synchronously and delegates all durability decisions
to the committer package; reads go straight to the backend's
read-snapshot, since those never need serialization through the single
writer goroutine.
*/
package kv
