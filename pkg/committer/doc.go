/*
Package committer owns the backend's single write transaction. One
goroutine drains queued proposals into a batch, validates each
proposal's read assumptions against a live snapshot taken once per
batch (first-commit-wins among conflicting proposals in the same
batch), applies every validated write plus the resource store's
pending buffer in one atomic, fsynced transaction, and fulfills each
proposal's completion future. The run-loop shape — buffered channel
in, dedicated goroutine, stop channel for shutdown — is a familiar
single-owner-goroutine pattern; the batch-validate-apply-fsync cycle
adds optimistic conflict detection on top of it.
*/
package committer
