/*
Package txn implements the client-side Transaction handle. A
Transaction buffers reads and writes locally, scans every value it
reads for embedded hash dependencies and keeps their ephemeral ids
rooted until the transaction is dropped or checkpointed, and submits
its accumulated reads/writes to a kv.Store on Commit.
*/
package txn
