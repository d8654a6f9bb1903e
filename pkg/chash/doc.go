/*
Package chash computes content hashes and conservatively scans values for
embedded hash references.

Hashes are 320-bit BLAKE2b digests rendered as 64-character strings over a
32-symbol alphabet. HashScan treats any maximal run of exactly HashLen
alphabet bytes inside a value as a reference to another resource; this is
the primitive the resource store's garbage collector builds its
reachability trace on top of.
*/
package chash
