/*
Package gc is a conservative background collector.
Its liveness criterion is deliberately over-approximate: any byte run
that merely looks like a hash literal pins the resource it names,
whether or not the value is actually interpreted that way by a client.
Combined with the ephemeral root table, this guarantees a resource a
client might still reference is never reclaimed, at the cost of
occasionally retaining garbage.
*/
package gc
