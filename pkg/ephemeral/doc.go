/*
Package ephemeral tracks, per ephemeron id, how many outstanding
transactions currently care about a resource: a small mutex-guarded map
with paired increment/decrement, keyed on a hash digest. It panics on
an impossible negative count, treating a double-release as a
programmer error the same way elsewhere in the stack.
*/
package ephemeral
