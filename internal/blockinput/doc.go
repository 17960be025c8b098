/*
Package blockinput pairs blocks and blob sidecars received over gossip.

Blocks and their sidecars are published on separate topics and arrive in any
order. The Cache holds a small number of pending assemblies keyed by block
root. Every gossip message is applied with Cache.Ingest, which reports one of
three states: the block input is complete, the block is still missing, or
some sidecars are still missing. A completed input leaves the cache; its
ownership passes to the caller.

When a sidecar arrives for a block the cache has not seen and the cache is
full, the oldest assemblies are evicted before the new one is inserted.
Eviction follows insertion order; later arrivals do not make an assembly
younger. A block creates its assembly without evicting.
*/
package blockinput
