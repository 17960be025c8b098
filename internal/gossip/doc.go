/*
Package gossip turns the blocks and blob sidecars gossiped by peers into
complete block inputs.

Each inbound envelope is checked, then applied to a blockinput.Cache:

	sidecar ─► ValidateBasic ─► KZG proof ─┐
	                                        ├─► Cache.Ingest ─► save blobs ─► BlockImporter
	block   ─► ValidateBasic ──────────────┘

Sidecars whose block never shows up on gossip can optionally be resolved by
requesting the block by root from the peer that sent them.

Peers that send invalid data are reported on the PeerErrors channel. Errors
that are not the peer's fault are only logged.
*/
package gossip
