/*
Package reqresp assembles block inputs from request/response transfers.

Blocks and their blob sidecars are requested with separate protocols and come
back as two independently ordered streams. BlocksMaybeBlobsByRange and
BlocksMaybeBlobsByRoot issue the requests through a BeaconNode and pair the
streams back up with MatchBlocksWithBlobs, returning one block input per
block. Nothing is cached between requests.

The Dispatcher implements BeaconNode on top of a message channel: it sends a
request envelope to the peer and collects the streamed response chunks that
the owning reactor passes back with Respond.
*/
package reqresp
