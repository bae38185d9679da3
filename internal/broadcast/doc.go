// Package broadcast fans the paced program out to every registered listener.
//
// Registry tracks listener sinks keyed by a uuid. Broadcaster copies each chunk to a snapshot
// of the registry and prunes listeners that have gone away or cannot keep up. ChannelSink
// is the per-listener buffer that an HTTP handler drains into its response.
package broadcast
