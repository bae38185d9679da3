// Package websocket provides the live status feed.
//
// Hub is an actor that owns every status connection and pushes a JSON frame to each of them
// whenever the playback state changes.
package websocket
