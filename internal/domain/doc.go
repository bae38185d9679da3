// Package domain defines the core domain types and interfaces.
//
// Playback states, the playback snapshot, mix levels and the sentinel errors shared by the
// engine and the HTTP layer live here. No implementation code - just contracts.
// Interfaces are kept small so each adapter can be swapped in tests.
package domain
