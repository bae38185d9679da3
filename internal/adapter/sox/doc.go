// Package sox invokes the sox command-line tool to probe bitrates and to mix an effect
// clip into a running program.
//
// The gateway owns no long-lived state. Probe runs to completion; Mix returns a stream
// backed by the running subprocess and is abandoned by closing it.
package sox
