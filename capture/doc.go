// Package capture drives a connected camera: it opens a capture session,
// reads thermal and palette frames on an interval or in bursts, retries
// recoverable native errors, and hands every frame to the snapshot writer,
// the capture store and any live-view publishers.
package capture
