// Package io defines the basic interfaces for working
// with memory mapped 8 bit ports on the emulated bus.
// Unlike a latched 6532 style port these are character
// devices: every access is one transfer, so an input read
// consumes a value and an output write emits one.
package io

// Port8 defines an 8 bit input port.
type Port8 interface {
	// Input returns the next value from the port. 0 means nothing is available.
	Input() uint8
}

// Sink8 defines an 8 bit output port.
type Sink8 interface {
	// Output accepts one value written to the port.
	Output(val uint8)
}
