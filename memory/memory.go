// Package memory defines the basic interfaces for working
// with a 6502 family memory map. Since each implementation
// that is emulated has specific mappings (including shadowed
// regions) this is defined as an interface.
//
// Flat is a plain 64k RAM and Observable layers per address
// read/write subscriptions on top of any Bank which is how
// memory mapped ports get their side effects. Both also implement
// the Load/Store method set the CPU core expects so either can be
// handed to it directly.
package memory

import "fmt"

type Bank interface {
	// Read returns the data byte stored at addr.
	Read(addr uint16) uint8
	// Write updates addr with the new value. For ROM addresses this is simply a no-op without
	// any error.
	Write(addr uint16, val uint8)
	// PowerOn performs power on reset of the memory. This is implementation specific as to
	// whether it's randomized or preset to all zeros.
	PowerOn()
}

// Flat implements a full 64k RAM with no mirroring or ROM regions.
type Flat struct {
	addr [65536]uint8
}

// Read implements the Bank interface for Read.
func (f *Flat) Read(addr uint16) uint8 {
	return f.addr[addr]
}

// Write implements the Bank interface for Write.
func (f *Flat) Write(addr uint16, val uint8) {
	f.addr[addr] = val
}

// PowerOn implements the Bank interface for PowerOn. RAM is zero filled.
func (f *Flat) PowerOn() {
	for i := range f.addr {
		f.addr[i] = 0x00
	}
}

// Load copies image into RAM starting at base. An image which would run
// past 0xFFFF is rejected rather than wrapped into zero page.
func (f *Flat) Load(base uint16, image []byte) error {
	if got, max := len(image), 65536-int(base); got > max {
		return fmt.Errorf("image of %d bytes doesn't fit at 0x%.4X (max %d bytes)", got, base, max)
	}
	copy(f.addr[base:], image)
	return nil
}

// LoadByte returns the byte at addr.
func (f *Flat) LoadByte(addr uint16) byte {
	return f.addr[addr]
}

// LoadBytes fills b starting at addr, wrapping at the end of memory.
func (f *Flat) LoadBytes(addr uint16, b []byte) {
	for i := range b {
		b[i] = f.addr[addr+uint16(i)]
	}
}

// LoadAddress returns the little endian 16 bit value stored at addr.
func (f *Flat) LoadAddress(addr uint16) uint16 {
	return (uint16(f.addr[addr+1]) << 8) + uint16(f.addr[addr])
}

// StoreByte sets addr to v.
func (f *Flat) StoreByte(addr uint16, v byte) {
	f.addr[addr] = v
}

// StoreBytes copies b into memory starting at addr, wrapping at the end of memory.
func (f *Flat) StoreBytes(addr uint16, b []byte) {
	for i, v := range b {
		f.addr[addr+uint16(i)] = v
	}
}
