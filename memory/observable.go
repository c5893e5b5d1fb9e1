package memory

// ReadHook is called when a subscribed address is read. The value it returns
// is what the reader sees instead of the underlying memory.
type ReadHook func(addr uint16) uint8

// WriteHook is called when a subscribed address is written. The write still
// lands in the underlying memory afterwards.
type WriteHook func(addr uint16, val uint8)

// Observable wraps a Bank and gives individual addresses read and write
// side effects. Addresses with no subscribers behave exactly like the
// wrapped Bank.
type Observable struct {
	subject Bank
	reads   map[uint16][]ReadHook
	writes  map[uint16][]WriteHook
}

// NewObservable returns an Observable layered over subject.
func NewObservable(subject Bank) *Observable {
	return &Observable{
		subject: subject,
		reads:   make(map[uint16][]ReadHook),
		writes:  make(map[uint16][]WriteHook),
	}
}

// SubscribeToRead installs h for reads on each of addrs. When more than one
// hook is on an address all of them run in subscription order and the last
// one's value is returned.
func (o *Observable) SubscribeToRead(addrs []uint16, h ReadHook) {
	for _, a := range addrs {
		o.reads[a] = append(o.reads[a], h)
	}
}

// SubscribeToWrite installs h for writes on each of addrs.
func (o *Observable) SubscribeToWrite(addrs []uint16, h WriteHook) {
	for _, a := range addrs {
		o.writes[a] = append(o.writes[a], h)
	}
}

// Peek returns the underlying value at addr without running any hooks.
func (o *Observable) Peek(addr uint16) uint8 {
	return o.subject.Read(addr)
}

// Read implements the Bank interface for Read.
func (o *Observable) Read(addr uint16) uint8 {
	hooks := o.reads[addr]
	if len(hooks) == 0 {
		return o.subject.Read(addr)
	}
	var val uint8
	for _, h := range hooks {
		val = h(addr)
	}
	return val
}

// Write implements the Bank interface for Write.
func (o *Observable) Write(addr uint16, val uint8) {
	for _, h := range o.writes[addr] {
		h(addr, val)
	}
	o.subject.Write(addr, val)
}

// PowerOn implements the Bank interface for PowerOn. Subscriptions survive.
func (o *Observable) PowerOn() {
	o.subject.PowerOn()
}

// LoadByte is Read under the name the CPU core uses.
func (o *Observable) LoadByte(addr uint16) byte {
	return o.Read(addr)
}

// LoadBytes reads len(b) bytes one at a time so every port along the way
// sees its own access.
func (o *Observable) LoadBytes(addr uint16, b []byte) {
	for i := range b {
		b[i] = o.Read(addr + uint16(i))
	}
}

// LoadAddress returns the little endian 16 bit value at addr (low byte first).
func (o *Observable) LoadAddress(addr uint16) uint16 {
	lo := o.Read(addr)
	hi := o.Read(addr + 1)
	return (uint16(hi) << 8) + uint16(lo)
}

// StoreByte is Write under the name the CPU core uses.
func (o *Observable) StoreByte(addr uint16, v byte) {
	o.Write(addr, v)
}

// StoreBytes writes b one byte at a time.
func (o *Observable) StoreBytes(addr uint16, b []byte) {
	for i, v := range b {
		o.Write(addr+uint16(i), v)
	}
}
