package ledger

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/okian/gigledger/internal/domain/units"
)

// Outputs are the unpacked return values of a read.
type Outputs []any

// Decoder reads Outputs positionally. The first shape mismatch is kept and
// every later accessor returns a zero value; check Err once at the end.
type Decoder struct {
	out Outputs
	pos int
	err error
}

// Decode starts reading o from its first value.
func (o Outputs) Decode() *Decoder {
	return &Decoder{out: o}
}

// Err reports the first mismatch, wrapped in ErrDecode.
func (d *Decoder) Err() error {
	return d.err
}

func (d *Decoder) next(want string) any {
	if d.err != nil {
		return nil
	}
	if d.pos >= len(d.out) {
		d.err = fmt.Errorf("%w: output %d (%s) missing, got %d values", ErrDecode, d.pos, want, len(d.out))
		return nil
	}
	v := d.out[d.pos]
	d.pos++
	return v
}

func (d *Decoder) mismatch(want string, got any) {
	d.err = fmt.Errorf("%w: output %d is %T, want %s", ErrDecode, d.pos-1, got, want)
}

func (d *Decoder) BigInt() *big.Int {
	v := d.next("uint256")
	if d.err != nil {
		return new(big.Int)
	}
	n, ok := v.(*big.Int)
	if !ok || n == nil {
		d.mismatch("uint256", v)
		return new(big.Int)
	}
	return n
}

// Uint64 reads a uint256 that must fit in 64 bits.
func (d *Decoder) Uint64() uint64 {
	n := d.BigInt()
	if d.err != nil {
		return 0
	}
	if !n.IsUint64() {
		d.err = fmt.Errorf("%w: output %d value %s overflows uint64", ErrDecode, d.pos-1, n)
		return 0
	}
	return n.Uint64()
}

// Time reads a uint256 of seconds since epoch.
func (d *Decoder) Time() time.Time {
	n := d.BigInt()
	if d.err != nil {
		return time.Time{}
	}
	t, err := units.Time(n)
	if err != nil {
		d.err = fmt.Errorf("%w: output %d: %w", ErrDecode, d.pos-1, err)
		return time.Time{}
	}
	return t
}

func (d *Decoder) Uint8() uint8 {
	v := d.next("uint8")
	if d.err != nil {
		return 0
	}
	n, ok := v.(uint8)
	if !ok {
		d.mismatch("uint8", v)
	}
	return n
}

func (d *Decoder) Address() common.Address {
	v := d.next("address")
	if d.err != nil {
		return common.Address{}
	}
	a, ok := v.(common.Address)
	if !ok {
		d.mismatch("address", v)
	}
	return a
}

func (d *Decoder) Text() string {
	v := d.next("string")
	if d.err != nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		d.mismatch("string", v)
	}
	return s
}

func (d *Decoder) Strings() []string {
	v := d.next("string[]")
	if d.err != nil {
		return nil
	}
	s, ok := v.([]string)
	if !ok {
		d.mismatch("string[]", v)
	}
	return s
}

func (d *Decoder) BigInts() []*big.Int {
	v := d.next("uint256[]")
	if d.err != nil {
		return nil
	}
	s, ok := v.([]*big.Int)
	if !ok {
		d.mismatch("uint256[]", v)
	}
	return s
}

func (d *Decoder) Addresses() []common.Address {
	v := d.next("address[]")
	if d.err != nil {
		return nil
	}
	s, ok := v.([]common.Address)
	if !ok {
		d.mismatch("address[]", v)
	}
	return s
}
