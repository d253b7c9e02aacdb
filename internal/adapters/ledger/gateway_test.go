package ledger_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/gigledger/internal/adapters/ledger"
	"github.com/okian/gigledger/internal/adapters/ledger/ledgertest"
	"github.com/okian/gigledger/internal/adapters/repository"
	"github.com/okian/gigledger/internal/domain/units"
)

func createProjectArgs(title string) []any {
	return []any{
		title, "build a thing",
		big.NewInt(2_500_000_000),
		big.NewInt(1_900_000_000),
		[]string{"go"}, uint8(1), uint8(2), uint8(0), []string{},
	}
}

func TestGatewayUninitialized(t *testing.T) {
	Convey("Given a gateway that was never initialized", t, func() {
		ctx := context.Background()
		chain := ledgertest.New()
		g := ledger.New(chain.Addresses())

		Convey("When a read is attempted", func() {
			_, err := g.Query(ctx, ledger.Marketplace, "getAllProjectIds")

			Convey("Then it fails fast without touching the ledger", func() {
				So(errors.Is(err, ledger.ErrUninitialized), ShouldBeTrue)
				So(chain.Interactions(), ShouldEqual, int64(0))
				So(g.Initialized(), ShouldBeFalse)
			})
		})

		Convey("When a write is attempted", func() {
			_, err := g.Submit(ctx, ledger.Marketplace, "createProject", nil, createProjectArgs("x")...)

			Convey("Then it fails fast without touching the ledger", func() {
				So(errors.Is(err, ledger.ErrUninitialized), ShouldBeTrue)
				So(chain.Interactions(), ShouldEqual, int64(0))
			})
		})

		Convey("When it is initialized with a nil connection", func() {
			err := g.Initialize(ctx, nil)

			Convey("Then it refuses and stays unbound", func() {
				So(errors.Is(err, ledger.ErrNilConnection), ShouldBeTrue)
				So(g.Initialized(), ShouldBeFalse)
			})
		})

		Convey("When the connection has nothing deployed at the addresses", func() {
			other := ledgertest.New(ledgertest.WithAddresses(ledger.Addresses{
				Marketplace: common.HexToAddress("0x01"),
				Escrow:      common.HexToAddress("0x02"),
				Reputation:  common.HexToAddress("0x03"),
			}))
			err := g.Initialize(ctx, other)

			Convey("Then binding fails and no call was made", func() {
				So(err, ShouldNotBeNil)
				So(g.Initialized(), ShouldBeFalse)
				So(other.Interactions(), ShouldEqual, int64(0))
			})
		})
	})
}

func TestGatewaySubmit(t *testing.T) {
	Convey("Given an initialized gateway with a journal", t, func() {
		ctx := context.Background()
		chain := ledgertest.New()
		journal := repository.NewMemoryJournal()
		g := ledger.New(chain.Addresses(), ledger.WithJournal(journal))
		So(g.Initialize(ctx, chain), ShouldBeNil)
		So(chain.Interactions(), ShouldEqual, int64(0))

		Convey("When a project is created", func() {
			conf, err := g.Submit(ctx, ledger.Marketplace, "createProject", nil, createProjectArgs("Logo")...)
			So(err, ShouldBeNil)

			Convey("Then the assigned identifier is decoded from its event", func() {
				id, err := conf.EventID("ProjectCreated", "projectId")
				So(err, ShouldBeNil)
				So(id.String(), ShouldEqual, "1")

				fields, err := conf.Event("ProjectCreated")
				So(err, ShouldBeNil)
				So(fields["title"], ShouldEqual, "Logo")
				So(fields["client"], ShouldEqual, chain.Signer())
			})

			Convey("Then the log of another contract is skipped", func() {
				So(len(conf.Logs()), ShouldEqual, 2)
				So(conf.Logs()[0].Address, ShouldNotEqual, chain.Addresses().Marketplace)
			})

			Convey("Then the journal holds a confirmed row", func() {
				row, err := journal.Get(ctx, conf.TxHash.Hex())
				So(err, ShouldBeNil)
				So(row.Status, ShouldEqual, repository.StatusConfirmed)
				So(row.Block, ShouldEqual, conf.Block)
				So(row.Method, ShouldEqual, "createProject")
			})

			Convey("Then asking for an event the contract does not emit fails", func() {
				_, err := conf.Event("NewReview")
				So(errors.Is(err, ledger.ErrEventNotFound), ShouldBeTrue)
			})
		})

		Convey("When the confirmation carries no matching event", func() {
			chain.DropEventsNext("createProject")
			conf, err := g.Submit(ctx, ledger.Marketplace, "createProject", nil, createProjectArgs("Lost")...)
			So(err, ShouldBeNil)

			Convey("Then decoding the identifier is an explicit error", func() {
				id, err := conf.EventID("ProjectCreated", "projectId")
				So(id, ShouldBeNil)
				So(errors.Is(err, ledger.ErrEventNotFound), ShouldBeTrue)
			})
		})

		Convey("When the ledger includes the transaction but reverts it", func() {
			chain.RevertNext("createProject")
			_, err := g.Submit(ctx, ledger.Marketplace, "createProject", nil, createProjectArgs("Nope")...)

			Convey("Then a rejection is returned and journaled", func() {
				So(errors.Is(err, ledger.ErrRejected), ShouldBeTrue)
				var rej *ledger.RejectedError
				So(errors.As(err, &rej), ShouldBeTrue)
				So(rej.TxHash, ShouldNotEqual, common.Hash{})

				row, jerr := journal.Get(ctx, rej.TxHash.Hex())
				So(jerr, ShouldBeNil)
				So(row.Status, ShouldEqual, repository.StatusRejected)
			})
		})

		Convey("When the ledger refuses the transaction before inclusion", func() {
			_, err := g.Submit(ctx, ledger.Marketplace, "createMilestone", nil,
				big.NewInt(42), "design", big.NewInt(1), big.NewInt(1_900_000_000))

			Convey("Then the rejection carries the ledger's reason unmodified", func() {
				So(errors.Is(err, ledger.ErrRejected), ShouldBeTrue)
				So(err.Error(), ShouldEqual, "project not found")

				rows, _ := journal.Recent(ctx, 0)
				So(rows, ShouldBeEmpty)
			})
		})

		Convey("When the network fails while sending", func() {
			boom := errors.New("dial tcp: connection refused")
			chain.FailNextSend("createProject", boom)
			_, err := g.Submit(ctx, ledger.Marketplace, "createProject", nil, createProjectArgs("x")...)

			Convey("Then the error is returned unmodified and not retried", func() {
				So(err, ShouldEqual, boom)
				So(chain.Sends(), ShouldEqual, int64(1))
			})
		})

		Convey("When the network fails during a read", func() {
			boom := errors.New("i/o timeout")
			chain.FailNextCall("getAllProjectIds", boom)
			_, err := g.Query(ctx, ledger.Marketplace, "getAllProjectIds")

			Convey("Then the error is returned unmodified", func() {
				So(err, ShouldEqual, boom)
			})
		})

		Convey("When the caller stops waiting for confirmation", func() {
			chain.Hold()
			waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
			defer cancel()
			_, err := g.Submit(waitCtx, ledger.Marketplace, "createProject", nil, createProjectArgs("Abandoned")...)
			chain.Release()

			Convey("Then the wait error is returned but the write still landed", func() {
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)

				rows, _ := journal.Recent(ctx, 1)
				So(rows, ShouldHaveLength, 1)
				So(rows[0].Status, ShouldEqual, repository.StatusSubmitted)

				out, err := g.Query(ctx, ledger.Marketplace, "getAllProjectIds")
				So(err, ShouldBeNil)
				ids := out.Decode().BigInts()
				So(ids, ShouldHaveLength, 1)
			})
		})
	})
}

func TestGatewayQuery(t *testing.T) {
	Convey("Given an initialized gateway", t, func() {
		ctx := context.Background()
		chain := ledgertest.New()
		g := ledger.New(chain.Addresses())
		So(g.Initialize(ctx, chain), ShouldBeNil)
		id := chain.AddProject("Seeded", big.NewInt(7))

		Convey("When a project is read", func() {
			out, err := g.Query(ctx, ledger.Marketplace, "getProject", id)
			So(err, ShouldBeNil)

			Convey("Then its outputs decode positionally", func() {
				d := out.Decode()
				So(d.BigInt().String(), ShouldEqual, id.String())
				So(d.Address(), ShouldEqual, chain.Signer())
				So(d.Address(), ShouldEqual, common.Address{})
				So(d.Text(), ShouldEqual, "Seeded")
				So(d.Err(), ShouldBeNil)
			})
		})

		Convey("When an unknown project is read", func() {
			_, err := g.Query(ctx, ledger.Marketplace, "getProject", big.NewInt(404))

			Convey("Then the revert is reported as a rejection", func() {
				So(errors.Is(err, ledger.ErrRejected), ShouldBeTrue)
				So(err.Error(), ShouldEqual, "project not found")
			})
		})

		Convey("When the gateway is re-initialized against another ledger", func() {
			other := ledgertest.New()
			So(g.Initialize(ctx, other), ShouldBeNil)
			out, err := g.Query(ctx, ledger.Marketplace, "getAllProjectIds")

			Convey("Then later calls use the new binding", func() {
				So(err, ShouldBeNil)
				So(out.Decode().BigInts(), ShouldBeEmpty)
			})
		})
	})
}

func TestDecoder(t *testing.T) {
	Convey("Given outputs of an unexpected shape", t, func() {
		out := ledger.Outputs{big.NewInt(1), "not an address"}

		Convey("When they are decoded past the mismatch", func() {
			d := out.Decode()
			n := d.BigInt()
			a := d.Address()
			s := d.Text()

			Convey("Then the first mismatch is kept and later values are zero", func() {
				So(n.Int64(), ShouldEqual, 1)
				So(a, ShouldEqual, common.Address{})
				So(s, ShouldEqual, "")
				So(errors.Is(d.Err(), ledger.ErrDecode), ShouldBeTrue)
				So(d.Err().Error(), ShouldContainSubstring, "output 1")
			})
		})

		Convey("When more values are read than exist", func() {
			d := ledger.Outputs{}.Decode()
			d.Strings()

			Convey("Then the missing value is reported", func() {
				So(errors.Is(d.Err(), ledger.ErrDecode), ShouldBeTrue)
				So(d.Err().Error(), ShouldContainSubstring, "missing")
			})
		})
	})
}

func TestDecoderRanges(t *testing.T) {
	Convey("Given uint256 outputs wider than their Go types", t, func() {
		wide := new(big.Int).Lsh(big.NewInt(1), 70)

		Convey("When a value past 64 bits is read as uint64", func() {
			d := ledger.Outputs{new(big.Int).Lsh(big.NewInt(1), 64)}.Decode()
			v := d.Uint64()

			Convey("Then it is a decode error, not a truncated number", func() {
				So(v, ShouldEqual, uint64(0))
				So(errors.Is(d.Err(), ledger.ErrDecode), ShouldBeTrue)
				So(d.Err().Error(), ShouldContainSubstring, "overflows uint64")
			})
		})

		Convey("When the largest uint64 is read", func() {
			top := new(big.Int).SetUint64(^uint64(0))
			d := ledger.Outputs{top}.Decode()

			Convey("Then it comes back whole", func() {
				So(d.Uint64(), ShouldEqual, ^uint64(0))
				So(d.Err(), ShouldBeNil)
			})
		})

		Convey("When seconds past millisecond range are read as a time", func() {
			d := ledger.Outputs{wide, big.NewInt(5)}.Decode()
			ts := d.Time()
			later := d.BigInt()

			Convey("Then it is a decode error and later reads stop", func() {
				So(ts.IsZero(), ShouldBeTrue)
				So(later.Sign(), ShouldEqual, 0)
				So(errors.Is(d.Err(), ledger.ErrDecode), ShouldBeTrue)
				So(errors.Is(d.Err(), units.ErrOutOfRange), ShouldBeTrue)
			})
		})

		Convey("When ordinary seconds are read as a time", func() {
			d := ledger.Outputs{big.NewInt(1_900_000_000)}.Decode()

			Convey("Then the instant is exact", func() {
				So(d.Time().Unix(), ShouldEqual, int64(1_900_000_000))
				So(d.Err(), ShouldBeNil)
			})
		})
	})
}

func TestRejectedError(t *testing.T) {
	Convey("Given a rejection wrapping a node error", t, func() {
		cause := errors.New("execution reverted: not client")
		err := error(&ledger.RejectedError{Reason: "not client", Err: cause})

		Convey("Then it matches ErrRejected and unwraps to the cause", func() {
			So(errors.Is(err, ledger.ErrRejected), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "not client")
		})
	})
}
