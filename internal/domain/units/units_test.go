package units_test

import (
	"errors"
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/okian/gigledger/internal/domain/units"
	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"
)

func TestParseAmount(t *testing.T) {
	Convey("Given decimal currency amounts", t, func() {
		Convey("When parsing a fractional amount", func() {
			v, err := units.ParseAmount("2.5")

			Convey("Then it should be scaled to base units", func() {
				So(err, ShouldBeNil)
				So(v.String(), ShouldEqual, "2500000000000000000")
			})
		})

		Convey("When parsing the smallest unit", func() {
			v, err := units.ParseAmount("0.000000000000000001")

			Convey("Then it should be one base unit", func() {
				So(err, ShouldBeNil)
				So(v.Int64(), ShouldEqual, int64(1))
			})
		})

		Convey("When parsing an amount finer than the currency allows", func() {
			_, err := units.ParseAmount("0.0000000000000000001")

			Convey("Then it should be rejected as too precise", func() {
				So(errors.Is(err, units.ErrTooPrecise), ShouldBeTrue)
			})
		})

		Convey("When parsing garbage or negative input", func() {
			_, errGarbage := units.ParseAmount("two")
			_, errNegative := units.ParseAmount("-1")

			Convey("Then both should be invalid amounts", func() {
				So(errors.Is(errGarbage, units.ErrInvalidAmount), ShouldBeTrue)
				So(errors.Is(errNegative, units.ErrInvalidAmount), ShouldBeTrue)
			})
		})
	})
}

func TestFormatAmount(t *testing.T) {
	Convey("Given base unit values", t, func() {
		one := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

		Convey("Then whole amounts keep one fractional digit", func() {
			So(units.FormatAmount(one), ShouldEqual, "1.0")
			So(units.FormatAmount(big.NewInt(0)), ShouldEqual, "0.0")
			So(units.FormatAmount(nil), ShouldEqual, "0.0")
		})

		Convey("Then fractional amounts drop trailing zeros", func() {
			v, _ := new(big.Int).SetString("2500000000000000000", 10)
			So(units.FormatAmount(v), ShouldEqual, "2.5")
			So(units.FormatAmount(big.NewInt(1)), ShouldEqual, "0.000000000000000001")
		})
	})
}

func TestAmountRoundTrip(t *testing.T) {
	Convey("Given amounts with at most 18 fractional digits", t, func() {
		inputs := []string{
			"0", "1", "1.0", "2.5", "0.1", "123456789.123456789123456789",
			"0.000000000000000001", "1000000", "99.99", "7.000000000000000007",
		}

		Convey("Then encoding and decoding yields an equal value", func() {
			for _, in := range inputs {
				encoded, err := units.ParseAmount(in)
				So(err, ShouldBeNil)
				decoded := units.FormatAmount(encoded)
				want := decimal.RequireFromString(in)
				got := decimal.RequireFromString(decoded)
				So(got.Equal(want), ShouldBeTrue)
			}
		})
	})
}

func TestIdentifiers(t *testing.T) {
	Convey("Given ledger identifiers wider than 64 bits", t, func() {
		wide, _ := new(big.Int).SetString("340282366920938463463374607431768211457", 10)

		Convey("Then they survive the string boundary exactly", func() {
			s := units.ID(wide)
			So(s, ShouldEqual, "340282366920938463463374607431768211457")
			back, err := units.ParseID(s)
			So(err, ShouldBeNil)
			So(back.Cmp(wide), ShouldEqual, 0)
		})

		Convey("Then malformed identifiers are rejected", func() {
			_, err := units.ParseID("0x10")
			So(errors.Is(err, units.ErrInvalidID), ShouldBeTrue)
			_, err = units.ParseID("-3")
			So(errors.Is(err, units.ErrInvalidID), ShouldBeTrue)
		})
	})
}

func TestTimestamps(t *testing.T) {
	Convey("Given ledger seconds since epoch", t, func() {
		Convey("Then they convert to the same instant in milliseconds", func() {
			got, err := units.Time(big.NewInt(1_700_000_000))
			So(err, ShouldBeNil)
			So(got.UnixMilli(), ShouldEqual, int64(1_700_000_000_000))
			zero, err := units.Time(nil)
			So(err, ShouldBeNil)
			So(zero.UnixMilli(), ShouldEqual, int64(0))
		})

		Convey("Then a point in time converts back to whole seconds", func() {
			ts := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
			So(units.Seconds(ts).Int64(), ShouldEqual, ts.Unix())
			back, err := units.Time(units.Seconds(ts))
			So(err, ShouldBeNil)
			So(back.Equal(ts), ShouldBeTrue)
		})

		Convey("Then the largest millisecond-representable second count still converts", func() {
			edge := big.NewInt(math.MaxInt64 / 1000)
			got, err := units.Time(edge)
			So(err, ShouldBeNil)
			So(got.UnixMilli(), ShouldEqual, (math.MaxInt64/1000)*int64(1000))
		})

		Convey("Then values past millisecond range are refused instead of wrapping", func() {
			for _, seconds := range []*big.Int{
				big.NewInt(math.MaxInt64/1000 + 1),
				new(big.Int).Lsh(big.NewInt(1), 62),
				new(big.Int).Lsh(big.NewInt(1), 70),
				new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1)),
				big.NewInt(-1),
			} {
				_, err := units.Time(seconds)
				So(errors.Is(err, units.ErrOutOfRange), ShouldBeTrue)
			}
		})
	})
}

func TestRating(t *testing.T) {
	Convey("Given ratings scaled by ten", t, func() {
		Convey("Then they are divided by ten exactly", func() {
			So(units.Rating(big.NewInt(47)), ShouldEqual, 4.7)
			So(units.Rating(big.NewInt(45)), ShouldEqual, 4.5)
			So(units.Rating(big.NewInt(0)), ShouldEqual, 0.0)
			So(units.Rating(big.NewInt(50)), ShouldEqual, 5.0)
			So(units.Rating(nil), ShouldEqual, 0.0)
		})
	})
}
