package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/gigledger/internal/adapters/worker"
)

func TestMap(t *testing.T) {
	Convey("Given a pool limited to four concurrent calls", t, func() {
		ctx := context.Background()
		pool := worker.NewPool(worker.WithLimit(4), worker.WithName("test"))
		So(pool.Limit(), ShouldEqual, 4)

		var inflight, peak atomic.Int64
		double := func(_ context.Context, n int) (string, error) {
			cur := inflight.Add(1)
			defer inflight.Add(-1)
			for {
				old := peak.Load()
				if cur <= old || peak.CompareAndSwap(old, cur) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			return fmt.Sprint(n * 2), nil
		}

		Convey("When the batch is empty", func() {
			out, err := worker.Map(ctx, pool, []int{}, double)

			Convey("Then an empty, non-nil result is returned", func() {
				So(err, ShouldBeNil)
				So(out, ShouldNotBeNil)
				So(out, ShouldBeEmpty)
			})
		})

		Convey("When the batch holds a single key", func() {
			out, err := worker.Map(ctx, pool, []int{21}, double)

			Convey("Then the single result is returned", func() {
				So(err, ShouldBeNil)
				So(out, ShouldResemble, []string{"42"})
			})
		})

		Convey("When the batch is large", func() {
			keys := make([]int, 500)
			for i := range keys {
				keys[i] = i
			}
			out, err := worker.Map(ctx, pool, keys, double)

			Convey("Then results keep key order", func() {
				So(err, ShouldBeNil)
				So(out, ShouldHaveLength, 500)
				for i, v := range out {
					So(v, ShouldEqual, fmt.Sprint(i*2))
				}
			})

			Convey("Then concurrency never exceeds the limit", func() {
				So(peak.Load(), ShouldBeLessThanOrEqualTo, int64(4))
				So(peak.Load(), ShouldBeGreaterThan, int64(0))
				So(inflight.Load(), ShouldEqual, int64(0))
			})
		})

		Convey("When one call fails", func() {
			boom := errors.New("node unavailable")
			var calls atomic.Int64
			out, err := worker.Map(ctx, pool, []int{1, 2, 3, 4, 5, 6, 7, 8}, func(ctx context.Context, n int) (int, error) {
				calls.Add(1)
				if n == 3 {
					return 0, boom
				}
				return n, nil
			})

			Convey("Then the error is returned unmodified without partial results", func() {
				So(err, ShouldEqual, boom)
				So(out, ShouldBeNil)
			})
		})

		Convey("When the parent context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			var calls atomic.Int64
			_, err := worker.Map(cctx, pool, []int{1, 2, 3}, func(context.Context, int) (int, error) {
				calls.Add(1)
				return 0, nil
			})

			Convey("Then no call is made", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(calls.Load(), ShouldEqual, int64(0))
			})
		})
	})

	Convey("Given a pool built without a limit", t, func() {
		pool := worker.NewPool(worker.WithLimit(0))

		Convey("Then it falls back to a CPU based default", func() {
			So(pool.Limit(), ShouldBeGreaterThan, 0)
		})
	})
}
