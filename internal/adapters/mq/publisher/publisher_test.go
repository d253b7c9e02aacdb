package publisher_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/gigledger/internal/adapters/mq/publisher"
)

func TestNewEvent(t *testing.T) {
	Convey("Given a confirmed project creation", t, func() {
		ev := publisher.NewEvent(publisher.ProjectCreated, "0xabc", 12, map[string]string{"id": "1"})

		Convey("Then the envelope is filled in", func() {
			So(ev.ID, ShouldNotBeEmpty)
			So(ev.Type, ShouldEqual, "project.created")
			So(ev.OccurredAt.IsZero(), ShouldBeFalse)
		})

		Convey("When it is encoded", func() {
			raw, err := json.Marshal(ev)

			Convey("Then it uses snake case keys", func() {
				So(err, ShouldBeNil)
				So(string(raw), ShouldContainSubstring, `"tx_hash":"0xabc"`)
				So(string(raw), ShouldContainSubstring, `"data":{"id":"1"}`)
			})
		})
	})
}

func TestMemoryPublisher(t *testing.T) {
	Convey("Given an in-memory publisher", t, func() {
		ctx := context.Background()
		m := publisher.NewMemory()

		Convey("When events are published", func() {
			So(m.Publish(ctx, publisher.NewEvent(publisher.ReviewCreated, "0x1", 1, nil)), ShouldBeNil)
			So(m.Publish(ctx, publisher.NewEvent(publisher.ProposalAccepted, "0x2", 2, nil)), ShouldBeNil)

			Convey("Then they are kept in order", func() {
				evs := m.Events()
				So(evs, ShouldHaveLength, 2)
				So(evs[0].Type, ShouldEqual, publisher.ReviewCreated)
				So(evs[1].Type, ShouldEqual, publisher.ProposalAccepted)
			})
		})

		Convey("When publishing is set to fail", func() {
			boom := errors.New("broker down")
			m.FailWith(boom)

			Convey("Then the error is returned and nothing is kept", func() {
				So(m.Publish(ctx, publisher.NewEvent(publisher.ProjectCreated, "0x1", 1, nil)), ShouldEqual, boom)
				So(m.Events(), ShouldBeEmpty)
			})
		})
	})
}

func TestNopPublisher(t *testing.T) {
	Convey("Given the no-op publisher", t, func() {
		var p publisher.Publisher = publisher.Nop{}

		Convey("Then publishing and closing always succeed", func() {
			So(p.Publish(context.Background(), publisher.Event{}), ShouldBeNil)
			So(p.Close(), ShouldBeNil)
		})
	})
}
