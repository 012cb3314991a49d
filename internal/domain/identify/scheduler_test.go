package identify_test

import (
	"testing"
	"time"

	"github.com/okian/breedid/internal/domain/identify"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManualScheduler(t *testing.T) {
	Convey("Given a manual scheduler", t, func() {
		start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		s := identify.NewManualScheduler(start)
		var order []string

		s.AfterFunc(20*time.Millisecond, func() { order = append(order, "b") })
		s.AfterFunc(10*time.Millisecond, func() { order = append(order, "a") })
		stopped := s.AfterFunc(15*time.Millisecond, func() { order = append(order, "x") })

		Convey("When a timer is stopped", func() {
			So(stopped.Stop(), ShouldBeTrue)
			So(stopped.Stop(), ShouldBeFalse)
			So(s.Pending(), ShouldEqual, 2)

			Convey("And the clock passes every deadline", func() {
				s.Advance(time.Second)

				Convey("Then the rest should run in due order", func() {
					So(order, ShouldResemble, []string{"a", "b"})
					So(s.Pending(), ShouldEqual, 0)
					So(s.Now(), ShouldEqual, start.Add(time.Second))
				})
			})
		})

		Convey("When the clock advances partway", func() {
			s.Advance(10 * time.Millisecond)

			Convey("Then only due continuations should run", func() {
				So(order, ShouldResemble, []string{"a"})
				So(s.Pending(), ShouldEqual, 2)
			})
		})

		Convey("When a fired timer is stopped", func() {
			s.Advance(time.Second)

			Convey("Then Stop should report false", func() {
				So(stopped.Stop(), ShouldBeFalse)
			})
		})
	})
}

func TestRealScheduler(t *testing.T) {
	Convey("Given the real scheduler", t, func() {
		var s identify.RealScheduler
		fired := make(chan struct{})

		Convey("When a continuation is scheduled", func() {
			s.AfterFunc(time.Millisecond, func() { close(fired) })

			Convey("Then it should run", func() {
				select {
				case <-fired:
				case <-time.After(2 * time.Second):
					So("continuation never ran", ShouldBeEmpty)
				}
			})
		})

		Convey("When a continuation is stopped early", func() {
			timer := s.AfterFunc(time.Hour, func() { close(fired) })

			Convey("Then Stop should succeed", func() {
				So(timer.Stop(), ShouldBeTrue)
			})
		})
	})
}
