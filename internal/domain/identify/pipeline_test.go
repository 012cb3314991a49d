package identify_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/breedid/internal/domain/catalog"
	"github.com/okian/breedid/internal/domain/identify"
	"github.com/okian/breedid/internal/domain/model"
	"github.com/okian/breedid/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

const mib = 1024 * 1024

type noticeRecorder struct {
	mu      sync.Mutex
	notices []model.Notice
}

func (r *noticeRecorder) Notify(n model.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *noticeRecorder) kinds() []model.NoticeKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.NoticeKind, len(r.notices))
	for i, n := range r.notices {
		out[i] = n.Kind
	}
	return out
}

func image(size int64, mediaType string) model.Image {
	return model.Image{Filename: "cow.jpg", MediaType: mediaType, Size: size, Data: []byte("jpeg-bytes")}
}

type fixture struct {
	clock    *identify.ManualScheduler
	notices  *noticeRecorder
	pipeline *identify.Pipeline
}

func newFixture(opts ...identify.Option) fixture {
	clock := identify.NewManualScheduler(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	notices := &noticeRecorder{}
	seq := 0
	base := []identify.Option{
		identify.WithScheduler(clock),
		identify.WithNotifier(notices),
		identify.WithSessionID("session-1"),
		identify.WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		}),
	}
	p := identify.New(catalog.Default(), scoring.NewRandomRanker(scoring.WithSeed(42)), append(base, opts...)...)
	return fixture{clock: clock, notices: notices, pipeline: p}
}

func TestPipeline_SubmitImage(t *testing.T) {
	Convey("Given an idle pipeline", t, func() {
		f := newFixture()
		p := f.pipeline
		So(p.State(), ShouldEqual, identify.StateIdle)

		Convey("When submitting an image of exactly 10 MiB", func() {
			ok, err := p.SubmitImage(image(10*mib, "image/jpeg"), model.SourcePicker)

			Convey("Then it should be accepted with a preview reference", func() {
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				snap := p.Snapshot()
				So(snap.State, ShouldEqual, identify.StateImageSelected)
				So(snap.PreviewRef, ShouldNotBeEmpty)
				So(snap.Image, ShouldNotBeNil)
				So(snap.Image.Size, ShouldEqual, int64(10*mib))
				So(snap.Results, ShouldBeNil)
			})
		})

		Convey("When submitting an image one byte over 10 MiB", func() {
			ok, err := p.SubmitImage(image(10*mib+1, "image/jpeg"), model.SourcePicker)

			Convey("Then it should fail validation without changing state", func() {
				So(ok, ShouldBeFalse)
				var verr *identify.ValidationError
				So(errors.As(err, &verr), ShouldBeTrue)
				So(errors.Is(err, identify.ErrFileTooLarge), ShouldBeTrue)
				So(verr.Limit, ShouldEqual, int64(10*mib))
				So(p.State(), ShouldEqual, identify.StateIdle)
				So(p.Snapshot().PreviewRef, ShouldBeEmpty)
			})

			Convey("And a file-too-large notice should be published", func() {
				So(f.notices.kinds(), ShouldResemble, []model.NoticeKind{model.NoticeFileTooLarge})
				n := f.notices.notices[0]
				So(n.SessionID, ShouldEqual, "session-1")
				So(n.Destructive, ShouldBeTrue)
				So(n.Description, ShouldContainSubstring, "10MB")
			})
		})

		Convey("When dropping a non-image file", func() {
			ok, err := p.SubmitImage(image(100, "application/pdf"), model.SourceDrop)

			Convey("Then it should be ignored silently", func() {
				So(ok, ShouldBeFalse)
				So(err, ShouldBeNil)
				So(p.State(), ShouldEqual, identify.StateIdle)
				So(f.notices.kinds(), ShouldBeEmpty)
			})
		})

		Convey("When dropping an oversized non-image file", func() {
			ok, err := p.SubmitImage(image(20*mib, "text/plain"), model.SourceDrop)

			Convey("Then the media type check should win and nothing be surfaced", func() {
				So(ok, ShouldBeFalse)
				So(err, ShouldBeNil)
				So(f.notices.kinds(), ShouldBeEmpty)
			})
		})

		Convey("When picking a non-image file", func() {
			ok, err := p.SubmitImage(image(100, "application/pdf"), model.SourcePicker)

			Convey("Then the picker path should accept it", func() {
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(p.State(), ShouldEqual, identify.StateImageSelected)
			})
		})

		Convey("When dropping an oversized image", func() {
			_, err := p.SubmitImage(image(11*mib, "image/png"), model.SourceDrop)

			Convey("Then it should fail validation", func() {
				So(errors.Is(err, identify.ErrFileTooLarge), ShouldBeTrue)
			})
		})

		Convey("When a custom limit is configured", func() {
			small := newFixture(identify.WithMaxBytes(1024)).pipeline
			_, err := small.SubmitImage(image(1025, "image/png"), model.SourcePicker)

			Convey("Then the custom limit should apply", func() {
				So(errors.Is(err, identify.ErrFileTooLarge), ShouldBeTrue)
			})
		})
	})
}

func TestPipeline_SizeLimitNotice(t *testing.T) {
	Convey("Given pipelines with limits below one MiB", t, func() {
		cases := []struct {
			limit int64
			want  string
		}{
			{limit: 512 * 1024, want: "under 512KB"},
			{limit: mib + 512*1024, want: "under 1536KB"},
			{limit: 1000, want: "under 1000 bytes"},
			{limit: 2 * mib, want: "under 2MB"},
		}

		Convey("When an oversized image is picked", func() {
			Convey("Then the notice should state the real limit", func() {
				for _, c := range cases {
					f := newFixture(identify.WithMaxBytes(c.limit))
					_, err := f.pipeline.SubmitImage(image(c.limit+1, "image/png"), model.SourcePicker)
					So(errors.Is(err, identify.ErrFileTooLarge), ShouldBeTrue)
					So(f.notices.notices, ShouldHaveLength, 1)
					So(f.notices.notices[0].Description, ShouldEndWith, c.want)
					So(f.notices.notices[0].Description, ShouldNotContainSubstring, "0MB")
				}
			})
		})
	})
}

func TestPipeline_Identify(t *testing.T) {
	Convey("Given a pipeline holding an image", t, func() {
		f := newFixture()
		p := f.pipeline
		_, err := p.SubmitImage(image(2048, "image/jpeg"), model.SourcePicker)
		So(err, ShouldBeNil)

		var runs []identify.Run
		onDone := func(r identify.Run) { runs = append(runs, r) }

		Convey("When identify is called", func() {
			So(p.Identify(onDone), ShouldBeTrue)

			Convey("Then the pipeline should be processing with one pending timer", func() {
				So(p.State(), ShouldEqual, identify.StateProcessing)
				So(f.clock.Pending(), ShouldEqual, 1)
				So(p.Snapshot().PreviewRef, ShouldNotBeEmpty)
			})

			Convey("And nothing should complete before 3000 ms", func() {
				f.clock.Advance(2999 * time.Millisecond)
				So(p.State(), ShouldEqual, identify.StateProcessing)
				So(runs, ShouldBeEmpty)
			})

			Convey("And results should be ready at 3000 ms", func() {
				f.clock.Advance(3000 * time.Millisecond)

				So(p.State(), ShouldEqual, identify.StateResultsReady)
				So(runs, ShouldHaveLength, 1)
				So(runs[0].CompletedAt.Sub(runs[0].StartedAt), ShouldEqual, 3*time.Second)

				snap := p.Snapshot()
				So(snap.Results, ShouldHaveLength, 3)
				So(snap.Results, ShouldResemble, runs[0].Results)
				So(snap.PreviewRef, ShouldNotBeEmpty)
				So(f.notices.kinds(), ShouldResemble, []model.NoticeKind{model.NoticeIdentificationComplete})
			})

			Convey("And a second identify while processing should be a no-op", func() {
				So(p.Identify(onDone), ShouldBeFalse)
				So(f.clock.Pending(), ShouldEqual, 1)
			})
		})

		Convey("When identify is called after results are ready", func() {
			So(p.Identify(onDone), ShouldBeTrue)
			f.clock.Advance(3 * time.Second)

			Convey("Then it should be a silent no-op", func() {
				So(p.Identify(onDone), ShouldBeFalse)
				So(p.State(), ShouldEqual, identify.StateResultsReady)
			})
		})

		Convey("When a new image replaces finished results", func() {
			So(p.Identify(onDone), ShouldBeTrue)
			f.clock.Advance(3 * time.Second)
			oldRef := p.Snapshot().PreviewRef
			_, err := p.SubmitImage(image(10, "image/webp"), model.SourceDrop)

			Convey("Then results should be cleared and a new preview issued", func() {
				So(err, ShouldBeNil)
				snap := p.Snapshot()
				So(snap.State, ShouldEqual, identify.StateImageSelected)
				So(snap.Results, ShouldBeNil)
				So(snap.PreviewRef, ShouldNotEqual, oldRef)
				_, _, ok := p.Preview(oldRef)
				So(ok, ShouldBeFalse)
			})
		})
	})

	Convey("Given an idle pipeline", t, func() {
		f := newFixture()

		Convey("When identify is called", func() {
			Convey("Then it should return immediately without scheduling", func() {
				So(f.pipeline.Identify(nil), ShouldBeFalse)
				So(f.pipeline.State(), ShouldEqual, identify.StateIdle)
				So(f.clock.Pending(), ShouldEqual, 0)
			})
		})
	})
}

func TestPipeline_StaleCompletion(t *testing.T) {
	Convey("Given a run in flight", t, func() {
		f := newFixture()
		p := f.pipeline
		_, _ = p.SubmitImage(image(2048, "image/jpeg"), model.SourcePicker)
		var runs []identify.Run
		onDone := func(r identify.Run) { runs = append(runs, r) }
		So(p.Identify(onDone), ShouldBeTrue)

		Convey("When the session is reset before completion", func() {
			f.clock.Advance(time.Second)
			p.Reset()

			Convey("Then the waiter should learn of the cancellation at once", func() {
				So(runs, ShouldHaveLength, 1)
				So(runs[0].Cancelled, ShouldBeTrue)
				So(runs[0].Results, ShouldBeNil)
				So(runs[0].CompletedAt.Sub(runs[0].StartedAt), ShouldEqual, time.Second)
			})

			Convey("Then no results should be written later", func() {
				f.clock.Advance(5 * time.Second)
				snap := p.Snapshot()
				So(snap.State, ShouldEqual, identify.StateIdle)
				So(snap.Results, ShouldBeNil)
				So(snap.Image, ShouldBeNil)
				So(runs, ShouldHaveLength, 1)
				So(f.clock.Pending(), ShouldEqual, 0)
			})

			Convey("Then a second reset should not report again", func() {
				p.Reset()
				So(runs, ShouldHaveLength, 1)
			})
		})

		Convey("When the image is removed before completion", func() {
			p.RemoveImage()

			Convey("Then the run should be reported as cancelled", func() {
				So(runs, ShouldHaveLength, 1)
				So(runs[0].Cancelled, ShouldBeTrue)
			})
		})

		Convey("When the image is replaced and identified again", func() {
			f.clock.Advance(time.Second)
			_, _ = p.SubmitImage(image(4096, "image/png"), model.SourcePicker)
			So(runs, ShouldHaveLength, 1)
			So(runs[0].Cancelled, ShouldBeTrue)
			So(p.Identify(onDone), ShouldBeTrue)
			f.clock.Advance(2 * time.Second) // first run would have been due here

			Convey("Then only the second run should complete, at its own deadline", func() {
				So(p.State(), ShouldEqual, identify.StateProcessing)
				So(runs, ShouldHaveLength, 1)
				f.clock.Advance(time.Second)
				So(p.State(), ShouldEqual, identify.StateResultsReady)
				So(runs, ShouldHaveLength, 2)
				So(runs[1].Cancelled, ShouldBeFalse)
				So(runs[1].ID, ShouldBeGreaterThan, runs[0].ID)
				So(runs[1].Results, ShouldHaveLength, 3)
			})
		})

		Convey("When the timer fires despite being stopped", func() {
			// A scheduler whose Stop cannot cancel still must not leak old results.
			leaky := &leakyScheduler{ManualScheduler: identify.NewManualScheduler(time.Now())}
			lp := identify.New(catalog.Default(), scoring.NewRandomRanker(scoring.WithSeed(1)),
				identify.WithScheduler(leaky))
			_, _ = lp.SubmitImage(image(1, "image/png"), model.SourcePicker)
			So(lp.Identify(nil), ShouldBeTrue)
			lp.Reset()
			leaky.fireAll()

			Convey("Then the run id check should discard it", func() {
				So(lp.State(), ShouldEqual, identify.StateIdle)
				So(lp.Snapshot().Results, ShouldBeNil)
			})
		})
	})
}

// leakyScheduler records continuations and ignores Stop.
type leakyScheduler struct {
	*identify.ManualScheduler
	fns []func()
}

type noStop struct{}

func (noStop) Stop() bool { return false }

func (l *leakyScheduler) AfterFunc(_ time.Duration, f func()) identify.Timer {
	l.fns = append(l.fns, f)
	return noStop{}
}

func (l *leakyScheduler) fireAll() {
	for _, f := range l.fns {
		f()
	}
}

func TestPipeline_Reset(t *testing.T) {
	Convey("Given a pipeline with results", t, func() {
		f := newFixture()
		p := f.pipeline
		_, _ = p.SubmitImage(image(2048, "image/jpeg"), model.SourcePicker)
		p.Identify(nil)
		f.clock.Advance(3 * time.Second)
		So(p.State(), ShouldEqual, identify.StateResultsReady)

		Convey("When reset is called twice", func() {
			p.Reset()
			first := p.Snapshot()
			p.Reset()
			second := p.Snapshot()

			Convey("Then the pipeline should be idle both times with nothing retained", func() {
				for _, s := range []identify.Snapshot{first, second} {
					So(s.State, ShouldEqual, identify.StateIdle)
					So(s.Results, ShouldBeNil)
					So(s.Image, ShouldBeNil)
					So(s.PreviewRef, ShouldBeEmpty)
				}
			})
		})

		Convey("When the image is removed", func() {
			ref := p.Snapshot().PreviewRef
			p.RemoveImage()

			Convey("Then the preview should be revoked", func() {
				So(p.State(), ShouldEqual, identify.StateIdle)
				_, _, ok := p.Preview(ref)
				So(ok, ShouldBeFalse)
			})
		})
	})
}

func TestPipeline_Preview(t *testing.T) {
	Convey("Given a selected image", t, func() {
		f := newFixture()
		p := f.pipeline
		_, _ = p.SubmitImage(image(10, "image/png"), model.SourcePicker)
		ref := p.Snapshot().PreviewRef

		Convey("Then the current reference should serve the payload", func() {
			data, mediaType, ok := p.Preview(ref)
			So(ok, ShouldBeTrue)
			So(string(data), ShouldEqual, "jpeg-bytes")
			So(mediaType, ShouldEqual, "image/png")
		})

		Convey("Then unknown references should not", func() {
			_, _, ok := p.Preview("nope")
			So(ok, ShouldBeFalse)
			_, _, ok = p.Preview("")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestPipeline_DistinctResults(t *testing.T) {
	Convey("Given a seeded pipeline over the reference catalog", t, func() {
		f := newFixture()
		p := f.pipeline

		Convey("Then 100 runs should each yield 3 unique catalog ids in [0, 1]", func() {
			for run := 0; run < 100; run++ {
				_, err := p.SubmitImage(image(512, "image/jpeg"), model.SourcePicker)
				So(err, ShouldBeNil)
				So(p.Identify(nil), ShouldBeTrue)
				f.clock.Advance(identify.DefaultDelay)

				results := p.Snapshot().Results
				So(results, ShouldHaveLength, 3)
				seen := map[string]bool{}
				for _, r := range results {
					So(seen[r.BreedID], ShouldBeFalse)
					seen[r.BreedID] = true
					_, err := catalog.Default().Lookup(r.BreedID)
					So(err, ShouldBeNil)
					So(r.Confidence, ShouldBeBetweenOrEqual, 0.0, 1.0)
				}
			}
		})
	})

	Convey("Given a catalog with two breeds", t, func() {
		small := catalog.MustNew([]catalog.BreedRecord{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}})
		clock := identify.NewManualScheduler(time.Now())
		p := identify.New(small, scoring.NewRandomRanker(scoring.WithSeed(5)), identify.WithScheduler(clock))
		_, _ = p.SubmitImage(image(1, "image/png"), model.SourcePicker)
		p.Identify(nil)
		clock.Advance(identify.DefaultDelay)

		Convey("Then only two results should be produced", func() {
			So(p.Snapshot().Results, ShouldHaveLength, 2)
		})
	})
}

func TestPipeline_RealScheduler(t *testing.T) {
	Convey("Given a pipeline on real timers with a short delay", t, func() {
		p := identify.New(catalog.Default(), scoring.NewRandomRanker(), identify.WithDelay(10*time.Millisecond))
		_, _ = p.SubmitImage(image(1, "image/png"), model.SourcePicker)
		done := make(chan identify.Run, 1)

		Convey("When identify completes", func() {
			So(p.Identify(func(r identify.Run) { done <- r }), ShouldBeTrue)

			Convey("Then the callback should deliver the results", func() {
				select {
				case r := <-done:
					So(r.Results, ShouldHaveLength, 3)
					So(p.State(), ShouldEqual, identify.StateResultsReady)
				case <-time.After(2 * time.Second):
					So("timed out waiting for completion", ShouldBeEmpty)
				}
			})
		})
	})
}

func TestState_String(t *testing.T) {
	Convey("Given pipeline states", t, func() {
		So(identify.StateIdle.String(), ShouldEqual, "idle")
		So(identify.StateImageSelected.String(), ShouldEqual, "image_selected")
		So(identify.StateProcessing.String(), ShouldEqual, "processing")
		So(identify.StateResultsReady.String(), ShouldEqual, "results_ready")
		So(identify.State(9).String(), ShouldEqual, "state(9)")
	})
}
