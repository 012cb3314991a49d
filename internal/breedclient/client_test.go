package breedclient_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/breedid/internal/adapters/http/api"
	service "github.com/okian/breedid/internal/app"
	"github.com/okian/breedid/internal/breedclient"
	"github.com/okian/breedid/internal/domain/model"
	"github.com/okian/breedid/internal/domain/scoring"
	"github.com/okian/breedid/internal/domain/types"
	"github.com/okian/breedid/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	_ = logger.SetLevelString("error")
}

func newServer() (*httptest.Server, *service.Service) {
	svc := service.New(
		service.WithProcessingDelay(20*time.Millisecond),
		service.WithRandomSeed(3),
		service.WithNoticeWorkers(1),
	)
	if err := svc.Start(context.Background()); err != nil {
		panic(err)
	}
	mux := http.NewServeMux()
	api.NewServer(svc).Register(mux)
	return httptest.NewServer(mux), svc
}

func TestClient(t *testing.T) {
	Convey("Given a client against a live server", t, func() {
		srv, svc := newServer()
		defer svc.Stop()
		defer srv.Close()
		c := breedclient.New(srv.URL, breedclient.WithTimeout(5*time.Second))
		defer c.Close()
		ctx := context.Background()

		Convey("When checking health", func() {
			So(c.Health(ctx), ShouldBeNil)
		})

		Convey("When searching the catalog", func() {
			list, err := c.SearchBreeds(ctx, "gir", "")

			Convey("Then the matching breed should come back", func() {
				So(err, ShouldBeNil)
				So(list.Count, ShouldEqual, 1)
				So(list.Breeds[0].ID, ShouldEqual, "gir")
				So(list.Total, ShouldEqual, 10)
			})
		})

		Convey("When listing uses and fetching one breed", func() {
			uses, err := c.Uses(ctx)
			So(err, ShouldBeNil)
			So(uses, ShouldContain, "Dairy")

			b, err := c.Breed(ctx, "jersey")
			So(err, ShouldBeNil)
			So(b.Name, ShouldEqual, "Jersey")
		})

		Convey("When identifying an uploaded image", func() {
			view, err := c.CreateSession(ctx)
			So(err, ShouldBeNil)
			sub, err := c.UploadImage(ctx, view.ID, "cow.jpg", "image/jpeg", bytes.NewReader([]byte("\xff\xd8\xff")), "drop")
			So(err, ShouldBeNil)
			So(sub.Accepted, ShouldBeTrue)

			res, err := c.Identify(ctx, view.ID, true)

			Convey("Then ranked results and a report should be available", func() {
				So(err, ShouldBeNil)
				So(res.Completed, ShouldBeTrue)
				So(breedclient.VerifyResults(res.Session.Results, scoring.DefaultResultCount, nil), ShouldBeNil)

				report, err := c.Report(ctx, view.ID)
				So(err, ShouldBeNil)
				So(report, ShouldContainSubstring, res.Session.Results[0].BreedName)

				reset, err := c.Reset(ctx, view.ID)
				So(err, ShouldBeNil)
				So(reset.State, ShouldEqual, "idle")
				So(c.DeleteSession(ctx, view.ID), ShouldBeNil)
			})
		})

		Convey("When uploading a non-image by drop", func() {
			view, _ := c.CreateSession(ctx)
			sub, err := c.UploadImage(ctx, view.ID, "notes.txt", "text/plain", bytes.NewReader([]byte("moo")), "drop")

			Convey("Then it should be ignored", func() {
				So(err, ShouldBeNil)
				So(sub.Ignored, ShouldBeTrue)
			})
		})

		Convey("When addressing an unknown session", func() {
			_, err := c.Session(ctx, "missing")

			Convey("Then an APIError with 404 should be returned", func() {
				var apiErr *breedclient.APIError
				So(errors.As(err, &apiErr), ShouldBeTrue)
				So(apiErr.Status, ShouldEqual, http.StatusNotFound)
				So(apiErr.Code, ShouldEqual, "not_found")
			})
		})

		Convey("When running a smoke test", func() {
			stats, err := c.Smoke(ctx, breedclient.SmokeConfig{Runs: 6, Workers: 2})

			Convey("Then every run should pass", func() {
				So(err, ShouldBeNil)
				So(stats.Runs, ShouldEqual, 6)
				So(stats.Passed, ShouldEqual, 6)
				So(stats.Failed, ShouldEqual, 0)
				total := 0
				for _, n := range stats.BreedHits {
					total += n
				}
				So(total, ShouldEqual, 18)
				So(stats.TopBreeds(), ShouldNotBeEmpty)
			})
		})
	})
}

func TestClientUnhealthy(t *testing.T) {
	Convey("Given a server that fails health checks", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()
		c := breedclient.New(srv.URL + "/")
		defer c.Close()

		Convey("Then Health and Smoke should report it", func() {
			So(errors.Is(c.Health(context.Background()), breedclient.ErrUnhealthy), ShouldBeTrue)
			_, err := c.Smoke(context.Background(), breedclient.SmokeConfig{Runs: 1})
			So(errors.Is(err, breedclient.ErrUnhealthy), ShouldBeTrue)
		})
	})
}

func TestVerifyResults(t *testing.T) {
	pred := func(rank int, id string, conf float64) types.RankedPrediction {
		return types.RankedPrediction{
			Rank:       rank,
			Prediction: model.Prediction{BreedID: id, Confidence: conf},
			Tier:       scoring.ConfidenceTier(conf),
		}
	}
	known := map[string]struct{}{"a": {}, "b": {}, "c": {}}

	Convey("Given result sets to verify", t, func() {
		Convey("A well-formed set should pass", func() {
			set := []types.RankedPrediction{pred(1, "a", 0.9), pred(2, "b", 0.7), pred(3, "c", 0.5)}
			So(breedclient.VerifyResults(set, 3, known), ShouldBeNil)
		})

		Convey("A short set should fail", func() {
			set := []types.RankedPrediction{pred(1, "a", 0.9)}
			So(errors.Is(breedclient.VerifyResults(set, 3, known), breedclient.ErrInvariant), ShouldBeTrue)
		})

		Convey("Duplicate breeds should fail", func() {
			set := []types.RankedPrediction{pred(1, "a", 0.9), pred(2, "a", 0.7)}
			So(errors.Is(breedclient.VerifyResults(set, 2, known), breedclient.ErrInvariant), ShouldBeTrue)
		})

		Convey("Unknown breeds should fail", func() {
			set := []types.RankedPrediction{pred(1, "z", 0.9)}
			So(errors.Is(breedclient.VerifyResults(set, 1, known), breedclient.ErrInvariant), ShouldBeTrue)
		})

		Convey("Out of order ranks should fail", func() {
			set := []types.RankedPrediction{pred(2, "a", 0.9), pred(1, "b", 0.7)}
			So(errors.Is(breedclient.VerifyResults(set, 2, known), breedclient.ErrInvariant), ShouldBeTrue)
		})

		Convey("A mismatched tier should fail", func() {
			p := pred(1, "a", 0.9)
			p.Tier = scoring.TierLow
			So(errors.Is(breedclient.VerifyResults([]types.RankedPrediction{p}, 1, known), breedclient.ErrInvariant), ShouldBeTrue)
		})
	})
}
