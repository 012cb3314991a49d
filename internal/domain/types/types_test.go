package types_test

import (
	"encoding/json"
	"testing"

	"github.com/okian/breedid/internal/domain/catalog"
	"github.com/okian/breedid/internal/domain/model"
	"github.com/okian/breedid/internal/domain/scoring"
	types "github.com/okian/breedid/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestBreedList(t *testing.T) {
	Convey("Given a filtered breed list", t, func() {
		list := types.BreedList{
			Breeds: []catalog.BreedRecord{{ID: "jersey", Name: "Jersey"}},
			Total:  10,
			Count:  1,
		}

		Convey("Then the summary should show count of total", func() {
			So(list.Summary(), ShouldEqual, "Showing 1 of 10 breeds")
		})
	})
}

func TestRankPredictions(t *testing.T) {
	Convey("Given predictions across all tiers", t, func() {
		preds := []model.Prediction{
			{BreedID: "holstein", Confidence: 0.91},
			{BreedID: "jersey", Confidence: 0.6},
			{BreedID: "brahman", Confidence: 0.59},
		}

		Convey("When ranking them", func() {
			ranked := types.RankPredictions(preds)

			Convey("Then ranks should start at 1 and tiers follow confidence", func() {
				So(ranked, ShouldHaveLength, 3)
				So(ranked[0].Rank, ShouldEqual, 1)
				So(ranked[2].Rank, ShouldEqual, 3)
				So(ranked[0].Tier, ShouldEqual, scoring.TierHigh)
				So(ranked[1].Tier, ShouldEqual, scoring.TierMedium)
				So(ranked[2].Tier, ShouldEqual, scoring.TierLow)
			})

			Convey("And the prediction fields should be flattened in JSON", func() {
				raw, err := json.Marshal(ranked[0])
				So(err, ShouldBeNil)
				var m map[string]any
				So(json.Unmarshal(raw, &m), ShouldBeNil)
				So(m["breed_id"], ShouldEqual, "holstein")
				So(m["rank"], ShouldEqual, 1.0)
				So(m["tier"], ShouldEqual, "high")
			})
		})

		Convey("When ranking nil", func() {
			Convey("Then nil should come back", func() {
				So(types.RankPredictions(nil), ShouldBeNil)
			})
		})
	})
}
