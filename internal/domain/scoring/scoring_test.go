package scoring_test

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/okian/breedid/internal/domain/catalog"
	"github.com/okian/breedid/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func syntheticRecords(n int) []catalog.BreedRecord {
	out := make([]catalog.BreedRecord, n)
	for i := range out {
		out[i] = catalog.BreedRecord{ID: fmt.Sprintf("breed-%02d", i), Name: fmt.Sprintf("Breed %d", i)}
	}
	return out
}

func TestRandomRanker_Rank(t *testing.T) {
	Convey("Given a seeded ranker over the reference catalog", t, func() {
		records := catalog.Default().All()
		ranker := scoring.NewRandomRanker(scoring.WithSeed(42))

		Convey("When ranking 100 times", func() {
			Convey("Then every run should hold 3 distinct catalog breeds with bounded confidences", func() {
				for run := 0; run < 100; run++ {
					preds := ranker.Rank(records)
					So(preds, ShouldHaveLength, 3)

					seen := map[string]bool{}
					for _, p := range preds {
						So(seen[p.BreedID], ShouldBeFalse)
						seen[p.BreedID] = true

						rec, err := catalog.Default().Lookup(p.BreedID)
						So(err, ShouldBeNil)
						So(p.BreedName, ShouldEqual, rec.Name)
						So(p.Characteristics, ShouldResemble, rec.Characteristics)
						So(p.Confidence, ShouldBeBetweenOrEqual, 0.0, 1.0)
					}
				}
			})
		})

		Convey("When ranking must not disturb the input", func() {
			before := catalog.Default().All()
			_ = ranker.Rank(records)

			Convey("Then the caller's slice should keep catalog order", func() {
				So(records, ShouldResemble, before)
			})
		})
	})

	Convey("Given rank-dependent confidence bounds", t, func() {
		ranker := scoring.NewRandomRanker(scoring.WithSeed(7), scoring.WithResultCount(12))
		records := syntheticRecords(12)

		Convey("Then rank i should lie in [0.6-0.1i, 0.95-0.1i] clamped to [0, 1]", func() {
			for run := 0; run < 200; run++ {
				preds := ranker.Rank(records)
				So(preds, ShouldHaveLength, 12)
				for i, p := range preds {
					lo := max(0.0, 0.6-0.1*float64(i))
					hi := max(0.0, 0.95-0.1*float64(i))
					So(p.Confidence, ShouldBeBetweenOrEqual, lo-1e-9, hi+1e-9)
				}
				So(preds[10].Confidence, ShouldEqual, 0.0)
				So(preds[11].Confidence, ShouldEqual, 0.0)
			}
		})
	})

	Convey("Given many runs", t, func() {
		ranker := scoring.NewRandomRanker(scoring.WithRand(rand.New(rand.NewPCG(1, 2))))
		records := catalog.Default().All()
		const runs = 20000

		sums := make([]float64, 3)
		firstPlace := map[string]int{}
		for run := 0; run < runs; run++ {
			preds := ranker.Rank(records)
			firstPlace[preds[0].BreedID]++
			for i, p := range preds {
				sums[i] += p.Confidence
			}
		}

		Convey("Then expected confidence should fall with rank", func() {
			So(sums[0], ShouldBeGreaterThan, sums[1])
			So(sums[1], ShouldBeGreaterThan, sums[2])
		})

		Convey("Then every breed should lead about equally often", func() {
			So(firstPlace, ShouldHaveLength, 10)
			for _, n := range firstPlace {
				share := float64(n) / runs
				So(share, ShouldBeBetween, 0.085, 0.115)
			}
		})
	})

	Convey("Given a catalog smaller than the result count", t, func() {
		ranker := scoring.NewRandomRanker(scoring.WithSeed(3))

		Convey("Then every record should be returned once", func() {
			preds := ranker.Rank(syntheticRecords(2))
			So(preds, ShouldHaveLength, 2)
			So(preds[0].BreedID, ShouldNotEqual, preds[1].BreedID)
			So(ranker.Rank(nil), ShouldBeEmpty)
		})
	})

	Convey("Given two rankers with the same seed", t, func() {
		a := scoring.NewRandomRanker(scoring.WithSeed(99))
		b := scoring.NewRandomRanker(scoring.WithSeed(99))
		records := catalog.Default().All()

		Convey("Then they should produce identical runs", func() {
			for i := 0; i < 10; i++ {
				So(a.Rank(records), ShouldResemble, b.Rank(records))
			}
		})
	})

	Convey("Given invalid options", t, func() {
		ranker := scoring.NewRandomRanker(scoring.WithResultCount(0), scoring.WithSeed(0), scoring.WithRand(nil))

		Convey("Then the defaults should be kept", func() {
			So(ranker.ResultCount(), ShouldEqual, 3)
			So(ranker.Rank(catalog.Default().All()), ShouldHaveLength, 3)
		})
	})
}

func TestConfidenceTier(t *testing.T) {
	Convey("Given confidence values around the tier boundaries", t, func() {
		cases := []struct {
			confidence float64
			want       scoring.Tier
		}{
			{1.0, scoring.TierHigh},
			{0.8, scoring.TierHigh},
			{0.7999, scoring.TierMedium},
			{0.6, scoring.TierMedium},
			{0.5999, scoring.TierLow},
			{0, scoring.TierLow},
		}

		Convey("Then lower bounds should be inclusive", func() {
			for _, c := range cases {
				So(scoring.ConfidenceTier(c.confidence), ShouldEqual, c.want)
			}
		})
	})
}
