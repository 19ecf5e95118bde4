package aggregate_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/okian/listeval/internal/domain/aggregate"
	"github.com/okian/listeval/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func rec(audio, system, metric string, score int, rater string) model.RatingRecord {
	return model.RatingRecord{Audio: audio, System: system, Metric: metric, Score: score, Rater: rater}
}

type stubSource struct {
	records []model.RatingRecord
	files   int
	err     error
}

func (s stubSource) LoadAll(context.Context) ([]model.RatingRecord, int, error) {
	return s.records, s.files, s.err
}

func TestAggregateTwoSystems(t *testing.T) {
	Convey("Given two raters scoring A and B on quality", t, func() {
		records := []model.RatingRecord{
			rec("/out/A/u1.mp3", "A", "quality", 3, "r1"),
			rec("/out/B/u1.mp3", "B", "quality", 5, "r1"),
			rec("/out/A/u1.mp3", "A", "quality", 4, "r2"),
			rec("/out/B/u1.mp3", "B", "quality", 4, "r2"),
		}
		rep := aggregate.Aggregate(records, aggregate.DefaultAlpha)

		Convey("Then one metric report should be produced", func() {
			So(rep.Records, ShouldEqual, 4)
			So(rep.Metrics, ShouldHaveLength, 1)
			mr := rep.Metrics[0]
			So(mr.Metric, ShouldEqual, "quality")
			So(mr.Systems, ShouldResemble, []string{"A", "B"})
			So(mr.Means["A"], ShouldEqual, 3.5)
			So(mr.Means["B"], ShouldEqual, 4.5)
			So(mr.Scores, ShouldResemble, []int{3, 4, 5})
			So(mr.Histogram["B"], ShouldResemble, map[int]int{4: 1, 5: 1})
		})

		Convey("Then rows should be pivoted by base item and rater", func() {
			mr := rep.Metrics[0]
			So(mr.Rows, ShouldHaveLength, 2)
			So(mr.Rows[0], ShouldResemble, aggregate.WideRow{Item: "u1", Rater: "r1", Scores: map[string]int{"A": 3, "B": 5}})
		})

		Convey("Then the pair (B, A) should hold later minus earlier", func() {
			mr := rep.Metrics[0]
			So(mr.Pairs, ShouldHaveLength, 1)
			p := mr.Pairs[0]
			So(p.Later, ShouldEqual, "B")
			So(p.Earlier, ShouldEqual, "A")
			So(p.State, ShouldEqual, aggregate.CellComputed)
			So(*p.Diff, ShouldEqual, 1.0)
			So(*p.PValue, ShouldAlmostEqual, 0.5, 1e-9)
			So(p.Significant, ShouldBeFalse)
		})

		Convey("Then only the lower triangle should be populated", func() {
			m := rep.Metrics[0].Matrix
			So(m[1][0].State, ShouldEqual, aggregate.CellComputed)
			So(m[0][1].State, ShouldEqual, aggregate.CellEmpty)
			So(m[0][0].State, ShouldEqual, aggregate.CellEmpty)
			So(m[1][1].State, ShouldEqual, aggregate.CellEmpty)
			So(m[0][1].Diff, ShouldBeNil)
		})
	})
}

func TestAggregateEdgeCases(t *testing.T) {
	Convey("Given a metric with a single system", t, func() {
		rep := aggregate.Aggregate([]model.RatingRecord{
			rec("a/u1.wav", "A", "clarity", 4, "r1"),
			rec("a/u2.wav", "A", "clarity", 2, "r1"),
		}, 0.05)

		Convey("Then no pairs should be produced", func() {
			mr := rep.Metrics[0]
			So(mr.Pairs, ShouldBeEmpty)
			So(mr.Matrix, ShouldHaveLength, 1)
			So(mr.Matrix[0][0].State, ShouldEqual, aggregate.CellEmpty)
		})

		Convey("Then the pairs encode as an empty list", func() {
			data, err := json.Marshal(rep.Metrics[0])
			So(err, ShouldBeNil)
			So(string(data), ShouldContainSubstring, `"pairs":[]`)
			So(string(data), ShouldNotContainSubstring, `"pairs":null`)
		})
	})

	Convey("Given nested groups that share an utterance name", t, func() {
		item := func(audio, system, id string, score int) model.RatingRecord {
			r := rec(audio, system, "quality", score, "r1")
			r.Item = id
			return r
		}
		rep := aggregate.Aggregate([]model.RatingRecord{
			item("/out/A/spk1/u1.mp3", "A", "spk1/u1", 3),
			item("/out/B/spk1/u1.mp3", "B", "spk1/u1", 5),
			item("/out/A/spk2/u1.mp3", "A", "spk2/u1", 2),
			item("/out/B/spk2/u1.mp3", "B", "spk2/u1", 3),
		}, 0.05)

		Convey("Then each group keeps its own row", func() {
			mr := rep.Metrics[0]
			So(mr.Rows, ShouldHaveLength, 2)
			So(mr.Duplicates, ShouldEqual, 0)
			So(mr.Rows[0], ShouldResemble, aggregate.WideRow{Item: "spk1/u1", Rater: "r1", Scores: map[string]int{"A": 3, "B": 5}})
			So(mr.Rows[1].Item, ShouldEqual, "spk2/u1")

			p := mr.Pairs[0]
			So(p.N, ShouldEqual, 2)
			So(p.State, ShouldEqual, aggregate.CellComputed)
			So(*p.Diff, ShouldAlmostEqual, 1.5, 1e-9)
		})
	})

	Convey("Given identical constant scores", t, func() {
		var records []model.RatingRecord
		for _, r := range []string{"r1", "r2", "r3"} {
			records = append(records,
				rec("a/u1.mp3", "A", "quality", 3, r),
				rec("b/u1.mp3", "B", "quality", 3, r),
			)
		}
		p := aggregate.Aggregate(records, 0.05).Metrics[0].Pairs[0]

		Convey("Then the p-value should be undefined, not zero and not empty", func() {
			So(p.State, ShouldEqual, aggregate.CellUndefined)
			So(p.PValue, ShouldBeNil)
			So(*p.Diff, ShouldEqual, 0)
			So(p.Significant, ShouldBeFalse)
		})
	})

	Convey("Given systems that were never rated on the same item", t, func() {
		p := aggregate.Aggregate([]model.RatingRecord{
			rec("a/u1.mp3", "A", "quality", 3, "r1"),
			rec("b/u2.mp3", "B", "quality", 5, "r1"),
		}, 0.05).Metrics[0].Pairs[0]

		Convey("Then the cell should be undefined with no difference", func() {
			So(p.State, ShouldEqual, aggregate.CellUndefined)
			So(p.N, ShouldEqual, 0)
			So(p.Diff, ShouldBeNil)
		})
	})

	Convey("Given a clear and consistent difference", t, func() {
		var records []model.RatingRecord
		scoresA := []int{1, 2, 1, 2, 1, 2, 1, 2}
		scoresC := []int{5, 5, 4, 5, 4, 5, 5, 4}
		for i := range scoresA {
			rater := string(rune('a' + i))
			records = append(records,
				rec("x/A/u1.mp3", "A", "quality", scoresA[i], rater),
				rec("x/C/u1.mp3", "C", "quality", scoresC[i], rater),
			)
		}
		p := aggregate.Aggregate(records, 0.05).Metrics[0].Pairs[0]

		Convey("Then it should be flagged significant", func() {
			So(p.Later, ShouldEqual, "C")
			So(p.State, ShouldEqual, aggregate.CellComputed)
			So(*p.PValue, ShouldBeLessThan, 0.05)
			So(p.Significant, ShouldBeTrue)
		})
	})

	Convey("Given three systems and two metrics", t, func() {
		var records []model.RatingRecord
		for _, r := range []string{"r1", "r2"} {
			for _, sys := range []string{"C", "A", "B"} {
				records = append(records,
					rec(sys+"/u1.mp3", sys, "timbre", 3, r),
					rec(sys+"/u1.mp3", sys, "clarity", 4, r),
				)
			}
		}
		rep := aggregate.Aggregate(records, 0.05)

		Convey("Then metrics and systems should be sorted and pairs complete", func() {
			So(rep.Metrics, ShouldHaveLength, 2)
			So(rep.Metrics[0].Metric, ShouldEqual, "clarity")
			mr := rep.Metrics[1]
			So(mr.Systems, ShouldResemble, []string{"A", "B", "C"})
			So(mr.Pairs, ShouldHaveLength, 3)
			So(mr.Pairs[0].Later+mr.Pairs[0].Earlier, ShouldEqual, "BA")
			So(mr.Pairs[1].Later+mr.Pairs[1].Earlier, ShouldEqual, "CA")
			So(mr.Pairs[2].Later+mr.Pairs[2].Earlier, ShouldEqual, "CB")
		})
	})

	Convey("Given a rater who submitted the same item twice", t, func() {
		rep := aggregate.Aggregate([]model.RatingRecord{
			rec("A/u1.mp3", "A", "quality", 2, "r1"),
			rec("A/u1.mp3", "A", "quality", 5, "r1"),
		}, 0.05)

		Convey("Then the later score should win and the duplicate be counted", func() {
			mr := rep.Metrics[0]
			So(mr.Duplicates, ShouldEqual, 1)
			So(mr.Rows[0].Scores["A"], ShouldEqual, 5)
			So(mr.Counts["A"], ShouldEqual, 2)
		})
	})

	Convey("Given no records", t, func() {
		rep := aggregate.Aggregate(nil, 0.05)
		So(rep.Metrics, ShouldBeEmpty)
	})
}

func TestAggregatorRun(t *testing.T) {
	Convey("Given an aggregator over a stub source", t, func() {
		fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		src := stubSource{files: 2, records: []model.RatingRecord{
			rec("A/u1.mp3", "A", "quality", 3, "r1"),
			rec("B/u1.mp3", "B", "quality", 5, "r1"),
		}}
		agg := aggregate.New(src, aggregate.WithAlpha(0.01), aggregate.WithClock(func() time.Time { return fixed }))

		Convey("When running", func() {
			rep, err := agg.Run(context.Background())

			Convey("Then the report should carry the snapshot details", func() {
				So(err, ShouldBeNil)
				So(rep.Files, ShouldEqual, 2)
				So(rep.Alpha, ShouldEqual, 0.01)
				So(rep.GeneratedAt, ShouldEqual, fixed)
				So(rep.Metrics, ShouldHaveLength, 1)
			})
		})

		Convey("When the source fails", func() {
			boom := errors.New("unreadable")
			_, err := aggregate.New(stubSource{err: boom}).Run(context.Background())

			Convey("Then the error should be wrapped", func() {
				So(errors.Is(err, boom), ShouldBeTrue)
			})
		})

		Convey("When an invalid alpha is given", func() {
			So(aggregate.New(src, aggregate.WithAlpha(2)).Alpha(), ShouldEqual, aggregate.DefaultAlpha)
		})
	})
}
