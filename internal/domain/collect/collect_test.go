package collect_test

import (
	"errors"
	"testing"

	"github.com/okian/listeval/internal/domain/collect"
	"github.com/okian/listeval/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func fiveSlotSheet() (*collect.Sheet, []collect.SlotKey) {
	sheet := collect.NewSheet(collect.Scale{Min: 1, Max: 5})
	var keys []collect.SlotKey
	for _, sys := range []string{"A", "B", "C", "D", "E"} {
		k := collect.SlotKey{Item: "u1", System: sys, Metric: "quality"}
		sheet.Expect(k, "/data/"+sys+"/u1.mp3")
		keys = append(keys, k)
	}
	return sheet, keys
}

func TestSheet(t *testing.T) {
	Convey("Given a sheet with five expected scores", t, func() {
		sheet, keys := fiveSlotSheet()
		So(sheet.Len(), ShouldEqual, 5)

		Convey("When one score is missing", func() {
			for _, k := range keys[:4] {
				So(sheet.Set(k, 3), ShouldBeNil)
			}
			_, err := sheet.Batch(model.SubmissionKey{Rater: "alice"})

			Convey("Then the batch should be rejected for missing scores only", func() {
				So(errors.Is(err, collect.ErrIncompleteScores), ShouldBeTrue)
				So(errors.Is(err, collect.ErrMissingRater), ShouldBeFalse)
				So(err.Error(), ShouldContainSubstring, "1 of 5")
				So(sheet.Missing(), ShouldResemble, []collect.SlotKey{keys[4]})
			})
		})

		Convey("When every score is set but the rater is blank", func() {
			for _, k := range keys {
				So(sheet.Set(k, 5), ShouldBeNil)
			}
			_, err := sheet.Batch(model.SubmissionKey{Rater: "   "})

			Convey("Then the batch should be rejected for the missing rater", func() {
				So(errors.Is(err, collect.ErrMissingRater), ShouldBeTrue)
				So(errors.Is(err, collect.ErrIncompleteScores), ShouldBeFalse)
			})
		})

		Convey("When both problems occur", func() {
			err := sheet.Validate("")

			Convey("Then both classes should be reported", func() {
				So(errors.Is(err, collect.ErrMissingRater), ShouldBeTrue)
				So(errors.Is(err, collect.ErrIncompleteScores), ShouldBeTrue)
			})
		})

		Convey("When the sheet is complete", func() {
			for i, k := range keys {
				So(sheet.Set(k, i+1), ShouldBeNil)
			}
			batch, err := sheet.Batch(model.SubmissionKey{Rater: " alice ", Page: 1, Paged: true})

			Convey("Then one record per slot should be produced in order", func() {
				So(err, ShouldBeNil)
				So(batch.Key.Rater, ShouldEqual, "alice")
				So(batch.Records, ShouldHaveLength, 5)
				So(batch.Records[0], ShouldResemble, model.RatingRecord{
					Audio: "/data/A/u1.mp3", System: "A", Metric: "quality", Score: 1, Rater: "alice", Item: "u1",
				})
				So(batch.Records[4].Score, ShouldEqual, 5)
			})
		})

		Convey("When a score is out of range", func() {
			err := sheet.Set(keys[0], 6)
			So(errors.Is(err, collect.ErrScoreOutOfRange), ShouldBeTrue)
			_, ok := sheet.Score(keys[0])
			So(ok, ShouldBeFalse)
		})

		Convey("When an unknown slot is set", func() {
			err := sheet.Set(collect.SlotKey{Item: "nope"}, 3)
			So(errors.Is(err, collect.ErrUnknownSlot), ShouldBeTrue)
		})

		Convey("When a slot is cleared", func() {
			So(sheet.Set(keys[2], 4), ShouldBeNil)
			sheet.Clear(keys[2])
			_, ok := sheet.Score(keys[2])
			So(ok, ShouldBeFalse)
		})

		Convey("When a slot is registered twice", func() {
			sheet.Expect(keys[0], "other.mp3")
			So(sheet.Len(), ShouldEqual, 5)
		})
	})
}

func TestCheckRater(t *testing.T) {
	Convey("Given rater identifiers", t, func() {
		So(collect.CheckRater("alice"), ShouldBeNil)
		So(collect.CheckRater("李雷"), ShouldBeNil)
		So(errors.Is(collect.CheckRater(""), collect.ErrMissingRater), ShouldBeTrue)
		So(errors.Is(collect.CheckRater("../etc"), collect.ErrInvalidRater), ShouldBeTrue)
		So(errors.Is(collect.CheckRater(`a\b`), collect.ErrInvalidRater), ShouldBeTrue)
		So(errors.Is(collect.CheckRater("a.b"), collect.ErrInvalidRater), ShouldBeTrue)
	})
}

func TestScale(t *testing.T) {
	Convey("Given a 1-5 scale", t, func() {
		s := collect.Scale{Min: 1, Max: 5}
		So(s.Values(), ShouldResemble, []int{1, 2, 3, 4, 5})
		So(s.Contains(0), ShouldBeFalse)
		So(s.Contains(5), ShouldBeTrue)
		So(collect.Scale{Min: 2, Max: 1}.Values(), ShouldBeEmpty)
	})
}
