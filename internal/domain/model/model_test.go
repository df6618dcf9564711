package model_test

import (
	"testing"

	"github.com/okian/epidash/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestTable(t *testing.T) {
	Convey("Given a table whose header carries a BOM and padding", t, func() {
		tbl := model.NewTable("mem://x", []string{"\ufeffProvince/State", " Country/Region ", "Lat", "Lat"}, [][]string{{"", "X", "1", "2"}})

		Convey("Then columns are indexed by their trimmed names", func() {
			So(tbl.Index("Province/State"), ShouldEqual, 0)
			So(tbl.Index("Country/Region"), ShouldEqual, 1)
			So(tbl.Index("Missing"), ShouldEqual, -1)
		})

		Convey("Then duplicated names resolve to the first column", func() {
			So(tbl.Index("Lat"), ShouldEqual, 2)
		})

		Convey("Then IndexAny picks the first present alternative", func() {
			So(tbl.IndexAny("Country_Region", "Country/Region"), ShouldEqual, 1)
			So(tbl.IndexAny("A", "B"), ShouldEqual, -1)
			So(tbl.Len(), ShouldEqual, 1)
		})
	})
}

func TestWideTimeSeriesClone(t *testing.T) {
	Convey("Given a time series", t, func() {
		ts := &model.WideTimeSeries{
			Dates: []string{"1/22/20"},
			Rows:  []model.SeriesRow{{Country: "X", Lat: 1, Long: 2, Values: []float64{5}}},
		}

		Convey("When cloning and mutating the clone", func() {
			c := ts.Clone()
			c.Rows[0].Long = 99
			c.Rows[0].Values[0] = 99
			c.Dates[0] = "changed"

			Convey("Then the original is untouched", func() {
				So(ts.Rows[0].Long, ShouldEqual, 2)
				So(ts.Rows[0].Values[0], ShouldEqual, 5)
				So(ts.Dates[0], ShouldEqual, "1/22/20")
			})
		})
	})
}
