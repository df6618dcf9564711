package types_test

import (
	"encoding/json"
	"testing"

	types "github.com/okian/epidash/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRegionEntry(t *testing.T) {
	Convey("Given a RegionEntry", t, func() {
		entry := types.RegionEntry{Rank: 1, Region: "Italy", Confirmed: 35713, Latitude: 43, Longitude: 12}

		Convey("When encoding it as JSON", func() {
			b, err := json.Marshal(entry)

			Convey("Then it uses the API field names", func() {
				So(err, ShouldBeNil)
				So(string(b), ShouldEqual, `{"rank":1,"region":"Italy","confirmed":35713,"latitude":43,"longitude":12}`)
			})
		})

		Convey("When zero-valued", func() {
			var zero types.RegionEntry

			Convey("Then the fields are empty", func() {
				So(zero.Rank, ShouldEqual, 0)
				So(zero.Region, ShouldEqual, "")
				So(zero.Confirmed, ShouldEqual, 0)
			})
		})
	})
}
