package api_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/okian/epidash/internal/adapters/http/api"
	"github.com/okian/epidash/internal/adapters/repository"
	"github.com/okian/epidash/internal/adapters/source"
	service "github.com/okian/epidash/internal/app"
	"github.com/okian/epidash/internal/domain/model"
	"github.com/okian/epidash/internal/domain/timeseries"
	"github.com/okian/epidash/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

// mockDeps implements api.Dependencies.
type mockDeps struct {
	cases       service.CasesView
	casesErr    error
	lastCountry string
	regions     []model.AggregatedRegion
	entries     []types.RegionEntry
	rankErr     error
	dates       []string
	frames      []model.AnimationFrame
	choropleth  []byte
	choroErr    error
	refreshErr  error
	startErr    error
	running     bool
	interval    time.Duration
	lastStart   time.Duration
}

func (m *mockDeps) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true, "regions": len(m.regions)}
}

func (m *mockDeps) Cases(country string) (service.CasesView, error) {
	m.lastCountry = country
	if m.casesErr != nil {
		return service.CasesView{}, m.casesErr
	}
	v := m.cases
	v.Country = country
	return v, nil
}

func (m *mockDeps) FocusCountry() string { return "US" }

func (m *mockDeps) Regions() ([]model.AggregatedRegion, error) { return m.regions, nil }

func (m *mockDeps) TopN(_ context.Context, n int) ([]types.RegionEntry, error) {
	if n > len(m.entries) {
		return m.entries, nil
	}
	return m.entries[:n], nil
}

func (m *mockDeps) Rank(_ context.Context, region string) (types.RegionEntry, error) {
	if m.rankErr != nil {
		return types.RegionEntry{}, m.rankErr
	}
	for _, e := range m.entries {
		if e.Region == region {
			return e, nil
		}
	}
	return types.RegionEntry{}, repository.ErrNotFound
}

func (m *mockDeps) Dates() ([]string, error) { return m.dates, nil }

func (m *mockDeps) TimelineMidpoint() (types.Midpoint, error) {
	return types.Midpoint{Latitude: 10, Longitude: 20}, nil
}

func (m *mockDeps) Frame(i int) (model.AnimationFrame, error) {
	if i < 0 || i >= len(m.frames) {
		return model.AnimationFrame{}, fmt.Errorf("%w: %d", timeseries.ErrDateIndexOutOfRange, i)
	}
	return m.frames[i], nil
}

func (m *mockDeps) StartAnimation(_ context.Context, interval time.Duration) (string, error) {
	if m.startErr != nil {
		return "", m.startErr
	}
	if m.running {
		return "", service.ErrAnimationRunning
	}
	m.running = true
	m.lastStart = interval
	return "run-1", nil
}

func (m *mockDeps) StopAnimation() bool {
	was := m.running
	m.running = false
	return was
}

func (m *mockDeps) AnimationStatus() service.AnimationStatus {
	return service.AnimationStatus{RunID: "run-1", Running: m.running, DateCount: len(m.dates)}
}

func (m *mockDeps) AnimationInterval() time.Duration { return m.interval }

func (m *mockDeps) Refresh(context.Context) error { return m.refreshErr }

func (m *mockDeps) Choropleth() ([]byte, error) {
	if m.choroErr != nil {
		return nil, m.choroErr
	}
	return m.choropleth, nil
}

func (m *mockDeps) ChoroplethRange() (service.ChoroplethRange, error) {
	if m.choroErr != nil {
		return service.ChoroplethRange{}, m.choroErr
	}
	return service.ChoroplethRange{Low: 51, High: 3000, OK: true}, nil
}

func newMockDeps() *mockDeps {
	return &mockDeps{
		cases: service.CasesView{
			Records: []model.RawRecord{{Country: "France", Latitude: 48, Longitude: 2, Confirmed: 50}},
		},
		regions: []model.AggregatedRegion{{Region: "France", Confirmed: 51}},
		entries: []types.RegionEntry{
			{Rank: 1, Region: "United States of America", Confirmed: 3000},
			{Rank: 2, Region: "Italy", Confirmed: 500},
			{Rank: 3, Region: "France", Confirmed: 51},
		},
		dates:      []string{"1/22/20", "1/23/20"},
		frames:     []model.AnimationFrame{{Index: 0, Date: "1/22/20"}, {Index: 1, Date: "1/23/20"}},
		choropleth: []byte(`{"type":"FeatureCollection","features":[]}`),
		interval:   100 * time.Millisecond,
	}
}

func serve(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestServerRoutes(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := newMockDeps()
		mux := http.NewServeMux()
		api.NewServer(deps, 2).Register(context.Background(), mux)

		Convey("Health should expose Prometheus metrics", func() {
			w := serve(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldContainSubstring, "text/plain")
		})

		Convey("Stats should return JSON", func() {
			w := serve(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldEqual, "application/json; charset=utf-8")
			So(w.Body.String(), ShouldContainSubstring, `"started":true`)
		})

		Convey("Cases should pass the country through", func() {
			w := serve(mux, http.MethodGet, "/api/cases?country=Italy", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.lastCountry, ShouldEqual, "Italy")

			w = serve(mux, http.MethodGet, "/api/cases?country=focus", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.lastCountry, ShouldEqual, "US")

			var view service.CasesView
			So(json.Unmarshal(w.Body.Bytes(), &view), ShouldBeNil)
			So(view.Records, ShouldHaveLength, 1)
		})

		Convey("Cases before startup should be unavailable", func() {
			deps.casesErr = service.ErrNotStarted
			w := serve(mux, http.MethodGet, "/api/cases", "")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(w.Body.String(), ShouldContainSubstring, "not_started")
		})

		Convey("Regions should list aggregates", func() {
			w := serve(mux, http.MethodGet, "/api/regions", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"region":"France"`)
		})

		Convey("Unsupported methods should be not found", func() {
			So(serve(mux, http.MethodPost, "/api/regions", "").Code, ShouldEqual, http.StatusNotFound)
			So(serve(mux, http.MethodGet, "/api/refresh", "").Code, ShouldEqual, http.StatusNotFound)
			So(serve(mux, http.MethodPut, "/api/animation", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestLeaderboardHandler(t *testing.T) {
	Convey("Given a leaderboard handler with a limit of 2", t, func() {
		h := api.NewLeaderboardHandler(newMockDeps(), 2)

		Convey("When the limit is valid", func() {
			w := httptest.NewRecorder()
			h.HandleGetLeaderboard(w, httptest.NewRequest(http.MethodGet, "/api/leaderboard?limit=1", http.NoBody))

			Convey("Then it should return that many entries", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var entries []types.RegionEntry
				So(json.Unmarshal(w.Body.Bytes(), &entries), ShouldBeNil)
				So(entries, ShouldHaveLength, 1)
				So(entries[0].Region, ShouldEqual, "United States of America")
			})
		})

		Convey("When the limit is missing", func() {
			w := httptest.NewRecorder()
			h.HandleGetLeaderboard(w, httptest.NewRequest(http.MethodGet, "/api/leaderboard", http.NoBody))

			Convey("Then it should return up to the maximum", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var entries []types.RegionEntry
				So(json.Unmarshal(w.Body.Bytes(), &entries), ShouldBeNil)
				So(entries, ShouldHaveLength, 2)
			})
		})

		Convey("When the limit is invalid or too large", func() {
			for _, q := range []string{"0", "-1", "abc"} {
				w := httptest.NewRecorder()
				h.HandleGetLeaderboard(w, httptest.NewRequest(http.MethodGet, "/api/leaderboard?limit="+q, http.NoBody))
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			}
			w := httptest.NewRecorder()
			h.HandleGetLeaderboard(w, httptest.NewRequest(http.MethodGet, "/api/leaderboard?limit=3", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(w.Body.String(), ShouldContainSubstring, "limit_exceeded")
		})
	})
}

func TestRankHandler(t *testing.T) {
	Convey("Given a rank handler", t, func() {
		deps := newMockDeps()
		h := api.NewRankHandler(deps)

		Convey("When the region exists", func() {
			w := httptest.NewRecorder()
			h.HandleGetRank(w, httptest.NewRequest(http.MethodGet, "/api/rank/Italy", http.NoBody))

			Convey("Then it should return the entry", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"rank":2`)
			})
		})

		Convey("When the region is unknown", func() {
			w := httptest.NewRecorder()
			h.HandleGetRank(w, httptest.NewRequest(http.MethodGet, "/api/rank/Atlantis", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the region is missing or nested", func() {
			for _, p := range []string{"/api/rank/", "/api/rank/a/b"} {
				w := httptest.NewRecorder()
				h.HandleGetRank(w, httptest.NewRequest(http.MethodGet, p, http.NoBody))
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			}
		})

		Convey("When the store fails", func() {
			deps.rankErr = errors.New("boom")
			w := httptest.NewRecorder()
			h.HandleGetRank(w, httptest.NewRequest(http.MethodGet, "/api/rank/Italy", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
		})
	})
}

func TestTimelineHandler(t *testing.T) {
	Convey("Given a timeline handler", t, func() {
		h := api.NewTimelineHandler(newMockDeps())

		Convey("Dates should include the midpoint", func() {
			w := httptest.NewRecorder()
			h.HandleGetDates(w, httptest.NewRequest(http.MethodGet, "/api/dates", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"dates":["1/22/20","1/23/20"]`)
			So(w.Body.String(), ShouldContainSubstring, `"midpoint"`)
		})

		Convey("A frame in range should be returned", func() {
			w := httptest.NewRecorder()
			h.HandleGetFrame(w, httptest.NewRequest(http.MethodGet, "/api/frames/1", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusOK)
			var frame model.AnimationFrame
			So(json.Unmarshal(w.Body.Bytes(), &frame), ShouldBeNil)
			So(frame.Date, ShouldEqual, "1/23/20")
		})

		Convey("A frame out of range should be not found", func() {
			w := httptest.NewRecorder()
			h.HandleGetFrame(w, httptest.NewRequest(http.MethodGet, "/api/frames/7", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("A malformed index should be a bad request", func() {
			w := httptest.NewRecorder()
			h.HandleGetFrame(w, httptest.NewRequest(http.MethodGet, "/api/frames/x", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestAnimationHandler(t *testing.T) {
	Convey("Given an animation handler", t, func() {
		deps := newMockDeps()
		mux := http.NewServeMux()
		mux.HandleFunc("/api/animation", api.NewAnimationHandler(deps).HandleAnimation)

		Convey("When starting without an interval", func() {
			w := serve(mux, http.MethodPost, "/api/animation", "")

			Convey("Then the default interval should be used", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(deps.lastStart, ShouldEqual, 100*time.Millisecond)
				So(w.Body.String(), ShouldContainSubstring, `"runId":"run-1"`)
			})

			Convey("Then a second start should conflict", func() {
				w := serve(mux, http.MethodPost, "/api/animation", "")
				So(w.Code, ShouldEqual, http.StatusConflict)
			})

			Convey("Then the status should report the run", func() {
				w := serve(mux, http.MethodGet, "/api/animation", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"running":true`)
			})

			Convey("Then stopping should report it", func() {
				w := serve(mux, http.MethodDelete, "/api/animation", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"stopped":true`)
			})
		})

		Convey("When starting with an interval in the body or query", func() {
			So(serve(mux, http.MethodPost, "/api/animation", `{"interval_ms":0}`).Code, ShouldEqual, http.StatusAccepted)
			So(deps.lastStart, ShouldEqual, time.Duration(0))

			deps.running = false
			So(serve(mux, http.MethodPost, "/api/animation?interval_ms=250", "").Code, ShouldEqual, http.StatusAccepted)
			So(deps.lastStart, ShouldEqual, 250*time.Millisecond)
		})

		Convey("When the interval is invalid", func() {
			So(serve(mux, http.MethodPost, "/api/animation", `{"interval_ms":-5}`).Code, ShouldEqual, http.StatusBadRequest)
			So(serve(mux, http.MethodPost, "/api/animation", `{not json`).Code, ShouldEqual, http.StatusBadRequest)
			So(serve(mux, http.MethodPost, "/api/animation?interval_ms=soon", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the service is not started", func() {
			deps.startErr = service.ErrNotStarted
			So(serve(mux, http.MethodPost, "/api/animation", "").Code, ShouldEqual, http.StatusServiceUnavailable)
		})
	})
}

func TestRefreshAndChoroplethHandlers(t *testing.T) {
	Convey("Given refresh and choropleth handlers", t, func() {
		deps := newMockDeps()
		mux := http.NewServeMux()
		api.NewServer(deps, 0).Register(context.Background(), mux)

		Convey("A successful refresh should report it", func() {
			w := serve(mux, http.MethodPost, "/api/refresh", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "refreshed")
		})

		Convey("An upstream failure should be a bad gateway", func() {
			deps.refreshErr = fmt.Errorf("%w: status 500", source.ErrSourceUnavailable)
			So(serve(mux, http.MethodPost, "/api/refresh", "").Code, ShouldEqual, http.StatusBadGateway)
		})

		Convey("A refresh during an animation should conflict", func() {
			deps.refreshErr = service.ErrAnimationRunning
			So(serve(mux, http.MethodPost, "/api/refresh", "").Code, ShouldEqual, http.StatusConflict)
		})

		Convey("The choropleth should be served as GeoJSON", func() {
			w := serve(mux, http.MethodGet, "/api/choropleth", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldEqual, "application/geo+json")
			So(w.Body.String(), ShouldContainSubstring, "FeatureCollection")

			w = serve(mux, http.MethodGet, "/api/choropleth/range", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"high":3000`)
		})

		Convey("A disabled choropleth should be not found", func() {
			deps.choroErr = service.ErrChoroplethDisabled
			So(serve(mux, http.MethodGet, "/api/choropleth", "").Code, ShouldEqual, http.StatusNotFound)
			So(serve(mux, http.MethodGet, "/api/choropleth/range", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestErrorKinds(t *testing.T) {
	Convey("Given API error helpers", t, func() {
		cause := errors.New("cause")

		Convey("WrapKind should match both kind and cause", func() {
			err := api.WrapKind("api.op", api.ErrBadRequest, cause)
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: bad request: cause")
		})

		Convey("NewKind and Wrap should format the operation", func() {
			So(api.NewKind("api.op", api.ErrNotFound).Error(), ShouldEqual, "api.op: not found")
			So(api.Wrap("api.op", cause).Error(), ShouldEqual, "api.op: cause")
			So(api.Wrap("api.op", nil), ShouldBeNil)
		})
	})
}
