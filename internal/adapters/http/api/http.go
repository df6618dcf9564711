// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
)

// Dependencies required by HTTP handlers. Each handler depends only on its
// own narrow interface.
type Dependencies interface {
	StatsProvider
	CasesDependencies
	RegionsDependencies
	LeaderboardDependencies
	RankDependencies
	TimelineDependencies
	AnimationDependencies
	RefreshDependencies
	ChoroplethDependencies
}

// DefaultMaxLeaderboardLimit caps /api/leaderboard when no limit is given.
const DefaultMaxLeaderboardLimit = 100

// Server wires HTTP routes for the dashboard API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	casesHandler       *CasesHandler
	regionsHandler     *RegionsHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
	timelineHandler    *TimelineHandler
	animationHandler   *AnimationHandler
	refreshHandler     *RefreshHandler
	choroplethHandler  *ChoroplethHandler
}

// NewServer creates a new API server with all handlers. A non-positive
// maxLimit uses DefaultMaxLeaderboardLimit.
func NewServer(deps Dependencies, maxLimit int) *Server {
	if maxLimit < 1 {
		maxLimit = DefaultMaxLeaderboardLimit
	}
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(deps),
		casesHandler:       NewCasesHandler(deps),
		regionsHandler:     NewRegionsHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLimit),
		rankHandler:        NewRankHandler(deps),
		timelineHandler:    NewTimelineHandler(deps),
		animationHandler:   NewAnimationHandler(deps),
		refreshHandler:     NewRefreshHandler(deps),
		choroplethHandler:  NewChoroplethHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/api/cases", MetricsMiddleware(s.casesHandler.HandleGetCases, "cases"))
	mux.HandleFunc("/api/regions", MetricsMiddleware(s.regionsHandler.HandleGetRegions, "regions"))
	mux.HandleFunc("/api/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/api/rank/", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))
	mux.HandleFunc("/api/dates", MetricsMiddleware(s.timelineHandler.HandleGetDates, "dates"))
	mux.HandleFunc("/api/frames/", MetricsMiddleware(s.timelineHandler.HandleGetFrame, "frames"))
	mux.HandleFunc("/api/animation", MetricsMiddleware(s.animationHandler.HandleAnimation, "animation"))
	mux.HandleFunc("/api/refresh", MetricsMiddleware(s.refreshHandler.HandlePostRefresh, "refresh"))
	mux.HandleFunc("/api/choropleth", MetricsMiddleware(s.choroplethHandler.HandleGetChoropleth, "choropleth"))
	mux.HandleFunc("/api/choropleth/range", MetricsMiddleware(s.choroplethHandler.HandleGetRange, "choropleth_range"))
}
