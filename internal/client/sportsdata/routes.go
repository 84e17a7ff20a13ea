package sportsdata

import (
	"sportsync/internal/models"
)

// route describes where one sport lives on the provider. The provider exposes
// every sport behind the same request/response conventions but a different
// host and, for some sports, a different fixtures path ("fixtures" for
// football, "games" for most team sports, "races" for Formula-1, "fights"
// for MMA).
type route struct {
	Host         string
	FixturesPath string
	LeaguesPath  string
	TeamsPath    string
}

var routes = map[models.Sport]route{
	models.SportFootball: {
		Host:         "https://v3.football.api-sports.io",
		FixturesPath: "/fixtures",
		LeaguesPath:  "/leagues",
		TeamsPath:    "/teams",
	},
	models.SportBasketball: {
		Host:         "https://v1.basketball.api-sports.io",
		FixturesPath: "/games",
		LeaguesPath:  "/leagues",
		TeamsPath:    "/teams",
	},
	models.SportNBA: {
		Host:         "https://v2.nba.api-sports.io",
		FixturesPath: "/games",
		LeaguesPath:  "/leagues",
		TeamsPath:    "/teams",
	},
	models.SportHockey: {
		Host:         "https://v1.hockey.api-sports.io",
		FixturesPath: "/games",
		LeaguesPath:  "/leagues",
		TeamsPath:    "/teams",
	},
	models.SportMMA: {
		Host:         "https://v1.mma.api-sports.io",
		FixturesPath: "/fights",
		LeaguesPath:  "/leagues",
		TeamsPath:    "/fighters",
	},
	models.SportFormula1: {
		Host:         "https://v1.formula-1.api-sports.io",
		FixturesPath: "/races",
		LeaguesPath:  "/competitions",
		TeamsPath:    "/teams",
	},
	models.SportRugby: {
		Host:         "https://v1.rugby.api-sports.io",
		FixturesPath: "/games",
		LeaguesPath:  "/leagues",
		TeamsPath:    "/teams",
	},
	models.SportVolleyball: {
		Host:         "https://v1.volleyball.api-sports.io",
		FixturesPath: "/games",
		LeaguesPath:  "/leagues",
		TeamsPath:    "/teams",
	},
	models.SportHandball: {
		Host:         "https://v1.handball.api-sports.io",
		FixturesPath: "/games",
		LeaguesPath:  "/leagues",
		TeamsPath:    "/teams",
	},
	models.SportAFL: {
		Host:         "https://v1.afl.api-sports.io",
		FixturesPath: "/games",
		LeaguesPath:  "/leagues",
		TeamsPath:    "/teams",
	},
	models.SportAmericanFootball: {
		Host:         "https://v1.american-football.api-sports.io",
		FixturesPath: "/games",
		LeaguesPath:  "/leagues",
		TeamsPath:    "/teams",
	},
}
