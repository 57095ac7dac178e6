// Gambit - Chess Statistics over an Embedded Read-Mostly Dataset
// Copyright 2026 Gambit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gambit-analytics/gambit

package database

import (
	"context"
	"time"

	"github.com/gambit-analytics/gambit/internal/database/query"
)

// TTLs carries the per-endpoint cache lifetimes for the statistics queries.
type TTLs struct {
	Overview time.Duration
	Openings time.Duration
	Results  time.Duration
	Games    time.Duration
}

// StatsService exposes the chess statistics queries used by the API layer.
// Every method goes through the executor, so results are cached, pooled, and
// breaker-guarded uniformly.
type StatsService struct {
	exec *Executor
	ttl  TTLs
}

// NewStatsService wires a stats service over an executor.
func NewStatsService(e *Executor, ttl TTLs) *StatsService {
	return &StatsService{exec: e, ttl: ttl}
}

// Overview is the dataset-wide aggregate snapshot.
type Overview struct {
	TotalGames    int64   `json:"total_games"`
	DistinctECOs  int64   `json:"distinct_ecos"`
	AvgWhiteElo   float64 `json:"avg_white_elo"`
	AvgBlackElo   float64 `json:"avg_black_elo"`
	WhiteWins     int64   `json:"white_wins"`
	BlackWins     int64   `json:"black_wins"`
	Draws         int64   `json:"draws"`
	EarliestGame  string  `json:"earliest_game"`
	LatestGame    string  `json:"latest_game"`
}

// OpeningStat is one row of the openings leaderboard.
type OpeningStat struct {
	ECO      string  `json:"eco"`
	Opening  string  `json:"opening"`
	Games    int64   `json:"games"`
	WhiteWin float64 `json:"white_win_pct"`
	BlackWin float64 `json:"black_win_pct"`
	Draw     float64 `json:"draw_pct"`
}

// ResultStat is the share of one game result across the filtered set.
type ResultStat struct {
	Result string  `json:"result"`
	Games  int64   `json:"games"`
	Share  float64 `json:"share_pct"`
}

// Game is one game row in a listing, without the move text.
type Game struct {
	ID          int64  `json:"id"`
	Site        string `json:"site"`
	White       string `json:"white"`
	Black       string `json:"black"`
	WhiteElo    int64  `json:"white_elo"`
	BlackElo    int64  `json:"black_elo"`
	Result      string `json:"result"`
	ECO         string `json:"eco"`
	Opening     string `json:"opening"`
	TimeControl string `json:"time_control"`
	Termination string `json:"termination"`
	PlayedAt    string `json:"played_at"`
}

// GamesPage is a page of games plus the filtered total for pagination.
type GamesPage struct {
	Games []Game `json:"games"`
	Total int64  `json:"total"`
}

// GamesFilter narrows a games listing. Zero values mean "no filter".
type GamesFilter struct {
	Player  string // matches either color
	White   string
	Black   string
	ECO     string
	Opening string // substring match
	Result  string
	MinElo  int // applied to both players
	Limit   int
	Offset  int
}

// OpeningsFilter narrows the openings leaderboard.
type OpeningsFilter struct {
	ECOPrefix string // e.g. "B" for all Sicilian-family codes, "B12" exact
	MinGames  int
	MinElo    int
	Limit     int
}

// GetOverview returns the dataset-wide aggregates.
func (s *StatsService) GetOverview(ctx context.Context) (*Overview, bool, error) {
	sql := `SELECT
    COUNT(*) AS total_games,
    COUNT(DISTINCT eco) AS distinct_ecos,
    AVG(white_elo) AS avg_white_elo,
    AVG(black_elo) AS avg_black_elo,
    COUNT(*) FILTER (WHERE result = '1-0') AS white_wins,
    COUNT(*) FILTER (WHERE result = '0-1') AS black_wins,
    COUNT(*) FILTER (WHERE result = '1/2-1/2') AS draws,
    CAST(MIN(played_at) AS VARCHAR) AS earliest_game,
    CAST(MAX(played_at) AS VARCHAR) AS latest_game
FROM games`

	r, cached, err := s.exec.Get(ctx, sql, nil, s.ttl.Overview)
	if err != nil {
		return nil, false, err
	}
	if r == nil {
		return &Overview{}, cached, nil
	}

	return &Overview{
		TotalGames:   asInt64(r["total_games"]),
		DistinctECOs: asInt64(r["distinct_ecos"]),
		AvgWhiteElo:  asFloat64(r["avg_white_elo"]),
		AvgBlackElo:  asFloat64(r["avg_black_elo"]),
		WhiteWins:    asInt64(r["white_wins"]),
		BlackWins:    asInt64(r["black_wins"]),
		Draws:        asInt64(r["draws"]),
		EarliestGame: asString(r["earliest_game"]),
		LatestGame:   asString(r["latest_game"]),
	}, cached, nil
}

// GetTopOpenings returns the openings leaderboard ordered by game count.
func (s *StatsService) GetTopOpenings(ctx context.Context, f OpeningsFilter) ([]OpeningStat, bool, error) {
	b := query.NewBuilder("games").
		Select(
			"eco",
			"opening",
			"COUNT(*) AS games",
			"100.0 * COUNT(*) FILTER (WHERE result = '1-0') / COUNT(*) AS white_win_pct",
			"100.0 * COUNT(*) FILTER (WHERE result = '0-1') / COUNT(*) AS black_win_pct",
			"100.0 * COUNT(*) FILTER (WHERE result = '1/2-1/2') / COUNT(*) AS draw_pct",
		).
		WhereNotNull("opening").
		GroupBy("eco", "opening").
		OrderBy("games DESC").
		Limit(f.Limit)

	if f.ECOPrefix != "" {
		b.WhereLike("eco", f.ECOPrefix+"%")
	}
	if f.MinElo > 0 {
		b.Where("white_elo >= ? AND black_elo >= ?", f.MinElo, f.MinElo)
	}
	if f.MinGames > 0 {
		b.Having("COUNT(*) >= ?", f.MinGames)
	}

	sql, args := b.Build()
	rows, cached, err := s.exec.Query(ctx, sql, args, s.ttl.Openings)
	if err != nil {
		return nil, false, err
	}

	out := make([]OpeningStat, 0, len(rows))
	for _, r := range rows {
		out = append(out, OpeningStat{
			ECO:      asString(r["eco"]),
			Opening:  asString(r["opening"]),
			Games:    asInt64(r["games"]),
			WhiteWin: asFloat64(r["white_win_pct"]),
			BlackWin: asFloat64(r["black_win_pct"]),
			Draw:     asFloat64(r["draw_pct"]),
		})
	}
	return out, cached, nil
}

// GetResultBreakdown returns how games split across results.
func (s *StatsService) GetResultBreakdown(ctx context.Context) ([]ResultStat, bool, error) {
	sql := `SELECT
    result,
    COUNT(*) AS games,
    100.0 * COUNT(*) / SUM(COUNT(*)) OVER () AS share_pct
FROM games
GROUP BY result
ORDER BY games DESC`

	rows, cached, err := s.exec.Query(ctx, sql, nil, s.ttl.Results)
	if err != nil {
		return nil, false, err
	}

	out := make([]ResultStat, 0, len(rows))
	for _, r := range rows {
		out = append(out, ResultStat{
			Result: asString(r["result"]),
			Games:  asInt64(r["games"]),
			Share:  asFloat64(r["share_pct"]),
		})
	}
	return out, cached, nil
}

// GetGames returns a filtered, paginated games listing plus its total.
func (s *StatsService) GetGames(ctx context.Context, f GamesFilter) (*GamesPage, bool, error) {
	b := query.NewBuilder("games").
		Select("id", "site", "white", "black", "white_elo", "black_elo",
			"result", "eco", "opening", "time_control", "termination",
			"CAST(played_at AS VARCHAR) AS played_at")

	if f.Player != "" {
		b.Where("(white = ? OR black = ?)", f.Player, f.Player)
	}
	if f.White != "" {
		b.WhereEq("white", f.White)
	}
	if f.Black != "" {
		b.WhereEq("black", f.Black)
	}
	if f.ECO != "" {
		b.WhereEq("eco", f.ECO)
	}
	if f.Opening != "" {
		b.WhereLike("opening", "%"+f.Opening+"%")
	}
	if f.Result != "" {
		b.WhereEq("result", f.Result)
	}
	if f.MinElo > 0 {
		b.Where("white_elo >= ? AND black_elo >= ?", f.MinElo, f.MinElo)
	}

	countSQL, countArgs := b.BuildCount()

	b.OrderBy("played_at DESC", "id DESC").Limit(f.Limit).Offset(f.Offset)
	listSQL, listArgs := b.Build()

	rows, listCached, err := s.exec.Query(ctx, listSQL, listArgs, s.ttl.Games)
	if err != nil {
		return nil, false, err
	}

	countRow, countCached, err := s.exec.Get(ctx, countSQL, countArgs, s.ttl.Games)
	if err != nil {
		return nil, false, err
	}

	page := &GamesPage{Games: make([]Game, 0, len(rows))}
	for _, r := range rows {
		page.Games = append(page.Games, Game{
			ID:          asInt64(r["id"]),
			Site:        asString(r["site"]),
			White:       asString(r["white"]),
			Black:       asString(r["black"]),
			WhiteElo:    asInt64(r["white_elo"]),
			BlackElo:    asInt64(r["black_elo"]),
			Result:      asString(r["result"]),
			ECO:         asString(r["eco"]),
			Opening:     asString(r["opening"]),
			TimeControl: asString(r["time_control"]),
			Termination: asString(r["termination"]),
			PlayedAt:    asString(r["played_at"]),
		})
	}
	if countRow != nil {
		page.Total = asInt64(countRow["total"])
	}

	return page, listCached && countCached, nil
}

// asInt64 coerces a driver value to int64. DuckDB integer columns surface as
// several widths depending on the column type.
func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int16:
		return int64(n)
	case int8:
		return int64(n)
	case int:
		return int64(n)
	case uint64:
		return int64(n)
	case uint32:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func asFloat64(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	default:
		return 0
	}
}

func asString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	default:
		return ""
	}
}
