package schema

import "fmt"

// Entity names accepted in load plans.
const (
	EntityPlayers    = "players"
	EntityRankings   = "rankings"
	EntityMatches    = "matches"
	EntityPlayersRef = "players_ref"
)

// Players is the tour player roster. Provider extracts arrive either
// headered (with either first_name/last_name or name_first/name_last
// spellings) or header-less in the legacy positional order.
var Players = Entity{
	Name:  EntityPlayers,
	Table: "players",
	Fields: []Field{
		{Name: "player_id", Type: TypeIdentInt, Required: true},
		{Name: "name_last", Type: TypeText, Synonyms: []string{"last_name"}, Required: true},
		{Name: "name_first", Type: TypeText, Synonyms: []string{"first_name"}, Required: true},
		{Name: "hand", Type: TypeText, Required: true},
		{Name: "dob", Type: TypeDate, Synonyms: []string{"birth_date"}, Required: true},
		{Name: "ioc", Type: TypeText, Synonyms: []string{"country_code"}, Required: true},
		{Name: "height_cm", Type: TypeInt, Synonyms: []string{"height"}},
	},
	Key:        []string{"player_id"},
	Sentinels:  []string{"player_id", "first_name", "name_first", "last_name", "name_last"},
	Positional: []string{"player_id", "first_name", "last_name", "hand", "birth_date", "country_code", "height"},
	Mode:       ModeAppend,
}

// Rankings are weekly ranking snapshots. The legacy extracts carry no
// header row at all; the positional layout is the canonical one.
var Rankings = Entity{
	Name:  EntityRankings,
	Table: "rankings",
	Fields: []Field{
		{Name: "ranking_date", Type: TypeDate, Required: true},
		{Name: "rank", Type: TypeInt, Synonyms: []string{"ranking"}},
		{Name: "player_id", Type: TypeIdentInt, Required: true},
		{Name: "points", Type: TypeInt, Synonyms: []string{"ranking_points"}},
	},
	Key:        []string{"ranking_date", "player_id"},
	Sentinels:  []string{"ranking_date", "ranking", "rank", "player_id"},
	Positional: []string{"ranking_date", "ranking", "player_id", "ranking_points"},
	Mode:       ModeAppend,
}

// Matches is the union of both match providers' layouts; the richer
// provider's columns are a superset of the leaner one's, so the leaner
// extracts simply leave the extra fields missing. Tournament and
// player identifiers stay textual: one provider uses alphanumeric ids.
var Matches = Entity{
	Name:  EntityMatches,
	Table: "matches",
	Fields: []Field{
		{Name: "tourney_id", Type: TypeIdentText, Required: true},
		{Name: "tourney_name", Type: TypeText, Required: true},
		{Name: "surface", Type: TypeText},
		{Name: "draw_size", Type: TypeInt},
		{Name: "tourney_level", Type: TypeText},
		{Name: "tourney_date", Type: TypeDate, Required: true},
		{Name: "match_num", Type: TypeInt, Required: true},
		{Name: "winner_id", Type: TypeIdentText},
		{Name: "winner_seed", Type: TypeInt},
		{Name: "winner_entry", Type: TypeText},
		{Name: "winner_name", Type: TypeText},
		{Name: "winner_hand", Type: TypeText},
		{Name: "winner_ht", Type: TypeInt},
		{Name: "winner_ioc", Type: TypeText},
		{Name: "winner_age", Type: TypeDecimal},
		{Name: "winner_rank", Type: TypeInt},
		{Name: "winner_rank_points", Type: TypeInt},
		{Name: "loser_id", Type: TypeIdentText},
		{Name: "loser_seed", Type: TypeInt},
		{Name: "loser_entry", Type: TypeText},
		{Name: "loser_name", Type: TypeText},
		{Name: "loser_hand", Type: TypeText},
		{Name: "loser_ht", Type: TypeInt},
		{Name: "loser_ioc", Type: TypeText},
		{Name: "loser_age", Type: TypeDecimal},
		{Name: "loser_rank", Type: TypeInt},
		{Name: "loser_rank_points", Type: TypeInt},
		{Name: "score", Type: TypeText},
		{Name: "best_of", Type: TypeInt},
		{Name: "round", Type: TypeText},
		{Name: "minutes", Type: TypeInt},
		{Name: "w_ace", Type: TypeInt},
		{Name: "w_df", Type: TypeInt},
		{Name: "w_svpt", Type: TypeInt},
		{Name: "w_1stin", Type: TypeInt},
		{Name: "w_1stwon", Type: TypeInt},
		{Name: "w_2ndwon", Type: TypeInt},
		{Name: "w_svgms", Type: TypeInt},
		{Name: "w_bpsaved", Type: TypeInt},
		{Name: "w_bpfaced", Type: TypeInt},
		{Name: "l_ace", Type: TypeInt},
		{Name: "l_df", Type: TypeInt},
		{Name: "l_svpt", Type: TypeInt},
		{Name: "l_1stin", Type: TypeInt},
		{Name: "l_1stwon", Type: TypeInt},
		{Name: "l_2ndwon", Type: TypeInt},
		{Name: "l_svgms", Type: TypeInt},
		{Name: "l_bpsaved", Type: TypeInt},
		{Name: "l_bpfaced", Type: TypeInt},
	},
	Key:       []string{"tourney_id", "tourney_date", "match_num"},
	Sentinels: []string{"tourney_id", "tourney_name", "tourney_date", "match_num", "winner_id"},
	Mode:      ModeUpsert,
}

// PlayersRef is the secondary player reference file (Latin-1 encoded,
// textual player ids, always headered).
var PlayersRef = Entity{
	Name:  EntityPlayersRef,
	Table: "players_ref",
	Fields: []Field{
		{Name: "player_id", Type: TypeIdentText, Synonyms: []string{"id"}, Required: true},
		{Name: "player", Type: TypeText, Required: true},
		{Name: "atpname", Type: TypeText, Required: true},
		{Name: "ioc", Type: TypeText, Required: true},
		{Name: "hand", Type: TypeText, Required: true},
		{Name: "backhand", Type: TypeText, Required: true},
		{Name: "height_cm", Type: TypeInt, Synonyms: []string{"height"}, Required: true},
		{Name: "birthdate", Type: TypeDate, Required: true},
	},
	Key:       []string{"player_id"},
	Sentinels: []string{"atpname", "backhand", "birthdate", "player"},
	Mode:      ModeUpsert,
}

var registry = map[string]*Entity{
	EntityPlayers:    &Players,
	EntityRankings:   &Rankings,
	EntityMatches:    &Matches,
	EntityPlayersRef: &PlayersRef,
}

// Lookup returns the entity definition for a plan entity name.
func Lookup(name string) (*Entity, error) {
	e, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown entity %q", name)
	}
	return e, nil
}

// Names lists the registered entity names (unordered).
func Names() []string {
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	return out
}
