package properties

import "fmt"

// Field maps one API-facing field name (underscore convention) to its
// on-disk properties key (hyphen/dot convention). The table is exhaustive
// and checked at construction time so a renamed or mistyped field fails
// loudly instead of being silently skipped during an update.
type Field struct {
	Name string // API field name
	Key  string // server.properties key
}

// Fields enumerates every property the panel exposes for editing.
var Fields = []Field{
	{"allow_flight", "allow-flight"},
	{"allow_nether", "allow-nether"},
	{"difficulty", "difficulty"},
	{"enforce_whitelist", "enforce-whitelist"},
	{"gamemode", "gamemode"},
	{"hardcore", "hardcore"},
	{"level_name", "level-name"},
	{"level_seed", "level-seed"},
	{"level_type", "level-type"},
	{"max_players", "max-players"},
	{"motd", "motd"},
	{"pvp", "pvp"},
	{"simulation_distance", "simulation-distance"},
	{"view_distance", "view-distance"},
	{"white_list", "white-list"},
}

func validateFields(fields []Field) (byName map[string]string, err error) {
	byName = make(map[string]string, len(fields))
	byKey := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.Name == "" || f.Key == "" {
			return nil, fmt.Errorf("field table entry %+v has an empty side", f)
		}
		if _, dup := byName[f.Name]; dup {
			return nil, fmt.Errorf("field table: duplicate field name %q", f.Name)
		}
		if byKey[f.Key] {
			return nil, fmt.Errorf("field table: duplicate properties key %q", f.Key)
		}
		byName[f.Name] = f.Key
		byKey[f.Key] = true
	}
	return byName, nil
}
