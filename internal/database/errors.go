package database

import "regexp"

// Messages produced by Postgres (SQLSTATE 42703) and by PostgREST when its
// schema cache lacks a column (PGRST204).
var unknownColumnPatterns = []*regexp.Regexp{
	regexp.MustCompile(`column "([^"]+)" of relation "[^"]+" does not exist`),
	regexp.MustCompile(`Could not find the '([^']+)' column of '[^']+'`),
	regexp.MustCompile(`column "?(?:[A-Za-z0-9_]+\.)?([A-Za-z0-9_]+)"? does not exist`),
}

// unknownColumn extracts the column name from a store error message.
func unknownColumn(msg string) (string, bool) {
	for _, re := range unknownColumnPatterns {
		if m := re.FindStringSubmatch(msg); m != nil {
			return m[1], true
		}
	}
	return "", false
}
