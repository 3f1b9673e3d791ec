package models

import (
	"strings"

	"gorm.io/gorm"
)

// Scopes translating list query parameters into store filters. Each one is a
// no-op when its input is empty.

// Search matches term case-insensitively against any of columns.
func Search(term string, columns ...string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		term = strings.TrimSpace(term)
		if term == "" || len(columns) == 0 {
			return db
		}
		pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
		clauses := make([]string, 0, len(columns))
		args := make([]interface{}, 0, len(columns))
		for _, col := range columns {
			clauses = append(clauses, "LOWER("+col+") LIKE ? ESCAPE '\\'")
			args = append(args, pattern)
		}
		return db.Where("("+strings.Join(clauses, " OR ")+")", args...)
	}
}

// StatusIn keeps rows whose status is one of statuses.
func StatusIn(statuses []string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if len(statuses) == 0 {
			return db
		}
		return db.Where("status IN ?", statuses)
	}
}

// SkillsOverlap keeps rows whose JSON skills array shares at least one
// element with skills.
func SkillsOverlap(skills []string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if len(skills) == 0 {
			return db
		}
		switch db.Dialector.Name() {
		case "postgres":
			return db.Where("jsonb_typeof(skills) = 'array' AND EXISTS (SELECT 1 FROM jsonb_array_elements_text(skills) AS s(value) WHERE s.value IN ?)", skills)
		default:
			return db.Where("EXISTS (SELECT 1 FROM json_each(CAST(skills AS TEXT)) WHERE json_each.value IN ?)", skills)
		}
	}
}

// FieldEquals filters on column = value when value is non-zero.
func FieldEquals(column string, value uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if value == 0 {
			return db
		}
		return db.Where(column+" = ?", value)
	}
}

// UserSummary preloads only the public profile of a related user.
func UserSummary(db *gorm.DB) *gorm.DB {
	return db.Select("id", "name", "avatar")
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
