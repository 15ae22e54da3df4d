package store

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

func TestMigrationsHaveMatchingUpAndDownFiles(t *testing.T) {
	migrationsDir := filepath.Join("..", "..", "db", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}

	pattern := regexp.MustCompile(`^(\d+)_.*\.(up|down)\.sql$`)
	byVersion := map[string]map[string]bool{}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		match := pattern.FindStringSubmatch(name)
		if match == nil {
			continue
		}
		version := match[1]
		direction := match[2]
		if byVersion[version] == nil {
			byVersion[version] = map[string]bool{}
		}
		if byVersion[version][direction] {
			t.Fatalf("duplicate %s migration file for version %s", direction, version)
		}
		byVersion[version][direction] = true
	}

	if len(byVersion) == 0 {
		t.Fatal("no migrations discovered")
	}

	for version, dirs := range byVersion {
		if !dirs["up"] || !dirs["down"] {
			t.Fatalf("version %s must include both up and down files", version)
		}
	}
}

func TestPostsMigrationBindsThreadAtMostOnce(t *testing.T) {
	contents, err := os.ReadFile(filepath.Join("..", "..", "db", "migrations", "0001_posts.up.sql"))
	if err != nil {
		t.Fatalf("read posts migration: %v", err)
	}
	sql := strings.Join(strings.Fields(string(contents)), " ")

	unique := regexp.MustCompile(`CREATE UNIQUE INDEX IF NOT EXISTS (\w+) ON posts \(discord_forum_post_id\) WHERE ([^;]+);`)
	match := unique.FindStringSubmatch(sql)
	if match == nil {
		t.Fatal("posts migration must declare a unique index on discord_forum_post_id")
	}
	predicate := match[2]
	for _, clause := range []string{"discord_forum_post_id IS NOT NULL", "discord_forum_post_id <> ''"} {
		if !strings.Contains(predicate, clause) {
			t.Fatalf("unique index predicate %q must exclude unbound rows with %q", predicate, clause)
		}
	}

	down, err := os.ReadFile(filepath.Join("..", "..", "db", "migrations", "0001_posts.down.sql"))
	if err != nil {
		t.Fatalf("read posts down migration: %v", err)
	}
	if !strings.Contains(string(down), "DROP INDEX IF EXISTS "+match[1]) {
		t.Fatalf("down migration must drop %s", match[1])
	}
}
