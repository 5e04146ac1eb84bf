package domain

import "time"

// Article is a core entity describing one ingested research item.
type Article struct {
	ID          string
	Title       string
	Abstract    string
	Authors     []string
	Categories  []string
	Topic       string
	LinkAbs     string
	PublishedAt *time.Time
	Source      string
	ImageURL    *string
}

// DayPair names the two civil dates whose digests a run rebuilds.
type DayPair struct {
	Yesterday string `json:"yesterday"`
	Today     string `json:"today"`
}

// RunResult summarizes one orchestrator pass for the triggering caller.
type RunResult struct {
	Upserted int     `json:"upserted"`
	Days     DayPair `json:"days"`
}
