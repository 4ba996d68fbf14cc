// Package config is the configuration of the coursetable command, read from config.json5 and
// config.local.json5 on top of built in defaults.
package config

import (
	"fmt"

	"coursetable/internal/browser"
	"coursetable/internal/components/telemetry"
	"coursetable/internal/curriculum"
	"coursetable/internal/offerings"
	"coursetable/internal/scrapers/catalog"
	"coursetable/internal/scrapers/tree"
	"coursetable/pkg/configutil"
)

const DefaultPath = "config.json5"

type CatalogConfig struct {
	Client catalog.Config        `json:"client"`
	Fetch  offerings.FetchConfig `json:"fetch"`
	// LookupConcurrency bounds the relation lookups of a single term.
	LookupConcurrency int `json:"lookup_concurrency"`
}

type TreeConfig struct {
	Crawl   tree.Options   `json:"crawl"`
	Browser browser.Config `json:"browser"`
}

type ScheduleConfig struct {
	Cron     string `json:"cron"`
	Timezone string `json:"timezone"`
	// Curricula lists the curriculum keys to process, empty means all of them.
	Curricula []string `json:"curricula"`
	// PreviousTerms is the number of terms before the current one kept up to date.
	PreviousTerms int      `json:"previous_terms"`
	OutputDir     string   `json:"output_dir"`
	Formats       []string `json:"formats"`
	// CrawlTree makes every scheduled run crawl the curriculum trees again.
	CrawlTree bool `json:"crawl_tree"`
}

type Config struct {
	// DataDir is where relative snapshot paths are placed.
	DataDir   string                       `json:"data_dir"`
	Catalog   CatalogConfig                `json:"catalog"`
	Tree      TreeConfig                   `json:"tree"`
	Schedule  ScheduleConfig               `json:"schedule"`
	Telemetry telemetry.Config             `json:"telemetry"`
	Curricula map[string]curriculum.Config `json:"curricula"`
}

func Default() Config {
	return Config{
		DataDir: "data",
		Catalog: CatalogConfig{
			Client:            catalog.DefaultConfig(),
			Fetch:             offerings.DefaultFetchConfig(),
			LookupConcurrency: 8,
		},
		Tree: TreeConfig{
			Crawl:   tree.DefaultOptions(),
			Browser: browser.DefaultConfig(),
		},
		Schedule: ScheduleConfig{
			Cron:          "0 4 * * *",
			PreviousTerms: 6,
			OutputDir:     "out",
			Formats:       []string{"html"},
		},
		Curricula: curriculum.Defaults(),
	}
}

// Load reads the config files at path over Default. Curricula entries replace the built in
// entry of the same key as a whole.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultPath
	}
	cfg, err := configutil.ReadWithDefaults(path, Default())
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return cfg, nil
}

// Curriculum resolves the curriculum with the given key.
func (c Config) Curriculum(key string) (curriculum.Curriculum, error) {
	entry, ok := c.Curricula[key]
	if !ok {
		return curriculum.Curriculum{}, fmt.Errorf("unknown curriculum %q (known: %v)", key, curriculum.Keys(c.Curricula))
	}
	return entry.Resolve(key, c.DataDir)
}

// ScheduledCurricula resolves the curricula processed by scheduled runs.
func (c Config) ScheduledCurricula() ([]curriculum.Curriculum, error) {
	keys := c.Schedule.Curricula
	if len(keys) == 0 {
		keys = curriculum.Keys(c.Curricula)
	}
	out := make([]curriculum.Curriculum, len(keys))
	for i, key := range keys {
		cur, err := c.Curriculum(key)
		if err != nil {
			return nil, err
		}
		out[i] = cur
	}
	return out, nil
}
