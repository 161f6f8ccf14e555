package commands

import (
	"database/sql"

	"github.com/anuraag-saini/fireqsp-share-sub000/config"
	"github.com/anuraag-saini/fireqsp-share-sub000/db"
	"github.com/anuraag-saini/fireqsp-share-sub000/errors"
	"github.com/anuraag-saini/fireqsp-share-sub000/logger"
	"github.com/anuraag-saini/fireqsp-share-sub000/pipeline"
)

// openDatabase opens and migrates the configured database. If dbPath is
// empty the path comes from config. Uses logger.Logger for db operations.
func openDatabase(dbPath string) (*sql.DB, error) {
	if dbPath == "" {
		cfg, _, err := config.Load()
		if err != nil {
			return nil, errors.Wrap(err, "failed to load config")
		}
		dbPath = cfg.Database.Path
	}

	database, err := db.Open(dbPath, logger.Logger)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database at %s", dbPath)
	}

	if err := db.Migrate(database, logger.Logger); err != nil {
		database.Close()
		return nil, errors.Wrapf(err, "failed to run migrations on %s", dbPath)
	}

	return database, nil
}

// plansFromConfig converts the config tier map into a resolver.
func plansFromConfig(cfg *config.Config) *pipeline.StaticPlans {
	plans := make(map[string]pipeline.PlanTier, len(cfg.Pipeline.Plans))
	for owner, tier := range cfg.Pipeline.Plans {
		plans[owner] = pipeline.PlanTier(tier)
	}
	return &pipeline.StaticPlans{
		Plans:   plans,
		Default: pipeline.PlanTier(cfg.Pipeline.DefaultPlan),
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
