// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"

	groupstore "github.com/dalemusser/cohortdesk/internal/app/store/groups"
	messagestore "github.com/dalemusser/cohortdesk/internal/app/store/messages"
	submissionstore "github.com/dalemusser/cohortdesk/internal/app/store/submissions"
	userstore "github.com/dalemusser/cohortdesk/internal/app/store/users"
	"github.com/dalemusser/cohortdesk/internal/app/system/integrity"
	"github.com/dalemusser/cohortdesk/internal/app/system/workers"
)

// sweeper is the background integrity sweep, started here and stopped
// in Shutdown.
var sweeper *workers.IntegritySweep

// Startup runs one-time application initialization after DB connections
// and schema setup are complete, but before the HTTP handler is built.
//
// CohortDesk starts the periodic referential-integrity sweep: user
// deletes leave dangling member and creator references behind, and the
// sweep repairs aggregates that nobody has read since.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	db := deps.MongoDatabase
	reconciler := integrity.NewReconciler(
		groupstore.New(db),
		userstore.New(db),
		submissionstore.New(db),
		messagestore.New(db),
		logger,
	)
	sweeper = workers.NewIntegritySweep(reconciler, logger, appCfg.SweepInterval)
	sweeper.Start()
	return nil
}
