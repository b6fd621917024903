// internal/app/bootstrap/routes.go
package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	assignmentsfeature "github.com/dalemusser/cohortdesk/internal/app/features/assignments"
	authfeature "github.com/dalemusser/cohortdesk/internal/app/features/auth"
	groupsfeature "github.com/dalemusser/cohortdesk/internal/app/features/groups"
	healthfeature "github.com/dalemusser/cohortdesk/internal/app/features/health"
	submissionsfeature "github.com/dalemusser/cohortdesk/internal/app/features/submissions"
	"github.com/dalemusser/cohortdesk/internal/app/membership"
	"github.com/dalemusser/cohortdesk/internal/app/progress"
	"github.com/dalemusser/cohortdesk/internal/app/submission"
	assignmentstore "github.com/dalemusser/cohortdesk/internal/app/store/assignments"
	groupstore "github.com/dalemusser/cohortdesk/internal/app/store/groups"
	messagestore "github.com/dalemusser/cohortdesk/internal/app/store/messages"
	submissionstore "github.com/dalemusser/cohortdesk/internal/app/store/submissions"
	userstore "github.com/dalemusser/cohortdesk/internal/app/store/users"
	sysauth "github.com/dalemusser/cohortdesk/internal/app/system/auth"
	"github.com/dalemusser/cohortdesk/internal/app/system/integrity"
)

// buildStorage constructs the file storage backend named by config.
func buildStorage(appCfg AppConfig) (storage.Store, error) {
	switch appCfg.StorageType {
	case "local":
		return storage.NewLocal(storage.LocalConfig{
			BasePath: appCfg.StorageLocalPath,
			BaseURL:  appCfg.StorageLocalURL,
		})
	case "s3":
		return storage.NewS3(context.Background(), storage.S3Config{
			Region: appCfg.StorageS3Region,
			Bucket: appCfg.StorageS3Bucket,
			Prefix: appCfg.StorageS3Prefix,
		})
	default:
		return nil, fmt.Errorf("unknown storage_type %q", appCfg.StorageType)
	}
}

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed.
//
// CohortDesk wires the stores, the integrity reconciler, the three
// services, and the feature routers behind the token middleware.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	tokens, err := sysauth.NewTokenManager(appCfg.TokenSigningKey, appCfg.TokenTTL, logger)
	if err != nil {
		logger.Error("token manager init failed", zap.Error(err))
		return nil, err
	}

	fileStore, err := buildStorage(appCfg)
	if err != nil {
		logger.Error("storage init failed", zap.Error(err))
		return nil, err
	}

	db := deps.MongoDatabase
	groups := groupstore.New(db)
	users := userstore.New(db)
	submissions := submissionstore.New(db)
	messages := messagestore.New(db)
	assignments := assignmentstore.New(db)

	reconciler := integrity.NewReconciler(groups, users, submissions, messages, logger)
	membershipSvc := membership.NewService(deps.MongoClient, groups, users, submissions, messages, assignments, reconciler, logger)
	submissionSvc := submission.NewService(groups, assignments, submissions, fileStore, logger)
	progressSvc := progress.NewService(assignments, submissions)

	r := chi.NewRouter()

	// Global auth middleware: loads the token user into context when a
	// valid bearer token is present. Route groups behind RequireSignedIn
	// or RequireAdmin enforce from there.
	r.Use(tokens.LoadTokenUser)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Accounts and sign-in
	authHandler := authfeature.NewHandler(users, tokens, logger)
	r.Mount("/auth", authfeature.Routes(authHandler))

	// Group aggregate: lifecycle, membership, chat, progress board
	groupsHandler := groupsfeature.NewHandler(membershipSvc, progressSvc, logger)
	r.Mount("/groups", groupsfeature.Routes(groupsHandler))

	// Assignment publication and review
	assignmentsHandler := assignmentsfeature.NewHandler(assignments, groups, submissionSvc, progressSvc, logger)
	r.Mount("/assignments", assignmentsfeature.Routes(assignmentsHandler))

	// Submission workflow
	submissionsHandler := submissionsfeature.NewHandler(submissionSvc, membershipSvc, fileStore, logger)
	r.Mount("/submissions", submissionsfeature.Routes(submissionsHandler))

	return r, nil
}
