// Package commands contains CLI command implementations for the application.
package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"

	"github.com/phivault/phivault/internal/app"
)

// closeContainer closes all resources in the container and logs any errors.
func closeContainer(container *app.Container, logger *slog.Logger) {
	if err := container.Shutdown(context.Background()); err != nil {
		logger.Error("failed to shutdown container", slog.Any("error", err))
	}
}

// closeMigrate closes the migration instance and logs any errors.
func closeMigrate(migrate *migrate.Migrate, logger *slog.Logger) {
	sourceError, databaseError := migrate.Close()
	if sourceError != nil || databaseError != nil {
		logger.Error(
			"failed to close the migrate",
			slog.Any("source_error", sourceError),
			slog.Any("database_error", databaseError),
		)
	}
}

// CurrentUserID identifies the operator running a CLI command in the usage
// trail. Falls back to "cli" when the OS reports no user.
func CurrentUserID() string {
	if user := os.Getenv("USER"); user != "" {
		return "cli:" + user
	}
	return "cli"
}
