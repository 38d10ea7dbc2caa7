package storage

import (
	"context"
	"fmt"

	"github.com/akdenizcse/akdeniz-chatbot-go/internal/config"
)

// Open returns the backend selected by cfg.StorageDriver.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StorageDriver {
	case config.DriverSQLite, "":
		return New(ctx, cfg.SQLitePath())
	case config.DriverMongo:
		return NewMongo(ctx, cfg.MongoURI, cfg.MongoDBName)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}
