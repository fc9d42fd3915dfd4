// Package testutil provides helpers for tests that run against a live MongoDB.
package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	mongoMigration "rentpay/internal/migrations/mongo"
	"rentpay/pkg/client"
	"rentpay/pkg/config"
	"rentpay/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const setupTimeout = 10 * time.Second

// SetupMongo connects to MONGO_URI, migrates a fresh database and drops it
// when the test ends. The test is skipped when MONGO_URI is unset.
// Transactions require MONGO_URI to point at a replica set.
func SetupMongo(t *testing.T) *config.Config {
	t.Helper()

	uri := os.Getenv(config.EnvMongoURI)
	if uri == "" {
		t.Skipf("%s not set, skipping MongoDB tests", config.EnvMongoURI)
	}

	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("failed to connect to MongoDB: %v", err)
	}
	if err := mongoClient.Ping(ctx, readpref.Primary()); err != nil {
		t.Fatalf("failed to ping MongoDB: %v", err)
	}

	log := logger.Discard()
	dbName := fmt.Sprintf("rentpay_test_%s", primitive.NewObjectID().Hex())
	if err := mongoMigration.RunMigration(ctx, mongoClient, dbName, log); err != nil {
		t.Fatalf("failed to migrate %s: %v", dbName, err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
		defer cancel()
		if err := mongoClient.Database(dbName).Drop(ctx); err != nil {
			t.Logf("failed to drop %s: %v", dbName, err)
		}
		_ = mongoClient.Disconnect(ctx)
	})

	c := client.NewClient()
	c.Mongo = mongoClient
	return &config.Config{
		MongoDatabaseName: dbName,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      5 * time.Second,
		Log:               log,
		Client:            c,
	}
}
