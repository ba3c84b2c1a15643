/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

var (
	globalFactory    *BaseDatabaseFactory
	globalConfig     *Config
	globalReferences *ReferenceRegistry
	DB               *bun.DB
)

// GetDB returns the global Bun database instance.
func GetDB() *bun.DB {
	if globalFactory != nil {
		return globalFactory.GetDB()
	}
	return DB
}

// GetDatabaseManager returns the global database manager.
func GetDatabaseManager() AbstractDatabaseManager {
	if globalFactory != nil {
		return globalFactory.GetManager()
	}
	return nil
}

// GetDatabaseFactory returns the global database factory.
func GetDatabaseFactory() *BaseDatabaseFactory {
	return globalFactory
}

// GetReferenceRegistry returns the global delete-protection registry. It is
// empty until InitDB loads a references file, in which case deletes are never
// blocked by referencing rows.
func GetReferenceRegistry() *ReferenceRegistry {
	if globalReferences == nil {
		globalReferences = NewReferenceRegistry(GetLogger())
	}
	return globalReferences
}

// GetReadTimeout returns the configured statement-level bound on list
// count/data reads, or zero before InitDB has loaded a configuration.
func GetReadTimeout() time.Duration {
	if globalConfig != nil {
		return globalConfig.ConnectionConfig.ReadTimeout
	}
	return 0
}

// InitDB initializes the global database using the provided configuration,
// registers all declared models with Bun, and loads the reference registry
// when the configuration names a references file.
func InitDB(cfg *Config) (*bun.DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	globalConfig = cfg
	globalFactory = NewDatabaseFactory()
	manager, err := globalFactory.CreateFromConfig(&cfg.ConnectionConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database manager: %w", err)
	}

	ctx := context.Background()
	if err := globalFactory.InitializeDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if cfg.ReferencesConfig.Filepath != "" {
		registry, err := NewReferenceRegistryFromFile(GetLogger(), cfg.ReferencesConfig.Filepath)
		if err != nil {
			return nil, fmt.Errorf("failed to load reference registry: %w", err)
		}
		globalReferences = registry
	}

	DB = manager.GetDB()
	DB.RegisterModel(RegisteredModelInstances()...)
	return DB, nil
}

// CloseDB closes the global database connection.
func CloseDB() error {
	if globalFactory != nil {
		return globalFactory.Close()
	}
	return nil
}

// GetHealthStatus returns the current database health status.
func GetHealthStatus(ctx context.Context) *HealthStatus {
	if globalFactory != nil {
		return globalFactory.GetHealthStatus(ctx)
	}
	return &HealthStatus{
		Healthy:   false,
		Connected: false,
		LastError: "Database not initialized",
	}
}

// GetDatabaseStats returns global database statistics.
func GetDatabaseStats() *DBStats {
	if globalFactory != nil {
		return globalFactory.GetStats()
	}
	return &DBStats{}
}
