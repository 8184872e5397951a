/*
 * Copyright 2025 SQLBridge Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package config

// Config holds all configuration for the application
type Config struct {
	Database DatabaseConfig
	Verbose  bool
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Dialect                        string
	Host                           string
	Port                           int
	User                           string
	Password                       string
	DBName                         string
	SSLMode                        string
	DSN                            string
	CloudSQLInstanceConnectionName string
	UsePrivateIP                   bool

	// DefaultSchema filters direct-dialect reflection calls that are not
	// given an explicit schema. The linked dialect keeps its own default in
	// LinkedServer.DefaultSchema.
	DefaultSchema string

	// Linked-server reflection settings. LinkedServer must be Complete()
	// before the linkedserver dialect will run any reflection query.
	LinkedServer LinkedServerConfig
	PKOverrides  map[string][]string
}

var globalConfig *Config

// GetConfig returns a default configuration. Configuration will be set by flags in root.go
func GetConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Dialect: "linkedserver",
			Host:    "localhost",
			Port:    1433,
			SSLMode: "disable",
		},
	}
}

// SetConfig sets the global configuration.
func SetConfig(cfg *Config) {
	globalConfig = cfg
}
