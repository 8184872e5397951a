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
package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/sqlbridge/db-schema-reflector/internal/config"
	"github.com/sqlbridge/db-schema-reflector/internal/database"
	_ "github.com/sqlbridge/db-schema-reflector/internal/database/linkedserver"
	_ "github.com/sqlbridge/db-schema-reflector/internal/database/mysql"
	_ "github.com/sqlbridge/db-schema-reflector/internal/database/postgres"
	_ "github.com/sqlbridge/db-schema-reflector/internal/database/sqlserver"
)

var (
	cfgFile string
	verbose bool

	// Database connection flags
	dialect                        string
	host                           string
	port                           int
	username                       string
	password                       string
	dbName                         string
	dsn                            string
	cloudSQLInstanceConnectionName string
	cloudSQLUsePrivateIP           bool

	// Linked-server reflection flags
	linkedServer   string
	linkedDatabase string
	linkedSchema   string
	pkOverrides    string

	// Per-call schema override shared by every reflection subcommand.
	schemaOverride string
)

var (
	appConfig *config.Config
	logger    *zap.Logger
)

var supportedDialects = []string{
	"linkedserver", "cloudsqllinkedserver",
	"sqlserver", "cloudsqlsqlserver",
	"mysql", "cloudsqlmysql",
	"postgres", "cloudsqlpostgres",
}

var rootCmd = &cobra.Command{
	Use:   "db_schema_reflector",
	Short: "A tool to reflect database schema metadata",
	Long: `db_schema_reflector is a CLI tool that reflects table, view, column and
primary-key metadata from relational databases, including remote databases
reachable only through a SQL Server linked server (four-part names).`,
	PersistentPreRunE: initFlagsAndConfig,
}

// initFlagsAndConfig resolves viper (flags, config file, environment) into
// the application configuration and builds the logger.
func initFlagsAndConfig(cmd *cobra.Command, args []string) error {
	cfg := config.GetConfig()
	dbCfg := &cfg.Database

	dbCfg.Dialect = viper.GetString("database.dialect")
	dbCfg.Host = viper.GetString("database.host")
	dbCfg.Port = viper.GetInt("database.port")
	dbCfg.User = viper.GetString("database.username")
	dbCfg.Password = viper.GetString("database.password")
	dbCfg.DBName = viper.GetString("database.name")
	dbCfg.DSN = viper.GetString("database.dsn")
	dbCfg.DefaultSchema = viper.GetString("database.default_schema")
	dbCfg.CloudSQLInstanceConnectionName = viper.GetString("database.cloudsql_instance")
	dbCfg.UsePrivateIP = viper.GetBool("database.cloudsql_private_ip")

	dbCfg.LinkedServer = config.LinkedServerConfig{
		Server:        viper.GetString("linked.server"),
		Database:      viper.GetString("linked.database"),
		DefaultSchema: viper.GetString("linked.schema"),
	}
	// pk_overrides comes in two spellings: the delimited flag/env string,
	// or a table->columns mapping in the config file.
	if raw := viper.GetString("linked.pk_overrides"); raw != "" {
		parsed, err := config.ParsePKOverrides(raw)
		if err != nil {
			return err
		}
		dbCfg.PKOverrides = config.MergePKOverrides(dbCfg.PKOverrides, parsed)
	} else if m := viper.GetStringMapString("linked.pk_overrides"); len(m) > 0 {
		parsed, err := config.ParsePKOverrideMap(m)
		if err != nil {
			return err
		}
		dbCfg.PKOverrides = config.MergePKOverrides(dbCfg.PKOverrides, parsed)
	}

	cfg.Verbose = viper.GetBool("verbose")

	if err := validateDialect(dbCfg.Dialect); err != nil {
		return err
	}

	var err error
	if cfg.Verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	config.SetConfig(cfg)
	appConfig = cfg
	return nil
}

func validateDialect(dialect string) error {
	for _, supportedDialect := range supportedDialects {
		if dialect == supportedDialect {
			return nil
		}
	}
	return fmt.Errorf("unsupported dialect: %s (only %s are supported)", dialect, strings.Join(supportedDialects, ", "))
}

func setupDatabase() (*database.DB, error) {
	if appConfig == nil {
		return nil, fmt.Errorf("configuration is not initialized")
	}
	db, err := database.New(appConfig.Database, logger)
	if err != nil {
		log.Println("ERROR: Failed to connect to database:", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// initConfig locates the optional config file and wires the environment.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".db_schema_reflector"))
		}
		viper.SetConfigName("db_schema_reflector")
		viper.SetConfigType("yaml")
	}

	viper.SetDefault("database.dialect", "linkedserver")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 1433)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		log.Println("INFO: Using config file:", viper.ConfigFileUsed())
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ./db_schema_reflector.yaml or $HOME/.db_schema_reflector/db_schema_reflector.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose (development) logging")

	// Database connection flags
	rootCmd.PersistentFlags().StringVar(&dialect, "dialect", "", fmt.Sprintf("Database dialect (%s) - MANDATORY", strings.Join(supportedDialects, ", ")))
	rootCmd.PersistentFlags().StringVar(&host, "host", "", "Database host")
	rootCmd.PersistentFlags().IntVar(&port, "port", 0, "Database port")
	rootCmd.PersistentFlags().StringVar(&username, "username", "", "Database username")
	rootCmd.PersistentFlags().StringVar(&password, "password", "", "Database password")
	rootCmd.PersistentFlags().StringVar(&dbName, "database", "", "Database name")
	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", "", "Full connection string; overrides host/port/username/password/database. Linked-server settings may ride in its query string and are stripped before the driver sees them")
	rootCmd.PersistentFlags().StringVar(&cloudSQLInstanceConnectionName, "cloudsql-instance-connection-name", "", "Cloud SQL instance connection name (for Cloud SQL dialects)")
	rootCmd.PersistentFlags().BoolVar(&cloudSQLUsePrivateIP, "cloudsql-use-private-ip", false, "Use private IP for Cloud SQL connection (Cloud SQL)")

	// Linked-server reflection flags
	rootCmd.PersistentFlags().StringVar(&linkedServer, "linked-server", "", "Linked server name (linkedserver dialect) - MANDATORY for linkedserver")
	rootCmd.PersistentFlags().StringVar(&linkedDatabase, "linked-database", "", "Database name on the linked server - MANDATORY for linkedserver")
	rootCmd.PersistentFlags().StringVar(&linkedSchema, "linked-schema", "", "Default schema filter on the linked server")
	rootCmd.PersistentFlags().StringVar(&pkOverrides, "pk-overrides", "", "Primary-key overrides, e.g. 'schema.table=col1,col2;table=id'")

	rootCmd.PersistentFlags().StringVar(&schemaOverride, "schema", "", "Schema filter for this invocation; overrides any configured default")

	viper.BindPFlag("database.dialect", rootCmd.PersistentFlags().Lookup("dialect"))
	viper.BindPFlag("database.host", rootCmd.PersistentFlags().Lookup("host"))
	viper.BindPFlag("database.port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("database.username", rootCmd.PersistentFlags().Lookup("username"))
	viper.BindPFlag("database.password", rootCmd.PersistentFlags().Lookup("password"))
	viper.BindPFlag("database.name", rootCmd.PersistentFlags().Lookup("database"))
	viper.BindPFlag("database.dsn", rootCmd.PersistentFlags().Lookup("dsn"))
	viper.BindPFlag("database.cloudsql_instance", rootCmd.PersistentFlags().Lookup("cloudsql-instance-connection-name"))
	viper.BindPFlag("database.cloudsql_private_ip", rootCmd.PersistentFlags().Lookup("cloudsql-use-private-ip"))
	viper.BindPFlag("linked.server", rootCmd.PersistentFlags().Lookup("linked-server"))
	viper.BindPFlag("linked.database", rootCmd.PersistentFlags().Lookup("linked-database"))
	viper.BindPFlag("linked.schema", rootCmd.PersistentFlags().Lookup("linked-schema"))
	viper.BindPFlag("linked.pk_overrides", rootCmd.PersistentFlags().Lookup("pk-overrides"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	// Add subcommands
	rootCmd.AddCommand(listTablesCmd)
	rootCmd.AddCommand(listViewsCmd)
	rootCmd.AddCommand(viewDefinitionCmd)
	rootCmd.AddCommand(primaryKeyCmd)
	rootCmd.AddCommand(columnsCmd)
	rootCmd.AddCommand(snapshotCmd)
}
