package main

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/go-sql-driver/mysql"
	"github.com/spf13/cobra"
)

func envDSN() string { return os.Getenv("CATALOGMATCH_DSN") }

// schemaStatements creates the feedback_decisions table the SQL-backed
// FeedbackStore expects (NewSQLStore's doc comment: "callers are
// expected to have already run the accompanying migration"), plus the
// workflow_matches, decision_history and involvements tables, which the
// in-memory workflow Store does not use. Safe to run repeatedly: every
// statement is IF NOT EXISTS.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS feedback_decisions (
		id                     VARCHAR(36) PRIMARY KEY,
		request_id             VARCHAR(64) NOT NULL,
		concept_hash           VARCHAR(16) NOT NULL,
		domain_id              VARCHAR(128) NOT NULL,
		owner_id               VARCHAR(128) NOT NULL,
		table_id               VARCHAR(128) NOT NULL,
		outcome                VARCHAR(32) NOT NULL,
		actual_table_id        VARCHAR(128),
		confidence_at_decision DOUBLE NOT NULL,
		use_case               VARCHAR(64),
		created_at             DATETIME NOT NULL,
		INDEX idx_concept_table (concept_hash, table_id),
		INDEX idx_request (request_id)
	)`,
	`CREATE TABLE IF NOT EXISTS workflow_matches (
		id         VARCHAR(36) PRIMARY KEY,
		variable_id VARCHAR(128) NOT NULL,
		table_id    VARCHAR(128) NOT NULL,
		status      VARCHAR(32) NOT NULL,
		is_selected BOOLEAN NOT NULL,
		owner_id    VARCHAR(128) NOT NULL,
		created_at  DATETIME NOT NULL,
		updated_at  DATETIME NOT NULL,
		INDEX idx_variable (variable_id)
	)`,
	`CREATE TABLE IF NOT EXISTS decision_history (
		id              VARCHAR(36) PRIMARY KEY,
		variable_id     VARCHAR(128) NOT NULL,
		match_id        VARCHAR(36) NOT NULL,
		actor           VARCHAR(128) NOT NULL,
		previous_status VARCHAR(32) NOT NULL,
		next_status     VARCHAR(32) NOT NULL,
		decision_reason VARCHAR(255),
		decision_details TEXT,
		outcome         VARCHAR(16),
		created_at      DATETIME NOT NULL,
		INDEX idx_match (match_id)
	)`,
	`CREATE TABLE IF NOT EXISTS involvements (
		id                       VARCHAR(36) PRIMARY KEY,
		variable_id              VARCHAR(128) NOT NULL UNIQUE,
		external_request_number  VARCHAR(64),
		external_system          VARCHAR(64),
		requester_id             VARCHAR(128) NOT NULL,
		owner_id                 VARCHAR(128) NOT NULL,
		expected_completion_date DATETIME,
		actual_completion_date   DATETIME,
		created_table_name       VARCHAR(128),
		created_concept          VARCHAR(255),
		status                   VARCHAR(32) NOT NULL,
		reminder_count           INT NOT NULL DEFAULT 0,
		last_reminder_at         DATETIME,
		created_at               DATETIME NOT NULL,
		updated_at               DATETIME NOT NULL
	)`,
}

var migrateDSN string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the SQL feedback/workflow schema",
	Long: `migrate runs the CREATE TABLE IF NOT EXISTS statements for
feedback_decisions (the table the SQL-backed FeedbackStore expects) and for
workflow_matches, decision_history and involvements (not used by the
in-memory workflow Store), against the go-sql-driver/mysql DSN passed via
--dsn or CATALOGMATCH_DSN.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn := migrateDSN
		if dsn == "" {
			return fmt.Errorf("migrate: --dsn is required (or set CATALOGMATCH_DSN)")
		}

		db, err := sql.Open("mysql", dsn)
		if err != nil {
			return fmt.Errorf("migrate: opening dsn: %w", err)
		}
		defer db.Close()

		if err := db.PingContext(rootCtx); err != nil {
			return fmt.Errorf("migrate: pinging dsn: %w", err)
		}

		for _, stmt := range schemaStatements {
			if _, err := db.ExecContext(rootCtx, stmt); err != nil {
				return fmt.Errorf("migrate: applying schema: %w", err)
			}
		}

		logger.Info("catalogmatchd: schema migration complete")
		fmt.Fprintln(cmd.OutOrStdout(), "schema migration complete")
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateDSN, "dsn", "", "go-sql-driver/mysql DSN (or CATALOGMATCH_DSN)")
	if dsn := envDSN(); dsn != "" {
		migrateDSN = dsn
	}
}
