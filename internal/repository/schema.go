package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied by Migrate. Statements are idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            CHAR(36)     NOT NULL PRIMARY KEY,
		name          VARCHAR(255) NOT NULL,
		email         VARCHAR(255) NOT NULL,
		phone         VARCHAR(32)  NOT NULL,
		sap_id        VARCHAR(64)  NULL,
		password_hash VARCHAR(255) NOT NULL,
		created_at    DATETIME(3)  NOT NULL,
		updated_at    DATETIME(3)  NOT NULL,
		UNIQUE KEY uniq_email (email),
		UNIQUE KEY uniq_sap_id (sap_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS registrations (
		id                 CHAR(36)     NOT NULL PRIMARY KEY,
		user_id            CHAR(36)     NOT NULL,
		user_name          VARCHAR(255) NOT NULL,
		user_email         VARCHAR(255) NOT NULL,
		user_phone         VARCHAR(32)  NOT NULL,
		user_sap_id        VARCHAR(64)  NOT NULL DEFAULT '',
		events             JSON         NOT NULL,
		total_amount       BIGINT       NOT NULL,
		order_id           VARCHAR(64)  NOT NULL,
		payment_status     VARCHAR(16)  NOT NULL DEFAULT 'pending',
		payment_session_id VARCHAR(255) NOT NULL DEFAULT '',
		payment_details    JSON         NULL,
		reconcile_attempts INT          NOT NULL DEFAULT 0,
		last_checked_at    DATETIME(3)  NULL,
		created_at         DATETIME(3)  NOT NULL,
		updated_at         DATETIME(3)  NOT NULL,
		UNIQUE KEY uniq_order_id (order_id),
		KEY idx_user_created (user_id, created_at),
		KEY idx_status_created (payment_status, created_at),
		KEY idx_status_checked (payment_status, last_checked_at, created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS teams (
		id          CHAR(36)     NOT NULL PRIMARY KEY,
		name        VARCHAR(255) NOT NULL,
		event_id    VARCHAR(128) NOT NULL,
		leader_id   CHAR(36)     NOT NULL,
		invite_code CHAR(6)      NOT NULL,
		created_at  DATETIME(3)  NOT NULL,
		updated_at  DATETIME(3)  NOT NULL,
		UNIQUE KEY uniq_invite_code (invite_code),
		UNIQUE KEY uniq_leader_event (leader_id, event_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS team_members (
		seq       BIGINT       NOT NULL AUTO_INCREMENT,
		team_id   CHAR(36)     NOT NULL,
		user_id   CHAR(36)     NOT NULL,
		name      VARCHAR(255) NOT NULL,
		email     VARCHAR(255) NOT NULL,
		sap_id    VARCHAR(64)  NOT NULL,
		joined_at DATETIME(3)  NOT NULL,
		status    VARCHAR(16)  NOT NULL DEFAULT 'accepted',
		PRIMARY KEY (seq),
		UNIQUE KEY uniq_team_user (team_id, user_id),
		KEY idx_member_user (user_id),
		CONSTRAINT fk_member_team FOREIGN KEY (team_id) REFERENCES teams(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the tables used by SQLStore.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}

// SQLStore is the MySQL-backed Store.
type SQLStore struct {
	*UserRepo
	*RegistrationRepo
	*TeamRepo
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{
		UserRepo:         NewUserRepo(db),
		RegistrationRepo: NewRegistrationRepo(db),
		TeamRepo:         NewTeamRepo(db),
		db:               db,
	}
}

func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLStore) Close(context.Context) error { return s.db.Close() }

var _ Store = (*SQLStore)(nil)
