/*
 * Copyright 2026 Yem Networks.
 *
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

package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yemnet/nmosctl/pkg/config"
	"github.com/yemnet/nmosctl/pkg/logger"
	"github.com/yemnet/nmosctl/pkg/models"
)

// tableNames maps resource types to their table names. Table identifiers
// only ever come from this fixed map, never from caller input.
var tableNames = map[models.ResourceType]string{
	models.ResourceNodes:     "nodes",
	models.ResourceDevices:   "devices",
	models.ResourceSources:   "sources",
	models.ResourceFlows:     "flows",
	models.ResourceSenders:   "senders",
	models.ResourceReceivers: "receivers",
}

// PostgresStore implements Store over a pgx connection pool, one
// (uid, data) table per mirrored resource type.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  logger.Logger
}

// NewPostgresStore dials the configured database and returns a store.
func NewPostgresStore(ctx context.Context, cfg *config.Database, log logger.Logger) (*PostgresStore, error) {
	db := *cfg
	if db.Port == 0 {
		db.Port = 5432
	}

	connURL := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   "/" + db.Name,
	}

	if db.Username != "" {
		if db.Password != "" {
			connURL.User = url.UserPassword(db.Username, db.Password)
		} else {
			connURL.User = url.User(db.Username)
		}
	}

	query := connURL.Query()

	sslMode := db.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	query.Set("sslmode", sslMode)
	connURL.RawQuery = query.Encode()

	poolConfig, err := pgxpool.ParseConfig(connURL.String())
	if err != nil {
		return nil, fmt.Errorf("mirror store: failed to parse connection string: %w", err)
	}

	if db.MaxConns > 0 {
		poolConfig.MaxConns = db.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("mirror store: failed to initialize pool: %w", err)
	}

	log.Info().
		Str("host", db.Host).
		Int("port", db.Port).
		Str("database", db.Name).
		Msg("connected to mirror database")

	return &PostgresStore{pool: pool, log: log.WithComponent("mirror-store")}, nil
}

func tableName(rt models.ResourceType) (string, error) {
	name, ok := tableNames[rt]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTable, rt)
	}

	return name, nil
}

func (s *PostgresStore) Reset(ctx context.Context, rt models.ResourceType) error {
	table, err := tableName(rt)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
		return fmt.Errorf("dropping table %s: %w", table, err)
	}

	create := fmt.Sprintf("CREATE TABLE %s (uid TEXT PRIMARY KEY NOT NULL, data JSONB NOT NULL)", table)
	if _, err := tx.Exec(ctx, create); err != nil {
		return fmt.Errorf("creating table %s: %w", table, err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) Apply(ctx context.Context, rt models.ResourceType, batch Batch) error {
	table, err := tableName(rt)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() { _ = tx.Rollback(ctx) }()

	if len(batch.Deletes) > 0 {
		del := fmt.Sprintf("DELETE FROM %s WHERE uid = ANY($1)", table)
		if _, err := tx.Exec(ctx, del, batch.Deletes); err != nil {
			s.log.Error().Err(err).Str("table", table).Msg("batch delete failed, rolling back")
			return err
		}
	}

	upsert := fmt.Sprintf(
		"INSERT INTO %s (uid, data) VALUES ($1, $2) ON CONFLICT (uid) DO UPDATE SET data = EXCLUDED.data", table)

	for _, record := range batch.Upserts {
		id := record.ID()
		if id == "" {
			return ErrRecordMissingID
		}

		data, err := json.Marshal(record)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, upsert, id, data); err != nil {
			s.log.Error().Err(err).Str("table", table).Msg("batch upsert failed, rolling back")
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) Exists(ctx context.Context, rt models.ResourceType, id string) (bool, error) {
	table, err := tableName(rt)
	if err != nil {
		return false, err
	}

	var found bool

	q := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE uid = $1)", table)
	if err := s.pool.QueryRow(ctx, q, id).Scan(&found); err != nil {
		return false, err
	}

	return found, nil
}

func (s *PostgresStore) Resources(ctx context.Context, rt models.ResourceType, field, value string) ([]models.Resource, error) {
	table, err := tableName(rt)
	if err != nil {
		return nil, err
	}

	var (
		rows pgx.Rows
	)

	if field == "" {
		rows, err = s.pool.Query(ctx, fmt.Sprintf("SELECT data FROM %s", table))
	} else {
		q := fmt.Sprintf("SELECT data FROM %s WHERE data ->> $1 = $2", table)
		rows, err = s.pool.Query(ctx, q, field, value)
	}

	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var out []models.Resource

	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}

		record, err := models.DecodeResource(data)
		if err != nil {
			return nil, err
		}

		out = append(out, record)
	}

	return out, rows.Err()
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}
