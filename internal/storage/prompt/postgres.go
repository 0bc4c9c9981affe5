// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package prompt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore 基于 PostgreSQL 的 prompt 存储，表结构与原 prompts 表一致
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string // 已转义的表名
}

// NewPostgresStore 连接数据库并确保表存在；table 为空时使用 prompts
func NewPostgresStore(ctx context.Context, dsn, table string, poolSize int) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if poolSize > 0 {
		config.MaxConns = int32(poolSize)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if table == "" {
		table = "prompts"
	}
	s := &PostgresStore{pool: pool, table: pgx.Identifier{table}.Sanitize()}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("初始化 prompts 表失败: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+s.table+` (
		id uuid PRIMARY KEY,
		name text NOT NULL UNIQUE,
		system_prompt text NOT NULL DEFAULT '',
		function_schema jsonb,
		created_at timestamptz NOT NULL DEFAULT now(),
		updated_at timestamptz NOT NULL DEFAULT now()
	)`)
	return err
}

// Close 关闭连接池
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, name string) (*Prompt, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id::text, name, system_prompt, function_schema, created_at, updated_at
		 FROM `+s.table+` WHERE name = $1`, name)
	p, err := scanPrompt(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, p *Prompt) error {
	if err := p.Validate(); err != nil {
		return err
	}
	var schema any
	if len(p.OutputSchema) > 0 {
		schema = []byte(p.OutputSchema)
	}
	var id string
	var createdAt, updatedAt time.Time
	err := s.pool.QueryRow(ctx,
		`INSERT INTO `+s.table+` (id, name, system_prompt, function_schema, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, now(), now())
		 ON CONFLICT (name) DO UPDATE SET system_prompt = EXCLUDED.system_prompt,
		   function_schema = EXCLUDED.function_schema, updated_at = now()
		 RETURNING id::text, created_at, updated_at`,
		uuid.NewString(), p.Name, p.SystemPrompt, schema).Scan(&id, &createdAt, &updatedAt)
	if err != nil {
		return err
	}
	p.ID, p.CreatedAt, p.UpdatedAt = id, createdAt, updatedAt
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*Prompt, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, name, system_prompt, function_schema, created_at, updated_at
		 FROM `+s.table+` ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Prompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Delete(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM `+s.table+` WHERE name = $1`, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPrompt(row pgx.Row) (*Prompt, error) {
	var p Prompt
	var schema []byte
	if err := row.Scan(&p.ID, &p.Name, &p.SystemPrompt, &schema, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if len(schema) > 0 {
		p.OutputSchema = schema
	}
	return &p, nil
}
