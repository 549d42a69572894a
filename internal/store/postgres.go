package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lending-indexer-sol/internal/logic/core"
)

// schema 指令记录与 slot 进度表，可重复执行
var schema = []string{
	`CREATE TABLE IF NOT EXISTS instruction_functions (
		transaction_hash  TEXT        NOT NULL,
		instruction_index SMALLINT    NOT NULL,
		parent_index      SMALLINT    NOT NULL,
		program           TEXT        NOT NULL,
		function_name     TEXT        NOT NULL,
		block_time        TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (transaction_hash, instruction_index, parent_index)
	)`,
	`CREATE TABLE IF NOT EXISTS instruction_properties (
		transaction_hash  TEXT        NOT NULL,
		instruction_index SMALLINT    NOT NULL,
		parent_index      SMALLINT    NOT NULL,
		key               TEXT        NOT NULL,
		value             TEXT        NOT NULL,
		parent_key        TEXT        NOT NULL DEFAULT '',
		block_time        TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (transaction_hash, instruction_index, parent_index, parent_key, key)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_instruction_functions_name_time
		ON instruction_functions (function_name, block_time)`,
	`CREATE TABLE IF NOT EXISTS progress_slot (
		slot       BIGINT      PRIMARY KEY,
		source     SMALLINT    NOT NULL,
		block_time BIGINT      NOT NULL,
		status     SMALLINT    NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
}

const (
	insertFunctionSQL = `
		INSERT INTO instruction_functions (
			transaction_hash, instruction_index, parent_index, program, function_name, block_time
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT DO NOTHING`

	insertPropertySQL = `
		INSERT INTO instruction_properties (
			transaction_hash, instruction_index, parent_index, key, value, parent_key, block_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT DO NOTHING`
)

// Store Postgres 持久化；重复写入同一指令是幂等的
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Pool 供进度表等共享连接池
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema 建表（已存在时跳过）
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// queueInstructionSets 将指令集合写入 batch，返回排队的语句数
func queueInstructionSets(batch *pgx.Batch, sets []*core.InstructionSet) int {
	for _, set := range sets {
		fn := set.Function
		batch.Queue(insertFunctionSQL,
			fn.TransactionHash,
			fn.InstructionIndex,
			fn.ParentIndex,
			fn.Program,
			fn.FunctionName,
			fn.Timestamp,
		)
		for _, p := range set.Properties {
			batch.Queue(insertPropertySQL,
				p.TransactionHash,
				p.InstructionIndex,
				p.ParentIndex,
				p.Key,
				p.Value,
				p.ParentKey,
				p.Timestamp,
			)
		}
	}
	return batch.Len()
}

// SaveInstructionSets 在一个事务内批量写入 function 与 property 记录
func (s *Store) SaveInstructionSets(ctx context.Context, sets []*core.InstructionSet) error {
	if len(sets) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	n := queueInstructionSets(batch, sets)

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < n; i++ {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("save instruction sets: statement %d: %w", i, err)
			}
		}
		return br.Close()
	})
}
