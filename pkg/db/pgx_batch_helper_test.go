/*
 * Copyright 2025 Carver Automation Corporation.
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

package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errFakeBatchResultsQuery = errors.New("Query not implemented in fakeBatchResults")
	errFakeBatchRowScan      = errors.New("Scan not implemented in fakeBatchRow")
	errBoom                  = errors.New("boom")
	errCloseFailed           = errors.New("close failed")
)

type fakeBatchResults struct {
	tag       string
	execCalls int
	execErrAt int
	execErr   error

	closeCalls int
	closeErr   error
}

func (f *fakeBatchResults) Exec() (pgconn.CommandTag, error) {
	defer func() { f.execCalls++ }()

	if f.execErr != nil && f.execCalls == f.execErrAt {
		return pgconn.CommandTag{}, f.execErr
	}

	tag := f.tag
	if tag == "" {
		tag = "INSERT 0 1"
	}

	return pgconn.NewCommandTag(tag), nil
}

func (*fakeBatchResults) Query() (pgx.Rows, error) {
	return nil, errFakeBatchResultsQuery
}

type fakeBatchRow struct{}

func (fakeBatchRow) Scan(...any) error { return errFakeBatchRowScan }

func (*fakeBatchResults) QueryRow() pgx.Row {
	return fakeBatchRow{}
}

func (f *fakeBatchResults) Close() error {
	f.closeCalls++

	return f.closeErr
}

func TestSendBatchExecAll_EmptyBatchDoesNotSend(t *testing.T) {
	affected, err := sendBatchExecAll(context.Background(), &pgx.Batch{}, func(context.Context, *pgx.Batch) pgx.BatchResults {
		t.Fatalf("SendBatch should not be called for empty batch")
		return nil
	}, "test")

	require.NoError(t, err)
	assert.Zero(t, affected)
}

func TestSendBatchExecAll_SumsAffectedRows(t *testing.T) {
	batch := &pgx.Batch{}
	batch.Queue("UPDATE a SET x = 1")
	batch.Queue("UPDATE a SET x = 2")

	br := &fakeBatchResults{tag: "UPDATE 3"}

	affected, err := sendBatchExecAll(context.Background(), batch, func(context.Context, *pgx.Batch) pgx.BatchResults {
		return br
	}, "op-name")

	require.NoError(t, err)
	assert.Equal(t, int64(6), affected)
	assert.Equal(t, 1, br.closeCalls)
}

func TestSendBatchExecAll_ExecErrorIncludesCommandIndexAndCloses(t *testing.T) {
	batch := &pgx.Batch{}
	batch.Queue("SELECT 1")
	batch.Queue("SELECT 2")
	batch.Queue("SELECT 3")

	br := &fakeBatchResults{execErrAt: 1, execErr: errBoom}

	affected, err := sendBatchExecAll(context.Background(), batch, func(context.Context, *pgx.Batch) pgx.BatchResults {
		return br
	}, "op-name")

	require.ErrorIs(t, err, errBoom)
	require.Contains(t, err.Error(), "op-name batch exec (command 1)")
	assert.Equal(t, int64(1), affected)
	assert.Equal(t, 1, br.closeCalls)
}

func TestSendBatchExecAll_CloseErrorReturnedWhenExecSucceeds(t *testing.T) {
	batch := &pgx.Batch{}
	batch.Queue("SELECT 1")

	br := &fakeBatchResults{closeErr: errCloseFailed}

	_, err := sendBatchExecAll(context.Background(), batch, func(context.Context, *pgx.Batch) pgx.BatchResults {
		return br
	}, "op-name")

	require.Error(t, err)
	require.Contains(t, err.Error(), "op-name batch close: close failed")
	assert.Equal(t, 1, br.closeCalls)
}
