/*
 * Copyright 2026 Uptrail Authors.
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
	"fmt"

	"github.com/jackc/pgx/v5"
)

// execBatch sends the batch over the transaction and surfaces the first
// failing command. The batch results are always closed, so the transaction
// stays usable for rollback.
func (r *Repository) execBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch, op string) error {
	if batch == nil || batch.Len() == 0 {
		return nil
	}

	results := tx.SendBatch(ctx, batch)

	var execErr error

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			execErr = fmt.Errorf("%s: command %d: %w", op, i, err)
			break
		}
	}

	if closeErr := results.Close(); closeErr != nil && execErr == nil {
		execErr = fmt.Errorf("%s: close batch: %w", op, closeErr)
	}

	return execErr
}
