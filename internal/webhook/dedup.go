// Copyright 2026 The LexGuard Authors
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

package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultDedupTTL is how long a delivered message id is remembered.
const DefaultDedupTTL = 24 * time.Hour

const dedupKeyPrefix = "lexguard:webhook:"

// Deduper remembers processed message ids in Redis.
type Deduper struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewDeduper creates a deduper over client.
func NewDeduper(client redis.Cmdable, ttl time.Duration) *Deduper {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &Deduper{client: client, ttl: ttl}
}

// Claim records msgID and reports whether this call was the first to see it.
func (d *Deduper) Claim(ctx context.Context, msgID string) (bool, error) {
	ok, err := d.client.SetNX(ctx, dedupKeyPrefix+msgID, time.Now().Unix(), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim webhook %s: %w", msgID, err)
	}
	return ok, nil
}

// Release forgets msgID so a redelivery is processed again.
func (d *Deduper) Release(ctx context.Context, msgID string) error {
	if err := d.client.Del(ctx, dedupKeyPrefix+msgID).Err(); err != nil {
		return fmt.Errorf("failed to release webhook %s: %w", msgID, err)
	}
	return nil
}
