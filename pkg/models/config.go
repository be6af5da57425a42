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

package models

import (
	"encoding/json"
	"fmt"
	"time"
)

var errInvalidDuration = fmt.Errorf("invalid duration")

// Duration is a wrapper around time.Duration that accepts either a duration
// string ("30s") or raw nanoseconds in JSON.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: %w", errInvalidDuration, err)
		}

		*d = Duration(dur)

		return nil
	default:
		return errInvalidDuration
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// DatabaseConfig describes the PostgreSQL cluster backing the repository.
type DatabaseConfig struct {
	Host            string   `json:"host"`
	Port            int      `json:"port,omitempty"`
	Database        string   `json:"database"`
	Username        string   `json:"username,omitempty"`
	Password        string   `json:"password,omitempty"`
	SSLMode         string   `json:"ssl_mode,omitempty"`
	ApplicationName string   `json:"application_name,omitempty"`
	MaxConnections  int32    `json:"max_connections,omitempty"`
	MinConnections  int32    `json:"min_connections,omitempty"`
	MaxConnLifetime Duration `json:"max_conn_lifetime,omitempty"`
}
