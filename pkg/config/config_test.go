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

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleConfig struct {
	Name     string `json:"name"`
	Interval int    `json:"interval"`

	validateErr error
}

func (s *sampleConfig) Validate() error {
	if s.validateErr != nil {
		return s.validateErr
	}

	if s.Interval <= 0 {
		s.Interval = 60
	}

	return nil
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadAndValidate(t *testing.T) {
	path := writeTempConfig(t, `{"name": "edge", "interval": 30}`)

	var cfg sampleConfig

	require.NoError(t, NewConfig(nil).LoadAndValidate(context.Background(), path, &cfg))

	assert.Equal(t, "edge", cfg.Name)
	assert.Equal(t, 30, cfg.Interval)
}

func TestLoadAndValidateAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, `{"name": "edge"}`)

	var cfg sampleConfig

	require.NoError(t, NewConfig(nil).LoadAndValidate(context.Background(), path, &cfg))

	assert.Equal(t, 60, cfg.Interval)
}

func TestLoadAndValidateMissingFile(t *testing.T) {
	var cfg sampleConfig

	err := NewConfig(nil).LoadAndValidate(context.Background(), "/nonexistent/config.json", &cfg)
	assert.ErrorIs(t, err, errLoadConfigFailed)
}

func TestLoadAndValidateMalformedJSON(t *testing.T) {
	path := writeTempConfig(t, `{"name": `)

	var cfg sampleConfig

	err := NewConfig(nil).LoadAndValidate(context.Background(), path, &cfg)
	assert.ErrorIs(t, err, errLoadConfigFailed)
}

func TestLoadAndValidateRejectsNonPointer(t *testing.T) {
	path := writeTempConfig(t, `{}`)

	var cfg sampleConfig

	err := NewConfig(nil).LoadAndValidate(context.Background(), path, cfg)
	assert.ErrorIs(t, err, errInvalidConfigPtr)

	var nilPtr *sampleConfig

	err = NewConfig(nil).LoadAndValidate(context.Background(), path, nilPtr)
	assert.ErrorIs(t, err, errInvalidConfigPtr)
}

func TestLoadAndValidateSurfacesValidationError(t *testing.T) {
	path := writeTempConfig(t, `{"name": "edge"}`)

	wantErr := errors.New("interval out of range")
	cfg := sampleConfig{validateErr: wantErr}

	err := NewConfig(nil).LoadAndValidate(context.Background(), path, &cfg)
	assert.ErrorIs(t, err, wantErr)
}
