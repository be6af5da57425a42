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

// Package config loads and validates JSON configuration files.
package config

import (
	"context"
	"errors"
	"reflect"

	"github.com/uptrail/uptrail/pkg/logger"
)

var (
	errLoadConfigFailed = errors.New("failed to load configuration")
	errInvalidConfigPtr = errors.New("config must be a non-nil pointer")
)

// ConfigLoader loads a configuration document into dst.
type ConfigLoader interface {
	Load(ctx context.Context, path string, dst interface{}) error
}

// Validator is implemented by configuration types that can check themselves.
// Validation errors are rejected synchronously at the settings boundary; a
// running cycle is never affected by them.
type Validator interface {
	Validate() error
}

// Config holds the configuration loading dependencies.
type Config struct {
	loader ConfigLoader
	logger logger.Logger
}

// NewConfig initializes a Config with the default file loader.
func NewConfig(log logger.Logger) *Config {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Config{
		loader: &FileConfigLoader{logger: log},
		logger: log,
	}
}

// LoadAndValidate loads the file at path into dst, then runs dst's Validate
// method when it implements Validator.
func (c *Config) LoadAndValidate(ctx context.Context, path string, dst interface{}) error {
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return errInvalidConfigPtr
	}

	if err := c.loader.Load(ctx, path, dst); err != nil {
		return errors.Join(errLoadConfigFailed, err)
	}

	if validator, ok := dst.(Validator); ok {
		if err := validator.Validate(); err != nil {
			return err
		}
	}

	c.logger.Debug().Str("path", path).Msg("Configuration loaded")

	return nil
}
