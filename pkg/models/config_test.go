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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDurationUnmarshalString(t *testing.T) {
	var d Duration

	require.NoError(t, json.Unmarshal([]byte(`"90s"`), &d))
	assert.Equal(t, 90*time.Second, time.Duration(d))
}

func TestDurationUnmarshalNanoseconds(t *testing.T) {
	var d Duration

	require.NoError(t, json.Unmarshal([]byte(`60000000000`), &d))
	assert.Equal(t, time.Minute, time.Duration(d))
}

func TestDurationUnmarshalInvalid(t *testing.T) {
	var d Duration

	err := json.Unmarshal([]byte(`"not-a-duration"`), &d)
	assert.ErrorIs(t, err, errInvalidDuration)

	err = json.Unmarshal([]byte(`true`), &d)
	assert.ErrorIs(t, err, errInvalidDuration)
}

func TestDurationMarshalRoundTrip(t *testing.T) {
	d := Duration(150 * time.Millisecond)

	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"150ms"`, string(data))

	var back Duration

	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, d, back)
}
