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

package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/uptrail/uptrail/pkg/models"
)

const (
	snmpPort      = 161
	sysUpTimeOID  = ".1.3.6.1.2.1.1.3.0"
	defaultPublic = "public"
)

// SNMPChecker performs an SNMP GET of sysUpTime against the node.
type SNMPChecker struct {
	timeout time.Duration
}

func NewSNMPChecker(timeout time.Duration) *SNMPChecker {
	return &SNMPChecker{timeout: timeout}
}

func (c *SNMPChecker) Check(_ context.Context, node *models.Node) (bool, int64, error) {
	community := node.SNMPCommunity
	if community == "" {
		community = defaultPublic
	}

	params := &gosnmp.GoSNMP{
		Target:    node.Address,
		Port:      snmpPort,
		Community: community,
		Version:   snmpVersion(node.SNMPVersion),
		Timeout:   c.timeout,
		Retries:   0,
	}

	if err := params.Connect(); err != nil {
		return false, 0, fmt.Errorf("snmp connect failed: %w", err)
	}

	defer func() { _ = params.Conn.Close() }()

	start := time.Now()

	result, err := params.Get([]string{sysUpTimeOID})
	if err != nil {
		return false, 0, fmt.Errorf("snmp get failed: %w", err)
	}

	if result.Error != gosnmp.NoError {
		return false, 0, fmt.Errorf("snmp error status: %v", result.Error)
	}

	return true, time.Since(start).Milliseconds(), nil
}

func snmpVersion(v string) gosnmp.SnmpVersion {
	switch v {
	case "1":
		return gosnmp.Version1
	case "3":
		return gosnmp.Version3
	default:
		return gosnmp.Version2c
	}
}
