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
	"net"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"

	"github.com/uptrail/uptrail/pkg/models"
)

const (
	protocolICMP    = 1
	icmpReadBuffer  = 1500
	tcpFallbackPort = "80"
)

// ICMPChecker sends an ICMP echo request and waits for the reply. It prefers
// an unprivileged datagram socket, falls back to a raw socket when the kernel
// does not allow SOCK_DGRAM ICMP, and falls back to a TCP dial when neither
// socket can be opened.
type ICMPChecker struct {
	seq atomic.Uint32
}

func NewICMPChecker() *ICMPChecker {
	return &ICMPChecker{}
}

func (c *ICMPChecker) Check(ctx context.Context, node *models.Node) (bool, int64, error) {
	ip, err := net.ResolveIPAddr("ip4", node.Address)
	if err != nil {
		return false, 0, fmt.Errorf("failed to resolve %q: %w", node.Address, err)
	}

	conn, dst, err := openICMP(ip)
	if err != nil {
		return tcpFallback(ctx, ip)
	}
	defer func() { _ = conn.Close() }()

	seq := int(c.seq.Add(1) & 0xffff)

	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{
			ID:   os.Getpid() & 0xffff,
			Seq:  seq,
			Data: []byte("uptrail-probe"),
		},
	}

	wb, err := msg.Marshal(nil)
	if err != nil {
		return false, 0, fmt.Errorf("failed to marshal echo request: %w", err)
	}

	deadline, ok := ctx.Deadline()
	if ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return false, 0, err
		}
	}

	start := time.Now()

	if _, err := conn.WriteTo(wb, dst); err != nil {
		return false, 0, fmt.Errorf("failed to send echo request: %w", err)
	}

	rb := make([]byte, icmpReadBuffer)

	for {
		n, _, err := conn.ReadFrom(rb)
		if err != nil {
			return false, 0, fmt.Errorf("no echo reply: %w", err)
		}

		rm, err := icmp.ParseMessage(protocolICMP, rb[:n])
		if err != nil {
			continue
		}

		if rm.Type != ipv4.ICMPTypeEchoReply {
			continue
		}

		echo, ok := rm.Body.(*icmp.Echo)
		if !ok || echo.Seq != seq {
			continue
		}

		return true, time.Since(start).Milliseconds(), nil
	}
}

func openICMP(ip *net.IPAddr) (*icmp.PacketConn, net.Addr, error) {
	if conn, err := icmp.ListenPacket("udp4", "0.0.0.0"); err == nil {
		return conn, &net.UDPAddr{IP: ip.IP}, nil
	}

	conn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open icmp socket: %w", err)
	}

	return conn, ip, nil
}

// tcpFallback approximates reachability with a TCP dial when no ICMP socket
// is available to the process.
func tcpFallback(ctx context.Context, ip *net.IPAddr) (bool, int64, error) {
	var dialer net.Dialer

	start := time.Now()

	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(ip.IP.String(), tcpFallbackPort))
	if err != nil {
		return false, 0, fmt.Errorf("tcp fallback failed: %w", err)
	}

	_ = conn.Close()

	return true, time.Since(start).Milliseconds(), nil
}
