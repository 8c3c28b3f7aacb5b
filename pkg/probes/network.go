package probes

import (
	"context"
	"fmt"
	"net"
	"time"
)

type portProbe struct {
	name    string
	network string
	address string
}

// NewPortListening probes whether a daemon's port accepts connections.
// TCP gets a real connect. UDP is connectionless, so the probe sends an
// empty datagram and treats only an ICMP port-unreachable style error as
// a failure; silence is a pass.
func NewPortListening(daemon, network, address string) Probe {
	return &portProbe{name: daemon + " port listening", network: network, address: address}
}

func (p *portProbe) Name() string {
	return p.name
}

func (p *portProbe) Run(ctx context.Context) (bool, string) {
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, p.network, p.address)
	if err != nil {
		return false, fmt.Sprintf("%s dial failed for %s: %v", p.network, p.address, err)
	}
	defer conn.Close()

	if p.network == "udp" {
		if _, err := conn.Write([]byte{}); err != nil {
			return false, fmt.Sprintf("udp write failed for %s: %v", p.address, err)
		}
		deadline := time.Now().Add(200 * time.Millisecond)
		if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
			deadline = ctxDeadline
		}
		conn.SetReadDeadline(deadline)
		buf := make([]byte, 1)
		if _, err := conn.Read(buf); err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				// No unreachable error surfaced; the port is bound.
				return true, fmt.Sprintf("udp port bound at %s", p.address)
			}
			return false, fmt.Sprintf("udp port unreachable at %s: %v", p.address, err)
		}
	}

	return true, fmt.Sprintf("%s connection successful to %s", p.network, p.address)
}

type reachabilityProbe struct {
	name    string
	targets []string
}

// NewOutboundReachability probes that the host can still open an
// outbound TCP connection to at least one of the given targets. A
// timeout is treated identically to refusal: a failed check.
func NewOutboundReachability(targets ...string) Probe {
	return &reachabilityProbe{name: "outbound network reachable", targets: targets}
}

func (p *reachabilityProbe) Name() string {
	return p.name
}

func (p *reachabilityProbe) Run(ctx context.Context) (bool, string) {
	if len(p.targets) == 0 {
		return false, "no reachability targets configured"
	}

	dialer := net.Dialer{}
	var lastErr error
	for _, target := range p.targets {
		conn, err := dialer.DialContext(ctx, "tcp", target)
		if err == nil {
			conn.Close()
			return true, fmt.Sprintf("reached %s", target)
		}
		lastErr = err
	}
	return false, fmt.Sprintf("no target reachable, last error: %v", lastErr)
}
