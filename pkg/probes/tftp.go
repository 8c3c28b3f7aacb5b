package probes

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pin/tftp/v3"
)

type tftpProbe struct {
	name     string
	address  string
	filename string
}

// NewTFTPFetch probes the boot-file transfer daemon by actually reading
// a known file over TFTP, the same operation a booting client performs.
func NewTFTPFetch(daemon, address, filename string) Probe {
	return &tftpProbe{name: daemon + " serving boot files", address: address, filename: filename}
}

func (p *tftpProbe) Name() string {
	return p.name
}

func (p *tftpProbe) Run(ctx context.Context) (bool, string) {
	client, err := tftp.NewClient(p.address)
	if err != nil {
		return false, fmt.Sprintf("failed to create TFTP client for %s: %v", p.address, err)
	}

	timeout := 2 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return false, fmt.Sprintf("TFTP fetch of %s timed out before starting", p.filename)
	}
	client.SetTimeout(timeout)
	client.SetRetries(1)

	transfer, err := client.Receive(p.filename, "octet")
	if err != nil {
		return false, fmt.Sprintf("TFTP fetch of %s from %s failed: %v", p.filename, p.address, err)
	}

	n, err := transfer.WriteTo(io.Discard)
	if err != nil {
		return false, fmt.Sprintf("TFTP transfer of %s aborted: %v", p.filename, err)
	}
	if n == 0 {
		return false, fmt.Sprintf("TFTP fetch of %s returned an empty file", p.filename)
	}
	return true, fmt.Sprintf("fetched %s (%d bytes) over TFTP", p.filename, n)
}
