//go:build !windows

package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-tockboot/bootloader"
	"github.com/moffa90/go-tockboot/device"
	"github.com/moffa90/go-tockboot/transport"
)

func TestEmulatorOverPTY(t *testing.T) {
	p, err := transport.OpenPTY()
	if err != nil {
		t.Skipf("pty unavailable: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = device.New(device.WithInfo("over a pty")).Serve(ctx, p)
	}()
	t.Cleanup(func() {
		cancel()
		_ = p.Close()
		<-done
	})

	prog := bootloader.New(p.Terminal(), bootloader.WithReadTimeout(2*time.Second))
	require.NoError(t, prog.Ping(ctx))

	info, err := prog.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, "over a pty", info)
}
