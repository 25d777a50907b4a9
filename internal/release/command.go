package release

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultTimeout = 60 * time.Second

// CommandOptions configure the external release command.
type CommandOptions struct {
	// Command is the executable, optionally followed by arguments.
	Command      string
	TokenProgram string
	DDMint       string
	Treasurer    ed25519.PrivateKey
	Timeout      time.Duration
}

// CommandReleaser runs the control program once per release. Deal parties
// and ledger settings are passed through the environment.
type CommandReleaser struct {
	opts CommandOptions
}

func NewCommandReleaser(opts CommandOptions) *CommandReleaser {
	if opts.Command == "" {
		opts.Command = "control"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &CommandReleaser{opts: opts}
}

func (r *CommandReleaser) Release(ctx context.Context, depositor, destination string) error {
	if len(r.opts.Treasurer) != ed25519.PrivateKeySize || r.opts.TokenProgram == "" || r.opts.DDMint == "" {
		return ErrNotConfigured
	}
	args := strings.Fields(r.opts.Command)
	if len(args) == 0 {
		return ErrNotConfigured
	}

	secret, err := json.Marshal(secretBytes(r.opts.Treasurer))
	if err != nil {
		return fmt.Errorf("encode treasurer key: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Env = append(os.Environ(),
		"USER="+depositor,
		"BENEFICIARY="+destination,
		"TOKEN_PROGRAM="+r.opts.TokenProgram,
		"DD_MINT="+r.opts.DDMint,
		"TREASURER_SECRET_KEY="+string(secret),
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	start := time.Now()
	err = cmd.Run()
	zap.L().Debug("release command finished",
		zap.String("depositor", depositor),
		zap.String("destination", destination),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("stdout", strings.TrimSpace(stdout.String())),
	)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("release command timed out after %s", r.opts.Timeout)
		}
		return fmt.Errorf("release command failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// secretBytes renders the key as a list of numbers, the keypair format the
// control program reads.
func secretBytes(key ed25519.PrivateKey) []int {
	out := make([]int, len(key))
	for i, b := range key {
		out[i] = int(b)
	}
	return out
}

var _ Releaser = (*CommandReleaser)(nil)
