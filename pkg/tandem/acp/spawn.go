package acp

import (
	"context"

	"github.com/tandem-dev/tandem/pkg/tandem/options"
)

// Spawn starts the agent CLI with the argv built from opts and returns
// its transport. The working directory, extra environment, and stderr
// callback carry over from the options.
func Spawn(ctx context.Context, binary string, opts *options.AgentOptions, topts ...TransportOption) (*Transport, error) {
	args, err := opts.BuildArgs()
	if err != nil {
		return nil, err
	}

	all := make([]TransportOption, 0, len(topts)+3)
	if opts.Cwd != "" {
		all = append(all, WithDir(opts.Cwd))
	}
	if len(opts.Env) > 0 {
		env := make([]string, 0, len(opts.Env))
		for k, v := range opts.Env {
			env = append(env, k+"="+v)
		}
		all = append(all, WithEnv(env))
	}
	if opts.Stderr != nil {
		all = append(all, WithStderrCallback(opts.Stderr))
	}
	all = append(all, topts...)

	return NewTransport(ctx, binary, args, all...)
}
