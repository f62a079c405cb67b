//go:build !unix

package daemonize

// Daemonize only supports foreground mode here.
func Daemonize(opts Options) (Result, error) {
	if opts.Foreground {
		return Result{Role: RoleDaemon}, nil
	}
	return Result{}, ErrUnsupported
}
