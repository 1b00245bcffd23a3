package transport

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

var errNotDir = errors.New("not a directory")

// Open connects to the tree at loc. The root must be a directory; when
// mustExist is false a missing root is accepted and reads as empty. Any
// failure is returned as an *Error.
//
//nolint:ireturn // callers work against the interface
func Open(ctx context.Context, loc Location, opts SSHOpts, mustExist bool) (WriteEndpoint, error) {
	if !loc.IsRemote() {
		root, err := filepath.Abs(loc.Path)
		if err != nil {
			return nil, &Error{Op: "open", Location: loc.String(), Err: err}
		}
		info, err := os.Stat(root)
		switch {
		case errors.Is(err, fs.ErrNotExist) && !mustExist:
		case err != nil:
			return nil, &Error{Op: "open", Location: loc.String(), Err: err}
		case !info.IsDir():
			return nil, &Error{Op: "open", Location: loc.String(), Err: errNotDir}
		}
		return NewLocalEndpoint(root), nil
	}

	if loc.Port != 0 {
		opts.Port = loc.Port
	}
	if loc.Password != "" {
		opts.Password = loc.Password
	}
	client, err := DialSSH(ctx, loc.Host, loc.User, opts)
	if err != nil {
		return nil, &Error{Op: "connect", Location: loc.String(), Err: err}
	}
	ep, err := NewSFTPEndpoint(client, loc.Path)
	if err != nil {
		client.Close()
		return nil, &Error{Op: "open", Location: loc.String(), Err: err}
	}
	info, err := ep.Stat("")
	switch {
	case errors.Is(err, fs.ErrNotExist) && !mustExist:
	case err != nil:
		ep.Close()
		return nil, &Error{Op: "open", Location: loc.String(), Err: err}
	case !info.IsDir:
		ep.Close()
		return nil, &Error{Op: "open", Location: loc.String(), Err: errNotDir}
	}
	return ep, nil
}
