package transport

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/term"
)

// PasswordEnv is consulted for an SSH password when none is given in the
// location.
const PasswordEnv = "TREESYNC_SSH_PASSWORD"

// SSHOpts configures SSH connection behavior.
type SSHOpts struct {
	Port     int    // 0 = default (22)
	KeyFile  string // override key file path; empty = try defaults
	Password string // empty = fall back to Prompt, if set
	// Prompt is asked for a password only when the server wants one and
	// no Password was given.
	Prompt  func(user, host string) (string, error)
	Timeout time.Duration // 0 = 30s
}

// DialSSH establishes an SSH connection to host as user.
//
// Auth methods are tried in order:
//  1. SSH agent (if SSH_AUTH_SOCK is set)
//  2. Key files (~/.ssh/id_ed25519, id_ecdsa, id_rsa) or SSHOpts.KeyFile
//  3. Password (SSHOpts.Password, then SSHOpts.Prompt)
func DialSSH(ctx context.Context, host, userName string, opts SSHOpts) (*ssh.Client, error) {
	if userName == "" {
		u, err := user.Current()
		if err != nil {
			return nil, fmt.Errorf("determine current user: %w", err)
		}
		userName = u.Username
	}

	port := opts.Port
	if port == 0 {
		port = 22
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	authMethods := buildAuthMethods(userName, host, opts)
	if len(authMethods) == 0 {
		return nil, fmt.Errorf("no SSH auth methods available (set SSH_AUTH_SOCK, provide a key, or password)")
	}

	hostKeyCallback, err := defaultHostKeyCallback()
	if err != nil {
		// Fall back to insecure if known_hosts can't be loaded.
		// This matches the behavior of most CLI tools on first connection.
		//nolint:gosec // fallback for systems without known_hosts
		hostKeyCallback = ssh.InsecureIgnoreHostKey()
	}

	config := &ssh.ClientConfig{
		User:            userName,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %w", addr, err)
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake %s: %w", addr, err)
	}
	return ssh.NewClient(c, chans, reqs), nil
}

func buildAuthMethods(userName, host string, opts SSHOpts) []ssh.AuthMethod {
	var methods []ssh.AuthMethod

	// 1. SSH agent.
	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		conn, err := net.Dial("unix", sock)
		if err == nil {
			agentClient := agent.NewClient(conn)
			methods = append(methods, ssh.PublicKeysCallback(agentClient.Signers))
		}
	}

	// 2. Key files.
	if opts.KeyFile != "" {
		if m := keyFileAuth(opts.KeyFile); m != nil {
			methods = append(methods, m)
		}
	} else if home, err := os.UserHomeDir(); err == nil {
		for _, name := range []string{"id_ed25519", "id_ecdsa", "id_rsa"} {
			if m := keyFileAuth(filepath.Join(home, ".ssh", name)); m != nil {
				methods = append(methods, m)
			}
		}
	}

	// 3. Password.
	password := opts.Password
	if password == "" {
		password = os.Getenv(PasswordEnv)
	}
	switch {
	case password != "":
		methods = append(methods, ssh.Password(password))
	case opts.Prompt != nil:
		methods = append(methods, ssh.PasswordCallback(func() (string, error) {
			return opts.Prompt(userName, host)
		}))
	}

	return methods
}

func keyFileAuth(path string) ssh.AuthMethod {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil
	}
	return ssh.PublicKeys(signer)
}

func defaultHostKeyCallback() (ssh.HostKeyCallback, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	knownHostsPath := filepath.Join(home, ".ssh", "known_hosts")
	return knownhosts.New(knownHostsPath)
}

// TerminalPrompt reads a password from the controlling terminal without
// echo. It fails when stdin is not a terminal.
func TerminalPrompt(userName, host string) (string, error) {
	fd := int(os.Stdin.Fd()) //nolint:gosec // G115: fd fits in int
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("password required for %s@%s but stdin is not a terminal", userName, host)
	}
	fmt.Fprintf(os.Stderr, "%s@%s's password: ", userName, host)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pw), nil
}
