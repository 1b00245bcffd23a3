package transport

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Location represents a parsed source or destination argument.
type Location struct {
	Host     string
	User     string
	Password string
	Path     string
	Port     int
}

// IsRemote returns true if the location refers to a remote host.
func (l Location) IsRemote() bool {
	return l.Host != ""
}

// String returns a human-readable representation. The password is never
// included.
func (l Location) String() string {
	if !l.IsRemote() {
		return l.Path
	}
	host := l.Host
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if l.Port != 0 {
		host += ":" + strconv.Itoa(l.Port)
	}
	p := l.Path
	if !strings.HasPrefix(p, "/") {
		// Home-relative paths print the way they are written.
		p = "/" + p
	}
	if l.User != "" {
		return fmt.Sprintf("%s@%s%s", l.User, host, p)
	}
	return host + p
}

// ParseLocation parses a CLI argument into a Location.
//
// Supported formats:
//   - /absolute/path or relative/path        → local
//   - user@host/path                         → SFTP, absolute path
//   - user:password@host:port/path           → SFTP with password and port
//   - user@host/~/path                       → SFTP, relative to remote home
//   - sftp://user@host:port/path             → SFTP, URL form
//
// An argument is remote only when it has an '@' before its first '/', so
// local paths containing '@' or ':' inside a directory name stay local.
// Remote home paths are returned as "~" or "~/path".
func ParseLocation(arg string) (Location, error) {
	if strings.HasPrefix(arg, "sftp://") {
		return parseSFTPURL(arg)
	}

	slash := strings.IndexByte(arg, '/')
	authority, p := arg, ""
	if slash >= 0 {
		authority, p = arg[:slash], arg[slash:]
	}
	at := strings.LastIndexByte(authority, '@')
	if at < 0 {
		return Location{Path: arg}, nil
	}

	loc := Location{}
	userInfo := authority[:at]
	if u, pw, ok := strings.Cut(userInfo, ":"); ok {
		loc.User, loc.Password = u, pw
	} else {
		loc.User = userInfo
	}

	host, port, err := splitHostPort(authority[at+1:])
	if err != nil {
		return Location{}, fmt.Errorf("parse location %q: %w", arg, err)
	}
	if host == "" {
		return Location{}, fmt.Errorf("parse location %q: missing host", arg)
	}
	loc.Host, loc.Port = host, port
	loc.Path = remotePath(p)
	return loc, nil
}

func parseSFTPURL(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("parse location %q: %w", raw, err)
	}
	if u.Hostname() == "" {
		return Location{}, fmt.Errorf("parse location %q: missing host", raw)
	}

	loc := Location{Host: u.Hostname(), Path: remotePath(u.Path)}
	if p := u.Port(); p != "" {
		loc.Port, err = strconv.Atoi(p)
		if err != nil {
			return Location{}, fmt.Errorf("parse location %q: bad port: %w", raw, err)
		}
	}
	if u.User != nil {
		loc.User = u.User.Username()
		loc.Password, _ = u.User.Password()
	}
	return loc, nil
}

func splitHostPort(hostport string) (string, int, error) {
	if !strings.Contains(hostport, ":") {
		return hostport, 0, nil
	}
	if strings.HasPrefix(hostport, "[") && strings.HasSuffix(hostport, "]") {
		return hostport[1 : len(hostport)-1], 0, nil
	}
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("bad port %q", portStr)
	}
	return host, port, nil
}

// remotePath maps "/~" and "/~/x" to home-relative form and an empty path
// to the home directory itself.
func remotePath(p string) string {
	switch {
	case p == "" || p == "/~":
		return "~"
	case strings.HasPrefix(p, "/~/"):
		return "~/" + strings.TrimLeft(p[3:], "/")
	default:
		return p
	}
}
