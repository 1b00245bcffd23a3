package transport_test

import (
	"testing"

	"github.com/bamsammich/treesync/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		wantHost string
		wantUser string
		wantPass string
		wantPath string
		wantPort int
	}{
		{
			name:     "absolute path",
			input:    "/home/user/data",
			wantPath: "/home/user/data",
		},
		{
			name:     "relative path",
			input:    "data/files",
			wantPath: "data/files",
		},
		{
			name:     "at sign inside directory name",
			input:    "backups/me@home/data",
			wantPath: "backups/me@home/data",
		},
		{
			name:     "absolute path with at sign",
			input:    "/srv/user@host/data",
			wantPath: "/srv/user@host/data",
		},
		{
			name:     "user@host/path",
			input:    "user@nas/backup/data",
			wantHost: "nas",
			wantUser: "user",
			wantPath: "/backup/data",
		},
		{
			name:     "port",
			input:    "user@nas:2222/backup",
			wantHost: "nas",
			wantUser: "user",
			wantPath: "/backup",
			wantPort: 2222,
		},
		{
			name:     "password and port",
			input:    "user:s3cret@nas.local:2222/data",
			wantHost: "nas.local",
			wantUser: "user",
			wantPass: "s3cret",
			wantPath: "/data",
			wantPort: 2222,
		},
		{
			name:     "home relative",
			input:    "user@nas/~/photos",
			wantHost: "nas",
			wantUser: "user",
			wantPath: "~/photos",
		},
		{
			name:     "home itself",
			input:    "user@nas/~",
			wantHost: "nas",
			wantUser: "user",
			wantPath: "~",
		},
		{
			name:     "no path",
			input:    "user@nas",
			wantHost: "nas",
			wantUser: "user",
			wantPath: "~",
		},
		{
			name:     "url form",
			input:    "sftp://user:pw@nas:2200/srv/data",
			wantHost: "nas",
			wantUser: "user",
			wantPass: "pw",
			wantPath: "/srv/data",
			wantPort: 2200,
		},
		{
			name:     "ipv6",
			input:    "user@[::1]:2022/data",
			wantHost: "::1",
			wantUser: "user",
			wantPath: "/data",
			wantPort: 2022,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			loc, err := transport.ParseLocation(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantHost, loc.Host, "Host")
			assert.Equal(t, tt.wantUser, loc.User, "User")
			assert.Equal(t, tt.wantPass, loc.Password, "Password")
			assert.Equal(t, tt.wantPath, loc.Path, "Path")
			assert.Equal(t, tt.wantPort, loc.Port, "Port")
			assert.Equal(t, tt.wantHost != "", loc.IsRemote())
		})
	}
}

func TestParseLocationErrors(t *testing.T) {
	t.Parallel()

	for _, input := range []string{
		"user@/data",
		"user@nas:notaport/data",
		"user@nas:99999/data",
		"sftp:///data",
	} {
		t.Run(input, func(t *testing.T) {
			t.Parallel()
			_, err := transport.ParseLocation(input)
			assert.Error(t, err)
		})
	}
}

func TestLocation_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		loc  transport.Location
		want string
	}{
		{
			name: "local",
			loc:  transport.Location{Path: "/data/files"},
			want: "/data/files",
		},
		{
			name: "remote with user",
			loc:  transport.Location{Host: "nas", User: "admin", Path: "/backup"},
			want: "admin@nas/backup",
		},
		{
			name: "password hidden, port shown",
			loc:  transport.Location{Host: "nas", User: "admin", Password: "pw", Port: 2222, Path: "/backup"},
			want: "admin@nas:2222/backup",
		},
		{
			name: "home relative",
			loc:  transport.Location{Host: "nas", Path: "~/backup"},
			want: "nas/~/backup",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.loc.String())
		})
	}
}
