package flagx

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	cfg := []string{"-c", "-config"}

	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{"separate value", []string{"-a", "http://notes", "-c", "notes.json"}, cfg, []string{"-c", "notes.json"}},
		{"joined value", []string{"-config=notes.json", "-i", "30"}, cfg, []string{"-config=notes.json"}},
		{"joined value starting with dash", []string{"-config=-odd.json"}, cfg, []string{"-config=-odd.json"}},
		{"nothing allowed present", []string{"-a", "http://notes", "-trailing"}, cfg, []string{}},
		{"dangling flag", []string{"-i", "5", "-c"}, cfg, []string{"-c"}},
		{"next flag is not a value", []string{"-c", "-trailing", "-config=b.json"}, cfg, []string{"-c", "-config=b.json"}},
		{"repeats keep order", []string{"-c", "a.json", "-config", "b.json"}, cfg, []string{"-c", "a.json", "-config", "b.json"}},
		{"several owners", []string{"-a", "http://notes", "-l", "debug", "-d", "x.db"}, []string{"-a", "-l"}, []string{"-a", "http://notes", "-l", "debug"}},
		{"no args", nil, cfg, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowed))
		})
	}
}

func TestConfigPath(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  string
		want string
	}{
		{"short -c with value", []string{"-c", "/path/short.json"}, "", "/path/short.json"},
		{"long -config with equals", []string{"-config=/path/long.json"}, "", "/path/long.json"},
		{"unknown flags are ignored", []string{"-a", "http://x", "-i", "2"}, "", ""},
		{"last flag wins", []string{"-c", "/path/1.json", "-config", "/path/2.json"}, "", "/path/2.json"},
		{"env fallback", []string{"-a", "http://x"}, "/env/notes.json", "/env/notes.json"},
		{"flag beats env", []string{"-c", "/flag.json"}, "/env/notes.json", "/flag.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(ConfigPathEnv, tt.env)
			assert.Equal(t, tt.want, ConfigPath(tt.args))
		})
	}
}

func TestJsonConfigFlags_ReadsOSArgs(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	t.Setenv(ConfigPathEnv, "")

	os.Args = []string{"notes", "-trailing", "-c", "/path/cli.json"}
	assert.Equal(t, "/path/cli.json", JsonConfigFlags())
}
