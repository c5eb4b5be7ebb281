package flagx

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		allowedFlags []string
		want         []string
	}{
		{
			name:         "short flag with separate value",
			args:         []string{"-d", "postgres://db", "-x", "1"},
			allowedFlags: []string{"-d", "-s"},
			want:         []string{"-d", "postgres://db"},
		},
		{
			name:         "flag with equals",
			args:         []string{"-config=cropdb.json", "-a", ":50051"},
			allowedFlags: []string{"-c", "-config"},
			want:         []string{"-config=cropdb.json"},
		},
		{
			name:         "allowed flag without value at the end",
			args:         []string{"-a", ":50051", "-s"},
			allowedFlags: []string{"-s"},
			want:         []string{"-s"},
		},
		{
			name:         "next dash token is not a value",
			args:         []string{"-c", "-config=alt.json"},
			allowedFlags: []string{"-c", "-config"},
			want:         []string{"-c", "-config=alt.json"},
		},
		{
			name:         "empty args",
			args:         []string{},
			allowedFlags: []string{"-c"},
			want:         []string{},
		},
		{
			name:         "repeated flag keeps order",
			args:         []string{"-n", "5", "-n", "20"},
			allowedFlags: []string{"-n"},
			want:         []string{"-n", "5", "-n", "20"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowedFlags))
		})
	}
}

func TestConfigFileFlag(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	t.Run("short -c", func(t *testing.T) {
		os.Args = []string{"cropdb", "-c", "/etc/cropdb.json"}
		assert.Equal(t, "/etc/cropdb.json", ConfigFileFlag())
	})

	t.Run("long -config", func(t *testing.T) {
		os.Args = []string{"cropdb", "-config", "/etc/long.json"}
		assert.Equal(t, "/etc/long.json", ConfigFileFlag())
	})

	t.Run("other flags ignored", func(t *testing.T) {
		os.Args = []string{"cropdb", "-a", ":1", "-n", "3"}
		assert.Empty(t, ConfigFileFlag())
	})

	t.Run("last wins", func(t *testing.T) {
		os.Args = []string{"cropdb", "-c", "/a.json", "-config", "/b.json"}
		assert.Equal(t, "/b.json", ConfigFileFlag())
	})
}

func TestEnvString(t *testing.T) {
	v := "default"
	EnvString("CROPDB_TEST_UNSET_VAR", &v)
	assert.Equal(t, "default", v)

	t.Setenv("CROPDB_TEST_VAR", "from-env")
	EnvString("CROPDB_TEST_VAR", &v)
	assert.Equal(t, "from-env", v)
}

func TestEnvInt(t *testing.T) {
	n := 20
	require.NoError(t, EnvInt("CROPDB_TEST_UNSET_INT", &n))
	assert.Equal(t, 20, n)

	t.Setenv("CROPDB_TEST_INT", " 5 ")
	require.NoError(t, EnvInt("CROPDB_TEST_INT", &n))
	assert.Equal(t, 5, n)

	t.Setenv("CROPDB_TEST_INT", "five")
	err := EnvInt("CROPDB_TEST_INT", &n)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CROPDB_TEST_INT")
	assert.Equal(t, 5, n)
}

func TestEnvSeconds(t *testing.T) {
	d := time.Hour
	require.NoError(t, EnvSeconds("CROPDB_TEST_UNSET_SECS", &d))
	assert.Equal(t, time.Hour, d)

	t.Setenv("CROPDB_TEST_SECS", "90")
	require.NoError(t, EnvSeconds("CROPDB_TEST_SECS", &d))
	assert.Equal(t, 90*time.Second, d)

	t.Setenv("CROPDB_TEST_SECS", "15m")
	require.NoError(t, EnvSeconds("CROPDB_TEST_SECS", &d))
	assert.Equal(t, 15*time.Minute, d)

	t.Setenv("CROPDB_TEST_SECS", "soon")
	require.Error(t, EnvSeconds("CROPDB_TEST_SECS", &d))
}
