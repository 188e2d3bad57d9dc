package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetDefaults_Auth(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	assert.Empty(t, v.GetString("server.auth.oidc_ca_file"))
	assert.Equal(t, 2*time.Minute, v.GetDuration("server.auth.oidc_clock_skew"))
	assert.False(t, v.GetBool("server.auth.optional"))
	assert.False(t, v.GetBool("server.admin.lists_reload_enabled"))
}

func TestSetDefaults_SignalSectionsStayUnset(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	assert.False(t, v.IsSet("observability.traces.endpoint"))
	assert.False(t, v.IsSet("observability.logs.insecure"))
}

func TestOptions_KeysAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, o := range append(options, signalOptions...) {
		assert.False(t, seen[o.key], "duplicate option %s", o.key)
		seen[o.key] = true
	}
}

func TestDefineFlags_CarryDefaults(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	DefineFlags(fs)

	port := fs.Lookup("server.port")
	require.NotNil(t, port)
	assert.Equal(t, "8080", port.DefValue)

	origins := fs.Lookup("server.cors_allowed_methods")
	require.NotNil(t, origins)
	assert.Equal(t, "stringSlice", origins.Value.Type())

	assert.NotNil(t, fs.Lookup("observability.traces.endpoint"))
	assert.Nil(t, fs.Lookup("naming.plural_overrides"), "map options are file and env only")
}

func TestBindChangedFlagsToViper_OnlyChangedFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	DefineFlags(fs)
	require.NoError(t, fs.Parse([]string{
		"--server.port=9090",
		"--server.cors_allowed_origins=https://a.example,https://b.example",
		"--database.pool.max_lifetime=90s",
	}))

	v := viper.New()
	bindChangedFlagsToViper(v, fs)

	assert.Equal(t, 9090, v.GetInt("server.port"))
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, v.GetStringSlice("server.cors_allowed_origins"))
	assert.Equal(t, 90*time.Second, v.GetDuration("database.pool.max_lifetime"))
	assert.False(t, v.IsSet("database.provider"))
}
