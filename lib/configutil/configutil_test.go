package configutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Site struct {
		BaseUrl  string `json:"base_url"`
		Password string `json:"password" env:"SITE_PASSWORD"`
	} `json:"site"`
	Recipients []string `json:"recipients" env:"SMTP_TO"`
	Port       int      `json:"port"`
}

func writeFile(t testing.TB, path, contents string) {
	err := os.WriteFile(path, []byte(contents), 0o600)
	if err != nil {
		t.Fatal(err)
	}
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "config.json5")

	_, err := ReadConfig[testConfig](name)
	require.ErrorIs(t, err, os.ErrNotExist)

	writeFile(t, name, `{
		// comments and trailing commas are json5
		site: { base_url: "http://example.com", password: "from-file", },
		port: 8080,
	}`)
	writeFile(t, localPath(name), `{ site: { password: "from-local" } }`)

	cfg, err := ReadConfig[testConfig](name)
	require.NoError(t, err)
	require.Equal(t, "http://example.com", cfg.Site.BaseUrl)
	require.Equal(t, "from-local", cfg.Site.Password)
	require.Equal(t, 8080, cfg.Port)
}

func TestReadConfigOnlyLocal(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "config.json5")
	writeFile(t, localPath(name), `{ port: 1 }`)

	cfg, err := ReadConfig[testConfig](name)
	require.NoError(t, err)
	require.Equal(t, 1, cfg.Port)
}

func TestReadConfigInvalid(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "config.json5")
	writeFile(t, name, `{ port: `)

	_, err := ReadConfig[testConfig](name)
	require.Error(t, err)
	require.NotErrorIs(t, err, os.ErrNotExist)
}

func TestReadRecursively(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	writeFile(t, filepath.Join(root, "telemetry.json5"), `{ port: 4317 }`)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(nested))
	defer os.Chdir(wd)

	cfg, err := ReadRecursively[testConfig]("telemetry.json5")
	require.NoError(t, err)
	require.Equal(t, 4317, cfg.Port)

	_, err = ReadRecursively[testConfig]("missing.json5")
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestApplyEnv(t *testing.T) {
	var cfg testConfig
	cfg.Site.Password = "from-file"
	cfg.Site.BaseUrl = "http://example.com"

	err := ApplyEnvFrom(context.Background(), &cfg, map[string]string{
		"SMTP_TO": "a@example.com,b@example.com",
	})
	require.NoError(t, err)
	require.Equal(t, "from-file", cfg.Site.Password)
	require.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.Recipients)

	err = ApplyEnvFrom(context.Background(), &cfg, map[string]string{
		"SITE_PASSWORD": "from-env",
	})
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Site.Password)
	require.Equal(t, "http://example.com", cfg.Site.BaseUrl)
}

func TestLoadDotenv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	writeFile(t, path, "ACTIVITY_KEEPER_TEST_VAR=hello\n")
	t.Setenv("ACTIVITY_KEEPER_TEST_VAR", "")
	os.Unsetenv("ACTIVITY_KEEPER_TEST_VAR")

	require.NoError(t, LoadDotenv(path, filepath.Join(dir, "missing.env")))
	require.Equal(t, "hello", os.Getenv("ACTIVITY_KEEPER_TEST_VAR"))
}
