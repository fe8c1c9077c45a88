package registry

import (
	"os"
	"path/filepath"
	"testing"
)

const testConfigTOML = `
[logging]
logfile = "/var/log/connectomes.log"
max_log_size = 500
max_log_age = 30

[cache]
dvid = 100
precomputed = 250

[datasets.hemibrain]
server = "https://neuprint.example.org"
token_file = "/secrets/neuprint-token"

[datasets.flywire]
token = "abc123"
leaves_cache = "/var/cache/flywire-leaves"
seg_ref = "gs://mirror/flywire/seg"
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	c, err := LoadConfig(writeFile(t, "config.toml", testConfigTOML))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Logging.Logfile != "/var/log/connectomes.log" || c.Logging.MaxSize != 500 {
		t.Errorf("bad logging config: %+v", c.Logging)
	}
	if c.Cache["dvid"] != 100 || c.Cache["precomputed"] != 250 {
		t.Errorf("bad cache config: %v", c.Cache)
	}
	hb := c.Datasets["hemibrain"]
	if hb.Server != "https://neuprint.example.org" || hb.TokenFile != "/secrets/neuprint-token" {
		t.Errorf("bad hemibrain config: %+v", hb)
	}
	fw := c.Datasets["flywire"]
	if fw.Token != "abc123" || fw.LeavesCache != "/var/cache/flywire-leaves" ||
		fw.SegRef != "gs://mirror/flywire/seg" {
		t.Errorf("bad flywire config: %+v", fw)
	}
}

func TestLoadConfigMissing(t *testing.T) {
	if _, err := LoadConfig("/no/such/config.toml"); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoadCredentials(t *testing.T) {
	path := writeFile(t, "creds.json",
		`{"server": "https://cave.example.org", "token": "tok-1"}`)
	creds, err := LoadCredentials(path)
	if err != nil {
		t.Fatalf("LoadCredentials: %v", err)
	}
	if creds.Server != "https://cave.example.org" || creds.Token != "tok-1" {
		t.Errorf("bad credentials: %+v", creds)
	}

	// api_token is the CATMAID spelling.
	path = writeFile(t, "catmaid.json", `{"api_token": "tok-2", "http_user": "anon"}`)
	creds, err = LoadCredentials(path)
	if err != nil {
		t.Fatalf("LoadCredentials: %v", err)
	}
	if creds.APIToken != "tok-2" {
		t.Errorf("bad credentials: %+v", creds)
	}
}

func TestLoadCredentialsMalformed(t *testing.T) {
	// Schema requires token or api_token.
	path := writeFile(t, "bad.json", `{"server": "https://cave.example.org"}`)
	if _, err := LoadCredentials(path); err == nil {
		t.Error("expected error for credentials without a token")
	}
	path = writeFile(t, "notjson.json", `token: tok`)
	if _, err := LoadCredentials(path); err == nil {
		t.Error("expected error for non-JSON credentials")
	}
}

func TestResolveToken(t *testing.T) {
	const envVar = "CONNECTOMES_TEST_TOKEN"
	t.Setenv(envVar, "from-env")

	// Inline token wins.
	token, err := DatasetConfig{Token: "inline"}.resolveToken(envVar)
	if err != nil || token != "inline" {
		t.Errorf("inline: got %q, %v", token, err)
	}

	// Then a token file, trimmed.
	tokenFile := writeFile(t, "token", "from-file\n")
	token, err = DatasetConfig{TokenFile: tokenFile}.resolveToken(envVar)
	if err != nil || token != "from-file" {
		t.Errorf("token file: got %q, %v", token, err)
	}

	// Then a credentials file.
	credsFile := writeFile(t, "creds.json", `{"token": "from-creds"}`)
	token, err = DatasetConfig{CredentialsFile: credsFile}.resolveToken(envVar)
	if err != nil || token != "from-creds" {
		t.Errorf("credentials file: got %q, %v", token, err)
	}

	// Then the environment.
	token, err = DatasetConfig{}.resolveToken(envVar)
	if err != nil || token != "from-env" {
		t.Errorf("env: got %q, %v", token, err)
	}

	if _, err = (DatasetConfig{TokenFile: "/no/such/token"}).resolveToken(envVar); err == nil {
		t.Error("expected error for missing token file")
	}
}
