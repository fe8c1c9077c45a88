package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/navis-org/connectomes/backend/dvidnode"
	"github.com/navis-org/connectomes/backend/precomputed"
	"github.com/navis-org/connectomes/connectome"
)

// DatasetConfig overrides the built-in defaults of one dataset.  Unset
// fields keep the defaults baked into the dataset table.
type DatasetConfig struct {
	// Server overrides the backend server URL.
	Server string

	// Token is the backend auth token.  TokenFile and CredentialsFile
	// point at files holding it instead; CredentialsFile expects the
	// JSON layout described by credentialsSchema.
	Token           string
	TokenFile       string `toml:"token_file"`
	CredentialsFile string `toml:"credentials_file"`

	// DVIDServer and UUID select the DVID server and version node for
	// datasets that pair a graph database with a DVID volume.
	DVIDServer string `toml:"dvid_server"`
	UUID       string

	// ProjectID selects the CATMAID project.
	ProjectID int `toml:"project_id"`

	// Table selects the ChunkedGraph table.
	Table string

	// SegRef and MeshRef override the bucket URLs for precomputed
	// segmentation and mesh fragments.
	SegRef  string `toml:"seg_ref"`
	MeshRef string `toml:"mesh_ref"`

	// LeavesCache is a directory for the persistent supervoxel cache.
	LeavesCache string `toml:"leaves_cache"`
}

// Config is the TOML configuration for a registry.
type Config struct {
	Logging connectome.LogConfig

	// Cache gives per-backend cache sizes in megabytes, keyed by
	// "dvid" and "precomputed".
	Cache map[string]int

	Datasets map[string]DatasetConfig
}

// LoadConfig reads a TOML config file.
func LoadConfig(path string) (*Config, error) {
	var c Config
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return nil, fmt.Errorf("error reading config file %q: %v", path, err)
	}
	return &c, nil
}

// Setup applies process-wide settings: logging and cache sizing.
func (c *Config) Setup() {
	if c == nil {
		return
	}
	c.Logging.SetLogger()
	for backend, mbs := range c.Cache {
		switch backend {
		case "dvid":
			dvidnode.SetCacheSize(mbs << 20)
		case "precomputed":
			precomputed.SetCacheSize(mbs << 20)
		default:
			connectome.Warningf("Unknown cache backend %q in config, ignored.\n", backend)
		}
	}
}

// credentialsSchema describes the JSON credentials files the Python
// ecosystem tools write (CATMAID client exports, CAVE secret files).
const credentialsSchema = `{
	"type": "object",
	"properties": {
		"server": {"type": "string"},
		"token": {"type": "string"},
		"api_token": {"type": "string"},
		"http_user": {"type": "string"},
		"http_password": {"type": "string"}
	},
	"anyOf": [
		{"required": ["token"]},
		{"required": ["api_token"]}
	]
}`

var compiledCredentialsSchema = jsonschema.MustCompileString("credentials.json", credentialsSchema)

// Credentials is a parsed credentials file.
type Credentials struct {
	Server       string `json:"server"`
	Token        string `json:"token"`
	APIToken     string `json:"api_token"`
	HTTPUser     string `json:"http_user"`
	HTTPPassword string `json:"http_password"`
}

// LoadCredentials reads and validates a JSON credentials file.
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot load credentials file %q: %v", path, err)
	}
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("credentials file %q is not valid JSON: %v", path, err)
	}
	if err := compiledCredentialsSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("credentials file %q is malformed: %v", path, err)
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

// resolveToken returns the auth token from config, preferring inline
// token, then token file, then credentials file, then the environment
// variable.
func (dc DatasetConfig) resolveToken(envVar string) (string, error) {
	if dc.Token != "" {
		return dc.Token, nil
	}
	if dc.TokenFile != "" {
		data, err := os.ReadFile(dc.TokenFile)
		if err != nil {
			return "", fmt.Errorf("cannot read token file %q: %v", dc.TokenFile, err)
		}
		return string(bytes.TrimSpace(data)), nil
	}
	if dc.CredentialsFile != "" {
		creds, err := LoadCredentials(dc.CredentialsFile)
		if err != nil {
			return "", err
		}
		if creds.Token != "" {
			return creds.Token, nil
		}
		return creds.APIToken, nil
	}
	if envVar != "" {
		return os.Getenv(envVar), nil
	}
	return "", nil
}
