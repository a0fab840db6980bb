// internal/config/model.go
//
// Typed configuration model for dirsite.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `conf/.env`                      – dotenv values,
//   • `conf/dirsite.yaml`                       – primary static file,
//   • `DIRSITE_`-prefixed environment overrides – highest precedence.
//
// Any value whose string begins with `vault:` is resolved through the
// Vault client *before* unmarshalling, so the model never stores Vault
// references, only plain strings.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`; Koanf ignores `yaml` tags.
//   • The `Paths` block is filled at runtime; YAML must not try to set it.
//   • Defaults are applied after unmarshal and before validation.

package config

import "time"

//
// HTTP section
//

// HTTP holds serve/dev tunables.
type HTTP struct {
	ListenAddr  string `koanf:"listen_addr"  validate:"required,hostname_port"`
	ForceHTTPS  bool   `koanf:"force_https"`
	AssetPrefix string `koanf:"asset_prefix" validate:"required,startswith=/"`
	GeoIPDB     string `koanf:"geoip_db"` // optional GeoLite2 Country/City file for access logs
}

//
// Backend section
//

// Backend points at the NocoDB instance.  Table values are NocoDB table
// ids, not display names.
type Backend struct {
	URL     string        `koanf:"url"     validate:"required,url"`
	Token   string        `koanf:"token"   validate:"required"`
	Timeout time.Duration `koanf:"timeout"`
	Tables  Tables        `koanf:"tables"`
}

// Tables names the three NocoDB tables dirsite reads.
type Tables struct {
	Directories  string `koanf:"directories"   validate:"required"`
	Listings     string `koanf:"listings"      validate:"required"`
	LandingPages string `koanf:"landing_pages"`
}

//
// Site section
//

// Site carries values injected into every generator run.
type Site struct {
	BaseURL string `koanf:"base_url" validate:"omitempty,url"`
}

//
// Build section
//

// Build controls the generator subprocess and the output tree.
type Build struct {
	OutputDir          string       `koanf:"output_dir"`
	ContentDir         string       `koanf:"content_dir"`
	PublicDir          string       `koanf:"public_dir"`
	ThemesDir          string       `koanf:"themes_dir"`
	Generator          []string     `koanf:"generator"`
	GeneratorDir       string       `koanf:"generator_dir"`
	DefaultDirectories []string     `koanf:"default_directories"`
	Dependencies       []Dependency `koanf:"dependencies"`
}

// Dependency maps a changed source path (prefix match) to the directories
// that must be rebuilt: every directory when All is set, otherwise every
// directory whose theme is listed.
type Dependency struct {
	Path   string   `koanf:"path"   validate:"required"`
	All    bool     `koanf:"all"`
	Themes []string `koanf:"themes"`
}

//
// Webhook section
//

// Webhook configures the content-change endpoint and the downstream
// rebuild trigger (a repository-dispatch style POST).
type Webhook struct {
	Secret        string `koanf:"secret"`
	DispatchURL   string `koanf:"dispatch_url"   validate:"omitempty,url"`
	DispatchToken string `koanf:"dispatch_token"`
	EventType     string `koanf:"event_type"`
}

//
// Deploy section
//

// Deploy holds per-driver credentials.  Each directory may override the
// target path (root, prefix, branch) through its own deployment record.
type Deploy struct {
	ManualDir string `koanf:"manual_dir"`
	FTP       FTP    `koanf:"ftp"`
	SSH       SSH    `koanf:"ssh"`
	S3        S3     `koanf:"s3"`
	GCS       GCS    `koanf:"gcs"`
	GitHub    GitHub `koanf:"github"`
}

type FTP struct {
	Addr     string `koanf:"addr"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Root     string `koanf:"root"`
}

type SSH struct {
	Addr       string `koanf:"addr"`
	User       string `koanf:"user"`
	Password   string `koanf:"password"`
	KeyFile    string `koanf:"key_file"`
	KnownHosts string `koanf:"known_hosts"`
	Root       string `koanf:"root"`
}

type S3 struct {
	Bucket    string `koanf:"bucket"`
	Region    string `koanf:"region"`
	Prefix    string `koanf:"prefix"`
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
}

type GCS struct {
	Bucket          string `koanf:"bucket"`
	Prefix          string `koanf:"prefix"`
	CredentialsFile string `koanf:"credentials_file"`
}

type GitHub struct {
	Repo        string `koanf:"repo"`
	Branch      string `koanf:"branch"`
	Token       string `koanf:"token"`
	AuthorName  string `koanf:"author_name"`
	AuthorEmail string `koanf:"author_email"`
}

//
// History section
//

// History selects the run ledger database.
type History struct {
	Driver string `koanf:"driver" validate:"omitempty,oneof=sqlite mysql"`
	DSN    string `koanf:"dsn"`
}

//
// Log section
//

type Log struct {
	Dir   string `koanf:"dir"`
	Level string `koanf:"level" validate:"omitempty,oneof=debug info warn error"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime, never set in YAML or env.
type Paths struct {
	Root string // DIRSITE_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads.
type Config struct {
	HTTP    HTTP    `koanf:"http"`
	Backend Backend `koanf:"backend"`
	Site    Site    `koanf:"site"`
	Build   Build   `koanf:"build"`
	Webhook Webhook `koanf:"webhook"`
	Deploy  Deploy  `koanf:"deploy"`
	History History `koanf:"history"`
	Log     Log     `koanf:"log"`
	Paths   Paths   `koanf:"-"`
}
