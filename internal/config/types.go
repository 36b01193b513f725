package config

// DownloadMode selects how the installer tarball reaches install targets.
type DownloadMode string

const (
	// DownloadUpload fetches the tarball once locally and uploads it to
	// every target.
	DownloadUpload DownloadMode = "upload"
	// DownloadDirect makes each target fetch the tarball itself.
	DownloadDirect DownloadMode = "direct"
	// DownloadS3 fetches the tarball once from an S3-compatible mirror and
	// uploads it to every target.
	DownloadS3 DownloadMode = "s3"
)

// Config is the upgrade configuration.
type Config struct {
	PrimaryHost           string   `yaml:"primary_host"`
	ReplicaHost           string   `yaml:"replica_host,omitempty"`
	CompilerHosts         []string `yaml:"compiler_hosts,omitempty"`
	PrimaryPostgreSQLHost string   `yaml:"primary_postgresql_host,omitempty"`
	ReplicaPostgreSQLHost string   `yaml:"replica_postgresql_host,omitempty"`

	// Version is the PE release to upgrade to, e.g. 2021.7.1.
	Version string `yaml:"version"`

	// Load balancer addresses. They only feed the classification data.
	CompilerPoolAddress          string `yaml:"compiler_pool_address,omitempty"`
	InternalCompilerAPoolAddress string `yaml:"internal_compiler_a_pool_address,omitempty"`
	InternalCompilerBPoolAddress string `yaml:"internal_compiler_b_pool_address,omitempty"`

	// PEConf is a local pe.conf answer file passed to the installer.
	PEConf string `yaml:"pe_conf,omitempty"`

	DownloadMode DownloadMode `yaml:"download_mode,omitempty"`
	ReleaseURL   string       `yaml:"release_url,omitempty"`
	StagingDir   string       `yaml:"staging_dir,omitempty"`
	UploadDir    string       `yaml:"upload_dir,omitempty"`

	// TokenFile is the RBAC token path on the primary used by
	// `puppet infrastructure upgrade`.
	TokenFile string `yaml:"token_file,omitempty"`

	SSH     SSHConfig     `yaml:"ssh,omitempty"`
	PCP     PCPConfig     `yaml:"pcp,omitempty"`
	Mirror  MirrorConfig  `yaml:"mirror,omitempty"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
}

// SSHConfig holds defaults for ssh:// targets. User and port in a host URI
// take precedence.
type SSHConfig struct {
	User           string `yaml:"user,omitempty"`
	Port           int    `yaml:"port,omitempty"`
	PrivateKeyPath string `yaml:"private_key_path,omitempty"`
	// KnownHostsPath enables host key verification when set.
	KnownHostsPath string `yaml:"known_hosts_path,omitempty"`
}

// PCPConfig configures the orchestrator API used for pcp:// targets.
type PCPConfig struct {
	OrchestratorURL string `yaml:"orchestrator_url,omitempty"`
	TokenFile       string `yaml:"token_file,omitempty"`
	CACert          string `yaml:"ca_cert,omitempty"`
	Environment     string `yaml:"environment,omitempty"`
}

// MirrorConfig configures the S3-compatible release mirror.
type MirrorConfig struct {
	Endpoint  string `yaml:"endpoint,omitempty"`
	Region    string `yaml:"region,omitempty"`
	Bucket    string `yaml:"bucket,omitempty"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
	PathStyle bool   `yaml:"path_style,omitempty"`
}

// MetricsConfig configures metric export.
type MetricsConfig struct {
	// TextfilePath writes metrics in Prometheus text format for the
	// node_exporter textfile collector when set.
	TextfilePath string `yaml:"textfile_path,omitempty"`
}

// AllHosts returns every configured host spec in slot order: primary,
// replica, primary database, replica database, compilers.
func (c *Config) AllHosts() []string {
	hosts := []string{c.PrimaryHost}
	for _, h := range []string{c.ReplicaHost, c.PrimaryPostgreSQLHost, c.ReplicaPostgreSQLHost} {
		if h != "" {
			hosts = append(hosts, h)
		}
	}
	return append(hosts, c.CompilerHosts...)
}
