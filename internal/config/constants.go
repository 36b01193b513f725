package config

// Defaults applied by [Config.ApplyDefaults].
const (
	DefaultConfigFilename = "peupgrade.yaml"
	DefaultReleaseURL     = "https://s3.amazonaws.com/pe-builds/released"
	DefaultStagingDir     = "/tmp/peupgrade"
	DefaultUploadDir      = "/tmp"
	DefaultTokenFile      = "/root/.puppetlabs/token"
	DefaultSSHUser        = "root"
	DefaultSSHPort        = 22
	DefaultMirrorRegion   = "us-east-1"
)

// Environment variables that override mirror credentials from the file.
const (
	EnvMirrorAccessKey = "PEUPGRADE_MIRROR_ACCESS_KEY"
	EnvMirrorSecretKey = "PEUPGRADE_MIRROR_SECRET_KEY"
)

// PE service ports queried by the status API.
const (
	OrchestratorPort    = 8143
	PuppetDBPort        = 8081
	ConsoleServicesPort = 4433
	PuppetServerPort    = 8140
)
