package bundle

// Bundle directory layout. These names are part of the bundle format: the
// installer, the compose volume paths, and the repo definitions all refer
// to them, so they are constants rather than configuration.
const (
	DirPackages = "packages"
	DirDocker   = "docker"
	DirRepos    = "repos"
	DirConfig   = "config"
	DirCerts    = "certs"
	DirDocs     = "docs"
	DirScripts  = "scripts"
	DirData     = "data"
	DirCompose  = "compose"
)

// Well-known file names inside the layout.
const (
	CatalogFileName  = "catalog.yaml"
	NginxConfName    = "nginx.conf"
	PostgresConfName = "postgresql.conf"
	RedisConfName    = "redis.conf"
	SysctlConfName   = "sysctl.conf"
	ComposeFileName  = "compose.yaml"
	EnvFileName      = ".env"
	SecretsNoteName  = "secrets.env"
	InstallerName    = "drydock"
	InstallScript    = "install.sh"
	AdminGuideName   = "ADMIN_GUIDE.md"
	UserGuideName    = "USER_GUIDE.md"
)

// layoutDirs is every directory an assembled bundle contains, in creation
// order.
var layoutDirs = []string{
	DirPackages,
	DirDocker,
	DirRepos,
	DirConfig,
	DirCerts,
	DirDocs,
	DirScripts,
	DirData,
	DirCompose,
}
