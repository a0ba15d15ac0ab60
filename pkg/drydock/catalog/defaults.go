package catalog

// Default returns the built-in catalog: a small-site LAN stack with a
// reverse proxy, database, cache, and wiki running as containers, plus the
// host-level infrastructure packages (DNS, monitoring, intrusion guard)
// installed from the bundled repository.
//
// The data tier and proxy run containerized and mount their rendered
// configuration from the install root, which is what lets the installer
// re-tune them for the target host by rewriting those files. The matching
// host packages stay in the list for their client tooling and as manual
// fallbacks; their daemons are never enabled.
func Default() *Catalog {
	return &Catalog{
		Name:   "lanstack",
		Domain: "intra.lan",
		Packages: []string{
			"haproxy",
			"nginx",
			"bind9",
			"dnsmasq",
			"fail2ban",
			"cockpit",
			"netdata",
			"postgresql",
			"redis-server",
		},
		Services: []Service{
			{
				Name:  "proxy",
				Image: "nginx:1.27-alpine",
				Mounts: []Mount{
					{Source: "config/nginx.conf", Target: "/etc/nginx/nginx.conf", ReadOnly: true},
					{Source: "certs", Target: "/etc/nginx/certs", ReadOnly: true},
				},
				Publish: []Publish{
					{Host: 80, Container: 80},
					{Host: 443, Container: 443},
				},
				DependsOn: []string{"wiki"},
			},
			{
				Name:  "db",
				Image: "postgres:16-alpine",
				Command: []string{
					"postgres", "-c", "config_file=/etc/postgresql/postgresql.conf",
				},
				Env: map[string]string{
					"POSTGRES_DB":       "app",
					"POSTGRES_USER":     "app",
					"POSTGRES_PASSWORD": "${DB_PASSWORD}",
				},
				Mounts: []Mount{
					{Source: "config/postgresql.conf", Target: "/etc/postgresql/postgresql.conf", ReadOnly: true},
					{Source: "data/db", Target: "/var/lib/postgresql/data"},
				},
				MemoryRole: MemoryRoleDB,
			},
			{
				Name:    "cache",
				Image:   "redis:7-alpine",
				Command: []string{"redis-server", "/usr/local/etc/redis/redis.conf"},
				Mounts: []Mount{
					{Source: "config/redis.conf", Target: "/usr/local/etc/redis/redis.conf", ReadOnly: true},
					{Source: "data/cache", Target: "/data"},
				},
				MemoryRole: MemoryRoleCache,
			},
			{
				Name:  "wiki",
				Image: "requarks/wiki:2.5",
				Env: map[string]string{
					"DB_TYPE": "postgres",
					"DB_HOST": "db",
					"DB_PORT": "5432",
					"DB_USER": "app",
					"DB_NAME": "app",
					"DB_PASS": "${DB_PASSWORD}",
				},
				Mounts: []Mount{
					{Source: "data/wiki", Target: "/wiki/data/content"},
				},
				MemoryRole: MemoryRoleApp,
				DependsOn:  []string{"db", "cache"},
				Route:      &Route{Host: "wiki.intra.lan", Port: 3000},
			},
		},
		ConflictingUnits: []string{
			"apache2",
			"systemd-resolved",
		},
		AuxiliaryUnits: []string{
			"cockpit.socket",
			"netdata",
			"fail2ban",
		},
		FirewallPorts: []PortRule{
			{Port: 22, Proto: "tcp", Label: "ssh"},
			{Port: 53, Proto: "tcp", Label: "dns"},
			{Port: 53, Proto: "udp", Label: "dns"},
			{Port: 80, Proto: "tcp", Label: "http"},
			{Port: 443, Proto: "tcp", Label: "https"},
			{Port: 9090, Proto: "tcp", Label: "cockpit"},
			{Port: 19999, Proto: "tcp", Label: "netdata"},
		},
		Sysctl: []SysctlParam{
			{Key: "vm.swappiness", Value: "10"},
			{Key: "vm.overcommit_memory", Value: "1"},
			{Key: "net.core.somaxconn", Value: "1024"},
			{Key: "net.ipv4.tcp_max_syn_backlog", Value: "2048"},
			{Key: "fs.inotify.max_user_watches", Value: "524288"},
		},
	}
}
