package bundle

import (
	"bytes"
	"fmt"

	"github.com/jamesainslie/drydock/pkg/drydock/catalog"
	"github.com/jamesainslie/drydock/pkg/drydock/hostinfo"
)

// renderNginxConf produces the reverse-proxy configuration: one default
// server answering the bare domain with the general certificate, plus one
// server block per routed service using the wildcard certificate. The
// worker_processes line is a tuning target the installer rewrites for the
// host the stack actually runs on.
func renderNginxConf(cat *catalog.Catalog, budget hostinfo.Budget) []byte {
	var b bytes.Buffer

	b.WriteString(workerProcessesLine(budget) + "\n\n")
	b.WriteString("events {\n")
	b.WriteString("    worker_connections 1024;\n")
	b.WriteString("}\n\n")

	b.WriteString("http {\n")
	b.WriteString("    include mime.types;\n")
	b.WriteString("    default_type application/octet-stream;\n")
	b.WriteString("    sendfile on;\n")
	b.WriteString("    keepalive_timeout 65;\n\n")

	b.WriteString("    server {\n")
	b.WriteString("        listen 80 default_server;\n")
	b.WriteString("        listen 443 ssl default_server;\n")
	fmt.Fprintf(&b, "        server_name %s;\n\n", cat.Domain)
	b.WriteString("        ssl_certificate /etc/nginx/certs/general.crt;\n")
	b.WriteString("        ssl_certificate_key /etc/nginx/certs/general.key;\n\n")
	b.WriteString("        location / {\n")
	fmt.Fprintf(&b, "            return 200 '%s\\n';\n", cat.Name)
	b.WriteString("        }\n")
	b.WriteString("    }\n")

	for _, svc := range cat.Routes() {
		route := svc.Route
		location := route.Path
		if location == "" {
			location = "/"
		}

		b.WriteString("\n    server {\n")
		b.WriteString("        listen 80;\n")
		b.WriteString("        listen 443 ssl;\n")
		fmt.Fprintf(&b, "        server_name %s;\n\n", route.Host)
		b.WriteString("        ssl_certificate /etc/nginx/certs/wildcard.crt;\n")
		b.WriteString("        ssl_certificate_key /etc/nginx/certs/wildcard.key;\n\n")
		fmt.Fprintf(&b, "        location %s {\n", location)
		fmt.Fprintf(&b, "            proxy_pass http://%s:%d;\n", svc.Name, route.Port)
		b.WriteString("            proxy_set_header Host $host;\n")
		b.WriteString("            proxy_set_header X-Real-IP $remote_addr;\n")
		b.WriteString("            proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;\n")
		b.WriteString("        }\n")
		b.WriteString("    }\n")
	}

	b.WriteString("}\n")
	return b.Bytes()
}

// renderPostgresConf produces the complete postgresql.conf the database
// container is pointed at via config_file. shared_buffers and work_mem are
// tuning targets.
func renderPostgresConf(budget hostinfo.Budget) []byte {
	var b bytes.Buffer
	b.WriteString("listen_addresses = '*'\n")
	b.WriteString("port = 5432\n")
	b.WriteString("max_connections = 100\n")
	b.WriteString(sharedBuffersLine(budget) + "\n")
	b.WriteString(workMemLine(budget) + "\n")
	b.WriteString("dynamic_shared_memory_type = posix\n")
	return b.Bytes()
}

// renderRedisConf produces the cache configuration. maxmemory is a tuning
// target. protected-mode is off because the cache is only reachable on the
// compose network, never published on the host.
func renderRedisConf(budget hostinfo.Budget) []byte {
	var b bytes.Buffer
	b.WriteString("bind 0.0.0.0\n")
	b.WriteString("protected-mode no\n")
	b.WriteString(maxmemoryLine(budget) + "\n")
	b.WriteString("maxmemory-policy allkeys-lru\n")
	b.WriteString("appendonly no\n")
	b.WriteString("save 900 1\n")
	b.WriteString("save 300 10\n")
	return b.Bytes()
}

// renderSysctlConf produces the kernel tuning fragment the installer
// persists under /etc/sysctl.d.
func renderSysctlConf(cat *catalog.Catalog) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# Kernel tuning for the %s stack.\n", cat.Name)
	for _, p := range cat.Sysctl {
		fmt.Fprintf(&b, "%s = %s\n", p.Key, p.Value)
	}
	return b.Bytes()
}
