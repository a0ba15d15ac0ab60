package bundle

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/drydock/pkg/drydock/catalog"
	"github.com/jamesainslie/drydock/pkg/drydock/hostinfo"
)

// renderAdminGuide produces docs/ADMIN_GUIDE.md: how to install, what the
// budget resolved to, what runs where, and the day-two commands. Rendered
// purely from catalog and budget data so repeat builds are byte-identical.
func renderAdminGuide(cat *catalog.Catalog, profile hostinfo.Profile, budget hostinfo.Budget, engine, installRoot string) []byte {
	var b bytes.Buffer

	fmt.Fprintf(&b, "# %s administrator guide\n\n", cat.Name)
	fmt.Fprintf(&b, "Offline deployment bundle for the %s stack. Everything the stack needs\n", cat.Name)
	b.WriteString("travels inside this bundle: host packages with a local repository,\n")
	b.WriteString("container images, rendered configuration, TLS material, and the\n")
	b.WriteString("installer itself. The target host needs no network access.\n\n")

	b.WriteString("## Installation\n\n")
	b.WriteString("Extract the archive on the target, then run the bundled installer as\nroot from the extracted directory:\n\n")
	b.WriteString("    sudo ./scripts/install.sh\n\n")
	fmt.Fprintf(&b, "The installer measures the target host and re-tunes the stack for it;\nthe figures below describe the build host (%d CPU cores, %s) and\nserve as a reference only.\n\n",
		profile.CPUCores, humanize.IBytes(uint64(profile.TotalMemoryMB)*humanize.MiByte))

	b.WriteString("## Resource budget\n\n")
	b.WriteString("| Setting | Value |\n")
	b.WriteString("|---------|-------|\n")
	fmt.Fprintf(&b, "| Database memory limit | %d MB |\n", budget.DBMemoryMB)
	fmt.Fprintf(&b, "| Database shared_buffers | %d MB |\n", budget.DBSharedBuffersMB)
	fmt.Fprintf(&b, "| Database work_mem | %d MB |\n", budget.DBWorkMemMB)
	fmt.Fprintf(&b, "| Cache maxmemory | %d MB |\n", budget.RedisMemoryMB)
	fmt.Fprintf(&b, "| Application memory limit | %d MB |\n", budget.AppMemoryMB)
	fmt.Fprintf(&b, "| Proxy worker processes | %d |\n", budget.WorkerProcesses)
	b.WriteString("\n")

	b.WriteString("## Services\n\n")
	b.WriteString("| Service | Image | Published ports |\n")
	b.WriteString("|---------|-------|-----------------|\n")
	for _, svc := range cat.Services {
		ports := make([]string, 0, len(svc.Publish))
		for _, p := range svc.Publish {
			ports = append(ports, fmt.Sprintf("%d", p.Host))
		}
		fmt.Fprintf(&b, "| %s | %s | %s |\n", svc.Name, svc.Image, strings.Join(ports, ", "))
	}
	b.WriteString("\n")

	b.WriteString("## Host packages\n\n")
	fmt.Fprintf(&b, "%s\n\n", strings.Join(cat.Packages, ", "))

	b.WriteString("## Firewall\n\n")
	b.WriteString(renderPortTable(cat))
	b.WriteString("\n")

	b.WriteString("## Day-two operations\n\n")
	fmt.Fprintf(&b, "All commands run from the install root (%s):\n\n", installRoot)
	composeArgs := fmt.Sprintf("%s compose -f %s/%s --env-file %s/%s", engine, DirCompose, ComposeFileName, DirCompose, EnvFileName)
	fmt.Fprintf(&b, "    %s ps\n", composeArgs)
	fmt.Fprintf(&b, "    %s logs --tail 100 <service>\n", composeArgs)
	fmt.Fprintf(&b, "    %s restart <service>\n\n", composeArgs)
	b.WriteString("Database backup:\n\n")
	fmt.Fprintf(&b, "    %s exec db pg_dump -U app app > backup.sql\n\n", composeArgs)

	b.WriteString("## Secrets\n\n")
	fmt.Fprintf(&b, "Credentials are generated once during installation and stored at\n%s/%s (mode 0600). Re-running the installer reuses them.\n", installRoot, SecretsNoteName)
	b.WriteString("Deleting that file and the compose env file forces fresh credentials\non the next install; the database keeps its old password, so only do\nthis when resetting the stack wholesale.\n")

	return b.Bytes()
}

// renderUserGuide produces docs/USER_GUIDE.md: the addresses users visit
// and the certificate caveat.
func renderUserGuide(cat *catalog.Catalog) []byte {
	var b bytes.Buffer

	fmt.Fprintf(&b, "# %s user guide\n\n", cat.Name)

	b.WriteString("## Services\n\n")
	routes := cat.Routes()
	if len(routes) > 0 {
		b.WriteString("| Address | Service |\n")
		b.WriteString("|---------|---------|\n")
		for _, svc := range routes {
			fmt.Fprintf(&b, "| https://%s%s | %s |\n", svc.Route.Host, svc.Route.Path, svc.Name)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "The site runs on a self-signed certificate for %s, so your browser\nwill warn on first visit. Accept the certificate, or ask the\nadministrator for %s/wildcard.crt to import into your trust store.\n\n", cat.Domain, DirCerts)

	b.WriteString("## Network ports\n\n")
	b.WriteString(renderPortTable(cat))

	return b.Bytes()
}

func renderPortTable(cat *catalog.Catalog) string {
	var b bytes.Buffer
	b.WriteString("| Port | Protocol | Purpose |\n")
	b.WriteString("|------|----------|---------|\n")
	for _, rule := range cat.FirewallPorts {
		fmt.Fprintf(&b, "| %d | %s | %s |\n", rule.Port, rule.Protocol(), rule.Label)
	}
	return b.String()
}
