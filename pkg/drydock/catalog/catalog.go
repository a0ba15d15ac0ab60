// Package catalog defines the deployable service catalog: the host packages,
// compose services, tuning parameters, and port rules that make up one
// bundle. A built-in default mirrors the stack drydock was written for;
// operators point --catalog at a YAML file to ship something else.
package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidCatalog is returned when a catalog fails validation.
var ErrInvalidCatalog = errors.New("invalid catalog")

// MemoryRole selects which ResourceBudget field caps a service's memory.
type MemoryRole string

const (
	// MemoryRoleNone leaves the service without a memory limit.
	MemoryRoleNone MemoryRole = ""
	// MemoryRoleDB caps the service at the database budget.
	MemoryRoleDB MemoryRole = "db"
	// MemoryRoleCache caps the service at the cache budget.
	MemoryRoleCache MemoryRole = "cache"
	// MemoryRoleApp caps the service at the application budget.
	MemoryRoleApp MemoryRole = "app"
)

// Mount maps a path under the install root into a service container.
type Mount struct {
	// Source is relative to the install root (e.g. "data/db").
	Source string `yaml:"source"`

	// Target is the absolute path inside the container.
	Target string `yaml:"target"`

	ReadOnly bool `yaml:"read_only,omitempty"`
}

// Publish exposes a container port on the host.
type Publish struct {
	Host      int `yaml:"host"`
	Container int `yaml:"container"`
}

// Route associates a service with a hostname the reverse proxy serves.
type Route struct {
	// Host is the fully qualified virtual host (e.g. "wiki.intra.lan").
	Host string `yaml:"host"`

	// Path restricts the route to a URL prefix; empty means "/".
	Path string `yaml:"path,omitempty"`

	// Port is the container port the proxy forwards to.
	Port int `yaml:"port"`
}

// Service describes one compose service.
type Service struct {
	Name    string   `yaml:"name"`
	Image   string   `yaml:"image"`
	Command []string `yaml:"command,omitempty"`

	// Env holds environment variables. Values may contain ${VAR}
	// placeholders resolved at install time from the generated env file.
	Env map[string]string `yaml:"env,omitempty"`

	Mounts  []Mount   `yaml:"mounts,omitempty"`
	Publish []Publish `yaml:"publish,omitempty"`

	// MemoryRole picks the budget field used as this service's memory
	// limit; services without a role run unlimited.
	MemoryRole MemoryRole `yaml:"memory_role,omitempty"`

	// DependsOn names services that must start first.
	DependsOn []string `yaml:"depends_on,omitempty"`

	Route *Route `yaml:"route,omitempty"`
}

// SysctlParam is one kernel tuning parameter persisted on the target.
type SysctlParam struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// PortRule is one firewall opening, labeled for the documentation tables.
type PortRule struct {
	Port  int    `yaml:"port"`
	Proto string `yaml:"proto,omitempty"` // tcp when empty
	Label string `yaml:"label,omitempty"`
}

// Protocol returns the rule's protocol, defaulting to tcp.
func (r PortRule) Protocol() string {
	if r.Proto == "" {
		return "tcp"
	}
	return r.Proto
}

// Catalog is the full description of one deployable unit.
type Catalog struct {
	// Name becomes the bundle archive's base name.
	Name string `yaml:"name"`

	// Domain is the site domain routes live under; the wildcard
	// certificate covers *.Domain.
	Domain string `yaml:"domain"`

	// Packages are host system packages installed from the bundle's
	// local repository.
	Packages []string `yaml:"packages"`

	// Services are the compose services the bundle ships images for.
	Services []Service `yaml:"services"`

	// ConflictingUnits are pre-existing host services disabled before
	// the stack starts (port squatters like a stock web server).
	ConflictingUnits []string `yaml:"conflicting_units"`

	// AuxiliaryUnits are host services enabled and started alongside
	// the stack (monitoring dashboard and the like).
	AuxiliaryUnits []string `yaml:"auxiliary_units"`

	// FirewallPorts are opened on the target host.
	FirewallPorts []PortRule `yaml:"firewall_ports"`

	// Sysctl parameters are persisted under /etc/sysctl.d on the target.
	Sysctl []SysctlParam `yaml:"sysctl"`
}

// Load reads a catalog from the YAML file at path, or returns the built-in
// default when path is empty. Unknown YAML keys are an error: a typoed
// field in a catalog silently dropping a service would surface only on the
// disconnected target, where it is expensive to fix.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}

	return &c, nil
}

// Validate checks the catalog for the mistakes that would otherwise
// surface as a broken bundle or a half-configured target.
func (c *Catalog) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidCatalog)
	}
	if c.Domain == "" {
		return fmt.Errorf("%w: domain is required", ErrInvalidCatalog)
	}
	if len(c.Services) == 0 {
		return fmt.Errorf("%w: at least one service is required", ErrInvalidCatalog)
	}

	seen := make(map[string]bool, len(c.Services))
	for _, svc := range c.Services {
		if svc.Name == "" {
			return fmt.Errorf("%w: service with empty name", ErrInvalidCatalog)
		}
		if seen[svc.Name] {
			return fmt.Errorf("%w: duplicate service %q", ErrInvalidCatalog, svc.Name)
		}
		seen[svc.Name] = true

		if svc.Image == "" {
			return fmt.Errorf("%w: service %q has no image", ErrInvalidCatalog, svc.Name)
		}
		switch svc.MemoryRole {
		case MemoryRoleNone, MemoryRoleDB, MemoryRoleCache, MemoryRoleApp:
		default:
			return fmt.Errorf("%w: service %q has unknown memory role %q", ErrInvalidCatalog, svc.Name, svc.MemoryRole)
		}
		for _, m := range svc.Mounts {
			if m.Source == "" || m.Target == "" {
				return fmt.Errorf("%w: service %q has incomplete mount", ErrInvalidCatalog, svc.Name)
			}
			if strings.HasPrefix(m.Source, "/") || strings.Contains(m.Source, "..") {
				return fmt.Errorf("%w: service %q mount source %q must stay under the install root", ErrInvalidCatalog, svc.Name, m.Source)
			}
		}
		for _, p := range svc.Publish {
			if !validPort(p.Host) || !validPort(p.Container) {
				return fmt.Errorf("%w: service %q publishes invalid port %d:%d", ErrInvalidCatalog, svc.Name, p.Host, p.Container)
			}
		}
		if svc.Route != nil {
			if svc.Route.Host == "" {
				return fmt.Errorf("%w: service %q route has no host", ErrInvalidCatalog, svc.Name)
			}
			if !validPort(svc.Route.Port) {
				return fmt.Errorf("%w: service %q route has invalid port %d", ErrInvalidCatalog, svc.Name, svc.Route.Port)
			}
		}
	}

	for _, svc := range c.Services {
		for _, dep := range svc.DependsOn {
			if !seen[dep] {
				return fmt.Errorf("%w: service %q depends on unknown service %q", ErrInvalidCatalog, svc.Name, dep)
			}
		}
	}

	for _, pkg := range c.Packages {
		if strings.TrimSpace(pkg) == "" {
			return fmt.Errorf("%w: empty package name", ErrInvalidCatalog)
		}
	}
	for _, rule := range c.FirewallPorts {
		if !validPort(rule.Port) {
			return fmt.Errorf("%w: invalid firewall port %d", ErrInvalidCatalog, rule.Port)
		}
		switch rule.Proto {
		case "", "tcp", "udp":
		default:
			return fmt.Errorf("%w: firewall port %d has unknown protocol %q", ErrInvalidCatalog, rule.Port, rule.Proto)
		}
	}
	for _, s := range c.Sysctl {
		if s.Key == "" || s.Value == "" {
			return fmt.Errorf("%w: sysctl entries need both key and value", ErrInvalidCatalog)
		}
	}

	return nil
}

// Images returns the unique image references across all services, sorted.
func (c *Catalog) Images() []string {
	set := make(map[string]bool, len(c.Services))
	for _, svc := range c.Services {
		set[svc.Image] = true
	}
	images := make([]string, 0, len(set))
	for image := range set {
		images = append(images, image)
	}
	sort.Strings(images)
	return images
}

// Routes returns the services that carry a route, in catalog order.
func (c *Catalog) Routes() []Service {
	var routed []Service
	for _, svc := range c.Services {
		if svc.Route != nil {
			routed = append(routed, svc)
		}
	}
	return routed
}

// Marshal returns the catalog's canonical YAML form, as shipped inside
// bundles.
func (c *Catalog) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal catalog: %w", err)
	}
	return data, nil
}

// Digest returns the hex sha256 of the catalog's canonical YAML form,
// recorded in the bundle manifest so an installer can tell which catalog
// produced a bundle and detect a tampered copy.
func (c *Catalog) Digest() (string, error) {
	data, err := c.Marshal()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func validPort(p int) bool {
	return p >= 1 && p <= 65535
}
