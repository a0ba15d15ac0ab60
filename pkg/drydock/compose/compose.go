// Package compose builds the stack's compose specification from the
// catalog and a resource budget. The model is typed and marshaled with
// yaml.v3 rather than templated as text, so a malformed catalog fails at
// build time instead of producing an unparseable file on the target.
//
// Output is deterministic: the same catalog, budget, and install root
// always marshal to identical bytes. Secret values stay as ${VAR}
// placeholders, resolved at install time from the generated env file.
package compose

import (
	"fmt"
	"path"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/drydock/pkg/drydock/catalog"
	"github.com/jamesainslie/drydock/pkg/drydock/hostinfo"
)

// Routing label keys attached to routed services. The reverse-proxy
// configuration is generated from the same catalog routes; the labels make
// the association inspectable on the running stack.
const (
	LabelRouteHost = "drydock.route.host"
	LabelRoutePath = "drydock.route.path"
	LabelRoutePort = "drydock.route.port"
)

// File is the root of a compose specification.
type File struct {
	Name     string             `yaml:"name"`
	Services map[string]Service `yaml:"services"`
}

// Service is one compose service entry.
type Service struct {
	Image       string            `yaml:"image"`
	Command     []string          `yaml:"command,omitempty"`
	Restart     string            `yaml:"restart,omitempty"`
	Environment map[string]string `yaml:"environment,omitempty"`
	Ports       []string          `yaml:"ports,omitempty"`
	Volumes     []string          `yaml:"volumes,omitempty"`
	MemLimit    string            `yaml:"mem_limit,omitempty"`
	DependsOn   []string          `yaml:"depends_on,omitempty"`
	Labels      map[string]string `yaml:"labels,omitempty"`
}

// Build constructs the compose model for a catalog sized by budget, with
// every volume rooted under installRoot.
func Build(cat *catalog.Catalog, budget hostinfo.Budget, installRoot string) *File {
	services := make(map[string]Service, len(cat.Services))

	for _, svc := range cat.Services {
		entry := Service{
			Image:     svc.Image,
			Command:   svc.Command,
			Restart:   "unless-stopped",
			MemLimit:  memLimit(svc.MemoryRole, budget),
			DependsOn: svc.DependsOn,
		}

		if len(svc.Env) > 0 {
			entry.Environment = make(map[string]string, len(svc.Env))
			for k, v := range svc.Env {
				entry.Environment[k] = v
			}
		}

		for _, p := range svc.Publish {
			entry.Ports = append(entry.Ports, fmt.Sprintf("%d:%d", p.Host, p.Container))
		}

		for _, m := range svc.Mounts {
			vol := path.Join(installRoot, m.Source) + ":" + m.Target
			if m.ReadOnly {
				vol += ":ro"
			}
			entry.Volumes = append(entry.Volumes, vol)
		}

		if svc.Route != nil {
			entry.Labels = map[string]string{
				LabelRouteHost: svc.Route.Host,
				LabelRoutePort: strconv.Itoa(svc.Route.Port),
			}
			if svc.Route.Path != "" {
				entry.Labels[LabelRoutePath] = svc.Route.Path
			}
		}

		services[svc.Name] = entry
	}

	return &File{
		Name:     cat.Name,
		Services: services,
	}
}

// memLimit maps a memory role to its budget share in compose mem_limit
// syntax. Roleless services run without a limit.
func memLimit(role catalog.MemoryRole, budget hostinfo.Budget) string {
	switch role {
	case catalog.MemoryRoleDB:
		return fmt.Sprintf("%dm", budget.DBMemoryMB)
	case catalog.MemoryRoleCache:
		return fmt.Sprintf("%dm", budget.RedisMemoryMB)
	case catalog.MemoryRoleApp:
		return fmt.Sprintf("%dm", budget.AppMemoryMB)
	default:
		return ""
	}
}

// Marshal renders the file as YAML. yaml.v3 emits map keys sorted, so the
// output is stable across runs.
func (f *File) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("marshal compose file: %w", err)
	}
	return data, nil
}
