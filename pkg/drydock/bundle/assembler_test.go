package bundle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/drydock/pkg/drydock/archive"
	"github.com/jamesainslie/drydock/pkg/drydock/catalog"
	"github.com/jamesainslie/drydock/pkg/drydock/execx"
	"github.com/jamesainslie/drydock/pkg/drydock/exportcache"
	"github.com/jamesainslie/drydock/pkg/drydock/hostinfo"
)

var (
	testProfile = hostinfo.Profile{TotalMemoryMB: 8192, CPUCores: 4}

	debianPlatform = hostinfo.Platform{
		ID: "debian", Name: "Debian GNU/Linux", VersionID: "12",
		Family: hostinfo.FamilyDebian,
	}
	rockyPlatform = hostinfo.Platform{
		ID: "rocky", Name: "Rocky Linux", VersionID: "9",
		Family: hostinfo.FamilyRHEL,
	}
)

// fakeTools answers the tool invocations an assembly makes, dropping
// stand-in artifacts where the real tools would write theirs. Safe for
// concurrent calls: each image writes to its own path.
func fakeTools(t *testing.T) *execx.Fake {
	t.Helper()
	f := &execx.Fake{}
	f.OnRun = func(spec execx.Spec) (execx.Result, error) {
		switch {
		case spec.Name == "apt-get" && spec.Args[0] == "download":
			path := filepath.Join(spec.Dir, "nginx_1.27-1_amd64.deb")
			return execx.Result{}, os.WriteFile(path, []byte("stand-in deb"), 0o644)

		case spec.Name == "dpkg-scanpackages":
			return execx.Result{Stdout: "Package: nginx\nFilename: ./nginx_1.27-1_amd64.deb\n"}, nil

		case spec.Name == "dnf" && spec.Args[0] == "download":
			dir := spec.Args[3] // download --resolve --destdir <dir> ...
			path := filepath.Join(dir, "nginx-1.27-1.x86_64.rpm")
			return execx.Result{}, os.WriteFile(path, []byte("stand-in rpm"), 0o644)

		case spec.Name == "createrepo_c":
			repodata := filepath.Join(spec.Args[0], "repodata")
			if err := os.MkdirAll(repodata, 0o755); err != nil {
				return execx.Result{}, err
			}
			path := filepath.Join(repodata, "repomd.xml")
			return execx.Result{}, os.WriteFile(path, []byte("<repomd/>"), 0o644)

		case spec.Name == "docker" && spec.Args[0] == "image" && spec.Args[1] == "inspect":
			ref := spec.Args[len(spec.Args)-1]
			sum := sha256.Sum256([]byte(ref))
			return execx.Result{Stdout: "sha256:" + hex.EncodeToString(sum[:]) + "\n"}, nil

		case spec.Name == "docker" && spec.Args[0] == "save":
			path, ref := spec.Args[2], spec.Args[3]
			return execx.Result{}, os.WriteFile(path, []byte("image tarball "+ref), 0o644)
		}
		return execx.Result{}, nil
	}
	return f
}

func testAssembler(t *testing.T, outputDir string, fake *execx.Fake, cache *exportcache.Cache) *Assembler {
	t.Helper()
	a, err := New(catalog.Default(), testProfile, debianPlatform, fake, cache, Options{
		OutputDir: outputDir,
		Version:   "1.0.0",
	})
	require.NoError(t, err)
	return a
}

func TestAssemble_MissingToolProducesNoArchive(t *testing.T) {
	out := t.TempDir()
	fake := fakeTools(t)
	fake.Missing = map[string]bool{"dpkg-scanpackages": true}

	a := testAssembler(t, out, fake, nil)
	_, err := a.Assemble(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, execx.ErrToolMissing)
	assert.Contains(t, err.Error(), "dpkg-scanpackages")

	// Preflight failed, so nothing may exist: no staging tree, no archive.
	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAssemble_FullRun(t *testing.T) {
	out := t.TempDir()
	fake := fakeTools(t)
	a := testAssembler(t, out, fake, nil)

	res, err := a.Assemble(context.Background())
	require.NoError(t, err)

	base := "lanstack-1.0.0-" + runtime.GOOS + "-" + runtime.GOARCH
	assert.Equal(t, filepath.Join(out, base+".tar.gz"), res.ArchivePath)
	assert.FileExists(t, res.ArchivePath)
	assert.Equal(t, 9, res.Packages)
	assert.Equal(t, 4, res.ImagesExported)
	assert.Equal(t, 0, res.ImagesCached)
	assert.NotEmpty(t, res.SHA256)
	assert.Positive(t, res.SizeBytes)

	staging := res.StagingDir
	for _, dir := range layoutDirs {
		assert.DirExists(t, filepath.Join(staging, dir))
	}
	for _, data := range []string{"data/db", "data/cache", "data/wiki"} {
		assert.DirExists(t, filepath.Join(staging, data))
	}

	nginx, err := os.ReadFile(filepath.Join(staging, DirConfig, NginxConfName))
	require.NoError(t, err)
	assert.Contains(t, string(nginx), "worker_processes 4;")
	assert.Contains(t, string(nginx), "server_name wiki.intra.lan;")
	assert.Contains(t, string(nginx), "proxy_pass http://wiki:3000;")

	pg, err := os.ReadFile(filepath.Join(staging, DirConfig, PostgresConfName))
	require.NoError(t, err)
	assert.Contains(t, string(pg), "shared_buffers = 512MB")
	assert.Contains(t, string(pg), "work_mem = 20MB")

	redis, err := os.ReadFile(filepath.Join(staging, DirConfig, RedisConfName))
	require.NoError(t, err)
	assert.Contains(t, string(redis), "maxmemory 819mb")

	shipped, err := catalog.Load(filepath.Join(staging, DirConfig, CatalogFileName))
	require.NoError(t, err)
	digest, err := shipped.Digest()
	require.NoError(t, err)

	spec, err := os.ReadFile(filepath.Join(staging, DirCompose, ComposeFileName))
	require.NoError(t, err)
	assert.Contains(t, string(spec), "postgres:16-alpine")
	assert.Contains(t, string(spec), "/opt/lanstack/config/nginx.conf")

	admin, err := os.ReadFile(filepath.Join(staging, DirDocs, AdminGuideName))
	require.NoError(t, err)
	assert.Contains(t, string(admin), "| Database memory limit | 2048 MB |")
	assert.Contains(t, string(admin), "sudo ./scripts/install.sh")

	repo, err := os.ReadFile(filepath.Join(staging, DirRepos, "lanstack.list"))
	require.NoError(t, err)
	assert.Equal(t, "deb [trusted=yes] file://${BUNDLE_ROOT}/packages ./\n", string(repo))
	assert.FileExists(t, filepath.Join(staging, DirPackages, "Packages.gz"))

	assert.FileExists(t, filepath.Join(staging, DirCerts, "general.crt"))
	assert.FileExists(t, filepath.Join(staging, DirCerts, "wildcard.key"))

	installer, err := os.Stat(filepath.Join(staging, DirScripts, InstallerName))
	require.NoError(t, err)
	assert.NotZero(t, installer.Mode()&0o100, "installer must be executable")
	script, err := os.ReadFile(filepath.Join(staging, DirScripts, InstallScript))
	require.NoError(t, err)
	assert.Contains(t, string(script), "--offline")

	man := res.Manifest
	require.NotNil(t, man)
	assert.NotEmpty(t, man.ID)
	assert.Equal(t, "drydock", man.Tool)
	assert.Equal(t, "1.0.0", man.Version)
	assert.Equal(t, testProfile, man.BuildHost)
	assert.Equal(t, 2048, man.Budget.DBMemoryMB)
	assert.Len(t, man.Images, 4)
	assert.Len(t, man.Certificates, 2)
	assert.Equal(t, digest, man.CatalogDigest,
		"shipped catalog must digest to the manifest's value")

	loaded, err := LoadManifest(staging)
	require.NoError(t, err)
	assert.Equal(t, man.ID, loaded.ID)
	assert.Equal(t, man.Inventory, loaded.Inventory)

	// Extracting the archive yields the staged tree under the base name.
	dest := t.TempDir()
	require.NoError(t, archive.Unpack(res.ArchivePath, dest))
	assert.FileExists(t, filepath.Join(dest, base, ManifestName))
	assert.FileExists(t, filepath.Join(dest, base, DirCompose, ComposeFileName))
}

func TestAssemble_RHELRepoDefinition(t *testing.T) {
	out := t.TempDir()
	fake := fakeTools(t)
	a, err := New(catalog.Default(), testProfile, rockyPlatform, fake, nil, Options{
		OutputDir: out,
		Version:   "1.0.0",
	})
	require.NoError(t, err)

	res, err := a.Assemble(context.Background())
	require.NoError(t, err)

	assert.True(t, fake.CalledWith("dnf", "download"))
	assert.True(t, fake.CalledWith("createrepo_c"))

	repo, err := os.ReadFile(filepath.Join(res.StagingDir, DirRepos, "lanstack.repo"))
	require.NoError(t, err)
	assert.Contains(t, string(repo), "[lanstack-local]")
	assert.Contains(t, string(repo), "baseurl=file://${BUNDLE_ROOT}/packages")
	assert.Contains(t, string(repo), "gpgcheck=0")
}

// Rendered artifacts must be byte-identical across runs with the same
// catalog and profile; only certificates and the manifest may differ.
func TestAssemble_RenderedArtifactsAreIdempotent(t *testing.T) {
	out := t.TempDir()

	first, err := testAssembler(t, out, fakeTools(t), nil).Assemble(context.Background())
	require.NoError(t, err)

	rendered := []string{
		filepath.Join(DirConfig, CatalogFileName),
		filepath.Join(DirConfig, NginxConfName),
		filepath.Join(DirConfig, PostgresConfName),
		filepath.Join(DirConfig, RedisConfName),
		filepath.Join(DirConfig, SysctlConfName),
		filepath.Join(DirCompose, ComposeFileName),
		filepath.Join(DirDocs, AdminGuideName),
		filepath.Join(DirDocs, UserGuideName),
	}
	before := make(map[string][]byte, len(rendered))
	for _, rel := range rendered {
		data, err := os.ReadFile(filepath.Join(first.StagingDir, rel))
		require.NoError(t, err)
		before[rel] = data
	}
	certBefore, err := os.ReadFile(filepath.Join(first.StagingDir, DirCerts, "general.crt"))
	require.NoError(t, err)

	second, err := testAssembler(t, out, fakeTools(t), nil).Assemble(context.Background())
	require.NoError(t, err)
	require.Equal(t, first.StagingDir, second.StagingDir)

	for _, rel := range rendered {
		data, err := os.ReadFile(filepath.Join(second.StagingDir, rel))
		require.NoError(t, err)
		assert.Equal(t, before[rel], data, "%s changed between identical runs", rel)
	}

	certAfter, err := os.ReadFile(filepath.Join(second.StagingDir, DirCerts, "general.crt"))
	require.NoError(t, err)
	assert.NotEqual(t, certBefore, certAfter, "certificates are minted fresh each run")
}

func TestAssemble_CacheSkipsUnchangedImages(t *testing.T) {
	out := t.TempDir()
	cache, err := exportcache.Open(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)
	defer cache.Close()

	first, err := testAssembler(t, out, fakeTools(t), cache).Assemble(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, first.ImagesExported)
	assert.Equal(t, 0, first.ImagesCached)

	secondFake := fakeTools(t)
	second, err := testAssembler(t, out, secondFake, cache).Assemble(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.ImagesExported)
	assert.Equal(t, 4, second.ImagesCached)
	assert.False(t, secondFake.CalledWith("docker", "save"),
		"unchanged images must not be saved again")

	for _, img := range second.Manifest.Images {
		assert.True(t, img.FromCache)
		assert.FileExists(t, filepath.Join(second.StagingDir, img.File))
	}
}

func TestAssemble_ImageExportFailureAborts(t *testing.T) {
	out := t.TempDir()
	fake := fakeTools(t)
	inner := fake.OnRun
	fake.OnRun = func(spec execx.Spec) (execx.Result, error) {
		if spec.Name == "docker" && spec.Args[0] == "save" && spec.Args[3] == "redis:7-alpine" {
			return execx.Result{}, &execx.CommandError{
				Name: spec.Name, Args: spec.Args, Stderr: "no space left on device",
				Err: os.ErrInvalid,
			}
		}
		return inner(spec)
	}

	_, err := testAssembler(t, out, fake, nil).Assemble(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis:7-alpine")

	// Failure must abort before packaging.
	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, e.Type().IsRegular() && filepath.Ext(e.Name()) == ".gz",
			"no archive may exist after a failed assembly")
	}
}

func TestAssemble_PullsMissingImages(t *testing.T) {
	out := t.TempDir()
	fake := fakeTools(t)
	inner := fake.OnRun
	var pulled bool
	fake.OnRun = func(spec execx.Spec) (execx.Result, error) {
		if spec.Name == "docker" && spec.Args[0] == "image" && spec.Args[1] == "inspect" && !pulled {
			if spec.Args[len(spec.Args)-1] == "redis:7-alpine" {
				return execx.Result{}, &execx.CommandError{
					Name: spec.Name, Args: spec.Args,
					Stderr: "No such image", Err: os.ErrNotExist,
				}
			}
		}
		if spec.Name == "docker" && spec.Args[0] == "pull" {
			pulled = true
		}
		return inner(spec)
	}

	a, err := New(catalog.Default(), testProfile, debianPlatform, fake, nil, Options{
		OutputDir: out,
		Version:   "1.0.0",
		Workers:   1, // serialize so the pulled flag needs no locking
	})
	require.NoError(t, err)
	result, err := a.Assemble(context.Background())
	require.NoError(t, err)

	assert.True(t, fake.CalledWith("docker", "pull", "redis:7-alpine"))
	assert.Equal(t, 4, result.ImagesExported)
}

func TestOptionsValidateDefaults(t *testing.T) {
	o := Options{}
	require.NoError(t, o.Validate())
	assert.Equal(t, ".", o.OutputDir)
	assert.Equal(t, "dev", o.Version)
	assert.Equal(t, "docker", o.Engine)
	assert.Equal(t, "/opt/lanstack", o.InstallRoot)
	assert.Positive(t, o.PackageTimeout)
	assert.Positive(t, o.ImageTimeout)
}

func TestRequiredTools(t *testing.T) {
	tests := []struct {
		family hostinfo.Family
		engine string
		want   []string
	}{
		{hostinfo.FamilyDebian, "docker", []string{"docker", "apt-get", "dpkg-scanpackages"}},
		{hostinfo.FamilyRHEL, "podman", []string{"podman", "dnf", "createrepo_c"}},
	}
	for _, tt := range tests {
		got, err := RequiredTools(tt.family, tt.engine)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := RequiredTools(hostinfo.Family("gentoo"), "docker")
	assert.ErrorIs(t, err, hostinfo.ErrUnsupportedPlatform)
}

func TestTarballName(t *testing.T) {
	tests := []struct {
		ref  string
		want string
	}{
		{"nginx:1.27-alpine", "nginx_1.27-alpine.tar"},
		{"requarks/wiki:2.5", "requarks_wiki_2.5.tar"},
		{"registry.local:5000/team/app:v1", "registry.local_5000_team_app_v1.tar"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tarballName(tt.ref))
	}
}
