// cmd/nettle/commands/build.go
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"nettle/internal/buildcache"
	"nettle/internal/errors"
	"nettle/internal/irprint"
	"nettle/internal/pipeline"
	"nettle/internal/typeinfer"
)

// Manifest is a project's nettle.json.
type Manifest struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	EntryPoint string `json:"entry_point"`
	OutputPath string `json:"output_path"`
	CacheDSN   string `json:"cache_dsn"`
}

func loadManifest(projectRoot string) (*Manifest, error) {
	path := filepath.Join(projectRoot, "nettle.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Manifest{
				Name:       filepath.Base(projectRoot),
				Version:    "0.1.0",
				OutputPath: "dist",
				CacheDSN:   filepath.Join(projectRoot, ".nettle-cache.db"),
			}, nil
		}
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if m.OutputPath == "" {
		m.OutputPath = "dist"
	}
	if m.CacheDSN == "" {
		m.CacheDSN = filepath.Join(projectRoot, ".nettle-cache.db")
	}
	return &m, nil
}

// collectSources walks projectRoot for .nt files, skipping dist/vendor,
// and returns them sorted so the content hash is reproducible regardless
// of directory traversal order.
func collectSources(projectRoot string) ([]pipeline.File, error) {
	var files []pipeline.File
	err := filepath.Walk(projectRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			base := filepath.Base(path)
			if base == "dist" || base == "vendor" || base == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".nt") {
			return nil
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(projectRoot, path)
		if err != nil {
			rel = path
		}
		files = append(files, pipeline.File{Name: rel, Source: string(src)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// BuildCommand lowers and type-checks every .nt file under projectRoot,
// consulting the build cache by content hash before doing the work, and
// writes the rendered IR to <output>/<name>.ir.
func BuildCommand(args []string) error {
	projectRoot := "."
	if len(args) > 0 {
		projectRoot = args[0]
	}

	manifest, err := loadManifest(projectRoot)
	if err != nil {
		return fmt.Errorf("loading manifest: %w", err)
	}

	sources, err := collectSources(projectRoot)
	if err != nil {
		return fmt.Errorf("collecting sources: %w", err)
	}
	if len(sources) == 0 {
		return fmt.Errorf("no .nt source files found under %s", projectRoot)
	}

	fmt.Printf("Building %s v%s (%d files)...\n", manifest.Name, manifest.Version, len(sources))

	cache, err := buildcache.Open(buildcache.Default, manifest.CacheDSN)
	if err != nil {
		return fmt.Errorf("opening build cache: %w", err)
	}
	defer cache.Close()

	contents := make([]string, len(sources))
	for i, f := range sources {
		contents[i] = f.Source
	}
	hash := buildcache.ContentHash(contents)

	ctx := context.Background()
	module, hit, err := cache.Lookup(ctx, hash)
	if err != nil {
		return fmt.Errorf("checking build cache: %w", err)
	}

	var out string
	if hit {
		fmt.Println("Using cached build.")
		out = irprint.New().WithTypes(typeinfer.Typecheck(module)).Print(module)
	} else {
		result, err := pipeline.Run(ctx, sources)
		if err != nil {
			return formatBuildError(err)
		}
		if _, err := cache.Store(ctx, hash, result.Module); err != nil {
			return fmt.Errorf("storing build cache entry: %w", err)
		}
		out = irprint.New().WithTypes(result.Types).Print(result.Module)
	}

	outputDir := manifest.OutputPath
	if !filepath.IsAbs(outputDir) {
		outputDir = filepath.Join(projectRoot, outputDir)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	outputPath := filepath.Join(outputDir, manifest.Name+".ir")
	if err := os.WriteFile(outputPath, []byte(out), 0644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	fmt.Printf("Build complete: %s\n", outputPath)
	return nil
}

// WatchCommand rebuilds whenever any .nt file under projectRoot changes,
// polling a content hash of every source file's name and text twice a
// second rather than using a filesystem-event library: no example in the
// corpus carries one as an importable dependency, only as a mention in
// an unrelated manifest.
func WatchCommand(args []string) error {
	projectRoot := "."
	if len(args) > 0 {
		projectRoot = args[0]
	}

	fmt.Println("Watching for changes. Press Ctrl+C to stop.")
	var lastHash string
	for {
		sources, err := collectSources(projectRoot)
		if err != nil {
			return fmt.Errorf("collecting sources: %w", err)
		}
		contents := make([]string, len(sources))
		names := make([]string, len(sources))
		for i, f := range sources {
			contents[i] = f.Source
			names[i] = f.Name
		}
		hash := buildcache.ContentHash(append(contents, names...))
		if hash != lastHash {
			lastHash = hash
			if err := BuildCommand(args); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
}

// CleanCommand removes build artifacts and the build cache.
func CleanCommand(args []string) error {
	projectRoot := "."
	if len(args) > 0 {
		projectRoot = args[0]
	}
	manifest, err := loadManifest(projectRoot)
	if err != nil {
		return fmt.Errorf("loading manifest: %w", err)
	}

	outputDir := manifest.OutputPath
	if !filepath.IsAbs(outputDir) {
		outputDir = filepath.Join(projectRoot, outputDir)
	}
	if err := os.RemoveAll(outputDir); err != nil {
		return err
	}
	return os.Remove(manifest.CacheDSN)
}

// InitCommand scaffolds a new nettle project.
func InitCommand(args []string) error {
	name := "nettle-project"
	if len(args) > 0 {
		name = args[0]
	}

	fmt.Printf("Initializing new nettle project: %s\n", name)
	if err := os.MkdirAll(name, 0755); err != nil {
		return err
	}

	manifest := Manifest{
		Name:       name,
		Version:    "0.1.0",
		EntryPoint: "main.nt",
		OutputPath: "dist",
		CacheDSN:   ".nettle-cache.db",
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(name, "nettle.json"), data, 0644); err != nil {
		return err
	}

	mainSrc := `fn main() {
    return 0;
}
`
	if err := os.WriteFile(filepath.Join(name, "main.nt"), []byte(mainSrc), 0644); err != nil {
		return err
	}

	fmt.Printf("\nNext steps:\n  cd %s\n  nettle build\n", name)
	return nil
}

func formatBuildError(err error) error {
	if ne, ok := err.(*errors.NettleError); ok {
		return fmt.Errorf("%s", ne.Error())
	}
	return err
}
