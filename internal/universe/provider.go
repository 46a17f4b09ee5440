package universe

import (
	"context"
	"fmt"
	"os"
	"strings"

	"skipper/internal/pkg/symbol"

	"gopkg.in/yaml.v3"
)

// Provider supplies the instrument universe. Membership is owned externally;
// skipper re-reads it and reclassifies, nothing more.
type Provider interface {
	List(ctx context.Context) ([]string, error)
}

// StaticProvider serves a fixed list from config.
type StaticProvider struct {
	symbols []string
}

func NewStaticProvider(symbols []string) *StaticProvider {
	return &StaticProvider{symbols: symbol.NormalizeList(symbols)}
}

func (p *StaticProvider) List(_ context.Context) ([]string, error) {
	if len(p.symbols) == 0 {
		return nil, fmt.Errorf("static universe is empty")
	}
	return append([]string(nil), p.symbols...), nil
}

// universeFile is the yaml document an external universe manager maintains.
type universeFile struct {
	Symbols []string `yaml:"symbols"`
}

// FileProvider re-reads a yaml universe file on every List call, so an
// externally updated universe takes effect on the next slow tick without a
// restart.
type FileProvider struct {
	path     string
	fallback []string
}

func NewFileProvider(path string, fallback []string) *FileProvider {
	return &FileProvider{path: path, fallback: symbol.NormalizeList(fallback)}
}

func (p *FileProvider) List(_ context.Context) ([]string, error) {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		if len(p.fallback) > 0 {
			return append([]string(nil), p.fallback...), nil
		}
		return nil, fmt.Errorf("reading universe file %s: %w", p.path, err)
	}
	var doc universeFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing universe file %s: %w", p.path, err)
	}
	symbols := symbol.NormalizeList(doc.Symbols)
	if len(symbols) == 0 {
		return nil, fmt.Errorf("universe file %s lists no symbols", p.path)
	}
	return symbols, nil
}

// Describe renders a short human summary for startup logs.
func Describe(symbols []string) string {
	if len(symbols) == 0 {
		return "(empty)"
	}
	if len(symbols) <= 10 {
		return strings.Join(symbols, ", ")
	}
	return fmt.Sprintf("%s, ... (%d total)", strings.Join(symbols[:10], ", "), len(symbols))
}
