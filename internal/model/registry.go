package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"skipper/internal/logger"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

// Artifact naming follows the external trainer's convention:
//
//	model_v<major.minor>.bin          opaque weights
//	model_config_v<major.minor>.json  metadata (trained_symbols, trained_at, ...)
//
// A version is eligible only when both files are present and the metadata
// passes schema validation.
var versionPattern = regexp.MustCompile(`_v(\d+\.\d+)\.`)

const metadataSchema = `{
  "type": "object",
  "required": ["trained_symbols", "trained_at"],
  "properties": {
    "trained_symbols": {"type": "array", "items": {"type": "string"}},
    "trained_at": {"type": "string"},
    "training_days": {"type": "integer", "minimum": 0}
  }
}`

var compiledMetadataSchema = func() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("model_config.schema.json", strings.NewReader(metadataSchema)); err != nil {
		panic(err)
	}
	return compiler.MustCompile("model_config.schema.json")
}()

// ArtifactInfo describes one discovered model version.
type ArtifactInfo struct {
	Version        string
	WeightsPath    string
	ConfigPath     string
	TrainedSymbols []string
	TrainedAt      time.Time
	TrainingDays   int
	Complete       bool
}

func versionKey(version string) (int, int) {
	parts := strings.SplitN(version, ".", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	major, _ := strconv.Atoi(parts[0])
	minor, _ := strconv.Atoi(parts[1])
	return major, minor
}

// CompareVersions reports -1/0/1 ordering of two version strings.
func CompareVersions(a, b string) int {
	amaj, amin := versionKey(a)
	bmaj, bmin := versionKey(b)
	switch {
	case amaj != bmaj && amaj < bmaj:
		return -1
	case amaj != bmaj:
		return 1
	case amin < bmin:
		return -1
	case amin > bmin:
		return 1
	default:
		return 0
	}
}

// ListArtifacts scans dir for model versions, newest first. Incomplete
// versions are returned with Complete=false so callers can log them; versions
// with unreadable or invalid metadata are skipped entirely.
func ListArtifacts(dir string) ([]ArtifactInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading model dir failed: %w", err)
	}

	byVersion := make(map[string]*ArtifactInfo)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		m := versionPattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		version := m[1]
		info := byVersion[version]
		if info == nil {
			info = &ArtifactInfo{Version: version}
			byVersion[version] = info
		}
		switch {
		case strings.HasPrefix(name, "model_v") && strings.HasSuffix(name, ".bin"):
			info.WeightsPath = filepath.Join(dir, name)
		case strings.HasPrefix(name, "model_config_v") && strings.HasSuffix(name, ".json"):
			info.ConfigPath = filepath.Join(dir, name)
		}
	}

	out := make([]ArtifactInfo, 0, len(byVersion))
	for _, info := range byVersion {
		info.Complete = info.WeightsPath != "" && info.ConfigPath != ""
		if info.ConfigPath != "" {
			if err := loadMetadata(info); err != nil {
				logger.Warnf("model v%s: metadata rejected: %v", info.Version, err)
				continue
			}
		}
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool {
		return CompareVersions(out[i].Version, out[j].Version) > 0
	})
	return out, nil
}

func loadMetadata(info *ArtifactInfo) error {
	raw, err := os.ReadFile(info.ConfigPath)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	if !gjson.ValidBytes(raw) {
		return fmt.Errorf("not valid json")
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if err := compiledMetadataSchema.Validate(doc); err != nil {
		return fmt.Errorf("schema: %w", err)
	}

	parsed := gjson.ParseBytes(raw)
	parsed.Get("trained_symbols").ForEach(func(_, v gjson.Result) bool {
		if s := strings.TrimSpace(v.String()); s != "" {
			info.TrainedSymbols = append(info.TrainedSymbols, s)
		}
		return true
	})
	if ts := parsed.Get("trained_at").String(); ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			info.TrainedAt = t.UTC()
		}
	}
	info.TrainingDays = int(parsed.Get("training_days").Int())
	return nil
}
