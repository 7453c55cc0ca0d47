package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// only the braced form is expanded; a bare $ in a password stays literal
var placeholder = regexp.MustCompile(`\$\{[A-Za-z_][A-Za-z0-9_]*\}`)

const (
	baseLayer   = "base.yaml"
	secretsFile = "secrets.env"
)

// LoadLayers merges base.yaml, then <env>.yaml when present, and finally
// expands ${VAR} placeholders from secrets.env and the process environment.
// A non-empty process environment value wins over secrets.env.
func LoadLayers(env, dir string) (map[string]any, error) {
	if dir == "" {
		dir = "config"
	}

	merged, err := readYAML(filepath.Join(dir, baseLayer))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", baseLayer, err)
	}

	if env != "" && env != "base" {
		overlay, err := readYAML(filepath.Join(dir, env+".yaml"))
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("load %s.yaml: %w", env, err)
		default:
			merged = mergeMaps(merged, overlay)
		}
	}

	secrets, err := readEnvFile(filepath.Join(dir, secretsFile))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", secretsFile, err)
	}
	lookup := func(key string) (string, bool) {
		if v := os.Getenv(key); v != "" {
			return v, true
		}
		v, ok := secrets[key]
		return v, ok
	}
	return expandTree(merged, lookup).(map[string]any), nil
}

// Decode round-trips the merged layers through yaml so struct tags apply.
func Decode(layers map[string]any, out any) error {
	raw, err := yaml.Marshal(layers)
	if err != nil {
		return fmt.Errorf("encode merged config: %w", err)
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode merged config: %w", err)
	}
	return nil
}

func readYAML(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// readEnvFile parses KEY=VALUE lines. Blank lines and # comments are skipped.
func readEnvFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	vars := map[string]string{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		key, value, ok := strings.Cut(strings.TrimPrefix(line, "export "), "=")
		if !ok {
			continue
		}
		vars[strings.TrimSpace(key)] = envValue(strings.TrimSpace(value))
	}
	return vars, sc.Err()
}

// envValue unquotes a secrets.env value. A quoted value ends at its closing
// quote; an unquoted one ends before a " #" comment.
func envValue(v string) string {
	if len(v) > 0 && (v[0] == '"' || v[0] == '\'') {
		if end := strings.IndexByte(v[1:], v[0]); end >= 0 {
			return v[1 : end+1]
		}
		return v[1:]
	}
	if i := strings.Index(v, " #"); i >= 0 {
		v = v[:i]
	}
	if i := strings.Index(v, "\t#"); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}

// mergeMaps returns dst overlaid with src; nested maps merge key by key.
func mergeMaps(dst, src map[string]any) map[string]any {
	out := make(map[string]any, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		if d, ok := out[k].(map[string]any); ok {
			if s, ok := v.(map[string]any); ok {
				out[k] = mergeMaps(d, s)
				continue
			}
		}
		out[k] = v
	}
	return out
}

// expandTree walks maps and lists replacing ${VAR} in strings. Unknown
// placeholders are left untouched so a missing secret is visible.
func expandTree(node any, lookup func(string) (string, bool)) any {
	switch v := node.(type) {
	case string:
		if !strings.Contains(v, "${") {
			return v
		}
		return placeholder.ReplaceAllStringFunc(v, func(m string) string {
			if val, ok := lookup(m[2 : len(m)-1]); ok {
				return val
			}
			return m
		})
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, child := range v {
			out[k] = expandTree(child, lookup)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			out[i] = expandTree(child, lookup)
		}
		return out
	default:
		return node
	}
}

// GetEnv returns the environment value of key or def when unset.
func GetEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// GetConfigEnv reads CONFIG_ENV, defaulting to local.
func GetConfigEnv() string {
	return GetEnv("CONFIG_ENV", "local")
}
