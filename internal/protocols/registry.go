// Package protocols holds the static first-aid protocol registry and the
// visual-aid asset table.
package protocols

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/satriahrh/lifeline/domain/entities"
)

//go:embed protocols.yaml
var defaultData []byte

// Fallback checklist names
const (
	FallbackGeneral     = "general"
	FallbackUnavailable = "unavailable"
)

type document struct {
	Assets     map[string]string            `yaml:"assets"`
	AssetHints map[string]string            `yaml:"asset_hints"`
	Protocols  []entities.Protocol          `yaml:"protocols"`
	Fallbacks  map[string]entities.Protocol `yaml:"fallbacks"`
}

// Asset is a visual aid the dialogue model may reference by key
type Asset struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Hint string `json:"hint"`
}

// Registry is an immutable lookup of protocols and assets
type Registry struct {
	protocols map[string]*entities.Protocol
	assets    map[string]Asset
	fallbacks map[string]*entities.Protocol
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the registry built from the embedded protocols.yaml
func Default() *Registry {
	defaultOnce.Do(func() {
		r, err := Parse(defaultData)
		if err != nil {
			panic(fmt.Sprintf("protocols: embedded registry is invalid: %v", err))
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

// Parse builds a registry from YAML
func Parse(data []byte) (*Registry, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode protocols: %w", err)
	}

	r := &Registry{
		protocols: make(map[string]*entities.Protocol, len(doc.Protocols)),
		assets:    make(map[string]Asset, len(doc.Assets)),
		fallbacks: make(map[string]*entities.Protocol, len(doc.Fallbacks)),
	}

	for i := range doc.Protocols {
		p := doc.Protocols[i]
		if p.Key == "" || p.Name == "" || len(p.Steps) == 0 {
			return nil, fmt.Errorf("protocol %d is missing key, name or steps", i)
		}
		if _, dup := r.protocols[p.Key]; dup {
			return nil, fmt.Errorf("duplicate protocol key %s", p.Key)
		}
		r.protocols[p.Key] = &p
	}

	for key, url := range doc.Assets {
		r.assets[key] = Asset{Key: key, URL: url, Hint: doc.AssetHints[key]}
	}

	for name, p := range doc.Fallbacks {
		p := p
		r.fallbacks[name] = &p
	}

	return r, nil
}

// Lookup returns the protocol for a classifier label. Empty and "unknown"
// labels never match.
func (r *Registry) Lookup(label string) (*entities.Protocol, bool) {
	if label == "" || strings.EqualFold(label, entities.EmergencyTypeUnknown) {
		return nil, false
	}
	p, ok := r.protocols[label]
	return p, ok
}

// Keys returns the registered protocol keys in sorted order
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.protocols))
	for k := range r.protocols {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AssetURL resolves a visual-aid key
func (r *Registry) AssetURL(key string) (string, bool) {
	a, ok := r.assets[key]
	if !ok {
		return "", false
	}
	return a.URL, true
}

// Assets returns every asset sorted by key
func (r *Registry) Assets() []Asset {
	out := make([]Asset, 0, len(r.assets))
	for _, a := range r.assets {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Fallback returns generic checklist content used when no protocol applies
func (r *Registry) Fallback(name string) *entities.Protocol {
	if p, ok := r.fallbacks[name]; ok {
		return p
	}
	return &entities.Protocol{
		Key:   strings.ToUpper(name),
		Name:  "Emergency Guidance",
		Steps: []string{"Please call 911 immediately if this is an emergency."},
	}
}
