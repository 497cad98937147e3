package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document section names.
const (
	sectionDevices  = "devices"
	sectionVersions = "versions"
)

// catalogExtensions lists the file extensions LoadDir picks up.
var catalogExtensions = []string{".yaml", ".yml", ".json"}

// Parse decodes one catalog document. JSON is accepted as a subset of YAML.
// source names the document in error messages.
//
// Only document-level problems fail the parse: bad YAML, a non-mapping
// root or section, or an unknown section. A descriptor or version entry
// that cannot be decoded is recorded in Rejected and the rest still load.
func Parse(data []byte, source string) (*Catalog, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidCatalog, source, err)
	}

	cat := New()
	cat.sources = []string{source}

	// Empty document
	if len(doc.Content) == 0 {
		return cat, nil
	}

	root := resolveAlias(doc.Content[0])
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: %s: top level must be a mapping", ErrInvalidCatalog, source)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i].Value
		value := resolveAlias(root.Content[i+1])

		var err error
		switch key {
		case sectionDevices:
			err = parseDevices(cat, value, source)
		case sectionVersions:
			err = parseVersions(cat, value, source)
		default:
			err = fmt.Errorf("%w: unknown section %q", ErrInvalidCatalog, key)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", source, err)
		}
	}

	return cat, nil
}

// LoadFile reads and parses a single catalog file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}
	return Parse(data, path)
}

// LoadDir parses every catalog file in dir, in lexical order, and merges
// them. Subdirectories are not descended into.
func LoadDir(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading catalog directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if slices.Contains(catalogExtensions, ext) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	slices.Sort(files)

	cat := New()
	for _, path := range files {
		part, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		cat.Merge(part)
	}
	return cat, nil
}

// Load reads path as a directory or a single file.
func Load(path string) (*Catalog, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	if info.IsDir() {
		return LoadDir(path)
	}
	return LoadFile(path)
}

func parseDevices(cat *Catalog, node *yaml.Node, source string) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: %s must be a mapping", ErrInvalidCatalog, sectionDevices)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		deviceType := node.Content[i].Value
		desc, err := parseDescriptor(deviceType, resolveAlias(node.Content[i+1]))
		if err == nil {
			err = cat.Add(desc)
		}
		if err != nil {
			cat.Reject(Rejection{DeviceType: deviceType, Source: source, Err: err})
		}
	}
	return nil
}

// parseDescriptor decodes one descriptor mapping, keeping top-level key order.
func parseDescriptor(deviceType string, node *yaml.Node) (*RawDescriptor, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: device %s must be a mapping", ErrInvalidCatalog, deviceType)
	}

	desc := NewRawDescriptor(deviceType)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		if desc.Has(key) {
			return nil, fmt.Errorf("%w: device %s: key %q declared twice", ErrInvalidCatalog, deviceType, key)
		}

		var value any
		if err := node.Content[i+1].Decode(&value); err != nil {
			return nil, fmt.Errorf("%w: device %s: key %q: %w", ErrInvalidCatalog, deviceType, key, err)
		}
		desc.Set(key, value)
	}
	return desc, nil
}

// parseDescriptorBytes decodes a standalone descriptor body.
func parseDescriptorBytes(deviceType string, body []byte) (*RawDescriptor, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: device %s: %w", ErrInvalidCatalog, deviceType, err)
	}
	if len(doc.Content) == 0 {
		return NewRawDescriptor(deviceType), nil
	}
	return parseDescriptor(deviceType, resolveAlias(doc.Content[0]))
}

func parseVersions(cat *Catalog, node *yaml.Node, source string) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: %s must be a mapping", ErrInvalidCatalog, sectionVersions)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		base := node.Content[i].Value
		entries := resolveAlias(node.Content[i+1])
		if entries.Kind != yaml.MappingNode {
			cat.Reject(Rejection{
				DeviceType: base,
				Source:     source,
				Err:        fmt.Errorf("%w: versions of %s must be a mapping", ErrInvalidCatalog, base),
			})
			continue
		}

		for j := 0; j+1 < len(entries.Content); j += 2 {
			key := entries.Content[j].Value
			if err := addVersionNode(cat, base, key, entries.Content[j+1]); err != nil {
				cat.Reject(Rejection{DeviceType: base, Version: key, Source: source, Err: err})
			}
		}
	}
	return nil
}

func addVersionNode(cat *Catalog, base, key string, node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("%w: version %s/%s: %w", ErrInvalidCatalog, base, key, err)
	}
	v, err := decodeVersion(key, raw)
	if err != nil {
		return err
	}
	return cat.AddVersion(base, v)
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}
