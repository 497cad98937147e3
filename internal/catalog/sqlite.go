package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-devcaps/internal/capability"
)

// Querier is the read side of a database connection.
// Both *sql.DB and *database.DB satisfy it.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// TxBeginner starts transactions. Both *sql.DB and *database.DB satisfy it.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// LoadSQLite reads a catalog from the device_descriptors and device_versions
// tables. Descriptor order follows the position column. A row whose body
// cannot be decoded is recorded in Rejected and skipped.
func LoadSQLite(ctx context.Context, db Querier, source string) (*Catalog, error) {
	cat := New()
	cat.sources = []string{source}

	if err := loadDescriptorRows(ctx, db, cat); err != nil {
		return nil, err
	}
	if err := loadVersionRows(ctx, db, cat); err != nil {
		return nil, err
	}
	return cat, nil
}

func loadDescriptorRows(ctx context.Context, db Querier, cat *Catalog) error {
	rows, err := db.QueryContext(ctx,
		"SELECT device_type, body FROM device_descriptors ORDER BY position, device_type",
	)
	if err != nil {
		return fmt.Errorf("querying device descriptors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var deviceType, body string
		if err := rows.Scan(&deviceType, &body); err != nil {
			return fmt.Errorf("scanning device descriptor: %w", err)
		}
		desc, err := parseDescriptorBytes(deviceType, []byte(body))
		if err == nil {
			err = cat.Add(desc)
		}
		if err != nil {
			cat.Reject(Rejection{DeviceType: deviceType, Source: cat.sources[0], Err: err})
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating device descriptors: %w", err)
	}
	return nil
}

func loadVersionRows(ctx context.Context, db Querier, cat *Catalog) error {
	rows, err := db.QueryContext(ctx,
		"SELECT base_type, version_key, body FROM device_versions ORDER BY base_type, position, version_key",
	)
	if err != nil {
		return fmt.Errorf("querying device versions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var base, key, body string
		if err := rows.Scan(&base, &key, &body); err != nil {
			return fmt.Errorf("scanning device version: %w", err)
		}

		if err := addVersionBody(cat, base, key, body); err != nil {
			cat.Reject(Rejection{DeviceType: base, Version: key, Source: cat.sources[0], Err: err})
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating device versions: %w", err)
	}
	return nil
}

func addVersionBody(cat *Catalog, base, key, body string) error {
	var raw any
	if err := yaml.Unmarshal([]byte(body), &raw); err != nil {
		return fmt.Errorf("%w: version %s/%s: %w", ErrInvalidCatalog, base, key, err)
	}
	v, err := decodeVersion(key, raw)
	if err != nil {
		return err
	}
	return cat.AddVersion(base, v)
}

// SaveSQLite replaces the contents of the catalog tables with cat.
// Descriptor bodies are written as YAML with their key order intact.
func SaveSQLite(ctx context.Context, db TxBeginner, cat *Catalog) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM device_versions"); err != nil {
		return fmt.Errorf("clearing device versions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM device_descriptors"); err != nil {
		return fmt.Errorf("clearing device descriptors: %w", err)
	}

	for pos, desc := range cat.descriptors {
		body, err := encodeDescriptor(desc)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO device_descriptors (device_type, position, body) VALUES (?, ?, ?)",
			desc.DeviceType, pos, string(body),
		); err != nil {
			return fmt.Errorf("inserting descriptor %s: %w", desc.DeviceType, err)
		}
	}

	for _, base := range cat.VersionBases() {
		for pos, v := range cat.Versions(base) {
			body, err := yaml.Marshal(versionDocument{Features: v.Features, Platforms: v.Platforms})
			if err != nil {
				return fmt.Errorf("encoding version %s/%s: %w", base, v.Key, err)
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO device_versions (base_type, version_key, position, body) VALUES (?, ?, ?, ?)",
				base, v.Key, pos, string(body),
			); err != nil {
				return fmt.Errorf("inserting version %s/%s: %w", base, v.Key, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing catalog: %w", err)
	}
	return nil
}

// versionDocument is the YAML body stored for one version.
type versionDocument struct {
	Features  capability.FeatureOverride `yaml:"features,omitempty"`
	Platforms map[string]any             `yaml:"platforms,omitempty"`
}

// encodeDescriptor renders a descriptor as a YAML mapping in key order.
func encodeDescriptor(d *RawDescriptor) ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, key := range d.keys {
		var value yaml.Node
		if err := value.Encode(d.fields[key]); err != nil {
			return nil, fmt.Errorf("encoding %s.%s: %w", d.DeviceType, key, err)
		}
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
			&value,
		)
	}

	body, err := yaml.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", d.DeviceType, err)
	}
	return body, nil
}
