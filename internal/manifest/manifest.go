// Package manifest reads and writes the YAML file listing the remote query
// ids this tool manages.
//
// The file is a mapping with a query_ids sequence:
//
//	query_ids:
//	  - 5526654
//	  - 5526700
//
// Other keys and comments are preserved on save. An absent file, an absent
// key, a null value and null entries all normalise to an empty or shorter
// id list; they are never errors.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"dune-sync/internal/domain"
)

// Key is the mapping key holding the id list.
const Key = "query_ids"

// Manifest is a loaded manifest document.
type Manifest struct {
	Path string
	IDs  []domain.QueryID

	// Dropped counts entries removed during normalisation (nulls, invalid values).
	Dropped int

	doc     *yaml.Node
	comment string // comment lines of a file with no mapping yet
}

// Load reads the manifest at path. A missing file yields an empty manifest
// that Save will create.
func Load(path string) (*Manifest, error) {
	m := &Manifest{Path: path}

	data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return m, nil
		}
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return m, nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if doc.Kind == yaml.DocumentNode {
		m.doc = &doc
	}
	root := documentRoot(&doc)
	if root == nil {
		m.doc = nil
		m.comment = commentLines(data)
		return m, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, domain.ErrValidation("manifest %s: top level must be a mapping", path)
	}

	value := lookup(root, Key)
	if value == nil || isNull(value) {
		return m, nil
	}
	if value.Kind != yaml.SequenceNode {
		return nil, domain.ErrValidation("manifest %s: %s must be a list", path, Key)
	}

	raw := make([]*int64, 0, len(value.Content))
	for _, item := range value.Content {
		raw = append(raw, parseEntry(item))
	}
	m.IDs = Normalize(raw)
	m.Dropped = len(raw) - len(m.IDs)
	return m, nil
}

// Save writes ids to the manifest file, keeping any other keys.
func (m *Manifest) Save(ids []domain.QueryID) error {
	root := m.ensureRoot()

	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, id := range ids {
		seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: id.String()})
	}
	if value := lookup(root, Key); value != nil {
		// Keep comments attached to the old value.
		seq.HeadComment, seq.LineComment, seq.FootComment = value.HeadComment, value.LineComment, value.FootComment
		*value = *seq
	} else {
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: Key}
		if len(root.Content) == 0 {
			key.HeadComment = m.comment
		}
		root.Content = append(root.Content, key, seq)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m.doc); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(m.Path, buf.Bytes(), 0o644); err != nil { //nolint:gosec // manifest is meant to be committed
		return fmt.Errorf("write manifest %s: %w", m.Path, err)
	}
	m.IDs = append([]domain.QueryID(nil), ids...)
	return nil
}

// Merge returns existing followed by the new ids not already present.
// Invalid ids are dropped and duplicates collapse to their first occurrence,
// so merging with nothing new returns existing unchanged.
func Merge(existing, added []domain.QueryID) []domain.QueryID {
	out := make([]domain.QueryID, 0, len(existing)+len(added))
	seen := make(map[domain.QueryID]struct{}, len(existing)+len(added))
	for _, list := range [][]domain.QueryID{existing, added} {
		for _, id := range list {
			if !id.Valid() {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// Normalize converts a nullable id list, as found at the file boundary, into
// the internal form with nulls and invalid values removed.
func Normalize(raw []*int64) []domain.QueryID {
	out := make([]domain.QueryID, 0, len(raw))
	for _, v := range raw {
		if v == nil {
			continue
		}
		if id := domain.QueryID(*v); id.Valid() {
			out = append(out, id)
		}
	}
	return out
}

func (m *Manifest) ensureRoot() *yaml.Node {
	if m.doc == nil {
		m.doc = &yaml.Node{Kind: yaml.DocumentNode}
	}
	if len(m.doc.Content) == 0 || m.doc.Content[0].Kind != yaml.MappingNode {
		m.doc.Content = []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}
	}
	return m.doc.Content[0]
}

func documentRoot(doc *yaml.Node) *yaml.Node {
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil
	}
	root := doc.Content[0]
	if isNull(root) {
		return nil
	}
	return root
}

// commentLines returns the "#" lines of data joined by newlines.
func commentLines(data []byte) string {
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func lookup(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null"
}

// parseEntry returns nil for null and non-integer entries.
func parseEntry(n *yaml.Node) *int64 {
	if n.Kind != yaml.ScalarNode || isNull(n) {
		return nil
	}
	v, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}
