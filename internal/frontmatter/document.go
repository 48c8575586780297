package frontmatter

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/adrg/frontmatter"
	"gopkg.in/yaml.v3"
)

const delim = "---"

// yamlFormat decodes the block into a yaml.Node so scalar tags survive.
var yamlFormat = frontmatter.NewFormat(delim, delim, yaml.Unmarshal)

// Parsed is a Markdown file split into its title, metadata and body.
type Parsed struct {
	Title string
	Meta  *Record
	// Body is the Markdown after the closing delimiter, byte for byte.
	Body string
	// HasFrontMatter is false when the file had no (valid) front matter.
	HasFrontMatter bool
}

// Parse splits YAML front matter from the Markdown body. A file without
// front matter, or whose front matter is not a valid YAML mapping, is
// treated entirely as body.
func Parse(data []byte) (*Parsed, error) {
	fallback := &Parsed{Meta: NewRecord(), Body: string(data)}

	var node yaml.Node
	body, err := frontmatter.Parse(bytes.NewReader(data), &node, yamlFormat)
	if err != nil {
		return fallback, nil
	}
	if node.Kind == 0 {
		// No block, or an empty one.
		if !bytes.Equal(body, data) {
			return &Parsed{Meta: NewRecord(), Body: string(body), HasFrontMatter: true}, nil
		}
		return fallback, nil
	}

	mapping := &node
	if mapping.Kind == yaml.DocumentNode && len(mapping.Content) > 0 {
		mapping = mapping.Content[0]
	}
	if mapping.Kind != yaml.MappingNode {
		return fallback, nil
	}

	out := &Parsed{Meta: NewRecord(), Body: string(body), HasFrontMatter: true}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key := mapping.Content[i].Value
		valueNode := mapping.Content[i+1]
		// Reserved keys match case-insensitively, as IsReserved does.
		switch strings.ToLower(strings.TrimSpace(key)) {
		case KeyTitle:
			if valueNode.Kind == yaml.ScalarNode && valueNode.ShortTag() != tagNull {
				out.Title = valueNode.Value
			}
		case KeyTags:
			if err := out.Meta.SetTags(namesFromNode(valueNode)); err != nil {
				return nil, fmt.Errorf("frontmatter: tags: %w", err)
			}
		case KeyCategories:
			if err := out.Meta.SetCategories(namesFromNode(valueNode)); err != nil {
				return nil, fmt.Errorf("frontmatter: categories: %w", err)
			}
		default:
			v, err := FromNode(valueNode)
			if err != nil {
				return fallback, nil
			}
			out.Meta.set(key, v)
		}
	}
	return out, nil
}

// namesFromNode accepts a sequence of scalars, nested sequences (Hexo's
// category hierarchy, flattened) or a single scalar. Names are trimmed and
// blank entries are dropped.
func namesFromNode(n *yaml.Node) []string {
	if n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	switch n.Kind {
	case yaml.ScalarNode:
		name := strings.TrimSpace(n.Value)
		if n.ShortTag() == tagNull || name == "" {
			return nil
		}
		return []string{name}
	case yaml.SequenceNode:
		var out []string
		seen := make(map[string]struct{})
		for _, child := range n.Content {
			for _, name := range namesFromNode(child) {
				if _, dup := seen[name]; dup {
					continue
				}
				seen[name] = struct{}{}
				out = append(out, name)
			}
		}
		return out
	}
	return nil
}

// Render writes title, meta and body back into a Markdown file. Files with
// neither title nor metadata are written as the bare body.
func Render(title string, meta *Record, body string) ([]byte, error) {
	mapping := &yaml.Node{Kind: yaml.MappingNode, Tag: tagMap}
	if title != "" {
		mapping.Content = append(mapping.Content, keyNode(KeyTitle), String(title).Node())
	}
	for _, f := range meta.Fields() {
		mapping.Content = append(mapping.Content, keyNode(f.Key), f.Value.Node())
	}
	if tags := meta.Tags(); len(tags) > 0 {
		mapping.Content = append(mapping.Content, keyNode(KeyTags), namesNode(tags))
	}
	if cats := meta.Categories(); len(cats) > 0 {
		mapping.Content = append(mapping.Content, keyNode(KeyCategories), namesNode(cats))
	}
	if len(mapping.Content) == 0 {
		return []byte(body), nil
	}

	var buf bytes.Buffer
	buf.WriteString(delim + "\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(mapping); err != nil {
		return nil, fmt.Errorf("frontmatter: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("frontmatter: encode: %w", err)
	}
	buf.WriteString(delim + "\n")
	buf.WriteString(body)
	return buf.Bytes(), nil
}

func keyNode(key string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tagStr, Value: key}
}

func namesNode(names []string) *yaml.Node {
	n := &yaml.Node{Kind: yaml.SequenceNode, Tag: tagSeq}
	for _, name := range names {
		n.Content = append(n.Content, String(name).Node())
	}
	return n
}
