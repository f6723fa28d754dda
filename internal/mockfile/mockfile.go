// Package mockfile reads and writes mock collections as JSON or YAML.
package mockfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prasenjit/go-mockserver/internal/models"
	"gopkg.in/yaml.v3"
)

// Format names accepted by Encode
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

var ErrEmptyDocument = errors.New("document is empty")

// wrapper is the object form: {"mocks": [...]}
type wrapper struct {
	Mocks []models.Mock `json:"mocks"`
}

// Decode parses a mock list. JSON and YAML are accepted, either as a bare
// array or as an object with a "mocks" array. YAML mappings keep their key
// order in responses.
func Decode(data []byte) ([]models.Mock, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrEmptyDocument
	}

	if !json.Valid(trimmed) {
		converted, err := yamlToJSON(trimmed)
		if err != nil {
			return nil, err
		}
		trimmed = converted
	}

	if trimmed[0] == '[' {
		var mocks []models.Mock
		if err := json.Unmarshal(trimmed, &mocks); err != nil {
			return nil, fmt.Errorf("failed to decode mocks: %w", err)
		}
		return mocks, nil
	}

	var w wrapper
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return nil, fmt.Errorf("failed to decode mocks: %w", err)
	}
	return w.Mocks, nil
}

// ReadFile decodes the mock list stored at path
func ReadFile(path string) ([]models.Mock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	mocks, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return mocks, nil
}

// Encode renders mocks in the requested format
func Encode(mocks []models.Mock, format string) ([]byte, error) {
	if mocks == nil {
		mocks = []models.Mock{}
	}
	data, err := json.MarshalIndent(mocks, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode mocks: %w", err)
	}

	switch strings.ToLower(format) {
	case "", FormatJSON:
		return data, nil
	case FormatYAML, "yml":
		return jsonToYAML(data)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func jsonToYAML(data []byte) ([]byte, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to convert to yaml: %w", err)
	}
	blockStyle(&node)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return nil, fmt.Errorf("failed to encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// blockStyle clears the flow and quoting styles JSON input carries
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

func yamlToJSON(data []byte) ([]byte, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	var buf bytes.Buffer
	if err := writeNode(&buf, &node); err != nil {
		return nil, err
	}
	out := bytes.TrimSpace(buf.Bytes())
	if len(out) == 0 || bytes.Equal(out, []byte("null")) {
		return nil, ErrEmptyDocument
	}
	return out, nil
}

func writeNode(buf *bytes.Buffer, n *yaml.Node) error {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			buf.WriteString("null")
			return nil
		}
		return writeNode(buf, n.Content[0])
	case yaml.AliasNode:
		return writeNode(buf, n.Alias)
	case yaml.SequenceNode:
		buf.WriteByte('[')
		for i, c := range n.Content {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeNode(buf, c); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case yaml.MappingNode:
		buf.WriteByte('{')
		for i := 0; i+1 < len(n.Content); i += 2 {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(n.Content[i].Value)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := writeNode(buf, n.Content[i+1]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		out, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		buf.Write(out)
		return nil
	default:
		return fmt.Errorf("line %d: unsupported yaml node", n.Line)
	}
}
