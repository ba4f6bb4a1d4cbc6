package output

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/jimvn/internal/storage"
	"github.com/jbweber/jimvn/internal/vm"
)

// YAMLFormatter formats resources as a YAML stream, one document per item.
type YAMLFormatter struct{}

// FormatGuests formats guests as YAML documents.
func (f *YAMLFormatter) FormatGuests(guests []vm.GuestInfo) (string, error) {
	var buf bytes.Buffer
	for i, g := range guests {
		if err := writeDocument(&buf, i, g); err != nil {
			return "", fmt.Errorf("failed to marshal guest %s to YAML: %w", g.Name, err)
		}
	}
	return buf.String(), nil
}

// FormatPools formats pools as YAML documents.
func (f *YAMLFormatter) FormatPools(pools []storage.PoolInfo) (string, error) {
	var buf bytes.Buffer
	for i, p := range pools {
		if err := writeDocument(&buf, i, p); err != nil {
			return "", fmt.Errorf("failed to marshal pool %s to YAML: %w", p.Name, err)
		}
	}
	return buf.String(), nil
}

func writeDocument(buf *bytes.Buffer, i int, v interface{}) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}

	// Separator between documents, not before the first one
	if i > 0 {
		buf.WriteString("---\n")
	}
	buf.Write(data)
	return nil
}
