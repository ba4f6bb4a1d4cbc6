package output

import (
	"encoding/json"
	"fmt"

	"github.com/jbweber/jimvn/internal/storage"
	"github.com/jbweber/jimvn/internal/vm"
)

// JSONFormatter formats resources as JSON arrays.
type JSONFormatter struct{}

// FormatGuests formats guests as a JSON array.
func (f *JSONFormatter) FormatGuests(guests []vm.GuestInfo) (string, error) {
	if len(guests) == 0 {
		return "[]\n", nil
	}
	return marshalJSON(guests, "guests")
}

// FormatPools formats pools as a JSON array.
func (f *JSONFormatter) FormatPools(pools []storage.PoolInfo) (string, error) {
	if len(pools) == 0 {
		return "[]\n", nil
	}
	return marshalJSON(pools, "pools")
}

func marshalJSON(v interface{}, what string) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s to JSON: %w", what, err)
	}
	return string(data) + "\n", nil
}
