package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"

	"github.com/jbweber/jimvn/internal/storage"
	"github.com/jbweber/jimvn/internal/vm"
)

// TableFormatter formats resources as human-readable tables.
type TableFormatter struct {
	// NoHeaders omits the header row.
	NoHeaders bool
}

// FormatGuests formats guests as a table.
func (f *TableFormatter) FormatGuests(guests []vm.GuestInfo) (string, error) {
	if len(guests) == 0 {
		return "No guests found\n", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "NAME\tUUID\tSTATE\tVCPUs\tMEMORY")
	}

	for _, g := range guests {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			g.Name, g.UUID, g.State, g.CPUs, formatMiB(g.MemoryMB))
	}

	_ = w.Flush()
	return buf.String(), nil
}

// FormatPools formats storage pools as a table.
func (f *TableFormatter) FormatPools(pools []storage.PoolInfo) (string, error) {
	if len(pools) == 0 {
		return "No storage pools found\n", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "NAME\tTYPE\tSTATE\tSOURCE\tCAPACITY\tAVAILABLE")
	}

	for _, p := range pools {
		source := p.Source
		if source == "" {
			source = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.1fGB\t%.1fGB\n",
			p.Name, p.Type, p.State, source, p.CapacityGB(), p.AvailableGB())
	}

	_ = w.Flush()
	return buf.String(), nil
}

// formatMiB formats a memory size given in MiB.
// Examples: "512 MiB", "4 GiB", "1.5 GiB"
func formatMiB(mib uint64) string {
	if mib < 1024 {
		return fmt.Sprintf("%d MiB", mib)
	}
	if mib%1024 == 0 {
		return fmt.Sprintf("%d GiB", mib/1024)
	}
	return fmt.Sprintf("%.1f GiB", float64(mib)/1024)
}
