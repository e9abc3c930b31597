package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"go.pilab.hu/citizenportal/domain"
	perrors "go.pilab.hu/citizenportal/errors"
	"go.pilab.hu/citizenportal/pagedata"
)

const (
	outputYAML  = "yaml"
	outputTable = "table"
)

type viewDoc struct {
	Page      string              `yaml:"page"`
	UserID    string              `yaml:"user_id"`
	Filter    *domain.FilterState `yaml:"filter,omitempty"`
	Error     string              `yaml:"error,omitempty"`
	Failed    map[string]string   `yaml:"failed,omitempty"`
	Resources map[string]any      `yaml:"resources,omitempty"`
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return enc.Close()
}

// section renders one resource as a table.
type section struct {
	title    string
	resource string
	render   func(w io.Writer, data any)
}

// printView writes v in the selected output format. A view that asks for the
// login page turns into ErrNoSession.
func printView(cmd *cobra.Command, v pagedata.View, filtered bool, sections ...section) error {
	if v.Redirect != "" {
		return perrors.ErrNoSession
	}

	out := cmd.OutOrStdout()
	if outputFmt == outputYAML {
		doc := viewDoc{Page: v.Page, UserID: v.UserID, Error: v.Error, Resources: map[string]any{}}
		if filtered {
			f := v.Filter
			doc.Filter = &f
		}
		for name, r := range v.Resources {
			if r.OK() {
				doc.Resources[name] = r.Data
				continue
			}
			if doc.Failed == nil {
				doc.Failed = map[string]string{}
			}
			doc.Failed[name] = perrors.Message(r.Err)
		}
		return writeYAML(out, doc)
	}

	fmt.Fprintf(out, "%s (citizen %s)\n", strings.ToUpper(v.Page), v.UserID)
	if v.Error != "" {
		fmt.Fprintf(out, "Error: %s\nRun the command again to retry.\n", v.Error)
	}
	if filtered && (v.Filter.Search != "" || v.Filter.HasStatus()) {
		fmt.Fprintf(out, "Filter: search=%q status=%s\n", v.Filter.Search, v.Filter.Status)
	}

	for _, s := range sections {
		fmt.Fprintf(out, "\n%s\n", s.title)
		r, found := v.Resources[s.resource]
		switch {
		case !found:
			fmt.Fprintln(out, "  not loaded")
		case !r.OK():
			fmt.Fprintf(out, "  unavailable: %s\n", perrors.Message(r.Err))
		default:
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			s.render(tw, r.Data)
			_ = tw.Flush()
		}
	}
	return nil
}

func row(w io.Writer, cols ...any) {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprint(c)
	}
	fmt.Fprintln(w, "  "+strings.Join(parts, "\t"))
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// printResult writes the result of a mutation.
func printResult(cmd *cobra.Command, message string, fields map[string]string) error {
	out := cmd.OutOrStdout()
	if outputFmt == outputYAML {
		doc := map[string]any{"message": message}
		for k, v := range fields {
			doc[k] = v
		}
		return writeYAML(out, doc)
	}

	fmt.Fprintln(out, message)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, k := range sortedKeys(fields) {
		row(tw, k+":", fields[k])
	}
	return tw.Flush()
}
