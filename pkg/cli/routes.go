package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var routesFlags struct {
	handlerDir string
	jsonOutput bool
}

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Compile the handler tree and print the route table",
	Long: `Compile every handler file under the handler directory and print the
routes it would register, including files that fail to compile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadTree(routesFlags.handlerDir)
		if err != nil {
			return err
		}
		routes := reg.Routes()

		if routesFlags.jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(routes)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "METHOD\tROUTE\tSOURCE\tSTATUS")
		for _, r := range routes {
			status := "ok"
			if r.Broken {
				status = "broken"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Method, r.Template, r.Source, status)
		}
		return w.Flush()
	},
}

func init() {
	routesCmd.Flags().StringVarP(&routesFlags.handlerDir, "handler-dir", "d", "handlers", "Handler source tree root")
	routesCmd.Flags().BoolVar(&routesFlags.jsonOutput, "json", false, "Output as JSON")
}
