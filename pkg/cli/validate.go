package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mocksmith/mocksmith/internal/routing"
	"github.com/mocksmith/mocksmith/pkg/contract"
)

var validateFlags struct {
	handlerDir string
	specFile   string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the handler tree and contract without serving",
	Long: `Compile every handler file and, when a contract is given, cross-check
the route table against it. Reports handler files that fail to compile,
routes the contract does not declare, and contract operations no
handler covers. Fails when any handler is broken.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(validateFlags.handlerDir, validateFlags.specFile)
	},
}

func init() {
	validateCmd.Flags().StringVarP(&validateFlags.handlerDir, "handler-dir", "d", "handlers", "Handler source tree root")
	validateCmd.Flags().StringVarP(&validateFlags.specFile, "spec", "s", "", "OpenAPI contract file")
}

func runValidate(handlerDir, specFile string) error {
	var c *contract.Contract
	if specFile != "" {
		loaded, err := contract.Load(specFile)
		if err != nil {
			return fmt.Errorf("contract: %w", err)
		}
		c = loaded
		fmt.Printf("contract %s: valid, %d operations\n", specFile, len(c.Operations()))
	}

	reg, err := loadTree(handlerDir)
	if err != nil {
		return err
	}
	routes := reg.Routes()

	broken := 0
	covered := make(map[*contract.Operation]bool)
	for _, r := range routes {
		if r.Broken {
			broken++
			fmt.Printf("BROKEN  %s %s (%s)\n", r.Method, r.Template, r.Source)
			continue
		}
		if c == nil {
			continue
		}
		tmpl, err := routing.Parse(r.Template)
		if err != nil {
			continue
		}
		op := c.Find(r.Method, tmpl)
		if op == nil {
			fmt.Printf("WARN    %s %s not declared in contract\n", r.Method, r.Template)
			continue
		}
		covered[op] = true
	}

	if c != nil {
		for _, op := range c.Operations() {
			if !covered[op] {
				fmt.Printf("WARN    %s %s has no handler\n", op.Method, op.Template)
			}
		}
	}

	fmt.Printf("%d routes, %d broken\n", len(routes), broken)
	if broken > 0 {
		return fmt.Errorf("%d handler file(s) failed to compile", broken)
	}
	return nil
}
