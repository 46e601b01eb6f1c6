package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/njchilds90/gonewton"
)

var (
	evalX     float64
	deriveTeX bool
	deriveAtX string
)

// evalCmd evaluates an expression at a point
var evalCmd = &cobra.Command{
	Use:   "eval [expression]",
	Short: "Evaluate an expression in x",
	Long: `Evaluates a formula over the whitelisted vocabulary at one point.

Example:
  newton eval "x**2 - 2" --x 1.5
  newton eval "np.sin(x) / x" --x 0.1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := gonewton.Evaluate(args[0], evalX)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatFloat(v, 'g', -1, 64))
		return nil
	},
}

// deriveCmd prints the symbolic derivative
var deriveCmd = &cobra.Command{
	Use:   "derive [expression]",
	Short: "Print d/dx of an expression",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := gonewton.Parse(args[0])
		if err != nil {
			return err
		}
		d := gonewton.Diff(e)
		out := cmd.OutOrStdout()
		if deriveTeX {
			fmt.Fprintln(out, d.LaTeX())
		} else {
			fmt.Fprintln(out, d.String())
		}
		if deriveAtX != "" {
			x, err := strconv.ParseFloat(deriveAtX, 64)
			if err != nil {
				return fmt.Errorf("--at: %w", err)
			}
			v, err := d.Eval(x)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "f'(%g) = %g\n", x, v)
		}
		return nil
	},
}

func init() {
	evalCmd.Flags().Float64Var(&evalX, "x", 0, "Value of x")
	deriveCmd.Flags().BoolVar(&deriveTeX, "latex", false, "Print LaTeX instead of plain text")
	deriveCmd.Flags().StringVar(&deriveAtX, "at", "", "Also evaluate the derivative at this x")
}
