package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/njchilds90/gonewton"
	"github.com/njchilds90/gonewton/internal/render"
	"github.com/njchilds90/gonewton/internal/tui"
)

var (
	runF        string
	runDF       string
	runX0       float64
	runTol      float64
	runMaxIter  int
	runMarkdown bool
	runPlotPath string
)

// addParamFlags registers the Newton parameter flags on cmd.
func addParamFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&runF, "f", "", "Function f(x) (default from config)")
	cmd.Flags().StringVar(&runDF, "df", "", "Derivative f'(x); empty derives it from f")
	cmd.Flags().Float64Var(&runX0, "x0", 0, "Initial guess (default from config)")
	cmd.Flags().Float64Var(&runTol, "tol", 0, "Convergence tolerance on |f(x)| (default from config)")
	cmd.Flags().IntVar(&runMaxIter, "max-iter", 0, "Iteration budget (default from config)")
}

// paramsFromFlags overlays the flags that were set on the configured defaults.
func paramsFromFlags(cmd *cobra.Command) gonewton.Params {
	p := cfg.Newton
	if cmd.Flags().Changed("f") {
		p.Function = runF
		p.Derivative = ""
	}
	if cmd.Flags().Changed("df") {
		p.Derivative = runDF
	}
	if cmd.Flags().Changed("x0") {
		p.X0 = runX0
	}
	if cmd.Flags().Changed("tol") {
		p.Tolerance = runTol
	}
	if cmd.Flags().Changed("max-iter") {
		p.MaxIterations = runMaxIter
	}
	return p
}

// runCmd iterates to convergence and prints the trajectory
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Step until convergence or the iteration budget runs out",
	Long: `Presses "Next Step" repeatedly on a fresh session and prints the log.

Example:
  newton run --f "x**2 - 2" --df "2*x" --x0 -1.5
  newton run --f "cos(x) - x" --x0 1 --markdown --plot newton.png`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := paramsFromFlags(cmd)
		sess := gonewton.NewSession("cli")

		var res gonewton.StepResult
		for {
			res = sess.Advance(p)
			logger.Debug("step", zap.Stringer("kind", res.Kind), zap.Int("iterations", sess.Iterations), zap.Float64("x", res.X))
			if res.Kind != gonewton.StepStepped {
				break
			}
		}

		out := cmd.OutOrStdout()
		if runMarkdown {
			renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
			if err != nil {
				return fmt.Errorf("failed to create markdown renderer: %w", err)
			}
			rendered, err := renderer.Render(sess.Markdown(p))
			if err != nil {
				return fmt.Errorf("failed to render markdown: %w", err)
			}
			fmt.Fprint(out, rendered)
		} else {
			fmt.Fprintln(out, strings.Join(sess.Log(), "\n"))
		}
		fmt.Fprintln(out, res.Message())

		if runPlotPath != "" {
			if err := writePlot(runPlotPath, p, sess); err != nil {
				return err
			}
			fmt.Fprintf(out, "plot written to %s\n", runPlotPath)
		}

		switch {
		case res.Kind == gonewton.StepConverged:
			return nil
		case errors.Is(res.Err, gonewton.ErrIterationBudgetExhausted):
			return fmt.Errorf("did not converge within %d iterations", p.MaxIterations)
		}
		return res.Err
	},
}

func writePlot(path string, p gonewton.Params, sess *gonewton.Session) error {
	data, err := gonewton.BuildPlot(p.Function, p.Derivative, sess.History, cfg.Plot)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create plot file: %w", err)
	}
	defer f.Close()
	return render.PNG(f, data, render.Options{Width: cfg.Render.Width, Height: cfg.Render.Height})
}

// tuiCmd launches the interactive terminal
var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Interactive Newton's-method terminal UI",
	RunE: func(cmd *cobra.Command, args []string) error {
		return tui.Run(paramsFromFlags(cmd), logger)
	},
}

func init() {
	addParamFlags(runCmd)
	runCmd.Flags().BoolVar(&runMarkdown, "markdown", false, "Render the log as a markdown table")
	runCmd.Flags().StringVar(&runPlotPath, "plot", "", "Write a PNG chart of the trajectory to this path")

	addParamFlags(tuiCmd)
}
