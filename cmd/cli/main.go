package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"gsdesign/adapters/api"
	"gsdesign/adapters/db/postgres/migrations"
	"gsdesign/adapters/excel"
	"gsdesign/adapters/scenariofile"
	"gsdesign/app"
	"gsdesign/domain/inference"
	"gsdesign/internal/config"
	"gsdesign/internal/container"
	"gsdesign/models"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "gsdesign",
		Short:        "Group sequential trial design: boundaries, sample size, interim inference",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newDesignCmd(),
		newSweepCmd(),
		newUpdateCmd(),
		newCPCmd(),
		newServeCmd(),
		newMigrateCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the dependency container
func setup(ctx context.Context) (*container.Container, error) {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	c, err := container.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// pick returns the named scenario, or the first one when name is empty
func pick(scenarios []models.Scenario, name string) (models.Scenario, error) {
	if name == "" {
		return scenarios[0], nil
	}
	for _, sc := range scenarios {
		if sc.Name == name {
			return sc, nil
		}
	}
	return models.Scenario{}, fmt.Errorf("no scenario named %q", name)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newDesignCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "design <scenario.yaml>",
		Short: "Derive the design for every scenario in a file",
		Long: `Derive boundaries, sample size and (for time-to-event scenarios) the
analysis schedule for each scenario in a YAML or JSON file.

Example: gsdesign design trial.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenarios, err := scenariofile.Load(args[0])
			if err != nil {
				return err
			}
			c, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			for _, sc := range scenarios {
				rec, err := c.DesignService.Create(cmd.Context(), sc)
				if err != nil {
					return fmt.Errorf("scenario %q: %w", sc.Name, err)
				}
				if asJSON {
					if err := printJSON(rec); err != nil {
						return err
					}
					continue
				}
				printRecord(rec)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full design record as JSON")
	return cmd
}

func newSweepCmd() *cobra.Command {
	var out, sheet, export string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "sweep <file.yaml|file.xlsx|file.csv>",
		Short: "Evaluate many scenarios concurrently and summarise them",
		Long: `Evaluate every scenario in a YAML/JSON document or in a workbook with one
scenario per row. Failing rows are reported without stopping the sweep.

Example: gsdesign sweep what-if.xlsx --sheet Survival --out results.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenarios, err := loadSweep(args[0], sheet)
			if err != nil {
				return err
			}
			if export != "" {
				if err := scenariofile.Write(export, scenarios); err != nil {
					return err
				}
				fmt.Printf("Wrote %d scenarios to %s\n", len(scenarios), export)
			}
			c, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			res, err := c.DesignService.Sweep(cmd.Context(), scenarios)
			if err != nil {
				return err
			}
			if out != "" {
				if err := writeSweep(out, res); err != nil {
					return err
				}
				fmt.Printf("Wrote %d rows to %s\n", len(res.Rows), out)
			}
			if asJSON {
				return printJSON(res)
			}
			printSweep(res)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Write the rows to an .xlsx or .json file")
	cmd.Flags().StringVar(&sheet, "sheet", "", "Worksheet to read from an .xlsx file (default: first)")
	cmd.Flags().StringVar(&export, "export", "", "Also write the loaded scenarios to a YAML file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func loadSweep(path, sheet string) ([]models.Scenario, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".csv":
		return excel.NewDataReader(path).WithSheet(sheet).ReadScenarios()
	}
	return scenariofile.Load(path)
}

func writeSweep(path string, res *app.SweepResult) error {
	if strings.ToLower(filepath.Ext(path)) != ".xlsx" {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		return os.WriteFile(path, data, 0o644)
	}
	headers := []string{"name", "max_n", "max_events", "inflation", "expected_n_h0", "expected_n_h1", "power", "duration", "error"}
	rows := make([][]interface{}, len(res.Rows))
	for i, r := range res.Rows {
		rows[i] = []interface{}{r.Name, r.MaxN, r.MaxEvents, r.Inflation, r.ExpectedNH0, r.ExpectedNH1, r.Power, r.Duration, r.Error}
	}
	return excel.WriteTable(path, "Sweep", headers, rows)
}

func newUpdateCmd() *cobra.Command {
	var events []float64
	var name string

	cmd := &cobra.Command{
		Use:   "update <scenario.yaml>",
		Short: "Re-derive a design from counts observed at the first analyses",
		Long: `Derive the design for a scenario, then re-derive it from the sample sizes
(or event counts) actually observed at the analyses done so far.

Example: gsdesign update trial.yaml --events 112,231`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(events) == 0 {
				return fmt.Errorf("--events is required")
			}
			scenarios, err := scenariofile.Load(args[0])
			if err != nil {
				return err
			}
			sc, err := pick(scenarios, name)
			if err != nil {
				return err
			}
			c, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			rec, err := c.DesignService.Create(cmd.Context(), sc)
			if err != nil {
				return err
			}
			child, err := c.DesignService.Update(cmd.Context(), rec.ID, events)
			if err != nil {
				return err
			}
			fmt.Println("Planned:")
			printRecord(rec)
			fmt.Println("Updated:")
			printRecord(child)
			return nil
		},
	}

	cmd.Flags().Float64SliceVar(&events, "events", nil, "Observed counts at analyses 1..m")
	cmd.Flags().StringVar(&name, "name", "", "Scenario to use when the file holds several")
	return cmd
}

func newCPCmd() *cobra.Command {
	var (
		name     string
		analysis int
		z, n     float64
		effect   string
		theta    float64
		priorSD  float64
	)

	cmd := &cobra.Command{
		Use:   "cp <scenario.yaml>",
		Short: "Conditional and predictive power at an interim analysis",
		Long: `Evaluate an interim result against the design of a scenario.

Example: gsdesign cp trial.yaml --analysis 1 --z 1.4 --effect trend --prior-sd 0.1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenarios, err := scenariofile.Load(args[0])
			if err != nil {
				return err
			}
			sc, err := pick(scenarios, name)
			if err != nil {
				return err
			}
			c, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			rec, err := c.DesignService.Create(cmd.Context(), sc)
			if err != nil {
				return err
			}
			state := inference.State{Analysis: analysis, Z: z, N: n}
			req := app.ConditionalPowerRequest{State: state, Effect: inference.Effect(effect)}
			if cmd.Flags().Changed("theta") {
				req.Theta = &theta
			}
			res, err := c.DesignService.ConditionalPower(cmd.Context(), rec.ID, req)
			if err != nil {
				return err
			}
			printConditional(res)

			if priorSD > 0 {
				pp, err := c.DesignService.PredictivePower(cmd.Context(), rec.ID, app.PredictivePowerRequest{State: state, SD: priorSD})
				if err != nil {
					return err
				}
				fmt.Printf("Predictive power: %.4f (prior mean %.4f)\n", pp.Predictive, pp.PriorMean)
				fmt.Printf("Posterior predictive power: %.4f (posterior mean %.4f)\n", pp.PosteriorPredictive, pp.PosteriorMean)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Scenario to use when the file holds several")
	cmd.Flags().IntVar(&analysis, "analysis", 1, "Interim analysis number (1-based)")
	cmd.Flags().Float64Var(&z, "z", 0, "Observed Z statistic")
	cmd.Flags().Float64Var(&n, "n", 0, "Observed information (sample size or events); planned when 0")
	cmd.Flags().StringVar(&effect, "effect", "design", "Drift after the interim: design|null|trend")
	cmd.Flags().Float64Var(&theta, "theta", 0, "Explicit drift; overrides --effect")
	cmd.Flags().Float64Var(&priorSD, "prior-sd", 0, "Also report predictive power under a normal prior with this sd")
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()
			return api.NewServer(c.DesignService, c.Config.Server).Start(cmd.Context())
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and show their status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()
			if c.DB == nil {
				return fmt.Errorf("DATABASE_URL is not set")
			}
			status, err := migrations.NewMigrator(c.DB.DB).Status(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range status {
				state := "pending"
				if s.Applied {
					state = "applied"
				}
				fmt.Printf("%-40s %s\n", s.Version, state)
			}
			return nil
		},
	}
}
