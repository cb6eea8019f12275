package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/ddpsolve/internal/controller"
	"github.com/san-kum/ddpsolve/internal/ddp"
	"github.com/san-kum/ddpsolve/internal/evaluator"
	"github.com/san-kum/ddpsolve/internal/examples"
	"github.com/san-kum/ddpsolve/internal/livetui"
	"github.com/san-kum/ddpsolve/internal/lq"
	"github.com/san-kum/ddpsolve/internal/optimizer"
	"github.com/san-kum/ddpsolve/internal/riccati"
	"github.com/san-kum/ddpsolve/internal/rollout"
	"github.com/san-kum/ddpsolve/internal/settings"
	"github.com/san-kum/ddpsolve/internal/store"
	"github.com/san-kum/ddpsolve/internal/workerpool"
)

var (
	dataDir    string
	presetName string
	configFile string
	nThreads   int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ddpsolve",
		Short: "hybrid trajectory optimization via differential dynamic programming",
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".ddpsolve", "run data directory")

	solveCmd := &cobra.Command{
		Use:   "solve [scenario]",
		Short: "solve a scenario (scalarlqr, exp1) and record the run",
		Args:  cobra.ExactArgs(1),
		RunE:  runSolve,
	}
	solveCmd.Flags().StringVar(&presetName, "preset", "default", "settings preset (default, fast, accurate)")
	solveCmd.Flags().StringVar(&configFile, "config", "", "settings YAML file (overrides --preset)")
	solveCmd.Flags().IntVar(&nThreads, "threads", 0, "worker pool size override (0 = use settings/preset value)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available settings presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PRESET\tMAX_ITER\tMIN_REL_COST\tROLLOUT_DT")
			for name, factory := range settings.Presets {
				s := factory()
				fmt.Fprintf(w, "%s\t%d\t%.1e\t%.4f\n", name, s.MaxNumIterations, s.MinRelCost, s.RolloutDt)
			}
			return w.Flush()
		},
	}

	benchCmd := &cobra.Command{
		Use:   "bench [scenario]",
		Short: "solve the scenario under nThreads in {1,2,4} and compare converged cost",
		Args:  cobra.ExactArgs(1),
		RunE:  runBench,
	}

	replayCmd := &cobra.Command{
		Use:   "replay [run_id]",
		Short: "plot a recorded run's state trajectory",
		Args:  cobra.ExactArgs(1),
		RunE:  runReplay,
	}

	liveCmd := &cobra.Command{
		Use:   "live [scenario]",
		Short: "solve a scenario with a live iteration dashboard",
		Args:  cobra.ExactArgs(1),
		RunE:  runLive,
	}
	liveCmd.Flags().StringVar(&presetName, "preset", "default", "settings preset")

	rootCmd.AddCommand(solveCmd, presetsCmd, benchCmd, replayCmd, liveCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// scenario bundles a plant with its problem data: initial state, time
// horizon, and partitioning.
type scenario struct {
	Name       string
	Plant      *examples.LinearQuadratic
	InitTime   float64
	InitState  ddp.State
	FinalTime  float64
	Partitions ddp.Partitioning
}

func loadScenario(name string) (scenario, error) {
	switch name {
	case "scalarlqr":
		return scenario{
			Name: name, Plant: examples.ScalarLQR(),
			InitTime: 0, InitState: ddp.Vector{1}, FinalTime: 1,
			Partitions: ddp.Partitioning{0, 1},
		}, nil
	case "exp1":
		return scenario{
			Name: name, Plant: examples.EXP1(),
			InitTime: 0, InitState: examples.EXP1InitState(), FinalTime: 3,
			Partitions: examples.EXP1Partitioning(),
		}, nil
	default:
		return scenario{}, fmt.Errorf("unknown scenario: %s (available: scalarlqr, exp1)", name)
	}
}

func loadSettings() (*settings.Settings, error) {
	if configFile != "" {
		return settings.Load(configFile)
	}
	factory, ok := settings.Presets[presetName]
	if !ok {
		return nil, fmt.Errorf("unknown preset: %s", presetName)
	}
	return factory(), nil
}

func buildOptimizer(sc scenario, cfg *settings.Settings) *optimizer.Optimizer {
	if nThreads > 0 {
		cfg.NThreads = nThreads
	}
	pool := workerpool.New(cfg.NThreads)

	ev := &evaluator.Evaluator{
		Constraints:  sc.Plant,
		Events:       sc.Plant,
		Penalty:      evaluator.NewRelaxedBarrier(cfg.InequalityConstraintMu, cfg.InequalityConstraintDelta),
		Terminal:     sc.Plant,
		PenaltyBase:  cfg.StateConstraintPenaltyBase,
		PenaltyCoeff: cfg.StateConstraintPenaltyCoeff,
		InputDim:     sc.Plant.InputM,
	}
	approx := &lq.Approximator{
		Nodes:                   sc.Plant,
		Events:                  sc.Plant,
		Terminal:                sc.Plant,
		Pool:                    pool,
		MakePSD:                 cfg.UseMakePSD,
		EpsDiag:                 cfg.AddedRiccatiDiagonal,
		CheckNumericalStability: cfg.CheckNumericalStability,
		PenaltyBase:             cfg.StateConstraintPenaltyBase,
		PenaltyCoeff:            cfg.StateConstraintPenaltyCoeff,
		InputDim:                sc.Plant.InputM,
	}
	solver := riccati.NewDefaultSolver()
	solver.RegDiag = cfg.AddedRiccatiDiagonal
	integrator := &rollout.RK4{Dt: cfg.RolloutDt}

	opt := optimizer.New(cfg, pool, sc.Plant, sc.Plant, integrator, ev, approx, solver, controller.DefaultSynthesizer{})
	return opt
}

func runSolve(cmd *cobra.Command, args []string) error {
	sc, err := loadScenario(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	opt := buildOptimizer(sc, cfg)

	start := time.Now()
	if err := opt.Solve(sc.InitTime, sc.InitState, sc.FinalTime, sc.Partitions, sc.Plant.Schedule, nil); err != nil {
		return err
	}
	elapsed := time.Since(start)

	cost, ise1, ise2 := opt.PerformanceIndices()
	log := opt.IterationsLog()

	if cfg.DisplayShortSummary {
		fmt.Printf("solved %s in %v\n", sc.Name, elapsed)
		fmt.Printf("cost=%.6f ise1=%.3e ise2=%.3e rewinds=%d\n\n", cost, ise1, ise2, opt.RewindCounter())
	}

	if cfg.DisplayInfo {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ITER\tCOST\tMERIT\tISE1\tALPHA*")
		for _, e := range log {
			fmt.Fprintf(w, "%d\t%.6f\t%.6f\t%.3e\t%.4f\n", e.Iteration, e.Cost, e.Merit, e.ISE1, e.Alpha)
		}
		w.Flush()

		if len(log) > 1 {
			merit := make([]float64, len(log))
			for i, e := range log {
				merit[i] = e.Merit
			}
			fmt.Println()
			fmt.Println(asciigraph.Plot(merit, asciigraph.Height(10), asciigraph.Width(70), asciigraph.Caption("merit M")))
		}

		fmt.Println()
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "STAGE\tCALLS\tTOTAL")
		for _, s := range opt.Timing.Report() {
			fmt.Fprintf(tw, "%s\t%d\t%v\n", s.Name, s.Calls, s.Total)
		}
		tw.Flush()
	}

	st := store.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	sol := opt.PrimalSolution(sc.FinalTime)
	runID, err := st.Save(sc.Name, sol, cost, ise1, ise2, opt.RewindCounter(), log)
	if err != nil {
		return err
	}
	fmt.Printf("\nrun id: %s\n", runID)
	return nil
}

// runBench solves the same scenario under nThreads in {1,2,4} and reports
// the converged cost for each, exercising the thread-count-invariance
// testable property.
func runBench(cmd *cobra.Command, args []string) error {
	sc, err := loadScenario(args[0])
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "THREADS\tCOST\tISE1\tITERATIONS\tTIME")
	for _, threads := range []int{1, 2, 4} {
		cfg := settings.Default()
		cfg.NThreads = threads
		opt := buildOptimizer(sc, cfg)

		start := time.Now()
		if err := opt.Solve(sc.InitTime, sc.InitState, sc.FinalTime, sc.Partitions, sc.Plant.Schedule, nil); err != nil {
			fmt.Fprintf(w, "%d\terror: %v\n", threads, err)
			continue
		}
		elapsed := time.Since(start)
		cost, ise1, _ := opt.PerformanceIndices()
		fmt.Fprintf(w, "%d\t%.6f\t%.3e\t%d\t%v\n", threads, cost, ise1, len(opt.IterationsLog()), elapsed)
	}
	return w.Flush()
}

func runReplay(cmd *cobra.Command, args []string) error {
	st := store.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	times, states, err := st.LoadTrajectory(args[0])
	if err != nil {
		return err
	}
	if len(states) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s (scenario %s)\n", meta.ID, meta.Scenario)
	fmt.Printf("cost=%.6f ise1=%.3e samples=%d\n\n", meta.Cost, meta.ISE1, len(states))

	n := len(states[0])
	if n > 4 {
		n = 4
	}
	for i := 0; i < n; i++ {
		data := make([]float64, len(states))
		for k := range states {
			if i < len(states[k]) {
				data[k] = states[k][i]
			}
		}
		fmt.Println(asciigraph.Plot(data, asciigraph.Height(8), asciigraph.Width(70), asciigraph.Caption(fmt.Sprintf("x%d", i))))
		fmt.Println()
	}
	_ = times
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	sc, err := loadScenario(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	opt := buildOptimizer(sc, cfg)

	updates := make(chan livetui.IterationMsg, 64)
	done := make(chan livetui.DoneMsg, 1)

	go func() {
		solveErr := solveWithHook(opt, sc, func(e optimizer.IterationLogEntry) { updates <- livetui.IterationMsg(e) })
		close(updates)
		done <- livetui.DoneMsg{Err: solveErr}
		close(done)
	}()

	m := livetui.New(sc.Name, updates, done)
	p := tea.NewProgram(m)
	_, err = p.Run()
	return err
}

// solveWithHook runs Solve and reports every logged iteration to hook as
// soon as the log grows, since Optimizer itself has no notion of a
// streaming subscriber.
func solveWithHook(opt *optimizer.Optimizer, sc scenario, hook func(optimizer.IterationLogEntry)) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- opt.Solve(sc.InitTime, sc.InitState, sc.FinalTime, sc.Partitions, sc.Plant.Schedule, nil)
	}()

	seen := 0
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case err := <-errCh:
			for _, e := range opt.IterationsLog()[seen:] {
				hook(e)
			}
			return err
		case <-ticker.C:
			log := opt.IterationsLog()
			for _, e := range log[seen:] {
				hook(e)
			}
			seen = len(log)
		}
	}
}
