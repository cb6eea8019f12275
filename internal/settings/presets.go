package settings

// Fast returns a preset tuned for quick, loose convergence: fewer
// iterations, a coarser rollout step, and a shallower line search, the way
// config/presets.go's Fast preset trades accuracy for wall-clock time.
func Fast() *Settings {
	s := Default()
	s.MaxNumIterations = 10
	s.MinRelCost = 1e-2
	s.MinLearningRate = 0.1
	s.LineSearchContractionRate = 0.3
	s.RolloutDt = 0.02
	s.UseMakePSD = false
	s.CheckNumericalStability = false
	return s
}

// Accurate returns a preset tuned for tight convergence at the cost of more
// iterations and a finer rollout step.
func Accurate() *Settings {
	s := Default()
	s.MaxNumIterations = 100
	s.MinRelCost = 1e-6
	s.MinAbsConstraint1ISE = 1e-9
	s.MinRelConstraint1ISE = 1e-6
	s.MinLearningRate = 1e-4
	s.LineSearchContractionRate = 0.6
	s.RolloutDt = 0.002
	s.UseMakePSD = true
	s.CheckNumericalStability = true
	return s
}

// Presets lists the named presets by the name the CLI's presets subcommand
// reports.
var Presets = map[string]func() *Settings{
	"default":  Default,
	"fast":     Fast,
	"accurate": Accurate,
}
