package settings

import "errors"

var errBadLearningRate = errors.New("settings: max_learning_rate is below min_learning_rate")
var errRiccatiSolverRequired = errors.New("settings: use_riccati_solver=false is not supported")
var errNegativeThreadPriority = errors.New("settings: thread_priority must be non-negative")
