package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/copyleftdev/sqpforge/internal/config"
	"github.com/copyleftdev/sqpforge/internal/logging"
	"github.com/copyleftdev/sqpforge/internal/metrics"
	"github.com/copyleftdev/sqpforge/internal/planning"
	"github.com/copyleftdev/sqpforge/internal/problemio"
	"github.com/copyleftdev/sqpforge/internal/qp"
	"github.com/copyleftdev/sqpforge/internal/qpsolver"
	"github.com/copyleftdev/sqpforge/internal/sqp"
	"github.com/copyleftdev/sqpforge/internal/terms"
	"github.com/copyleftdev/sqpforge/internal/toyenv"
)

// Logger defines the logging interface used by the server
// This allows us to be flexible with our logging implementation
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// PlanState represents the state of one trajectory-optimization job. It
// tracks the progress, status, and results of an SQP solve. The state
// is thread-safe and can be accessed concurrently.
type PlanState struct {
	ID          string
	Status      string // "pending", "running", "completed", "failed", "cancelled"
	StartTime   time.Time
	EndTime     *time.Time
	CancelFunc  context.CancelFunc
	LastUpdated time.Time

	Trajectory [][]float64
	Results    *sqp.Results
	Error      string
}

// Server implements the HTTP and JSON-RPC server for the trajectory
// optimization service. It manages plan jobs and provides endpoints to
// start, monitor, and cancel them.
type Server struct {
	cfg      *config.Config
	logger   Logger
	registry *terms.Registry
	metrics  *metrics.Collectors

	plans   map[string]*PlanState
	plansMu sync.RWMutex
}

// NewServer creates a new server instance with the given config and logger.
// The logger parameter accepts any type that implements the Logger interface.
func NewServer(cfg *config.Config, logger Logger) *Server {
	return &Server{
		cfg:      cfg,
		logger:   logger,
		registry: terms.Global(),
		plans:    make(map[string]*PlanState),
	}
}

// SetMetrics attaches the Prometheus collectors the server records solve
// outcomes and trust-region progress to. Optional: a nil metrics pointer
// (the default) leaves the solve path free of metrics recording.
func (s *Server) SetMetrics(c *metrics.Collectors) { s.metrics = c }

func (s *Server) RegisterRoutes(r chi.Router) {
	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/plan", s.handlePlan)
		r.Get("/status/{id}", s.handleStatus)
		r.Delete("/plan/{id}", s.handleCancel)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// handleJSONRPC handles JSON-RPC 2.0 requests
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request struct {
		JSONRPC string        `json:"jsonrpc"`
		ID      interface{}   `json:"id"`
		Method  string        `json:"method"`
		Params  []interface{} `json:"params,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, -32700, "Parse error", nil)
		return
	}

	// Validate JSON-RPC 2.0 request
	if request.JSONRPC != "2.0" {
		s.respondWithError(w, -32600, "Invalid Request", nil)
		return
	}

	// Route to appropriate handler
	var result interface{}
	var err error

	switch request.Method {
	case "plan.start":
		result, err = s.handlePlanStart(request.Params)
	case "plan.status":
		result, err = s.handlePlanStatus(request.Params)
	case "plan.cancel":
		err = s.handlePlanCancel(request.Params)
	default:
		s.respondWithError(w, -32601, "Method not found", request.ID)
		return
	}

	if err != nil {
		s.respondWithError(w, -32000, "Server error", request.ID)
		return
	}

	// Send successful response
	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// environmentSpec describes a toyenv.Env to build, when the plan
// request needs kinematics or collision access (cartesian, singularity,
// or collision terms).
type environmentSpec struct {
	LinkLengths []float64      `json:"link_lengths"`
	Obstacles   []obstacleSpec `json:"obstacles,omitempty"`
}

type obstacleSpec struct {
	Name   string     `json:"name"`
	Center [2]float64 `json:"center"`
	Radius float64    `json:"radius"`
}

func (e *environmentSpec) build() planning.Environment {
	obstacles := make([]toyenv.Circle, len(e.Obstacles))
	for i, o := range e.Obstacles {
		obstacles[i] = toyenv.Circle{Name: o.Name, Center: o.Center, Radius: o.Radius}
	}
	return toyenv.NewEnv(toyenv.NewArm(e.LinkLengths), obstacles)
}

// planRequest is the wire shape of the plan.start parameters: a problem
// description, an optional environment to resolve kinematics terms
// against, and an optional initial guess trajectory.
type planRequest struct {
	Problem      problemio.ProblemSpec `json:"problem"`
	Environment  *environmentSpec      `json:"environment,omitempty"`
	InitialGuess [][]float64           `json:"initial_guess,omitempty"`
}

// handlePlanStart handles the plan.start JSON-RPC method. It assembles
// the problem description into a qp.Problem, starts the SQP solve in a
// goroutine, and returns immediately with the new job's id.
func (s *Server) handlePlanStart(params []interface{}) (interface{}, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("missing required parameters")
	}

	raw, err := json.Marshal(params[0])
	if err != nil {
		return nil, fmt.Errorf("invalid parameter format: %v", err)
	}
	var req planRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("invalid plan request: %v", err)
	}

	var env planning.Environment
	if req.Environment != nil {
		env = req.Environment.build()
	}

	problem, traj, err := problemio.Build(&req.Problem, env, s.registry)
	if err != nil {
		return nil, fmt.Errorf("building problem: %v", err)
	}
	if s.cfg != nil && s.cfg.Optimization.WorkerCount > 0 {
		problem.SetWorkerCount(s.cfg.Optimization.WorkerCount)
	}
	if len(req.InitialGuess) > 0 {
		if err := applyInitialGuess(problem, traj, req.InitialGuess); err != nil {
			return nil, err
		}
	}

	solverParams := paramsFromConfig(s.cfg)
	if req.Problem.Params != nil {
		solverParams = *req.Problem.Params
	}
	solver, err := sqp.NewSolver(solverParams, qpsolver.NewActiveSetSolver(), s.sqpLogger())
	if err != nil {
		return nil, fmt.Errorf("invalid solver parameters: %v", err)
	}
	if s.metrics != nil {
		solver.AddCallback(s.metrics.Callback())
	}

	id := fmt.Sprintf("plan_%d", time.Now().UnixNano())
	ctx, cancel := context.WithCancel(context.Background())
	state := &PlanState{
		ID:          id,
		Status:      "pending",
		StartTime:   time.Now(),
		CancelFunc:  cancel,
		LastUpdated: time.Now(),
	}

	s.plansMu.Lock()
	s.plans[id] = state
	s.plansMu.Unlock()

	go s.runPlan(id, solver, problem, traj, ctx, state)

	return map[string]interface{}{
		"plan_id": id,
		"status":  "pending",
	}, nil
}

// paramsFromConfig builds the trust-region driver's default parameters
// from the service's Optimization config section, so OPT_* environment
// variables take effect without every plan.start request having to
// repeat them. A per-request Params block still overrides this
// wholesale. Falls back to sqp.DefaultParams for any field left at its
// zero value (including when cfg is nil).
func paramsFromConfig(cfg *config.Config) sqp.Params {
	p := sqp.DefaultParams()
	if cfg == nil {
		return p
	}
	opt := cfg.Optimization
	if opt.InitialMeritErrorCoeff > 0 {
		p.InitialMeritErrorCoeff = opt.InitialMeritErrorCoeff
	}
	if opt.MaxMeritCoeffIncreases > 0 {
		p.MaxMeritCoeffIncreases = opt.MaxMeritCoeffIncreases
	}
	if opt.InitialTrustBoxSize > 0 {
		p.InitialTrustBoxSize = opt.InitialTrustBoxSize
	}
	if opt.MinTrustBoxSize > 0 {
		p.MinTrustBoxSize = opt.MinTrustBoxSize
	}
	if opt.MaxIterations > 0 {
		p.MaxIterations = opt.MaxIterations
	}
	if opt.MaxQPSolverFailures > 0 {
		p.MaxQPSolverFailures = opt.MaxQPSolverFailures
	}
	if opt.MaxTimeSeconds > 0 {
		p.MaxTimeSeconds = opt.MaxTimeSeconds
	}
	return p
}

func applyInitialGuess(problem *qp.Problem, traj *terms.Trajectory, guess [][]float64) error {
	if len(guess) != traj.Steps {
		return fmt.Errorf("initial_guess has %d steps, want %d", len(guess), traj.Steps)
	}
	x := problem.GetVariableValues()
	for step, values := range guess {
		if len(values) != traj.DOF {
			return fmt.Errorf("initial_guess step %d has %d values, want %d", step, len(values), traj.DOF)
		}
		idx := traj.JointIndices(step)
		for i, v := range values {
			x[idx[i]] = v
		}
	}
	problem.SetVariables(x)
	return nil
}

// runPlan drives the SQP solve to completion in a background goroutine
// and records the outcome on state.
func (s *Server) runPlan(id string, solver *sqp.Solver, problem *qp.Problem, traj *terms.Trajectory, ctx context.Context, state *PlanState) {
	s.plansMu.Lock()
	state.Status = "running"
	s.plansMu.Unlock()

	start := time.Now()
	results, err := solver.Solve(ctx, problem)

	s.plansMu.Lock()
	defer s.plansMu.Unlock()

	if err != nil {
		s.logger.Error("plan failed", map[string]interface{}{
			"plan_id": id,
			"error":   err.Error(),
		})
		state.Status = "failed"
		state.Error = err.Error()
	} else {
		state.Results = results
		state.Trajectory = trajectoryValues(results.BestVarVals, traj)
		state.Status = jobStatus(results.Status)
		if results.Status != sqp.NLPConverged {
			state.Error = results.Status.String()
		}
		if s.metrics != nil {
			s.metrics.RecordStatus(results.Status, results.OverallIteration)
			s.metrics.ObserveDuration(time.Since(start).Seconds())
		}
	}

	now := time.Now()
	state.EndTime = &now
	state.LastUpdated = now
}

// jobStatus maps a terminal sqp.Status to the job-lifecycle vocabulary
// the HTTP/RPC surface exposes.
func jobStatus(status sqp.Status) string {
	switch status {
	case sqp.NLPConverged:
		return "completed"
	case sqp.CallbackStopped:
		return "cancelled"
	default:
		return "failed"
	}
}

// trajectoryValues splits the flat NLP iterate back into one joint
// vector per trajectory step, dropping the dt column when present.
func trajectoryValues(x []float64, traj *terms.Trajectory) [][]float64 {
	out := make([][]float64, traj.Steps)
	for s := 0; s < traj.Steps; s++ {
		idx := traj.JointIndices(s)
		step := make([]float64, len(idx))
		for i, j := range idx {
			step[i] = x[j]
		}
		out[s] = step
	}
	return out
}

// handlePlanStatus handles the plan.status JSON-RPC method.
func (s *Server) handlePlanStatus(params []interface{}) (interface{}, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("missing required parameters")
	}

	paramMap, ok := params[0].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid parameter format, expected object")
	}

	planID, ok := paramMap["plan_id"].(string)
	if !ok || planID == "" {
		return nil, fmt.Errorf("plan_id is required")
	}

	s.plansMu.RLock()
	defer s.plansMu.RUnlock()

	state, exists := s.plans[planID]
	if !exists {
		return nil, fmt.Errorf("plan not found")
	}

	response := map[string]interface{}{
		"status":      state.Status,
		"start_time":  state.StartTime.Format(time.RFC3339),
		"last_update": state.LastUpdated.Format(time.RFC3339),
	}
	if state.EndTime != nil {
		response["end_time"] = state.EndTime.Format(time.RFC3339)
	}
	if state.Error != "" {
		response["error"] = state.Error
	}
	if state.Results != nil {
		response["trajectory"] = state.Trajectory
		response["overall_iterations"] = state.Results.OverallIteration
		response["best_exact_merit"] = state.Results.BestExactMerit
		response["best_constraint_violations"] = state.Results.BestConstraintViolations
	}

	return response, nil
}

// handlePlanCancel handles the plan.cancel JSON-RPC method.
func (s *Server) handlePlanCancel(params []interface{}) error {
	if len(params) == 0 {
		return fmt.Errorf("missing required parameters")
	}

	paramMap, ok := params[0].(map[string]interface{})
	if !ok {
		return fmt.Errorf("invalid parameter format, expected object")
	}

	planID, ok := paramMap["plan_id"].(string)
	if !ok || planID == "" {
		return fmt.Errorf("plan_id is required")
	}

	s.plansMu.Lock()
	defer s.plansMu.Unlock()

	state, exists := s.plans[planID]
	if !exists {
		return fmt.Errorf("plan not found")
	}

	switch state.Status {
	case "completed", "failed", "cancelled":
		return fmt.Errorf("cannot cancel plan with status: %s", state.Status)
	}

	if state.CancelFunc != nil {
		state.CancelFunc()
	}

	state.Status = "cancelled"
	now := time.Now()
	state.EndTime = &now
	state.LastUpdated = now

	s.logger.Info("plan cancelled", map[string]interface{}{
		"plan_id": planID,
	})

	return nil
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.logger.Error("Request error", map[string]interface{}{
		"status":  code,
		"message": message,
	})

	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"id": id,
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// sqpLogger returns the concrete *logging.Logger the sqp driver needs
// for its warnings. The server's own logger is typically a
// *logging.Logger under the Logger interface; fall back to a quiet
// default if a caller wired something else in.
func (s *Server) sqpLogger() *logging.Logger {
	if l, ok := s.logger.(*logging.Logger); ok {
		return l
	}
	return logging.New(logging.WarnLevel, os.Stderr)
}

// handlePlan handles the HTTP POST /api/v1/plan endpoint for starting a
// new plan job.
func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var asMap map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&asMap); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	result, err := s.handlePlanStart([]interface{}{asMap})

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(result)
}

// handleStatus handles the HTTP GET /api/v1/status/:id endpoint for
// checking a plan job's status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "id")
	if planID == "" {
		http.Error(w, "Missing plan ID", http.StatusBadRequest)
		return
	}

	result, err := s.handlePlanStatus([]interface{}{map[string]interface{}{
		"plan_id": planID,
	}})

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(result)
}

// handleCancel handles the HTTP DELETE /api/v1/plan/:id endpoint for
// cancelling a plan job.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "id")
	if planID == "" {
		http.Error(w, "Missing plan ID", http.StatusBadRequest)
		return
	}

	err := s.handlePlanCancel([]interface{}{map[string]interface{}{
		"plan_id": planID,
	}})

	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "cancellation requested",
	})
}

// Close cancels every running plan job.
func (s *Server) Close() error {
	s.plansMu.Lock()
	defer s.plansMu.Unlock()

	for _, p := range s.plans {
		if p.CancelFunc != nil {
			p.CancelFunc()
		}
	}
	return nil
}
