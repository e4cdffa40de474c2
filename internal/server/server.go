// Package server exposes quantum optimal control as an HTTP and JSON-RPC
// service. Each request describes a driven two-level system; the server
// runs Krotov's method on it as a background job.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/willst/krotov/internal/config"
	"github.com/willst/krotov/internal/dense"
	"github.com/willst/krotov/internal/errors"
	"github.com/willst/krotov/internal/krotov"
	"github.com/willst/krotov/internal/logging"
)

// Logger is the logging interface used by the server.
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// JobRequest defines a state-to-state control problem on a qubit with
// Hamiltonian H(t) = ω/2·σz + ε(t)·σx, optimizing ε(t) to drive |0⟩ to |1⟩.
type JobRequest struct {
	// Omega is the qubit level splitting.
	Omega float64 `json:"omega"`
	// TFinal is the total gate duration.
	TFinal float64 `json:"t_final"`
	// TimeSteps is the number of points on the time grid.
	TimeSteps int `json:"time_steps"`
	// GuessAmplitude scales the Blackman-shaped guess pulse.
	GuessAmplitude float64 `json:"guess_amplitude"`
	// LambdaA is the update step-size parameter; larger means smaller steps.
	LambdaA float64 `json:"lambda_a,omitempty"`
	// IterStop caps the number of iterations.
	IterStop int `json:"iter_stop,omitempty"`
	// TargetInfidelity stops the job once the average infidelity drops
	// below it. Zero disables the check.
	TargetInfidelity float64 `json:"target_infidelity,omitempty"`
}

// JobState tracks one optimization job. All fields are guarded by the
// server's job mutex.
type JobState struct {
	ID          string
	Status      string // "pending", "running", "completed", "failed", "cancelled"
	StartTime   time.Time
	EndTime     *time.Time
	LastUpdated time.Time

	Iteration  int
	Infidelity float64
	Result     *krotov.Result
	Err        error
	CancelFunc context.CancelFunc
}

// Server manages optimization jobs and serves the HTTP and JSON-RPC API.
type Server struct {
	cfg    *config.Config
	logger Logger

	jobs   map[string]*JobState
	jobsMu sync.RWMutex
}

// NewServer creates a server with the given config and logger.
func NewServer(cfg *config.Config, logger Logger) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
		jobs:   make(map[string]*JobState),
	}
}

// RegisterRoutes mounts the REST and JSON-RPC endpoints on the router.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/optimize", s.handleOptimize)
		r.Get("/status/{id}", s.handleStatus)
		r.Delete("/optimization/{id}", s.handleCancel)
	})

	r.Post("/rpc", s.handleJSONRPC)
}

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
	if request.JSONRPC != "2.0" {
		s.respondWithError(w, -32600, "Invalid Request", nil)
		return
	}

	var result interface{}
	var err error
	switch request.Method {
	case "optimization.start":
		result, err = s.startJob(request.Params)
	case "optimization.status":
		result, err = s.jobStatus(request.Params)
	case "optimization.cancel":
		err = s.cancelJob(request.Params)
	default:
		s.respondWithError(w, -32601, "Method not found", request.ID)
		return
	}
	if err != nil {
		s.respondWithError(w, -32000, "Server error", request.ID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	})
}

// startJob handles the optimization.start JSON-RPC method.
func (s *Server) startJob(params []interface{}) (interface{}, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("missing required parameters")
	}
	paramMap, ok := params[0].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid parameter format, expected object")
	}

	data, err := json.Marshal(paramMap)
	if err != nil {
		return nil, err
	}
	var req JobRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("invalid job parameters: %v", err)
	}
	if err := s.applyDefaults(&req); err != nil {
		return nil, err
	}

	s.jobsMu.RLock()
	jobCount := len(s.jobs)
	s.jobsMu.RUnlock()
	if s.cfg.Optimization.MaxJobs > 0 && jobCount >= s.cfg.Optimization.MaxJobs {
		return nil, fmt.Errorf("job limit reached")
	}

	id := fmt.Sprintf("opt_%d", time.Now().UnixNano())
	ctx, cancel := context.WithCancel(context.Background())
	state := &JobState{
		ID:          id,
		Status:      "pending",
		StartTime:   time.Now(),
		LastUpdated: time.Now(),
		Infidelity:  math.NaN(),
		CancelFunc:  cancel,
	}

	s.jobsMu.Lock()
	s.jobs[id] = state
	s.jobsMu.Unlock()

	jobsStarted.Inc()
	go s.runJob(ctx, state, req)

	return map[string]interface{}{
		"optimization_id": id,
		"status":          "pending",
	}, nil
}

func (s *Server) applyDefaults(req *JobRequest) error {
	if req.TFinal <= 0 {
		return fmt.Errorf("t_final must be positive")
	}
	if req.TimeSteps < 2 {
		return fmt.Errorf("time_steps must be at least 2")
	}
	if req.GuessAmplitude == 0 {
		req.GuessAmplitude = 1.0
	}
	if req.LambdaA == 0 {
		req.LambdaA = s.cfg.Optimization.DefaultLambdaA
	}
	if req.LambdaA <= 0 {
		return fmt.Errorf("lambda_a must be positive")
	}
	if req.IterStop == 0 {
		req.IterStop = s.cfg.Optimization.IterStop
	}
	if req.IterStop < 1 {
		return fmt.Errorf("iter_stop must be at least 1")
	}
	return nil
}

// buildProblem assembles the Krotov configuration for a qubit flip job.
func (s *Server) buildProblem(req JobRequest, progress krotov.InfoHook) krotov.Config {
	tlist := krotov.UniformTimeGrid(0, req.TFinal, req.TimeSteps)

	guess := krotov.Blackman(0, req.TFinal)
	eps := krotov.NewFuncControl(func(t float64) float64 {
		return req.GuessAmplitude * guess(t)
	})

	tRise := req.TFinal * 0.1
	updateShape := krotov.FlatTop(0, req.TFinal, tRise, tRise)

	pmap := krotov.SerialMap
	if s.cfg.Optimization.ParallelObjectives {
		pmap = krotov.ConcurrentMap
	}

	var check krotov.ConvergenceCheck
	if req.TargetInfidelity > 0 {
		check = krotov.ValueBelow(req.TargetInfidelity, krotov.AverageInfidelity, "average infidelity")
	}

	return krotov.Config{
		Objectives: []*krotov.Objective{
			{
				Generator: krotov.Generator{
					{Op: scaledPauliZ(req.Omega / 2)},
					{Op: dense.PauliX(), Control: eps},
				},
				InitialState: dense.BasisState(2, 0),
				Target:       dense.BasisState(2, 1),
			},
		},
		PulseOptions: map[krotov.Control]krotov.PulseOptions{
			eps: {LambdaA: req.LambdaA, Shape: updateShape},
		},
		Tlist:            tlist,
		Propagator:       dense.ExpmPropagator{},
		ChiConstructor:   krotov.ChiSS,
		IterStop:         req.IterStop,
		CheckConvergence: check,
		InfoHook:         progress,
		ParallelMap:      pmap,
	}
}

func scaledPauliZ(coeff float64) krotov.Operator {
	return dense.NewMatrix(2, []complex128{complex(coeff, 0), 0, 0, complex(-coeff, 0)})
}

// runJob executes one optimization in a goroutine and records its outcome.
func (s *Server) runJob(ctx context.Context, state *JobState, req JobRequest) {
	s.setStatus(state, "running")
	jobsRunning.Inc()
	defer jobsRunning.Dec()

	progress := func(d *krotov.IterationData) (interface{}, error) {
		infid := averageInfidelity(d.TauVals)
		iterationSeconds.Observe(d.StopTime.Sub(d.StartTime).Seconds())

		s.jobsMu.Lock()
		state.Iteration = d.Iteration
		state.Infidelity = infid
		state.LastUpdated = time.Now()
		s.jobsMu.Unlock()

		return infid, nil
	}

	cfg := s.buildProblem(req, progress)
	cfg.Logger = logging.NewZapLogger(s.logger.WithFields(map[string]interface{}{
		"optimization_id": state.ID,
	}))
	result, err := krotov.Optimize(ctx, cfg)

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	now := time.Now()
	state.EndTime = &now
	state.LastUpdated = now
	if state.Status == "cancelled" {
		jobsFinished.WithLabelValues("cancelled").Inc()
		return
	}
	if err != nil {
		state.Status = "failed"
		state.Err = errors.Wrap(err, "optimization failed").WithComponent("server")
		jobsFinished.WithLabelValues("failed").Inc()
		s.logger.Error("Optimization failed", map[string]interface{}{
			"optimization_id": state.ID,
			"error":           err.Error(),
		})
		return
	}

	state.Status = "completed"
	state.Result = result
	if !math.IsNaN(state.Infidelity) {
		finalInfidelity.Observe(state.Infidelity)
	}
	jobsFinished.WithLabelValues("completed").Inc()
	s.logger.Info("Optimization finished", map[string]interface{}{
		"optimization_id": state.ID,
		"iterations":      result.Iterations(),
		"converged":       result.Converged,
		"message":         result.Message,
	})
}

func (s *Server) setStatus(state *JobState, status string) {
	s.jobsMu.Lock()
	if state.Status == "pending" || state.Status == "running" {
		state.Status = status
		state.LastUpdated = time.Now()
	}
	s.jobsMu.Unlock()
}

func averageInfidelity(tau []complex128) float64 {
	if len(tau) == 0 {
		return math.NaN()
	}
	fid := 0.0
	for _, t := range tau {
		fid += real(t)*real(t) + imag(t)*imag(t)
	}
	return 1 - fid/float64(len(tau))
}

// jobStatus handles the optimization.status JSON-RPC method.
func (s *Server) jobStatus(params []interface{}) (interface{}, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("missing required parameters")
	}
	paramMap, ok := params[0].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid parameter format, expected object")
	}
	id, ok := paramMap["optimization_id"].(string)
	if !ok || id == "" {
		return nil, fmt.Errorf("optimization_id is required")
	}

	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()

	state, exists := s.jobs[id]
	if !exists {
		return nil, fmt.Errorf("optimization not found")
	}

	response := map[string]interface{}{
		"status":      state.Status,
		"iteration":   state.Iteration,
		"start_time":  state.StartTime.Format(time.RFC3339),
		"last_update": state.LastUpdated.Format(time.RFC3339),
	}
	if !math.IsNaN(state.Infidelity) {
		response["infidelity"] = state.Infidelity
	}
	if state.EndTime != nil {
		response["end_time"] = state.EndTime.Format(time.RFC3339)
	}
	if state.Err != nil {
		response["error"] = state.Err.Error()
	}
	if state.Result != nil {
		response["message"] = state.Result.Message
		response["converged"] = state.Result.Converged
		response["iterations"] = state.Result.Iterations()
		if len(state.Result.OptimizedControls) > 0 {
			response["optimized_control"] = state.Result.OptimizedControls[0]
			response["tlist"] = []float64(state.Result.Tlist)
		}
	}
	return response, nil
}

// cancelJob handles the optimization.cancel JSON-RPC method.
func (s *Server) cancelJob(params []interface{}) error {
	if len(params) == 0 {
		return fmt.Errorf("missing required parameters")
	}
	paramMap, ok := params[0].(map[string]interface{})
	if !ok {
		return fmt.Errorf("invalid parameter format, expected object")
	}
	id, ok := paramMap["optimization_id"].(string)
	if !ok || id == "" {
		return fmt.Errorf("optimization_id is required")
	}

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	state, exists := s.jobs[id]
	if !exists {
		return fmt.Errorf("optimization not found")
	}
	switch state.Status {
	case "completed", "failed", "cancelled":
		return fmt.Errorf("cannot cancel optimization with status: %s", state.Status)
	}

	if state.CancelFunc != nil {
		state.CancelFunc()
	}
	state.Status = "cancelled"
	now := time.Now()
	state.EndTime = &now
	state.LastUpdated = now

	s.logger.Info("Optimization cancelled", map[string]interface{}{
		"optimization_id": id,
	})
	return nil
}

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.logger.Error("Request error", map[string]interface{}{
		"status":  code,
		"message": message,
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"id": id,
	})
}

// Close cancels all running jobs.
func (s *Server) Close() error {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	for _, job := range s.jobs {
		if job.CancelFunc != nil {
			job.CancelFunc()
		}
	}
	return nil
}

// handleOptimize handles POST /api/v1/optimize.
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	data, err := json.Marshal(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	var paramMap map[string]interface{}
	if err := json.Unmarshal(data, &paramMap); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	result, err := s.startJob([]interface{}{paramMap})
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(result)
}

// handleStatus handles GET /api/v1/status/{id}.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "Missing optimization ID", http.StatusBadRequest)
		return
	}

	result, err := s.jobStatus([]interface{}{map[string]interface{}{
		"optimization_id": id,
	}})
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(result)
}

// handleCancel handles DELETE /api/v1/optimization/{id}.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "Missing optimization ID", http.StatusBadRequest)
		return
	}

	err := s.cancelJob([]interface{}{map[string]interface{}{
		"optimization_id": id,
	}})
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "cancellation requested"})
}
