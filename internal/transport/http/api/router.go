package apihttp

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"council/internal/graph"
	"council/internal/logger"
	"council/internal/memory"
	"council/internal/store/runlog"

	"github.com/gin-gonic/gin"
)

// Router exposes propagation, reflection and memory queries.
type Router struct {
	Graph  *graph.Graph
	Memory memory.Store
	Runs   *runlog.Store
}

func NewRouter(g *graph.Graph, mem memory.Store, runs *runlog.Store) *Router {
	return &Router{Graph: g, Memory: mem, Runs: runs}
}

// Register mounts the API routes under the given group.
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("/runs", r.handlePropagate)
	group.POST("/reflect", r.handleReflect)
	group.GET("/memory", r.handleMemorySearch)
	if r.Runs != nil {
		group.GET("/runs", r.handleRunHistory)
	}
}

type propagateRequest struct {
	Symbols []string `json:"symbols"`
	Symbol  string   `json:"symbol"`
	Date    string   `json:"date"`
}

type propagateResult struct {
	RunID      string          `json:"run_id,omitempty"`
	Symbol     string          `json:"symbol"`
	Action     string          `json:"action,omitempty"`
	Rationale  string          `json:"rationale,omitempty"`
	Confidence *float64        `json:"confidence,omitempty"`
	State      *graph.RunState `json:"state,omitempty"`
	Error      string          `json:"error,omitempty"`
}

func (r *Router) handlePropagate(c *gin.Context) {
	var req propagateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	symbols := req.Symbols
	if len(symbols) == 0 && strings.TrimSpace(req.Symbol) != "" {
		symbols = []string{req.Symbol}
	}
	if len(symbols) == 0 || strings.TrimSpace(req.Date) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbols and date are required"})
		return
	}

	includeState := parseBool(c.DefaultQuery("include_state", "0"))
	results := r.Graph.PropagateMany(c.Request.Context(), symbols, req.Date)

	out := make([]propagateResult, 0, len(results))
	failed := 0
	for _, res := range results {
		item := propagateResult{Symbol: res.Symbol}
		if res.Err != nil {
			failed++
			item.Error = res.Err.Error()
		} else {
			item.RunID = res.State.RunID
			item.Action = string(res.Decision.Action)
			item.Rationale = res.Decision.Rationale
			item.Confidence = res.Decision.Confidence
			if includeState {
				item.State = res.State
			}
		}
		out = append(out, item)
	}
	logger.Infof("[api] propagate date=%s symbols=%d failed=%d", req.Date, len(symbols), failed)
	status := http.StatusOK
	if failed == len(out) {
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"date": req.Date, "results": out})
}

type reflectRequest struct {
	RunID  string             `json:"run_id"`
	Symbol string             `json:"symbol"`
	Return float64            `json:"return"`
	ByRun  map[string]float64 `json:"by_run"`
}

func (r *Router) handleReflect(c *gin.Context) {
	var req reflectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := r.Graph.ReflectAndRemember(c.Request.Context(), graph.ReflectRequest{
		RunID:  req.RunID,
		Symbol: req.Symbol,
		Return: req.Return,
		ByRun:  req.ByRun,
	})
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, memory.ErrAlreadyReflected):
			status = http.StatusConflict
		case errors.Is(err, memory.ErrNoMatchingRecord):
			status = http.StatusNotFound
		}
		logger.Warnf("[api] reflect failed run=%s symbol=%s err=%v", req.RunID, req.Symbol, err)
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type memoryHit struct {
	RunID     string   `json:"run_id"`
	Symbol    string   `json:"symbol"`
	TradeDate string   `json:"trade_date"`
	Action    string   `json:"action"`
	Rationale string   `json:"rationale,omitempty"`
	Return    *float64 `json:"return,omitempty"`
}

func (r *Router) handleMemorySearch(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}
	k, _ := strconv.Atoi(c.DefaultQuery("k", "5"))
	if k <= 0 || k > 50 {
		k = 5
	}
	records, err := r.Memory.RetrieveSimilar(c.Request.Context(), query, k)
	if err != nil {
		logger.Errorf("[api] memory search failed err=%v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	hits := make([]memoryHit, 0, len(records))
	for _, rec := range records {
		hits = append(hits, memoryHit{
			RunID:     rec.RunID,
			Symbol:    rec.Symbol,
			TradeDate: rec.TradeDate,
			Action:    string(rec.Decision.Action),
			Rationale: rec.Decision.Rationale,
			Return:    rec.OutcomeReturn,
		})
	}
	c.JSON(http.StatusOK, gin.H{"hits": hits})
}

func (r *Router) handleRunHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	records, err := r.Runs.Recent(c.Request.Context(), runlog.Query{
		Symbol: c.Query("symbol"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		logger.Errorf("[api] run history failed err=%v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": records})
}

func parseBool(val string) bool {
	s := strings.TrimSpace(strings.ToLower(val))
	return s == "1" || s == "true"
}
