package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/production-agents-for-compliance/claude-chatbot/internal/apperrors"
	"github.com/production-agents-for-compliance/claude-chatbot/internal/compliance"
	"github.com/production-agents-for-compliance/claude-chatbot/internal/employees"
	"github.com/production-agents-for-compliance/claude-chatbot/internal/ingest"
	"github.com/production-agents-for-compliance/claude-chatbot/internal/query"
	"github.com/production-agents-for-compliance/claude-chatbot/internal/rules"
	"github.com/production-agents-for-compliance/claude-chatbot/internal/rulesstore"
)

// Server bundles the constructed capabilities every handler needs. All
// fields are wired once at process startup (per spec §9's note against
// module-level singletons) and passed explicitly, never held in package
// state.
type Server struct {
	Pipeline   *ingest.Pipeline
	Store      *rulesstore.Store
	Evaluator  *compliance.Evaluator
	Directory  *employees.Directory
	Logger     *slog.Logger
	Now        func() time.Time
}

// Routes builds the mux with CORS and rate limiting applied to every route.
func (s *Server) Routes(limiter *RateLimiter) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/policies/ingest", s.handleIngest)
	mux.HandleFunc("/api/compliance/check", s.handleComplianceCheck)
	mux.HandleFunc("/health", s.handleHealth)

	var handler http.Handler = mux
	if limiter != nil {
		handler = limiter.Middleware(handler)
	}
	return CORS(handler)
}

type ingestRequest struct {
	FirmName   string `json:"firm_name"`
	PolicyText string `json:"policy_text"`
}

type ingestedRuleView struct {
	RuleName    string `json:"rule_name"`
	Description string `json:"description"`
	Attempts    int    `json:"attempts"`
	Validated   bool   `json:"validated"`
}

type ingestResponse struct {
	Status          string             `json:"status"`
	FirmName        string             `json:"firm_name"`
	RulesDeployed   int                `json:"rules_deployed"`
	TotalIterations int                `json:"total_iterations"`
	Rules           []ingestedRuleView `json:"rules"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeProblem(w, r, http.StatusMethodNotAllowed, "Method Not Allowed", "METHOD_NOT_ALLOWED", "POST required")
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAppError(w, r, s.Logger, apperrors.InputError("INVALID_REQUEST", "request body must be valid JSON"))
		return
	}

	firmName := strings.TrimSpace(req.FirmName)
	policyText := strings.TrimSpace(req.PolicyText)
	if firmName == "" || policyText == "" {
		writeAppError(w, r, s.Logger, apperrors.InputError("INVALID_REQUEST", "firm_name and policy_text are required and must be non-empty"))
		return
	}

	bundle, err := s.Pipeline.Ingest(r.Context(), firmName, policyText)
	if err != nil {
		writeAppError(w, r, s.Logger, apperrors.Wrap(apperrors.KindGeneration, "INGESTION_FAILED", "policy ingestion failed", err))
		return
	}

	saved, err := s.Store.Save(r.Context(), firmName, bundle.Rules, bundle.TotalIterations)
	if err != nil {
		writeAppError(w, r, s.Logger, apperrors.Wrap(apperrors.KindStore, "STORE_FAILED", "failed to persist rules bundle", err))
		return
	}

	views := make([]ingestedRuleView, 0, len(saved.Rules))
	for _, rule := range saved.Rules {
		views = append(views, ingestedRuleView{
			RuleName:    rule.RuleName,
			Description: rule.Description,
			Attempts:    rule.GenerationAttempt,
			Validated:   rule.Active,
		})
	}

	writeJSON(w, http.StatusOK, ingestResponse{
		Status:          "SUCCESS",
		FirmName:        saved.FirmName,
		RulesDeployed:   len(saved.Rules),
		TotalIterations: saved.TotalIterations,
		Rules:           views,
	})
}

type complianceRequest struct {
	FirmName   string `json:"firm_name"`
	EmployeeID string `json:"employee_id"`
	Query      string `json:"query"`
	TradeDate  string `json:"trade_date,omitempty"`
}

type complianceResponse struct {
	Status       string                  `json:"status"`
	FirmName     string                  `json:"firm_name"`
	EmployeeID   string                  `json:"employee_id"`
	ParsedQuery  query.Parsed            `json:"parsed_query"`
	Compliance   rules.ComplianceVerdict `json:"compliance"`
}

func (s *Server) handleComplianceCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeProblem(w, r, http.StatusMethodNotAllowed, "Method Not Allowed", "METHOD_NOT_ALLOWED", "POST required")
		return
	}

	var req complianceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAppError(w, r, s.Logger, apperrors.InputError("INVALID_REQUEST", "request body must be valid JSON"))
		return
	}

	firmName := strings.TrimSpace(req.FirmName)
	employeeID := strings.TrimSpace(req.EmployeeID)
	queryText := strings.TrimSpace(req.Query)
	if firmName == "" || employeeID == "" || queryText == "" {
		writeAppError(w, r, s.Logger, apperrors.InputError("INVALID_REQUEST", "firm_name, employee_id, and query are required and must be non-empty"))
		return
	}

	employee, found := s.Directory.Lookup(employeeID)
	if !found {
		writeAppError(w, r, s.Logger, apperrors.NotFound("EMPLOYEE_NOT_FOUND", "no employee found for employee_id "+employeeID))
		return
	}

	defaultDate := strings.TrimSpace(req.TradeDate)
	if defaultDate == "" {
		defaultDate = s.now().Format("2006-01-02")
	}

	parsed, err := query.Parse(queryText, defaultDate)
	if err != nil {
		writeAppError(w, r, s.Logger, apperrors.InputError("PARSE_ERROR", err.Error()))
		return
	}

	security := rules.Security{Ticker: parsed.Ticker, RequestedAction: parsed.Action}

	verdict, err := s.Evaluator.Evaluate(r.Context(), firmName, employee, security, parsed.TradeDate)
	if err != nil {
		writeAppError(w, r, s.Logger, apperrors.Wrap(apperrors.KindStore, "EVALUATION_FAILED", "compliance evaluation failed", err))
		return
	}

	writeJSON(w, http.StatusOK, complianceResponse{
		Status:      "SUCCESS",
		FirmName:    firmName,
		EmployeeID:  employeeID,
		ParsedQuery: parsed,
		Compliance:  verdict,
	})
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Timestamp: s.now().UTC().Format(time.RFC3339)})
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
