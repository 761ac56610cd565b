package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/binhusmachado/creditrepair-pro/analyzer"
	"github.com/binhusmachado/creditrepair-pro/auth"
	"github.com/binhusmachado/creditrepair-pro/billing"
	"github.com/binhusmachado/creditrepair-pro/client"
	"github.com/binhusmachado/creditrepair-pro/dispute"
	"github.com/binhusmachado/creditrepair-pro/letter"
	"github.com/binhusmachado/creditrepair-pro/report"
)

type authService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.User, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	VerifyToken(tokenString string) (auth.Claims, error)
}

type clientService interface {
	Create(ctx context.Context, params client.CreateParams) (client.Client, error)
	GetByID(ctx context.Context, id string) (client.Client, error)
	List(ctx context.Context, filters client.Filters) (client.ListResult, error)
}

type reportService interface {
	Ingest(ctx context.Context, params report.IngestParams) (report.IngestResult, error)
	ListReports(ctx context.Context, clientID string) ([]report.CreditReport, error)
}

type analyzerService interface {
	Analyze(ctx context.Context, reportID string) ([]analyzer.Finding, error)
	ListUnresolved(ctx context.Context, clientID string) ([]analyzer.Finding, error)
}

type disputeService interface {
	Run(ctx context.Context, clientID string) (dispute.RunResult, error)
	MarkSent(ctx context.Context, roundID string) (dispute.Round, error)
	MarkAwaitingResponse(ctx context.Context, roundID string) (dispute.Round, error)
	RecordOutcome(ctx context.Context, roundID string, outcomes map[string]dispute.Outcome) (dispute.Round, error)
	ListRounds(ctx context.Context, clientID string, bureau report.Bureau) ([]dispute.Round, error)
	GetRound(ctx context.Context, roundID string) (dispute.Round, error)
}

type letterService interface {
	GenerateForRound(ctx context.Context, round dispute.Round) ([]letter.Letter, error)
	ListByRound(ctx context.Context, roundID string) ([]letter.Letter, error)
	MarkSent(ctx context.Context, letterID string) (letter.Letter, error)
}

type billingService interface {
	HandleWebhook(ctx context.Context, req billing.WebhookRequest) error
}

// Server wires HTTP routes to the domain services.
type Server struct {
	authService     authService
	clientService   clientService
	reportService   reportService
	analyzerService analyzerService
	disputeService  disputeService
	letterService   letterService
	billingService  billingService
	validate        *validator.Validate
}

func NewServer(
	authSvc authService,
	clientSvc clientService,
	reportSvc reportService,
	analyzerSvc analyzerService,
	disputeSvc disputeService,
	letterSvc letterService,
	billingSvc billingService,
) *Server {
	return &Server{
		authService:     authSvc,
		clientService:   clientSvc,
		reportService:   reportSvc,
		analyzerService: analyzerSvc,
		disputeService:  disputeSvc,
		letterService:   letterSvc,
		billingService:  billingSvc,
		validate:        validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/auth/register", s.handleRegister)
	mux.HandleFunc("/api/auth/login", s.handleLogin)
	mux.HandleFunc("/api/clients", s.requireStaff(s.handleClients))
	mux.HandleFunc("/api/clients/", s.requireClientAccess(s.handleClientSubresource))
	mux.HandleFunc("/api/reports/", s.requireStaff(s.handleReportSubresource))
	mux.HandleFunc("/api/rounds/", s.requireStaff(s.handleRoundSubresource))
	mux.HandleFunc("/api/letters/", s.requireStaff(s.handleLetterSend))
	mux.HandleFunc("/api/webhooks/billing", s.handleBillingWebhook)
	return mux
}

type contextKey string

const ctxClaims contextKey = "claims"

func callerClaims(r *http.Request) auth.Claims {
	claims, _ := r.Context().Value(ctxClaims).(auth.Claims)
	return claims
}

func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (auth.Claims, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return auth.Claims{}, false
	}
	claims, err := s.authService.VerifyToken(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return auth.Claims{}, false
	}
	return claims, true
}

// requireStaff authenticates the bearer token and rejects callers whose
// role cannot manage client files.
func (s *Server) requireStaff(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := s.authenticate(w, r)
		if !ok {
			return
		}
		if !auth.CanManageClients(claims.Role) {
			writeError(w, http.StatusForbidden, "insufficient role")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ctxClaims, claims)))
	}
}

// requireClientAccess gates per-client routes. Staff pass through; a portal
// user may read their own client file but never mutate it.
func (s *Server) requireClientAccess(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := s.authenticate(w, r)
		if !ok {
			return
		}
		if !auth.CanManageClients(claims.Role) {
			clientID := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/api/clients/"), "/", 2)[0]
			if r.Method != http.MethodGet || !claims.CanViewClient(clientID) {
				writeError(w, http.StatusForbidden, "insufficient role")
				return
			}
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ctxClaims, claims)))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"full_name" validate:"required"`
	Role     string `json:"role" validate:"omitempty,oneof=admin staff client"`
	ClientID string `json:"client_id" validate:"omitempty,uuid4"`
}

type userResponse struct {
	ID       string  `json:"id"`
	Email    string  `json:"email"`
	FullName string  `json:"fullName"`
	Role     string  `json:"role"`
	ClientID *string `json:"clientId,omitempty"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req registerRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	params := auth.RegisterRequest{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Role:     auth.Role(req.Role),
	}
	if req.ClientID != "" {
		if req.Role != "" && req.Role != string(auth.RoleClient) {
			writeError(w, http.StatusBadRequest, "client_id is only valid for client accounts")
			return
		}
		params.ClientID = &req.ClientID
	}
	user, err := s.authService.Register(r.Context(), params)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrDuplicateEmail):
			writeError(w, http.StatusConflict, "email already registered")
		case errors.Is(err, auth.ErrWeakPassword):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.internalError(w, r, err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, userResponse{
		ID:       user.ID,
		Email:    user.Email,
		FullName: user.FullName,
		Role:     string(user.Role),
		ClientID: user.ClientID,
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req loginRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	result, err := s.authService.Login(r.Context(), auth.LoginRequest{Email: req.Email, Password: req.Password})
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token": result.Token,
		"user": userResponse{
			ID:       result.User.ID,
			Email:    result.User.Email,
			FullName: result.User.FullName,
			Role:     string(result.User.Role),
			ClientID: result.User.ClientID,
		},
	})
}

type createClientRequest struct {
	FullName    string  `json:"full_name" validate:"required"`
	Email       string  `json:"email" validate:"required,email"`
	Phone       *string `json:"phone"`
	Address     string  `json:"address" validate:"required"`
	City        string  `json:"city" validate:"required"`
	State       string  `json:"state" validate:"required,len=2"`
	ZipCode     string  `json:"zip_code" validate:"required"`
	SSNLastFour string  `json:"ssn_last_four" validate:"required,len=4,numeric"`
	DateOfBirth string  `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
}

type clientResponse struct {
	ID        string `json:"id"`
	FullName  string `json:"fullName"`
	Email     string `json:"email"`
	City      string `json:"city"`
	State     string `json:"state"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
}

func (s *Server) handleClients(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createClient(w, r)
	case http.MethodGet:
		s.listClients(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) createClient(w http.ResponseWriter, r *http.Request) {
	var req createClientRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	params := client.CreateParams{
		OwnerUserID: callerClaims(r).UserID,
		FullName:    req.FullName,
		Email:       req.Email,
		Phone:       req.Phone,
		Address:     req.Address,
		City:        req.City,
		State:       req.State,
		ZipCode:     req.ZipCode,
		SSNLastFour: req.SSNLastFour,
	}
	if req.DateOfBirth != "" {
		dob, err := time.Parse("2006-01-02", req.DateOfBirth)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date_of_birth")
			return
		}
		params.DateOfBirth = &dob
	}
	created, err := s.clientService.Create(r.Context(), params)
	if err != nil {
		if errors.Is(err, client.ErrDuplicateEmail) {
			writeError(w, http.StatusConflict, "client email already exists")
			return
		}
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toClientResponse(created))
}

func (s *Server) listClients(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := client.Filters{
		Search:   q.Get("search"),
		Status:   q.Get("status"),
		Page:     1,
		PageSize: 50,
	}
	result, err := s.clientService.List(r.Context(), filters)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	out := make([]clientResponse, 0, len(result.Items))
	for _, c := range result.Items {
		out = append(out, toClientResponse(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"clients": out, "total": result.Total})
}

// handleClientSubresource serves /api/clients/{id} and its nested routes:
// reports, findings, rounds, strategy.
func (s *Server) handleClientSubresource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/clients/")
	parts := strings.SplitN(rest, "/", 2)
	clientID := parts[0]
	if clientID == "" {
		writeError(w, http.StatusBadRequest, "missing client id")
		return
	}
	if len(parts) == 1 {
		s.getClient(w, r, clientID)
		return
	}
	switch parts[1] {
	case "reports":
		s.handleClientReports(w, r, clientID)
	case "findings":
		s.listFindings(w, r, clientID)
	case "strategy":
		s.runStrategy(w, r, clientID)
	case "rounds":
		s.listRounds(w, r, clientID)
	default:
		writeError(w, http.StatusNotFound, "unknown resource")
	}
}

func (s *Server) getClient(w http.ResponseWriter, r *http.Request, clientID string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	c, err := s.clientService.GetByID(r.Context(), clientID)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			writeError(w, http.StatusNotFound, "client not found")
			return
		}
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toClientResponse(c))
}

type tradelineRequest struct {
	CreditorName     string          `json:"creditor_name" validate:"required"`
	AccountNumber    string          `json:"account_number" validate:"required"`
	AccountType      string          `json:"account_type"`
	Status           string          `json:"status" validate:"required,oneof=open closed collection charge_off settled"`
	Balance          decimal.Decimal `json:"balance"`
	CreditLimit      decimal.Decimal `json:"credit_limit"`
	PastDue          decimal.Decimal `json:"past_due"`
	PaymentHistory   []string        `json:"payment_history"`
	Late30Count      int             `json:"late_30_count"`
	Late60Count      int             `json:"late_60_count"`
	Late90Count      int             `json:"late_90_count"`
	DateOpened       *time.Time      `json:"date_opened"`
	DateClosed       *time.Time      `json:"date_closed"`
	DateLastActivity *time.Time      `json:"date_last_activity"`
	DateReported     time.Time       `json:"date_reported" validate:"required"`
	IsCollection     bool            `json:"is_collection"`
	IsChargeOff      bool            `json:"is_charge_off"`
	IsMedical        bool            `json:"is_medical"`
	IsAuthorizedUser bool            `json:"is_authorized_user"`
}

type inquiryRequest struct {
	SubscriberName string    `json:"subscriber_name" validate:"required"`
	InquiryDate    time.Time `json:"inquiry_date" validate:"required"`
	Purpose        string    `json:"purpose"`
}

type ingestReportRequest struct {
	Bureau     string             `json:"bureau" validate:"required,oneof=equifax experian transunion"`
	Source     string             `json:"source" validate:"required"`
	ReportDate time.Time          `json:"report_date" validate:"required"`
	Tradelines []tradelineRequest `json:"tradelines" validate:"dive"`
	Inquiries  []inquiryRequest   `json:"inquiries" validate:"dive"`
}

func (s *Server) handleClientReports(w http.ResponseWriter, r *http.Request, clientID string) {
	switch r.Method {
	case http.MethodPost:
		var req ingestReportRequest
		if !s.decodeAndValidate(w, r, &req) {
			return
		}
		params := report.IngestParams{
			ClientID:   clientID,
			Bureau:     report.Bureau(req.Bureau),
			Source:     req.Source,
			ReportDate: req.ReportDate,
		}
		for _, tl := range req.Tradelines {
			params.Tradelines = append(params.Tradelines, report.TradelineAccount{
				ClientID:         clientID,
				Bureau:           report.Bureau(req.Bureau),
				CreditorName:     tl.CreditorName,
				AccountNumber:    tl.AccountNumber,
				AccountType:      tl.AccountType,
				Status:           report.AccountStatus(tl.Status),
				Balance:          tl.Balance,
				CreditLimit:      tl.CreditLimit,
				PastDue:          tl.PastDue,
				PaymentHistory:   tl.PaymentHistory,
				Late30Count:      tl.Late30Count,
				Late60Count:      tl.Late60Count,
				Late90Count:      tl.Late90Count,
				DateOpened:       tl.DateOpened,
				DateClosed:       tl.DateClosed,
				DateLastActivity: tl.DateLastActivity,
				DateReported:     tl.DateReported,
				IsCollection:     tl.IsCollection,
				IsChargeOff:      tl.IsChargeOff,
				IsMedical:        tl.IsMedical,
				IsAuthorizedUser: tl.IsAuthorizedUser,
			})
		}
		for _, inq := range req.Inquiries {
			params.Inquiries = append(params.Inquiries, report.Inquiry{
				ClientID:       clientID,
				Bureau:         report.Bureau(req.Bureau),
				SubscriberName: inq.SubscriberName,
				InquiryDate:    inq.InquiryDate,
				Purpose:        inq.Purpose,
			})
		}
		result, err := s.reportService.Ingest(r.Context(), params)
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"report_id":  result.Report.ID,
			"tradelines": len(result.Tradelines),
		})
	case http.MethodGet:
		reports, err := s.reportService.ListReports(r.Context(), clientID)
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleReportSubresource serves POST /api/reports/{id}/analyze.
func (s *Server) handleReportSubresource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/reports/")
	parts := strings.SplitN(rest, "/", 2)
	if parts[0] == "" || len(parts) != 2 || parts[1] != "analyze" {
		writeError(w, http.StatusNotFound, "unknown resource")
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	findings, err := s.analyzerService.Analyze(r.Context(), parts[0])
	if err != nil {
		if errors.Is(err, report.ErrNotFound) {
			writeError(w, http.StatusNotFound, "report not found")
			return
		}
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"findings": toFindingResponses(findings)})
}

type findingResponse struct {
	ID       string `json:"id"`
	Bureau   string `json:"bureau"`
	Category string `json:"category"`
	Severity string `json:"severity"`
	Name     string `json:"name"`
	Impact   int    `json:"impact"`
}

func toFindingResponses(findings []analyzer.Finding) []findingResponse {
	out := make([]findingResponse, 0, len(findings))
	for _, f := range findings {
		info := analyzer.Categories[f.Category]
		out = append(out, findingResponse{
			ID:       f.ID,
			Bureau:   string(f.Bureau),
			Category: string(f.Category),
			Severity: string(f.Severity),
			Name:     info.Name,
			Impact:   info.EstimatedImpact,
		})
	}
	return out
}

func (s *Server) listFindings(w http.ResponseWriter, r *http.Request, clientID string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	findings, err := s.analyzerService.ListUnresolved(r.Context(), clientID)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"findings": toFindingResponses(findings)})
}

func (s *Server) runStrategy(w http.ResponseWriter, r *http.Request, clientID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	result, err := s.disputeService.Run(r.Context(), clientID)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	rounds := make([]roundResponse, 0, len(result.Rounds))
	for _, rd := range result.Rounds {
		rounds = append(rounds, toRoundResponse(rd))
	}
	writeJSON(w, http.StatusOK, map[string]any{"rounds": rounds, "deferred": result.Deferred})
}

func (s *Server) listRounds(w http.ResponseWriter, r *http.Request, clientID string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	bureau := report.Bureau(r.URL.Query().Get("bureau"))
	if bureau != "" && !report.ValidBureau(bureau) {
		writeError(w, http.StatusBadRequest, "invalid bureau")
		return
	}
	rounds, err := s.disputeService.ListRounds(r.Context(), clientID, bureau)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	out := make([]roundResponse, 0, len(rounds))
	for _, rd := range rounds {
		out = append(out, toRoundResponse(rd))
	}
	writeJSON(w, http.StatusOK, map[string]any{"rounds": out})
}

type itemResponse struct {
	ID         string  `json:"id"`
	FindingID  string  `json:"findingId"`
	Category   string  `json:"category"`
	Severity   string  `json:"severity"`
	Basis      string  `json:"basis"`
	Rank       int     `json:"rank"`
	TemplateID string  `json:"templateId"`
	Outcome    *string `json:"outcome,omitempty"`
}

type roundResponse struct {
	ID             string         `json:"id"`
	ClientID       string         `json:"clientId"`
	Bureau         string         `json:"bureau"`
	Number         int            `json:"number"`
	Status         string         `json:"status"`
	EscalationTier bool           `json:"escalationTier"`
	RespondBy      *string        `json:"respondBy,omitempty"`
	Items          []itemResponse `json:"items"`
}

func toRoundResponse(rd dispute.Round) roundResponse {
	resp := roundResponse{
		ID:             rd.ID,
		ClientID:       rd.ClientID,
		Bureau:         string(rd.Bureau),
		Number:         rd.Number,
		Status:         string(rd.Status),
		EscalationTier: rd.EscalationTier,
		Items:          make([]itemResponse, 0, len(rd.Items)),
	}
	if rd.RespondBy != nil {
		v := rd.RespondBy.Format(time.RFC3339)
		resp.RespondBy = &v
	}
	for _, item := range rd.Items {
		ir := itemResponse{
			ID:         item.ID,
			FindingID:  item.FindingID,
			Category:   string(item.Category),
			Severity:   string(item.Severity),
			Basis:      item.Basis,
			Rank:       item.Rank,
			TemplateID: string(item.TemplateID),
		}
		if item.Outcome != nil {
			v := string(*item.Outcome)
			ir.Outcome = &v
		}
		resp.Items = append(resp.Items, ir)
	}
	return resp
}

type outcomeRequest struct {
	Outcomes map[string]string `json:"outcomes" validate:"required,min=1,dive,oneof=deleted updated verified no_response"`
}

// handleRoundSubresource serves POST /api/rounds/{id}/{send|confirm|outcome|letters}
// and GET /api/rounds/{id}/letters.
func (s *Server) handleRoundSubresource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/rounds/")
	parts := strings.SplitN(rest, "/", 2)
	roundID := parts[0]
	if roundID == "" || len(parts) != 2 {
		writeError(w, http.StatusBadRequest, "missing round action")
		return
	}

	switch parts[1] {
	case "send":
		s.roundTransition(w, r, func(ctx context.Context) (dispute.Round, error) {
			return s.disputeService.MarkSent(ctx, roundID)
		})
	case "confirm":
		s.roundTransition(w, r, func(ctx context.Context) (dispute.Round, error) {
			return s.disputeService.MarkAwaitingResponse(ctx, roundID)
		})
	case "outcome":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req outcomeRequest
		if !s.decodeAndValidate(w, r, &req) {
			return
		}
		outcomes := make(map[string]dispute.Outcome, len(req.Outcomes))
		for itemID, outcome := range req.Outcomes {
			outcomes[itemID] = dispute.Outcome(outcome)
		}
		s.roundTransition(w, r, func(ctx context.Context) (dispute.Round, error) {
			return s.disputeService.RecordOutcome(ctx, roundID, outcomes)
		})
	case "letters":
		s.handleRoundLetters(w, r, roundID)
	default:
		writeError(w, http.StatusNotFound, "unknown action")
	}
}

func (s *Server) roundTransition(w http.ResponseWriter, r *http.Request, apply func(context.Context) (dispute.Round, error)) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	round, err := apply(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, dispute.ErrRoundNotFound):
			writeError(w, http.StatusNotFound, "round not found")
		case errors.Is(err, dispute.ErrBadTransition):
			writeError(w, http.StatusConflict, "invalid round status transition")
		default:
			s.internalError(w, r, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, toRoundResponse(round))
}

type letterResponse struct {
	ID         string `json:"id"`
	RoundID    string `json:"roundId"`
	Bureau     string `json:"bureau"`
	TemplateID string `json:"templateId"`
	Status     string `json:"status"`
	Body       string `json:"body"`
}

func toLetterResponse(l letter.Letter) letterResponse {
	return letterResponse{
		ID:         l.ID,
		RoundID:    l.RoundID,
		Bureau:     string(l.Bureau),
		TemplateID: string(l.TemplateID),
		Status:     string(l.Status),
		Body:       l.Body,
	}
}

func (s *Server) handleRoundLetters(w http.ResponseWriter, r *http.Request, roundID string) {
	switch r.Method {
	case http.MethodPost:
		round, err := s.disputeService.GetRound(r.Context(), roundID)
		if err != nil {
			if errors.Is(err, dispute.ErrRoundNotFound) {
				writeError(w, http.StatusNotFound, "round not found")
				return
			}
			s.internalError(w, r, err)
			return
		}
		letters, err := s.letterService.GenerateForRound(r.Context(), round)
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		out := make([]letterResponse, 0, len(letters))
		for _, l := range letters {
			out = append(out, toLetterResponse(l))
		}
		writeJSON(w, http.StatusCreated, map[string]any{"letters": out})
	case http.MethodGet:
		letters, err := s.letterService.ListByRound(r.Context(), roundID)
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		out := make([]letterResponse, 0, len(letters))
		for _, l := range letters {
			out = append(out, toLetterResponse(l))
		}
		writeJSON(w, http.StatusOK, map[string]any{"letters": out})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleLetterSend serves POST /api/letters/{id}/send.
func (s *Server) handleLetterSend(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/letters/")
	parts := strings.SplitN(rest, "/", 2)
	if parts[0] == "" || len(parts) != 2 || parts[1] != "send" {
		writeError(w, http.StatusNotFound, "unknown resource")
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sent, err := s.letterService.MarkSent(r.Context(), parts[0])
	if err != nil {
		if errors.Is(err, letter.ErrLetterNotFound) {
			writeError(w, http.StatusNotFound, "letter not found")
			return
		}
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLetterResponse(sent))
}

type billingWebhookRequest struct {
	EventID              string          `json:"event_id" validate:"required"`
	EventType            string          `json:"event_type" validate:"required"`
	UserID               string          `json:"user_id" validate:"required"`
	PlanSlug             string          `json:"plan_slug"`
	StripeSubscriptionID *string         `json:"stripe_subscription_id"`
	CurrentPeriodEnd     *time.Time      `json:"current_period_end"`
	Amount               decimal.Decimal `json:"amount"`
	Currency             string          `json:"currency"`
}

func (s *Server) handleBillingWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req billingWebhookRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	err := s.billingService.HandleWebhook(r.Context(), billing.WebhookRequest{
		EventID:              req.EventID,
		EventType:            req.EventType,
		UserID:               req.UserID,
		PlanSlug:             req.PlanSlug,
		StripeSubscriptionID: req.StripeSubscriptionID,
		CurrentPeriodEnd:     req.CurrentPeriodEnd,
		Amount:               req.Amount,
		Currency:             req.Currency,
	})
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "applied"})
}

func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "malformed json body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

func toClientResponse(c client.Client) clientResponse {
	return clientResponse{
		ID:        c.ID,
		FullName:  c.FullName,
		Email:     c.Email,
		City:      c.City,
		State:     c.State,
		Status:    c.Status,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
