package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/swaggo/swag"

	"github.com/custodia-labs/marketlink/internal/core/domain"
	"github.com/custodia-labs/marketlink/internal/core/ports/driving"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// ReadyResponse reports each dependency probed by /ready
// @Description Readiness with per-dependency status
type ReadyResponse struct {
	Status string            `json:"status" example:"ready"`
	Checks map[string]string `json:"checks"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// ProvisionRequest is the body of a static provisioning call
// @Description Secrets to store for a marketplace profile
type ProvisionRequest struct {
	Secrets   map[string]string `json:"secrets"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty" example:"2026-01-15T11:00:00Z"`
}

// AuthorizeRequest is the body of an authorization start call
// @Description Optional overrides for an authorization flow
type AuthorizeRequest struct {
	ProfileName string   `json:"profile_name,omitempty" example:"default"`
	RedirectURI string   `json:"redirect_uri,omitempty" example:"https://app.example.com/api/v1/oauth/callback"`
	Scopes      []string `json:"scopes,omitempty"`
	ShopDomain  string   `json:"shop_domain,omitempty" example:"acme.myshopify.com"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings the credential store and coordination backends
// @Tags         Health
// @Produce      json
// @Success      200  {object}  ReadyResponse
// @Failure      503  {object}  ReadyResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	resp := ReadyResponse{Status: "ready", Checks: make(map[string]string, len(s.checks))}
	status := http.StatusOK

	for _, check := range s.checks {
		if err := check.Pinger.Ping(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", "check", check.Name, "error", err)
			resp.Checks[check.Name] = "unavailable"
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[check.Name] = "ok"
	}

	writeJSON(w, status, resp)
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

// handleSwaggerDoc serves the registered OpenAPI document.
func (s *Server) handleSwaggerDoc(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		writeError(w, http.StatusNotFound, "api documentation not registered")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

// Marketplace endpoints

// handleMarketplaceStatus godoc
// @Summary      Marketplace health
// @Description  Provider configuration and credential health for every supported marketplace
// @Tags         Marketplaces
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   driving.MarketplaceStatus
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      503  {object}  ErrorResponse  "Store unavailable"
// @Router       /marketplaces/status [get]
func (s *Server) handleMarketplaceStatus(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.credentialService.Status(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

// Credential endpoints

// handleListCredentials godoc
// @Summary      List credentials
// @Description  Summaries of every stored credential. Secret values are never returned.
// @Tags         Credentials
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   domain.CredentialSummary
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      503  {object}  ErrorResponse  "Store unavailable"
// @Router       /credentials [get]
func (s *Server) handleListCredentials(w http.ResponseWriter, r *http.Request) {
	creds, err := s.credentialService.List(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if creds == nil {
		creds = []*domain.CredentialSummary{}
	}
	writeJSON(w, http.StatusOK, creds)
}

// handleGetCredential godoc
// @Summary      Get credential
// @Description  Summary of one marketplace profile
// @Tags         Credentials
// @Produce      json
// @Security     BearerAuth
// @Param        marketplace  path      string  true  "Marketplace"  Enums(etsy, joom, shopify, ebay)
// @Param        profile      path      string  true  "Profile name"
// @Success      200          {object}  domain.CredentialSummary
// @Failure      400          {object}  ErrorResponse  "Unknown marketplace"
// @Failure      404          {object}  ErrorResponse  "Credential not found"
// @Router       /credentials/{marketplace}/{profile} [get]
func (s *Server) handleGetCredential(w http.ResponseWriter, r *http.Request) {
	marketplace, ok := pathMarketplace(w, r)
	if !ok {
		return
	}

	summary, err := s.credentialService.Get(r.Context(), marketplace, r.PathValue("profile"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleProvisionStatic godoc
// @Summary      Provision static credentials
// @Description  Stores API keys or pre-issued tokens as the active credential. Replaces existing secrets.
// @Tags         Credentials
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        marketplace  path      string            true  "Marketplace"  Enums(etsy, joom, shopify, ebay)
// @Param        profile      path      string            true  "Profile name"
// @Param        request      body      ProvisionRequest  true  "Secrets"
// @Success      200          {object}  domain.CredentialSummary
// @Failure      400          {object}  ErrorResponse  "Invalid input"
// @Failure      403          {object}  ErrorResponse  "Forbidden - admin only"
// @Failure      503          {object}  ErrorResponse  "Store unavailable"
// @Router       /credentials/{marketplace}/{profile} [put]
func (s *Server) handleProvisionStatic(w http.ResponseWriter, r *http.Request) {
	marketplace, ok := pathMarketplace(w, r)
	if !ok {
		return
	}

	var req ProvisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cred, err := s.credentialService.ProvisionStatic(r.Context(), driving.ProvisionStaticRequest{
		Marketplace: marketplace,
		ProfileName: r.PathValue("profile"),
		Secrets:     req.Secrets,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeSummary(w, r, cred)
}

// handleRefreshCredential godoc
// @Summary      Refresh credential
// @Description  Renews the access token now using the stored refresh token
// @Tags         Credentials
// @Produce      json
// @Security     BearerAuth
// @Param        marketplace  path      string  true  "Marketplace"  Enums(etsy, joom, shopify, ebay)
// @Param        profile      path      string  true  "Profile name"
// @Success      200          {object}  domain.CredentialSummary
// @Failure      404          {object}  ErrorResponse  "Credential not found"
// @Failure      409          {object}  ErrorResponse  "Reauthorization required"
// @Failure      503          {object}  ErrorResponse  "Provider or store temporarily unavailable"
// @Router       /credentials/{marketplace}/{profile}/refresh [post]
func (s *Server) handleRefreshCredential(w http.ResponseWriter, r *http.Request) {
	marketplace, ok := pathMarketplace(w, r)
	if !ok {
		return
	}

	cred, err := s.credentialService.Refresh(r.Context(), marketplace, r.PathValue("profile"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeSummary(w, r, cred)
}

// handleDeactivateCredential godoc
// @Summary      Deactivate credential
// @Description  Marks the credential inactive. Secrets are kept until the next provisioning.
// @Tags         Credentials
// @Produce      json
// @Security     BearerAuth
// @Param        marketplace  path      string  true  "Marketplace"  Enums(etsy, joom, shopify, ebay)
// @Param        profile      path      string  true  "Profile name"
// @Success      200          {object}  StatusResponse
// @Failure      404          {object}  ErrorResponse  "Credential not found"
// @Router       /credentials/{marketplace}/{profile}/deactivate [post]
func (s *Server) handleDeactivateCredential(w http.ResponseWriter, r *http.Request) {
	marketplace, ok := pathMarketplace(w, r)
	if !ok {
		return
	}

	if err := s.credentialService.Deactivate(r.Context(), marketplace, r.PathValue("profile")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "deactivated"})
}

// OAuth endpoints

// handleOAuthAuthorize godoc
// @Summary      Start authorization
// @Description  Records a single-use state and returns the provider consent URL
// @Tags         OAuth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        marketplace  path      string            true   "Marketplace"  Enums(etsy, joom, shopify, ebay)
// @Param        request      body      AuthorizeRequest  false  "Overrides"
// @Success      200          {object}  driving.AuthorizationResponse
// @Failure      400          {object}  ErrorResponse  "Invalid input"
// @Failure      500          {object}  ErrorResponse  "Provider not configured"
// @Failure      503          {object}  ErrorResponse  "State ledger unavailable"
// @Router       /oauth/{marketplace}/authorize [post]
func (s *Server) handleOAuthAuthorize(w http.ResponseWriter, r *http.Request) {
	marketplace, ok := pathMarketplace(w, r)
	if !ok {
		return
	}

	var req AuthorizeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	resp, err := s.credentialService.BeginAuthorization(r.Context(), driving.BeginAuthorizationRequest{
		Marketplace: marketplace,
		ProfileName: req.ProfileName,
		RedirectURI: req.RedirectURI,
		Scopes:      req.Scopes,
		ShopDomain:  req.ShopDomain,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleOAuthCallback godoc
// @Summary      OAuth callback
// @Description  Receives the provider redirect, exchanges the code and stores the credential
// @Tags         OAuth
// @Produce      json
// @Param        code               query     string  false  "Authorization code"
// @Param        state              query     string  true   "State issued by the authorize call"
// @Param        error              query     string  false  "Provider error code"
// @Param        error_description  query     string  false  "Provider error description"
// @Success      200                {object}  domain.CredentialSummary
// @Failure      400                {object}  ErrorResponse  "Invalid or expired state, or code rejected"
// @Failure      503                {object}  ErrorResponse  "Provider or store temporarily unavailable"
// @Router       /oauth/callback [get]
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	var marketplace domain.Marketplace
	if raw := r.PathValue("marketplace"); raw != "" {
		m, err := domain.ParseMarketplace(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		marketplace = m
	}

	q := r.URL.Query()
	cred, err := s.credentialService.CompleteAuthorization(r.Context(), driving.CompleteAuthorizationRequest{
		Marketplace:      marketplace,
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeSummary(w, r, cred)
}

// Helper functions

func pathMarketplace(w http.ResponseWriter, r *http.Request) (domain.Marketplace, bool) {
	m, err := domain.ParseMarketplace(r.PathValue("marketplace"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return m, true
}

// writeSummary responds with the stored summary of cred so secrets never
// reach the response body.
func (s *Server) writeSummary(w http.ResponseWriter, r *http.Request, cred *domain.Credential) {
	summary, err := s.credentialService.Get(r.Context(), cred.Marketplace, cred.ProfileName)
	if err != nil {
		summary = cred.ToSummary(time.Now(), domain.DefaultRefreshSafetyMargin)
	}
	writeJSON(w, http.StatusOK, summary)
}

// writeServiceError maps domain errors to status codes. Provider response
// bodies stay out of the client message.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var oauthErr *driving.OAuthError

	switch {
	case errors.As(err, &oauthErr):
		writeError(w, http.StatusBadRequest, "authorization denied: "+oauthErr.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "credential not found")
	case errors.Is(err, domain.ErrInvalidOrExpiredState):
		writeError(w, http.StatusBadRequest, "invalid or expired authorization state")
	case errors.Is(err, domain.ErrExchangeRejected):
		writeError(w, http.StatusBadRequest, "authorization code rejected by provider")
	case errors.Is(err, domain.ErrReauthorizationRequired):
		writeError(w, http.StatusConflict, "reauthorization required")
	case errors.Is(err, domain.ErrConfiguration):
		s.logger.Error("provider configuration error", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	case errors.Is(err, domain.ErrTransientProvider):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "provider temporarily unavailable")
	case errors.Is(err, domain.ErrStoreUnavailable):
		s.logger.Error("store unavailable", "error", err)
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
