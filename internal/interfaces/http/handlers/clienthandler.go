// Package handlers implements the control API endpoints. The control API
// exposes the running client to an external controlling process, typically
// a GUI application that renders the catalog and drives installs.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/typeworld/typeworld-go/internal/application/client"
	"github.com/typeworld/typeworld-go/internal/domain/catalog"
	"github.com/typeworld/typeworld-go/internal/protocol"
	"github.com/typeworld/typeworld-go/internal/shared/logger"
)

type ClientHandler struct {
	client *client.Client
	logger logger.Interface
}

func NewClientHandler(c *client.Client, logger logger.Interface) *ClientHandler {
	return &ClientHandler{
		client: c,
		logger: logger,
	}
}

// Health answers without authentication so a controlling process can
// detect a running daemon.
func (h *ClientHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type statusResponse struct {
	AnonymousAppID  string              `json:"anonymousAppID"`
	AppID           string              `json:"appID"`
	Online          bool                `json:"online"`
	UserLinked      bool                `json:"userLinked"`
	AnonymousUserID string              `json:"anonymousUserID,omitempty"`
	Revoked         bool                `json:"appInstanceIsRevoked"`
	LastServerSync  *time.Time          `json:"lastServerSync,omitempty"`
	PendingCommands map[string][]string `json:"pendingCommands,omitempty"`
	SyncProblems    []string            `json:"syncProblems,omitempty"`
}

func (h *ClientHandler) Status(c *gin.Context) {
	resp := statusResponse{
		AnonymousAppID:  h.client.AnonymousAppID(),
		AppID:           h.client.AppID(),
		Online:          h.client.Online(),
		AnonymousUserID: h.client.User(),
		UserLinked:      h.client.User() != "",
		Revoked:         h.client.AppInstanceIsRevoked(),
		PendingCommands: h.client.PendingCommands(),
		SyncProblems:    h.client.SyncProblems(),
	}
	if sync := h.client.LastServerSync(); !sync.IsZero() {
		resp.LastServerSync = &sync
	}
	SuccessResponse(c, http.StatusOK, "", resp)
}

func (h *ClientHandler) PerformCommands(c *gin.Context) {
	if err := h.client.PerformCommands(c.Request.Context()); err != nil {
		ErrorResponseWithError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "command queue drained", nil)
}

type accountResponse struct {
	AnonymousUserID string `json:"anonymousUserID"`
	Email           string `json:"email,omitempty"`
	Name            string `json:"name,omitempty"`
	Plan            string `json:"plan,omitempty"`
	EmailIsVerified bool   `json:"emailIsVerified"`
}

func (h *ClientHandler) GetAccount(c *gin.Context) {
	SuccessResponse(c, http.StatusOK, "", accountResponse{
		AnonymousUserID: h.client.User(),
		Email:           h.client.UserEmail(),
		Name:            h.client.UserName(),
		Plan:            h.client.AccountStatus(),
		EmailIsVerified: h.client.EmailIsVerified(),
	})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *ClientHandler) LogIn(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.client.LogInUserAccount(c.Request.Context(), req.Email, req.Password); err != nil {
		ErrorResponseWithError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "account linked", nil)
}

type createAccountRequest struct {
	Name            string `json:"name" binding:"required"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required"`
	PasswordConfirm string `json:"passwordConfirm" binding:"required"`
}

func (h *ClientHandler) CreateAccount(c *gin.Context) {
	var req createAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	err := h.client.CreateUserAccount(c.Request.Context(),
		req.Name, req.Email, req.Password, req.PasswordConfirm)
	if err != nil {
		ErrorResponseWithError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "account created and linked", nil)
}

type linkRequest struct {
	AnonymousUserID string `json:"anonymousUserID" binding:"required"`
	SecretKey       string `json:"secretKey" binding:"required"`
}

// Link attaches the instance to an account whose credentials were handed
// over out of band, e.g. by the central website.
func (h *ClientHandler) Link(c *gin.Context) {
	var req linkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.client.LinkUser(c.Request.Context(), req.AnonymousUserID, req.SecretKey); err != nil {
		ErrorResponseWithError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "account linked", nil)
}

func (h *ClientHandler) Unlink(c *gin.Context) {
	if err := h.client.UnlinkUser(c.Request.Context()); err != nil {
		ErrorResponseWithError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "account unlinked", nil)
}

func (h *ClientHandler) DeleteAccount(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.client.DeleteUserAccount(c.Request.Context(), req.Email, req.Password); err != nil {
		ErrorResponseWithError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "account deleted", nil)
}

func (h *ClientHandler) ResendEmailVerification(c *gin.Context) {
	if err := h.client.ResendEmailVerification(c.Request.Context()); err != nil {
		ErrorResponseWithError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "verification email requested", nil)
}

func (h *ClientHandler) ListAppInstances(c *gin.Context) {
	instances, err := h.client.AppInstances(c.Request.Context())
	if err != nil {
		ErrorResponseWithError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", instances)
}

func (h *ClientHandler) RevokeAppInstance(c *gin.Context) {
	if err := h.client.RevokeAppInstance(c.Request.Context(), c.Param("appID")); err != nil {
		ErrorResponseWithError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "app instance revoked", nil)
}

func (h *ClientHandler) ReactivateAppInstance(c *gin.Context) {
	if err := h.client.ReactivateAppInstance(c.Request.Context(), c.Param("appID")); err != nil {
		ErrorResponseWithError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "app instance reactivated", nil)
}

type subscriptionResponse struct {
	UnsecretURL            string `json:"unsecretURL"`
	ShortUnsecretURL       string `json:"shortUnsecretURL"`
	UniqueID               string `json:"uniqueID"`
	Name                   string `json:"name,omitempty"`
	RevealIdentity         bool   `json:"revealIdentity"`
	AcceptedTermsOfService bool   `json:"acceptedTermsOfService"`
}

func (h *ClientHandler) subscriptionDTO(c *gin.Context, sub *client.Subscription) subscriptionResponse {
	return subscriptionResponse{
		UnsecretURL:            sub.UnsecretURL(),
		ShortUnsecretURL:       sub.ShortUnsecretURL(),
		UniqueID:               sub.UniqueID(),
		Name:                   sub.Name(c.Request.Context(), h.client.Locale()),
		RevealIdentity:         sub.RevealIdentity(),
		AcceptedTermsOfService: sub.AcceptedTermsOfService(),
	}
}

func (h *ClientHandler) ListSubscriptions(c *gin.Context) {
	subs, err := h.client.Subscriptions()
	if err != nil {
		ErrorResponseWithError(c, err)
		return
	}
	out := make([]subscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		out = append(out, h.subscriptionDTO(c, sub))
	}
	SuccessResponse(c, http.StatusOK, "", out)
}

type publisherResponse struct {
	CanonicalURL        string                 `json:"canonicalURL"`
	Name                string                 `json:"name"`
	CurrentSubscription string                 `json:"currentSubscription,omitempty"`
	Subscriptions       []subscriptionResponse `json:"subscriptions"`
}

func (h *ClientHandler) ListPublishers(c *gin.Context) {
	publishers, err := h.client.Publishers()
	if err != nil {
		ErrorResponseWithError(c, err)
		return
	}

	locale := h.client.Locale()
	out := make([]publisherResponse, 0, len(publishers))
	for _, pub := range publishers {
		subs, err := pub.Subscriptions()
		if err != nil {
			ErrorResponseWithError(c, err)
			return
		}
		dto := publisherResponse{
			CanonicalURL:  pub.CanonicalURL,
			Name:          pub.Name(c.Request.Context(), locale),
			Subscriptions: make([]subscriptionResponse, 0, len(subs)),
		}
		for _, sub := range subs {
			dto.Subscriptions = append(dto.Subscriptions, h.subscriptionDTO(c, sub))
		}
		if current, err := pub.CurrentSubscription(); err == nil && current != nil {
			dto.CurrentSubscription = current.UnsecretURL()
		}
		out = append(out, dto)
	}
	SuccessResponse(c, http.StatusOK, "", out)
}

type addSubscriptionRequest struct {
	URL                    string `json:"url" binding:"required"`
	AcceptedTermsOfService bool   `json:"acceptedTermsOfService"`
	RevealIdentity         bool   `json:"revealIdentity"`
}

func (h *ClientHandler) AddSubscription(c *gin.Context) {
	var req addSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	sub, err := h.client.AddSubscription(c.Request.Context(), req.URL, client.AddOptions{
		AcceptedTermsOfService: req.AcceptedTermsOfService,
		RevealIdentity:         req.RevealIdentity,
	})
	if err != nil {
		ErrorResponseWithError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "subscription added", h.subscriptionDTO(c, sub))
}

// subscription resolves the subscription addressed by the url query
// parameter, answering the error itself when it cannot.
func (h *ClientHandler) subscription(c *gin.Context) *client.Subscription {
	unsecretURL := c.Query("url")
	if unsecretURL == "" {
		ErrorResponse(c, http.StatusBadRequest, "missing url query parameter")
		return nil
	}
	sub, err := h.client.Subscription(unsecretURL)
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return nil
	}
	if sub == nil {
		ErrorResponse(c, http.StatusNotFound, "no such subscription")
		return nil
	}
	return sub
}

func (h *ClientHandler) GetSubscription(c *gin.Context) {
	sub := h.subscription(c)
	if sub == nil {
		return
	}
	SuccessResponse(c, http.StatusOK, "", h.subscriptionDTO(c, sub))
}

func (h *ClientHandler) DeleteSubscription(c *gin.Context) {
	sub := h.subscription(c)
	if sub == nil {
		return
	}
	if err := sub.Delete(c.Request.Context()); err != nil {
		ErrorResponseWithError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "subscription deleted", nil)
}

func (h *ClientHandler) UpdateSubscription(c *gin.Context) {
	sub := h.subscription(c)
	if sub == nil {
		return
	}
	changed, err := sub.Update(c.Request.Context())
	if err != nil {
		ErrorResponseWithError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", gin.H{"changed": changed})
}

func (h *ClientHandler) UpdateAllSubscriptions(c *gin.Context) {
	if err := h.client.UpdateAllSubscriptions(c.Request.Context()); err != nil {
		ErrorResponseWithError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "subscriptions updated", nil)
}

type revealIdentityRequest struct {
	Reveal bool `json:"reveal"`
}

func (h *ClientHandler) SetRevealIdentity(c *gin.Context) {
	sub := h.subscription(c)
	if sub == nil {
		return
	}
	var req revealIdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := sub.SetRevealIdentity(req.Reveal); err != nil {
		ErrorResponseWithError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", nil)
}

type acceptTermsRequest struct {
	Accepted bool `json:"accepted"`
}

func (h *ClientHandler) SetAcceptedTermsOfService(c *gin.Context) {
	sub := h.subscription(c)
	if sub == nil {
		return
	}
	var req acceptTermsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := sub.SetAcceptedTermsOfService(req.Accepted); err != nil {
		ErrorResponseWithError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", nil)
}

type fontResponse struct {
	FontID           string `json:"fontID"`
	Name             string `json:"name,omitempty"`
	PostScriptName   string `json:"postScriptName"`
	LatestVersion    string `json:"latestVersion,omitempty"`
	InstalledVersion string `json:"installedVersion,omitempty"`
	Protected        bool   `json:"protected"`
}

func (h *ClientHandler) ListFonts(c *gin.Context) {
	sub := h.subscription(c)
	if sub == nil {
		return
	}
	fonts, err := sub.InstallableFonts(c.Request.Context(), c.Query("update") == "true")
	if err != nil {
		ErrorResponseWithError(c, err)
		return
	}

	locale := h.client.Locale()
	out := []fontResponse{}
	fonts.EachFont(func(font *catalog.Font) bool {
		dto := fontResponse{
			FontID:         font.UniqueID,
			Name:           font.Name.Text(locale),
			PostScriptName: font.PostScriptName,
			Protected:      font.Protected,
		}
		if latest := font.LatestVersion(); latest != nil {
			dto.LatestVersion = latest.Number
		}
		if v, ok := sub.InstalledFontVersion(c.Request.Context(), font.UniqueID); ok {
			dto.InstalledVersion = v
		}
		out = append(out, dto)
		return true
	})
	SuccessResponse(c, http.StatusOK, "", out)
}

type fontRequest struct {
	FontID  string `json:"fontID" binding:"required"`
	Version string `json:"version"`
}

type installFontsRequest struct {
	Fonts []fontRequest `json:"fonts" binding:"required,min=1"`
}

func (h *ClientHandler) InstallFonts(c *gin.Context) {
	sub := h.subscription(c)
	if sub == nil {
		return
	}
	var req installFontsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	requests := make([]protocol.FontRequest, 0, len(req.Fonts))
	for _, f := range req.Fonts {
		requests = append(requests, protocol.FontRequest{FontID: f.FontID, Version: f.Version})
	}
	if err := sub.InstallFonts(c.Request.Context(), requests); err != nil {
		ErrorResponseWithError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "fonts installed", nil)
}

type removeFontsRequest struct {
	FontIDs []string `json:"fontIDs" binding:"required,min=1"`
	DryRun  bool     `json:"dryRun"`
}

func (h *ClientHandler) RemoveFonts(c *gin.Context) {
	sub := h.subscription(c)
	if sub == nil {
		return
	}
	var req removeFontsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	err := sub.RemoveFonts(c.Request.Context(), req.FontIDs, client.RemoveOptions{DryRun: req.DryRun})
	if err != nil {
		ErrorResponseWithError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "fonts removed", nil)
}

func (h *ClientHandler) OutdatedFonts(c *gin.Context) {
	outdated, err := h.client.OutdatedFonts(c.Request.Context())
	if err != nil {
		ErrorResponseWithError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", outdated)
}

func (h *ClientHandler) ExpiringFonts(c *gin.Context) {
	expiring, err := h.client.ExpiringFonts(c.Request.Context())
	if err != nil {
		ErrorResponseWithError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", expiring)
}

func (h *ClientHandler) ListInvitations(c *gin.Context) {
	SuccessResponse(c, http.StatusOK, "", gin.H{
		"pending":  h.client.PendingInvitations(),
		"accepted": h.client.AcceptedInvitations(),
		"sent":     h.client.SentInvitations(),
	})
}

type invitationRequest struct {
	URL string `json:"url" binding:"required"`
}

func (h *ClientHandler) AcceptInvitation(c *gin.Context) {
	var req invitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.client.AcceptInvitation(c.Request.Context(), req.URL); err != nil {
		ErrorResponseWithError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "invitation accepted", nil)
}

func (h *ClientHandler) DeclineInvitation(c *gin.Context) {
	var req invitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.client.DeclineInvitation(c.Request.Context(), req.URL); err != nil {
		ErrorResponseWithError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "invitation declined", nil)
}

type inviteUserRequest struct {
	URL   string `json:"url" binding:"required"`
	Email string `json:"email" binding:"required,email"`
}

func (h *ClientHandler) InviteUser(c *gin.Context) {
	var req inviteUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.client.InviteUser(c.Request.Context(), req.URL, req.Email); err != nil {
		ErrorResponseWithError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "invitation sent", nil)
}

func (h *ClientHandler) RevokeInvitation(c *gin.Context) {
	var req inviteUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.client.RevokeInvitation(c.Request.Context(), req.URL, req.Email); err != nil {
		ErrorResponseWithError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "invitation revoked", nil)
}

func (h *ClientHandler) Sync(c *gin.Context) {
	if err := h.client.DownloadSubscriptions(c.Request.Context()); err != nil {
		ErrorResponseWithError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "synchronized with account", nil)
}

func (h *ClientHandler) DownloadSettings(c *gin.Context) {
	if err := h.client.DownloadSettings(c.Request.Context()); err != nil {
		ErrorResponseWithError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", h.client.Settings())
}
