package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"github.com/agroph/portal/config"
	"github.com/agroph/portal/models"
	"github.com/agroph/portal/utils"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,30}$`)

// AuthController handles registration, login, OAuth and profile endpoints.
type AuthController struct {
	db     *gorm.DB
	states *utils.StateStore
	log    *zap.Logger
}

// NewAuthController creates an AuthController. states backs OAuth CSRF protection.
func NewAuthController(db *gorm.DB, states *utils.StateStore) *AuthController {
	return &AuthController{db: db, states: states, log: utils.Named("auth")}
}

type registerRequest struct {
	Email       string `json:"email" binding:"required,email,max=255"`
	Password    string `json:"password" binding:"required,min=6,max=128"`
	DisplayName string `json:"display_name" binding:"required,max=100"`
	Username    string `json:"username"`
}

// Register creates a local account with role=user and returns a session token.
func (a *AuthController) Register(ctx *gin.Context) {
	var req registerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		bindFailed(ctx, err)
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	displayName := utils.StripTags(req.DisplayName)
	if displayName == "" {
		utils.Error(ctx, http.StatusBadRequest, 40002, "display name cannot be empty")
		return
	}
	var username *string
	if u := strings.TrimSpace(req.Username); u != "" {
		if !usernamePattern.MatchString(u) {
			utils.Error(ctx, http.StatusBadRequest, 40002, "username must be 3-30 letters, digits or underscores")
			return
		}
		username = &u
	}

	db := dbFor(a.db, ctx)
	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		utils.Fail(ctx, err)
		return
	}
	if count > 0 {
		utils.Error(ctx, http.StatusConflict, 40901, "email already registered")
		return
	}
	if username != nil {
		if err := db.Model(&models.User{}).Where("username = ?", *username).Count(&count).Error; err != nil {
			utils.Fail(ctx, err)
			return
		}
		if count > 0 {
			utils.Error(ctx, http.StatusConflict, 40902, "username already taken")
			return
		}
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}

	user := models.User{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		DisplayName:  displayName,
		Role:         models.RoleUser,
		IsActive:     true,
	}
	if err := db.Create(&user).Error; err != nil {
		// a concurrent registration can still win between the check and the insert
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			utils.Error(ctx, http.StatusConflict, 40901, "email or username already registered")
			return
		}
		utils.Fail(ctx, err)
		return
	}

	token, err := utils.GenerateToken(user.ID, user.Role, user.DisplayName, 0)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	a.log.Info("user registered", zap.Uint("user_id", user.ID))
	utils.Created(ctx, gin.H{"token": token, "user": user})
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	Password   string `json:"password" binding:"required"`
}

// Login verifies credentials by email or username and issues a JWT.
func (a *AuthController) Login(ctx *gin.Context) {
	var req loginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		bindFailed(ctx, err)
		return
	}
	identifier := strings.TrimSpace(fallback(req.Identifier, req.Email, req.Username))
	if identifier == "" {
		utils.Error(ctx, http.StatusBadRequest, 40003, "email or username is required")
		return
	}

	db := dbFor(a.db, ctx)
	var user models.User
	query := db.Where("username = ?", identifier)
	if strings.Contains(identifier, "@") {
		query = db.Where("email = ?", strings.ToLower(identifier))
	}
	if err := query.First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid credentials")
			return
		}
		utils.Fail(ctx, err)
		return
	}
	if !user.IsActive || !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid credentials")
		return
	}

	now := time.Now()
	if err := db.Model(&user).UpdateColumn("last_login_at", now).Error; err != nil {
		a.log.Warn("failed to record login time", zap.Uint("user_id", user.ID), zap.Error(err))
	}
	user.LastLoginAt = &now

	token, err := utils.GenerateToken(user.ID, user.Role, user.DisplayName, 0)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"token": token, "user": user})
}

// Verify echoes the claims of a valid token.
func (a *AuthController) Verify(ctx *gin.Context) {
	claims, ok := currentClaims(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}
	utils.Success(ctx, gin.H{
		"valid": true,
		"user": gin.H{
			"id":           claims.UserID,
			"role":         claims.Role,
			"display_name": claims.DisplayName,
		},
		"expires_at": claims.ExpiresAt.Time,
	})
}

// Me returns the current authenticated user's information.
func (a *AuthController) Me(ctx *gin.Context) {
	userID, _ := getUserID(ctx)
	var user models.User
	if err := dbFor(a.db, ctx).First(&user, userID).Error; err != nil {
		failDB(ctx, err, "user not found")
		return
	}
	utils.Success(ctx, user)
}

type profileRequest struct {
	DisplayName *string `json:"display_name"`
	Location    *string `json:"location"`
	Bio         *string `json:"bio"`
	AvatarURL   *string `json:"avatar_url"`
}

// UpdateProfile updates the caller's own profile fields. Omitted fields are left unchanged.
func (a *AuthController) UpdateProfile(ctx *gin.Context) {
	userID, _ := getUserID(ctx)
	var req profileRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		bindFailed(ctx, err)
		return
	}

	updates := map[string]interface{}{}
	if req.DisplayName != nil {
		name := utils.StripTags(*req.DisplayName)
		if name == "" || utf8.RuneCountInString(name) > 100 {
			utils.Error(ctx, http.StatusBadRequest, 40030, "display name must be 1-100 characters")
			return
		}
		updates["display_name"] = name
	}
	if req.Location != nil {
		loc := utils.StripTags(*req.Location)
		if utf8.RuneCountInString(loc) > 100 {
			utils.Error(ctx, http.StatusBadRequest, 40030, "location is too long")
			return
		}
		updates["location"] = loc
	}
	if req.Bio != nil {
		bio := utils.Sanitize(*req.Bio)
		if utf8.RuneCountInString(bio) > 1000 {
			utils.Error(ctx, http.StatusBadRequest, 40030, "bio is too long")
			return
		}
		updates["bio"] = bio
	}
	if req.AvatarURL != nil {
		avatar := strings.TrimSpace(*req.AvatarURL)
		if avatar != "" && !isHTTPURL(avatar) {
			utils.Error(ctx, http.StatusBadRequest, 40030, "avatar url must be http(s)")
			return
		}
		updates["avatar_url"] = avatar
	}

	db := dbFor(a.db, ctx)
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		failDB(ctx, err, "user not found")
		return
	}
	if len(updates) > 0 {
		if err := db.Model(&user).Updates(updates).Error; err != nil {
			utils.Fail(ctx, err)
			return
		}
		if err := db.First(&user, userID).Error; err != nil {
			utils.Fail(ctx, err)
			return
		}
	}
	utils.Success(ctx, user)
}

// ChangePassword replaces the caller's password after checking the current one.
func (a *AuthController) ChangePassword(ctx *gin.Context) {
	userID, _ := getUserID(ctx)
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password" binding:"required,min=6,max=128"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		bindFailed(ctx, err)
		return
	}

	db := dbFor(a.db, ctx)
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		failDB(ctx, err, "user not found")
		return
	}
	// OAuth-only accounts have no password yet and may set one directly
	if user.PasswordHash != "" && !utils.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		utils.Error(ctx, http.StatusUnauthorized, 40109, "current password is incorrect")
		return
	}
	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	if err := db.Model(&user).Update("password_hash", hash).Error; err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"message": "password updated"})
}

// OAuthRedirect generates a provider-specific authorization URL.
func (a *AuthController) OAuthRedirect(ctx *gin.Context) {
	provider := strings.ToLower(ctx.Param("provider"))
	cfg, err := oauthConfig(provider)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40004, err.Error())
		return
	}

	state, err := a.states.Issue(ctx.Request.Context())
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOnline)
	if ctx.Query("redirect") == "1" {
		ctx.Redirect(http.StatusFound, authURL)
		return
	}
	utils.Success(ctx, gin.H{"authorization_url": authURL, "state": state})
}

// OAuthCallback exchanges the authorization code for a user identity and issues a JWT.
func (a *AuthController) OAuthCallback(ctx *gin.Context) {
	provider := strings.ToLower(ctx.Param("provider"))
	code := ctx.Query("code")
	state := ctx.Query("state")
	if code == "" || state == "" {
		utils.Error(ctx, http.StatusBadRequest, 40005, "missing code or state")
		return
	}
	if !a.states.Consume(ctx.Request.Context(), state) {
		utils.Error(ctx, http.StatusBadRequest, 40006, "invalid or expired state")
		return
	}

	cfg, err := oauthConfig(provider)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40004, err.Error())
		return
	}
	reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), 15*time.Second)
	defer cancel()

	token, err := cfg.Exchange(reqCtx, code)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40007, "failed to exchange code")
		return
	}
	info, err := fetchOAuthUser(reqCtx, provider, cfg.Client(reqCtx, token))
	if err != nil {
		utils.Fail(ctx, utils.UpstreamError("failed to fetch provider profile", err))
		return
	}
	if info.Email == "" {
		utils.Error(ctx, http.StatusBadRequest, 40008, "provider did not share an email address")
		return
	}

	user, err := a.findOrCreateOAuthUser(ctx, provider, info)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	if !user.IsActive {
		utils.Error(ctx, http.StatusForbidden, 40302, "account is disabled")
		return
	}

	jwtToken, err := utils.GenerateToken(user.ID, user.Role, user.DisplayName, 0)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"token": jwtToken, "user": user})
}

func oauthConfig(provider string) (*oauth2.Config, error) {
	cfg := config.Get()
	redirect := fmt.Sprintf("%s/api/auth/oauth/%s/callback", strings.TrimRight(cfg.OAuthRedirectBase, "/"), provider)
	switch provider {
	case "github":
		if cfg.GitHubClientID == "" || cfg.GitHubClientSecret == "" {
			return nil, errors.New("github oauth not configured")
		}
		return &oauth2.Config{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  redirect,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		}, nil
	case "google":
		if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
			return nil, errors.New("google oauth not configured")
		}
		return &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  redirect,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     google.Endpoint,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

type oauthUser struct {
	ID          string
	Username    string
	DisplayName string
	Email       string
	AvatarURL   string
}

func fetchOAuthUser(ctx context.Context, provider string, client *http.Client) (*oauthUser, error) {
	switch provider {
	case "github":
		return fetchGitHubUser(ctx, client)
	case "google":
		return fetchGoogleUser(ctx, client)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func (a *AuthController) findOrCreateOAuthUser(ctx *gin.Context, provider string, info *oauthUser) (*models.User, error) {
	db := dbFor(a.db, ctx)
	var user models.User
	err := db.Where("provider = ? AND provider_id = ?", provider, info.ID).First(&user).Error
	if err == nil {
		_ = db.Model(&user).Updates(map[string]interface{}{"avatar_url": info.AvatarURL, "last_login_at": time.Now()}).Error
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(info.Email))
	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, utils.ConflictError("email already registered; sign in with your password")
	}

	username, err := a.ensureUniqueUsername(ctx, info.Username, provider, info.ID)
	if err != nil {
		return nil, err
	}
	user = models.User{
		Email:       email,
		Username:    &username,
		DisplayName: fallback(utils.StripTags(info.DisplayName), username),
		Role:        models.RoleUser,
		IsActive:    true,
		AvatarURL:   info.AvatarURL,
		Provider:    provider,
		ProviderID:  info.ID,
	}
	if err := db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, utils.ConflictError("account already exists")
		}
		return nil, err
	}
	a.log.Info("oauth user created", zap.String("provider", provider), zap.Uint("user_id", user.ID))
	return &user, nil
}

func getJSON(ctx context.Context, client *http.Client, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %s", endpoint, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func fetchGitHubUser(ctx context.Context, client *http.Client) (*oauthUser, error) {
	var payload struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := getJSON(ctx, client, "https://api.github.com/user", &payload); err != nil {
		return nil, err
	}

	email := payload.Email
	if email == "" {
		// private emails are only listed by the emails endpoint
		var emails []struct {
			Email    string `json:"email"`
			Primary  bool   `json:"primary"`
			Verified bool   `json:"verified"`
		}
		if err := getJSON(ctx, client, "https://api.github.com/user/emails", &emails); err == nil {
			for _, e := range emails {
				if e.Primary && e.Verified {
					email = e.Email
					break
				}
			}
		}
	}

	return &oauthUser{
		ID:          fmt.Sprintf("%d", payload.ID),
		Username:    payload.Login,
		DisplayName: fallback(payload.Name, payload.Login),
		Email:       email,
		AvatarURL:   payload.AvatarURL,
	}, nil
}

func fetchGoogleUser(ctx context.Context, client *http.Client) (*oauthUser, error) {
	var payload struct {
		ID            string `json:"id"`
		Email         string `json:"email"`
		VerifiedEmail bool   `json:"verified_email"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := getJSON(ctx, client, "https://www.googleapis.com/oauth2/v2/userinfo", &payload); err != nil {
		return nil, err
	}
	email := payload.Email
	if !payload.VerifiedEmail {
		email = ""
	}
	return &oauthUser{
		ID:          payload.ID,
		Username:    strings.Split(payload.Email, "@")[0],
		DisplayName: payload.Name,
		Email:       email,
		AvatarURL:   payload.Picture,
	}, nil
}

func fallback(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func sanitizeUsername(input string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(input)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_' || r == '-' || r == '.':
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "_")
	if len(out) > 24 {
		out = out[:24]
	}
	return out
}

func (a *AuthController) ensureUniqueUsername(ctx *gin.Context, base, provider, id string) (string, error) {
	base = sanitizeUsername(base)
	if len(base) < 3 {
		base = sanitizeUsername(provider + "_" + id)
	}

	candidate := base
	for suffix := 1; suffix < 1000; suffix++ {
		var count int64
		if err := dbFor(a.db, ctx).Model(&models.User{}).Where("username = ?", candidate).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s_%d", base, suffix)
	}
	return "", utils.ConflictError("could not allocate a username")
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" && len(raw) <= 512
}
